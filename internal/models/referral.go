package models

import (
	"time"

	"github.com/google/uuid"
)

// ReferralCode is owned by the inviting user.
type ReferralCode struct {
	BaseModel
	UserID uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"user_id"`
	Code   string    `gorm:"uniqueIndex" json:"code"`
}

// ReferralAttribution ties a referred user to the code they arrived with.
// One attribution per referred user; it stops counting after ExpiresAt.
// RewardedAt is set when the bonus is granted so it is granted at most once.
type ReferralAttribution struct {
	BaseModel
	ReferralCodeID uuid.UUID  `gorm:"type:uuid;index" json:"referral_code_id"`
	ReferredUserID uuid.UUID  `gorm:"type:uuid;uniqueIndex" json:"referred_user_id"`
	ExpiresAt      time.Time  `json:"expires_at"`
	RewardedAt     *time.Time `json:"rewarded_at"`
}
