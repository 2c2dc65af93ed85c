package models

import (
	"time"

	"github.com/google/uuid"
)

// Draw records a completed random-selection event for a competition. The
// integrity hash commits to the winning ticket and the entropy used, so the
// result can be re-verified later.
type Draw struct {
	BaseModel
	CompetitionID uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"competition_id"`
	WinningNumber int       `json:"winning_number"`
	WinnerUserID  uuid.UUID `gorm:"type:uuid" json:"winner_user_id"`
	TicketID      uuid.UUID `gorm:"type:uuid" json:"ticket_id"`
	Entropy       string    `json:"entropy"`
	IntegrityHash string    `json:"integrity_hash"`
	ExecutedAt    time.Time `json:"executed_at"`
}
