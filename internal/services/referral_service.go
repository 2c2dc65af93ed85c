package services

import (
	"context"
	"crypto/rand"
	"encoding/base32"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"github.com/example/winora/internal/models"
)

const (
	referralCodeBytes      = 5
	referralCodeMaxRetries = 5
)

var (
	// ErrSelfReferral is returned when a user submits their own code.
	ErrSelfReferral = errors.New("cannot use own referral code")
	// ErrUnknownReferralCode is returned for codes that do not exist.
	ErrUnknownReferralCode = errors.New("unknown referral code")
	// ErrAlreadyAttributed is returned when the user already carries an attribution.
	ErrAlreadyAttributed = errors.New("referral already attributed")
)

// ReferralService manages referral codes and attributions. Attribution stops
// counting after its expiry; the bonus itself is granted by the reconciler when
// the referred user first pays.
type ReferralService struct {
	db  *gorm.DB
	ttl time.Duration
}

func NewReferralService(db *gorm.DB, ttlDays int) *ReferralService {
	return &ReferralService{db: db, ttl: time.Duration(ttlDays) * 24 * time.Hour}
}

// GetOrCreateCode returns the user's referral code, creating one on first use.
// Collisions with existing codes are retried with fresh randomness.
func (s *ReferralService) GetOrCreateCode(ctx context.Context, userID uuid.UUID) (string, error) {
	var existing models.ReferralCode
	err := s.db.WithContext(ctx).First(&existing, "user_id = ?", userID).Error
	if err == nil {
		return existing.Code, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", err
	}

	for i := 0; i < referralCodeMaxRetries; i++ {
		candidate, err := generateReferralCode()
		if err != nil {
			return "", err
		}
		code := models.ReferralCode{UserID: userID, Code: candidate}
		if err := s.db.WithContext(ctx).Create(&code).Error; err != nil {
			if isUniqueViolation(err) {
				// Either the code collided or a concurrent request created
				// one for this user; re-read before retrying.
				if readErr := s.db.WithContext(ctx).First(&existing, "user_id = ?", userID).Error; readErr == nil {
					return existing.Code, nil
				}
				continue
			}
			return "", err
		}
		return candidate, nil
	}

	return "", errors.New("referral code unavailable")
}

// Attribute records that the referred user arrived with the given code. The
// attribution expires after the configured TTL and is unique per user.
func (s *ReferralService) Attribute(ctx context.Context, referredUserID uuid.UUID, rawCode string) (*models.ReferralAttribution, error) {
	code := strings.ToUpper(strings.TrimSpace(rawCode))
	if code == "" {
		return nil, ErrUnknownReferralCode
	}

	var refCode models.ReferralCode
	if err := s.db.WithContext(ctx).First(&refCode, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUnknownReferralCode
		}
		return nil, err
	}
	if refCode.UserID == referredUserID {
		return nil, ErrSelfReferral
	}

	attribution := models.ReferralAttribution{
		ReferralCodeID: refCode.ID,
		ReferredUserID: referredUserID,
		ExpiresAt:      time.Now().Add(s.ttl),
	}
	if err := s.db.WithContext(ctx).Create(&attribution).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyAttributed
		}
		return nil, err
	}
	return &attribution, nil
}

func generateReferralCode() (string, error) {
	buf := make([]byte, referralCodeBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
