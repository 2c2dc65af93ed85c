package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"math/big"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/winora/internal/models"
)

var (
	// ErrAlreadyDrawn is returned when a competition has a recorded draw.
	ErrAlreadyDrawn = errors.New("competition already drawn")
	// ErrNoTicketsSold is returned when a draw is attempted with no entries.
	ErrNoTicketsSold = errors.New("no tickets sold")
)

// DrawService executes competition draws and verifies their integrity.
type DrawService struct {
	db           *gorm.DB
	telegram     *TelegramService
	creditExpiry time.Duration
}

func NewDrawService(db *gorm.DB, telegram *TelegramService, creditExpiry time.Duration) *DrawService {
	return &DrawService{db: db, telegram: telegram, creditExpiry: creditExpiry}
}

// Execute picks a winning ticket uniformly at random among sold tickets and
// records the draw with a verification hash. The unique index on
// draws.competition_id makes re-execution impossible even across processes.
func (s *DrawService) Execute(ctx context.Context, competitionID uuid.UUID) (*models.Draw, error) {
	var draw models.Draw

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var comp models.Competition
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&comp, "id = ?", competitionID).Error; err != nil {
			return err
		}
		if comp.Status == models.CompetitionStatusDrawn {
			return ErrAlreadyDrawn
		}
		if comp.SoldTickets == 0 {
			return ErrNoTicketsSold
		}

		n, err := rand.Int(rand.Reader, big.NewInt(int64(comp.SoldTickets)))
		if err != nil {
			return err
		}
		winningNumber := int(n.Int64()) + 1

		var ticket models.Ticket
		if err := tx.First(&ticket, "competition_id = ? AND ticket_number = ?", comp.ID, winningNumber).Error; err != nil {
			return err
		}

		entropyBytes := make([]byte, 16)
		if _, err := rand.Read(entropyBytes); err != nil {
			return err
		}
		entropy := hex.EncodeToString(entropyBytes)
		executedAt := time.Now().UTC().Truncate(time.Second)

		draw = models.Draw{
			CompetitionID: comp.ID,
			WinningNumber: winningNumber,
			WinnerUserID:  ticket.UserID,
			TicketID:      ticket.ID,
			Entropy:       entropy,
			IntegrityHash: integrityHash(comp.ID, winningNumber, executedAt, entropy),
			ExecutedAt:    executedAt,
		}
		if err := tx.Create(&draw).Error; err != nil {
			return err
		}

		if err := tx.Model(&models.Competition{}).
			Where("id = ?", comp.ID).
			Updates(map[string]any{
				"status":   models.CompetitionStatusDrawn,
				"drawn_at": &executedAt,
			}).Error; err != nil {
			return err
		}

		return s.grantDrawPrize(tx, &comp, ticket.UserID)
	})
	if err != nil {
		return nil, err
	}

	if s.telegram != nil {
		go func(d models.Draw) {
			if notifyErr := s.telegram.NotifyDrawResult(d.CompetitionID.String(), d.WinningNumber); notifyErr != nil {
				log.Printf("[Draw] telegram notification failed: %v", notifyErr)
			}
		}(draw)
	}

	return &draw, nil
}

// Verify recomputes the integrity hash from the stored draw fields.
func (s *DrawService) Verify(ctx context.Context, drawID uuid.UUID) (bool, error) {
	var draw models.Draw
	if err := s.db.WithContext(ctx).First(&draw, "id = ?", drawID).Error; err != nil {
		return false, err
	}
	expected := integrityHash(draw.CompetitionID, draw.WinningNumber, draw.ExecutedAt, draw.Entropy)
	return expected == draw.IntegrityHash, nil
}

// grantDrawPrize credits cash-alternative and credit prizes to the winner's
// wallet. Physical prizes go through manual fulfillment.
func (s *DrawService) grantDrawPrize(tx *gorm.DB, comp *models.Competition, winnerID uuid.UUID) error {
	var prize models.Prize
	err := tx.Where("competition_id = ?", comp.ID).Order("credit_amount desc").First(&prize).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if prize.Kind == "physical" || prize.CreditAmount <= 0 {
		return nil
	}
	note := "draw prize: " + prize.Name
	return GrantTx(tx, winnerID, prize.CreditAmount, models.CreditSourcePrize, note, time.Now().Add(s.creditExpiry))
}

func integrityHash(competitionID uuid.UUID, winningNumber int, executedAt time.Time, entropy string) string {
	payload := fmt.Sprintf("%s|%d|%d|%s", competitionID, winningNumber, executedAt.UTC().Unix(), entropy)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
