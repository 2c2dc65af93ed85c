package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/winora/internal/models"
)

var (
	// ErrOrderNotFound is returned when a callback references an unknown order.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderNotReconcilable is returned when the referenced order already
	// left the pending state with a different outcome.
	ErrOrderNotReconcilable = errors.New("order is not reconcilable")
	// ErrCompetitionOversold guards the sold counter against exceeding capacity.
	ErrCompetitionOversold = errors.New("competition oversold")
	// ErrUnsupportedStatus is returned for status values outside the gateway's
	// documented vocabulary.
	ErrUnsupportedStatus = errors.New("unsupported transaction status")
)

// PaymentResult is a normalized gateway callback, independent of which inbound
// contract delivered it.
type PaymentResult struct {
	OrderRef      string
	TransactionID string
	Outcome       string
	Amount        int64
	RawPayload    []byte
}

// ReconcileOutcome reports what a callback application did.
type ReconcileOutcome struct {
	OrderID          uuid.UUID
	Status           string
	Duplicate        bool
	TicketsAllocated int
	InstantWins      int
}

// ReconcileService applies gateway payment results to orders: the pending →
// paid compare-and-swap, ticket allocation, instant-win matching and referral
// rewards, all inside one database transaction per delivery.
type ReconcileService struct {
	db            *gorm.DB
	telegram      *TelegramService
	referralBonus int64
	creditExpiry  time.Duration
}

func NewReconcileService(db *gorm.DB, telegram *TelegramService, referralBonus int64, creditExpiry time.Duration) *ReconcileService {
	return &ReconcileService{
		db:            db,
		telegram:      telegram,
		referralBonus: referralBonus,
		creditExpiry:  creditExpiry,
	}
}

// Apply reconciles one gateway delivery. Re-delivery of an already applied
// result is reported as a duplicate and mutates nothing; the gateway retries
// deliveries, so this path must stay side-effect free.
func (s *ReconcileService) Apply(ctx context.Context, res PaymentResult) (*ReconcileOutcome, error) {
	switch res.Outcome {
	case OutcomeApproved, OutcomeDeclined, OutcomeError, OutcomePending:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedStatus, res.Outcome)
	}

	order, err := s.findOrder(ctx, res.OrderRef)
	if err != nil {
		return nil, err
	}

	outcome := &ReconcileOutcome{OrderID: order.ID}

	switch res.Outcome {
	case OutcomeApproved:
		err = s.applyApproved(ctx, order.ID, res, outcome)
	case OutcomeDeclined, OutcomeError:
		err = s.applyFailed(ctx, order.ID, res, outcome)
	case OutcomePending:
		// Interim notification; the gateway follows up with a final status.
		outcome.Status = order.Status
	}

	s.recordEvent(ctx, order.ID, res, outcome, err)

	if err != nil {
		return nil, err
	}

	if res.Outcome == OutcomeApproved && !outcome.Duplicate && s.telegram != nil {
		go func(o ReconcileOutcome, amount int64) {
			if notifyErr := s.telegram.NotifyPaymentSuccess(o.OrderID.String(), amount, o.TicketsAllocated); notifyErr != nil {
				log.Printf("[G2Pay] payment notification failed: %v", notifyErr)
			}
		}(*outcome, res.Amount)
	}

	return outcome, nil
}

func (s *ReconcileService) applyApproved(ctx context.Context, orderID uuid.UUID, res PaymentResult, out *ReconcileOutcome) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").
			First(&order, "id = ?", orderID).Error; err != nil {
			return err
		}

		if order.Status == models.OrderStatusPaid {
			out.Status = order.Status
			out.Duplicate = true
			return nil
		}

		now := time.Now()
		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
			Updates(map[string]any{
				"status":         models.OrderStatusPaid,
				"transaction_id": res.TransactionID,
				"raw_callback":   res.RawPayload,
				"paid_at":        &now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrOrderNotReconcilable
		}

		allocated, wins, err := s.allocateTickets(tx, &order)
		if err != nil {
			return err
		}
		out.Status = models.OrderStatusPaid
		out.TicketsAllocated = allocated
		out.InstantWins = wins

		if err := s.rewardReferral(tx, order.UserID); err != nil {
			return err
		}
		return nil
	})
}

func (s *ReconcileService) applyFailed(ctx context.Context, orderID uuid.UUID, res PaymentResult, out *ReconcileOutcome) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&order, "id = ?", orderID).Error; err != nil {
			return err
		}

		if order.Status != models.OrderStatusPending {
			out.Status = order.Status
			out.Duplicate = true
			return nil
		}

		if err := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
			Updates(map[string]any{
				"status":         models.OrderStatusPaymentFailed,
				"transaction_id": res.TransactionID,
				"raw_callback":   res.RawPayload,
			}).Error; err != nil {
			return err
		}
		out.Status = models.OrderStatusPaymentFailed

		// Credit reserved at checkout goes back to the wallet.
		if order.CreditApplied > 0 {
			note := "order " + order.OrderNumber + " payment failed"
			return GrantTx(tx, order.UserID, order.CreditApplied, models.CreditSourceRefund, note, time.Now().Add(s.creditExpiry))
		}
		return nil
	})
}

// allocateTickets materializes tickets for every order item. Each competition
// row is locked while its sold counter advances, so generated numbers never
// collide across concurrent orders.
func (s *ReconcileService) allocateTickets(tx *gorm.DB, order *models.Order) (int, int, error) {
	allocated := 0
	wins := 0

	for _, item := range order.Items {
		var comp models.Competition
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&comp, "id = ?", item.CompetitionID).Error; err != nil {
			return 0, 0, err
		}

		if comp.SoldTickets+item.TicketCount > comp.TotalTickets {
			return 0, 0, fmt.Errorf("%w: competition %s", ErrCompetitionOversold, comp.ID)
		}

		firstNumber := comp.SoldTickets + 1
		if err := tx.Model(&models.Competition{}).
			Where("id = ?", comp.ID).
			Update("sold_tickets", gorm.Expr("sold_tickets + ?", item.TicketCount)).Error; err != nil {
			return 0, 0, err
		}

		numbers := make([]int, 0, item.TicketCount)
		tickets := make([]models.Ticket, 0, item.TicketCount)
		for n := firstNumber; n < firstNumber+item.TicketCount; n++ {
			numbers = append(numbers, n)
			tickets = append(tickets, models.Ticket{
				CompetitionID: comp.ID,
				TicketNumber:  n,
				OrderID:       order.ID,
				UserID:        order.UserID,
			})
		}
		if err := tx.Create(&tickets).Error; err != nil {
			return 0, 0, err
		}
		allocated += len(tickets)

		won, err := s.matchInstantWins(tx, order.UserID, comp.ID, numbers, tickets)
		if err != nil {
			return 0, 0, err
		}
		wins += won
	}

	return allocated, wins, nil
}

// matchInstantWins flags tickets whose numbers hit an unclaimed instant win
// and grants credit prizes to the buyer's wallet.
func (s *ReconcileService) matchInstantWins(tx *gorm.DB, userID, competitionID uuid.UUID, numbers []int, tickets []models.Ticket) (int, error) {
	var hits []models.InstantWin
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Prize").
		Where("competition_id = ? AND ticket_number IN ? AND won_by_user_id IS NULL", competitionID, numbers).
		Find(&hits).Error; err != nil {
		return 0, err
	}
	if len(hits) == 0 {
		return 0, nil
	}

	byNumber := make(map[int]uuid.UUID, len(tickets))
	for _, t := range tickets {
		byNumber[t.TicketNumber] = t.ID
	}

	now := time.Now()
	for _, hit := range hits {
		if err := tx.Model(&models.InstantWin{}).
			Where("id = ?", hit.ID).
			Updates(map[string]any{
				"won_by_user_id": userID,
				"won_at":         &now,
			}).Error; err != nil {
			return 0, err
		}
		if ticketID, ok := byNumber[hit.TicketNumber]; ok {
			if err := tx.Model(&models.Ticket{}).
				Where("id = ?", ticketID).
				Update("instant_win_id", hit.ID).Error; err != nil {
				return 0, err
			}
		}
		if hit.Prize != nil && hit.Prize.CreditAmount > 0 && hit.Prize.Kind != "physical" {
			note := "instant win: " + hit.Prize.Name
			if err := GrantTx(tx, userID, hit.Prize.CreditAmount, models.CreditSourcePrize, note, now.Add(s.creditExpiry)); err != nil {
				return 0, err
			}
		}
	}
	return len(hits), nil
}

// rewardReferral grants the referral bonus to both sides the first time the
// referred user pays for an order, while the attribution is unexpired.
func (s *ReconcileService) rewardReferral(tx *gorm.DB, userID uuid.UUID) error {
	if s.referralBonus <= 0 {
		return nil
	}

	var attribution models.ReferralAttribution
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("referred_user_id = ? AND rewarded_at IS NULL AND expires_at > ?", userID, time.Now()).
		First(&attribution).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var code models.ReferralCode
	if err := tx.First(&code, "id = ?", attribution.ReferralCodeID).Error; err != nil {
		return err
	}

	now := time.Now()
	if err := tx.Model(&models.ReferralAttribution{}).
		Where("id = ? AND rewarded_at IS NULL", attribution.ID).
		Update("rewarded_at", &now).Error; err != nil {
		return err
	}

	expiry := now.Add(s.creditExpiry)
	if err := GrantTx(tx, code.UserID, s.referralBonus, models.CreditSourceReferral, "referral bonus", expiry); err != nil {
		return err
	}
	return GrantTx(tx, userID, s.referralBonus, models.CreditSourceReferral, "referral bonus", expiry)
}

// CancelPending cancels a user's pending order and returns any credit applied
// at checkout to their wallet. Orders that already left pending stay untouched.
func (s *ReconcileService) CancelPending(ctx context.Context, orderID, userID uuid.UUID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var order models.Order
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&order, "id = ? AND user_id = ?", orderID, userID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}

		result := tx.Model(&models.Order{}).
			Where("id = ? AND status = ?", order.ID, models.OrderStatusPending).
			Update("status", models.OrderStatusCancelled)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrOrderNotReconcilable
		}

		if order.CreditApplied > 0 {
			note := "order " + order.OrderNumber + " cancelled"
			return GrantTx(tx, order.UserID, order.CreditApplied, models.CreditSourceRefund, note, time.Now().Add(s.creditExpiry))
		}
		return nil
	})
}

func (s *ReconcileService) findOrder(ctx context.Context, orderRef string) (*models.Order, error) {
	var order models.Order
	db := s.db.WithContext(ctx)

	if parsed, err := uuid.Parse(orderRef); err == nil {
		if err := db.First(&order, "id = ?", parsed).Error; err == nil {
			return &order, nil
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
	}

	if err := db.First(&order, "order_number = ?", orderRef).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return &order, nil
}

// recordEvent writes the audit row for a delivery. Audit failures are logged,
// never surfaced to the gateway.
func (s *ReconcileService) recordEvent(ctx context.Context, orderID uuid.UUID, res PaymentResult, out *ReconcileOutcome, applyErr error) {
	eventOutcome := "applied"
	if applyErr != nil {
		eventOutcome = "rejected"
	} else if out.Duplicate {
		eventOutcome = "duplicate"
	} else if res.Outcome == OutcomePending {
		eventOutcome = "ignored"
	}

	event := models.PaymentEvent{
		Provider:      ProviderG2Pay,
		OrderID:       &orderID,
		TransactionID: res.TransactionID,
		Status:        res.Outcome,
		Amount:        res.Amount,
		Outcome:       eventOutcome,
		RawPayload:    res.RawPayload,
	}
	if err := s.db.WithContext(ctx).Create(&event).Error; err != nil {
		log.Printf("[G2Pay] failed to record payment event for order %s: %v", orderID, err)
	}
}
