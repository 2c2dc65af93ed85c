package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/winora/internal/models"
)

var (
	// ErrInsufficientBalance is returned when a debit exceeds the unexpired balance.
	ErrInsufficientBalance = errors.New("insufficient wallet balance")
	// ErrInvalidAmount is returned for zero or negative amounts.
	ErrInvalidAmount = errors.New("invalid amount")
)

// WalletService manages store-credit balances, the wallet ledger and withdrawals.
type WalletService struct {
	db *gorm.DB
}

func NewWalletService(db *gorm.DB) *WalletService {
	return &WalletService{db: db}
}

// ApplicableCredit clamps the credit a user may apply to an order: never more
// than the available balance, never more than the order total, never negative.
func ApplicableCredit(balance, orderTotal, requested int64) int64 {
	ceiling := balance
	if orderTotal < ceiling {
		ceiling = orderTotal
	}
	if requested > ceiling {
		requested = ceiling
	}
	if requested < 0 {
		return 0
	}
	return requested
}

// Balance returns the sum of unexpired remaining credit for a user.
func (s *WalletService) Balance(ctx context.Context, userID uuid.UUID) (int64, error) {
	return BalanceTx(s.db.WithContext(ctx), userID)
}

// BalanceTx reads the unexpired balance inside an existing transaction.
func BalanceTx(tx *gorm.DB, userID uuid.UUID) (int64, error) {
	var balance int64
	err := tx.Model(&models.WalletCredit{}).
		Where("user_id = ? AND remaining > 0 AND expires_at > ?", userID, time.Now()).
		Select("COALESCE(SUM(remaining), 0)").
		Scan(&balance).Error
	return balance, err
}

// ListCredits returns a user's credit entries, newest first.
func (s *WalletService) ListCredits(ctx context.Context, userID uuid.UUID) ([]models.WalletCredit, error) {
	var credits []models.WalletCredit
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&credits).Error
	return credits, err
}

// ListTransactions returns a user's wallet ledger, newest first.
func (s *WalletService) ListTransactions(ctx context.Context, userID uuid.UUID) ([]models.WalletTransaction, error) {
	var txns []models.WalletTransaction
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&txns).Error
	return txns, err
}

// GrantTx creates a credit entry plus its ledger row inside an existing
// transaction.
func GrantTx(tx *gorm.DB, userID uuid.UUID, amount int64, source, note string, expiresAt time.Time) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	credit := models.WalletCredit{
		UserID:    userID,
		Source:    source,
		Amount:    amount,
		Remaining: amount,
		ExpiresAt: expiresAt,
	}
	if err := tx.Create(&credit).Error; err != nil {
		return err
	}

	ledger := models.WalletTransaction{
		UserID: userID,
		Type:   "credit",
		Amount: amount,
		Note:   note,
	}
	return tx.Create(&ledger).Error
}

// ConsumeTx debits amount from a user's unexpired credits inside an existing
// transaction, oldest expiry first. Credit rows are locked so two concurrent
// checkouts cannot spend the same balance twice.
func ConsumeTx(tx *gorm.DB, userID uuid.UUID, amount int64, orderID, withdrawalID *uuid.UUID, note string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	var credits []models.WalletCredit
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND remaining > 0 AND expires_at > ?", userID, time.Now()).
		Order("expires_at asc").
		Find(&credits).Error; err != nil {
		return err
	}

	remaining := amount
	for i := range credits {
		if remaining == 0 {
			break
		}
		take := credits[i].Remaining
		if take > remaining {
			take = remaining
		}
		if err := tx.Model(&models.WalletCredit{}).
			Where("id = ?", credits[i].ID).
			Update("remaining", gorm.Expr("remaining - ?", take)).Error; err != nil {
			return err
		}
		remaining -= take
	}

	if remaining > 0 {
		return ErrInsufficientBalance
	}

	ledgerType := "debit"
	if withdrawalID != nil {
		ledgerType = "withdrawal"
	}
	ledger := models.WalletTransaction{
		UserID:       userID,
		Type:         ledgerType,
		Amount:       -amount,
		OrderID:      orderID,
		WithdrawalID: withdrawalID,
		Note:         note,
	}
	return tx.Create(&ledger).Error
}

// RequestWithdrawal reserves balance and creates a pending withdrawal. The
// deduction and the withdrawal row are committed together.
func (s *WalletService) RequestWithdrawal(ctx context.Context, userID uuid.UUID, amount int64, method, destination string) (*models.Withdrawal, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	var withdrawal models.Withdrawal
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		withdrawal = models.Withdrawal{
			UserID:      userID,
			Amount:      amount,
			Status:      models.WithdrawalStatusPending,
			Method:      method,
			Destination: destination,
		}
		if err := tx.Create(&withdrawal).Error; err != nil {
			return err
		}
		return ConsumeTx(tx, userID, amount, nil, &withdrawal.ID, "withdrawal request")
	})
	if err != nil {
		return nil, err
	}
	return &withdrawal, nil
}

// ListWithdrawals returns a user's withdrawal requests, newest first.
func (s *WalletService) ListWithdrawals(ctx context.Context, userID uuid.UUID) ([]models.Withdrawal, error) {
	var withdrawals []models.Withdrawal
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Find(&withdrawals).Error
	return withdrawals, err
}

// PayoutReport summarizes a payout run.
type PayoutReport struct {
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// ProcessPayouts settles every approved withdrawal, marking it paid. Failures
// are collected per withdrawal so one bad row does not abort the run.
func (s *WalletService) ProcessPayouts(ctx context.Context) (*PayoutReport, error) {
	var approved []models.Withdrawal
	if err := s.db.WithContext(ctx).
		Where("status = ?", models.WithdrawalStatusApproved).
		Order("created_at asc").
		Find(&approved).Error; err != nil {
		return nil, err
	}

	report := &PayoutReport{}
	now := time.Now()
	for _, w := range approved {
		result := s.db.WithContext(ctx).
			Model(&models.Withdrawal{}).
			Where("id = ? AND status = ?", w.ID, models.WithdrawalStatusApproved).
			Updates(map[string]any{
				"status":       models.WithdrawalStatusPaid,
				"processed_at": &now,
			})
		if result.Error != nil {
			report.Failed++
			report.Errors = append(report.Errors, w.ID.String()+": "+result.Error.Error())
			continue
		}
		if result.RowsAffected == 0 {
			continue
		}
		report.Processed++
	}
	return report, nil
}

// RejectWithdrawal refuses a pending or approved withdrawal and refunds the
// reserved balance as store credit.
func (s *WalletService) RejectWithdrawal(ctx context.Context, withdrawalID uuid.UUID, reason string, refundExpiry time.Time) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var withdrawal models.Withdrawal
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&withdrawal, "id = ?", withdrawalID).Error; err != nil {
			return err
		}
		if withdrawal.Status != models.WithdrawalStatusPending && withdrawal.Status != models.WithdrawalStatusApproved {
			return errors.New("withdrawal is not open")
		}

		if err := tx.Model(&models.Withdrawal{}).
			Where("id = ?", withdrawal.ID).
			Updates(map[string]any{
				"status":      models.WithdrawalStatusRejected,
				"fail_reason": reason,
			}).Error; err != nil {
			return err
		}

		return GrantTx(tx, withdrawal.UserID, withdrawal.Amount, models.CreditSourceRefund, "withdrawal rejected", refundExpiry)
	})
}
