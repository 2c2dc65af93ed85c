package services

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/winora/internal/models"
)

func TestApplicableCredit(t *testing.T) {
	cases := []struct {
		name      string
		balance   int64
		total     int64
		requested int64
		want      int64
	}{
		{name: "requested_within_both", balance: 1000, total: 800, requested: 500, want: 500},
		{name: "clamped_by_balance", balance: 300, total: 800, requested: 500, want: 300},
		{name: "clamped_by_total", balance: 1000, total: 200, requested: 500, want: 200},
		{name: "zero_requested", balance: 1000, total: 800, requested: 0, want: 0},
		{name: "negative_requested", balance: 1000, total: 800, requested: -50, want: 0},
		{name: "zero_balance", balance: 0, total: 800, requested: 500, want: 0},
		{name: "exact_total", balance: 800, total: 800, requested: 800, want: 800},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ApplicableCredit(tc.balance, tc.total, tc.requested)
			if got != tc.want {
				t.Fatalf("ApplicableCredit(%d, %d, %d) = %d, want %d",
					tc.balance, tc.total, tc.requested, got, tc.want)
			}
			if got > tc.balance || got > tc.total {
				t.Fatalf("applied credit %d exceeds min(balance, total)", got)
			}
		})
	}
}

func insertWalletUser(t *testing.T, db *gorm.DB) models.User {
	t.Helper()

	suffix := uuid.New().String()[:8]
	user := models.User{
		FirstName: "Wallet",
		Email:     fmt.Sprintf("wallet-%s@example.com", suffix),
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("insert user: %v", err)
	}

	t.Cleanup(func() {
		db.Where("user_id = ?", user.ID).Delete(&models.WalletTransaction{})
		db.Where("user_id = ?", user.ID).Delete(&models.WalletCredit{})
		db.Delete(&models.User{}, "id = ?", user.ID)
	})

	return user
}

func insertCredit(t *testing.T, db *gorm.DB, userID uuid.UUID, amount int64, expiresAt time.Time) models.WalletCredit {
	t.Helper()

	credit := models.WalletCredit{
		UserID:    userID,
		Source:    models.CreditSourceManual,
		Amount:    amount,
		Remaining: amount,
		ExpiresAt: expiresAt,
	}
	if err := db.Create(&credit).Error; err != nil {
		t.Fatalf("insert credit: %v", err)
	}
	return credit
}

func TestConsumeTxOldestExpiryFirst(t *testing.T) {
	db := openTestDB(t)
	user := insertWalletUser(t, db)

	now := time.Now()
	expired := insertCredit(t, db, user.ID, 500, now.Add(-time.Hour))
	near := insertCredit(t, db, user.ID, 300, now.Add(24*time.Hour))
	far := insertCredit(t, db, user.ID, 400, now.Add(30*24*time.Hour))

	err := db.Transaction(func(tx *gorm.DB) error {
		return ConsumeTx(tx, user.ID, 350, nil, nil, "test debit")
	})
	if err != nil {
		t.Fatalf("ConsumeTx(): %v", err)
	}

	reload := func(id uuid.UUID) models.WalletCredit {
		var c models.WalletCredit
		if err := db.First(&c, "id = ?", id).Error; err != nil {
			t.Fatalf("reload credit: %v", err)
		}
		return c
	}

	if got := reload(near.ID).Remaining; got != 0 {
		t.Fatalf("nearest-expiry credit remaining = %d, want fully consumed", got)
	}
	if got := reload(far.ID).Remaining; got != 350 {
		t.Fatalf("later-expiry credit remaining = %d, want 350", got)
	}
	if got := reload(expired.ID).Remaining; got != 500 {
		t.Fatalf("expired credit remaining = %d, must stay untouched", got)
	}

	balance, err := BalanceTx(db, user.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 350 {
		t.Fatalf("balance = %d, want 350", balance)
	}
}

func TestConsumeTxExpiredCreditNotSpendable(t *testing.T) {
	db := openTestDB(t)
	user := insertWalletUser(t, db)

	expired := insertCredit(t, db, user.ID, 500, time.Now().Add(-time.Hour))

	err := db.Transaction(func(tx *gorm.DB) error {
		return ConsumeTx(tx, user.ID, 100, nil, nil, "test debit")
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}

	var credit models.WalletCredit
	if err := db.First(&credit, "id = ?", expired.ID).Error; err != nil {
		t.Fatalf("reload credit: %v", err)
	}
	if credit.Remaining != 500 {
		t.Fatalf("expired credit remaining = %d, must stay untouched", credit.Remaining)
	}
}
