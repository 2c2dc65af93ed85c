package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/example/winora/internal/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("db connection: %v", err)
	}

	migrations := []interface{}{
		&models.User{},
		&models.Competition{},
		&models.Prize{},
		&models.InstantWin{},
		&models.Order{},
		&models.OrderItem{},
		&models.Ticket{},
		&models.PaymentEvent{},
		&models.WalletCredit{},
		&models.WalletTransaction{},
		&models.ReferralCode{},
		&models.ReferralAttribution{},
	}
	for _, m := range migrations {
		if err := db.AutoMigrate(m); err != nil {
			t.Fatalf("migrate: %v", err)
		}
	}

	return db
}

type reconcileFixture struct {
	user  models.User
	comp  models.Competition
	order models.Order
}

func insertPendingOrder(t *testing.T, db *gorm.DB, ticketCount int) reconcileFixture {
	t.Helper()

	suffix := uuid.New().String()[:8]

	user := models.User{
		FirstName: "Test",
		Email:     fmt.Sprintf("buyer-%s@example.com", suffix),
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("insert user: %v", err)
	}

	comp := models.Competition{
		Title:        "Test Competition " + suffix,
		Slug:         "test-comp-" + suffix,
		TicketPrice:  500,
		TotalTickets: 1000,
		Status:       models.CompetitionStatusActive,
		ClosesAt:     time.Now().Add(24 * time.Hour),
	}
	if err := db.Create(&comp).Error; err != nil {
		t.Fatalf("insert competition: %v", err)
	}

	order := models.Order{
		UserID:      user.ID,
		OrderNumber: "WN-TEST-" + suffix,
		Status:      models.OrderStatusPending,
		Subtotal:    int64(ticketCount) * comp.TicketPrice,
		TotalAmount: int64(ticketCount) * comp.TicketPrice,
		Currency:    "GBP",
		PlacedAt:    time.Now(),
		Items: []models.OrderItem{{
			CompetitionID: comp.ID,
			TicketCount:   ticketCount,
			UnitPrice:     comp.TicketPrice,
			LineTotal:     int64(ticketCount) * comp.TicketPrice,
		}},
	}
	if err := db.Create(&order).Error; err != nil {
		t.Fatalf("insert order: %v", err)
	}

	t.Cleanup(func() {
		db.Where("order_id = ?", order.ID).Delete(&models.Ticket{})
		db.Where("order_id = ?", order.ID).Delete(&models.PaymentEvent{})
		db.Where("order_id = ?", order.ID).Delete(&models.OrderItem{})
		db.Delete(&models.Order{}, "id = ?", order.ID)
		db.Delete(&models.Competition{}, "id = ?", comp.ID)
		db.Where("user_id = ?", user.ID).Delete(&models.WalletTransaction{})
		db.Where("user_id = ?", user.ID).Delete(&models.WalletCredit{})
		db.Delete(&models.User{}, "id = ?", user.ID)
	})

	return reconcileFixture{user: user, comp: comp, order: order}
}

func TestApplyApprovedAllocatesTickets(t *testing.T) {
	db := openTestDB(t)
	fx := insertPendingOrder(t, db, 3)
	svc := NewReconcileService(db, nil, 0, 90*24*time.Hour)

	outcome, err := svc.Apply(context.Background(), PaymentResult{
		OrderRef:      fx.order.ID.String(),
		TransactionID: "txn-approved-1",
		Outcome:       OutcomeApproved,
		Amount:        fx.order.TotalAmount,
	})
	if err != nil {
		t.Fatalf("Apply(): %v", err)
	}
	if outcome.Status != models.OrderStatusPaid {
		t.Fatalf("status = %q, want paid", outcome.Status)
	}
	if outcome.TicketsAllocated != 3 {
		t.Fatalf("tickets allocated = %d, want 3", outcome.TicketsAllocated)
	}

	var order models.Order
	if err := db.First(&order, "id = ?", fx.order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if order.Status != models.OrderStatusPaid {
		t.Fatalf("order status = %q, want paid", order.Status)
	}
	if order.TransactionID != "txn-approved-1" {
		t.Fatalf("transaction id = %q", order.TransactionID)
	}
	if order.PaidAt == nil {
		t.Fatal("paid_at not set")
	}

	var ticketCount int64
	if err := db.Model(&models.Ticket{}).Where("order_id = ?", order.ID).Count(&ticketCount).Error; err != nil {
		t.Fatalf("count tickets: %v", err)
	}
	if ticketCount != 3 {
		t.Fatalf("ticket rows = %d, want 3", ticketCount)
	}

	var comp models.Competition
	if err := db.First(&comp, "id = ?", fx.comp.ID).Error; err != nil {
		t.Fatalf("reload competition: %v", err)
	}
	if comp.SoldTickets != 3 {
		t.Fatalf("sold tickets = %d, want 3", comp.SoldTickets)
	}
}

func TestApplyApprovedIdempotent(t *testing.T) {
	db := openTestDB(t)
	fx := insertPendingOrder(t, db, 3)
	svc := NewReconcileService(db, nil, 0, 90*24*time.Hour)

	result := PaymentResult{
		OrderRef:      fx.order.ID.String(),
		TransactionID: "txn-dup-1",
		Outcome:       OutcomeApproved,
		Amount:        fx.order.TotalAmount,
	}

	if _, err := svc.Apply(context.Background(), result); err != nil {
		t.Fatalf("first Apply(): %v", err)
	}

	second, err := svc.Apply(context.Background(), result)
	if err != nil {
		t.Fatalf("second Apply(): %v", err)
	}
	if !second.Duplicate {
		t.Fatal("second delivery not reported as duplicate")
	}
	if second.TicketsAllocated != 0 {
		t.Fatalf("duplicate delivery allocated %d tickets", second.TicketsAllocated)
	}

	var ticketCount int64
	if err := db.Model(&models.Ticket{}).Where("order_id = ?", fx.order.ID).Count(&ticketCount).Error; err != nil {
		t.Fatalf("count tickets: %v", err)
	}
	if ticketCount != 3 {
		t.Fatalf("ticket rows after duplicate delivery = %d, want 3", ticketCount)
	}

	var comp models.Competition
	if err := db.First(&comp, "id = ?", fx.comp.ID).Error; err != nil {
		t.Fatalf("reload competition: %v", err)
	}
	if comp.SoldTickets != 3 {
		t.Fatalf("sold tickets after duplicate delivery = %d, want 3", comp.SoldTickets)
	}
}

func TestApplyDeclined(t *testing.T) {
	db := openTestDB(t)
	fx := insertPendingOrder(t, db, 2)
	svc := NewReconcileService(db, nil, 0, 90*24*time.Hour)

	outcome, err := svc.Apply(context.Background(), PaymentResult{
		OrderRef:      fx.order.ID.String(),
		TransactionID: "txn-declined-1",
		Outcome:       OutcomeDeclined,
		Amount:        fx.order.TotalAmount,
	})
	if err != nil {
		t.Fatalf("Apply(): %v", err)
	}
	if outcome.Status != models.OrderStatusPaymentFailed {
		t.Fatalf("status = %q, want payment_failed", outcome.Status)
	}

	var ticketCount int64
	if err := db.Model(&models.Ticket{}).Where("order_id = ?", fx.order.ID).Count(&ticketCount).Error; err != nil {
		t.Fatalf("count tickets: %v", err)
	}
	if ticketCount != 0 {
		t.Fatalf("declined order allocated %d tickets", ticketCount)
	}
}

func TestApplyPendingLeavesOrderUntouched(t *testing.T) {
	db := openTestDB(t)
	fx := insertPendingOrder(t, db, 2)
	svc := NewReconcileService(db, nil, 0, 90*24*time.Hour)

	outcome, err := svc.Apply(context.Background(), PaymentResult{
		OrderRef:      fx.order.ID.String(),
		TransactionID: "txn-pending-1",
		Outcome:       OutcomePending,
		Amount:        fx.order.TotalAmount,
	})
	if err != nil {
		t.Fatalf("Apply(): %v", err)
	}
	if outcome.Status != models.OrderStatusPending {
		t.Fatalf("status = %q, want pending", outcome.Status)
	}

	var order models.Order
	if err := db.First(&order, "id = ?", fx.order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if order.Status != models.OrderStatusPending {
		t.Fatalf("order status = %q, interim notification must not mutate", order.Status)
	}
	if order.TransactionID != "" {
		t.Fatalf("transaction id = %q, want empty", order.TransactionID)
	}

	var ticketCount int64
	if err := db.Model(&models.Ticket{}).Where("order_id = ?", fx.order.ID).Count(&ticketCount).Error; err != nil {
		t.Fatalf("count tickets: %v", err)
	}
	if ticketCount != 0 {
		t.Fatalf("interim notification allocated %d tickets", ticketCount)
	}
}

func TestApplyUnsupportedStatus(t *testing.T) {
	svc := NewReconcileService(nil, nil, 0, 0)

	_, err := svc.Apply(context.Background(), PaymentResult{
		OrderRef:      uuid.New().String(),
		TransactionID: "txn-odd",
		Outcome:       OutcomeUnknown,
	})
	if !errors.Is(err, ErrUnsupportedStatus) {
		t.Fatalf("err = %v, want ErrUnsupportedStatus", err)
	}
}

func TestApplyDeclinedRefundsCredit(t *testing.T) {
	db := openTestDB(t)
	fx := insertPendingOrder(t, db, 2)
	svc := NewReconcileService(db, nil, 0, 90*24*time.Hour)

	if err := db.Model(&models.Order{}).
		Where("id = ?", fx.order.ID).
		Update("credit_applied", int64(200)).Error; err != nil {
		t.Fatalf("set credit_applied: %v", err)
	}

	if _, err := svc.Apply(context.Background(), PaymentResult{
		OrderRef:      fx.order.ID.String(),
		TransactionID: "txn-declined-refund",
		Outcome:       OutcomeDeclined,
		Amount:        fx.order.TotalAmount,
	}); err != nil {
		t.Fatalf("Apply(): %v", err)
	}

	balance, err := BalanceTx(db, fx.user.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 200 {
		t.Fatalf("balance after failed payment = %d, want refunded 200", balance)
	}

	var refund models.WalletCredit
	if err := db.First(&refund, "user_id = ? AND source = ?", fx.user.ID, models.CreditSourceRefund).Error; err != nil {
		t.Fatalf("refund credit row: %v", err)
	}
	if refund.Amount != 200 {
		t.Fatalf("refund amount = %d, want 200", refund.Amount)
	}
}

func TestCancelPending(t *testing.T) {
	db := openTestDB(t)
	fx := insertPendingOrder(t, db, 2)
	svc := NewReconcileService(db, nil, 0, 90*24*time.Hour)

	if err := db.Model(&models.Order{}).
		Where("id = ?", fx.order.ID).
		Update("credit_applied", int64(150)).Error; err != nil {
		t.Fatalf("set credit_applied: %v", err)
	}

	if err := svc.CancelPending(context.Background(), fx.order.ID, fx.user.ID); err != nil {
		t.Fatalf("CancelPending(): %v", err)
	}

	var order models.Order
	if err := db.First(&order, "id = ?", fx.order.ID).Error; err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if order.Status != models.OrderStatusCancelled {
		t.Fatalf("order status = %q, want cancelled", order.Status)
	}

	balance, err := BalanceTx(db, fx.user.ID)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance != 150 {
		t.Fatalf("balance after cancel = %d, want refunded 150", balance)
	}

	if err := svc.CancelPending(context.Background(), fx.order.ID, fx.user.ID); !errors.Is(err, ErrOrderNotReconcilable) {
		t.Fatalf("second cancel err = %v, want ErrOrderNotReconcilable", err)
	}

	if err := svc.CancelPending(context.Background(), uuid.New(), fx.user.ID); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("unknown order err = %v, want ErrOrderNotFound", err)
	}
}

func TestApplyUnknownOrder(t *testing.T) {
	db := openTestDB(t)
	svc := NewReconcileService(db, nil, 0, 90*24*time.Hour)

	_, err := svc.Apply(context.Background(), PaymentResult{
		OrderRef:      uuid.New().String(),
		TransactionID: "txn-unknown",
		Outcome:       OutcomeApproved,
	})
	if !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("err = %v, want ErrOrderNotFound", err)
	}
}
