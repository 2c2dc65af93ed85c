package models

import (
	"time"

	"github.com/google/uuid"
)

// Order statuses. An order leaves pending exactly once.
const (
	OrderStatusPending       = "pending"
	OrderStatusPaid          = "paid"
	OrderStatusPaymentFailed = "payment_failed"
	OrderStatusCancelled     = "cancelled"
)

// Order is a checkout submission. All amounts are minor currency units.
type Order struct {
	BaseModel
	UserID        uuid.UUID   `gorm:"type:uuid;index" json:"user_id"`
	User          *User       `json:"user,omitempty"`
	OrderNumber   string      `gorm:"uniqueIndex" json:"order_number"`
	Status        string      `gorm:"index" json:"status"`
	Subtotal      int64       `json:"subtotal"`
	CreditApplied int64       `json:"credit_applied"`
	TotalAmount   int64       `json:"total_amount"`
	Currency      string      `json:"currency"`
	TransactionID string      `json:"transaction_id"`
	RawCallback   []byte      `gorm:"type:jsonb" json:"raw_callback,omitempty"`
	PlacedAt      time.Time   `json:"placed_at"`
	PaidAt        *time.Time  `json:"paid_at"`
	Items         []OrderItem `json:"items,omitempty"`
}

// OrderItem is one competition line inside an order.
type OrderItem struct {
	BaseModel
	OrderID       uuid.UUID    `gorm:"type:uuid;index" json:"order_id"`
	CompetitionID uuid.UUID    `gorm:"type:uuid;index" json:"competition_id"`
	Competition   *Competition `json:"competition,omitempty"`
	TicketCount   int          `json:"ticket_count"`
	UnitPrice     int64        `json:"unit_price"`
	LineTotal     int64        `json:"line_total"`
}

// PaymentEvent is an audit row for every webhook delivery the gateway sends,
// including duplicates and rejected ones.
type PaymentEvent struct {
	BaseModel
	Provider      string     `gorm:"index" json:"provider"`
	OrderID       *uuid.UUID `gorm:"type:uuid;index" json:"order_id"`
	TransactionID string     `gorm:"index" json:"transaction_id"`
	Status        string     `json:"status"`
	Amount        int64      `json:"amount"`
	Outcome       string     `json:"outcome"` // applied, duplicate, ignored, rejected
	RawPayload    []byte     `gorm:"type:jsonb" json:"raw_payload,omitempty"`
}
