package models

import (
	"time"

	"github.com/google/uuid"
)

// Wallet credit sources.
const (
	CreditSourcePrize    = "prize"
	CreditSourceReferral = "referral"
	CreditSourceRefund   = "refund"
	CreditSourceManual   = "manual"
)

// Withdrawal statuses.
const (
	WithdrawalStatusPending  = "pending"
	WithdrawalStatusApproved = "approved"
	WithdrawalStatusPaid     = "paid"
	WithdrawalStatusRejected = "rejected"
)

// WalletCredit is a store-credit balance unit with an expiry. Remaining is
// decremented as the credit is spent and never goes below zero.
type WalletCredit struct {
	BaseModel
	UserID    uuid.UUID `gorm:"type:uuid;index" json:"user_id"`
	Source    string    `json:"source"`
	Amount    int64     `json:"amount"`
	Remaining int64     `json:"remaining"`
	ExpiresAt time.Time `gorm:"index" json:"expires_at"`
}

// WalletTransaction is the append-only ledger of wallet movements.
type WalletTransaction struct {
	BaseModel
	UserID       uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	Type         string     `json:"type"` // credit, debit, withdrawal
	Amount       int64      `json:"amount"`
	OrderID      *uuid.UUID `gorm:"type:uuid" json:"order_id"`
	WithdrawalID *uuid.UUID `gorm:"type:uuid" json:"withdrawal_id"`
	Note         string     `json:"note"`
}

// Withdrawal is a user request to cash out wallet balance.
type Withdrawal struct {
	BaseModel
	UserID      uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	Amount      int64      `json:"amount"`
	Status      string     `gorm:"index" json:"status"`
	Method      string     `json:"method"`
	Destination string     `json:"destination"`
	ProcessedAt *time.Time `json:"processed_at"`
	FailReason  string     `json:"fail_reason"`
}
