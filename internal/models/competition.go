package models

import (
	"time"

	"github.com/google/uuid"
)

// Competition statuses.
const (
	CompetitionStatusDraft  = "draft"
	CompetitionStatusActive = "active"
	CompetitionStatusClosed = "closed"
	CompetitionStatusDrawn  = "drawn"
)

// Competition is a single prize competition selling numbered tickets.
// TicketPrice is in minor currency units.
type Competition struct {
	BaseModel
	Title             string     `json:"title"`
	Slug              string     `gorm:"uniqueIndex" json:"slug"`
	Description       string     `json:"description"`
	ImageURL          string     `json:"image_url"`
	TicketPrice       int64      `json:"ticket_price"`
	TotalTickets      int        `json:"total_tickets"`
	SoldTickets       int        `json:"sold_tickets"`
	MaxTicketsPerUser int        `json:"max_tickets_per_user"`
	Status            string     `gorm:"index" json:"status"`
	ClosesAt          time.Time  `json:"closes_at"`
	DrawnAt           *time.Time `json:"drawn_at"`
	Prizes            []Prize    `json:"prizes,omitempty"`
}

// Prize describes what a competition winner receives. Cash-alternative and
// wallet-credit prizes carry CreditAmount in minor units.
type Prize struct {
	BaseModel
	CompetitionID uuid.UUID `gorm:"type:uuid;index" json:"competition_id"`
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	ImageURL      string    `json:"image_url"`
	Kind          string    `json:"kind"` // physical, cash, credit
	CreditAmount  int64     `json:"credit_amount"`
}

// InstantWin maps a ticket number to a prize revealed immediately on purchase.
type InstantWin struct {
	BaseModel
	CompetitionID uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_instant_win_number" json:"competition_id"`
	TicketNumber  int        `gorm:"uniqueIndex:idx_instant_win_number" json:"ticket_number"`
	PrizeID       uuid.UUID  `gorm:"type:uuid" json:"prize_id"`
	Prize         *Prize     `json:"prize,omitempty"`
	WonByUserID   *uuid.UUID `gorm:"type:uuid" json:"won_by_user_id"`
	WonAt         *time.Time `json:"won_at"`
}
