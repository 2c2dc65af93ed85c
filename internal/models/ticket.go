package models

import (
	"time"

	"github.com/google/uuid"
)

// Ticket is one purchased competition entry. Allocation happens only after the
// owning order transitions to paid; the unique index below backstops the
// idempotency guard in the reconciler.
type Ticket struct {
	BaseModel
	CompetitionID uuid.UUID  `gorm:"type:uuid;uniqueIndex:idx_ticket_number" json:"competition_id"`
	TicketNumber  int        `gorm:"uniqueIndex:idx_ticket_number" json:"ticket_number"`
	OrderID       uuid.UUID  `gorm:"type:uuid;index" json:"order_id"`
	UserID        uuid.UUID  `gorm:"type:uuid;index" json:"user_id"`
	InstantWinID  *uuid.UUID `gorm:"type:uuid" json:"instant_win_id"`
	Revealed      bool       `json:"revealed"`
	RevealedAt    *time.Time `json:"revealed_at"`
}
