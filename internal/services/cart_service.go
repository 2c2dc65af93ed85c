package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/winora/internal/models"
)

// CartLine is one competition entry in a submitted cart. UnitPrice is the
// price the client last saw, in minor units.
type CartLine struct {
	CompetitionID uuid.UUID `json:"competition_id"`
	TicketCount   int       `json:"ticket_count"`
	UnitPrice     int64     `json:"unit_price"`
}

// ValidatedCart is the result of revalidating a cart against authoritative
// competition state. Kept lines carry the authoritative price.
type ValidatedCart struct {
	Lines    []CartLine `json:"lines"`
	Removed  int        `json:"removed"`
	Reasons  []string   `json:"reasons,omitempty"`
	Repriced int        `json:"repriced"`
	Subtotal int64      `json:"subtotal"`
}

// CartService revalidates cart contents before checkout.
type CartService struct {
	db        *gorm.DB
	tolerance int64
}

func NewCartService(db *gorm.DB, tolerance int64) *CartService {
	return &CartService{db: db, tolerance: tolerance}
}

// Validate re-fetches each line's competition and drops lines that are no
// longer purchasable, reporting a reason for every removal. Lines whose price
// drifted within tolerance are repriced and kept.
func (s *CartService) Validate(ctx context.Context, userID uuid.UUID, lines []CartLine) (*ValidatedCart, error) {
	out := &ValidatedCart{}
	now := time.Now()

	for _, line := range lines {
		var comp models.Competition
		err := s.db.WithContext(ctx).First(&comp, "id = ?", line.CompetitionID).Error
		if err == gorm.ErrRecordNotFound {
			out.Removed++
			out.Reasons = append(out.Reasons, fmt.Sprintf("competition %s is no longer available", line.CompetitionID))
			continue
		}
		if err != nil {
			return nil, err
		}

		var owned int64
		if userID != uuid.Nil && comp.MaxTicketsPerUser > 0 {
			if err := s.db.WithContext(ctx).Model(&models.Ticket{}).
				Where("competition_id = ? AND user_id = ?", comp.ID, userID).
				Count(&owned).Error; err != nil {
				return nil, err
			}
		}

		decision := evaluateLine(&comp, int(owned), line, now, s.tolerance)
		if !decision.keep {
			out.Removed++
			out.Reasons = append(out.Reasons, decision.reason)
			continue
		}
		if decision.repriced {
			out.Repriced++
		}
		kept := line
		kept.UnitPrice = comp.TicketPrice
		out.Lines = append(out.Lines, kept)
		out.Subtotal += kept.UnitPrice * int64(kept.TicketCount)
	}

	return out, nil
}

type lineDecision struct {
	keep     bool
	repriced bool
	reason   string
}

// evaluateLine decides whether a single cart line survives revalidation.
func evaluateLine(comp *models.Competition, ownedTickets int, line CartLine, now time.Time, tolerance int64) lineDecision {
	if line.TicketCount <= 0 {
		return lineDecision{reason: fmt.Sprintf("%s: invalid ticket count", comp.Title)}
	}
	if comp.Status != models.CompetitionStatusActive {
		return lineDecision{reason: fmt.Sprintf("%s is no longer open for entries", comp.Title)}
	}
	if !comp.ClosesAt.IsZero() && !comp.ClosesAt.After(now) {
		return lineDecision{reason: fmt.Sprintf("%s has closed", comp.Title)}
	}
	if comp.SoldTickets+line.TicketCount > comp.TotalTickets {
		remaining := comp.TotalTickets - comp.SoldTickets
		if remaining <= 0 {
			return lineDecision{reason: fmt.Sprintf("%s is sold out", comp.Title)}
		}
		return lineDecision{reason: fmt.Sprintf("%s has only %d tickets left", comp.Title, remaining)}
	}
	if comp.MaxTicketsPerUser > 0 && ownedTickets+line.TicketCount > comp.MaxTicketsPerUser {
		return lineDecision{reason: fmt.Sprintf("%s allows at most %d tickets per player", comp.Title, comp.MaxTicketsPerUser)}
	}

	drift := comp.TicketPrice - line.UnitPrice
	if drift < 0 {
		drift = -drift
	}
	if drift > tolerance {
		return lineDecision{reason: fmt.Sprintf("%s price changed", comp.Title)}
	}
	return lineDecision{keep: true, repriced: drift != 0}
}
