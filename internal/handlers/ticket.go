package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/example/winora/internal/middleware"
	"github.com/example/winora/internal/models"
	"github.com/example/winora/internal/utils"
)

// TicketHandler manages a user's purchased tickets.
type TicketHandler struct {
	db *gorm.DB
}

// NewTicketHandler constructs TicketHandler.
func NewTicketHandler(db *gorm.DB) *TicketHandler {
	return &TicketHandler{db: db}
}

// ListTickets returns the authenticated user's tickets, newest first.
func (h *TicketHandler) ListTickets(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Ticket{}).Where("user_id = ?", userID)

	if compID := c.Query("competition_id"); compID != "" {
		parsed, err := uuid.Parse(compID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid competition_id")
		}
		query = query.Where("competition_id = ?", parsed)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var tickets []models.Ticket
	if err := query.
		Order("created_at desc").
		Limit(pg.Limit).
		Offset(pg.Offset).
		Find(&tickets).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    tickets,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// Reveal marks a ticket revealed and returns its instant-win prize, if any.
// Revealing is one-way; a second call returns the same result.
func (h *TicketHandler) Reveal(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	ticketID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid ticket id")
	}

	var ticket models.Ticket
	err = h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&ticket, "id = ? AND user_id = ?", ticketID, userID).Error; err != nil {
			return err
		}
		if ticket.Revealed {
			return nil
		}
		now := time.Now()
		if err := tx.Model(&models.Ticket{}).
			Where("id = ?", ticket.ID).
			Updates(map[string]any{
				"revealed":    true,
				"revealed_at": &now,
			}).Error; err != nil {
			return err
		}
		ticket.Revealed = true
		ticket.RevealedAt = &now
		return nil
	})
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "ticket not found")
		}
		return err
	}

	response := fiber.Map{"ticket": ticket}
	if ticket.InstantWinID != nil {
		var win models.InstantWin
		if err := h.db.Preload("Prize").First(&win, "id = ?", *ticket.InstantWinID).Error; err == nil {
			response["instant_win"] = win
		}
	}

	return c.JSON(fiber.Map{"success": true, "data": response})
}
