package handlers

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/winora/internal/models"
	"github.com/example/winora/internal/utils"
)

// CompetitionHandler manages the competition catalog.
type CompetitionHandler struct {
	db *gorm.DB
}

// NewCompetitionHandler constructs CompetitionHandler.
func NewCompetitionHandler(db *gorm.DB) *CompetitionHandler {
	return &CompetitionHandler{db: db}
}

// ListCompetitions returns the storefront listing. Non-admin callers only see
// active and drawn competitions.
func (h *CompetitionHandler) ListCompetitions(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Competition{})

	if status := strings.TrimSpace(c.Query("status")); status != "" {
		query = query.Where("status = ?", status)
	} else {
		query = query.Where("status IN ?", []string{models.CompetitionStatusActive, models.CompetitionStatusDrawn})
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var competitions []models.Competition
	if err := query.
		Preload("Prizes").
		Order("closes_at asc").
		Limit(pg.Limit).
		Offset(pg.Offset).
		Find(&competitions).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    competitions,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// GetCompetition returns one competition by id or slug.
func (h *CompetitionHandler) GetCompetition(c *fiber.Ctx) error {
	ref := c.Params("id")

	var comp models.Competition
	query := h.db.Preload("Prizes")
	if id, err := uuid.Parse(ref); err == nil {
		err = query.First(&comp, "id = ?", id).Error
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "competition not found")
		}
		if err != nil {
			return err
		}
	} else {
		err = query.First(&comp, "slug = ?", ref).Error
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "competition not found")
		}
		if err != nil {
			return err
		}
	}

	return c.JSON(fiber.Map{"success": true, "data": comp})
}

type competitionRequest struct {
	Title             string `json:"title" validate:"required"`
	Slug              string `json:"slug" validate:"required"`
	Description       string `json:"description"`
	ImageURL          string `json:"image_url"`
	TicketPrice       int64  `json:"ticket_price" validate:"required,min=1"`
	TotalTickets      int    `json:"total_tickets" validate:"required,min=1"`
	MaxTicketsPerUser int    `json:"max_tickets_per_user" validate:"min=0"`
	Status            string `json:"status" validate:"omitempty,oneof=draft active closed"`
	ClosesAt          string `json:"closes_at" validate:"required"`
}

// CreateCompetition creates a competition (admin only).
func (h *CompetitionHandler) CreateCompetition(c *fiber.Ctx) error {
	var req competitionRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	closesAt, err := time.Parse(time.RFC3339, req.ClosesAt)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "closes_at must be RFC3339")
	}

	status := req.Status
	if status == "" {
		status = models.CompetitionStatusDraft
	}

	comp := models.Competition{
		Title:             req.Title,
		Slug:              req.Slug,
		Description:       req.Description,
		ImageURL:          req.ImageURL,
		TicketPrice:       req.TicketPrice,
		TotalTickets:      req.TotalTickets,
		MaxTicketsPerUser: req.MaxTicketsPerUser,
		Status:            status,
		ClosesAt:          closesAt,
	}

	if err := h.db.Create(&comp).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": comp})
}

// UpdateCompetition updates mutable competition fields (admin only). Sold
// counters and drawn state are owned by the reconciler and draw service.
func (h *CompetitionHandler) UpdateCompetition(c *fiber.Ctx) error {
	compID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid competition id")
	}

	var body map[string]any
	if err := c.BodyParser(&body); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]any{}
	for _, field := range []string{"title", "description", "image_url", "status"} {
		if v, ok := body[field]; ok {
			updates[field] = v
		}
	}
	if v, ok := body["closes_at"].(string); ok {
		closesAt, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "closes_at must be RFC3339")
		}
		updates["closes_at"] = closesAt
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}
	updates["updated_at"] = time.Now()

	result := h.db.Model(&models.Competition{}).Where("id = ?", compID).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "competition not found")
	}

	return c.JSON(fiber.Map{"success": true, "message": "competition updated"})
}

type prizeRequest struct {
	Name         string `json:"name" validate:"required"`
	Description  string `json:"description"`
	ImageURL     string `json:"image_url"`
	Kind         string `json:"kind" validate:"required,oneof=physical cash credit"`
	CreditAmount int64  `json:"credit_amount" validate:"min=0"`
}

// CreatePrize attaches a prize to a competition (admin only).
func (h *CompetitionHandler) CreatePrize(c *fiber.Ctx) error {
	compID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid competition id")
	}

	var req prizeRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	prize := models.Prize{
		CompetitionID: compID,
		Name:          req.Name,
		Description:   req.Description,
		ImageURL:      req.ImageURL,
		Kind:          req.Kind,
		CreditAmount:  req.CreditAmount,
	}
	if err := h.db.Create(&prize).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": prize})
}

type instantWinRequest struct {
	TicketNumber int    `json:"ticket_number" validate:"required,min=1"`
	PrizeID      string `json:"prize_id" validate:"required,uuid"`
}

// CreateInstantWin seeds an instant-win ticket number (admin only).
func (h *CompetitionHandler) CreateInstantWin(c *fiber.Ctx) error {
	compID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid competition id")
	}

	var req instantWinRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	prizeID, _ := uuid.Parse(req.PrizeID)

	var comp models.Competition
	if err := h.db.First(&comp, "id = ?", compID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "competition not found")
		}
		return err
	}
	if req.TicketNumber > comp.TotalTickets {
		return fiber.NewError(fiber.StatusBadRequest, "ticket number exceeds competition size")
	}

	win := models.InstantWin{
		CompetitionID: compID,
		TicketNumber:  req.TicketNumber,
		PrizeID:       prizeID,
	}
	if err := h.db.Create(&win).Error; err != nil {
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": win})
}
