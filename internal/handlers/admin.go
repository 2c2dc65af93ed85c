package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/winora/internal/models"
	"github.com/example/winora/internal/services"
	"github.com/example/winora/internal/utils"
)

// AdminHandler manages admin-only endpoints: the dashboard, draws, payouts and
// withdrawal review.
type AdminHandler struct {
	db     *gorm.DB
	draws  *services.DrawService
	wallet *services.WalletService
}

// NewAdminHandler constructs AdminHandler.
func NewAdminHandler(db *gorm.DB, draws *services.DrawService, wallet *services.WalletService) *AdminHandler {
	return &AdminHandler{db: db, draws: draws, wallet: wallet}
}

// DashboardStats returns aggregate statistics for the admin dashboard.
func (h *AdminHandler) DashboardStats(c *fiber.Ctx) error {
	var totalUsers int64
	if err := h.db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		return err
	}

	var totalOrders int64
	if err := h.db.Model(&models.Order{}).Count(&totalOrders).Error; err != nil {
		return err
	}

	type statusCount struct {
		Status string `json:"status"`
		Count  int64  `json:"count"`
	}
	var statusCounts []statusCount
	if err := h.db.Model(&models.Order{}).
		Select("status, count(*) as count").
		Group("status").
		Scan(&statusCounts).Error; err != nil {
		return err
	}

	ordersByStatus := make(map[string]int64)
	for _, sc := range statusCounts {
		ordersByStatus[sc.Status] = sc.Count
	}

	var totalRevenue int64
	if err := h.db.Model(&models.Order{}).
		Where("status = ?", models.OrderStatusPaid).
		Select("COALESCE(SUM(total_amount), 0)").
		Scan(&totalRevenue).Error; err != nil {
		return err
	}

	var ticketsSoldToday int64
	if err := h.db.Model(&models.Ticket{}).
		Where("created_at::date = CURRENT_DATE").
		Count(&ticketsSoldToday).Error; err != nil {
		return err
	}

	var pendingWithdrawals int64
	if err := h.db.Model(&models.Withdrawal{}).
		Where("status = ?", models.WithdrawalStatusPending).
		Count(&pendingWithdrawals).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"total_users":         totalUsers,
			"total_orders":        totalOrders,
			"total_revenue":       totalRevenue,
			"tickets_sold_today":  ticketsSoldToday,
			"pending_withdrawals": pendingWithdrawals,
			"orders_by_status":    ordersByStatus,
		},
	})
}

// ListAllOrders returns all orders with pagination and filtering.
func (h *AdminHandler) ListAllOrders(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.Order{})

	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := c.Query("search"); search != "" {
		query = query.Where("order_number ILIKE ?", "%"+search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := query.
		Preload("Items").
		Preload("User").
		Order("placed_at desc").
		Limit(pg.Limit).
		Offset(pg.Offset).
		Find(&orders).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    orders,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

// ExecuteDraw runs the random draw for a competition.
func (h *AdminHandler) ExecuteDraw(c *fiber.Ctx) error {
	compID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid competition id")
	}

	draw, err := h.draws.Execute(c.Context(), compID)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrAlreadyDrawn):
			return fiber.NewError(fiber.StatusConflict, "competition already drawn")
		case errors.Is(err, services.ErrNoTicketsSold):
			return fiber.NewError(fiber.StatusUnprocessableEntity, "no tickets sold")
		case errors.Is(err, gorm.ErrRecordNotFound):
			return fiber.NewError(fiber.StatusNotFound, "competition not found")
		default:
			return err
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": draw})
}

// VerifyDraw recomputes a draw's integrity hash.
func (h *AdminHandler) VerifyDraw(c *fiber.Ctx) error {
	drawID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid draw id")
	}

	valid, err := h.draws.Verify(c.Context(), drawID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "draw not found")
		}
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"valid": valid}})
}

// ProcessPayouts settles all approved withdrawals.
func (h *AdminHandler) ProcessPayouts(c *fiber.Ctx) error {
	report, err := h.wallet.ProcessPayouts(c.Context())
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true, "data": report})
}

type reviewWithdrawalRequest struct {
	Action string `json:"action" validate:"required,oneof=approve reject"`
	Reason string `json:"reason"`
}

// ReviewWithdrawal approves or rejects a pending withdrawal. Rejection refunds
// the reserved balance.
func (h *AdminHandler) ReviewWithdrawal(c *fiber.Ctx) error {
	withdrawalID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid withdrawal id")
	}

	var req reviewWithdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if req.Action == "reject" {
		if err := h.wallet.RejectWithdrawal(c.Context(), withdrawalID, req.Reason, time.Now().Add(90*24*time.Hour)); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusNotFound, "withdrawal not found")
			}
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "withdrawal rejected"})
	}

	result := h.db.Model(&models.Withdrawal{}).
		Where("id = ? AND status = ?", withdrawalID, models.WithdrawalStatusPending).
		Update("status", models.WithdrawalStatusApproved)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusConflict, "withdrawal is not pending")
	}

	return c.JSON(fiber.Map{"success": true, "message": "withdrawal approved"})
}

// CheckFileUsage reports whether a media URL is still referenced before an
// admin deletes the underlying file.
func (h *AdminHandler) CheckFileUsage(c *fiber.Ctx) error {
	fileURL := strings.TrimSpace(c.Query("url"))
	if fileURL == "" {
		return fiber.NewError(fiber.StatusBadRequest, "url is required")
	}

	var competitionRefs int64
	if err := h.db.Model(&models.Competition{}).
		Where("image_url = ?", fileURL).
		Count(&competitionRefs).Error; err != nil {
		return err
	}

	var prizeRefs int64
	if err := h.db.Model(&models.Prize{}).
		Where("image_url = ?", fileURL).
		Count(&prizeRefs).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"in_use":           competitionRefs+prizeRefs > 0,
			"competition_refs": competitionRefs,
			"prize_refs":       prizeRefs,
		},
	})
}
