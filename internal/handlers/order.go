package handlers

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/winora/internal/middleware"
	"github.com/example/winora/internal/models"
	"github.com/example/winora/internal/services"
	"github.com/example/winora/internal/utils"
)

// OrderHandler manages checkout and order endpoints.
type OrderHandler struct {
	db        *gorm.DB
	cart      *services.CartService
	g2pay     *services.G2PayService
	wallet    *services.WalletService
	reconcile *services.ReconcileService
}

// NewOrderHandler constructs OrderHandler.
func NewOrderHandler(db *gorm.DB, cart *services.CartService, g2pay *services.G2PayService, wallet *services.WalletService, reconcile *services.ReconcileService) *OrderHandler {
	return &OrderHandler{db: db, cart: cart, g2pay: g2pay, wallet: wallet, reconcile: reconcile}
}

type cartLineRequest struct {
	CompetitionID string `json:"competition_id" validate:"required,uuid"`
	TicketCount   int    `json:"ticket_count" validate:"required,min=1"`
	UnitPrice     int64  `json:"unit_price" validate:"min=0"`
}

type validateCartRequest struct {
	Lines []cartLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type checkoutRequest struct {
	Lines        []cartLineRequest `json:"lines" validate:"required,min=1,dive"`
	CreditAmount int64             `json:"credit_amount" validate:"min=0"`
	Currency     string            `json:"currency"`
	ReturnURL    string            `json:"return_url" validate:"required,url"`
}

// ValidateCart revalidates a cart against authoritative competition state
// without creating anything.
func (h *OrderHandler) ValidateCart(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req validateCartRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	lines, err := toCartLines(req.Lines)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	validated, err := h.cart.Validate(c.Context(), userID, lines)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": validated})
}

// Checkout validates the cart, applies wallet credit atomically with the order
// total, creates the pending order and returns the gateway redirect URL.
func (h *OrderHandler) Checkout(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req checkoutRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	lines, err := toCartLines(req.Lines)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	validated, err := h.cart.Validate(c.Context(), userID, lines)
	if err != nil {
		return err
	}
	if len(validated.Lines) == 0 {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{
			"success": false,
			"message": "no purchasable items in cart",
			"removed": validated.Removed,
			"reasons": validated.Reasons,
		})
	}

	currency := req.Currency
	if currency == "" {
		currency = "GBP"
	}

	orderNumber, err := generateOrderNumber()
	if err != nil {
		return err
	}

	var order models.Order
	err = h.db.WithContext(c.Context()).Transaction(func(tx *gorm.DB) error {
		applied := int64(0)
		if req.CreditAmount > 0 {
			balance, err := services.BalanceTx(tx, userID)
			if err != nil {
				return err
			}
			applied = services.ApplicableCredit(balance, validated.Subtotal, req.CreditAmount)
		}

		order = models.Order{
			UserID:        userID,
			OrderNumber:   orderNumber,
			Status:        models.OrderStatusPending,
			Subtotal:      validated.Subtotal,
			CreditApplied: applied,
			TotalAmount:   validated.Subtotal - applied,
			Currency:      currency,
			PlacedAt:      time.Now(),
		}
		for _, line := range validated.Lines {
			order.Items = append(order.Items, models.OrderItem{
				CompetitionID: line.CompetitionID,
				TicketCount:   line.TicketCount,
				UnitPrice:     line.UnitPrice,
				LineTotal:     line.UnitPrice * int64(line.TicketCount),
			})
		}
		if err := tx.Create(&order).Error; err != nil {
			return err
		}

		if applied > 0 {
			return services.ConsumeTx(tx, userID, applied, &order.ID, nil, "applied to order "+order.OrderNumber)
		}
		return nil
	})
	if err != nil {
		return err
	}

	checkoutURL := h.g2pay.BuildCheckoutURL(order.ID.String(), order.TotalAmount, currency, req.ReturnURL)

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":             order.ID,
			"order_number":   order.OrderNumber,
			"status":         order.Status,
			"subtotal":       order.Subtotal,
			"credit_applied": order.CreditApplied,
			"total_amount":   order.TotalAmount,
			"currency":       order.Currency,
			"checkout_url":   checkoutURL,
			"removed":        validated.Removed,
			"reasons":        validated.Reasons,
		},
	})
}

// CancelOrder cancels one of the user's pending orders, returning any applied
// credit to their wallet. Paid or failed orders cannot be cancelled.
func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	if err := h.reconcile.CancelPending(c.Context(), orderID, userID); err != nil {
		switch {
		case errors.Is(err, services.ErrOrderNotFound):
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		case errors.Is(err, services.ErrOrderNotReconcilable):
			return fiber.NewError(fiber.StatusConflict, "order is not pending")
		default:
			return err
		}
	}

	return c.JSON(fiber.Map{"success": true, "message": "order cancelled"})
}

// ListOrders returns the authenticated user's orders.
func (h *OrderHandler) ListOrders(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	pg := utils.ParsePagination(c)

	var total int64
	if err := h.db.Model(&models.Order{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return err
	}

	var orders []models.Order
	if err := h.db.
		Preload("Items").
		Where("user_id = ?", userID).
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

// GetOrder returns one of the user's orders with its tickets. The success page
// polls this endpoint until the webhook flips the status to paid.
func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	orderID, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid order id")
	}

	var order models.Order
	if err := h.db.
		Preload("Items").
		First(&order, "id = ? AND user_id = ?", orderID, userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return fiber.NewError(fiber.StatusNotFound, "order not found")
		}
		return err
	}

	var tickets []models.Ticket
	if err := h.db.Where("order_id = ?", order.ID).Order("ticket_number asc").Find(&tickets).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"order":   order,
			"tickets": tickets,
		},
	})
}

func toCartLines(reqs []cartLineRequest) ([]services.CartLine, error) {
	lines := make([]services.CartLine, 0, len(reqs))
	for _, r := range reqs {
		id, err := uuid.Parse(r.CompetitionID)
		if err != nil {
			return nil, fmt.Errorf("invalid competition id %q", r.CompetitionID)
		}
		lines = append(lines, services.CartLine{
			CompetitionID: id,
			TicketCount:   r.TicketCount,
			UnitPrice:     r.UnitPrice,
		})
	}
	return lines, nil
}

// generateOrderNumber returns a random reference like WN-3F09A1C24B. Random
// bytes rather than a clock so two checkouts can never mint the same number.
func generateOrderNumber() (string, error) {
	buf := make([]byte, 5)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return "WN-" + strings.ToUpper(hex.EncodeToString(buf)), nil
}
