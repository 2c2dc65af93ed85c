package handlers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/winora/internal/models"
	"github.com/example/winora/internal/services"
	"github.com/example/winora/internal/utils"
)

// G2PayHandler receives the gateway's asynchronous payment notifications.
type G2PayHandler struct {
	db        *gorm.DB
	g2pay     *services.G2PayService
	reconcile *services.ReconcileService
}

func NewG2PayHandler(db *gorm.DB, g2pay *services.G2PayService, reconcile *services.ReconcileService) *G2PayHandler {
	return &G2PayHandler{db: db, g2pay: g2pay, reconcile: reconcile}
}

// Callback handles the canonical form-encoded notification. The gateway signs
// the posted fields with responseChecksum; an invalid or missing signature is
// rejected before any state is touched.
func (h *G2PayHandler) Callback(c *fiber.Ctx) error {
	fields := map[string]string{}
	c.Request().PostArgs().VisitAll(func(key, value []byte) {
		fields[string(key)] = string(value)
	})

	signature := fields[services.ChecksumField]
	if signature == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing signature")
	}
	if !h.g2pay.VerifyChecksum(fields, signature) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid signature")
	}

	status := fields["Status"]
	if status == "" {
		status = fields["ppp_status"]
	}
	orderRef := fields["clientUniqueId"]
	if orderRef == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing order reference")
	}

	amount, _ := strconv.ParseInt(strings.TrimSpace(fields["totalAmount"]), 10, 64)

	result := services.PaymentResult{
		OrderRef:      orderRef,
		TransactionID: fields["TransactionID"],
		Outcome:       services.MapTransactionStatus(status),
		Amount:        amount,
		RawPayload:    encodeFields(fields),
	}

	if _, err := h.reconcile.Apply(c.Context(), result); err != nil {
		return reconcileError(err)
	}

	return c.SendString("OK")
}

type g2payWebhookRequest struct {
	TransactionStatus string `json:"transactionStatus"`
	TransactionID     string `json:"transactionId"`
	ClientUniqueID    string `json:"clientUniqueId"`
	Amount            int64  `json:"amount"`
	Checksum          string `json:"checksum"`
}

// Webhook handles the JSON notification contract. The original integration
// trusted this body unsigned; here it carries a checksum over the same scheme
// as the form callback and converges on the same reconciliation path.
func (h *G2PayHandler) Webhook(c *fiber.Ctx) error {
	var req g2payWebhookRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	if req.Checksum == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing signature")
	}

	fields := map[string]string{
		"transactionStatus": req.TransactionStatus,
		"transactionId":     req.TransactionID,
		"clientUniqueId":    req.ClientUniqueID,
		"amount":            strconv.FormatInt(req.Amount, 10),
	}
	if !h.g2pay.VerifyChecksum(fields, req.Checksum) {
		return fiber.NewError(fiber.StatusBadRequest, "invalid signature")
	}

	if req.ClientUniqueID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "missing order reference")
	}

	result := services.PaymentResult{
		OrderRef:      req.ClientUniqueID,
		TransactionID: req.TransactionID,
		Outcome:       services.MapTransactionStatus(req.TransactionStatus),
		Amount:        req.Amount,
		RawPayload:    c.Body(),
	}

	if _, err := h.reconcile.Apply(c.Context(), result); err != nil {
		return reconcileError(err)
	}

	return c.JSON(fiber.Map{"success": true})
}

// ListEvents returns the webhook audit trail, optionally filtered.
func (h *G2PayHandler) ListEvents(c *fiber.Ctx) error {
	pg := utils.ParsePagination(c)
	query := h.db.Model(&models.PaymentEvent{})

	if outcome := strings.TrimSpace(c.Query("outcome")); outcome != "" {
		query = query.Where("outcome = ?", outcome)
	}
	if orderID := strings.TrimSpace(c.Query("order_id")); orderID != "" {
		parsed, err := uuid.Parse(orderID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid order_id")
		}
		query = query.Where("order_id = ?", parsed)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return err
	}

	var events []models.PaymentEvent
	if err := query.
		Order("created_at desc").
		Limit(pg.Limit).
		Offset(pg.Offset).
		Find(&events).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    events,
		"pagination": fiber.Map{
			"current_page":   pg.Page,
			"items_per_page": pg.Limit,
			"total_items":    total,
		},
	})
}

func reconcileError(err error) error {
	switch {
	case errors.Is(err, services.ErrOrderNotFound):
		return fiber.NewError(fiber.StatusNotFound, "order not found")
	case errors.Is(err, services.ErrOrderNotReconcilable):
		return fiber.NewError(fiber.StatusConflict, "order is not pending")
	case errors.Is(err, services.ErrUnsupportedStatus):
		return fiber.NewError(fiber.StatusBadRequest, "unsupported transaction status")
	default:
		return err
	}
}

// encodeFields serializes the callback fields for the audit trail.
func encodeFields(fields map[string]string) []byte {
	raw, err := json.Marshal(fields)
	if err != nil {
		return nil
	}
	return raw
}
