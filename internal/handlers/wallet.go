package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/example/winora/internal/middleware"
	"github.com/example/winora/internal/services"
)

// WalletHandler manages wallet balance, credit history and withdrawals.
type WalletHandler struct {
	wallet *services.WalletService
}

// NewWalletHandler constructs WalletHandler.
func NewWalletHandler(wallet *services.WalletService) *WalletHandler {
	return &WalletHandler{wallet: wallet}
}

// GetBalance returns the user's spendable (unexpired) balance.
func (h *WalletHandler) GetBalance(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	balance, err := h.wallet.Balance(c.Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"balance": balance}})
}

// ListCredits returns the user's credit entries.
func (h *WalletHandler) ListCredits(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	credits, err := h.wallet.ListCredits(c.Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": credits})
}

// ListTransactions returns the user's wallet ledger.
func (h *WalletHandler) ListTransactions(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	txns, err := h.wallet.ListTransactions(c.Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": txns})
}

type withdrawalRequest struct {
	Amount      int64  `json:"amount" validate:"required,min=1"`
	Method      string `json:"method" validate:"required,oneof=bank_transfer paypal"`
	Destination string `json:"destination" validate:"required"`
}

// RequestWithdrawal reserves balance and files a withdrawal request.
func (h *WalletHandler) RequestWithdrawal(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req withdrawalRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	withdrawal, err := h.wallet.RequestWithdrawal(c.Context(), userID, req.Amount, req.Method, req.Destination)
	if err != nil {
		if errors.Is(err, services.ErrInsufficientBalance) {
			return fiber.NewError(fiber.StatusPaymentRequired, "insufficient balance")
		}
		if errors.Is(err, services.ErrInvalidAmount) {
			return fiber.NewError(fiber.StatusBadRequest, "invalid amount")
		}
		return err
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": withdrawal})
}

// ListWithdrawals returns the user's withdrawal requests.
func (h *WalletHandler) ListWithdrawals(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	withdrawals, err := h.wallet.ListWithdrawals(c.Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": withdrawals})
}
