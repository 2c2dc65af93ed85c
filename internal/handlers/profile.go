package handlers

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/example/winora/internal/middleware"
	"github.com/example/winora/internal/models"
	"github.com/example/winora/internal/services"
)

// ProfileHandler manages user profile and referral endpoints.
type ProfileHandler struct {
	db        *gorm.DB
	referrals *services.ReferralService
}

// NewProfileHandler constructs ProfileHandler.
func NewProfileHandler(db *gorm.DB, referrals *services.ReferralService) *ProfileHandler {
	return &ProfileHandler{db: db, referrals: referrals}
}

// GetProfile returns the authenticated user's profile.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var user models.User
	if err := h.db.First(&user, "id = ?", userID).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data": fiber.Map{
			"id":           user.ID,
			"first_name":   user.FirstName,
			"last_name":    user.LastName,
			"display_name": user.DisplayName,
			"email":        user.Email,
			"created_at":   user.CreatedAt,
			"updated_at":   user.UpdatedAt,
		},
	})
}

type updateProfileRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	DisplayName string `json:"display_name"`
}

// UpdateProfile updates user profile fields.
func (h *ProfileHandler) UpdateProfile(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req updateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	updates := map[string]interface{}{}
	if req.FirstName != "" {
		updates["first_name"] = req.FirstName
	}
	if req.LastName != "" {
		updates["last_name"] = req.LastName
	}
	if req.DisplayName != "" {
		updates["display_name"] = req.DisplayName
	}
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}
	updates["updated_at"] = time.Now()

	if err := h.db.Model(&models.User{}).Where("id = ?", userID).Updates(updates).Error; err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "message": "profile updated"})
}

// GetReferralCode returns the user's referral code, creating it on first use.
func (h *ProfileHandler) GetReferralCode(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	code, err := h.referrals.GetOrCreateCode(c.Context(), userID)
	if err != nil {
		return err
	}

	return c.JSON(fiber.Map{"success": true, "data": fiber.Map{"code": code}})
}

type claimReferralRequest struct {
	Code string `json:"code" validate:"required"`
}

// ClaimReferral records which code the user arrived with. The attribution
// expires after the configured window and the bonus is granted when the user's
// first order is paid.
func (h *ProfileHandler) ClaimReferral(c *fiber.Ctx) error {
	userID, ok := middleware.GetCurrentUserID(c)
	if !ok {
		return fiber.NewError(fiber.StatusUnauthorized, "unauthorized")
	}

	var req claimReferralRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if err := validate.Struct(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	attribution, err := h.referrals.Attribute(c.Context(), userID, req.Code)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnknownReferralCode):
			return fiber.NewError(fiber.StatusNotFound, "unknown referral code")
		case errors.Is(err, services.ErrSelfReferral):
			return fiber.NewError(fiber.StatusBadRequest, "cannot use own referral code")
		case errors.Is(err, services.ErrAlreadyAttributed):
			return fiber.NewError(fiber.StatusConflict, "referral already claimed")
		default:
			return err
		}
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"success": true, "data": attribution})
}
