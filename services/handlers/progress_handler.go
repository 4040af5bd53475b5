package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/penny-labs/penny_api/dto"
	"github.com/penny-labs/penny_api/shared"
)

type ProgressHandler struct {
	progressSvc ProgressServiceInterface
}

func NewProgressHandler(progressSvc ProgressServiceInterface) *ProgressHandler {
	return &ProgressHandler{
		progressSvc: progressSvc,
	}
}

// @Summary Get Progress
// @Description Get the user's merged progress view (xp, streak, history, badges)
// @Tags progress
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response{data=dto.ProgressResponse}
// @Router /api/v1/progress [get]
func (h *ProgressHandler) GetProgress(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)

	progress, err := h.progressSvc.GetProgress(userID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", progress)
}

// @Summary Redeem XP
// @Description Spend XP from the user's balance
// @Tags progress
// @Accept json
// @Produce json
// @Param redeemRequest body dto.RedeemRequest true "Redeem request"
// @Success 200 {object} shared.Response{data=dto.RedeemResponse}
// @Router /api/v1/progress/redeem [post]
func (h *ProgressHandler) Redeem(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)

	var req dto.RedeemRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request body")
	}

	if err := req.Validate(); err != nil {
		return shared.NewBadRequestError(err, "Invalid redeem request")
	}

	result, err := h.progressSvc.Redeem(userID, req.Amount)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", result)
}
