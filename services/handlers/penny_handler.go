package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/penny-labs/penny_api/shared"
)

type PennyHandler struct {
	pennySvc PennyServiceInterface
}

func NewPennyHandler(pennySvc PennyServiceInterface) *PennyHandler {
	return &PennyHandler{
		pennySvc: pennySvc,
	}
}

// @Summary Get Money Tip
// @Description Get Penny's money tip of the hour
// @Tags penny
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response{data=dto.PennyTipResponse}
// @Router /api/v1/penny/tip [get]
func (h *PennyHandler) GetTip(c *fiber.Ctx) error {
	tip, err := h.pennySvc.GetTip(c.UserContext())
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", tip)
}

// @Summary Get Penny Message
// @Description Get a short mascot message for a UI context
// @Tags penny
// @Accept json
// @Produce json
// @Param context query string false "Message context (quest_complete, streak, overspend, welcome)"
// @Success 200 {object} shared.Response{data=dto.PennyMessageResponse}
// @Router /api/v1/penny/message [get]
func (h *PennyHandler) GetMessage(c *fiber.Ctx) error {
	messageContext := c.Query("context", "welcome")

	message, err := h.pennySvc.GetMessage(c.UserContext(), messageContext)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", message)
}
