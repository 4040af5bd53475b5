package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/penny-labs/penny_api/shared"
)

type DailyQuestHandler struct {
	dailySvc DailyQuestServiceInterface
}

func NewDailyQuestHandler(dailySvc DailyQuestServiceInterface) *DailyQuestHandler {
	return &DailyQuestHandler{
		dailySvc: dailySvc,
	}
}

// @Summary Get Daily Quests
// @Description Get today's daily quest batch, creating and evaluating it as needed
// @Tags daily-quests
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response{data=dto.DailyQuestListResponse}
// @Router /api/v1/quests/daily [get]
func (h *DailyQuestHandler) GetToday(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)

	quests, err := h.dailySvc.GetToday(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", quests)
}

// @Summary Refresh Daily Quests
// @Description Re-evaluate today's daily quest progress against the spend ledger
// @Tags daily-quests
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response{data=dto.DailyQuestListResponse}
// @Router /api/v1/quests/daily/refresh [post]
func (h *DailyQuestHandler) Refresh(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)

	quests, err := h.dailySvc.Refresh(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", quests)
}

// @Summary Complete Daily Quest
// @Description Claim a daily quest once its requirement is met
// @Tags daily-quests
// @Accept json
// @Produce json
// @Param questId path string true "Daily Quest ID"
// @Success 200 {object} shared.Response{data=dto.CompleteDailyQuestResponse}
// @Router /api/v1/quests/daily/{questId}/complete [post]
func (h *DailyQuestHandler) Complete(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)
	questID := c.Params("questId")

	result, err := h.dailySvc.Complete(c.UserContext(), userID, questID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", result)
}
