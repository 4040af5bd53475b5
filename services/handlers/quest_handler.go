package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/penny-labs/penny_api/shared"
)

type QuestHandler struct {
	questSvc QuestServiceInterface
}

func NewQuestHandler(questSvc QuestServiceInterface) *QuestHandler {
	return &QuestHandler{
		questSvc: questSvc,
	}
}

// @Summary List Active Quests
// @Description Get the user's active quests, generating a fresh batch when none exist
// @Tags quests
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response{data=dto.QuestListResponse}
// @Router /api/v1/quests [get]
func (h *QuestHandler) ListActive(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)

	quests, err := h.questSvc.ListActive(c.UserContext(), userID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", quests)
}

// @Summary Complete Quest
// @Description Mark a quest completed and award its XP
// @Tags quests
// @Accept json
// @Produce json
// @Param questId path string true "Quest ID"
// @Success 200 {object} shared.Response{data=dto.CompleteQuestResponse}
// @Router /api/v1/quests/{questId}/complete [post]
func (h *QuestHandler) Complete(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)
	questID := c.Params("questId")

	result, err := h.questSvc.Complete(c.UserContext(), userID, questID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", result)
}

// @Summary Reset Quests
// @Description Delete the user's active quests so the next list regenerates
// @Tags quests
// @Accept json
// @Produce json
// @Success 200 {object} shared.Response{data=fiber.Map}
// @Router /api/v1/quests [delete]
func (h *QuestHandler) Reset(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)

	deleted, err := h.questSvc.Reset(userID)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", fiber.Map{"deleted": deleted})
}
