package dto

import "github.com/penny-labs/penny_api/model"

type ProgressResponse struct {
	UserID          string                 `json:"user_id"`
	XP              int                    `json:"xp"`
	Level           int                    `json:"level"`
	DailyXP         int                    `json:"daily_xp"`
	DailyGoal       int                    `json:"daily_goal"`
	Streak          int                    `json:"streak"`
	Hearts          int                    `json:"hearts"`
	Gems            int                    `json:"gems"`
	Badges          []string               `json:"badges"`
	XPHistory       []model.XPHistoryEntry `json:"xp_history"`
	CompletedQuests []string               `json:"completed_quests"`
	LastActive      *string                `json:"last_active,omitempty"`
}

type RedeemRequest struct {
	Amount int    `json:"amount" validate:"required,gt=0"`
	Reason string `json:"reason" validate:"max=200"`
}

func (r RedeemRequest) Validate() error {
	return GetValidator().Struct(r)
}

type RedeemResponse struct {
	Redeemed    int `json:"redeemed"`
	RemainingXP int `json:"remaining_xp"`
}
