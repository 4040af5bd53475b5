package dto

type DailyQuestResponse struct {
	ID               string  `json:"id"`
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	RequirementType  string  `json:"requirement_type"`
	RequirementValue float64 `json:"requirement_value"`
	Progress         float64 `json:"progress"`
	XPReward         int     `json:"xp_reward"`
	Status           string  `json:"status"`
	ExpiresAt        string  `json:"expires_at"`
	CompletedAt      *string `json:"completed_at,omitempty"`
}

type DailyQuestListResponse struct {
	Day    string               `json:"day"`
	Quests []DailyQuestResponse `json:"quests"`
}

type CompleteDailyQuestResponse struct {
	Quest    DailyQuestResponse `json:"quest"`
	XPEarned int                `json:"xp_earned"`
	DailyXP  int                `json:"daily_xp"`
	TotalXP  int                `json:"total_xp"`
}
