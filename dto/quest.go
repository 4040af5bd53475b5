package dto

import (
	"strconv"
	"strings"

	"github.com/penny-labs/penny_api/model"
)

type QuestResponse struct {
	ID            string                `json:"id"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Type          string                `json:"type"`
	Difficulty    string                `json:"difficulty"`
	ContextSource string                `json:"context_source"`
	Questions     []model.QuestQuestion `json:"questions"`
	XPReward      int                   `json:"xp_reward"`
	Status        string                `json:"status"`
	CompletedAt   *string               `json:"completed_at,omitempty"`
	CreatedAt     string                `json:"created_at"`
}

type QuestListResponse struct {
	Quests    []QuestResponse `json:"quests"`
	Generated bool            `json:"generated"`
}

type CompleteQuestResponse struct {
	Quest    QuestResponse `json:"quest"`
	XPEarned int           `json:"xp_earned"`
	TotalXP  int           `json:"total_xp"`
}

// FlexInt accepts both a JSON number and a numeric string. Generated
// payloads are not consistent about which one they emit.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if s == "" || s == "null" {
		*f = 0
		return nil
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		// tolerate "1.0" style numbers
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return err
		}
		n = int(fl)
	}

	*f = FlexInt(n)
	return nil
}

// GeneratedQuest is the shape a generation call is asked to produce.
type GeneratedQuest struct {
	Title         string              `json:"title"`
	Description   string              `json:"description"`
	Type          string              `json:"type"`
	Difficulty    string              `json:"difficulty"`
	ContextSource string              `json:"context_source"`
	XPReward      FlexInt             `json:"xp_reward"`
	Questions     []GeneratedQuestion `json:"questions"`
}

type GeneratedQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer FlexInt  `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
}
