package model

import (
	"encoding/json"
	"time"
)

// Quest is a generated learning quest with an embedded question set.
type Quest struct {
	ID            string          `json:"id" gorm:"primaryKey"`
	UserID        string          `json:"user_id" gorm:"not null;index"`
	Title         string          `json:"title" gorm:"not null"`
	Description   string          `json:"description" gorm:"type:text"`
	Type          string          `json:"type"`       // Spending Slayer, Asset Builder, Knowledge Heist, Lifestyle Pivot, General
	Difficulty    string          `json:"difficulty"` // Easy, Medium, Hard
	ContextSource string          `json:"context_source"`
	Questions     json.RawMessage `json:"questions" gorm:"type:text"` // JSON array of QuestQuestion
	XPReward      int             `json:"xp_reward" gorm:"default:50"`
	Status        string          `json:"status" gorm:"default:active;index"`
	CompletedAt   *time.Time      `json:"completed_at"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// QuestQuestion is one multiple-choice question inside a quest's Questions column.
type QuestQuestion struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Explanation   string   `json:"explanation,omitempty"`
}

// DailyQuest is one entry of a user's per-day quest batch.
type DailyQuest struct {
	ID               string     `json:"id" gorm:"primaryKey"`
	UserID           string     `json:"user_id" gorm:"not null;index"`
	Day              string     `json:"day" gorm:"not null;index"` // YYYY-MM-DD
	Title            string     `json:"title" gorm:"not null"`
	Description      string     `json:"description"`
	RequirementType  string     `json:"requirement_type"` // transaction_count, transaction_amount, account_check, custom
	RequirementValue float64    `json:"requirement_value"`
	Progress         float64    `json:"progress" gorm:"default:0"`
	XPReward         int        `json:"xp_reward"`
	Status           string     `json:"status" gorm:"default:active;index"`
	ExpiresAt        time.Time  `json:"expires_at"`
	CompletedAt      *time.Time `json:"completed_at"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}
