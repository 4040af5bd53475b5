package model

import (
	"encoding/json"
	"time"
)

type User struct {
	ID              string          `json:"id" gorm:"primaryKey"`
	Email           string          `json:"email" gorm:"unique"`
	Username        string          `json:"username" gorm:"unique;not null"`
	AccountID       string          `json:"account_id"` // external ledger account id
	XP              int             `json:"xp" gorm:"default:0"`
	DailyXP         int             `json:"daily_xp" gorm:"default:0"`
	DailyGoal       int             `json:"daily_goal" gorm:"default:100"`
	Streak          int             `json:"streak" gorm:"default:0"`
	Hearts          int             `json:"hearts" gorm:"default:5"`
	Gems            int             `json:"gems" gorm:"default:0"`
	CompletedQuests json.RawMessage `json:"completed_quests" gorm:"type:text"` // JSON array of quest ids
	LastActive      *time.Time      `json:"last_active"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}
