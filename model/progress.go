package model

import (
	"encoding/json"
	"time"
)

// Progress mirrors the XP-bearing fields of User for fast reads.
// Mutations must go through ProgressService so both records move together.
type Progress struct {
	ID        string          `json:"id" gorm:"primaryKey"`
	UserID    string          `json:"user_id" gorm:"uniqueIndex;not null"`
	XP        int             `json:"xp" gorm:"default:0"`
	Level     int             `json:"level" gorm:"default:1"`
	Badges    json.RawMessage `json:"badges" gorm:"type:text"`     // JSON array of badge ids
	XPHistory json.RawMessage `json:"xp_history" gorm:"type:text"` // JSON array of XPHistoryEntry, newest last
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// XPHistoryEntry is one calendar-day bucket inside Progress.XPHistory.
type XPHistoryEntry struct {
	Date string `json:"date"` // YYYY-MM-DD
	XP   int    `json:"xp"`
}
