package model

import "time"

// Transaction is a locally recorded spend event, used as the fallback
// ledger when the external purchases API is unreachable.
type Transaction struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	UserID      string    `json:"user_id" gorm:"not null;index"`
	Amount      float64   `json:"amount" gorm:"not null"`
	Description string    `json:"description"`
	Category    string    `json:"category"`
	Merchant    string    `json:"merchant"`
	OccurredAt  time.Time `json:"occurred_at" gorm:"index"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
