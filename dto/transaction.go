package dto

import "github.com/penny-labs/penny_api/model"

type CreateTransactionRequest struct {
	Amount      float64 `json:"amount" validate:"required,gt=0"`
	Description string  `json:"description" validate:"max=500"`
	Category    string  `json:"category" validate:"max=100"`
	Merchant    string  `json:"merchant" validate:"max=200"`
	OccurredAt  string  `json:"occurred_at" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

func (r CreateTransactionRequest) Validate() error {
	return GetValidator().Struct(r)
}

type TransactionListResponse struct {
	Transactions []model.Transaction `json:"transactions"`
	Total        int                 `json:"total"`
}
