package handlers

import (
	"context"

	"github.com/penny-labs/penny_api/dto"
	"github.com/penny-labs/penny_api/model"
)

type QuestServiceInterface interface {
	ListActive(ctx context.Context, userID string) (*dto.QuestListResponse, error)
	Complete(ctx context.Context, userID, questID string) (*dto.CompleteQuestResponse, error)
	Reset(userID string) (int64, error)
}

type DailyQuestServiceInterface interface {
	GetToday(ctx context.Context, userID string) (*dto.DailyQuestListResponse, error)
	Refresh(ctx context.Context, userID string) (*dto.DailyQuestListResponse, error)
	Complete(ctx context.Context, userID, questID string) (*dto.CompleteDailyQuestResponse, error)
}

type ProgressServiceInterface interface {
	GetProgress(userID string) (*dto.ProgressResponse, error)
	Redeem(userID string, amount int) (*dto.RedeemResponse, error)
}

type TransactionServiceInterface interface {
	Create(userID string, req dto.CreateTransactionRequest) (*model.Transaction, error)
	List(userID string, limit int) (*dto.TransactionListResponse, error)
}

type PennyServiceInterface interface {
	GetTip(ctx context.Context) (*dto.PennyTipResponse, error)
	GetMessage(ctx context.Context, messageContext string) (*dto.PennyMessageResponse, error)
}
