package services

import (
	"time"

	appContext "github.com/alphabatem/common/context"

	"github.com/penny-labs/penny_api/dto"
	"github.com/penny-labs/penny_api/model"
	"github.com/penny-labs/penny_api/shared"
)

// TransactionService records and lists local spend events. These back
// the ledger fallback, so users without an external account still get
// spending-aware quests.
type TransactionService struct {
	appContext.DefaultService

	sqlSvc *PostgresService
}

const TRANSACTION_SVC = "transaction_svc"

func (svc TransactionService) Id() string {
	return TRANSACTION_SVC
}

func (svc *TransactionService) Start() error {
	svc.sqlSvc = svc.Service(POSTGRES_SVC).(*PostgresService)
	return nil
}

func (svc *TransactionService) Create(userID string, req dto.CreateTransactionRequest) (*model.Transaction, error) {
	if err := req.Validate(); err != nil {
		return nil, shared.NewBadRequestError(err, "Invalid transaction")
	}

	now := time.Now()
	occurredAt := now
	if req.OccurredAt != "" {
		parsed, err := time.Parse(time.RFC3339, req.OccurredAt)
		if err != nil {
			return nil, shared.NewBadRequestError(err, "Invalid occurred_at timestamp")
		}
		occurredAt = parsed
	}

	tx := &model.Transaction{
		ID:          newID(),
		UserID:      userID,
		Amount:      req.Amount,
		Description: req.Description,
		Category:    req.Category,
		Merchant:    req.Merchant,
		OccurredAt:  occurredAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := svc.sqlSvc.CreateTransaction(tx); err != nil {
		return nil, svc.sqlSvc.HandleError(err)
	}

	return tx, nil
}

func (svc *TransactionService) List(userID string, limit int) (*dto.TransactionListResponse, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	txs, err := svc.sqlSvc.GetRecentTransactions(userID, limit)
	if err != nil {
		return nil, svc.sqlSvc.HandleError(err)
	}

	return &dto.TransactionListResponse{
		Transactions: txs,
		Total:        len(txs),
	}, nil
}
