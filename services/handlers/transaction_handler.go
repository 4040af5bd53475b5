package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/penny-labs/penny_api/dto"
	"github.com/penny-labs/penny_api/shared"
)

type TransactionHandler struct {
	transactionSvc TransactionServiceInterface
}

func NewTransactionHandler(transactionSvc TransactionServiceInterface) *TransactionHandler {
	return &TransactionHandler{
		transactionSvc: transactionSvc,
	}
}

// @Summary List Transactions
// @Description Get the user's locally recorded transactions, newest first
// @Tags transactions
// @Accept json
// @Produce json
// @Param limit query int false "Max transactions to return (default 50)"
// @Success 200 {object} shared.Response{data=dto.TransactionListResponse}
// @Router /api/v1/transactions [get]
func (h *TransactionHandler) List(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)
	limit := c.QueryInt("limit", 50)

	transactions, err := h.transactionSvc.List(userID, limit)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusOK, "Success", transactions)
}

// @Summary Record Transaction
// @Description Record a local spend event
// @Tags transactions
// @Accept json
// @Produce json
// @Param transaction body dto.CreateTransactionRequest true "Transaction"
// @Success 201 {object} shared.Response{data=model.Transaction}
// @Router /api/v1/transactions [post]
func (h *TransactionHandler) Create(c *fiber.Ctx) error {
	userID := c.Locals(shared.UserID).(string)

	var req dto.CreateTransactionRequest
	if err := c.BodyParser(&req); err != nil {
		return shared.NewBadRequestError(err, "Invalid request body")
	}

	transaction, err := h.transactionSvc.Create(userID, req)
	if err != nil {
		return err
	}

	return shared.ResponseJSON(c, fiber.StatusCreated, "Created", transaction)
}
