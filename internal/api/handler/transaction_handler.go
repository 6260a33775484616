package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/starlynx/utility-ledger/internal/domain/account"
	"github.com/starlynx/utility-ledger/internal/engine"
)

// TransactionHandler handles HTTP requests for ledger operations
type TransactionHandler struct {
	engine LedgerService
	logger *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, engine LedgerService) *TransactionHandler {
	return &TransactionHandler{
		engine: engine,
		logger: logger,
	}
}

// Deposit credits an account
func (h *TransactionHandler) Deposit(c *gin.Context) {
	accountID, req, ok := h.bindMovement(c)
	if !ok {
		return
	}

	result, err := h.engine.Deposit(c.Request.Context(), accountID, req.Amount, req.Currency, req.Description)
	if err != nil {
		h.respondOperationError(c, err)
		return
	}

	RespondOK(c, mapResultToResponse(result))
}

// Withdraw debits an account, rejecting debits that would overdraw it
func (h *TransactionHandler) Withdraw(c *gin.Context) {
	accountID, req, ok := h.bindMovement(c)
	if !ok {
		return
	}

	result, err := h.engine.Withdraw(c.Request.Context(), accountID, req.Amount, req.Currency, req.Description)
	if err != nil {
		h.respondOperationError(c, err)
		return
	}

	RespondOK(c, mapResultToResponse(result))
}

// Transfer moves funds between two accounts atomically
func (h *TransactionHandler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	fromID, err := uuid.Parse(req.FromAccountID)
	if err != nil {
		RespondBadRequest(c, "Invalid source account ID")
		return
	}
	toID, err := uuid.Parse(req.ToAccountID)
	if err != nil {
		RespondBadRequest(c, "Invalid destination account ID")
		return
	}

	result, err := h.engine.Transfer(c.Request.Context(), fromID, toID, req.Amount, req.Currency, req.Description)
	if err != nil {
		h.respondOperationError(c, err)
		return
	}

	RespondOK(c, mapResultToResponse(result))
}

// bindMovement parses the account id path parameter and the movement body
func (h *TransactionHandler) bindMovement(c *gin.Context) (uuid.UUID, *MovementRequest, bool) {
	idParam := c.Param("id")
	accountID, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid account ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid account ID")
		return uuid.Nil, nil, false
	}

	var req MovementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return uuid.Nil, nil, false
	}

	return accountID, &req, true
}

// respondOperationError maps engine failures onto HTTP statuses: validation
// failures are 400, unknown accounts 404, currency mismatches 422 and
// insufficient funds 409.
func (h *TransactionHandler) respondOperationError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, account.ErrInvalidAmount), errors.Is(err, engine.ErrSameAccount):
		RespondBadRequest(c, err.Error())
	case errors.Is(err, account.ErrAccountNotFound{}):
		RespondNotFound(c, err.Error())
	case errors.Is(err, account.ErrCurrencyMismatch):
		RespondUnprocessable(c, "CURRENCY_MISMATCH", err.Error())
	case errors.Is(err, account.ErrInsufficientFunds):
		RespondConflict(c, "INSUFFICIENT_FUNDS", err.Error())
	default:
		h.logger.Error("Ledger operation failed", "error", err)
		RespondInternalError(c)
	}
}

// mapResultToResponse maps an engine result to a response DTO
func mapResultToResponse(result *engine.Result) OperationResponse {
	response := OperationResponse{
		Entries:  make([]EntryResponse, 0, len(result.Entries)),
		Balances: make(map[string]int64, len(result.Balances)),
	}
	for _, entry := range result.Entries {
		response.Entries = append(response.Entries, mapEntryToResponse(entry))
	}
	for id, balance := range result.Balances {
		response.Balances[id.String()] = balance
	}
	return response
}
