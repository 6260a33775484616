package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/starlynx/utility-ledger/internal/domain/account"
	"github.com/starlynx/utility-ledger/internal/domain/ledger"
	"github.com/starlynx/utility-ledger/internal/engine"
)

// LedgerService is the engine surface the HTTP layer depends on
type LedgerService interface {
	CreateAccount(ctx context.Context, ownerRef, currency string, openingBalance int64) (*account.Account, error)
	GetAccount(ctx context.Context, id uuid.UUID) (*account.Account, error)
	GetEntries(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Entry, int64, error)
	Deposit(ctx context.Context, accountID uuid.UUID, amount int64, currency, description string) (*engine.Result, error)
	Withdraw(ctx context.Context, accountID uuid.UUID, amount int64, currency, description string) (*engine.Result, error)
	Transfer(ctx context.Context, fromID, toID uuid.UUID, amount int64, currency, description string) (*engine.Result, error)
}

// AccountHandler handles HTTP requests for account operations
type AccountHandler struct {
	engine LedgerService
	logger *slog.Logger
}

// NewAccountHandler creates a new account handler
func NewAccountHandler(logger *slog.Logger, engine LedgerService) *AccountHandler {
	return &AccountHandler{
		engine: engine,
		logger: logger,
	}
}

// Create handles opening of a new account
func (h *AccountHandler) Create(c *gin.Context) {
	var req CreateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	acc, err := h.engine.CreateAccount(c.Request.Context(), req.OwnerRef, req.Currency, req.OpeningBalance)
	if err != nil {
		if errors.Is(err, account.ErrEmptyOwnerRef) || errors.Is(err, account.ErrInvalidCurrencyFormat) || errors.Is(err, account.ErrInvalidAmount) {
			RespondBadRequest(c, err.Error())
			return
		}
		h.logger.Error("Failed to create account", "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, mapAccountToResponse(acc))
}

// GetByID retrieves an account by its ID, returning 404 if not found
func (h *AccountHandler) GetByID(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid account ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	acc, err := h.engine.GetAccount(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			RespondNotFound(c, "Account not found")
			return
		}
		h.logger.Error("Failed to get account", "id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapAccountToResponse(acc))
}

// GetEntries retrieves an account's paginated ledger history
func (h *AccountHandler) GetEntries(c *gin.Context) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		h.logger.Error("Invalid account ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid account ID")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		h.logger.Error("Invalid pagination parameters", "error", err)
		RespondBadRequest(c, "Invalid pagination parameters")
		return
	}

	offset := (pagination.Page - 1) * pagination.PerPage
	entries, total, err := h.engine.GetEntries(c.Request.Context(), id, pagination.PerPage, offset)
	if err != nil {
		if errors.Is(err, account.ErrAccountNotFound{}) {
			RespondNotFound(c, "Account not found")
			return
		}
		h.logger.Error("Failed to get ledger entries", "account_id", idParam, "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]EntryResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, mapEntryToResponse(entry))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, pagination.Page, pagination.PerPage, int(total))
}

// mapAccountToResponse maps an account entity to an account response DTO
func mapAccountToResponse(acc *account.Account) AccountResponse {
	return AccountResponse{
		ID:        acc.ID.String(),
		OwnerRef:  acc.OwnerRef,
		Currency:  acc.Currency,
		Balance:   acc.Balance,
		CreatedAt: acc.CreatedAt.Format(time.RFC3339),
		UpdatedAt: acc.UpdatedAt.Format(time.RFC3339),
	}
}

// mapEntryToResponse maps a ledger entry to a response DTO
func mapEntryToResponse(entry *ledger.Entry) EntryResponse {
	response := EntryResponse{
		ID:          entry.ID.String(),
		Type:        string(entry.Type),
		AccountID:   entry.AccountID.String(),
		Amount:      entry.Amount,
		Currency:    entry.Currency,
		Description: entry.Description,
		CreatedAt:   entry.CreatedAt.Format(time.RFC3339),
	}
	if entry.CounterpartyAccountID != nil {
		response.CounterpartyAccountID = entry.CounterpartyAccountID.String()
	}
	if entry.TransferID != nil {
		response.TransferID = entry.TransferID.String()
	}
	return response
}
