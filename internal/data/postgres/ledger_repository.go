package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/starlynx/utility-ledger/internal/domain/ledger"
	"github.com/starlynx/utility-ledger/internal/platform/persistence"
)

// LedgerRepository implements the ledger.Repository interface for PostgreSQL.
// Entries live in the same database as accounts so that a balance change and
// its entry commit or roll back together.
type LedgerRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &LedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction so an entry append is atomic
// with the balance mutation it records.
func (r *LedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &LedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create appends an entry. Entries are immutable facts: there is no update
// path anywhere in this repository.
func (r *LedgerRepository) Create(ctx context.Context, entry *ledger.Entry) error {
	query := `
		INSERT INTO ledger_entries (id, type, account_id, counterparty_account_id, transfer_id, amount, currency, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.querier.Exec(ctx, query,
		entry.ID,
		entry.Type,
		entry.AccountID,
		entry.CounterpartyAccountID,
		entry.TransferID,
		entry.Amount,
		entry.Currency,
		entry.Description,
		entry.CreatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create ledger entry", "entry_id", entry.ID.String(), "error", err)
		return fmt.Errorf("failed to create ledger entry: %w", err)
	}

	return nil
}

// GetByID retrieves a single entry
func (r *LedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	query := `
		SELECT id, type, account_id, counterparty_account_id, transfer_id, amount, currency, description, created_at
		FROM ledger_entries
		WHERE id = $1
	`

	var entry ledger.Entry
	err := r.querier.QueryRow(ctx, query, id).Scan(
		&entry.ID,
		&entry.Type,
		&entry.AccountID,
		&entry.CounterpartyAccountID,
		&entry.TransferID,
		&entry.Amount,
		&entry.Currency,
		&entry.Description,
		&entry.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrEntryNotFound{EntryID: id}
		}
		r.logger.Error("Failed to get ledger entry", "entry_id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return &entry, nil
}

// GetByAccountID retrieves entries for an account, newest first
func (r *LedgerRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	query := `
		SELECT id, type, account_id, counterparty_account_id, transfer_id, amount, currency, description, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get ledger entries", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		var entry ledger.Entry
		err := rows.Scan(
			&entry.ID,
			&entry.Type,
			&entry.AccountID,
			&entry.CounterpartyAccountID,
			&entry.TransferID,
			&entry.Amount,
			&entry.Currency,
			&entry.Description,
			&entry.CreatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan ledger entry", "error", err)
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, &entry)
	}

	if err := rows.Err(); err != nil {
		r.logger.Error("Error iterating over ledger entries", "error", err)
		return nil, fmt.Errorf("error iterating over ledger entries: %w", err)
	}

	return entries, nil
}

// CountByAccountID returns the number of entries referencing an account
func (r *LedgerRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM ledger_entries
		WHERE account_id = $1
	`

	var count int64
	if err := r.querier.QueryRow(ctx, query, accountID).Scan(&count); err != nil {
		r.logger.Error("Failed to count ledger entries", "account_id", accountID.String(), "error", err)
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	return count, nil
}
