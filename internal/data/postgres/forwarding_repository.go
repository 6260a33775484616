package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/starlynx/utility-ledger/internal/domain/payment"
	"github.com/starlynx/utility-ledger/internal/platform/persistence"
)

// ForwardingRepository implements the payment.ForwardingRepository interface
// for PostgreSQL. The transaction id is the primary key, which makes Create
// the atomic claim on "this payment has been forwarded".
type ForwardingRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewForwardingRepository creates a new PostgreSQL forwarding repository
func NewForwardingRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.ForwardingRepository {
	return &ForwardingRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create records a forwarded transaction. A duplicate transaction id is not
// an error for the caller: the record already existing means the forwarding
// already happened, which is the state Create was trying to reach.
func (r *ForwardingRepository) Create(ctx context.Context, record *payment.ForwardingRecord) error {
	query := `
		INSERT INTO forwarding_records (transaction_id, correlation_id, forwarded_at)
		VALUES ($1, $2, $3)
	`

	_, err := r.querier.Exec(ctx, query,
		record.TransactionID,
		record.CorrelationID,
		record.ForwardedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			r.logger.Info("Forwarding record already exists", "transaction_id", record.TransactionID)
			return nil
		}
		r.logger.Error("Failed to create forwarding record", "transaction_id", record.TransactionID, "error", err)
		return fmt.Errorf("failed to create forwarding record: %w", err)
	}

	return nil
}

// Exists reports whether a transaction id has already been forwarded
func (r *ForwardingRepository) Exists(ctx context.Context, transactionID string) (bool, error) {
	query := `
		SELECT EXISTS (SELECT 1 FROM forwarding_records WHERE transaction_id = $1)
	`

	var exists bool
	if err := r.querier.QueryRow(ctx, query, transactionID).Scan(&exists); err != nil {
		r.logger.Error("Failed to check forwarding record", "transaction_id", transactionID, "error", err)
		return false, fmt.Errorf("failed to check forwarding record: %w", err)
	}

	return exists, nil
}
