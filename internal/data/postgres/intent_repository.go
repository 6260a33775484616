package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/starlynx/utility-ledger/internal/domain/payment"
	"github.com/starlynx/utility-ledger/internal/platform/persistence"
)

// uniqueViolation is the PostgreSQL error code for unique constraint violations
const uniqueViolation = "23505"

// IntentRepository implements the payment.IntentRepository interface for
// PostgreSQL. The correlation id carries a unique index; together with the
// version guard on Update it keeps intent writes safe even when more than one
// service instance receives callbacks for the same correlation id.
type IntentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewIntentRepository creates a new PostgreSQL intent repository
func NewIntentRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.IntentRepository {
	return &IntentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// Create stores a new intent. Returns ErrDuplicateIntent when the correlation
// id is already recorded.
func (r *IntentRepository) Create(ctx context.Context, intent *payment.Intent) error {
	query := `
		INSERT INTO payment_intents (id, correlation_id, merchant_request_id, subject, amount, account_reference,
			status, result_code, result_description, receipt_number, version, created_at, last_updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.querier.Exec(ctx, query,
		intent.ID,
		intent.CorrelationID,
		intent.MerchantRequestID,
		intent.Subject,
		intent.Amount,
		intent.AccountReference,
		intent.Status,
		intent.ResultCode,
		intent.ResultDescription,
		intent.ReceiptNumber,
		intent.Version,
		intent.CreatedAt,
		intent.LastUpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return payment.ErrDuplicateIntent{CorrelationID: intent.CorrelationID}
		}
		r.logger.Error("Failed to create payment intent", "correlation_id", intent.CorrelationID, "error", err)
		return fmt.Errorf("failed to create payment intent: %w", err)
	}

	return nil
}

// Update persists a merged intent with a version compare-and-swap.
// Returns ErrStaleIntent when another writer got there first.
func (r *IntentRepository) Update(ctx context.Context, intent *payment.Intent) error {
	query := `
		UPDATE payment_intents
		SET merchant_request_id = $1, subject = $2, amount = $3, status = $4, result_code = $5,
			result_description = $6, receipt_number = $7, version = $8, last_updated_at = $9
		WHERE correlation_id = $10 AND version = $11
	`

	result, err := r.querier.Exec(ctx, query,
		intent.MerchantRequestID,
		intent.Subject,
		intent.Amount,
		intent.Status,
		intent.ResultCode,
		intent.ResultDescription,
		intent.ReceiptNumber,
		intent.Version,
		intent.LastUpdatedAt,
		intent.CorrelationID,
		intent.Version-1,
	)
	if err != nil {
		r.logger.Error("Failed to update payment intent", "correlation_id", intent.CorrelationID, "error", err)
		return fmt.Errorf("failed to update payment intent: %w", err)
	}

	if result.RowsAffected() == 0 {
		return payment.ErrStaleIntent{CorrelationID: intent.CorrelationID}
	}

	return nil
}

// GetByCorrelationID retrieves an intent by its provider correlation id
func (r *IntentRepository) GetByCorrelationID(ctx context.Context, correlationID string) (*payment.Intent, error) {
	query := `
		SELECT id, correlation_id, merchant_request_id, subject, amount, account_reference,
			status, result_code, result_description, receipt_number, version, created_at, last_updated_at
		FROM payment_intents
		WHERE correlation_id = $1
	`

	intent, err := r.scanIntent(r.querier.QueryRow(ctx, query, correlationID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrIntentNotFound{CorrelationID: correlationID}
		}
		r.logger.Error("Failed to get payment intent", "correlation_id", correlationID, "error", err)
		return nil, fmt.Errorf("failed to get payment intent: %w", err)
	}

	return intent, nil
}

// GetLatestBySubject retrieves the most recently created intent for a payer.
// Used by the outcome poller when the caller does not yet know the
// correlation id.
func (r *IntentRepository) GetLatestBySubject(ctx context.Context, subject string) (*payment.Intent, error) {
	query := `
		SELECT id, correlation_id, merchant_request_id, subject, amount, account_reference,
			status, result_code, result_description, receipt_number, version, created_at, last_updated_at
		FROM payment_intents
		WHERE subject = $1
		ORDER BY created_at DESC
		LIMIT 1
	`

	intent, err := r.scanIntent(r.querier.QueryRow(ctx, query, subject))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrIntentNotFound{CorrelationID: ""}
		}
		r.logger.Error("Failed to get latest payment intent for subject", "subject", subject, "error", err)
		return nil, fmt.Errorf("failed to get latest payment intent for subject: %w", err)
	}

	return intent, nil
}

func (r *IntentRepository) scanIntent(row pgx.Row) (*payment.Intent, error) {
	var intent payment.Intent
	err := row.Scan(
		&intent.ID,
		&intent.CorrelationID,
		&intent.MerchantRequestID,
		&intent.Subject,
		&intent.Amount,
		&intent.AccountReference,
		&intent.Status,
		&intent.ResultCode,
		&intent.ResultDescription,
		&intent.ReceiptNumber,
		&intent.Version,
		&intent.CreatedAt,
		&intent.LastUpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &intent, nil
}
