// Package recon implements the payment reconciliation core: intent tracking
// for outgoing pushes, callback reconciliation, idempotent forwarding to the
// billing system and the bounded outcome poller used by session-bound
// callers. All intent and forwarding-record mutations funnel through the
// package's single-writer queue.
package recon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/starlynx/utility-ledger/internal/domain/payment"
	"github.com/starlynx/utility-ledger/internal/payment/provider"
)

// Tracker initiates external payments and records their PENDING intents
type Tracker struct {
	pushClient provider.PushClient
	intentRepo payment.IntentRepository
	writer     *SerialWriter
	logger     *slog.Logger
}

// NewTracker creates a payment intent tracker
func NewTracker(
	pushClient provider.PushClient,
	intentRepo payment.IntentRepository,
	writer *SerialWriter,
	logger *slog.Logger,
) *Tracker {
	return &Tracker{
		pushClient: pushClient,
		intentRepo: intentRepo,
		writer:     writer,
		logger:     logger,
	}
}

// Initiate pushes a payment request to the provider and durably appends a
// PENDING intent keyed by the returned correlation id. A provider failure
// surfaces as ErrInitiationFailed and creates nothing. When the callback has
// already arrived and the reconciler synthesized the intent, the append hits
// the uniqueness constraint and the initiate-side details are merged into the
// existing record instead. If the append fails outright after the provider
// already accepted the push, the error is surfaced but the confirmation is
// not lost: the reconciler synthesizes the intent when the callback arrives.
func (t *Tracker) Initiate(ctx context.Context, subject string, amount int64, accountReference string) (*payment.Intent, error) {
	if subject == "" {
		return nil, payment.ErrEmptySubject
	}
	if amount <= 0 {
		return nil, payment.ErrInvalidAmount
	}

	subject = provider.NormalizeSubject(subject)

	result, err := t.pushClient.Push(ctx, subject, amount, accountReference)
	if err != nil {
		t.logger.Error("Provider push failed", "subject", subject, "error", err)
		return nil, fmt.Errorf("%w: %v", payment.ErrInitiationFailed, err)
	}

	intent, err := payment.NewIntent(result.CorrelationID, result.MerchantRequestID, subject, amount, accountReference)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", payment.ErrInitiationFailed, err)
	}

	err = t.writer.Do(ctx, func(ctx context.Context) error {
		createErr := t.intentRepo.Create(ctx, intent)

		var dup payment.ErrDuplicateIntent
		if errors.As(createErr, &dup) {
			// The confirmation beat this append and the reconciler already
			// synthesized the intent. Fill in the initiate-side fields it
			// could not have known and keep its reconciled state.
			existing, getErr := t.intentRepo.GetByCorrelationID(ctx, intent.CorrelationID)
			if getErr != nil {
				return getErr
			}
			existing.AdoptInitiation(result.MerchantRequestID, subject, amount, accountReference)
			if updErr := t.intentRepo.Update(ctx, existing); updErr != nil {
				return updErr
			}
			t.logger.Info("Merged initiation into synthesized intent",
				"correlation_id", existing.CorrelationID,
				"status", existing.Status,
			)
			intent = existing
			return nil
		}

		return createErr
	})
	if err != nil {
		// The push was accepted; the intent append failing leaves a
		// recoverable inconsistency window closed by callback synthesis.
		t.logger.Error("Failed to record pending intent after accepted push",
			"correlation_id", result.CorrelationID,
			"error", err,
		)
		return nil, fmt.Errorf("failed to record pending intent %s: %w", result.CorrelationID, err)
	}

	t.logger.Info("Payment initiated",
		"correlation_id", intent.CorrelationID,
		"subject", subject,
		"amount", amount,
	)
	return intent, nil
}
