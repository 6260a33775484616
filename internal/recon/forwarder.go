package recon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strconv"
	"time"

	"github.com/starlynx/utility-ledger/internal/config"
	"github.com/starlynx/utility-ledger/internal/domain/payment"
	"github.com/starlynx/utility-ledger/internal/payment/billing"
)

// Forwarder delivers confirmed payments to the billing system at most once.
// The ForwardingRecord set is the idempotency check: a transaction id with a
// record is never posted again, which makes manual or scheduled replays of
// failed forwards safe.
type Forwarder struct {
	billingClient  billing.Client
	forwardingRepo payment.ForwardingRepository
	writer         *SerialWriter
	logger         *slog.Logger

	maxRetries  int
	baseBackoff time.Duration
	maxBackoff  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewForwarder creates the forwarding idempotency guard
func NewForwarder(
	billingClient billing.Client,
	forwardingRepo payment.ForwardingRepository,
	writer *SerialWriter,
	cfg *config.BillingConfig,
	logger *slog.Logger,
) *Forwarder {
	return &Forwarder{
		billingClient:  billingClient,
		forwardingRepo: forwardingRepo,
		writer:         writer,
		logger:         logger,
		maxRetries:     cfg.MaxRetries,
		baseBackoff:    cfg.BaseBackoff,
		maxBackoff:     cfg.MaxBackoff,
		sleep:          sleepCtx,
	}
}

// ForwardIfNeeded posts a confirmed intent downstream unless its transaction
// id already has a forwarding record. On success the record is written
// before returning. On exhausting retries the failure is surfaced as
// ErrForwardingFailed without a record, so a later replay retries safely.
//
// The entire check-post-record sequence runs as one writer task: concurrent
// deliveries of the same confirmation must not both observe a missing record
// and post twice.
func (f *Forwarder) ForwardIfNeeded(ctx context.Context, intent *payment.Intent) error {
	transactionID := TransactionID(intent)
	return f.writer.Do(ctx, func(ctx context.Context) error {
		return f.forward(ctx, transactionID, intent)
	})
}

// forward runs on the writer goroutine
func (f *Forwarder) forward(ctx context.Context, transactionID string, intent *payment.Intent) error {
	exists, err := f.forwardingRepo.Exists(ctx, transactionID)
	if err != nil {
		return fmt.Errorf("failed to check forwarding record %s: %w", transactionID, err)
	}
	if exists {
		f.logger.Info("Payment already forwarded, skipping",
			"correlation_id", intent.CorrelationID,
			"transaction_id", transactionID,
		)
		return nil
	}

	p := billing.Payment{
		TransactionID:    transactionID,
		Amount:           intent.Amount,
		SubjectReference: intent.AccountReference,
		Timestamp:        intent.LastUpdatedAt,
	}
	if p.SubjectReference == "" {
		p.SubjectReference = intent.Subject
	}

	if err := f.postWithRetry(ctx, p); err != nil {
		f.logger.Error("Forwarding failed after retries",
			"correlation_id", intent.CorrelationID,
			"transaction_id", transactionID,
			"error", err,
		)
		return fmt.Errorf("%w: %v", payment.ErrForwardingFailed, err)
	}

	record := &payment.ForwardingRecord{
		TransactionID: transactionID,
		CorrelationID: intent.CorrelationID,
		ForwardedAt:   time.Now().UTC(),
	}
	if err := f.forwardingRepo.Create(ctx, record); err != nil {
		return fmt.Errorf("failed to record forwarding of %s: %w", transactionID, err)
	}

	f.logger.Info("Payment forwarded to billing system",
		"correlation_id", intent.CorrelationID,
		"transaction_id", transactionID,
	)
	return nil
}

// postWithRetry retries transient failures with exponential backoff plus
// jitter, honoring a server-supplied retry delay when present, up to the
// configured ceiling. Permanent failures abort immediately.
func (f *Forwarder) postWithRetry(ctx context.Context, p billing.Payment) error {
	backoff := f.baseBackoff

	var lastErr error
	for attempt := 0; ; attempt++ {
		lastErr = f.billingClient.Post(ctx, p)
		if lastErr == nil {
			return nil
		}

		var transient *billing.RetryableError
		if !errors.As(lastErr, &transient) {
			return lastErr
		}
		if attempt >= f.maxRetries {
			return fmt.Errorf("retries exhausted after %d attempts: %w", attempt+1, lastErr)
		}

		delay := transient.RetryAfter
		if delay == 0 {
			// Full jitter over the current exponential window
			delay = time.Duration(rand.Int63n(int64(backoff)) + int64(backoff)/2)
			backoff *= 2
			if backoff > f.maxBackoff {
				backoff = f.maxBackoff
			}
		}

		f.logger.Warn("Transient billing failure, will retry",
			"transaction_id", p.TransactionID,
			"attempt", attempt+1,
			"delay", delay.String(),
		)

		if err := f.sleep(ctx, delay); err != nil {
			return fmt.Errorf("forwarding interrupted: %w", err)
		}
	}
}

// TransactionID derives the stable downstream identifier for an intent: the
// provider receipt number when present, otherwise a deterministic composite
// of subject and creation time so replays of the same intent collide.
func TransactionID(intent *payment.Intent) string {
	if intent.ReceiptNumber != "" {
		return intent.ReceiptNumber
	}
	return intent.Subject + "-" + strconv.FormatInt(intent.CreatedAt.UTC().Unix(), 10)
}

// sleepCtx sleeps for d or until the context is done
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
