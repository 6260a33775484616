package recon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	dmongo "github.com/starlynx/utility-ledger/internal/data/mongo"
	"github.com/starlynx/utility-ledger/internal/domain/payment"
	"github.com/starlynx/utility-ledger/internal/platform/messaging"
)

// Reconciler applies asynchronous provider confirmations to payment intents.
// Each delivery is parsed at the boundary, archived raw, merged into its
// intent through the single-writer queue, and, on a successful outcome,
// handed to the forwarder before the caller acknowledges the provider.
type Reconciler struct {
	intentRepo payment.IntentRepository
	forwarder  *Forwarder
	writer     *SerialWriter
	archive    dmongo.CallbackArchive
	audit      *messaging.AuditProducer
	logger     *slog.Logger
}

// NewReconciler creates the callback reconciler. archive and audit may be
// nil when those facilities are disabled.
func NewReconciler(
	intentRepo payment.IntentRepository,
	forwarder *Forwarder,
	writer *SerialWriter,
	archive dmongo.CallbackArchive,
	audit *messaging.AuditProducer,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		intentRepo: intentRepo,
		forwarder:  forwarder,
		writer:     writer,
		archive:    archive,
		audit:      audit,
		logger:     logger,
	}
}

// HandleCallback processes one raw provider delivery. A parse failure
// returns ErrMalformedCallback so the transport can reject with 400;
// everything after a successful parse is applied idempotently, and a
// forwarding failure never unwinds the recorded outcome.
func (r *Reconciler) HandleCallback(ctx context.Context, raw []byte) error {
	cb, parseErr := payment.ParseCallback(raw)
	if parseErr != nil {
		r.archiveRaw(ctx, "", raw, true)
		r.logger.Warn("Rejected malformed callback", "error", parseErr)
		return parseErr
	}

	r.archiveRaw(ctx, cb.CorrelationID, raw, false)

	var intent *payment.Intent
	err := r.writer.Do(ctx, func(ctx context.Context) error {
		var applyErr error
		intent, applyErr = r.apply(ctx, cb)
		return applyErr
	})
	if err != nil {
		return fmt.Errorf("failed to reconcile callback %s: %w", cb.CorrelationID, err)
	}

	r.publishAudit(ctx, intent, "")

	if intent.Status == payment.IntentStatusSuccess {
		if fwdErr := r.forwarder.ForwardIfNeeded(ctx, intent); fwdErr != nil {
			// The outcome is already durable; forwarding is retried by replay
			r.logger.Error("Forwarding failed, outcome retained for replay",
				"correlation_id", intent.CorrelationID,
				"error", fwdErr,
			)
			r.publishAudit(ctx, intent, "forwarding failed: "+fwdErr.Error())
		}
	}

	return nil
}

// apply merges one confirmation into its intent. It runs on the writer
// goroutine, so reads and writes here never interleave with other intent
// mutations in this process; the version compare-and-swap in the repository
// covers concurrent instances.
func (r *Reconciler) apply(ctx context.Context, cb *payment.Callback) (*payment.Intent, error) {
	intent, err := r.intentRepo.GetByCorrelationID(ctx, cb.CorrelationID)
	if err != nil {
		if !errors.Is(err, payment.ErrIntentNotFound{}) {
			return nil, err
		}

		// Confirmation for an unknown correlation id: the initiate-side
		// append failed or this instance never saw the push. Synthesize.
		intent = payment.SynthesizeIntent(cb)
		intent.ApplyCallback(cb)
		r.logger.Warn("Synthesized intent for unknown correlation id",
			"correlation_id", cb.CorrelationID,
			"result_code", cb.ResultCode,
		)
		if createErr := r.intentRepo.Create(ctx, intent); createErr != nil {
			var dup payment.ErrDuplicateIntent
			if errors.As(createErr, &dup) {
				// Lost a race with another instance; merge into theirs
				return r.mergeExisting(ctx, cb)
			}
			return nil, createErr
		}
		return intent, nil
	}

	return r.mergeIntoIntent(ctx, intent, cb)
}

// mergeExisting re-reads the intent and merges, used after a create lost a
// uniqueness race.
func (r *Reconciler) mergeExisting(ctx context.Context, cb *payment.Callback) (*payment.Intent, error) {
	intent, err := r.intentRepo.GetByCorrelationID(ctx, cb.CorrelationID)
	if err != nil {
		return nil, err
	}
	return r.mergeIntoIntent(ctx, intent, cb)
}

// mergeIntoIntent applies the callback and persists, retrying once on a
// stale version write.
func (r *Reconciler) mergeIntoIntent(ctx context.Context, intent *payment.Intent, cb *payment.Callback) (*payment.Intent, error) {
	wasTerminal := intent.Status.Terminal()
	intent.ApplyCallback(cb)

	if err := r.intentRepo.Update(ctx, intent); err != nil {
		var stale payment.ErrStaleIntent
		if errors.As(err, &stale) {
			fresh, getErr := r.intentRepo.GetByCorrelationID(ctx, cb.CorrelationID)
			if getErr != nil {
				return nil, getErr
			}
			fresh.ApplyCallback(cb)
			if retryErr := r.intentRepo.Update(ctx, fresh); retryErr != nil {
				return nil, retryErr
			}
			return fresh, nil
		}
		return nil, err
	}

	if wasTerminal {
		r.logger.Info("Repeat callback merged into terminal intent",
			"correlation_id", intent.CorrelationID,
			"status", intent.Status,
		)
	} else {
		r.logger.Info("Intent reconciled",
			"correlation_id", intent.CorrelationID,
			"status", intent.Status,
			"result_code", cb.ResultCode,
		)
	}
	return intent, nil
}

// archiveRaw stores the raw delivery for dispute audits. Archive failures
// are logged and swallowed; the archive is never on the reconciliation path.
func (r *Reconciler) archiveRaw(ctx context.Context, correlationID string, raw []byte, malformed bool) {
	if r.archive == nil {
		return
	}
	record := &dmongo.ArchivedCallback{
		CorrelationID: correlationID,
		Payload:       string(raw),
		Malformed:     malformed,
		ReceivedAt:    time.Now().UTC(),
	}
	if err := r.archive.Archive(ctx, record); err != nil {
		r.logger.Error("Callback archive write failed",
			"correlation_id", correlationID,
			"error", err,
		)
	}
}

// publishAudit emits one audit event; failures are logged and swallowed
func (r *Reconciler) publishAudit(ctx context.Context, intent *payment.Intent, detail string) {
	event := messaging.AuditEvent{
		CorrelationID: intent.CorrelationID,
		Subject:       intent.Subject,
		Status:        string(intent.Status),
		ReceiptNumber: intent.ReceiptNumber,
		Amount:        intent.Amount,
		Detail:        detail,
	}
	if err := r.audit.Publish(ctx, event); err != nil {
		r.logger.Error("Failed to publish audit event",
			"correlation_id", intent.CorrelationID,
			"error", err,
		)
	}
}
