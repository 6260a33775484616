package recon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/starlynx/utility-ledger/internal/config"
	"github.com/starlynx/utility-ledger/internal/domain/payment"
)

// Poller gives session-bound callers a bounded wait for a payment outcome.
// It only reads; reconciliation continues regardless of whether anyone is
// polling, and a timeout means "still unresolved", never an error.
type Poller struct {
	intentRepo      payment.IntentRepository
	logger          *slog.Logger
	defaultTimeout  time.Duration
	defaultInterval time.Duration
	maxTimeout      time.Duration
}

// NewPoller creates the outcome poller
func NewPoller(intentRepo payment.IntentRepository, cfg *config.PollerConfig, logger *slog.Logger) *Poller {
	return &Poller{
		intentRepo:      intentRepo,
		logger:          logger,
		defaultTimeout:  cfg.DefaultTimeout,
		defaultInterval: cfg.DefaultInterval,
		maxTimeout:      cfg.MaxTimeout,
	}
}

// AwaitTerminal polls until the intent identified by correlationID (or, when
// that lookup finds nothing, the latest intent for subject) reaches a
// terminal state. Zero timeout or interval selects the configured defaults;
// timeouts are clamped to the configured maximum. Returns (nil, nil) when
// the deadline passes without a terminal outcome.
func (p *Poller) AwaitTerminal(ctx context.Context, correlationID, subject string, timeout, interval time.Duration) (*payment.Intent, error) {
	if correlationID == "" && subject == "" {
		return nil, errors.New("either a correlation id or a subject is required")
	}
	if timeout <= 0 {
		timeout = p.defaultTimeout
	}
	if timeout > p.maxTimeout {
		timeout = p.maxTimeout
	}
	if interval <= 0 {
		interval = p.defaultInterval
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		intent, err := p.lookup(ctx, correlationID, subject)
		if err != nil {
			// A deadline firing mid-lookup is still just a timeout
			if errors.Is(err, context.DeadlineExceeded) {
				return p.timedOut(correlationID, subject, timeout)
			}
			return nil, err
		}
		if intent != nil && intent.Status.Terminal() {
			return intent, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return p.timedOut(correlationID, subject, timeout)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// timedOut logs and returns the no-outcome-yet answer
func (p *Poller) timedOut(correlationID, subject string, timeout time.Duration) (*payment.Intent, error) {
	p.logger.Info("Outcome poll timed out",
		"correlation_id", correlationID,
		"subject", subject,
		"timeout", timeout.String(),
	)
	return nil, nil
}

// lookup resolves the intent by correlation id first, falling back to the
// subject's most recent intent. A miss on both is not an error; the intent
// may simply not have been appended yet.
func (p *Poller) lookup(ctx context.Context, correlationID, subject string) (*payment.Intent, error) {
	if correlationID != "" {
		intent, err := p.intentRepo.GetByCorrelationID(ctx, correlationID)
		if err == nil {
			return intent, nil
		}
		if !errors.Is(err, payment.ErrIntentNotFound{}) {
			return nil, fmt.Errorf("failed to poll intent %s: %w", correlationID, err)
		}
	}

	if subject != "" {
		intent, err := p.intentRepo.GetLatestBySubject(ctx, subject)
		if err == nil {
			return intent, nil
		}
		if !errors.Is(err, payment.ErrIntentNotFound{}) {
			return nil, fmt.Errorf("failed to poll latest intent for subject: %w", err)
		}
	}

	return nil, nil
}
