package payment

import (
	"context"
)

// IntentRepository manages payment intent persistence. Implementations must
// enforce a unique constraint on the correlation id; callers serialize
// mutations through the single-writer queue, and Update additionally guards
// against lost updates with a version compare-and-swap for multi-instance
// deployments.
type IntentRepository interface {
	Create(ctx context.Context, intent *Intent) error
	Update(ctx context.Context, intent *Intent) error
	GetByCorrelationID(ctx context.Context, correlationID string) (*Intent, error)
	GetLatestBySubject(ctx context.Context, subject string) (*Intent, error)
}

// ForwardingRepository manages forwarding records
type ForwardingRepository interface {
	Create(ctx context.Context, record *ForwardingRecord) error
	Exists(ctx context.Context, transactionID string) (bool, error)
}

// ErrIntentNotFound indicates a missing payment intent
type ErrIntentNotFound struct {
	CorrelationID string
}

func (e ErrIntentNotFound) Error() string {
	return "payment intent not found: " + e.CorrelationID
}

// Is implements errors.Is matching; a target with an empty CorrelationID
// matches any ErrIntentNotFound.
func (e ErrIntentNotFound) Is(target error) bool {
	t, ok := target.(ErrIntentNotFound)
	if !ok {
		return false
	}
	if t.CorrelationID == "" {
		return true
	}
	return e.CorrelationID == t.CorrelationID
}

// ErrDuplicateIntent indicates a correlation id uniqueness violation
type ErrDuplicateIntent struct {
	CorrelationID string
}

func (e ErrDuplicateIntent) Error() string {
	return "payment intent already exists: " + e.CorrelationID
}

// ErrStaleIntent indicates the version compare-and-swap failed on update
type ErrStaleIntent struct {
	CorrelationID string
}

func (e ErrStaleIntent) Error() string {
	return "stale payment intent write: " + e.CorrelationID
}
