package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages ledger entry persistence. Entries are append-only:
// there is deliberately no update or delete operation.
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Entry, error)
	CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrEntryNotFound indicates missing ledger entry
type ErrEntryNotFound struct {
	EntryID uuid.UUID
}

func (e ErrEntryNotFound) Error() string {
	return "ledger entry not found: " + e.EntryID.String()
}

// Is implements the errors.Is interface for ErrEntryNotFound
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	if t.EntryID == uuid.Nil {
		return true
	}
	return e.EntryID == t.EntryID
}
