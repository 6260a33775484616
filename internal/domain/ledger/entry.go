package ledger

import (
	"time"

	"github.com/google/uuid"
)

// EntryType defines the kind of balance effect an entry records
type EntryType string

const (
	EntryTypeDeposit        EntryType = "DEPOSIT"
	EntryTypeWithdrawal     EntryType = "WITHDRAWAL"
	EntryTypeTransferDebit  EntryType = "TRANSFER_DEBIT"
	EntryTypeTransferCredit EntryType = "TRANSFER_CREDIT"
)

// Entry is an append-only fact recording one balance effect on one account.
// Entries are never updated or deleted; the account balance equals the signed
// sum of its committed entries. Transfer entries come in pairs sharing a
// TransferID and cross-referencing each other through CounterpartyAccountID.
type Entry struct {
	ID                    uuid.UUID  `json:"id"`
	Type                  EntryType  `json:"type"`
	AccountID             uuid.UUID  `json:"account_id"`
	CounterpartyAccountID *uuid.UUID `json:"counterparty_account_id,omitempty"`
	TransferID            *uuid.UUID `json:"transfer_id,omitempty"`
	Amount                int64      `json:"amount"` // Positive minor units
	Currency              string     `json:"currency"`
	Description           string     `json:"description,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
}

// Signed returns the entry's effect on its account balance: positive for
// credits, negative for debits.
func (e *Entry) Signed() int64 {
	switch e.Type {
	case EntryTypeWithdrawal, EntryTypeTransferDebit:
		return -e.Amount
	default:
		return e.Amount
	}
}
