package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInvalidAmount         = errors.New("amount must be a positive number of minor units")
	ErrCurrencyMismatch      = errors.New("currency does not match account currency")
	ErrEmptyOwnerRef         = errors.New("owner reference cannot be empty")
	ErrInvalidCurrencyFormat = errors.New("currency must be a 3-letter code")
)

// Account represents a customer account. Balances are held in integer minor
// units and may never go negative; every mutation happens inside a ledger
// transaction that also appends the matching entries.
type Account struct {
	ID        uuid.UUID `json:"id"`
	OwnerRef  string    `json:"owner_ref"` // Opaque reference into the customer directory
	Currency  string    `json:"currency"`
	Balance   int64     `json:"balance"` // Minor units
	Version   int       `json:"version"` // For optimistic locking
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAccount creates a new account with a zero or positive opening balance
func NewAccount(ownerRef string, currency string, openingBalance int64) (*Account, error) {
	if ownerRef == "" {
		return nil, ErrEmptyOwnerRef
	}
	if len(currency) != 3 {
		return nil, ErrInvalidCurrencyFormat
	}
	if openingBalance < 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now()
	return &Account{
		ID:        uuid.New(),
		OwnerRef:  ownerRef,
		Currency:  currency,
		Balance:   openingBalance,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Credit adds the specified amount to the account balance
func (a *Account) Credit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	a.Balance += amount
	a.UpdatedAt = time.Now()
	a.Version++
	return nil
}

// Debit subtracts the specified amount from the account balance.
// The sufficiency check must happen after the row lock is held, which is why
// it lives here rather than in any caller-side pre-check.
func (a *Account) Debit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}

	if a.Balance < amount {
		return ErrInsufficientFunds
	}

	a.Balance -= amount
	a.UpdatedAt = time.Now()
	a.Version++
	return nil
}

// CheckCurrency verifies that the requested currency matches the account's
func (a *Account) CheckCurrency(currency string) error {
	if a.Currency != currency {
		return ErrCurrencyMismatch
	}
	return nil
}
