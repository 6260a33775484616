package payment

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInvalidAmount     = errors.New("amount must be a positive number of minor units")
	ErrEmptySubject      = errors.New("subject cannot be empty")
	ErrInitiationFailed  = errors.New("payment initiation failed")
	ErrMalformedCallback = errors.New("malformed callback payload")
	ErrForwardingFailed  = errors.New("forwarding to billing system failed")
)

// IntentStatus defines the lifecycle states of a payment intent
type IntentStatus string

const (
	IntentStatusPending IntentStatus = "PENDING"
	IntentStatusSuccess IntentStatus = "SUCCESS"
	IntentStatusFailed  IntentStatus = "FAILED"
)

// Terminal reports whether the status is absorbing
func (s IntentStatus) Terminal() bool {
	return s == IntentStatusSuccess || s == IntentStatusFailed
}

// Intent records an externally-initiated payment and its reconciliation
// lifecycle. It is created PENDING when the provider accepts a push and moves
// exactly once to a terminal state when the asynchronous confirmation
// arrives. Terminal states are absorbing: later writes may only fill in
// fields that are still absent.
type Intent struct {
	ID                uuid.UUID    `json:"id"`
	CorrelationID     string       `json:"correlation_id"` // Provider checkout-request id
	MerchantRequestID string       `json:"merchant_request_id,omitempty"`
	Subject           string       `json:"subject"` // Phone / payer identifier
	Amount            int64        `json:"amount"`  // Requested minor units
	AccountReference  string       `json:"account_reference"`
	Status            IntentStatus `json:"status"`
	ResultCode        *int         `json:"result_code,omitempty"`
	ResultDescription string       `json:"result_description,omitempty"`
	ReceiptNumber     string       `json:"receipt_number,omitempty"` // Set only on SUCCESS
	Version           int          `json:"version"`                  // For optimistic locking
	CreatedAt         time.Time    `json:"created_at"`
	LastUpdatedAt     time.Time    `json:"last_updated_at"`
}

// NewIntent creates a PENDING intent for an accepted provider push
func NewIntent(correlationID, merchantRequestID, subject string, amount int64, accountReference string) (*Intent, error) {
	if correlationID == "" {
		return nil, errors.New("correlation id cannot be empty")
	}
	if subject == "" {
		return nil, ErrEmptySubject
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now()
	return &Intent{
		ID:                uuid.New(),
		CorrelationID:     correlationID,
		MerchantRequestID: merchantRequestID,
		Subject:           subject,
		Amount:            amount,
		AccountReference:  accountReference,
		Status:            IntentStatusPending,
		Version:           1,
		CreatedAt:         now,
		LastUpdatedAt:     now,
	}, nil
}

// SynthesizeIntent builds an intent from a confirmation whose original
// PENDING record is missing, so that a confirmation is never dropped just
// because the initiate-side append failed or raced.
func SynthesizeIntent(cb *Callback) *Intent {
	now := time.Now()
	intent := &Intent{
		ID:                uuid.New(),
		CorrelationID:     cb.CorrelationID,
		MerchantRequestID: cb.MerchantRequestID,
		Subject:           cb.Subject,
		Status:            IntentStatusPending,
		Version:           1,
		CreatedAt:         now,
		LastUpdatedAt:     now,
	}
	if cb.Amount != nil {
		intent.Amount = *cb.Amount
	}
	return intent
}

// AdoptInitiation merges initiate-side details into an intent that was
// synthesized from a confirmation before the initiate append landed. Only
// absent fields are filled; the reconciled status and any terminal fields
// are untouched.
func (i *Intent) AdoptInitiation(merchantRequestID, subject string, amount int64, accountReference string) {
	if i.MerchantRequestID == "" {
		i.MerchantRequestID = merchantRequestID
	}
	if i.Subject == "" {
		i.Subject = subject
	}
	if i.Amount == 0 {
		i.Amount = amount
	}
	if i.AccountReference == "" {
		i.AccountReference = accountReference
	}
	i.LastUpdatedAt = time.Now()
	i.Version++
}

// ApplyCallback merges a provider confirmation into the intent. The first
// terminal transition sets the status; repeat deliveries only fill fields
// that are still absent and never regress the status.
func (i *Intent) ApplyCallback(cb *Callback) {
	if !i.Status.Terminal() {
		if cb.ResultCode == 0 {
			i.Status = IntentStatusSuccess
		} else {
			i.Status = IntentStatusFailed
		}
	}

	if i.ResultCode == nil {
		code := cb.ResultCode
		i.ResultCode = &code
	}
	if i.ResultDescription == "" {
		i.ResultDescription = cb.ResultDescription
	}
	if i.ReceiptNumber == "" && i.Status == IntentStatusSuccess {
		i.ReceiptNumber = cb.ReceiptNumber
	}
	if i.Subject == "" {
		i.Subject = cb.Subject
	}
	if i.MerchantRequestID == "" {
		i.MerchantRequestID = cb.MerchantRequestID
	}
	if i.Amount == 0 && cb.Amount != nil {
		i.Amount = *cb.Amount
	}

	i.LastUpdatedAt = time.Now()
	i.Version++
}
