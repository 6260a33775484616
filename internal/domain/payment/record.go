package payment

import "time"

// ForwardingRecord marks a confirmed payment as already delivered to the
// downstream billing system. Its existence is the at-most-once check: the
// forwarding guard never posts a transaction id that has a record.
type ForwardingRecord struct {
	TransactionID string    `json:"transaction_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	ForwardedAt   time.Time `json:"forwarded_at"`
}
