package payment

import (
	"encoding/json"
	"fmt"
	"math"
)

// Callback is a validated provider confirmation. Field extraction happens
// here, at the boundary, before any state is mutated; everything downstream
// operates on this struct, never on the raw payload.
type Callback struct {
	CorrelationID     string
	MerchantRequestID string
	ResultCode        int
	ResultDescription string
	Amount            *int64 // Minor units, present only on success payloads
	ReceiptNumber     string
	Subject           string
}

// rawCallbackEnvelope mirrors the provider's wire format for asynchronous
// confirmations. Metadata item values arrive untyped (numbers or strings).
type rawCallbackEnvelope struct {
	Body struct {
		StkCallback *struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        *int   `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// ParseCallback decides {validated callback, malformed payload} for a raw
// provider delivery. Malformed payloads are reported as ErrMalformedCallback
// so the transport can acknowledge them with a client error instead of
// triggering provider-side redelivery.
func ParseCallback(raw []byte) (*Callback, error) {
	var envelope rawCallbackEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedCallback, err)
	}

	stk := envelope.Body.StkCallback
	if stk == nil {
		return nil, fmt.Errorf("%w: missing stkCallback body", ErrMalformedCallback)
	}
	if stk.CheckoutRequestID == "" {
		return nil, fmt.Errorf("%w: missing checkout request id", ErrMalformedCallback)
	}
	if stk.ResultCode == nil {
		return nil, fmt.Errorf("%w: missing result code", ErrMalformedCallback)
	}

	cb := &Callback{
		CorrelationID:     stk.CheckoutRequestID,
		MerchantRequestID: stk.MerchantRequestID,
		ResultCode:        *stk.ResultCode,
		ResultDescription: stk.ResultDesc,
	}

	if stk.CallbackMetadata != nil {
		for _, item := range stk.CallbackMetadata.Item {
			switch item.Name {
			case "Amount":
				if amount, ok := numericValue(item.Value); ok {
					cb.Amount = &amount
				}
			case "MpesaReceiptNumber":
				if s, ok := item.Value.(string); ok {
					cb.ReceiptNumber = s
				}
			case "PhoneNumber":
				cb.Subject = stringValue(item.Value)
			}
		}
	}

	return cb, nil
}

// numericValue extracts an integer amount from an untyped metadata value
func numericValue(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(math.Round(n)), true
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
	}
	return 0, false
}

// stringValue renders an untyped metadata value as a string; the provider
// sends phone numbers as bare numerics.
func stringValue(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return fmt.Sprintf("%.0f", s)
	case json.Number:
		return s.String()
	default:
		return ""
	}
}
