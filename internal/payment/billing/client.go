// Package billing implements the client boundary to the downstream billing
// system. The client classifies failures so the forwarding guard can decide
// what to retry: 429 and 5xx responses and connection-level errors are
// transient, 4xx responses are permanent.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/starlynx/utility-ledger/internal/config"
)

// Payment is the record posted downstream
type Payment struct {
	TransactionID    string    `json:"transaction_id"`
	Amount           int64     `json:"amount"`
	SubjectReference string    `json:"subject_reference"`
	Timestamp        time.Time `json:"timestamp"`
}

// Client posts confirmed payments to the billing system
type Client interface {
	Post(ctx context.Context, p Payment) error
}

// RetryableError marks a transient failure. RetryAfter is non-zero when the
// server supplied an explicit delay.
type RetryableError struct {
	StatusCode int
	RetryAfter time.Duration
	Err        error
}

func (e *RetryableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient billing failure: %v", e.Err)
	}
	return fmt.Sprintf("transient billing failure: status %d", e.StatusCode)
}

func (e *RetryableError) Unwrap() error {
	return e.Err
}

// HTTPClient implements Client against the billing system's HTTP API
type HTTPClient struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates the billing client
func NewHTTPClient(logger *slog.Logger, cfg *config.BillingConfig) *HTTPClient {
	return &HTTPClient{
		url:        cfg.URL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
}

// Post delivers one payment. A nil return means the billing system accepted
// it; a *RetryableError means the caller may try again; any other error is
// permanent.
func (c *HTTPClient) Post(ctx context.Context, p Payment) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal billing payment: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build billing request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Connection-level failures and timeouts are transient
		return &RetryableError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		c.logger.Warn("Billing system returned transient failure",
			"transaction_id", p.TransactionID,
			"status", resp.StatusCode,
		)
		return &RetryableError{
			StatusCode: resp.StatusCode,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	c.logger.Error("Billing system rejected payment",
		"transaction_id", p.TransactionID,
		"status", resp.StatusCode,
		"body", string(respBody),
	)
	return fmt.Errorf("billing system rejected payment %s: status %d", p.TransactionID, resp.StatusCode)
}

// parseRetryAfter reads a delay-seconds Retry-After value; HTTP-date and
// malformed values yield zero, letting the caller fall back to backoff.
func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
