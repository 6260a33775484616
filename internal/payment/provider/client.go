// Package provider implements the client boundary to the mobile-money
// provider's push API. The push is a fire-and-confirm operation: the provider
// acknowledges with a correlation id and delivers the actual outcome later
// through an asynchronous callback.
package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/starlynx/utility-ledger/internal/config"
)

// PushResult carries the provider's acknowledgment of an accepted push
type PushResult struct {
	CorrelationID     string // Checkout-request id, the reconciliation key
	MerchantRequestID string
}

// PushClient initiates a payment on the provider side
type PushClient interface {
	Push(ctx context.Context, subject string, amount int64, accountReference string) (*PushResult, error)
}

// TokenSource supplies a bearer token for provider calls. Token refresh
// itself is an external collaborator; this client only consumes tokens.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// HTTPClient implements PushClient against the provider's HTTP API
type HTTPClient struct {
	cfg        *config.ProviderConfig
	httpClient *http.Client
	tokens     TokenSource
	logger     *slog.Logger
	now        func() time.Time
}

// NewHTTPClient creates the provider push client
func NewHTTPClient(logger *slog.Logger, cfg *config.ProviderConfig, tokens TokenSource) *HTTPClient {
	return &HTTPClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		tokens:     tokens,
		logger:     logger,
		now:        time.Now,
	}
}

// pushRequest is the provider's wire format for a push
type pushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// pushResponse is the provider's acknowledgment
type pushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
}

// Push sends a payment request to the provider. There is no automatic retry:
// a failed push is surfaced immediately to the initiator.
func (c *HTTPClient) Push(ctx context.Context, subject string, amount int64, accountReference string) (*PushResult, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain provider token: %w", err)
	}

	phone := NormalizeSubject(subject)
	timestamp := c.now().Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.PassKey + timestamp))

	if accountReference == "" {
		accountReference = c.cfg.AccountReference
	}

	payload := pushRequest{
		BusinessShortCode: c.cfg.ShortCode,
		Password:          password,
		Timestamp:         timestamp,
		TransactionType:   "CustomerPayBillOnline",
		Amount:            amount,
		PartyA:            phone,
		PartyB:            c.cfg.ShortCode,
		PhoneNumber:       phone,
		CallBackURL:       c.cfg.CallbackURL,
		AccountReference:  accountReference,
		TransactionDesc:   "Subscription",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal push request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.PushURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build push request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("push request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read push response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("Provider rejected push",
			"status", resp.StatusCode,
			"body", string(respBody),
		)
		return nil, fmt.Errorf("provider rejected push: status %d", resp.StatusCode)
	}

	var ack pushResponse
	if err := json.Unmarshal(respBody, &ack); err != nil {
		return nil, fmt.Errorf("failed to decode push response: %w", err)
	}
	if ack.CheckoutRequestID == "" {
		return nil, fmt.Errorf("provider push response missing checkout request id")
	}

	c.logger.Info("Provider accepted push",
		"correlation_id", ack.CheckoutRequestID,
		"merchant_request_id", ack.MerchantRequestID,
	)

	return &PushResult{
		CorrelationID:     ack.CheckoutRequestID,
		MerchantRequestID: ack.MerchantRequestID,
	}, nil
}

// NormalizeSubject strips leading "+" and "0" characters so the same payer
// always maps to the same subject string (2547XXXXXXXX form).
func NormalizeSubject(subject string) string {
	return strings.TrimLeft(strings.TrimSpace(subject), "+0")
}
