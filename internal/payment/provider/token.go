package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/starlynx/utility-ledger/internal/config"
)

// OAuthTokenSource fetches bearer tokens from the provider's client
// credentials endpoint and caches them until shortly before expiry.
type OAuthTokenSource struct {
	tokenURL       string
	consumerKey    string
	consumerSecret string
	httpClient     *http.Client
	now            func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewOAuthTokenSource creates a caching token source
func NewOAuthTokenSource(cfg *config.ProviderConfig) *OAuthTokenSource {
	return &OAuthTokenSource{
		tokenURL:       cfg.TokenURL,
		consumerKey:    cfg.ConsumerKey,
		consumerSecret: cfg.ConsumerSecret,
		httpClient:     &http.Client{Timeout: cfg.Timeout},
		now:            time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// Token returns a cached token, refreshing it when less than a minute of
// validity remains.
func (s *OAuthTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && s.now().Add(time.Minute).Before(s.expires) {
		return s.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.tokenURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(s.consumerKey, s.consumerSecret)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token endpoint returned status %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("token response missing access token")
	}

	ttl := time.Hour
	if seconds, err := strconv.Atoi(tr.ExpiresIn); err == nil && seconds > 0 {
		ttl = time.Duration(seconds) * time.Second
	}

	s.token = tr.AccessToken
	s.expires = s.now().Add(ttl)
	return s.token, nil
}
