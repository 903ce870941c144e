package ebay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"DealScanner/internal/config"
	"DealScanner/internal/infrastructure/httpx"
	"DealScanner/internal/ports"
)

const (
	tokenPath        = "/identity/v1/oauth2/token"
	apiScope         = "https://api.ebay.com/oauth/api_scope"
	defaultTokenLife = 7200 * time.Second
)

// TokenProvider obtains application tokens through the client-credentials grant.
type TokenProvider struct {
	baseURL      string
	clientID     string
	clientSecret string
	client       *httpx.Client
}

var _ ports.TokenProvider = (*TokenProvider)(nil)

// NewTokenProvider builds a provider from configuration.
func NewTokenProvider(cfg config.EbayConfig, client *httpx.Client) *TokenProvider {
	return &TokenProvider{
		baseURL:      cfg.APIBaseURL(),
		clientID:     strings.TrimSpace(cfg.ClientID),
		clientSecret: strings.TrimSpace(cfg.ClientSecret),
		client:       client,
	}
}

// Token requests a fresh bearer token and its lifetime.
func (p *TokenProvider) Token(ctx context.Context) (string, time.Duration, error) {
	if p.clientID == "" || p.clientSecret == "" {
		return "", 0, config.ErrMissingCredentials
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("scope", apiScope)
	body := form.Encode()

	resp, err := p.client.Do(ctx, "oauth token", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+tokenPath, strings.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(p.clientID, p.clientSecret)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return req, nil
	})
	if err != nil {
		return "", 0, err
	}
	defer resp.Body.Close()

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", 0, fmt.Errorf("decode oauth response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", 0, fmt.Errorf("oauth response without access_token")
	}

	life := time.Duration(payload.ExpiresIn) * time.Second
	if life <= 0 {
		life = defaultTokenLife
	}
	return payload.AccessToken, life, nil
}
