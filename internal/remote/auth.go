package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultAuthTimeout = 10 * time.Second
	defaultTokenTTL    = time.Hour
	maxResponseBytes   = 1 << 20
)

var ErrRejected = errors.New("authentication rejected")

// Registration регистрационные данные, которые обмениваются на client credentials
type Registration struct {
	Email          string `json:"email" binding:"required,email"`
	Name           string `json:"name" binding:"required"`
	MobileNo       string `json:"mobileNo" binding:"required"`
	GithubUsername string `json:"githubUsername" binding:"required"`
	RollNo         string `json:"rollNo" binding:"required"`
	AccessCode     string `json:"accessCode" binding:"required"`
}

type Credentials struct {
	ClientID     string `json:"clientID"`
	ClientSecret string `json:"clientSecret"`
}

type Token struct {
	TokenType   string `json:"token_type"`
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

// ExpiresAt interprets ExpiresIn either as a unix timestamp or as seconds from now;
// the evaluation service has used both.
func (t *Token) ExpiresAt(now time.Time) time.Time {
	switch {
	case t.ExpiresIn <= 0:
		return now.Add(defaultTokenTTL)
	case t.ExpiresIn > 1_000_000_000:
		return time.Unix(t.ExpiresIn, 0).UTC()
	default:
		return now.Add(time.Duration(t.ExpiresIn) * time.Second)
	}
}

type AuthClient struct {
	baseURL string
	client  *http.Client
}

func NewAuthClient(baseURL string, client *http.Client) *AuthClient {
	if client == nil {
		client = &http.Client{Timeout: defaultAuthTimeout}
	}
	return &AuthClient{baseURL: baseURL, client: client}
}

// Register обменивает регистрационные данные на client credentials
func (c *AuthClient) Register(ctx context.Context, reg *Registration) (*Credentials, error) {
	var creds Credentials
	if err := c.post(ctx, "/register", reg, &creds, "failed to get client credentials"); err != nil {
		return nil, err
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("%w: failed to get client credentials", ErrRejected)
	}

	return &creds, nil
}

// Token обменивает client credentials на bearer-токен
func (c *AuthClient) Token(ctx context.Context, creds *Credentials) (*Token, error) {
	var token Token
	if err := c.post(ctx, "/auth", creds, &token, "failed to get token"); err != nil {
		return nil, err
	}
	if token.AccessToken == "" {
		return nil, fmt.Errorf("%w: failed to get token", ErrRejected)
	}

	return &token, nil
}

// Authenticate выполняет оба шага обмена
func (c *AuthClient) Authenticate(ctx context.Context, reg *Registration) (*Token, error) {
	creds, err := c.Register(ctx, reg)
	if err != nil {
		return nil, err
	}

	return c.Token(ctx, creds)
}

func (c *AuthClient) post(ctx context.Context, path string, in, out any, failure string) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
			failure = apiErr.Message
		}
		return fmt.Errorf("%w: %s", ErrRejected, failure)
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: invalid response body: %w", ErrTransport, err)
	}

	return nil
}
