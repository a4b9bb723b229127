package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/SscSPs/disbursement_backoffice/internal/apperrors"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultMaxTries  = 3
	defaultRetryWait = 500 * time.Millisecond
)

// Config describes a partner REST API secured with OAuth2 client credentials.
// Without a client id requests are sent unauthenticated.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	Timeout      time.Duration
	MaxTries     uint
	RetryWait    time.Duration
}

// Client performs JSON and binary GETs with a bounded, fixed-interval retry.
type Client struct {
	http      *http.Client
	baseURL   string
	maxTries  uint
	retryWait time.Duration
}

// New builds a Client. The context governs token refreshes.
func New(ctx context.Context, cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	httpClient := &http.Client{Timeout: timeout}
	if cfg.ClientID != "" {
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		httpClient = cc.Client(ctx)
		httpClient.Timeout = timeout
	}

	c := &Client{
		http:      httpClient,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		maxTries:  cfg.MaxTries,
		retryWait: cfg.RetryWait,
	}
	if c.maxTries == 0 {
		c.maxTries = defaultMaxTries
	}
	if c.retryWait <= 0 {
		c.retryWait = defaultRetryWait
	}
	return c
}

// GetJSON fetches path relative to the base URL and decodes the body into dest.
// A 404 yields apperrors.ErrNotFound; other failures wrap apperrors.ErrProvider.
func (c *Client) GetJSON(ctx context.Context, path string, dest any) error {
	body, err := c.Get(ctx, path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return apperrors.NewProviderError("decode "+path, err)
	}
	return nil
}

// Get fetches path relative to the base URL and returns the raw body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	url := c.baseURL + path
	op := func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, backoff.Permanent(err)
		}
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, err
		}
		switch {
		case resp.StatusCode == http.StatusNotFound:
			return nil, backoff.Permanent(apperrors.NewNotFoundError("%s", path))
		case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
			return nil, fmt.Errorf("%s returned %d", path, resp.StatusCode)
		case resp.StatusCode >= 400:
			return nil, backoff.Permanent(fmt.Errorf("%s returned %d", path, resp.StatusCode))
		}
		return body, nil
	}

	body, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(backoff.NewConstantBackOff(c.retryWait)),
		backoff.WithMaxTries(c.maxTries),
	)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, err
		}
		return nil, apperrors.NewProviderError("GET "+path, err)
	}
	return body, nil
}
