package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/salesdesk-dev/salesdesk/internal/cli/auth"
)

const pathRefreshToken = "/users/token/refresh/"

// Client represents an HTTP client for the SalesDesk API
type Client struct {
	baseURL       string
	httpClient    *http.Client
	tokens        *auth.TokenStore
	logger        zerolog.Logger
	onAuthExpired func()

	refreshGroup singleflight.Group
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithAuthExpiredHandler sets the hook run after an unrecoverable auth
// failure has cleared the stored tokens. The CLI uses it to send the user
// back to `salesdesk login`.
func WithAuthExpiredHandler(fn func()) Option {
	return func(c *Client) {
		c.onAuthExpired = fn
	}
}

// New creates a new API client for baseURL using tokens for credentials
func New(baseURL string, tokens *auth.TokenStore, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{},
		tokens:        tokens,
		logger:        zerolog.Nop(),
		onAuthExpired: func() {},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// BaseURL returns the API base URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Tokens returns the token store the client reads credentials from
func (c *Client) Tokens() *auth.TokenStore {
	return c.tokens
}

// Do sends req. When an authenticated call fails with 401 or 404 it refreshes
// the access token once and retries once; the retry's outcome is final. If the
// refresh is not possible the stored tokens are cleared, the auth-expired hook
// runs, and the original error is returned.
func (c *Client) Do(ctx context.Context, req Request) (*Body, error) {
	body, err := c.execute(ctx, req)
	if err == nil {
		return body, nil
	}

	var httpErr *HTTPError
	if !req.RequireAuth || !errors.As(err, &httpErr) || !httpErr.IsAuthExpiry() {
		return nil, err
	}

	c.logger.Debug().
		Int("status", httpErr.Status).
		Str("path", req.Path).
		Msg("Access token rejected, attempting refresh")

	if c.refresh(ctx) {
		return c.execute(ctx, req)
	}

	// An abandoned call says nothing about the session
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	c.expireSession()
	return nil, err
}

// execute performs exactly one HTTP round trip
func (c *Client) execute(ctx context.Context, req Request) (*Body, error) {
	payload, contentType, err := encodePayload(req.Payload)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	requestID := ulid.Make().String()
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", requestID)

	if req.RequireAuth {
		token, err := c.tokens.ReadAccess()
		if err != nil {
			return nil, fmt.Errorf("failed to load access token: %w", err)
		}
		if token != nil {
			httpReq.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token.Token))
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("API request")

	ok := resp.StatusCode >= 200 && resp.StatusCode < 300
	respType := resp.Header.Get("Content-Type")

	if !ok {
		return nil, &HTTPError{Status: resp.StatusCode, Message: string(raw)}
	}

	if isBinaryContentType(respType) {
		return &Body{Kind: KindBlob, ContentType: respType, Raw: raw}, nil
	}

	return parseTextBody(raw, respType), nil
}

// refresh exchanges the stored refresh token for a new access token.
// Concurrent callers holding the same refresh token share one exchange. The
// exchange runs detached from ctx so the rotated tokens are stored even if
// the caller that started it gives up; each caller stops waiting on its own ctx.
func (c *Client) refresh(ctx context.Context) bool {
	refreshToken, err := c.tokens.ReadRefresh()
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to load refresh token")
		return false
	}
	if refreshToken == "" {
		return false
	}

	exchangeCtx := context.WithoutCancel(ctx)
	result := c.refreshGroup.DoChan(refreshToken, func() (interface{}, error) {
		return nil, c.exchangeRefreshToken(exchangeCtx, refreshToken)
	})

	select {
	case <-ctx.Done():
		c.logger.Debug().Err(ctx.Err()).Msg("Stopped waiting for token refresh")
		return false
	case res := <-result:
		if res.Err != nil {
			c.logger.Warn().Err(res.Err).Msg("Token refresh failed")
			return false
		}
		c.logger.Debug().Bool("shared", res.Shared).Msg("Access token refreshed")
		return true
	}
}

func (c *Client) exchangeRefreshToken(ctx context.Context, refreshToken string) error {
	res, err := c.RefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}

	access, refresh := res.Tokens()
	if access == "" {
		return errors.New("refresh response did not contain an access token")
	}

	if err := c.tokens.WriteAccess(access, res.Email.String()); err != nil {
		return err
	}
	if refresh != "" {
		if err := c.tokens.WriteRefresh(refresh); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) expireSession() {
	if err := c.tokens.Clear(); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to clear stored tokens")
	}
	c.onAuthExpired()
}
