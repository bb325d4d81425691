// Package apiclient talks to the content API over HTTP.
//
// Every call goes through Client.do, which waits on the request limiter,
// stamps a request id, attaches the session cookie (and the optional bearer
// token) and turns {"error": ...} bodies into *APIError values. A 401 from
// any endpoint clears the session and fires the unauthorized hook before the
// error is returned.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/kingrea/insurecontent/internal/logging"
)

const (
	// DefaultBaseURL points at a locally running API.
	DefaultBaseURL = "http://localhost:5001/api"
	// DefaultTimeout bounds a single request. Generation calls are slow.
	DefaultTimeout = 120 * time.Second
	// RequestIDHeader carries the per-request UUID.
	RequestIDHeader = "X-Request-ID"
)

// Client calls the content API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *slog.Logger
	clock      func() time.Time

	mu             sync.RWMutex
	token          string
	onUnauthorized func()
}

// Option customizes client construction.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client. Its cookie jar is kept
// when set; otherwise a fresh jar is installed.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithRateLimit throttles outgoing requests. A non-positive rps disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

// WithToken sends a bearer token alongside the session cookie.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = strings.TrimSpace(token)
	}
}

// WithLogger routes request diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithUnauthorizedHandler registers a hook fired on every 401.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) {
		c.onUnauthorized = fn
	}
}

// WithClock allows tests to control token expiry checks.
func WithClock(clock func() time.Time) Option {
	return func(c *Client) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// New constructs a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logging.Discard(),
		clock:      time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.httpClient.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("apiclient: create cookie jar: %w", err)
		}
		c.httpClient.Jar = jar
	}
	return c, nil
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetToken replaces the bearer token.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = strings.TrimSpace(token)
}

// SetUnauthorizedHandler replaces the 401 hook.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onUnauthorized = fn
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// resetSession forgets the cookie and bearer token.
func (c *Client) resetSession() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	jar := c.httpClient.Jar
	root, err := url.Parse(c.baseURL)
	if jar == nil || err != nil {
		return
	}
	var expired []*http.Cookie
	for _, cookie := range jar.Cookies(root) {
		expired = append(expired, &http.Cookie{Name: cookie.Name, Path: "/", MaxAge: -1})
	}
	if len(expired) > 0 {
		jar.SetCookies(root, expired)
	}
}

func (c *Client) unauthorized(err error) error {
	c.resetSession()
	c.mu.RLock()
	hook := c.onUnauthorized
	c.mu.RUnlock()
	if hook != nil {
		hook()
	}
	return err
}

// checkToken rejects a bearer token whose exp claim has passed. The
// signature is the server's business; only expiry is inspected here.
func (c *Client) checkToken() error {
	token := c.currentToken()
	if token == "" {
		return nil
	}
	// Opaque tokens go out as-is; the server decides whether they are valid.
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return nil
	}
	if claims.ExpiresAt != nil && !claims.ExpiresAt.After(c.clock()) {
		return &APIError{Status: http.StatusUnauthorized, Message: "Session expired. Please log in again."}
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	_, err := c.send(ctx, method, path, in, out)
	return err
}

// send performs the request and reports the success status code for
// endpoints where 200 and 201 mean different things.
func (c *Client) send(ctx context.Context, method, path string, in, out any) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := c.checkToken(); err != nil {
		return 0, c.unauthorized(err)
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, fmt.Errorf("apiclient: wait for request slot: %w", err)
		}
	}
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("apiclient: encode %s body: %w", path, err)
		}
		body = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("apiclient: build %s %s: %w", method, path, err)
	}
	requestID := uuid.NewString()
	req.Header.Set(RequestIDHeader, requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := c.clock()
	log := c.logger.With(
		slog.String("method", method),
		slog.String("path", path),
		slog.String("request_id", requestID),
	)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("request failed", logging.Err(err))
		return 0, fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	log.Debug("request finished",
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", c.clock().Sub(start)),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := decodeError(resp, requestID)
		log.Warn("api error", slog.Int("status", apiErr.Status), slog.String("message", apiErr.Message))
		if apiErr.Status == http.StatusUnauthorized {
			return 0, c.unauthorized(apiErr)
		}
		return 0, apiErr
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return 0, fmt.Errorf("apiclient: decode %s response: %w", path, err)
	}
	return resp.StatusCode, nil
}

func decodeError(resp *http.Response, requestID string) *APIError {
	apiErr := &APIError{Status: resp.StatusCode, RequestID: requestID}
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(raw) == 0 {
		return apiErr
	}
	var payload errorResponse
	if err := json.Unmarshal(raw, &payload); err == nil {
		apiErr.Message = strings.TrimSpace(payload.Error)
		apiErr.Details = strings.TrimSpace(payload.Details)
		return apiErr
	}
	apiErr.Details = strings.TrimSpace(string(raw))
	return apiErr
}
