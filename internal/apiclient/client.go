// Package apiclient talks to the bookshelf HTTP API. It is what the CLI uses
// for accounts, the catalog and the remote copy of the library.
//
// Failures are mapped onto a small set of sentinel errors so callers can use
// errors.Is: ErrUnavailable, ErrUnauthorized, ErrNotFound, ErrConflict.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("already exists")
)

// APIError is a non-2xx response that none of the sentinels describe.
type APIError struct {
	Status  int
	Code    string
	Message string
	Details []FieldError
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if len(e.Details) == 0 {
		return fmt.Sprintf("api error %d %s: %s", e.Status, e.Code, e.Message)
	}
	parts := make([]string, 0, len(e.Details))
	for _, d := range e.Details {
		parts = append(parts, d.Field+" "+d.Message)
	}
	return fmt.Sprintf("api error %d %s: %s (%s)", e.Status, e.Code, e.Message, strings.Join(parts, "; "))
}

// Credentials are the tokens of a signed-in user.
type Credentials struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	UserID       string `json:"user_id"`
	DisplayName  string `json:"display_name"`
}

type Client struct {
	baseURL string
	http    *http.Client

	mu        sync.Mutex
	creds     *Credentials
	onRefresh func(Credentials)
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithRefreshHook registers fn to be called after tokens were rotated, so the
// caller can persist them.
func WithRefreshHook(fn func(Credentials)) Option {
	return func(c *Client) { c.onRefresh = fn }
}

func New(baseURL string, timeout time.Duration, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetCredentials installs (or with nil clears) the tokens used for
// authenticated calls.
func (c *Client) SetCredentials(creds *Credentials) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if creds == nil {
		c.creds = nil
		return
	}
	cp := *creds
	c.creds = &cp
}

func (c *Client) Credentials() *Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.creds == nil {
		return nil
	}
	cp := *c.creds
	return &cp
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   struct {
		Code    string       `json:"code"`
		Message string       `json:"message"`
		Details []FieldError `json:"details"`
	} `json:"error"`
}

// call performs one request. With auth set it sends the access token and,
// on a 401, rotates the tokens once and retries.
func (c *Client) call(ctx context.Context, method, path string, body, out any, auth bool) error {
	err := c.do(ctx, method, path, body, out, auth)
	if !auth || !errors.Is(err, ErrUnauthorized) {
		return err
	}
	if rerr := c.refresh(ctx); rerr != nil {
		return err
	}
	return c.do(ctx, method, path, body, out, auth)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, auth bool) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		creds := c.Credentials()
		if creds == nil || creds.AccessToken == "" {
			return ErrUnauthorized
		}
		req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
		}
		return fmt.Errorf("decode response: %w", err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(env.Data) == 0 {
			return nil
		}
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode response data: %w", err)
		}
		return nil
	}

	return mapStatus(resp.StatusCode, &APIError{
		Status:  resp.StatusCode,
		Code:    env.Error.Code,
		Message: env.Error.Message,
		Details: env.Error.Details,
	})
}

func mapStatus(status int, apiErr *APIError) error {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrUnauthorized, apiErr.Message)
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrNotFound, apiErr.Message)
	case status == http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrConflict, apiErr.Message)
	case status == http.StatusTooManyRequests || status >= 500:
		return fmt.Errorf("%w: %s", ErrUnavailable, apiErr.Error())
	default:
		return apiErr
	}
}
