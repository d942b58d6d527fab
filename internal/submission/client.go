// Package submission is the client for the remote banking API that the
// wizards submit to. Every call takes an explicit Session; there is no
// ambient token.
package submission

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/agb-digital/onboarding/pkg/logger"
)

// Default timeouts
const (
	DefaultTimeout       = 10 * time.Second
	DefaultUploadTimeout = 30 * time.Second
	DefaultMaxRetries    = 3

	maxResponseBytes = 4 << 20
)

// ErrTransient marks network failures, timeouts and gateway errors. The
// caller may retry the same step without losing data.
var ErrTransient = errors.New("submission: transient failure")

// RejectedError is a response the backend answered with success=false.
// It is user-correctable and shown near the action button.
type RejectedError struct {
	Status  int
	Message string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("rejected (%d): %s", e.Status, e.Message)
}

// Session carries the bearer token for a caller. The zero Session is anonymous.
type Session struct {
	Token string
}

// Authenticated reports whether a token is attached
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Config configures a Client
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	UploadTimeout time.Duration
	MaxRetries    uint64
}

// Client talks to the remote API
type Client struct {
	baseURL       string
	http          *http.Client
	timeout       time.Duration
	uploadTimeout time.Duration
	maxRetries    uint64
	retryInterval time.Duration
	log           *logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithRetryInterval sets the first backoff interval for idempotent reads
func WithRetryInterval(d time.Duration) Option {
	return func(c *Client) { c.retryInterval = d }
}

// New creates a client. Zero durations fall back to the defaults.
func New(cfg Config, opts ...Option) *Client {
	c := &Client{
		baseURL:       strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		http:          &http.Client{},
		timeout:       cfg.Timeout,
		uploadTimeout: cfg.UploadTimeout,
		maxRetries:    cfg.MaxRetries,
		retryInterval: 200 * time.Millisecond,
		log:           logger.Nop(),
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}
	if c.uploadTimeout <= 0 {
		c.uploadTimeout = DefaultUploadTimeout
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root
func (c *Client) BaseURL() string {
	return c.baseURL
}

func transient(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrTransient, fmt.Sprintf(format, args...))
}

type failureBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

// do performs one request and decodes a successful body into out
func (c *Client) do(ctx context.Context, sess Session, method, path string, body io.Reader, contentType string, timeout time.Duration, out any) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if sess.Authenticated() {
		req.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	c.log.Debug().Str("method", method).Str("path", path).Msg("API request")

	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn().Err(err).Str("method", method).Str("path", path).Msg("API request failed")
		return transient("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transient("%s %s: reading body: %v", method, path, err)
	}

	c.log.Debug().Str("method", method).Str("path", path).Int("status", resp.StatusCode).Msg("API response")

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if out == nil || len(bytes.TrimSpace(raw)) == 0 {
			return nil
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("failed to decode %s %s response: %w", method, path, err)
		}
		return nil
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		c.log.Warn().Str("path", path).Int("status", resp.StatusCode).Msg("API gateway failure")
		return transient("%s %s: HTTP %d", method, path, resp.StatusCode)
	default:
		return rejected(resp.StatusCode, raw)
	}
}

func rejected(status int, raw []byte) *RejectedError {
	var fb failureBody
	_ = json.Unmarshal(raw, &fb)

	msg := fb.Message
	if msg == "" {
		msg = fb.Error
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d: %s", status, http.StatusText(status))
	}
	return &RejectedError{Status: status, Message: msg}
}

func (c *Client) sendJSON(ctx context.Context, sess Session, method, path string, in, out any) error {
	var body io.Reader
	contentType := ""
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}
	return c.do(ctx, sess, method, path, body, contentType, c.timeout, out)
}

// get retries transient failures with exponential backoff. Writes are never
// retried.
func (c *Client) get(ctx context.Context, sess Session, path string, out any) error {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = c.retryInterval
	eb.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(eb, c.maxRetries), ctx)

	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := c.do(ctx, sess, http.MethodGet, path, nil, "", c.timeout, out)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrTransient) {
			return backoff.Permanent(err)
		}
		c.log.Warn().Err(err).Str("path", path).Int("attempt", attempt).Msg("Retrying API read")
		return err
	}, policy)
}
