// Package httpx wraps net/http with an explicit, testable retry policy.
package httpx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"DealScanner/internal/config"
)

const maxErrorBody = 1024

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Code   int
	Status string
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %s", e.Status)
	}
	return fmt.Sprintf("unexpected status %s: %s", e.Status, e.Body)
}

// Policy decides how many times and how long to wait before re-issuing a request.
type Policy struct {
	MaxAttempts       int
	BaseDelay         time.Duration
	RetryableStatuses []int
}

// PolicyFromConfig maps configuration onto a Policy.
func PolicyFromConfig(cfg config.RetryConfig) Policy {
	return Policy{
		MaxAttempts:       cfg.MaxAttempts,
		BaseDelay:         cfg.BaseDelay,
		RetryableStatuses: cfg.RetryableStatuses,
	}
}

// Retryable reports whether a response status should be retried.
func (p Policy) Retryable(code int) bool {
	return slices.Contains(p.RetryableStatuses, code)
}

// Backoff returns the wait before the given retry (attempt starts at 1).
func (p Policy) Backoff(attempt int) time.Duration {
	if attempt < 1 || p.BaseDelay <= 0 {
		return 0
	}
	return p.BaseDelay << (attempt - 1)
}

func (p Policy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

// Client executes requests under a Policy.
type Client struct {
	http   *http.Client
	policy Policy
	logger *slog.Logger
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewClient wires an http.Client with the given per-call timeout.
func NewClient(timeout time.Duration, policy Policy, logger *slog.Logger) *Client {
	return &Client{
		http:   &http.Client{Timeout: timeout},
		policy: policy,
		logger: logger,
		sleep:  sleepContext,
	}
}

// WithHTTPClient replaces the underlying transport client (tests use httptest clients).
func (c *Client) WithHTTPClient(client *http.Client) *Client {
	if client != nil {
		c.http = client
	}
	return c
}

// Do builds and sends a request until it succeeds, fails permanently or attempts run out.
// On success the caller owns the response body.
func (c *Client) Do(ctx context.Context, name string, build func(ctx context.Context) (*http.Request, error)) (*http.Response, error) {
	attempts := c.policy.attempts()
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		req, err := build(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: build request: %w", name, err)
		}

		resp, err := c.http.Do(req)
		var wait time.Duration
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%s: %w", name, ctx.Err())
			}
			lastErr = err
			wait = c.policy.Backoff(attempt)
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			return resp, nil
		default:
			statusErr := readStatusError(resp)
			lastErr = statusErr
			if !c.policy.Retryable(resp.StatusCode) {
				return nil, fmt.Errorf("%s: %w", name, statusErr)
			}
			wait = max(c.policy.Backoff(attempt), retryAfter(resp.Header.Get("Retry-After")))
		}

		if attempt == attempts {
			break
		}
		if c.logger != nil {
			c.logger.Warn("request failed, retrying",
				"request", name, "attempt", attempt, "max_attempts", attempts, "wait", wait, "error", lastErr)
		}
		if err := c.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	return nil, fmt.Errorf("%s failed after %d attempts: %w", name, attempts, lastErr)
}

func readStatusError(resp *http.Response) *StatusError {
	defer resp.Body.Close()
	payload, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	return &StatusError{
		Code:   resp.StatusCode,
		Status: resp.Status,
		Body:   strings.TrimSpace(string(payload)),
	}
}

// IsStatus reports whether err carries a StatusError with the given code.
func IsStatus(err error, code int) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == code
}

func retryAfter(value string) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
