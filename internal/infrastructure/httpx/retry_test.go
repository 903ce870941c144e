package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func testClient(server *httptest.Server, policy Policy) (*Client, *[]time.Duration) {
	waits := &[]time.Duration{}
	c := NewClient(time.Second, policy, nil).WithHTTPClient(server.Client())
	c.sleep = func(_ context.Context, d time.Duration) error {
		*waits = append(*waits, d)
		return nil
	}
	return c, waits
}

func getRequest(url string) func(ctx context.Context) (*http.Request, error) {
	return func(ctx context.Context) (*http.Request, error) {
		return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	}
}

var defaultPolicy = Policy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, RetryableStatuses: []int{429, 500, 502, 503, 504}}

func TestPolicyBackoff(t *testing.T) {
	t.Parallel()

	want := []time.Duration{500 * time.Millisecond, time.Second, 2 * time.Second}
	for i, w := range want {
		if got := defaultPolicy.Backoff(i + 1); got != w {
			t.Fatalf("Backoff(%d) = %s, want %s", i+1, got, w)
		}
	}
	if defaultPolicy.Retryable(404) || !defaultPolicy.Retryable(503) {
		t.Fatalf("unexpected retryable classification")
	}
}

func TestDoRetriesRetryableStatus(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer server.Close()

	c, waits := testClient(server, defaultPolicy)
	resp, err := c.Do(context.Background(), "search", getRequest(server.URL))
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	resp.Body.Close()

	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
	if len(*waits) != 2 || (*waits)[0] != 500*time.Millisecond || (*waits)[1] != time.Second {
		t.Fatalf("unexpected waits: %v", *waits)
	}
}

func TestDoStopsOnPermanentStatus(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad query", http.StatusBadRequest)
	}))
	defer server.Close()

	c, _ := testClient(server, defaultPolicy)
	_, err := c.Do(context.Background(), "search", getRequest(server.URL))
	if err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("permanent failure retried: %d calls", calls)
	}
	var se *StatusError
	if !errors.As(err, &se) || se.Code != http.StatusBadRequest || se.Body != "bad query" {
		t.Fatalf("expected StatusError with body, got %v", err)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "7")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	c, waits := testClient(server, defaultPolicy)
	_, err := c.Do(context.Background(), "notify", getRequest(server.URL))
	if !IsStatus(err, http.StatusTooManyRequests) {
		t.Fatalf("expected 429 status error, got %v", err)
	}
	for _, w := range *waits {
		if w != 7*time.Second {
			t.Fatalf("Retry-After should dominate backoff, got %v", *waits)
		}
	}
}

func TestDoSingleAttemptPolicy(t *testing.T) {
	t.Parallel()

	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	c, _ := testClient(server, Policy{})
	if _, err := c.Do(context.Background(), "token", getRequest(server.URL)); err == nil {
		t.Fatalf("expected error")
	}
	if calls != 1 {
		t.Fatalf("zero-value policy should try once, got %d", calls)
	}
}
