package common

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/provider"
)

func testClient(ts *httptest.Server) (*Client, *[]time.Duration) {
	lim := NewRateLimiter(time.Second, 30*time.Second)
	var slept []time.Duration
	record := func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	lim.sleepFn = record
	c := NewWith("test", ts.URL, lim, Options{
		Timeout:     2 * time.Second,
		MaxAttempts: 5,
		BackoffMin:  10 * time.Millisecond,
		BackoffMax:  50 * time.Millisecond,
	})
	c.sleepFn = record
	return c, &slept
}

func TestGetJSON_RateLimitDoesNotConsumeBudget(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer ts.Close()

	c, slept := testClient(ts)
	var v struct {
		OK bool `json:"ok"`
	}
	if err := c.GetJSON(context.Background(), "/x", nil, &v); err != nil {
		t.Fatalf("GetJSON: %v", err)
	}
	if !v.OK {
		t.Fatalf("body not decoded")
	}
	if got := atomic.LoadInt32(&calls); got != 2 {
		t.Fatalf("calls = %d, want 2", got)
	}
	// delay grew 1s → 1.5s, and the retry slept 2×new delay
	if d := c.Limiter.Delay(); d != 1500*time.Millisecond {
		t.Fatalf("delay after 429 = %v, want 1.5s", d)
	}
	found := false
	for _, d := range *slept {
		if d == 3*time.Second {
			found = true
		}
	}
	if !found {
		t.Fatalf("no 2×delay sleep recorded, slept=%v", *slept)
	}
}

func TestGetJSON_TransientRetriesExhaust(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	c, _ := testClient(ts)
	err := c.GetJSON(context.Background(), "/x", nil, nil)
	if err == nil {
		t.Fatal("want error")
	}
	var ae *provider.APIError
	if !errors.As(err, &ae) || ae.StatusCode != http.StatusBadGateway {
		t.Fatalf("err = %v, want APIError 502", err)
	}
	if got := atomic.LoadInt32(&calls); got != 5 {
		t.Fatalf("calls = %d, want 5 (attempt ceiling)", got)
	}
}

func TestGetJSON_NonRetryablePropagatesImmediately(t *testing.T) {
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"error":"size not allowed"}`))
	}))
	defer ts.Close()

	c, _ := testClient(ts)
	err := c.GetJSON(context.Background(), "/x", nil, nil)
	var ae *provider.APIError
	if !errors.As(err, &ae) {
		t.Fatalf("err = %v, want APIError", err)
	}
	if ae.StatusCode != 422 || ae.Body == "" {
		t.Fatalf("APIError = %+v", ae)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("calls = %d, want 1", got)
	}
}

func TestGetJSON_AuthFailureClassified(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer ts.Close()

	c, _ := testClient(ts)
	err := c.GetJSON(context.Background(), "/x", nil, nil)
	if !provider.IsAuthFailure(err) {
		t.Fatalf("err = %v, want auth failure", err)
	}
}

func TestRateLimiter_RelaxesAfterTwoSuccesses(t *testing.T) {
	lim := NewRateLimiter(time.Second, 30*time.Second)
	lim.Penalize()
	lim.Penalize()
	raised := lim.Delay()
	if raised <= time.Second {
		t.Fatalf("delay did not grow: %v", raised)
	}
	lim.Reward()
	if lim.Delay() != raised {
		t.Fatalf("delay relaxed after a single success")
	}
	lim.Reward()
	if lim.Delay() >= raised {
		t.Fatalf("delay did not relax after two successes")
	}
}

func TestRateLimiter_PenaltyCapped(t *testing.T) {
	lim := NewRateLimiter(time.Second, 2*time.Second)
	for i := 0; i < 10; i++ {
		lim.Penalize()
	}
	if lim.Delay() != 2*time.Second {
		t.Fatalf("delay = %v, want capped at 2s", lim.Delay())
	}
}

func TestRateLimiter_WaitHonorsCancel(t *testing.T) {
	lim := NewRateLimiter(time.Hour, 2*time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = lim.Wait(ctx) // first call has no spacing yet
	if err := lim.Wait(ctx); err == nil {
		t.Fatal("want context error on second wait")
	}
}
