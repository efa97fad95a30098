package common

import (
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"
)

type Options struct {
	Timeout      time.Duration // per-request
	MaxAttempts  int           // total tries for transient failures
	BackoffMin   time.Duration
	BackoffMax   time.Duration
	UserAgent    string
	APIKey       string
	APIKeyHeader string
}

func DefaultOptionsFromEnv() Options {
	parseDur := func(k string, d time.Duration) time.Duration {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			if x, err := time.ParseDuration(v); err == nil {
				return x
			}
		}
		return d
	}
	parseInt := func(k string, d int) int {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			if x, err := strconv.Atoi(v); err == nil {
				return x
			}
		}
		return d
	}
	ua := os.Getenv("HTTP_USER_AGENT")
	if ua == "" {
		ua = "archvd-sync/1.0"
	}
	return Options{
		Timeout:      parseDur("HTTP_TIMEOUT", 15*time.Second),
		MaxAttempts:  parseInt("HTTP_MAX_ATTEMPTS", 5),
		BackoffMin:   parseDur("HTTP_BACKOFF_MIN", 200*time.Millisecond),
		BackoffMax:   parseDur("HTTP_BACKOFF_MAX", 10*time.Second),
		UserAgent:    ua,
		APIKeyHeader: "X-API-Key",
	}
}

// backoff: min(base << attempt, max) with ±25% jitter.
func backoff(o Options, attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := o.BackoffMin
	if base <= 0 {
		base = 200 * time.Millisecond
	}
	max := o.BackoffMax
	if max < base {
		max = 10 * base
	}
	d := base << attempt
	if d > max || d <= 0 {
		d = max
	}
	quarter := int64(d / 4)
	if quarter <= 0 {
		return d
	}
	return d - time.Duration(quarter) + time.Duration(rand.Int63n(2*quarter))
}
