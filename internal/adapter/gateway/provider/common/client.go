package common

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/TheDarkKnight1989/archvd-sub000/internal/domain/provider"
)

// Client is the shared rate-limited JSON client all provider gateways build
// on. Transient failures (429, 5xx, network) are retried internally; a 429
// additionally penalizes the shared limiter and does not consume the retry
// budget.
type Client struct {
	Provider string
	Base     string
	HC       *http.Client
	Limiter  *RateLimiter
	Opts     Options

	sleepFn func(context.Context, time.Duration) error
}

func NewWith(providerName, base string, lim *RateLimiter, opts Options) *Client {
	if lim == nil {
		lim = NewRateLimiter(time.Second, 30*time.Second)
	}
	return &Client{
		Provider: providerName,
		Base:     base,
		Limiter:  lim,
		Opts:     opts,
		HC: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				DialContext:  (&net.Dialer{Timeout: 5 * time.Second}).DialContext,
				MaxIdleConns: 100, IdleConnTimeout: 90 * time.Second,
			},
		},
		sleepFn: sleepCtx,
	}
}

func (c *Client) GetJSON(ctx context.Context, path string, params map[string]string, v any) error {
	return c.do(ctx, http.MethodGet, path, params, nil, v)
}

func (c *Client) PostJSON(ctx context.Context, path string, body, v any) error {
	return c.do(ctx, http.MethodPost, path, nil, body, v)
}

func (c *Client) PutJSON(ctx context.Context, path string, body, v any) error {
	return c.do(ctx, http.MethodPut, path, nil, body, v)
}

func (c *Client) DeleteJSON(ctx context.Context, path string, v any) error {
	return c.do(ctx, http.MethodDelete, path, nil, nil, v)
}

func (c *Client) do(ctx context.Context, method, path string, params map[string]string, body, v any) error {
	u := c.Base + path
	if len(params) > 0 {
		q := url.Values{}
		for k, val := range params {
			q.Set(k, val)
		}
		u += "?" + q.Encode()
	}

	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", c.Provider, err)
		}
		payload = b
	}

	attempt := 0
	for {
		if err := c.Limiter.Wait(ctx); err != nil {
			return err
		}

		status, respBody, err := c.once(ctx, method, u, payload)
		switch {
		case err != nil:
			// network-level failure
			if attempt+1 >= c.Opts.MaxAttempts {
				return fmt.Errorf("%s: %s %s: %w", c.Provider, method, path, err)
			}
			if serr := c.sleepFn(ctx, backoff(c.Opts, attempt)); serr != nil {
				return serr
			}
			attempt++

		case status == http.StatusTooManyRequests:
			// does not count against the retry budget
			if serr := c.sleepFn(ctx, c.Limiter.Penalize()); serr != nil {
				return serr
			}

		case status >= 500 && status <= 599:
			if attempt+1 >= c.Opts.MaxAttempts {
				return &provider.APIError{Provider: c.Provider, StatusCode: status, Body: trim(respBody)}
			}
			if serr := c.sleepFn(ctx, backoff(c.Opts, attempt)); serr != nil {
				return serr
			}
			attempt++

		case status >= 300:
			return &provider.APIError{Provider: c.Provider, StatusCode: status, Body: trim(respBody)}

		default:
			c.Limiter.Reward()
			if v == nil || len(respBody) == 0 {
				return nil
			}
			if err := json.Unmarshal(respBody, v); err != nil {
				return fmt.Errorf("%s: decode %s: %w", c.Provider, path, err)
			}
			return nil
		}
	}
}

func (c *Client) once(ctx context.Context, method, u string, payload []byte) (int, []byte, error) {
	var rd io.Reader
	if payload != nil {
		rd = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return 0, nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Opts.UserAgent != "" {
		req.Header.Set("User-Agent", c.Opts.UserAgent)
	}
	if c.Opts.APIKey != "" {
		req.Header.Set(c.Opts.APIKeyHeader, c.Opts.APIKey)
	}
	res, err := c.HC.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	return res.StatusCode, b, nil
}

func trim(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 512 {
		s = s[:512]
	}
	return s
}
