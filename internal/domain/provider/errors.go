package provider

import (
	"errors"
	"fmt"
)

// APIError is a non-retryable provider response (4xx other than 429, or a
// 5xx that survived the retry budget). It carries enough of the response to
// support manual recovery.
type APIError struct {
	Provider   string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: http %d: %s", e.Provider, e.StatusCode, e.Body)
}

// AuthFailure reports a provider-side authentication problem, which callers
// must treat as "connection broken", not as an ordinary failure.
func (e *APIError) AuthFailure() bool {
	return e.StatusCode == 401 || e.StatusCode == 403
}

func IsAuthFailure(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.AuthFailure()
}

func IsNotFound(err error) bool {
	var ae *APIError
	return errors.As(err, &ae) && ae.StatusCode == 404
}
