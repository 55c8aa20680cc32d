package provider

import (
	"errors"
	"fmt"
	"net/http"
)

// Per-attempt failures. Each one tells the router to move on to the next
// chain entry.
var (
	// ErrNetwork indicates the upstream could not be reached
	ErrNetwork = errors.New("network failure")

	// ErrStatus indicates the upstream answered with a non-2xx status
	ErrStatus = errors.New("unexpected response status")

	// ErrMalformedResponse indicates the upstream body could not be decoded
	ErrMalformedResponse = errors.New("malformed response")

	// ErrAuthentication indicates a missing or rejected credential
	ErrAuthentication = errors.New("authentication failure")

	// ErrNotImplemented indicates the source has no usable backend (local kinds without an endpoint)
	ErrNotImplemented = errors.New("not implemented")

	// ErrRateLimited indicates the source's local rate limit is exhausted
	ErrRateLimited = errors.New("rate limit exceeded")
)

// Configuration errors
var (
	// ErrEmptyChain indicates a chain with no entries
	ErrEmptyChain = errors.New("fallback chain is empty")

	// ErrInvalidKind indicates an unknown source kind
	ErrInvalidKind = errors.New("invalid source kind")
)

// StatusError carries the status code and body of a non-2xx response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream returned status %d", e.Code)
	}
	return fmt.Sprintf("upstream returned status %d: %s", e.Code, e.Body)
}

// Is matches ErrStatus for every code, and ErrAuthentication for 401/403.
func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrStatus:
		return true
	case ErrAuthentication:
		return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
	}
	return false
}

// Retryable reports whether err is worth retrying against the same source.
func Retryable(err error) bool {
	if errors.Is(err, ErrNetwork) {
		return true
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Code == http.StatusTooManyRequests || se.Code >= 500
	}
	return false
}
