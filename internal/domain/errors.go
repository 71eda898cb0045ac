package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failed request so UI code can branch on it without
// inspecting status codes: show a retry control, accept the login redirect,
// or show a permanent denial.
type ErrorKind int

const (
	KindSessionExpired ErrorKind = iota + 1
	KindForbidden
	KindRateLimited
	KindServerError
	KindRequestFailed
	KindNetworkError
	KindValidation
)

func (k ErrorKind) String() string {
	switch k {
	case KindSessionExpired:
		return "session_expired"
	case KindForbidden:
		return "forbidden"
	case KindRateLimited:
		return "rate_limited"
	case KindServerError:
		return "server_error"
	case KindRequestFailed:
		return "request_failed"
	case KindNetworkError:
		return "network_error"
	case KindValidation:
		return "validation_error"
	}
	return "unknown"
}

// APIError is the single failure type produced by the request gateway.
type APIError struct {
	Kind    ErrorKind
	Status  int    // HTTP status, 0 for network-level failures
	Message string // user-presentable message
	Err     error  // underlying cause, if any
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// Retryable reports whether an immediate retry can plausibly succeed.
// Session expiry and forbidden need a new login, not a retry.
func (e *APIError) Retryable() bool {
	switch e.Kind {
	case KindNetworkError, KindServerError, KindRateLimited:
		return true
	}
	return false
}

// IsKind reports whether err is an APIError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Kind == kind
}
