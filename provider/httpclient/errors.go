package httpclient

import (
	"fmt"
	"net/http"
)

// Kind classifies a request failure; callers branch on kinds instead of
// matching error strings or concrete types
type Kind int

const (
	KindNetwork        Kind = iota // transport-level failure before any response
	KindTimeout                    // the call exceeded its deadline
	KindCircuitOpen                // synthetic, rejected by the circuit breaker
	KindRateLimited                // request volume exceeded
	KindValidation                 // caller error, never retried
	KindAuthentication             // missing or invalid credentials
	KindAuthorization              // authenticated but not allowed
	KindServer                     // 5xx not otherwise classified
)

// String returns the kind name used in logs and metrics
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindCircuitOpen:
		return "circuit_open"
	case KindRateLimited:
		return "rate_limited"
	case KindValidation:
		return "validation"
	case KindAuthentication:
		return "authentication"
	case KindAuthorization:
		return "authorization"
	case KindServer:
		return "server"
	default:
		return "unknown"
	}
}

// safeMessages are pre-generated, non-technical messages safe for display;
// no stack traces, internal identifiers or raw backend text
var safeMessages = map[Kind]string{
	KindNetwork:        "A network problem occurred. Please check your connection and try again.",
	KindTimeout:        "The request took too long to complete. Please try again.",
	KindCircuitOpen:    "The service is temporarily unavailable. Please try again shortly.",
	KindRateLimited:    "Too many requests. Please wait before trying again.",
	KindValidation:     "The request could not be processed. Please review your input.",
	KindAuthentication: "Please sign in to continue.",
	KindAuthorization:  "You do not have permission to perform this action.",
	KindServer:         "Something went wrong on our side. Please try again later.",
}

// Error is a classified request failure carrying both a technical kind and a
// message safe for end-user display
type Error struct {
	Kind       Kind
	Message    string // safe user-facing message
	Status     int    // HTTP status when a response was received, else 0
	RetryAfter int    // wait hint in seconds, 0 when not applicable
	Err        error  // underlying cause, for logs only
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	if e.Status > 0 {
		return fmt.Sprintf("%s: status %d", e.Kind, e.Status)
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates a classified error with the pre-generated safe message
func NewError(kind Kind, err error) *Error {
	return &Error{
		Kind:    kind,
		Message: safeMessages[kind],
		Err:     err,
	}
}

// FromStatus classifies an HTTP response status into an Error
func FromStatus(status int) *Error {
	var kind Kind
	switch {
	case status == http.StatusRequestTimeout:
		kind = KindTimeout
	case status == http.StatusTooManyRequests:
		kind = KindRateLimited
	case status == http.StatusUnauthorized:
		kind = KindAuthentication
	case status == http.StatusForbidden:
		kind = KindAuthorization
	case status >= 500:
		kind = KindServer
	default:
		kind = KindValidation
	}

	e := NewError(kind, nil)
	e.Status = status
	return e
}

// KindOf extracts the failure kind from an error
func KindOf(err error) (Kind, bool) {
	if e, ok := err.(*Error); ok {
		return e.Kind, true
	}
	return 0, false
}

// retryableStatus is the set of transient response codes worth retrying
var retryableStatus = map[int]bool{
	http.StatusRequestTimeout:      true, // 408
	http.StatusTooManyRequests:     true, // 429
	http.StatusInternalServerError: true, // 500
	http.StatusBadGateway:          true, // 502
	http.StatusServiceUnavailable:  true, // 503
	http.StatusGatewayTimeout:      true, // 504
}

// IsRetryable reports whether a failure is transient: network and timeout
// failures, plus responses carrying one of the transient status codes.
// Circuit-open and locally rate-limited failures are terminal signals and
// are never retried.
func IsRetryable(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	switch e.Kind {
	case KindNetwork, KindTimeout:
		return true
	default:
		return e.Status > 0 && retryableStatus[e.Status]
	}
}
