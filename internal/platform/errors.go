package platform

import (
	"context"
	"errors"
	"net/http"
)

// ErrorKind is the closed failure taxonomy every adapter must classify
// into. The dispatcher's retry-vs-fail decision keys off these values;
// free-text detail travels separately in Outcome.ErrorMessage.
type ErrorKind string

const (
	ErrAccountUnavailable   ErrorKind = "account_unavailable"
	ErrAuthExpired          ErrorKind = "auth_expired"
	ErrRateLimited          ErrorKind = "rate_limited"
	ErrTimeout              ErrorKind = "timeout"
	ErrContentRejected      ErrorKind = "content_rejected"
	ErrTransientServerError ErrorKind = "transient_server_error"
	ErrUnknown              ErrorKind = "unknown_error"
)

// Retryable reports whether a failure of this kind may be rescheduled
// automatically. Auth and content failures need the author, not a retry.
// A missing account is retryable: the user may connect one before the
// next cycle.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrAccountUnavailable, ErrRateLimited, ErrTimeout, ErrTransientServerError:
		return true
	}
	return false
}

// KindFromStatus maps an HTTP response status to an ErrorKind.
func KindFromStatus(status int) ErrorKind {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrAuthExpired
	case status == http.StatusTooManyRequests:
		return ErrRateLimited
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return ErrTimeout
	case status >= 500:
		return ErrTransientServerError
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity ||
		status == http.StatusRequestEntityTooLarge:
		return ErrContentRejected
	default:
		return ErrUnknown
	}
}

// KindFromError classifies transport-level errors. Context expiry is the
// adapter call timeout; everything else network-ish counts as transient.
func KindFromError(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ErrTimeout
	}
	return ErrTransientServerError
}
