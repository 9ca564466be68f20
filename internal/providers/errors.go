package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed completion call.
type ErrorKind int

const (
	// KindTransport covers network failures, per-call deadline expiry,
	// malformed envelopes and unexpected statuses.
	KindTransport ErrorKind = iota
	// KindRateLimited is HTTP 429. It is the only retried kind.
	KindRateLimited
	// KindUnauthorized is HTTP 401 or 403.
	KindUnauthorized
	// KindUnavailable is a 5xx overload or outage status.
	KindUnavailable
)

func (k ErrorKind) String() string {
	switch k {
	case KindRateLimited:
		return "rate limited"
	case KindUnauthorized:
		return "unauthorized"
	case KindUnavailable:
		return "unavailable"
	default:
		return "transport"
	}
}

// maxErrorBody bounds the response body kept on an Error.
const maxErrorBody = 512

// Error is a classified completion failure.
type Error struct {
	Kind       ErrorKind
	Provider   string
	StatusCode int
	Body       string
	Err        error
}

func (e *Error) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("%s: %s (status %d): %s", e.Provider, e.Kind, e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Kind, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the classification of err, if it carries one.
func KindOf(err error) (ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsRateLimited checks if an error is a rate-limit rejection.
func IsRateLimited(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindRateLimited
}

// IsAuthError checks if an error is an authentication error.
func IsAuthError(err error) bool {
	k, ok := KindOf(err)
	return ok && k == KindUnauthorized
}

// kindForStatus maps a non-2xx HTTP status to an ErrorKind.
func kindForStatus(code int) ErrorKind {
	switch code {
	case http.StatusTooManyRequests:
		return KindRateLimited
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout, 529:
		return KindUnavailable
	default:
		return KindTransport
	}
}

func statusError(provider string, code int, body string) *Error {
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	return &Error{
		Kind:       kindForStatus(code),
		Provider:   provider,
		StatusCode: code,
		Body:       body,
	}
}

func transportError(provider string, err error) *Error {
	return &Error{Kind: KindTransport, Provider: provider, Err: err}
}

// classify wraps an SDK or net/http failure that carries no status code.
// Context cancellation is kept visible through Unwrap.
func classify(ctx context.Context, provider string, err error) error {
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = fmt.Errorf("%w: %w", ctxErr, err)
	}
	return transportError(provider, err)
}
