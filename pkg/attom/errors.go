package attom

import (
	"errors"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/sells-group/valuation-cli/internal/resilience"
)

// ErrNotFound indicates the property or area is absent from the
// authoritative database (404 or an empty result set). Structural: callers
// escalate to the next fallback stage instead of retrying.
var ErrNotFound = eris.New("attom: not found")

// AuthError indicates the API rejected our credentials (401/403).
type AuthError struct {
	StatusCode int
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("attom: authentication failed (status %d)", e.StatusCode)
}

// RequestError indicates a malformed request (400).
type RequestError struct {
	Body string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("attom: bad request: %s", e.Body)
}

// statusError maps a non-200 HTTP status to the typed error taxonomy.
// Every non-200 status produces a typed error, never a silently-empty
// success.
func statusError(statusCode int, body string) error {
	switch {
	case statusCode == 404:
		return ErrNotFound
	case statusCode == 401 || statusCode == 403:
		return &AuthError{StatusCode: statusCode}
	case statusCode == 400:
		return &RequestError{Body: body}
	case resilience.IsTransientHTTPStatus(statusCode):
		return resilience.NewTransientError(
			eris.Errorf("attom: status %d: %s", statusCode, body), statusCode)
	default:
		return eris.Errorf("attom: unexpected status %d: %s", statusCode, body)
	}
}

// IsNotFound reports whether err is the structural not-found failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAuthError reports whether err is a credential failure.
func IsAuthError(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}
