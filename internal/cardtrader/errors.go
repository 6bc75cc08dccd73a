package cardtrader

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrMissingToken is returned before any request is made when no API
	// token is configured.
	ErrMissingToken = errors.New("cardtrader: missing api token")

	// ErrUnauthorized matches APIErrors with a 401 or 403 status.
	ErrUnauthorized = errors.New("cardtrader: unauthorized")

	// ErrRateLimited matches APIErrors with a 429 status.
	ErrRateLimited = errors.New("cardtrader: rate limited")

	// ErrMalformedResponse is returned when a 2xx body cannot be decoded.
	ErrMalformedResponse = errors.New("cardtrader: malformed response")
)

// APIError is a non-2xx response from the marketplace API.
type APIError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("cardtrader: %s %s: status %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("cardtrader: %s %s: status %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}

// Is lets callers test the status class with errors.Is.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// IsAuth reports whether err means the credential was absent or rejected.
func IsAuth(err error) bool {
	return errors.Is(err, ErrMissingToken) || errors.Is(err, ErrUnauthorized)
}
