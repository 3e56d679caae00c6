package ragflow

import (
	"errors"
	"fmt"
)

// Sentinel errors for consistent error handling.
var (
	ErrInvalidConfig     = errors.New("ragflow: invalid client configuration")
	ErrClosed            = errors.New("ragflow: client closed")
	ErrTimeout           = errors.New("ragflow: request timeout")
	ErrConnection        = errors.New("ragflow: connection error")
	ErrMalformedResponse = errors.New("ragflow: malformed response")
)

// APIError is returned when the backend answers with HTTP status >= 400.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("ragflow: api error %d: %s", e.StatusCode, e.Body)
}

// EnvelopeError is returned when the response envelope carries a non-zero
// (or missing) code.
type EnvelopeError struct {
	Code    int
	Message string
}

func (e *EnvelopeError) Error() string {
	return e.Message
}

// IsBackendError reports whether err is an HTTP-level or envelope-level
// failure reported by RAGFlow itself, as opposed to a transport failure.
func IsBackendError(err error) bool {
	var apiErr *APIError
	var envErr *EnvelopeError
	return errors.As(err, &apiErr) || errors.As(err, &envErr)
}
