package completion

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse is returned when the service answers 200 with a body that has no usable completion.
var ErrMalformedResponse = errors.New("completion: malformed response")

// StatusError is a non-200 HTTP response from the completion service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("completion: service returned %d: %s", e.StatusCode, e.Body)
}

// Retryable reports whether the status is worth retrying (5xx and 429).
func (e *StatusError) Retryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// IsRetryable reports whether err is a transient completion failure: transport errors,
// timeouts and retryable status codes. Malformed responses and other 4xx are not.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, ErrMalformedResponse) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.Retryable()
	}
	var te *TransportError
	return errors.As(err, &te)
}

// TransportError wraps a failure to reach the service or read its response.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "completion: transport: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error { return e.Err }
