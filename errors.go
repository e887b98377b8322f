package r2up

import (
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	// ErrMissingConfig is returned when required credentials or bucket
	// configuration is absent
	ErrMissingConfig = errors.New("missing configuration")
	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when the store reports a missing object
	ErrNotFound = errors.New("not found")
)

// maxErrorBodyBytes caps how much of a store error response is kept.
const maxErrorBodyBytes = 512

// TransportError is returned when the object store responds with a non-2xx
// status. The response body is truncated to maxErrorBodyBytes.
type TransportError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: store returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// newTransportError drains up to maxErrorBodyBytes of the response body into
// a TransportError for the given operation.
func newTransportError(op string, resp *http.Response) *TransportError {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
	return &TransportError{
		Op:         op,
		StatusCode: resp.StatusCode,
		Body:       string(body),
	}
}
