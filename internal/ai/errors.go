package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// ErrMalformedResponse reports a completion that holds no parsable JSON
// object. Enrichers recover from it locally; it never reaches callers of
// RequestEnrichment.
var ErrMalformedResponse = errors.New("malformed enrichment response")

// TransportError is a network-level failure reaching the enrichment
// capability, including cancellation and timeouts.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport failure: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RemoteServiceError is a non-success status returned by the enrichment
// capability.
type RemoteServiceError struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteServiceError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: remote service returned %d: %s", e.Op, e.StatusCode, msg)
}

func (e *RemoteServiceError) Unwrap() error { return e.Err }

// IsTransient reports whether err is worth retrying later: transport
// failures, rate limiting and 5xx responses. Callers decide; nothing in this
// package retries.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var te *TransportError
	if errors.As(err, &te) {
		return true
	}
	var re *RemoteServiceError
	if errors.As(err, &re) {
		return re.StatusCode == http.StatusTooManyRequests || re.StatusCode >= 500
	}
	return false
}

func transportError(op string, err error) error {
	return &TransportError{Op: op, Err: err}
}
