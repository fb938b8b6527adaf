package backend

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrTimeout marks an attempt that exceeded the per-attempt timeout.
	ErrTimeout = errors.New("request timed out")
	// ErrRetriesExhausted is returned once every allowed attempt timed out.
	ErrRetriesExhausted = errors.New("retries exhausted")
	// ErrBackendUnavailable marks a connection failure. It is never retried.
	ErrBackendUnavailable = errors.New("cannot connect to backend server")
	// ErrInvalidResponse marks a 2xx response whose body could not be decoded.
	ErrInvalidResponse = errors.New("invalid backend response")
)

// ProtocolError is a non-2xx HTTP response
type ProtocolError struct {
	StatusCode int
	Message    string          // "error" field of a JSON body, if any
	Details    json.RawMessage // "details" field of a JSON body, if any
}

func (e *ProtocolError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP error: %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP error: %d - %s", e.StatusCode, e.Message)
}

// BackendError is a 2xx response that reported success:false
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return "unknown backend error"
	}
	return e.Message
}

// ErrorKind classifies a failed call for presentation
type ErrorKind string

const (
	KindBackend         ErrorKind = "backend"     // backend answered success:false
	KindTimeout         ErrorKind = "timeout"     // retries exhausted
	KindUnavailable     ErrorKind = "unavailable" // connection failure
	KindProtocol        ErrorKind = "protocol"    // non-2xx status
	KindInvalidResponse ErrorKind = "invalid_response"
	KindCanceled        ErrorKind = "canceled"
	KindUnknown         ErrorKind = "unknown"
)

// KindOf maps an error returned by the client to its ErrorKind.
func KindOf(err error) ErrorKind {
	var protoErr *ProtocolError
	var backendErr *BackendError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &backendErr):
		return KindBackend
	case errors.Is(err, ErrRetriesExhausted), errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrBackendUnavailable):
		return KindUnavailable
	case errors.As(err, &protoErr):
		return KindProtocol
	case errors.Is(err, ErrInvalidResponse):
		return KindInvalidResponse
	case isCanceled(err):
		return KindCanceled
	default:
		return KindUnknown
	}
}
