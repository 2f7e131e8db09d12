package errors

import "fmt"

// Kind classifies the errors the export pipeline has to react to
type Kind string

const (
	KindTransient Kind = "transient"  // network timeout, 429, 5xx
	KindAuth      Kind = "auth"       // 401/403, aborts the stage
	KindNotFound  Kind = "not_found"  // missing resource or unit
	KindDataShape Kind = "data_shape" // undecodable JSON
	KindStoreIO   Kind = "store_io"   // unit store read/write/delete
	KindPartial   Kind = "partial"    // dependent sub-resource failed
	KindUnknown   Kind = "unknown"
)

// Error carries the kind alongside the HTTP status code when one exists.
// Code is 0 for errors that never touched the wire.
type Error struct {
	Kind    Kind
	Message string
	Code    int
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s error (status %d): %s", e.Kind, e.Code, e.Message)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

// New creates an Error without an HTTP status code.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error with a formatted message.
func Newf(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// FromStatusCode maps an HTTP status code onto the taxonomy.
func FromStatusCode(code int, message string) *Error {
	return &Error{Kind: KindForStatusCode(code), Message: message, Code: code}
}

// KindForStatusCode classifies an HTTP status code.
func KindForStatusCode(code int) Kind {
	switch {
	case code == 401 || code == 403:
		return KindAuth
	case code == 404:
		return KindNotFound
	case code == 408 || code == 429:
		return KindTransient
	case code >= 500:
		return KindTransient
	case code == 0:
		// Network error, never got a response.
		return KindTransient
	default:
		return KindUnknown
	}
}

// IsRetryable reports whether errors of this kind should be retried.
func IsRetryable(kind Kind) bool {
	return kind == KindTransient
}

// IsFatal reports whether errors of this kind abort the stage. Credentials
// are not expected to become valid mid-run.
func IsFatal(kind Kind) bool {
	return kind == KindAuth
}
