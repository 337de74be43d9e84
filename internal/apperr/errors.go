// Package apperr defines the error taxonomy shared by the chat pipeline.
//
// Every failure that crosses a component boundary is an *Error carrying a
// Kind. Callers dispatch on the kind rather than on message text:
//
//	switch apperr.KindOf(err) {
//	case apperr.KindConnection:
//	    // backend unreachable, show the URL
//	case apperr.KindConfiguration:
//	    // prompt the user to finish setup
//	}
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind int

const (
	// KindUnknown is returned by KindOf for errors outside the taxonomy.
	KindUnknown Kind = iota
	// KindConnection indicates the model backend could not be reached or
	// answered with a transport-level failure.
	KindConnection
	// KindConfiguration indicates required settings are missing.
	KindConfiguration
	// KindProtocol indicates the backend answered with an unexpected shape.
	KindProtocol
	// KindContentFetch indicates document content could not be read.
	// Fetchers absorb these; they only surface in logs.
	KindContentFetch
)

// String returns the kind name used in logs and API responses.
func (k Kind) String() string {
	switch k {
	case KindConnection:
		return "connection"
	case KindConfiguration:
		return "configuration"
	case KindProtocol:
		return "protocol"
	case KindContentFetch:
		return "content_fetch"
	default:
		return "unknown"
	}
}

// Error is a classified failure.
type Error struct {
	Kind   Kind   // Failure class
	Op     string // Operation that failed (e.g., "list models", "chat")
	URL    string // Backend base URL, set for connection failures
	Status int    // HTTP status when one was received, otherwise 0
	Err    error  // Underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Kind.String() + " error"
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.URL != "" {
		msg += fmt.Sprintf(" (url %s)", e.URL)
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap allows errors.Is and errors.As to see the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is an *Error of the same kind. This lets callers
// write errors.Is(err, apperr.ErrConfiguration).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.URL == "" && t.Status == 0 && t.Err == nil && t.Kind == e.Kind
}

// Sentinels for errors.Is comparisons.
var (
	ErrConnection    = &Error{Kind: KindConnection}
	ErrConfiguration = &Error{Kind: KindConfiguration}
	ErrProtocol      = &Error{Kind: KindProtocol}
	ErrContentFetch  = &Error{Kind: KindContentFetch}
)

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// URLOf returns the backend URL recorded on err, if any.
func URLOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.URL
	}
	return ""
}

// Connection returns a connection failure against url.
func Connection(op, url string, status int, err error) *Error {
	return &Error{Kind: KindConnection, Op: op, URL: url, Status: status, Err: err}
}

// Configuration returns a configuration failure.
func Configuration(op string, err error) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Err: err}
}

// Protocol returns a response-shape failure.
func Protocol(op string, status int, err error) *Error {
	return &Error{Kind: KindProtocol, Op: op, Status: status, Err: err}
}

// ContentFetch returns a document content failure.
func ContentFetch(op string, err error) *Error {
	return &Error{Kind: KindContentFetch, Op: op, Err: err}
}
