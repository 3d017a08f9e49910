// Package syncerr classifies failures of the sync pipeline.
//
// Every error carries a Kind and the subject it concerns: a file name,
// a document id or an index name. Use errors.Is with the sentinels to test
// the kind, and errors.As with *Error to recover the subject.
package syncerr

import (
	"errors"
	"fmt"
)

// Kind names a failure class.
type Kind string

const (
	KindNotFound   Kind = "not_found"
	KindTransport  Kind = "transport"
	KindParse      Kind = "parse"
	KindIndexState Kind = "index_state"
)

// Sentinel errors, one per kind.
var (
	// ErrNotFound indicates a file or attachment is missing from storage.
	ErrNotFound = errors.New("not found")

	// ErrTransport indicates a network or HTTP failure talking to the index or a file backend.
	ErrTransport = errors.New("transport error")

	// ErrParse indicates malformed metadata.
	ErrParse = errors.New("parse error")

	// ErrIndexState indicates the search engine answered with an error payload.
	ErrIndexState = errors.New("index error")
)

var sentinels = map[Kind]error{
	KindNotFound:   ErrNotFound,
	KindTransport:  ErrTransport,
	KindParse:      ErrParse,
	KindIndexState: ErrIndexState,
}

// Error is a classified pipeline failure.
type Error struct {
	Kind    Kind
	Subject string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.Subject, sentinels[e.Kind])
	}
	return fmt.Sprintf("%s: %v", e.Subject, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches the sentinel for the error's kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func newError(kind Kind, subject string, cause error) *Error {
	return &Error{Kind: kind, Subject: subject, Cause: cause}
}

// NotFound reports a missing file.
func NotFound(subject string, cause error) *Error {
	return newError(KindNotFound, subject, cause)
}

// Transport reports a network or HTTP failure.
func Transport(subject string, cause error) *Error {
	return newError(KindTransport, subject, cause)
}

// Parse reports malformed input.
func Parse(subject string, cause error) *Error {
	return newError(KindParse, subject, cause)
}

// IndexState reports an error payload returned by the search engine.
func IndexState(subject string, cause error) *Error {
	return newError(KindIndexState, subject, cause)
}

// KindOf returns the kind of the first classified error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// SubjectOf returns the subject of the first classified error in err's chain, or "".
func SubjectOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Subject
	}
	return ""
}
