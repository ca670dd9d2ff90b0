// Package apperr is the error taxonomy shared by the order and notification
// components. Handlers translate any error into a status code with HTTPStatus;
// components never let an untyped error reach the transport.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error by who must act on it.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindConfiguration Kind = "configuration"
	KindNotFound      Kind = "not_found"
	KindConflict      Kind = "conflict"
	KindUpstream      Kind = "upstream"
	KindInternal      Kind = "internal"
)

// Error is the typed error returned at component boundaries.
type Error struct {
	Kind    Kind
	Op      string
	Message string

	// UpstreamStatus and UpstreamBody are set for KindUpstream when the
	// dependency answered with a non-success status.
	UpstreamStatus int
	UpstreamBody   string

	Err error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.UpstreamBody != "" {
		msg = msg + ": " + e.UpstreamBody
	}
	if e.Op == "" {
		return msg
	}
	return e.Op + ": " + msg
}

func (e *Error) Unwrap() error { return e.Err }

// Validation reports malformed or missing caller input.
func Validation(op, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Configuration reports a required credential or setting that is absent.
func Configuration(op, format string, args ...any) *Error {
	return &Error{Kind: KindConfiguration, Op: op, Message: fmt.Sprintf(format, args...)}
}

func NotFound(op, format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...)}
}

func Conflict(op, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Op: op, Message: fmt.Sprintf(format, args...)}
}

// Upstream wraps a transport failure talking to an external dependency.
func Upstream(op string, err error) *Error {
	return &Error{Kind: KindUpstream, Op: op, Err: err}
}

// UpstreamStatus reports a non-success response from an external dependency.
// The body is truncated so a large error page never ends up in a response.
func UpstreamStatus(op string, status int, body []byte) *Error {
	return &Error{
		Kind:           KindUpstream,
		Op:             op,
		Message:        fmt.Sprintf("upstream responded with status %d", status),
		UpstreamStatus: status,
		UpstreamBody:   Truncate(string(body), maxUpstreamBody),
	}
}

const maxUpstreamBody = 2048

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// UpstreamDetail returns the dependency's status and truncated body when err
// reports a non-success upstream response.
func UpstreamDetail(err error) (status int, body string) {
	var e *Error
	if !errors.As(err, &e) {
		return 0, ""
	}
	return e.UpstreamStatus, e.UpstreamBody
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// HTTPStatus maps an error to the response status code.
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindConfiguration:
		return http.StatusPreconditionFailed
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Message returns the caller-facing text for err. Internal errors are not
// echoed verbatim.
func Message(err error) string {
	var e *Error
	if !errors.As(err, &e) {
		return "internal server error"
	}
	if e.Message != "" {
		return e.Message
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return string(e.Kind)
}

// Truncate shortens s to at most n bytes, marking the cut.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "...(truncated)"
}
