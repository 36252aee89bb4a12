// Package errors is the structured error type every layer shares.
// Import it as perr (platform errors) to keep stderrs free for the
// standard library.
package errors

import (
	stderrs "errors"
	"fmt"
	"net/http"
)

// ErrorCode classifies a failure. Values are stable on the wire; append
// only, never reorder.
type ErrorCode uint16

const (
	// ErrorCodeUnknown is the default for unclassified failures
	ErrorCodeUnknown ErrorCode = iota

	// ErrorCodePanic marks panics recovered by middleware
	ErrorCodePanic

	// ErrorCodeUnavailable marks transient failures a retry may clear
	ErrorCodeUnavailable

	// ErrorCodeTooManyRequests marks rate-limited calls
	ErrorCodeTooManyRequests

	// ErrorCodeConflict marks editing conflicts beyond duplicate keys
	ErrorCodeConflict

	// ErrorCodeUnauthorized marks missing or bad credentials
	ErrorCodeUnauthorized

	// ErrorCodeForbidden marks access-control refusals
	ErrorCodeForbidden

	// ErrorCodeInvalidArgument marks bad input parameters
	ErrorCodeInvalidArgument

	// ErrorCodeValidation marks payloads that parsed but failed the rules
	ErrorCodeValidation

	// ErrorCodeJSON marks bodies that did not parse at all
	ErrorCodeJSON

	// ErrorCodeNotFound marks missing resources
	ErrorCodeNotFound

	// ErrorCodeDuplicateKey marks unique-constraint violations
	ErrorCodeDuplicateKey

	// ErrorCodeDB marks general database failures
	ErrorCodeDB

	// ErrorCodeQuotaExceeded marks enrichment budget exhaustion
	ErrorCodeQuotaExceeded

	// ErrorCodeKillSwitched marks work refused while enrichment is disabled
	ErrorCodeKillSwitched

	// ErrorCodeUpstream marks taplist or LLM provider failures
	ErrorCodeUpstream

	// ErrorCodeInvalidCursor marks malformed pagination cursors
	ErrorCodeInvalidCursor
)

// Error carries a code for machines, a message for developers, and an
// optional offending field for validation replies
type Error struct {
	orig  error
	msg   string
	code  ErrorCode
	field string
}

// Error implements the error interface
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.orig != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.orig)
	}
	return e.msg
}

// Unwrap exposes the cause to errors.Is and errors.As
func (e *Error) Unwrap() error { return e.orig }

// Code returns the classification
func (e *Error) Code() ErrorCode { return e.code }

// Field names the offending input field, when known
func (e *Error) Field() string { return e.field }

// ErrNotFound is the shared not-found sentinel
var ErrNotFound = New(ErrorCodeNotFound, "not found")

// Constructors

// New builds an *Error from a code and message
func New(code ErrorCode, msg string) error { return &Error{code: code, msg: msg} }

// Newf builds an *Error with a formatted message
func Newf(code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...)}
}

// Wrap keeps orig as the cause under a new code and message
func Wrap(orig error, code ErrorCode, msg string) error {
	return &Error{code: code, msg: msg, orig: orig}
}

// Wrapf is Wrap with a formatted message
func Wrapf(orig error, code ErrorCode, format string, a ...any) error {
	return &Error{code: code, msg: fmt.Sprintf(format, a...), orig: orig}
}

// WithField copies an *Error and attaches the offending field. Foreign
// errors pass through untouched.
func WithField(err error, field string) error {
	if e, ok := As(err); ok {
		c := *e
		c.field = field
		return &c
	}
	return err
}

// Inspection

// As unwraps to (*Error, true) when err is one of ours
func As(err error) (*Error, bool) {
	var e *Error
	if stderrs.As(err, &e) {
		return e, true
	}
	return nil, false
}

// Root walks to the deepest cause
func Root(err error) error {
	for err != nil {
		u := stderrs.Unwrap(err)
		if u == nil {
			return err
		}
		err = u
	}
	return nil
}

// CodeOf reads the code off any error, Unknown for foreign ones
func CodeOf(err error) ErrorCode {
	if e, ok := As(err); ok {
		return e.code
	}
	return ErrorCodeUnknown
}

// IsCode reports whether err carries the given code
func IsCode(err error, code ErrorCode) bool { return CodeOf(err) == code }

// HTTPStatus maps any error to its HTTP status
func HTTPStatus(err error) int { return HTTPStatusCode(CodeOf(err)) }

// Wire form

// Wire is the JSON error envelope the API returns
type Wire struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ToWire renders the envelope. Server-side codes get a canned message so
// vendor and SQL text never reaches a client.
func (e *Error) ToWire() Wire {
	w := Wire{Code: WireCode(e.code), Message: e.msg, Field: e.field}
	if HTTPStatusCode(e.code) >= http.StatusInternalServerError {
		w.Message = publicMessage(e.code)
		w.Field = ""
	}
	return w
}

// WireFrom renders any error; foreign errors surface as INTERNAL
func WireFrom(err error) Wire {
	if err == nil {
		return Wire{}
	}
	if e, ok := As(err); ok {
		return e.ToWire()
	}
	return Wire{Code: WireCode(ErrorCodeUnknown), Message: publicMessage(ErrorCodeUnknown)}
}

// HTTPStatusCode maps a code to its HTTP status
func HTTPStatusCode(c ErrorCode) int {
	switch c {
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeDuplicateKey, ErrorCodeConflict:
		return http.StatusConflict
	case ErrorCodeInvalidArgument, ErrorCodeValidation, ErrorCodeJSON, ErrorCodeInvalidCursor:
		return http.StatusBadRequest
	case ErrorCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrorCodeForbidden:
		return http.StatusForbidden
	case ErrorCodeTooManyRequests, ErrorCodeQuotaExceeded:
		return http.StatusTooManyRequests
	case ErrorCodeUnavailable, ErrorCodeKillSwitched, ErrorCodeDB:
		return http.StatusServiceUnavailable
	case ErrorCodeUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WireCode maps a code to the stable UPPER_SNAKE form clients match on
func WireCode(c ErrorCode) string {
	switch c {
	case ErrorCodeNotFound:
		return "NOT_FOUND"
	case ErrorCodeDuplicateKey, ErrorCodeConflict:
		return "CONFLICT"
	case ErrorCodeInvalidArgument, ErrorCodeValidation, ErrorCodeJSON:
		return "INVALID_REQUEST"
	case ErrorCodeInvalidCursor:
		return "INVALID_CURSOR"
	case ErrorCodeUnauthorized, ErrorCodeForbidden:
		return "UNAUTHORIZED"
	case ErrorCodeTooManyRequests:
		return "RATE_LIMITED"
	case ErrorCodeQuotaExceeded:
		return "QUOTA_EXCEEDED"
	case ErrorCodeKillSwitched:
		return "KILL_SWITCHED"
	case ErrorCodeUpstream:
		return "UPSTREAM_ERROR"
	case ErrorCodeUnavailable, ErrorCodeDB:
		return "DB_UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}

// publicMessage is the client-facing text for codes whose real message
// stays in logs
func publicMessage(c ErrorCode) string {
	switch c {
	case ErrorCodeUnavailable, ErrorCodeDB:
		return "service temporarily unavailable"
	case ErrorCodeKillSwitched:
		return "enrichment is disabled"
	case ErrorCodeUpstream:
		return "upstream provider error"
	default:
		return "internal error"
	}
}

// Sugar

// NotFoundf builds a not-found error
func NotFoundf(format string, a ...any) error { return Newf(ErrorCodeNotFound, format, a...) }

// InvalidArgf builds an invalid-argument error
func InvalidArgf(format string, a ...any) error { return Newf(ErrorCodeInvalidArgument, format, a...) }

// DBf builds a general database error
func DBf(format string, a ...any) error { return Newf(ErrorCodeDB, format, a...) }

// JSONErrf builds a JSON parse error
func JSONErrf(format string, a ...any) error { return Newf(ErrorCodeJSON, format, a...) }

// PanicErrf builds a recovered-panic error
func PanicErrf(format string, a ...any) error { return Newf(ErrorCodePanic, format, a...) }

// Unauthorizedf builds an unauthorized error
func Unauthorizedf(format string, a ...any) error { return Newf(ErrorCodeUnauthorized, format, a...) }

// Unavailablef builds a transient-failure error
func Unavailablef(format string, a ...any) error { return Newf(ErrorCodeUnavailable, format, a...) }

// Internalf builds a generic internal error
func Internalf(format string, a ...any) error { return Newf(ErrorCodeUnknown, format, a...) }

// TooManyRequestsf builds a rate-limited error
func TooManyRequestsf(format string, a ...any) error {
	return Newf(ErrorCodeTooManyRequests, format, a...)
}

// Upstreamf builds an upstream-provider error
func Upstreamf(format string, a ...any) error { return Newf(ErrorCodeUpstream, format, a...) }

// InvalidCursorf builds a bad-cursor error
func InvalidCursorf(format string, a ...any) error { return Newf(ErrorCodeInvalidCursor, format, a...) }
