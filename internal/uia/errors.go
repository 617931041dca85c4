package uia

import (
	"errors"
	"fmt"
)

// Kind classifies automation failures. Callers branch on kinds, not on
// concrete error types.
type Kind string

const (
	KindInvalidSelector   Kind = "invalid_selector"
	KindElementNotFound   Kind = "element_not_found"
	KindPlatformError     Kind = "platform_error"
	KindTimeout           Kind = "timeout"
	KindInvalidArgument   Kind = "invalid_argument"
	KindMissingStartState Kind = "missing_start_state"
	KindParserError       Kind = "parser_error"
	KindBridgeUnavailable Kind = "bridge_unavailable"
)

// Error is the single error type surfaced by the automation layers.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two automation errors by kind so callers can use
// errors.Is(err, &Error{Kind: KindTimeout}).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind && (t.Msg == "" || t.Msg == e.Msg)
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...), Err: err}
}

// ErrInvalidSelector reports a selector that failed to parse.
func ErrInvalidSelector(format string, args ...any) *Error {
	return newError(KindInvalidSelector, format, args...)
}

// ErrElementNotFound reports a locator that timed out. The message carries
// the last-attempted selector string.
func ErrElementNotFound(format string, args ...any) *Error {
	return newError(KindElementNotFound, format, args...)
}

// ErrPlatform reports a backend refusal or underlying API failure.
func ErrPlatform(format string, args ...any) *Error {
	return newError(KindPlatformError, format, args...)
}

// ErrTimeout reports an async operation that exceeded its deadline.
func ErrTimeout(format string, args ...any) *Error {
	return newError(KindTimeout, format, args...)
}

// ErrInvalidArgument reports a malformed document, unknown tool, or unknown
// step id.
func ErrInvalidArgument(format string, args ...any) *Error {
	return newError(KindInvalidArgument, format, args...)
}

// ErrMissingStartState reports a start_from_step request with no persisted
// state to resume from.
func ErrMissingStartState(format string, args ...any) *Error {
	return newError(KindMissingStartState, format, args...)
}

// ErrParser reports an output-parser script failure.
func ErrParser(err error, format string, args ...any) *Error {
	return wrapError(KindParserError, err, format, args...)
}

// ErrBridgeUnavailable reports a bridge call with no connected extension.
func ErrBridgeUnavailable(format string, args ...any) *Error {
	return newError(KindBridgeUnavailable, format, args...)
}

// KindOf extracts the failure kind from err, or "" if err is not an
// automation error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
