package domain

import (
	"errors"
	"fmt"
)

// Kind groups errors by how the API reports them.
type Kind string

const (
	KindValidation Kind = "VALIDATION_ERROR"
	KindExtraction Kind = "EXTRACTION_ERROR"
	KindParse      Kind = "PARSE_ERROR"
	KindRelay      Kind = "RELAY_ERROR"
	KindNotFound   Kind = "NOT_FOUND"
	KindConflict   Kind = "CONFLICT"
	KindInternal   Kind = "INTERNAL_ERROR"
)

// Extraction failure codes. The generic code equals the kind.
const (
	CodeVideoUnavailable = "VIDEO_UNAVAILABLE"
	CodePrivateVideo     = "PRIVATE_VIDEO"
	CodeAgeRestricted    = "AGE_RESTRICTED"
)

// Error is the error type returned by every component of the service.
// Err carries diagnostics for logs only; clients see the localized
// MessageKey and Code.
type Error struct {
	Kind       Kind
	Code       string
	MessageKey MessageKey
	Err        error
	Retryable  bool
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s - %v", e.Code, e.MessageKey, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.MessageKey)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches sentinels by code when the target has one, by kind otherwise.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Code != "" && t.Code != string(t.Kind) {
		return t.Code == e.Code
	}
	return t.Kind == e.Kind
}

// NewError creates a new domain error whose code equals its kind.
func NewError(kind Kind, key MessageKey, err error) *Error {
	return &Error{
		Kind:       kind,
		Code:       string(kind),
		MessageKey: key,
		Err:        err,
	}
}

// Sentinels for errors.Is checks.
var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrExtraction = &Error{Kind: KindExtraction}
	ErrParse      = &Error{Kind: KindParse}
	ErrRelay      = &Error{Kind: KindRelay}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrConflict   = &Error{Kind: KindConflict}

	ErrVideoUnavailable = &Error{Kind: KindExtraction, Code: CodeVideoUnavailable}
	ErrPrivateVideo     = &Error{Kind: KindExtraction, Code: CodePrivateVideo}
	ErrAgeRestricted    = &Error{Kind: KindExtraction, Code: CodeAgeRestricted}
)

// Validation reports bad client input.
func Validation(key MessageKey, detail string) *Error {
	var err error
	if detail != "" {
		err = errors.New(detail)
	}
	return NewError(KindValidation, key, err)
}

// Parse reports undecodable extractor output.
func Parse(err error) *Error {
	return NewError(KindParse, MsgParseFailed, err)
}

// Relay reports a failure while streaming bytes to the client.
func Relay(err error) *Error {
	e := NewError(KindRelay, MsgDownloadFailed, err)
	e.Retryable = true
	return e
}

// NotFound reports a missing resource.
func NotFound(key MessageKey, detail string) *Error {
	var err error
	if detail != "" {
		err = errors.New(detail)
	}
	return NewError(KindNotFound, key, err)
}

// Conflict reports an operation clashing with one already running.
func Conflict(key MessageKey, detail string) *Error {
	var err error
	if detail != "" {
		err = errors.New(detail)
	}
	return NewError(KindConflict, key, err)
}

// Internal wraps an unexpected failure.
func Internal(err error) *Error {
	return NewError(KindInternal, MsgInternal, err)
}

// AsError returns the *Error in err's chain, wrapping anything else as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return Internal(err)
}

// KindOf returns the kind of err, KindInternal for foreign errors.
func KindOf(err error) Kind {
	return AsError(err).Kind
}
