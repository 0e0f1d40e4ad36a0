package domain

import (
	"strings"
	"unicode/utf8"
)

// extractionRule maps a diagnostic fragment printed by the extractor to a
// failure code. Matching is case-insensitive and first match wins.
type extractionRule struct {
	fragments []string
	code      string
	key       MessageKey
}

var extractionRules = []extractionRule{
	{
		fragments: []string{"private video", "this video is private"},
		code:      CodePrivateVideo,
		key:       MsgPrivateVideo,
	},
	{
		fragments: []string{"sign in to confirm your age", "age-restricted", "age restricted", "inappropriate for some users"},
		code:      CodeAgeRestricted,
		key:       MsgAgeRestricted,
	},
	{
		fragments: []string{"video unavailable", "this video is not available", "has been removed", "does not exist", "http error 404"},
		code:      CodeVideoUnavailable,
		key:       MsgVideoUnavailable,
	},
}

// ClassifyExtraction turns a failed extractor run into an extraction error.
// stderr is the tool's diagnostic output and cause the process error.
// Unrecognised output yields the generic extraction error.
func ClassifyExtraction(stderr string, cause error) *Error {
	lower := strings.ToLower(stderr)

	for _, rule := range extractionRules {
		for _, fragment := range rule.fragments {
			if strings.Contains(lower, fragment) {
				return &Error{
					Kind:       KindExtraction,
					Code:       rule.code,
					MessageKey: rule.key,
					Err:        withDiagnostics(cause, stderr),
				}
			}
		}
	}

	e := NewError(KindExtraction, MsgExtractionFailed, withDiagnostics(cause, stderr))
	e.Retryable = isTransient(lower)
	return e
}

func isTransient(lower string) bool {
	for _, fragment := range []string{"timed out", "connection reset", "temporary failure", "http error 5", "http error 429"} {
		if strings.Contains(lower, fragment) {
			return true
		}
	}
	return false
}

// diagnosticError keeps the last lines of stderr next to the process error.
type diagnosticError struct {
	cause  error
	stderr string
}

func (d *diagnosticError) Error() string {
	if d.cause == nil {
		return d.stderr
	}
	if d.stderr == "" {
		return d.cause.Error()
	}
	return d.cause.Error() + ": " + d.stderr
}

func (d *diagnosticError) Unwrap() error { return d.cause }

const maxDiagnosticLen = 2048

func withDiagnostics(cause error, stderr string) error {
	stderr = strings.TrimSpace(stderr)
	if len(stderr) > maxDiagnosticLen {
		cut := len(stderr) - maxDiagnosticLen
		for cut < len(stderr) && !utf8.RuneStart(stderr[cut]) {
			cut++
		}
		stderr = stderr[cut:]
	}
	if stderr == "" {
		return cause
	}
	return &diagnosticError{cause: cause, stderr: stderr}
}
