package domain

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Is(t *testing.T) {
	t.Run("kind sentinel matches any code of that kind", func(t *testing.T) {
		err := ClassifyExtraction("ERROR: Private video", errors.New("exit status 1"))
		assert.ErrorIs(t, err, ErrExtraction)
		assert.ErrorIs(t, err, ErrPrivateVideo)
		assert.NotErrorIs(t, err, ErrVideoUnavailable)
		assert.NotErrorIs(t, err, ErrValidation)
	})

	t.Run("wrapped", func(t *testing.T) {
		err := fmt.Errorf("fetch metadata: %w", Validation(MsgInvalidURL, "empty url"))
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, KindValidation, KindOf(err))
	})

	t.Run("unwraps cause", func(t *testing.T) {
		cause := errors.New("pipe closed")
		err := Relay(cause)
		assert.ErrorIs(t, err, cause)
		assert.True(t, err.Retryable)
	})
}

func TestError_Error(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: not_found", NotFound(MsgNotFound, "").Error())
	assert.Equal(t, "CONFLICT: download_in_progress - id abc", Conflict(MsgDownloadInProgress, "id abc").Error())
}

func TestAsError(t *testing.T) {
	assert.Nil(t, AsError(nil))

	foreign := errors.New("boom")
	de := AsError(foreign)
	require.NotNil(t, de)
	assert.Equal(t, KindInternal, de.Kind)
	assert.Equal(t, MsgInternal, de.MessageKey)
	assert.ErrorIs(t, de, foreign)

	original := Parse(errors.New("bad json"))
	assert.Same(t, original, AsError(fmt.Errorf("ctx: %w", original)))
}

func TestClassifyExtraction(t *testing.T) {
	tests := []struct {
		name   string
		stderr string
		code   string
		key    MessageKey
	}{
		{"unavailable", "ERROR: [youtube] abc: Video unavailable", CodeVideoUnavailable, MsgVideoUnavailable},
		{"private", "ERROR: [youtube] abc: Private video. Sign in if you've been granted access", CodePrivateVideo, MsgPrivateVideo},
		{"age gate", "ERROR: [youtube] abc: Sign in to confirm your age. This video may be inappropriate for some users.", CodeAgeRestricted, MsgAgeRestricted},
		{"age restricted wording", "This video is age-restricted", CodeAgeRestricted, MsgAgeRestricted},
		{"unknown falls back to generic", "ERROR: Unsupported URL: https://example.com", string(KindExtraction), MsgExtractionFailed},
		{"empty stderr", "", string(KindExtraction), MsgExtractionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ClassifyExtraction(tt.stderr, errors.New("exit status 1"))
			assert.Equal(t, KindExtraction, err.Kind)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.key, err.MessageKey)
		})
	}
}

func TestClassifyExtraction_KeepsDiagnostics(t *testing.T) {
	cause := errors.New("exit status 1")
	err := ClassifyExtraction("ERROR: HTTP Error 503: Service Unavailable", cause)

	assert.True(t, err.Retryable)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "HTTP Error 503")
}

func TestClassifyExtraction_TruncatesOnRuneBoundary(t *testing.T) {
	// The byte offset of the cut lands inside a two-byte rune.
	stderr := "ERROR: " + strings.Repeat("é", 3000) + "!"
	err := ClassifyExtraction(stderr, errors.New("exit status 1"))

	var diag *diagnosticError
	require.ErrorAs(t, err, &diag)
	assert.True(t, utf8.ValidString(diag.stderr))
	assert.LessOrEqual(t, len(diag.stderr), maxDiagnosticLen)
	assert.True(t, strings.HasSuffix(diag.stderr, "é!"))
	assert.True(t, utf8.ValidString(err.Error()))
}
