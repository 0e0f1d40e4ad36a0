package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamrelay/internal/domain"
)

func TestValidateURL(t *testing.T) {
	t.Run("accepts http and https", func(t *testing.T) {
		for _, raw := range []string{
			"https://www.youtube.com/watch?v=abc",
			"  http://example.com/v/1  ",
			"HTTPS://youtu.be/abc",
		} {
			got, err := ValidateURL(raw)
			require.NoError(t, err, raw)
			assert.NotContains(t, got, " ")
		}
	})

	rejected := map[string]string{
		"empty":            "   ",
		"option lookalike": "--exec=touch /tmp/x",
		"batch file":       "--batch-file=/etc/passwd",
		"short option":     "-a/etc/passwd",
		"file scheme":      "file:///etc/passwd",
		"ftp scheme":       "ftp://example.com/v",
		"no scheme":        "www.youtube.com/watch?v=abc",
		"no host":          "https:///watch",
		"bad escape":       "https://example.com/%zz",
	}
	for name, raw := range rejected {
		t.Run(name, func(t *testing.T) {
			_, err := ValidateURL(raw)
			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, domain.MsgInvalidURL, domain.AsError(err).MessageKey)
		})
	}
}
