package media

import (
	"encoding/json"
	"errors"
	"testing"

	"streamrelay/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t.Run("missing format id is skipped", func(t *testing.T) {
		_, ok := Normalize(map[string]any{"ext": "mp4"})
		assert.False(t, ok)

		_, ok = Normalize(map[string]any{"format_id": ""})
		assert.False(t, ok)
	})

	t.Run("exact filesize wins", func(t *testing.T) {
		d, ok := Normalize(map[string]any{
			"format_id":       "22",
			"filesize":        float64(1000),
			"filesize_approx": float64(2000),
		})
		require.True(t, ok)
		require.NotNil(t, d.SizeBytes)
		assert.Equal(t, int64(1000), *d.SizeBytes)
	})

	t.Run("approximate filesize fallback", func(t *testing.T) {
		d, _ := Normalize(map[string]any{
			"format_id":       "22",
			"filesize":        nil,
			"filesize_approx": float64(2000),
		})
		require.NotNil(t, d.SizeBytes)
		assert.Equal(t, int64(2000), *d.SizeBytes)
	})

	t.Run("no size", func(t *testing.T) {
		d, _ := Normalize(map[string]any{"format_id": "22", "filesize": float64(0)})
		assert.Nil(t, d.SizeBytes)
	})

	t.Run("resolution label precedence", func(t *testing.T) {
		d, _ := Normalize(map[string]any{"format_id": "1", "format_note": "720p", "resolution": "1280x720"})
		assert.Equal(t, "720p", d.ResolutionLabel)

		d, _ = Normalize(map[string]any{"format_id": "1", "format_note": "", "resolution": "1280x720"})
		assert.Equal(t, "1280x720", d.ResolutionLabel)

		d, _ = Normalize(map[string]any{"format_id": "1"})
		assert.Equal(t, "N/A", d.ResolutionLabel)
	})

	t.Run("fields pass through", func(t *testing.T) {
		d, _ := Normalize(map[string]any{
			"format_id": "137",
			"ext":       "mp4",
			"fps":       float64(30),
			"vcodec":    "avc1.640028",
			"acodec":    "none",
			"abr":       nil,
		})
		assert.Equal(t, "137", d.FormatID)
		assert.Equal(t, "mp4", d.Container)
		require.NotNil(t, d.FrameRate)
		assert.Equal(t, 30.0, *d.FrameRate)
		assert.Equal(t, "avc1.640028", d.VideoCodec)
		assert.Equal(t, "none", d.AudioCodec)
		assert.Nil(t, d.AudioBitrate)
	})

	t.Run("json numbers", func(t *testing.T) {
		d, ok := Normalize(map[string]any{"format_id": json.Number("18"), "filesize": json.Number("4096")})
		require.True(t, ok)
		assert.Equal(t, "18", d.FormatID)
		assert.Equal(t, int64(4096), *d.SizeBytes)
	})
}

func TestNormalizeAll_SkipsWithoutAborting(t *testing.T) {
	out := NormalizeAll([]map[string]any{
		{"format_id": "a"},
		{"ext": "mp4"},
		{"format_id": "b"},
	})

	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].FormatID)
	assert.Equal(t, "b", out[1].FormatID)
}

func TestDecodeMetadata(t *testing.T) {
	doc := `{"id":"abc","title":"Clip","thumbnail":"https://i/x.jpg","duration":125,
		"formats":[{"format_id":"18","vcodec":"avc1","acodec":"mp4a"}]}`

	m, err := DecodeMetadata([]byte(doc))
	require.NoError(t, err)
	require.Len(t, m.Formats, 1)

	s := m.Summarize("untitled")
	assert.Equal(t, "Clip", s.Title)
	require.NotNil(t, s.ThumbnailURL)
	assert.Equal(t, "https://i/x.jpg", *s.ThumbnailURL)
	assert.Equal(t, "2:05", s.Duration)
}

func TestDecodeMetadata_Defaults(t *testing.T) {
	m, err := DecodeMetadata([]byte(`{"formats":[]}`))
	require.NoError(t, err)

	s := m.Summarize("بدون عنوان")
	assert.Equal(t, "بدون عنوان", s.Title)
	assert.Nil(t, s.ThumbnailURL)
	assert.Equal(t, "0:00", s.Duration)
}

func TestDecodeMetadata_Malformed(t *testing.T) {
	_, err := DecodeMetadata([]byte("WARNING: not json"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrParse))
}
