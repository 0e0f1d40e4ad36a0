package media

import (
	"encoding/json"
	"strconv"

	"streamrelay/internal/domain"
)

// Metadata is the subset of the extractor's --dump-json document the
// service reads.
type Metadata struct {
	ID        string           `json:"id"`
	Title     *string          `json:"title"`
	Thumbnail *string          `json:"thumbnail"`
	Duration  *float64         `json:"duration"`
	URL       string           `json:"webpage_url"`
	Formats   []map[string]any `json:"formats"`
}

// DecodeMetadata parses one metadata document.
func DecodeMetadata(data []byte) (*Metadata, error) {
	var m Metadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, domain.Parse(err)
	}
	return &m, nil
}

// Summarize derives the video summary. untitled replaces a missing title.
func (m *Metadata) Summarize(untitled string) VideoSummary {
	title := untitled
	if m.Title != nil {
		title = *m.Title
	}

	var seconds float64
	if m.Duration != nil {
		seconds = *m.Duration
	}

	return VideoSummary{
		Title:        title,
		ThumbnailURL: m.Thumbnail,
		Duration:     FormatDuration(seconds),
	}
}

// Normalize maps one raw format record onto a descriptor. ok is false when
// the record has no format id and must be skipped.
func Normalize(raw map[string]any) (d StreamDescriptor, ok bool) {
	id := stringField(raw, "format_id")
	if id == "" {
		return StreamDescriptor{}, false
	}

	d = StreamDescriptor{
		FormatID:        id,
		ResolutionLabel: resolutionLabel(raw),
		Container:       stringField(raw, "ext"),
		VideoCodec:      stringField(raw, "vcodec"),
		AudioCodec:      stringField(raw, "acodec"),
		FrameRate:       floatField(raw, "fps"),
		AudioBitrate:    floatField(raw, "abr"),
	}

	if size := positiveInt(raw, "filesize"); size != nil {
		d.SizeBytes = size
	} else {
		d.SizeBytes = positiveInt(raw, "filesize_approx")
	}

	return d, true
}

// NormalizeAll normalizes records in order, skipping unusable ones.
func NormalizeAll(records []map[string]any) []StreamDescriptor {
	out := make([]StreamDescriptor, 0, len(records))
	for _, raw := range records {
		if d, ok := Normalize(raw); ok {
			out = append(out, d)
		}
	}
	return out
}

func resolutionLabel(raw map[string]any) string {
	if note := stringField(raw, "format_note"); note != "" {
		return note
	}
	if res := stringField(raw, "resolution"); res != "" {
		return res
	}
	return "N/A"
}

// stringField returns a string value, rendering numbers the way they were
// written (some extractors emit numeric format ids).
func stringField(raw map[string]any, key string) string {
	switch v := raw[key].(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	default:
		return ""
	}
}

func floatField(raw map[string]any, key string) *float64 {
	f, ok := toFloat(raw[key])
	if !ok {
		return nil
	}
	return &f
}

func positiveInt(raw map[string]any, key string) *int64 {
	f, ok := toFloat(raw[key])
	if !ok || f <= 0 {
		return nil
	}
	n := int64(f)
	return &n
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
