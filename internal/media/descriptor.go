// Package media turns extractor metadata into ranked stream listings.
//
// The extractor reports each selectable quality as a loosely typed record.
// Normalize maps one record onto a StreamDescriptor, Classify splits the
// descriptors into the three tiers a client chooses from and Rank orders
// each tier best first.
package media

// NoTrack is the codec value the extractor uses for a missing track.
const NoTrack = "none"

// StreamDescriptor is one selectable quality option of a source video.
type StreamDescriptor struct {
	FormatID        string
	ResolutionLabel string
	SizeBytes       *int64
	Container       string
	FrameRate       *float64
	VideoCodec      string
	AudioCodec      string
	AudioBitrate    *float64
}

// HasVideo reports whether the stream carries a video track. An absent codec
// counts as present; only the NoTrack sentinel means no track.
func (d StreamDescriptor) HasVideo() bool {
	return d.VideoCodec != NoTrack
}

// HasAudio reports whether the stream carries an audio track.
func (d StreamDescriptor) HasAudio() bool {
	return d.AudioCodec != NoTrack
}

// Tier identifies one of the three mutually exclusive stream categories.
type Tier int

const (
	TierNone Tier = iota
	TierVideoAudio
	TierVideoOnly
	TierAudioOnly
)

func (t Tier) String() string {
	switch t {
	case TierVideoAudio:
		return "video_audio"
	case TierVideoOnly:
		return "video_only"
	case TierAudioOnly:
		return "audio_only"
	default:
		return "none"
	}
}

// Tier classifies the descriptor by track presence.
func (d StreamDescriptor) Tier() Tier {
	switch video, audio := d.HasVideo(), d.HasAudio(); {
	case video && audio:
		return TierVideoAudio
	case video:
		return TierVideoOnly
	case audio:
		return TierAudioOnly
	default:
		return TierNone
	}
}

// VideoSummary is the header shown above the stream listing.
type VideoSummary struct {
	Title        string  `json:"title"`
	ThumbnailURL *string `json:"thumbnail_url"`
	Duration     string  `json:"duration"`
}
