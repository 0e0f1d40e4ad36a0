package worker

import (
	"streamrelay/internal/domain"
	"streamrelay/internal/media"
)

// streamView is one row of a stream listing.
type streamView struct {
	FormatID   string   `json:"itag"`
	Resolution string   `json:"resolution"`
	FileSize   string   `json:"filesize"`
	Ext        string   `json:"ext"`
	FPS        *float64 `json:"fps"`
	VideoCodec string   `json:"vcodec"`
	AudioCodec string   `json:"acodec"`
	Bitrate    *float64 `json:"abr"`
}

type streamsView struct {
	VideoAudio []streamView `json:"video_audio"`
	VideoOnly  []streamView `json:"video_only"`
	AudioOnly  []streamView `json:"audio_only"`
}

type videoInfoView struct {
	VideoInfo media.VideoSummary `json:"video_info"`
	Streams   streamsView        `json:"streams"`
}

func newStreamsView(t media.Tiers, l domain.Localizer) streamsView {
	return streamsView{
		VideoAudio: streamViews(t.VideoAudio, l),
		VideoOnly:  streamViews(t.VideoOnly, l),
		AudioOnly:  streamViews(t.AudioOnly, l),
	}
}

func streamViews(ds []media.StreamDescriptor, l domain.Localizer) []streamView {
	views := make([]streamView, 0, len(ds))
	unknown := l.Message(domain.MsgUnknownSize)
	for _, d := range ds {
		views = append(views, streamView{
			FormatID:   d.FormatID,
			Resolution: d.ResolutionLabel,
			FileSize:   media.FormatSize(d.SizeBytes, unknown),
			Ext:        d.Container,
			FPS:        d.FrameRate,
			VideoCodec: d.VideoCodec,
			AudioCodec: d.AudioCodec,
			Bitrate:    d.AudioBitrate,
		})
	}
	return views
}

type playlistView struct {
	Videos []media.Entry `json:"videos"`
	Count  int           `json:"count"`
}

type searchView struct {
	Results []media.Entry `json:"results"`
}

type subtitlesView struct {
	Subtitles []media.SubtitleTrack `json:"subtitles"`
}

type batchView struct {
	BatchID string `json:"batch_id"`
	Total   int    `json:"total"`
}

type jobView struct {
	JobID string `json:"job_id"`
}

type clearedView struct {
	Cleared bool `json:"cleared"`
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
