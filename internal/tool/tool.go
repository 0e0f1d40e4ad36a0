// Package tool runs the external extractor (yt-dlp) and transcoder (ffmpeg).
//
// Callers use typed operations only; argument vectors are built here. Long
// running modes return a Stream wrapping the child's stdout. A Stream must
// be read to EOF or killed, then waited on, so the child is always reaped.
package tool

import (
	"context"
	"io"
	"time"

	"streamrelay/internal/media"
)

// Stream is the stdout of a running child process.
type Stream interface {
	io.Reader
	// Wait reaps the process and reports how it ended.
	Wait() error
	// Kill asks the process to stop: SIGTERM first, a hard kill after the
	// grace period if it is still running when Wait is called.
	Kill() error
}

// FormatInfo is what the extractor reports about one format before streaming it.
type FormatInfo struct {
	Ext  string
	Size *int64
}

// Extractor wraps the media extraction tool.
type Extractor interface {
	FetchMetadata(ctx context.Context, url string) (*media.Metadata, error)
	FetchFlatPlaylist(ctx context.Context, url string) ([]media.Entry, error)
	Search(ctx context.Context, query string, limit int) ([]media.Entry, error)
	ListSubtitles(ctx context.Context, url string) ([]media.SubtitleTrack, error)
	// DownloadSubtitle writes one subtitle file into dir and returns its path.
	DownloadSubtitle(ctx context.Context, url, lang, format, dir string) (string, error)
	ResolveFormat(ctx context.Context, url, formatID string) (FormatInfo, error)
	StreamFormat(ctx context.Context, url, formatID string) (Stream, error)
	Version(ctx context.Context) (string, error)
}

// ClipRange selects a section of the input. A zero End means until the end.
type ClipRange struct {
	Start time.Duration
	End   time.Duration
}

// Transcoder wraps the transcoding tool. Input is read from in and the
// result is streamed out.
type Transcoder interface {
	ConvertAudio(ctx context.Context, in io.Reader, format string, bitrateKbps int) (Stream, error)
	Trim(ctx context.Context, in io.Reader, clip ClipRange, audioOnly bool) (Stream, error)
	Version(ctx context.Context) (string, error)
}
