package tool

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"streamrelay/config"
	"streamrelay/internal/domain"
	"streamrelay/observability/types"

	"github.com/alessio/shellescape"
)

// AudioFormat describes how one audio target is encoded to a pipe.
type AudioFormat struct {
	Codec       string
	Muxer       string
	Ext         string
	ContentType string
	Lossless    bool
}

// AudioFormats lists the targets ConvertAudio accepts.
var AudioFormats = map[string]AudioFormat{
	"mp3":  {Codec: "libmp3lame", Muxer: "mp3", Ext: "mp3", ContentType: "audio/mpeg"},
	"m4a":  {Codec: "aac", Muxer: "ipod", Ext: "m4a", ContentType: "audio/mp4"},
	"opus": {Codec: "libopus", Muxer: "ogg", Ext: "opus", ContentType: "audio/ogg"},
	"wav":  {Codec: "pcm_s16le", Muxer: "wav", Ext: "wav", ContentType: "audio/wav", Lossless: true},
}

// FFmpeg implements Transcoder on top of the ffmpeg command line.
type FFmpeg struct {
	path      string
	killGrace time.Duration
	logger    types.Logger
	metrics   types.Metrics
}

// NewFFmpeg creates a transcoder runner.
func NewFFmpeg(cfg config.ToolsConfig, logger types.Logger, metrics types.Metrics) *FFmpeg {
	return &FFmpeg{
		path:      cfg.TranscoderPath,
		killGrace: cfg.KillGracePeriod,
		logger:    logger,
		metrics:   metrics,
	}
}

// ConvertAudio re-encodes the audio of in to format at bitrateKbps.
func (f *FFmpeg) ConvertAudio(ctx context.Context, in io.Reader, format string, bitrateKbps int) (Stream, error) {
	args, err := convertAudioArgs(format, bitrateKbps)
	if err != nil {
		return nil, err
	}
	return f.start(ctx, "convert_audio", in, args)
}

// Trim cuts clip out of in. Video is stream-copied into fragmented MP4;
// audioOnly encodes an MP3 instead.
func (f *FFmpeg) Trim(ctx context.Context, in io.Reader, clip ClipRange, audioOnly bool) (Stream, error) {
	args, err := trimArgs(clip, audioOnly)
	if err != nil {
		return nil, err
	}
	return f.start(ctx, "trim", in, args)
}

// Version returns the first line of ffmpeg -version.
func (f *FFmpeg) Version(ctx context.Context) (string, error) {
	out, err := runOutput(ctx, f.path, []string{"-hide_banner", "-version"}, 10*time.Second, f.killGrace, genericFailure)
	if err != nil {
		return "", err
	}
	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimSpace(line), nil
}

func (f *FFmpeg) start(ctx context.Context, operation string, in io.Reader, args []string) (Stream, error) {
	f.logger.Debug(ctx, "Starting transcoder", types.Fields{
		"operation": operation,
		"command":   shellescape.QuoteCommand(append([]string{f.path}, args...)),
	})

	p, err := startProcess(ctx, f.path, args, in, f.killGrace, genericFailure)
	if err != nil {
		f.metrics.RecordError(operation, string(domain.KindOf(err)))
		return nil, err
	}
	f.metrics.RecordSuccess(operation)
	return p, nil
}

func convertAudioArgs(format string, bitrateKbps int) ([]string, error) {
	target, ok := AudioFormats[format]
	if !ok {
		return nil, domain.Validation(domain.MsgUnsupportedFormat, "unsupported audio format "+format)
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-i", "pipe:0", "-vn", "-c:a", target.Codec}
	if !target.Lossless && bitrateKbps > 0 {
		args = append(args, "-b:a", strconv.Itoa(bitrateKbps)+"k")
	}
	if target.Muxer == "ipod" {
		args = append(args, "-movflags", "frag_keyframe+empty_moov")
	}
	return append(args, "-f", target.Muxer, "pipe:1"), nil
}

func trimArgs(clip ClipRange, audioOnly bool) ([]string, error) {
	if clip.Start < 0 || (clip.End != 0 && clip.End <= clip.Start) {
		return nil, domain.Validation(domain.MsgInvalidTimeRange, fmt.Sprintf("invalid clip %s-%s", clip.Start, clip.End))
	}

	args := []string{"-hide_banner", "-loglevel", "error", "-i", "pipe:0", "-ss", ffmpegTime(clip.Start)}
	if clip.End > 0 {
		args = append(args, "-to", ffmpegTime(clip.End))
	}

	if audioOnly {
		return append(args, "-vn", "-c:a", "libmp3lame", "-f", "mp3", "pipe:1"), nil
	}
	return append(args, "-c", "copy", "-movflags", "frag_keyframe+empty_moov", "-f", "mp4", "pipe:1"), nil
}

// ffmpegTime renders d as seconds with millisecond precision.
func ffmpegTime(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}
