package tool

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"streamrelay/config"
	"streamrelay/internal/domain"
	"streamrelay/internal/media"
	"streamrelay/observability/types"

	"github.com/alessio/shellescape"
)

// searchPrefix is the extractor's pseudo URL scheme for site search.
const searchPrefix = "ytsearch"

// YTDLP implements Extractor on top of the yt-dlp command line.
type YTDLP struct {
	path            string
	extraArgs       []string
	metadataTimeout time.Duration
	killGrace       time.Duration
	untitled        string
	logger          types.Logger
	metrics         types.Metrics
}

// NewYTDLP creates an extractor runner. untitled names entries without a title.
func NewYTDLP(cfg config.ToolsConfig, untitled string, logger types.Logger, metrics types.Metrics) *YTDLP {
	return &YTDLP{
		path:            cfg.ExtractorPath,
		extraArgs:       cfg.ExtraArgs,
		metadataTimeout: cfg.MetadataTimeout,
		killGrace:       cfg.KillGracePeriod,
		untitled:        untitled,
		logger:          logger,
		metrics:         metrics,
	}
}

// FetchMetadata returns the full metadata document of one video.
func (y *YTDLP) FetchMetadata(ctx context.Context, url string) (*media.Metadata, error) {
	out, err := y.run(ctx, "fetch_metadata", metadataArgs(url))
	if err != nil {
		return nil, err
	}
	return media.DecodeMetadata(out)
}

// FetchFlatPlaylist lists the members of a playlist without resolving them.
func (y *YTDLP) FetchFlatPlaylist(ctx context.Context, url string) ([]media.Entry, error) {
	out, err := y.run(ctx, "fetch_playlist", flatPlaylistArgs(url))
	if err != nil {
		return nil, err
	}
	return media.ParseEntries(bytes.NewReader(out), y.untitled)
}

// Search returns up to limit results for query.
func (y *YTDLP) Search(ctx context.Context, query string, limit int) ([]media.Entry, error) {
	out, err := y.run(ctx, "search", searchArgs(query, limit))
	if err != nil {
		return nil, err
	}
	return media.ParseEntries(bytes.NewReader(out), y.untitled)
}

// ListSubtitles returns the subtitle and automatic caption tracks of a video.
func (y *YTDLP) ListSubtitles(ctx context.Context, url string) ([]media.SubtitleTrack, error) {
	out, err := y.run(ctx, "list_subtitles", listSubtitlesArgs(url))
	if err != nil {
		return nil, err
	}

	tracks := media.ParseSubtitleListing(bytes.NewReader(out))
	if len(tracks) == 0 {
		return nil, domain.NotFound(domain.MsgSubtitlesNotFound, "no subtitle tracks for "+url)
	}
	return tracks, nil
}

// DownloadSubtitle writes the lang track in format into dir.
func (y *YTDLP) DownloadSubtitle(ctx context.Context, url, lang, format, dir string) (string, error) {
	if _, err := y.run(ctx, "download_subtitle", downloadSubtitleArgs(url, lang, format, dir)); err != nil {
		return "", err
	}

	matches, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return "", domain.Internal(err)
	}
	for _, m := range matches {
		if info, statErr := os.Stat(m); statErr == nil && info.Mode().IsRegular() && info.Size() > 0 {
			return m, nil
		}
	}

	return "", domain.NotFound(domain.MsgSubtitlesNotFound, fmt.Sprintf("no %s subtitle written for %s", lang, url))
}

// ResolveFormat asks the extractor for the extension and expected size of a
// format without downloading it.
func (y *YTDLP) ResolveFormat(ctx context.Context, url, formatID string) (FormatInfo, error) {
	out, err := y.run(ctx, "resolve_format", resolveFormatArgs(url, formatID))
	if err != nil {
		return FormatInfo{}, err
	}
	return parseFormatInfo(out)
}

// StreamFormat starts the extractor writing the format to stdout.
func (y *YTDLP) StreamFormat(ctx context.Context, url, formatID string) (Stream, error) {
	args := y.withExtra(streamArgs(url, formatID))

	y.logger.Debug(ctx, "Starting extractor stream", types.Fields{
		"command": shellescape.QuoteCommand(append([]string{y.path}, args...)),
	})

	p, err := startProcess(ctx, y.path, args, nil, y.killGrace, extractionFailure)
	if err != nil {
		y.metrics.RecordError("stream_format", string(domain.KindOf(err)))
		return nil, err
	}
	return p, nil
}

// Version returns the extractor version string.
func (y *YTDLP) Version(ctx context.Context) (string, error) {
	out, err := runOutput(ctx, y.path, []string{"--version"}, 10*time.Second, y.killGrace, genericFailure)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}

// run executes one short-lived extractor invocation with the metadata timeout.
func (y *YTDLP) run(ctx context.Context, operation string, args []string) ([]byte, error) {
	args = y.withExtra(args)

	y.logger.Debug(ctx, "Running extractor", types.Fields{
		"operation": operation,
		"command":   shellescape.QuoteCommand(append([]string{y.path}, args...)),
	})

	start := time.Now()
	out, err := runOutput(ctx, y.path, args, y.metadataTimeout, y.killGrace, extractionFailure)
	y.metrics.RecordDuration(operation, time.Since(start).Seconds())

	if err != nil {
		de := domain.AsError(err)
		y.metrics.RecordError(operation, de.Code)
		y.logger.Warn(ctx, "Extractor failed", types.Fields{
			"operation": operation,
			"code":      de.Code,
			"error":     err.Error(),
		})
		return nil, err
	}

	y.metrics.RecordSuccess(operation)
	return out, nil
}

// endOfOptions precedes the user supplied URL so yt-dlp never reads it as
// an option, whatever it starts with.
const endOfOptions = "--"

// withURL appends endOfOptions and the URL to opts.
func withURL(opts []string, url string) []string {
	return append(opts, endOfOptions, url)
}

// withExtra inserts the configured extra args before endOfOptions.
func (y *YTDLP) withExtra(args []string) []string {
	if len(y.extraArgs) == 0 {
		return args
	}
	cut := slices.Index(args, endOfOptions)
	if cut < 0 {
		cut = len(args)
	}
	out := make([]string, 0, len(args)+len(y.extraArgs))
	out = append(out, args[:cut]...)
	out = append(out, y.extraArgs...)
	return append(out, args[cut:]...)
}

func metadataArgs(url string) []string {
	return withURL([]string{"--dump-json", "--no-warnings", "--no-playlist"}, url)
}

func flatPlaylistArgs(url string) []string {
	return withURL([]string{"--flat-playlist", "--dump-json", "--no-warnings"}, url)
}

func searchArgs(query string, limit int) []string {
	return withURL([]string{"--flat-playlist", "--dump-json", "--no-warnings"},
		searchPrefix+strconv.Itoa(limit)+":"+query)
}

func listSubtitlesArgs(url string) []string {
	return withURL([]string{"--list-subs", "--skip-download", "--no-warnings"}, url)
}

func downloadSubtitleArgs(url, lang, format, dir string) []string {
	return withURL([]string{
		"--skip-download",
		"--write-subs",
		"--write-auto-subs",
		"--sub-langs", lang,
		"--sub-format", format,
		"--no-warnings",
		"-o", filepath.Join(dir, "%(id)s.%(ext)s"),
	}, url)
}

func resolveFormatArgs(url, formatID string) []string {
	return withURL([]string{
		"--print", "%(ext)s",
		"--print", "%(filesize,filesize_approx)s",
		"-f", formatID,
		"--no-warnings",
		"--no-playlist",
	}, url)
}

func streamArgs(url, formatID string) []string {
	return withURL([]string{"-f", formatID, "-o", "-", "--no-warnings", "--no-playlist", "--no-part", "--quiet"}, url)
}

// parseFormatInfo reads the two --print lines: extension, then size or "NA".
func parseFormatInfo(out []byte) (FormatInfo, error) {
	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	ext := strings.TrimSpace(lines[0])
	if ext == "" || ext == "NA" {
		return FormatInfo{}, domain.Parse(fmt.Errorf("extractor printed no extension: %q", string(out)))
	}

	info := FormatInfo{Ext: ext}
	if len(lines) > 1 {
		if size, err := strconv.ParseFloat(strings.TrimSpace(lines[1]), 64); err == nil && size > 0 {
			n := int64(size)
			info.Size = &n
		}
	}
	return info, nil
}

// genericFailure is used for tools whose diagnostics carry no classifiable
// extraction failure.
func genericFailure(stderr string, err error) error {
	if stderr != "" {
		err = fmt.Errorf("%w: %s", err, stderr)
	}
	return domain.Relay(err)
}
