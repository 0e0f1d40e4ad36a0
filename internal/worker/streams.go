package worker

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"streamrelay/handler"
	"streamrelay/internal/domain"
	"streamrelay/internal/media"
	"streamrelay/internal/relay"
	"streamrelay/observability/types"
	storagetypes "streamrelay/storage/types"
)

// DefaultSubtitleFormat is used when the client names none.
const DefaultSubtitleFormat = "vtt"

// Streams returns the binary routes.
func (w *MediaWorker) Streams() map[string]handler.StreamFunc {
	return map[string]handler.StreamFunc{
		"GET /download":           w.download,
		"GET /subtitles/download": w.downloadSubtitle,
		"GET /artifacts/{key...}": w.artifact,
	}
}

func (w *MediaWorker) download(ctx context.Context, rw http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()

	res, err := w.deps.Relay.Serve(ctx, rw, relay.Request{
		DownloadID: q.Get("download_id"),
		URL:        strings.TrimSpace(q.Get("url")),
		FormatID:   q.Get("itag"),
		Title:      q.Get("title"),
		Audio:      parseFlag(q.Get("is_audio")),
		Localizer:  handler.LocalizerFrom(ctx),
	})
	if err != nil {
		return err
	}

	w.logger.Debug(ctx, "Download relayed", types.Fields{
		"download_id": res.DownloadID,
		"bytes":       res.Bytes,
	})
	return nil
}

func (w *MediaWorker) downloadSubtitle(ctx context.Context, rw http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query()
	url := strings.TrimSpace(q.Get("url"))
	lang := q.Get("lang")
	if url == "" || lang == "" {
		return domain.Validation(domain.MsgMissingParams, "url and lang are required")
	}
	url, err := media.ValidateURL(url)
	if err != nil {
		return err
	}
	format := q.Get("format")
	if format == "" {
		format = DefaultSubtitleFormat
	}

	dir, err := os.MkdirTemp("", "subtitles-*")
	if err != nil {
		return domain.Internal(err)
	}
	defer os.RemoveAll(dir)

	file, err := w.deps.Extractor.DownloadSubtitle(ctx, url, lang, format, dir)
	if err != nil {
		return err
	}

	f, err := os.Open(file)
	if err != nil {
		return domain.NotFound(domain.MsgSubtitlesNotFound, err.Error())
	}
	defer f.Close()

	name := filepath.Base(file)
	rw.Header().Set("Content-Type", storagetypes.ContentTypeFor(name))
	rw.Header().Set("Content-Disposition", media.ContentDisposition(name))
	if info, statErr := f.Stat(); statErr == nil {
		rw.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}

	if _, err := io.Copy(rw, f); err != nil {
		return domain.Relay(err)
	}
	return nil
}

func (w *MediaWorker) artifact(ctx context.Context, rw http.ResponseWriter, r *http.Request) error {
	key := r.PathValue("key")
	if err := storagetypes.ValidateKey(key); err != nil {
		return domain.Validation(domain.MsgMissingParams, err.Error())
	}

	body, meta, err := w.deps.Storage.Get(ctx, key)
	if errors.Is(err, storagetypes.ErrObjectNotFound) {
		return domain.NotFound(domain.MsgNotFound, key)
	}
	if err != nil {
		return domain.Internal(err)
	}
	defer body.Close()

	contentType := meta.ContentType
	if contentType == "" {
		contentType = storagetypes.ContentTypeFor(key)
	}
	rw.Header().Set("Content-Type", contentType)
	rw.Header().Set("Content-Disposition", media.ContentDisposition(path.Base(key)))
	if meta.ContentLength > 0 {
		rw.Header().Set("Content-Length", strconv.FormatInt(meta.ContentLength, 10))
	}

	n, err := io.Copy(rw, body)
	w.metrics.RecordBytes("artifact", n)
	if err != nil {
		return domain.Relay(err)
	}
	return nil
}

func parseFlag(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}
