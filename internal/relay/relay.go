// Package relay streams one format from the extractor to an HTTP client
// while recording progress, and logs the transfer once it completes.
package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"streamrelay/config"
	"streamrelay/internal/domain"
	"streamrelay/internal/media"
	"streamrelay/internal/progress"
	"streamrelay/internal/tool"
	"streamrelay/observability/types"
)

// Request identifies what to relay and under which download id.
type Request struct {
	// DownloadID keys the progress record. Generated when empty.
	DownloadID string
	URL        string
	FormatID   string
	Title      string
	// Audio names the file with the audio extension. The bytes are not converted.
	Audio     bool
	Localizer domain.Localizer
}

// Result reports what reached the client.
type Result struct {
	DownloadID string
	FileName   string
	Bytes      int64
	// Committed is true once response headers were written. After that
	// a failure can only truncate the body.
	Committed bool
}

// Relay owns the extractor-to-client copy loop.
type Relay struct {
	extractor tool.Extractor
	store     progress.Store
	cfg       config.RelayConfig
	logger    types.Logger
	metrics   types.Metrics
	now       func() time.Time
}

// New creates a Relay.
func New(extractor tool.Extractor, store progress.Store, cfg config.RelayConfig, logger types.Logger, metrics types.Metrics) *Relay {
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 8 * 1024
	}
	if cfg.ProgressEvery <= 0 {
		cfg.ProgressEvery = 128
	}
	if cfg.AudioExtension == "" {
		cfg.AudioExtension = "mp3"
	}
	if cfg.DefaultTitle == "" {
		cfg.DefaultTitle = "video"
	}
	return &Relay{
		extractor: extractor,
		store:     store,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Validate checks the fields the relay cannot work without.
func (req Request) Validate() error {
	if req.URL == "" || req.FormatID == "" {
		return domain.Validation(domain.MsgMissingParams, "url and itag are required")
	}
	_, err := media.ValidateURL(req.URL)
	return err
}

// Serve relays req to w. The progress record moves starting, downloading,
// then completed or error; exactly one history entry is appended on
// success. When the returned Result is not Committed the caller still
// owns the response and should report err itself.
func (r *Relay) Serve(ctx context.Context, w http.ResponseWriter, req Request) (Result, error) {
	if err := req.Validate(); err != nil {
		return Result{}, err
	}
	req.URL = strings.TrimSpace(req.URL)
	if req.DownloadID == "" {
		req.DownloadID = uuid.NewString()
	}
	if req.Title == "" {
		req.Title = r.cfg.DefaultTitle
	}

	l := req.Localizer
	if err := r.store.Claim(req.DownloadID, l.Message(domain.MsgStatusStarting)); err != nil {
		return Result{DownloadID: req.DownloadID}, err
	}

	ctx = context.WithValue(ctx, types.DownloadIDKey, req.DownloadID)
	if r.cfg.MaxDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.MaxDuration)
		defer cancel()
	}

	start := r.now()
	r.metrics.StartOperation("relay")
	defer r.metrics.EndOperation("relay")

	res, err := r.relay(ctx, w, req)
	res.DownloadID = req.DownloadID
	r.metrics.RecordDuration("relay", r.now().Sub(start).Seconds())

	if err != nil {
		r.fail(ctx, req, res, err)
		return res, err
	}

	r.store.Update(req.DownloadID, progress.StatusCompleted, 100, l.Message(domain.MsgStatusCompleted))
	r.store.Append(progress.HistoryEntry{
		ID:        req.DownloadID,
		Title:     req.Title,
		URL:       req.URL,
		FormatID:  req.FormatID,
		FileName:  res.FileName,
		Timestamp: r.now().UTC(),
		Size:      res.Bytes,
	})

	kind := "video"
	if req.Audio {
		kind = "audio"
	}
	r.metrics.RecordSuccess("relay")
	r.metrics.RecordBytes(kind, res.Bytes)
	r.logger.Info(ctx, "relay completed", types.Fields{
		"filename": res.FileName,
		"itag":     req.FormatID,
		"bytes":    res.Bytes,
	})

	return res, nil
}

func (r *Relay) relay(ctx context.Context, w http.ResponseWriter, req Request) (Result, error) {
	info, err := r.extractor.ResolveFormat(ctx, req.URL, req.FormatID)
	if err != nil {
		return Result{}, err
	}

	ext := info.Ext
	if req.Audio {
		ext = r.cfg.AudioExtension
	}
	res := Result{FileName: media.FileName(req.Title, ext, r.cfg.DefaultTitle)}

	stream, err := r.extractor.StreamFormat(ctx, req.URL, req.FormatID)
	if err != nil {
		return res, err
	}

	r.store.Update(req.DownloadID, progress.StatusDownloading, 0, req.Localizer.Message(domain.MsgStatusDownloading))

	if err := r.copy(ctx, w, stream, req, info.Size, &res); err != nil {
		stream.Kill()
		stream.Wait()
		return res, err
	}

	if err := stream.Wait(); err != nil {
		return res, err
	}

	// A clean exit without output still answers with an empty attachment.
	if !res.Committed {
		r.commit(w, &res)
	}
	return res, nil
}

func (r *Relay) copy(ctx context.Context, w http.ResponseWriter, src io.Reader, req Request, expected *int64, res *Result) error {
	rc := http.NewResponseController(w)
	buf := make([]byte, r.cfg.ChunkSize)
	tracker := newTicker(r.cfg.ProgressEvery, expected)

	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if !res.Committed {
				r.commit(w, res)
			}
			if _, err := w.Write(buf[:n]); err != nil {
				return domain.Relay(err)
			}
			if err := rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
				return domain.Relay(err)
			}
			res.Bytes += int64(n)

			if percent, ok := tracker.chunk(res.Bytes); ok {
				r.store.Update(req.DownloadID, progress.StatusDownloading, percent,
					req.Localizer.Message(domain.MsgStatusDownloading))
			}
		}

		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return domain.Relay(errors.Join(context.Canceled, readErr))
			}
			return domain.Relay(readErr)
		}
	}
}

func (r *Relay) commit(w http.ResponseWriter, res *Result) {
	h := w.Header()
	h.Set("Content-Type", "application/octet-stream")
	h.Set("Content-Disposition", media.ContentDisposition(res.FileName))
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	res.Committed = true
}

func (r *Relay) fail(ctx context.Context, req Request, res Result, err error) {
	l := req.Localizer
	message := l.ErrorMessage(err)
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		message = l.Message(domain.MsgStatusClientStopped)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		message = l.Message(domain.MsgTimeout)
	}

	r.store.Update(req.DownloadID, progress.StatusError, 0, message)
	r.metrics.RecordError("relay", string(domain.KindOf(err)))
	r.logger.Error(ctx, "relay failed", err, types.Fields{
		"itag":      req.FormatID,
		"bytes":     res.Bytes,
		"committed": res.Committed,
	})
}
