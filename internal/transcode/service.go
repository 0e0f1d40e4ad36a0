// Package transcode runs background audio conversion and clip trimming
// jobs and stores their output as artifacts.
package transcode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"

	"streamrelay/internal/domain"
	"streamrelay/internal/media"
	"streamrelay/internal/progress"
	"streamrelay/internal/tool"
	"streamrelay/observability/types"
	storagetypes "streamrelay/storage/types"
)

const (
	DefaultAudioFormat = "mp3"
	DefaultBitrate     = 192
	MinBitrate         = 32
	MaxBitrate         = 320

	// progressStep is how many output bytes advance the percent by one.
	progressStep = 1 << 20
)

// AudioRequest asks for the best audio of URL re-encoded to Format.
type AudioRequest struct {
	URL     string `json:"url"`
	Format  string `json:"format"`
	Bitrate int    `json:"bitrate"`
}

// Normalize fills defaults and validates the request.
func (r *AudioRequest) Normalize() error {
	url, err := media.ValidateURL(r.URL)
	if err != nil {
		return err
	}
	r.URL = url
	if r.Format == "" {
		r.Format = DefaultAudioFormat
	}
	r.Format = strings.ToLower(r.Format)
	if _, ok := tool.AudioFormats[r.Format]; !ok {
		return domain.Validation(domain.MsgUnsupportedFormat, "unsupported audio format "+r.Format)
	}
	if r.Bitrate == 0 {
		r.Bitrate = DefaultBitrate
	}
	if r.Bitrate < MinBitrate || r.Bitrate > MaxBitrate {
		return domain.Validation(domain.MsgUnsupportedFormat, fmt.Sprintf("bitrate %d out of range", r.Bitrate))
	}
	return nil
}

// ClipRequest asks for the Start..End section of one format of URL.
type ClipRequest struct {
	URL      string `json:"url"`
	FormatID string `json:"itag"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Audio    bool   `json:"is_audio"`

	clip tool.ClipRange
}

// Normalize parses the time range and validates the request.
func (r *ClipRequest) Normalize() error {
	url, err := media.ValidateURL(r.URL)
	if err != nil {
		return err
	}
	r.URL = url
	if r.FormatID == "" {
		r.FormatID = "best"
		if r.Audio {
			r.FormatID = "bestaudio"
		}
	}

	start, err := media.ParseClipTime(r.Start)
	if err != nil {
		return err
	}
	end, err := media.ParseClipTime(r.End)
	if err != nil {
		return err
	}
	if end <= start {
		return domain.Validation(domain.MsgInvalidTimeRange, "end must be after start")
	}

	r.clip = tool.ClipRange{Start: start, End: end}
	return nil
}

// Service starts transcode jobs and tracks them until Shutdown.
type Service struct {
	extractor  tool.Extractor
	transcoder tool.Transcoder
	storage    storagetypes.ObjectStorage
	tracker    progress.Tracker
	logger     types.Logger
	metrics    types.Metrics

	base context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup
}

// NewService creates a Service.
func NewService(extractor tool.Extractor, transcoder tool.Transcoder, storage storagetypes.ObjectStorage,
	tracker progress.Tracker, logger types.Logger, metrics types.Metrics) *Service {
	base, stop := context.WithCancel(context.Background())
	return &Service{
		extractor:  extractor,
		transcoder: transcoder,
		storage:    storage,
		tracker:    tracker,
		logger:     logger,
		metrics:    metrics,
		base:       base,
		stop:       stop,
	}
}

// job is one source-to-transcoder-to-storage pipeline.
type job struct {
	operation string
	url       string
	formatID  string
	key       string
	// partialInput means the transcoder may stop reading before the source
	// ends, so a failing source after a clean transcode is expected.
	partialInput bool
	transcode    func(ctx context.Context, in io.Reader) (tool.Stream, error)
}

// ConvertAudio starts an audio conversion and returns its job id.
func (s *Service) ConvertAudio(req AudioRequest, l domain.Localizer) (string, error) {
	if err := req.Normalize(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	format := tool.AudioFormats[req.Format]
	err := s.start(id, job{
		operation: "convert_audio",
		url:       req.URL,
		formatID:  "bestaudio",
		key:       fmt.Sprintf("audio/%s.%s", id, format.Ext),
		transcode: func(ctx context.Context, in io.Reader) (tool.Stream, error) {
			return s.transcoder.ConvertAudio(ctx, in, req.Format, req.Bitrate)
		},
	}, l)
	if err != nil {
		return "", err
	}
	return id, nil
}

// TrimClip starts a clip extraction and returns its job id.
func (s *Service) TrimClip(req ClipRequest, l domain.Localizer) (string, error) {
	if err := req.Normalize(); err != nil {
		return "", err
	}

	ext := "mp4"
	if req.Audio {
		ext = "mp3"
	}

	id := uuid.NewString()
	err := s.start(id, job{
		operation:    "trim_clip",
		url:          req.URL,
		formatID:     req.FormatID,
		key:          fmt.Sprintf("clips/%s.%s", id, ext),
		partialInput: true,
		transcode: func(ctx context.Context, in io.Reader) (tool.Stream, error) {
			return s.transcoder.Trim(ctx, in, req.clip, req.Audio)
		},
	}, l)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Service) start(id string, j job, l domain.Localizer) error {
	if s.base.Err() != nil {
		return domain.Internal(errors.New("transcode service is shut down"))
	}
	if err := s.tracker.Claim(id, l.Message(domain.MsgStatusStarting)); err != nil {
		return err
	}

	ctx := context.WithValue(s.base, types.DownloadIDKey, id)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(ctx, id, j, l)
	}()
	return nil
}

func (s *Service) run(ctx context.Context, id string, j job, l domain.Localizer) {
	s.metrics.StartOperation(j.operation)
	defer s.metrics.EndOperation(j.operation)

	n, err := s.pipeline(ctx, id, j, l)
	if err != nil {
		message := l.ErrorMessage(err)
		if ctx.Err() != nil {
			message = l.Message(domain.MsgStatusCancelled)
		}
		s.tracker.Update(id, progress.StatusError, 0, message)
		s.metrics.RecordError(j.operation, string(domain.KindOf(err)))
		s.logger.Error(ctx, "transcode job failed", err, types.Fields{
			"operation": j.operation,
			"key":       j.key,
		})
		return
	}

	s.tracker.Update(id, progress.StatusCompleted, 100, j.key)
	s.metrics.RecordSuccess(j.operation)
	s.logger.Info(ctx, "transcode job completed", types.Fields{
		"operation": j.operation,
		"key":       j.key,
		"bytes":     n,
	})
}

func (s *Service) pipeline(ctx context.Context, id string, j job, l domain.Localizer) (int64, error) {
	src, err := s.extractor.StreamFormat(ctx, j.url, j.formatID)
	if err != nil {
		return 0, err
	}

	out, err := j.transcode(ctx, src)
	if err != nil {
		src.Kill()
		src.Wait()
		return 0, err
	}

	s.tracker.Update(id, progress.StatusDownloading, 0, l.Message(domain.MsgStatusConverting))
	counter := &progressReader{
		r: out,
		report: func(percent int) {
			s.tracker.Update(id, progress.StatusDownloading, percent, l.Message(domain.MsgStatusConverting))
		},
	}

	n, err := s.storage.Put(ctx, j.key, counter, storagetypes.ObjectMetadata{
		ContentType: storagetypes.ContentTypeFor(j.key),
		UserMetadata: map[string]string{
			"source-url": j.url,
			"operation":  j.operation,
		},
	})
	if err != nil {
		out.Kill()
		src.Kill()
		out.Wait()
		src.Wait()
		s.discard(ctx, j.key)
		return n, err
	}

	outErr := out.Wait()
	if j.partialInput && outErr == nil {
		src.Kill()
	}
	srcErr := src.Wait()

	switch {
	case outErr != nil:
		err = outErr
	case srcErr != nil && !j.partialInput:
		err = srcErr
	}
	if err != nil {
		s.discard(ctx, j.key)
		return n, err
	}
	return n, nil
}

func (s *Service) discard(ctx context.Context, key string) {
	if err := s.storage.Delete(context.WithoutCancel(ctx), key); err != nil {
		s.logger.Warn(ctx, "failed to remove partial artifact", types.Fields{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// Shutdown cancels running jobs and waits for them or ctx.
func (s *Service) Shutdown(ctx context.Context) error {
	s.stop()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// progressReader reports one more percent every progressStep bytes, up to 99.
type progressReader struct {
	r       io.Reader
	read    int64
	percent int
	report  func(int)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	p.read += int64(n)
	if next := int(p.read / progressStep); next > p.percent && p.percent < 99 {
		p.percent = min(next, 99)
		p.report(p.percent)
	}
	return n, err
}
