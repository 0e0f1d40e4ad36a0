// Package worker implements the media worker: the JSON operations and
// binary routes served through the handler pipeline.
package worker

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"streamrelay/config"
	"streamrelay/handler"
	"streamrelay/internal/batch"
	"streamrelay/internal/domain"
	"streamrelay/internal/progress"
	"streamrelay/internal/relay"
	"streamrelay/internal/tool"
	"streamrelay/internal/transcode"
	"streamrelay/observability/types"
	storagetypes "streamrelay/storage/types"
)

// Relay streams one format to the client.
type Relay interface {
	Serve(ctx context.Context, w http.ResponseWriter, req relay.Request) (relay.Result, error)
}

// Batches starts background batches.
type Batches interface {
	Start(urls []string, l domain.Localizer) (*batch.Task, error)
}

// Jobs starts background transcode jobs.
type Jobs interface {
	ConvertAudio(req transcode.AudioRequest, l domain.Localizer) (string, error)
	TrimClip(req transcode.ClipRequest, l domain.Localizer) (string, error)
}

// Dependencies are the components the worker dispatches to.
type Dependencies struct {
	Extractor  tool.Extractor
	Transcoder tool.Transcoder
	Store      progress.Store
	Relay      Relay
	Batches    Batches
	Jobs       Jobs
	Storage    storagetypes.ObjectStorage
}

// Limits bounds list sizes returned to clients.
type Limits struct {
	Recent      int
	SearchLimit int
	MaxSearch   int
}

// LimitsFromConfig reads the limits from the progress and batch sections.
func LimitsFromConfig(cfg *config.Config) Limits {
	return Limits{
		Recent:      cfg.Progress.RecentLimit,
		SearchLimit: cfg.Batch.SearchLimit,
		MaxSearch:   cfg.Batch.MaxSearch,
	}
}

type operation func(ctx context.Context, req handler.Request, l domain.Localizer) (interface{}, error)

// MediaWorker implements handler.Worker, handler.Streamer and
// handler.HealthReporter.
type MediaWorker struct {
	deps       Dependencies
	limits     Limits
	logger     types.Logger
	metrics    types.Metrics
	operations map[string]operation
}

var (
	_ handler.Worker         = (*MediaWorker)(nil)
	_ handler.Streamer       = (*MediaWorker)(nil)
	_ handler.HealthReporter = (*MediaWorker)(nil)
)

// NewMediaWorker creates the worker.
func NewMediaWorker(deps Dependencies, limits Limits, logger types.Logger, metrics types.Metrics) *MediaWorker {
	if limits.Recent <= 0 {
		limits.Recent = 20
	}
	if limits.SearchLimit <= 0 {
		limits.SearchLimit = 10
	}
	if limits.MaxSearch <= 0 {
		limits.MaxSearch = 50
	}

	w := &MediaWorker{
		deps:    deps,
		limits:  limits,
		logger:  logger,
		metrics: metrics,
	}
	w.operations = map[string]operation{
		"get_video_info": w.getVideoInfo,
		"playlist_info":  w.playlistInfo,
		"search":         w.search,
		"subtitles":      w.subtitles,
		"batch_download": w.batchDownload,
		"progress":       w.progress,
		"history":        w.history,
		"clear_history":  w.clearHistory,
		"convert_audio":  w.convertAudio,
		"trim_clip":      w.trimClip,
	}
	return w
}

// Name returns the worker name
func (w *MediaWorker) Name() string {
	return "media"
}

// Process dispatches the request to its operation. Operation failures are
// returned as error responses, never as errors.
func (w *MediaWorker) Process(ctx context.Context, request handler.Request) (handler.Response, error) {
	w.metrics.StartOperation("worker_process")
	defer w.metrics.EndOperation("worker_process")

	startTime := time.Now()
	defer func() {
		w.metrics.RecordDuration("worker_process", time.Since(startTime).Seconds())
	}()

	l := request.Localizer()

	op, ok := w.operations[request.Type]
	if !ok {
		w.metrics.RecordError("worker_process", "unknown_operation")
		return handler.NewDomainErrorResponse(request.ID,
			domain.Validation(domain.MsgUnknownOperation, fmt.Sprintf("unknown operation %q", request.Type)), l), nil
	}

	data, err := op(ctx, request, l)
	if err != nil {
		kind := domain.KindOf(err)
		w.metrics.RecordError("worker_process", string(kind))

		fields := types.Fields{"operation": request.Type, "kind": kind}
		switch kind {
		case domain.KindValidation, domain.KindNotFound, domain.KindConflict:
			fields["error"] = err.Error()
			w.logger.Warn(ctx, "Operation rejected", fields)
		default:
			w.logger.Error(ctx, "Operation failed", err, fields)
		}

		return handler.NewDomainErrorResponse(request.ID, err, l), nil
	}

	response, err := handler.NewSuccessResponse(request.ID, data)
	if err != nil {
		w.metrics.RecordError("worker_process", "response_creation")
		w.logger.Error(ctx, "Failed to create response", err, types.Fields{"operation": request.Type})
		return handler.NewDomainErrorResponse(request.ID, domain.Internal(err), l), nil
	}

	w.metrics.RecordSuccess("worker_process")
	return response, nil
}

// Health fails when the extractor cannot be run.
func (w *MediaWorker) Health(ctx context.Context) error {
	_, err := w.HealthReport(ctx)
	return err
}

// HealthReport lists the tool versions. A missing transcoder degrades the
// conversion features only and is reported without failing.
func (w *MediaWorker) HealthReport(ctx context.Context) (map[string]string, error) {
	report := make(map[string]string, 3)
	var failure error

	if version, err := w.deps.Extractor.Version(ctx); err != nil {
		report["extractor"] = "unavailable"
		failure = fmt.Errorf("extractor unavailable: %w", err)
	} else {
		report["extractor"] = version
	}

	if w.deps.Transcoder != nil {
		if version, err := w.deps.Transcoder.Version(ctx); err != nil {
			report["transcoder"] = "unavailable"
			w.logger.Warn(ctx, "Transcoder unavailable", types.Fields{"error": err.Error()})
		} else {
			report["transcoder"] = version
		}
	}

	if w.deps.Storage != nil {
		if _, err := w.deps.Storage.Exists(ctx, ".health-check"); err != nil {
			report["storage"] = "unavailable"
			w.logger.Warn(ctx, "Artifact storage unavailable", types.Fields{"error": err.Error()})
		} else {
			report["storage"] = "ok"
		}
	}

	return report, failure
}

// decode unmarshals the request payload into v.
func decode(req handler.Request, v interface{}) error {
	if err := req.Unmarshal(v); err != nil {
		return domain.Validation(domain.MsgInvalidPayload, err.Error())
	}
	return nil
}
