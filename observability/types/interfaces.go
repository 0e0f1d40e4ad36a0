// Package types holds the logging and metrics contracts shared by every
// component of the relay service.
package types

import (
	"context"
	"io"

	"github.com/prometheus/client_golang/prometheus"
)

// ContextKey names a correlation value carried on a context.
type ContextKey string

const (
	TraceIDKey    ContextKey = "trace_id"
	SpanIDKey     ContextKey = "span_id"
	RequestIDKey  ContextKey = "request_id"
	DownloadIDKey ContextKey = "download_id"
	WorkerKey     ContextKey = "worker"
	PlatformKey   ContextKey = "platform"
)

// Fields are structured log values. Values must marshal to JSON.
type Fields map[string]interface{}

// Logger writes structured entries, copying the trace, request and
// download ids it finds on ctx.
type Logger interface {
	Debug(ctx context.Context, msg string, fields Fields)
	Info(ctx context.Context, msg string, fields Fields)
	Warn(ctx context.Context, msg string, fields Fields)
	Error(ctx context.Context, msg string, err error, fields Fields)

	// WithFields returns a Logger adding fields to every entry.
	WithFields(fields Fields) Logger
}

// Metrics records operation outcomes for one component. Operation labels
// are names such as "get_video_info" or "relay"; error labels are codes
// such as "EXTRACTION_ERROR" or "CLIENT_DISCONNECTED".
type Metrics interface {
	RecordSuccess(operationType string)
	RecordError(operationType string, errorType string)

	// RecordDuration observes seconds.
	RecordDuration(operation string, duration float64)

	// RecordBytes observes a transfer size; kind is "video", "audio",
	// "artifact" and so on.
	RecordBytes(kind string, bytes int64)

	// StartOperation and EndOperation move the in-progress gauge and
	// must be paired.
	StartOperation(operation string)
	EndOperation(operation string)
}

// Config configures a Provider.
type Config struct {
	ServiceName string // log service prefix and metric namespace
	Environment string
	LogLevel    string // debug, info, warn or error

	// LogOutput defaults to os.Stdout.
	LogOutput io.Writer

	// AdditionalFields appear in every log entry.
	AdditionalFields Fields

	// Registerer receives every collector. nil means a private registry.
	Registerer prometheus.Registerer
}

// Provider gives each component its own Logger and Metrics. Repeated
// calls for the same component return the same instance.
type Provider interface {
	Logger(component string) Logger
	Metrics(component string) Metrics
	Close() error
}
