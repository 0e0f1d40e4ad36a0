package handler

import (
	"context"
	"net/http"
)

// Worker defines the interface that each worker must implement.
// Workers process requests and return responses without knowing about
// the underlying transport.
type Worker interface {
	// Name returns the worker name for identification.
	// This is used for logging, metrics, and routing.
	Name() string

	// Process handles one JSON operation. The operation is named by
	// request.Type and its input is request.Payload.
	Process(ctx context.Context, request Request) (Response, error)

	// Health checks if the worker is healthy and ready to process requests.
	Health(ctx context.Context) error
}

// HealthReporter is implemented by workers that describe their
// dependencies on health checks.
type HealthReporter interface {
	HealthReport(ctx context.Context) (map[string]string, error)
}

// StreamFunc serves a route whose body is not JSON. It returns an error
// instead of writing one; the platform reports it when nothing has been
// written yet.
type StreamFunc func(ctx context.Context, w http.ResponseWriter, r *http.Request) error

// Streamer is implemented by workers that also serve binary routes, keyed
// by net/http mux pattern (e.g. "GET /download").
type Streamer interface {
	Streams() map[string]StreamFunc
}
