package handler

import (
	"context"

	"streamrelay/config"
	"streamrelay/observability"
	"streamrelay/observability/types"
)

// HandlerFunc processes one operation.
type HandlerFunc func(ctx context.Context, req Request) (Response, error)

// Middleware decorates a HandlerFunc.
type Middleware func(next HandlerFunc) HandlerFunc

// Handler runs a Worker's operations behind a middleware chain. Platforms
// translate their transport into Handle calls.
type Handler struct {
	worker   Worker
	obs      observability.Provider
	cfg      *config.HandlerConfig
	platform string
	chain    []Middleware
}

// NewHandler returns a handler with an empty chain. Factory.Create adds the
// standard one.
func NewHandler(worker Worker, provider observability.Provider, cfg *config.HandlerConfig) *Handler {
	return &Handler{
		worker:   worker,
		obs:      provider,
		cfg:      cfg,
		platform: "http",
	}
}

// Use appends m; the first middleware added runs outermost.
func (h *Handler) Use(m Middleware) {
	h.chain = append(h.chain, m)
}

// Handle runs req through the chain into the worker.
func (h *Handler) Handle(ctx context.Context, req Request) (Response, error) {
	ctx = context.WithValue(ctx, types.RequestIDKey, req.ID)
	ctx = context.WithValue(ctx, types.WorkerKey, h.worker.Name())
	ctx = context.WithValue(ctx, types.PlatformKey, h.platform)

	run := HandlerFunc(h.worker.Process)
	for i := len(h.chain) - 1; i >= 0; i-- {
		run = h.chain[i](run)
	}
	return run(ctx, req)
}

func (h *Handler) Health(ctx context.Context) error {
	return h.worker.Health(ctx)
}

func (h *Handler) Config() *config.HandlerConfig {
	return h.cfg
}

func (h *Handler) Worker() Worker {
	return h.worker
}

// Observability returns the provider the handler logs and measures with.
func (h *Handler) Observability() observability.Provider {
	return h.obs
}
