package handler

import (
	"streamrelay/config"
	"streamrelay/observability"
)

// Factory assembles a Handler with the middleware chain selected by a
// HandlerConfig.
type Factory struct {
	worker  Worker
	obs     observability.Provider
	cfg     config.HandlerConfig
	limiter *RateLimiter
}

func NewFactory(worker Worker, provider observability.Provider) *Factory {
	return &Factory{worker: worker, obs: provider, cfg: config.DefaultHandlerConfig()}
}

func (f *Factory) WithHandlerConfig(cfg config.HandlerConfig) *Factory {
	f.cfg = cfg
	return f
}

// WithRateLimiter limits each client to its token bucket.
func (f *Factory) WithRateLimiter(limiter *RateLimiter) *Factory {
	f.limiter = limiter
	return f
}

// Create returns a handler whose chain is, outermost first: recovery,
// tracing, metrics, logging, validation, rate limit, timeout, retry. The
// optional layers are left out when disabled.
func (f *Factory) Create() *Handler {
	h := NewHandler(f.worker, f.obs, &f.cfg)
	for _, m := range f.middlewares() {
		h.Use(m)
	}
	return h
}

func (f *Factory) middlewares() []Middleware {
	chain := []Middleware{RecoveryMiddleware(f.obs)}

	if f.cfg.EnableTracing {
		chain = append(chain, TracingMiddleware())
	}
	if f.cfg.EnableMetrics {
		chain = append(chain, MetricsMiddleware(f.obs))
	}
	chain = append(chain, LoggingMiddleware(f.obs), ValidationMiddleware())

	if f.limiter != nil {
		chain = append(chain, RateLimitMiddleware(f.limiter))
	}
	if f.cfg.Timeout > 0 {
		chain = append(chain, TimeoutMiddleware(f.cfg.Timeout))
	}
	if f.cfg.Retry.MaxAttempts > 0 {
		chain = append(chain, RetryMiddleware(f.cfg.Retry))
	}
	return chain
}
