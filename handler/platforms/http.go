// Package platforms adapts the handler to concrete transports.
package platforms

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"streamrelay/config"
	"streamrelay/handler"
	"streamrelay/internal/domain"
	"streamrelay/observability/types"
)

// Options configures the HTTP adapter.
type Options struct {
	// Locale is used when Accept-Language names no supported language.
	Locale string

	// Limiter, when set, also guards the streaming routes. JSON operations
	// are limited by the handler's middleware.
	Limiter *handler.RateLimiter

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler
}

// HTTPAdapter adapts the handler for net/http.
//
// JSON operations are POST /{operation} with a JSON body, plus
// GET /progress/{id} and GET /history. Successful operations answer with the
// worker's data as the body; failures answer {"error": ..., "code": ...}.
type HTTPAdapter struct {
	handler *handler.Handler
	opts    Options
	mux     *http.ServeMux
	logger  types.Logger
	metrics types.Metrics
}

// NewHTTPAdapter creates a new HTTP adapter with the provided handler.
func NewHTTPAdapter(h *handler.Handler, opts Options) *HTTPAdapter {
	a := &HTTPAdapter{
		handler: h,
		opts:    opts,
		logger:  h.Observability().Logger("http"),
		metrics: h.Observability().Metrics("http"),
	}
	a.mux = a.routes()
	return a
}

// ServeHTTP implements the http.Handler interface.
func (a *HTTPAdapter) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.mux.ServeHTTP(w, r)
}

// Server returns an http.Server for the adapter. Write timeouts are left
// unset because downloads stream for as long as the extractor produces data.
func (a *HTTPAdapter) Server(cfg config.HTTPConfig) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           a,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

func (a *HTTPAdapter) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /{operation}", a.operation(func(r *http.Request) string {
		return r.PathValue("operation")
	}, a.readBody))
	mux.HandleFunc("GET /progress/{id}", a.operation(fixed("progress"), func(r *http.Request) ([]byte, error) {
		return json.Marshal(map[string]string{"id": r.PathValue("id")})
	}))
	mux.HandleFunc("GET /history", a.operation(fixed("history"), noBody))

	if streamer, ok := a.handler.Worker().(handler.Streamer); ok {
		for pattern, fn := range streamer.Streams() {
			mux.HandleFunc(pattern, a.stream(pattern, fn))
		}
	}

	if a.handler.Config().EnableHealth {
		for _, path := range []string{"/health", "/healthz", "/ready", "/readyz", "/live", "/livez"} {
			mux.HandleFunc("GET "+path, a.handleHealth)
		}
	}

	if a.opts.MetricsHandler != nil {
		mux.Handle("GET /metrics", a.opts.MetricsHandler)
	}

	return mux
}

func fixed(operation string) func(*http.Request) string {
	return func(*http.Request) string { return operation }
}

func noBody(*http.Request) ([]byte, error) { return nil, nil }

// operation runs one JSON operation through the handler chain.
func (a *HTTPAdapter) operation(name func(*http.Request) string, payload func(*http.Request) ([]byte, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locale := a.locale(r)

		body, err := payload(r)
		if err != nil {
			id := a.requestID(r)
			a.writeResponse(w, handler.NewDomainErrorResponse(id,
				domain.Validation(domain.MsgInvalidPayload, err.Error()), domain.NewLocalizer(locale)), nil, locale)
			return
		}

		req := a.buildRequest(r, name(r), body, locale)
		resp, err := a.handler.Handle(handler.WithLocale(r.Context(), locale), req)
		if resp.ID == "" {
			resp.ID = req.ID
		}
		a.writeResponse(w, resp, err, locale)
	}
}

// stream serves a binary route. Errors are written as JSON only while the
// response is still uncommitted.
func (a *HTTPAdapter) stream(pattern string, fn handler.StreamFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		locale := a.locale(r)
		id := a.requestID(r)
		l := domain.NewLocalizer(locale)
		w.Header().Set("X-Request-ID", id)

		if a.opts.Limiter != nil && !a.opts.Limiter.Allow(clientIP(r)) {
			a.writeResponse(w, handler.NewErrorResponse(id, handler.CodeRateLimited,
				l.Message(domain.MsgRateLimited), "rate limit exceeded"), nil, locale)
			return
		}

		ctx := context.WithValue(r.Context(), types.RequestIDKey, id)
		ctx = context.WithValue(ctx, types.TraceIDKey, id)
		ctx = handler.WithLocale(ctx, locale)

		tw := &trackingWriter{ResponseWriter: w}
		start := time.Now()
		err := fn(ctx, tw, r)
		a.metrics.RecordDuration(pattern, time.Since(start).Seconds())

		if err == nil {
			a.metrics.RecordSuccess(pattern)
			return
		}

		resp := handler.NewDomainErrorResponse(id, err, l)
		a.metrics.RecordError(pattern, resp.Error.Code)
		a.logger.Error(ctx, "stream failed", err, types.Fields{
			"route":     pattern,
			"committed": tw.wroteHeader,
		})

		if !tw.wroteHeader {
			a.writeResponse(w, resp, nil, locale)
		}
	}
}

// handleHealth reports worker health, with component details when the
// worker provides them.
func (a *HTTPAdapter) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var details map[string]string
	var err error
	if reporter, ok := a.handler.Worker().(handler.HealthReporter); ok {
		details, err = reporter.HealthReport(ctx)
	} else {
		err = a.handler.Health(ctx)
	}

	body := map[string]interface{}{
		"status": "healthy",
		"worker": a.handler.Worker().Name(),
		"time":   time.Now().UTC(),
	}
	if len(details) > 0 {
		body["components"] = details
	}

	status := http.StatusOK
	if err != nil {
		status = http.StatusServiceUnavailable
		body["status"] = "unhealthy"
		body["error"] = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (a *HTTPAdapter) readBody(r *http.Request) ([]byte, error) {
	maxSize := a.handler.Config().MaxRequestSize
	if maxSize <= 0 {
		maxSize = 1 << 20
	}

	body, err := readAllLimited(r, maxSize)
	if err != nil {
		return nil, err
	}
	return body, nil
}

// buildRequest creates a platform-agnostic request from the HTTP request
func (a *HTTPAdapter) buildRequest(r *http.Request, operation string, body []byte, locale string) handler.Request {
	return handler.Request{
		ID:        a.requestID(r),
		Source:    "http",
		Type:      operation,
		Payload:   json.RawMessage(body),
		Metadata:  a.extractMetadata(r),
		Locale:    locale,
		Timestamp: time.Now().UTC(),
	}
}

func (a *HTTPAdapter) requestID(r *http.Request) string {
	for _, header := range []string{"X-Request-ID", "X-Correlation-ID", "Request-ID"} {
		if id := r.Header.Get(header); id != "" {
			return id
		}
	}
	return uuid.New().String()
}

func (a *HTTPAdapter) locale(r *http.Request) string {
	return domain.ResolveLocale(r.Header.Get("Accept-Language"), a.opts.Locale)
}

// extractMetadata builds metadata from the HTTP request
func (a *HTTPAdapter) extractMetadata(r *http.Request) map[string]string {
	metadata := map[string]string{
		"http_method": r.Method,
		"http_path":   r.URL.Path,
		"client_ip":   clientIP(r),
	}

	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			metadata["query_"+key] = values[0]
		}
	}

	if ua := r.Header.Get("User-Agent"); ua != "" {
		metadata["header_user_agent"] = ua
	}
	if traceID := r.Header.Get("X-Trace-ID"); traceID != "" {
		metadata["trace_id"] = traceID
	}

	return metadata
}

// writeResponse writes the worker's data on success and the error
// envelope otherwise.
func (a *HTTPAdapter) writeResponse(w http.ResponseWriter, resp handler.Response, err error, locale string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Request-ID", resp.ID)
	if traceID, ok := resp.Metadata["trace_id"]; ok {
		w.Header().Set("X-Trace-ID", traceID)
	}

	if err != nil {
		resp = handler.NewDomainErrorResponse(resp.ID, domain.Internal(err), domain.NewLocalizer(locale))
	}

	if resp.Success {
		w.WriteHeader(http.StatusOK)
		if len(resp.Data) == 0 {
			w.Write([]byte("{}"))
			return
		}
		w.Write(resp.Data)
		return
	}

	w.WriteHeader(determineStatusCode(resp))
	json.NewEncoder(w).Encode(errorBody(resp))
}

type errorEnvelope struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func errorBody(resp handler.Response) errorEnvelope {
	if resp.Error == nil {
		return errorEnvelope{Code: string(domain.KindInternal)}
	}
	return errorEnvelope{Error: resp.Error.Message, Code: resp.Error.Code}
}

// determineStatusCode maps the error kind to an HTTP status code
func determineStatusCode(resp handler.Response) int {
	if resp.Success {
		return http.StatusOK
	}
	if resp.Error == nil {
		return http.StatusInternalServerError
	}

	switch resp.Error.Kind {
	case string(domain.KindValidation):
		return http.StatusBadRequest
	case string(domain.KindNotFound):
		return http.StatusNotFound
	case string(domain.KindConflict):
		return http.StatusConflict
	case handler.CodeRateLimited:
		return http.StatusTooManyRequests
	case handler.CodeTimeout:
		return http.StatusGatewayTimeout
	case handler.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// clientIP prefers the first X-Forwarded-For hop, then X-Real-IP, then the
// peer address.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
