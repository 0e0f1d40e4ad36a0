package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"streamrelay/config"
	"streamrelay/internal/domain"
	"streamrelay/observability"
	"streamrelay/observability/types"
)

// Headers, lower-cased, that may carry a caller's trace id, in order of
// preference.
var traceMetadataKeys = []string{
	"trace_id",
	"x-trace-id",
	"x-b3-traceid",
	"x-request-id",
	"correlation-id",
}

// failureLabel names what went wrong with an operation, or returns "" when
// it succeeded.
func failureLabel(resp Response, err error) string {
	switch {
	case err != nil:
		return "processing_error"
	case resp.Success:
		return ""
	case resp.Error != nil:
		return resp.Error.Code
	default:
		return "unknown_error"
	}
}

// LoggingMiddleware logs one line per operation with its outcome and
// elapsed time, and stamps the elapsed time on the response.
func LoggingMiddleware(provider observability.Provider) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			worker, _ := ctx.Value(types.WorkerKey).(string)
			platform, _ := ctx.Value(types.PlatformKey).(string)

			log := provider.Logger("handler").WithFields(types.Fields{
				"type":     req.Type,
				"source":   req.Source,
				"worker":   worker,
				"platform": platform,
			})
			log.Debug(ctx, "operation started", types.Fields{"payload_size": len(req.Payload)})

			start := time.Now()
			resp, err := next(ctx, req)
			resp.Duration = time.Since(start)
			fields := types.Fields{"duration_ms": resp.Duration.Milliseconds()}

			switch {
			case err != nil:
				log.Error(ctx, "operation errored", err, fields)
			case resp.Error != nil:
				fields["error_code"] = resp.Error.Code
				fields["error"] = resp.Error.Details
				log.Warn(ctx, "operation failed", fields)
			default:
				log.Info(ctx, "operation succeeded", fields)
			}

			return resp, err
		}
	}
}

// MetricsMiddleware records the outcome, duration and concurrency of each
// operation, labelled by operation name.
func MetricsMiddleware(provider observability.Provider) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			m := provider.Metrics("handler")

			op := req.Type
			if op == "" {
				op = "unknown"
			}

			m.StartOperation(op)
			defer m.EndOperation(op)

			start := time.Now()
			resp, err := next(ctx, req)
			m.RecordDuration(op, time.Since(start).Seconds())

			if label := failureLabel(resp, err); label != "" {
				m.RecordError(op, label)
			} else {
				m.RecordSuccess(op)
			}
			return resp, err
		}
	}
}

// RecoveryMiddleware turns a panic into an internal error response. It
// belongs outermost.
func RecoveryMiddleware(provider observability.Provider) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (resp Response, err error) {
			defer func() {
				r := recover()
				if r == nil {
					return
				}
				cause := fmt.Errorf("panic: %v", r)
				provider.Logger("handler").Error(ctx, "operation panicked", cause, types.Fields{
					"type":  req.Type,
					"stack": string(debug.Stack()),
				})
				provider.Metrics("handler").RecordError("panic", "panic_recovered")

				resp, err = NewDomainErrorResponse(req.ID, domain.Internal(cause), req.Localizer()), nil
			}()

			return next(ctx, req)
		}
	}
}

// TracingMiddleware puts a trace and span id on the context and request
// metadata, reusing a trace id the caller sent, and echoes the trace id in
// the response metadata.
func TracingMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			traceID := callerTraceID(req)
			if traceID == "" {
				traceID = uuid.NewString()
			}
			spanID := uuid.NewString()

			ctx = context.WithValue(ctx, types.TraceIDKey, traceID)
			ctx = context.WithValue(ctx, types.SpanIDKey, spanID)
			req.SetMetadata("trace_id", traceID)
			req.SetMetadata("span_id", spanID)

			resp, err := next(ctx, req)
			if resp.Metadata == nil {
				resp.Metadata = map[string]string{}
			}
			resp.Metadata["trace_id"] = traceID
			return resp, err
		}
	}
}

func callerTraceID(req Request) string {
	for _, key := range traceMetadataKeys {
		if v := req.Metadata[key]; v != "" {
			return v
		}
	}
	return ""
}

// TimeoutMiddleware answers with a TIMEOUT failure once timeout elapses.
// The operation keeps running until it notices its cancelled context.
func TimeoutMiddleware(timeout time.Duration) Middleware {
	type outcome struct {
		resp Response
		err  error
	}

	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan outcome, 1)
			go func() {
				resp, err := next(ctx, req)
				done <- outcome{resp, err}
			}()

			select {
			case out := <-done:
				return out.resp, out.err
			case <-ctx.Done():
				return NewErrorResponse(req.ID, CodeTimeout,
					req.Localizer().Message(domain.MsgTimeout),
					fmt.Sprintf("no result within %v", timeout)), nil
			}
		}
	}
}

// RetryMiddleware re-runs an operation whose failure is marked retryable,
// up to cfg.MaxAttempts extra times with exponential backoff.
func RetryMiddleware(cfg config.RetryConfig) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			var (
				resp Response
				err  error
			)

			for attempt := 0; ; attempt++ {
				resp, err = next(ctx, req)
				if (err == nil && resp.Success) || !shouldRetry(resp, err) {
					return resp, err
				}
				if attempt == cfg.MaxAttempts {
					break
				}

				timer := time.NewTimer(calculateBackoff(attempt, cfg))
				select {
				case <-ctx.Done():
					timer.Stop()
					return resp, err
				case <-timer.C:
				}
			}

			if err != nil {
				return resp, fmt.Errorf("max retries (%d) exceeded: %w", cfg.MaxAttempts, err)
			}
			return resp, nil
		}
	}
}

func shouldRetry(resp Response, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if resp.Error != nil {
		return resp.Error.Retryable
	}
	return err != nil
}

func calculateBackoff(attempt int, cfg config.RetryConfig) time.Duration {
	d := float64(cfg.InitialBackoff) * math.Pow(cfg.BackoffMultiplier, float64(attempt))
	return time.Duration(math.Min(d, float64(cfg.MaxBackoff)))
}

// ValidationMiddleware fills in a missing id, timestamp and payload, and
// rejects requests without an operation name or with malformed JSON.
func ValidationMiddleware() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			if req.ID == "" {
				req.ID = uuid.NewString()
			}
			if req.Timestamp.IsZero() {
				req.Timestamp = time.Now().UTC()
			}
			if req.Metadata == nil {
				req.Metadata = map[string]string{}
			}
			if len(req.Payload) == 0 {
				req.Payload = json.RawMessage("{}")
			}

			var invalid error
			switch {
			case req.Type == "":
				invalid = domain.Validation(domain.MsgUnknownOperation, "request type is required")
			case !json.Valid(req.Payload):
				invalid = domain.Validation(domain.MsgInvalidPayload, "payload must be valid JSON")
			}
			if invalid != nil {
				return NewDomainErrorResponse(req.ID, invalid, req.Localizer()), nil
			}

			return next(ctx, req)
		}
	}
}

// RateLimitMiddleware rejects a client whose token bucket is empty. The
// platform identifies the client through the "client_ip" metadata.
func RateLimitMiddleware(limiter *RateLimiter) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req Request) (Response, error) {
			client, _ := req.GetMetadata("client_ip")
			if limiter.Allow(client) {
				return next(ctx, req)
			}
			return NewErrorResponse(req.ID, CodeRateLimited,
				req.Localizer().Message(domain.MsgRateLimited), "rate limit exceeded"), nil
		}
	}
}
