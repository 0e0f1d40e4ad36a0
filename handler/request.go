package handler

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"streamrelay/internal/domain"
)

// Request is one JSON operation call, independent of the transport that
// carried it.
type Request struct {
	ID        string            `json:"id"`
	Source    string            `json:"source"` // transport, e.g. "http"
	Type      string            `json:"type"`   // operation name, e.g. "get_video_info"
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Locale    string            `json:"locale,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

// Response is the outcome of an operation. Exactly one of Data and Error
// is meaningful, selected by Success.
type Response struct {
	ID          string            `json:"id"`
	Success     bool              `json:"success"`
	Data        json.RawMessage   `json:"data,omitempty"`
	Error       *ErrorResponse    `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	ProcessedAt time.Time         `json:"processed_at"`
	Duration    time.Duration     `json:"duration,omitempty"`
}

// ErrorResponse describes a failed operation. Kind drives the transport
// status; Message is already localized. Details stay in the logs.
type ErrorResponse struct {
	Kind      string `json:"kind"`
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"-"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Codes raised by the handler layer rather than by a worker.
const (
	CodeRateLimited = "RATE_LIMITED"
	CodeTimeout     = "TIMEOUT"
	CodeUnavailable = "SERVICE_UNAVAILABLE"
)

var transientCodes = map[string]struct{}{
	CodeTimeout:     {},
	CodeRateLimited: {},
	CodeUnavailable: {},
}

// NewRequest marshals payload into a fresh request of the given operation.
func NewRequest(operation string, payload any) (Request, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Request{}, err
	}

	return Request{
		ID:        uuid.NewString(),
		Type:      operation,
		Payload:   raw,
		Metadata:  map[string]string{},
		Timestamp: time.Now().UTC(),
	}, nil
}

func (r *Request) Unmarshal(v any) error {
	return json.Unmarshal(r.Payload, v)
}

// Localizer returns the message catalog for the request locale.
func (r *Request) Localizer() domain.Localizer {
	return domain.NewLocalizer(r.Locale)
}

func (r *Request) SetMetadata(key, value string) {
	if r.Metadata == nil {
		r.Metadata = map[string]string{}
	}
	r.Metadata[key] = value
}

func (r *Request) GetMetadata(key string) (string, bool) {
	v, ok := r.Metadata[key]
	return v, ok
}

// Marshal stores v as the response data.
func (r *Response) Marshal(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	r.Data = data
	return nil
}

func failed(id string, e *ErrorResponse) Response {
	return Response{ID: id, Error: e, ProcessedAt: time.Now().UTC()}
}

// NewErrorResponse builds a handler level failure whose kind is its code.
func NewErrorResponse(id, code, message, details string) Response {
	_, transient := transientCodes[code]
	return failed(id, &ErrorResponse{
		Kind:      code,
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: transient,
	})
}

// NewDomainErrorResponse converts err into a failure with a message from l.
// Errors outside the domain taxonomy are reported as internal.
func NewDomainErrorResponse(id string, err error, l domain.Localizer) Response {
	de := domain.AsError(err)
	return failed(id, &ErrorResponse{
		Kind:      string(de.Kind),
		Code:      de.Code,
		Message:   l.ErrorMessage(de),
		Details:   err.Error(),
		Retryable: de.Retryable,
	})
}

// NewSuccessResponse marshals data into a successful response. A nil data
// leaves Data empty.
func NewSuccessResponse(id string, data any) (Response, error) {
	resp := Response{
		ID:          id,
		Success:     true,
		Metadata:    map[string]string{},
		ProcessedAt: time.Now().UTC(),
	}
	if data == nil {
		return resp, nil
	}
	if err := resp.Marshal(data); err != nil {
		return Response{}, err
	}
	return resp, nil
}

type localeKey struct{}

// WithLocale stores the message locale in ctx.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// LocalizerFrom returns the localizer for the locale in ctx, falling back
// to the default locale.
func LocalizerFrom(ctx context.Context) domain.Localizer {
	locale, _ := ctx.Value(localeKey{}).(string)
	return domain.NewLocalizer(locale)
}
