package handler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"streamrelay/internal/domain"
)

func TestNewRequest(t *testing.T) {
	req, err := NewRequest("search", map[string]string{"query": "lofi"})
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, "search", req.Type)
	assert.JSONEq(t, `{"query":"lofi"}`, string(req.Payload))
	assert.False(t, req.Timestamp.IsZero())

	var payload struct {
		Query string `json:"query"`
	}
	require.NoError(t, req.Unmarshal(&payload))
	assert.Equal(t, "lofi", payload.Query)
}

func TestRequest_Metadata(t *testing.T) {
	var req Request

	_, ok := req.GetMetadata("client_ip")
	assert.False(t, ok)

	req.SetMetadata("client_ip", "10.0.0.1")
	val, ok := req.GetMetadata("client_ip")
	assert.True(t, ok)
	assert.Equal(t, "10.0.0.1", val)
}

func TestRequest_Localizer(t *testing.T) {
	req := Request{Locale: "en"}
	assert.Equal(t, "Unknown operation.", req.Localizer().Message(domain.MsgUnknownOperation))

	req.Locale = "xx"
	assert.Equal(t, domain.DefaultLocale, req.Localizer().Locale())
}

func TestNewSuccessResponse(t *testing.T) {
	t.Run("with data", func(t *testing.T) {
		resp, err := NewSuccessResponse("req-1", map[string]int{"count": 2})
		require.NoError(t, err)

		assert.True(t, resp.Success)
		assert.Equal(t, "req-1", resp.ID)
		assert.JSONEq(t, `{"count":2}`, string(resp.Data))
		assert.Nil(t, resp.Error)
	})

	t.Run("without data", func(t *testing.T) {
		resp, err := NewSuccessResponse("req-1", nil)
		require.NoError(t, err)
		assert.Empty(t, resp.Data)
	})

	t.Run("unmarshalable data", func(t *testing.T) {
		_, err := NewSuccessResponse("req-1", make(chan int))
		assert.Error(t, err)
	})
}

func TestNewErrorResponse(t *testing.T) {
	tests := []struct {
		code      string
		retryable bool
	}{
		{CodeTimeout, true},
		{CodeRateLimited, true},
		{CodeUnavailable, true},
		{"SOMETHING_ELSE", false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			resp := NewErrorResponse("req-1", tt.code, "msg", "details")

			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Kind)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, tt.retryable, resp.Error.Retryable)
		})
	}
}

func TestNewDomainErrorResponse(t *testing.T) {
	l := domain.NewLocalizer("en")

	t.Run("domain error", func(t *testing.T) {
		err := domain.Validation(domain.MsgMissingParams, "url is required")
		resp := NewDomainErrorResponse("req-1", err, l)

		require.NotNil(t, resp.Error)
		assert.Equal(t, string(domain.KindValidation), resp.Error.Kind)
		assert.Equal(t, l.Message(domain.MsgMissingParams), resp.Error.Message)
		assert.Contains(t, resp.Error.Details, "url is required")
	})

	t.Run("foreign error becomes internal", func(t *testing.T) {
		resp := NewDomainErrorResponse("req-1", errors.New("boom"), l)

		require.NotNil(t, resp.Error)
		assert.Equal(t, string(domain.KindInternal), resp.Error.Kind)
		assert.Equal(t, l.Message(domain.MsgInternal), resp.Error.Message)
		assert.Equal(t, "boom", resp.Error.Details)
	})
}

func TestLocalizerFrom(t *testing.T) {
	assert.Equal(t, domain.DefaultLocale, LocalizerFrom(context.Background()).Locale())

	ctx := WithLocale(context.Background(), "en")
	assert.Equal(t, "en", LocalizerFrom(ctx).Locale())
}
