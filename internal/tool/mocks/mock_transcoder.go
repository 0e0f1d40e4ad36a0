package mocks

import (
	"context"
	"io"

	"streamrelay/internal/tool"

	"github.com/stretchr/testify/mock"
)

// MockTranscoder is a mock implementation of tool.Transcoder
type MockTranscoder struct {
	mock.Mock
}

// ConvertAudio mocks the ConvertAudio method
func (m *MockTranscoder) ConvertAudio(ctx context.Context, in io.Reader, format string, bitrateKbps int) (tool.Stream, error) {
	args := m.Called(ctx, in, format, bitrateKbps)
	if s, ok := args.Get(0).(tool.Stream); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

// Trim mocks the Trim method
func (m *MockTranscoder) Trim(ctx context.Context, in io.Reader, clip tool.ClipRange, audioOnly bool) (tool.Stream, error) {
	args := m.Called(ctx, in, clip, audioOnly)
	if s, ok := args.Get(0).(tool.Stream); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

// Version mocks the Version method
func (m *MockTranscoder) Version(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
