// Package mocks provides testify mocks of the observability interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"streamrelay/observability/types"
)

type MockLogger struct {
	mock.Mock
}

var _ types.Logger = (*MockLogger)(nil)

// NewNopLogger accepts every call and returns itself from WithFields.
func NewNopLogger() *MockLogger {
	m := new(MockLogger)
	for _, level := range []string{"Debug", "Info", "Warn"} {
		m.On(level, mock.Anything, mock.Anything, mock.Anything).Maybe()
	}
	m.On("Error", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Maybe()
	m.On("WithFields", mock.Anything).Return(m).Maybe()
	return m
}

func (m *MockLogger) Debug(ctx context.Context, msg string, fields types.Fields) {
	m.Called(ctx, msg, fields)
}

func (m *MockLogger) Info(ctx context.Context, msg string, fields types.Fields) {
	m.Called(ctx, msg, fields)
}

func (m *MockLogger) Warn(ctx context.Context, msg string, fields types.Fields) {
	m.Called(ctx, msg, fields)
}

func (m *MockLogger) Error(ctx context.Context, msg string, err error, fields types.Fields) {
	m.Called(ctx, msg, err, fields)
}

// WithFields returns the configured logger, or m itself.
func (m *MockLogger) WithFields(fields types.Fields) types.Logger {
	if l, ok := m.Called(fields).Get(0).(types.Logger); ok {
		return l
	}
	return m
}
