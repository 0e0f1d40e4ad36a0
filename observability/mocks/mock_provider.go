package mocks

import (
	"github.com/stretchr/testify/mock"

	"streamrelay/observability/types"
)

type MockProvider struct {
	mock.Mock
}

var _ types.Provider = (*MockProvider)(nil)

// NewNopProvider hands every component a nop logger and nop metrics.
func NewNopProvider() *MockProvider {
	m := new(MockProvider)
	m.On("Logger", mock.Anything).Return(NewNopLogger()).Maybe()
	m.On("Metrics", mock.Anything).Return(NewNopMetrics()).Maybe()
	m.On("Close").Return(nil).Maybe()
	return m
}

func (m *MockProvider) Logger(component string) types.Logger {
	l, _ := m.Called(component).Get(0).(types.Logger)
	return l
}

func (m *MockProvider) Metrics(component string) types.Metrics {
	mt, _ := m.Called(component).Get(0).(types.Metrics)
	return mt
}

func (m *MockProvider) Close() error {
	return m.Called().Error(0)
}
