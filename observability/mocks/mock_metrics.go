package mocks

import (
	"github.com/stretchr/testify/mock"

	"streamrelay/observability/types"
)

type MockMetrics struct {
	mock.Mock
}

var _ types.Metrics = (*MockMetrics)(nil)

// NewNopMetrics accepts every call.
func NewNopMetrics() *MockMetrics {
	m := new(MockMetrics)
	for _, method := range []string{"RecordSuccess", "StartOperation", "EndOperation"} {
		m.On(method, mock.Anything).Maybe()
	}
	for _, method := range []string{"RecordError", "RecordDuration", "RecordBytes"} {
		m.On(method, mock.Anything, mock.Anything).Maybe()
	}
	return m
}

func (m *MockMetrics) RecordSuccess(operationType string)          { m.Called(operationType) }
func (m *MockMetrics) RecordError(operationType, errorType string) { m.Called(operationType, errorType) }
func (m *MockMetrics) RecordDuration(operation string, d float64)  { m.Called(operation, d) }
func (m *MockMetrics) RecordBytes(kind string, bytes int64)        { m.Called(kind, bytes) }
func (m *MockMetrics) StartOperation(operation string)             { m.Called(operation) }
func (m *MockMetrics) EndOperation(operation string)               { m.Called(operation) }
