// Package mocks provides testify mocks of the handler interfaces.
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"streamrelay/handler"
)

type MockWorker struct {
	mock.Mock
}

var _ handler.Worker = (*MockWorker)(nil)

func (m *MockWorker) Name() string {
	return m.Called().String(0)
}

func (m *MockWorker) Process(ctx context.Context, req handler.Request) (handler.Response, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(handler.Response), args.Error(1)
}

func (m *MockWorker) Health(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// ExpectProcess answers requests for one operation.
func (m *MockWorker) ExpectProcess(operation string, resp handler.Response, err error) *mock.Call {
	isOperation := mock.MatchedBy(func(req handler.Request) bool { return req.Type == operation })
	return m.On("Process", mock.Anything, isOperation).Return(resp, err)
}

// ExpectProcessAny answers every request.
func (m *MockWorker) ExpectProcessAny(resp handler.Response, err error) *mock.Call {
	return m.On("Process", mock.Anything, mock.Anything).Return(resp, err)
}

// MockStreamWorker adds fixed binary routes and a mocked health report.
type MockStreamWorker struct {
	MockWorker
	Routes map[string]handler.StreamFunc
}

var (
	_ handler.Streamer       = (*MockStreamWorker)(nil)
	_ handler.HealthReporter = (*MockStreamWorker)(nil)
)

func (m *MockStreamWorker) Streams() map[string]handler.StreamFunc {
	return m.Routes
}

func (m *MockStreamWorker) HealthReport(ctx context.Context) (map[string]string, error) {
	args := m.Called(ctx)
	report, _ := args.Get(0).(map[string]string)
	return report, args.Error(1)
}
