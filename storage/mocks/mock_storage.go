package mocks

import (
	"context"
	"io"

	"github.com/stretchr/testify/mock"

	"streamrelay/storage/types"
)

// MockObjectStorage is a mock implementation of types.ObjectStorage
type MockObjectStorage struct {
	mock.Mock
}

func (m *MockObjectStorage) Put(ctx context.Context, key string, r io.Reader, metadata types.ObjectMetadata) (int64, error) {
	args := m.Called(ctx, key, r, metadata)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockObjectStorage) Get(ctx context.Context, key string) (io.ReadCloser, *types.ObjectMetadata, error) {
	args := m.Called(ctx, key)
	var body io.ReadCloser
	if args.Get(0) != nil {
		body = args.Get(0).(io.ReadCloser)
	}
	var meta *types.ObjectMetadata
	if args.Get(1) != nil {
		meta = args.Get(1).(*types.ObjectMetadata)
	}
	return body, meta, args.Error(2)
}

func (m *MockObjectStorage) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockObjectStorage) Exists(ctx context.Context, key string) (bool, error) {
	args := m.Called(ctx, key)
	return args.Bool(0), args.Error(1)
}

func (m *MockObjectStorage) List(ctx context.Context, prefix string) ([]types.ObjectInfo, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.ObjectInfo), args.Error(1)
}
