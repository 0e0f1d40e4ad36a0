package storage

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"streamrelay/config"
	mockObservability "streamrelay/observability/mocks"
	mockStorage "streamrelay/storage/mocks"
)

func TestGetProvider_ReturnsOneInstance(t *testing.T) {
	instance = nil
	once = sync.Once{}

	assert.Same(t, GetProvider(), GetProvider())
}

func TestProvider_Initialize(t *testing.T) {
	cases := map[string]struct {
		storage config.StorageConfig
		wantErr string
	}{
		"filesystem backend": {
			storage: config.StorageConfig{Provider: "fs", BasePath: t.TempDir()},
		},
		"no backend configured": {
			wantErr: "storage is not configured",
		},
		"unknown backend": {
			storage: config.StorageConfig{Provider: "ftp"},
			wantErr: "unsupported storage provider: ftp",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			p := &Provider{}
			err := p.Initialize(&config.Config{Storage: tc.storage},
				mockObservability.NewNopLogger(), mockObservability.NewNopMetrics())

			if tc.wantErr != "" {
				assert.ErrorContains(t, err, tc.wantErr)
				assert.False(t, p.IsInitialized())
				return
			}

			require.NoError(t, err)
			assert.Equal(t, "fs", p.Name())
			store, err := p.GetStorage()
			require.NoError(t, err)
			assert.NotNil(t, store)
		})
	}
}

func TestProvider_InitializeIsIdempotent(t *testing.T) {
	p := &Provider{}
	store := &mockStorage.MockObjectStorage{}
	p.Set(store)

	// an unusable config is never looked at once a store exists
	err := p.Initialize(&config.Config{Storage: config.StorageConfig{Provider: "ftp"}},
		mockObservability.NewNopLogger(), mockObservability.NewNopMetrics())

	require.NoError(t, err)
	assert.Same(t, store, p.MustGetStorage())
}

func TestProvider_Uninitialized(t *testing.T) {
	p := &Provider{}

	_, err := p.GetStorage()
	assert.ErrorIs(t, err, errNotInitialized)
	assert.Panics(t, func() { p.MustGetStorage() })
}

func TestProvider_SetAndReset(t *testing.T) {
	p := &Provider{}
	store := &mockStorage.MockObjectStorage{}

	p.Set(store)
	assert.Same(t, store, p.MustGetStorage())
	assert.Equal(t, "custom", p.Name())

	p.Reset()
	assert.False(t, p.IsInitialized())
	assert.Empty(t, p.Name())
}

func TestProvider_HealthCheckFailure(t *testing.T) {
	store := &mockStorage.MockObjectStorage{}
	store.On("Exists", mock.Anything, healthKey).Return(false, errors.New("unreachable"))

	assert.Error(t, (&Provider{}).testConnection(store))
	store.AssertExpectations(t)
}
