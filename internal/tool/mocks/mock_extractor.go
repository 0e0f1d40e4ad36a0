// Package mocks provides testify mocks of the tool runners
package mocks

import (
	"context"

	"streamrelay/internal/media"
	"streamrelay/internal/tool"

	"github.com/stretchr/testify/mock"
)

// MockExtractor is a mock implementation of tool.Extractor
type MockExtractor struct {
	mock.Mock
}

// FetchMetadata mocks the FetchMetadata method
func (m *MockExtractor) FetchMetadata(ctx context.Context, url string) (*media.Metadata, error) {
	args := m.Called(ctx, url)
	if md, ok := args.Get(0).(*media.Metadata); ok {
		return md, args.Error(1)
	}
	return nil, args.Error(1)
}

// FetchFlatPlaylist mocks the FetchFlatPlaylist method
func (m *MockExtractor) FetchFlatPlaylist(ctx context.Context, url string) ([]media.Entry, error) {
	args := m.Called(ctx, url)
	if entries, ok := args.Get(0).([]media.Entry); ok {
		return entries, args.Error(1)
	}
	return nil, args.Error(1)
}

// Search mocks the Search method
func (m *MockExtractor) Search(ctx context.Context, query string, limit int) ([]media.Entry, error) {
	args := m.Called(ctx, query, limit)
	if entries, ok := args.Get(0).([]media.Entry); ok {
		return entries, args.Error(1)
	}
	return nil, args.Error(1)
}

// ListSubtitles mocks the ListSubtitles method
func (m *MockExtractor) ListSubtitles(ctx context.Context, url string) ([]media.SubtitleTrack, error) {
	args := m.Called(ctx, url)
	if tracks, ok := args.Get(0).([]media.SubtitleTrack); ok {
		return tracks, args.Error(1)
	}
	return nil, args.Error(1)
}

// DownloadSubtitle mocks the DownloadSubtitle method
func (m *MockExtractor) DownloadSubtitle(ctx context.Context, url, lang, format, dir string) (string, error) {
	args := m.Called(ctx, url, lang, format, dir)
	return args.String(0), args.Error(1)
}

// ResolveFormat mocks the ResolveFormat method
func (m *MockExtractor) ResolveFormat(ctx context.Context, url, formatID string) (tool.FormatInfo, error) {
	args := m.Called(ctx, url, formatID)
	info, _ := args.Get(0).(tool.FormatInfo)
	return info, args.Error(1)
}

// StreamFormat mocks the StreamFormat method
func (m *MockExtractor) StreamFormat(ctx context.Context, url, formatID string) (tool.Stream, error) {
	args := m.Called(ctx, url, formatID)
	if s, ok := args.Get(0).(tool.Stream); ok {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}

// Version mocks the Version method
func (m *MockExtractor) Version(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}
