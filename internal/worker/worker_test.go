package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"streamrelay/config"
	"streamrelay/handler"
	"streamrelay/internal/batch"
	"streamrelay/internal/domain"
	"streamrelay/internal/media"
	"streamrelay/internal/progress"
	"streamrelay/internal/relay"
	"streamrelay/internal/transcode"
	toolmocks "streamrelay/internal/tool/mocks"
	mockObservability "streamrelay/observability/mocks"
	"streamrelay/storage/adapters/fs"
	storagetypes "streamrelay/storage/types"
)

type relayFunc func(ctx context.Context, w http.ResponseWriter, req relay.Request) (relay.Result, error)

func (f relayFunc) Serve(ctx context.Context, w http.ResponseWriter, req relay.Request) (relay.Result, error) {
	return f(ctx, w, req)
}

type stubJobs struct {
	audio transcode.AudioRequest
	clip  transcode.ClipRequest
	err   error
}

func (s *stubJobs) ConvertAudio(req transcode.AudioRequest, l domain.Localizer) (string, error) {
	s.audio = req
	if s.err != nil {
		return "", s.err
	}
	return "job-audio", nil
}

func (s *stubJobs) TrimClip(req transcode.ClipRequest, l domain.Localizer) (string, error) {
	s.clip = req
	if s.err != nil {
		return "", s.err
	}
	return "job-clip", nil
}

type fixture struct {
	worker    *MediaWorker
	extractor *toolmocks.MockExtractor
	store     *progress.MemoryStore
	storage   *fs.Storage
	jobs      *stubJobs
	relayed   []relay.Request
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := mockObservability.NewNopLogger()
	metrics := mockObservability.NewNopMetrics()

	f := &fixture{
		extractor: &toolmocks.MockExtractor{},
		store:     progress.NewMemoryStore(config.DefaultProgressConfig(), logger),
		jobs:      &stubJobs{},
	}

	var err error
	f.storage, err = fs.New(&config.StorageConfig{Provider: "fs", BasePath: t.TempDir()}, logger, metrics)
	require.NoError(t, err)

	orchestrator := batch.NewOrchestrator(f.store, batch.UnitFunc(func(ctx context.Context, item batch.Item) error {
		return nil
	}), config.BatchConfig{MaxItems: 5}, logger, metrics)
	t.Cleanup(func() { orchestrator.Shutdown(context.Background()) })

	f.worker = NewMediaWorker(Dependencies{
		Extractor: f.extractor,
		Store:     f.store,
		Relay: relayFunc(func(ctx context.Context, w http.ResponseWriter, req relay.Request) (relay.Result, error) {
			f.relayed = append(f.relayed, req)
			w.Write([]byte("media"))
			return relay.Result{DownloadID: "dl", Bytes: 5, Committed: true}, nil
		}),
		Batches: orchestrator,
		Jobs:    f.jobs,
		Storage: f.storage,
	}, Limits{Recent: 20, SearchLimit: 10, MaxSearch: 50}, logger, metrics)

	return f
}

func (f *fixture) process(t *testing.T, op string, payload string) handler.Response {
	t.Helper()
	resp, err := f.worker.Process(context.Background(), handler.Request{
		ID:      "req-1",
		Type:    op,
		Payload: json.RawMessage(payload),
		Locale:  "en",
	})
	require.NoError(t, err)
	return resp
}

func requireKind(t *testing.T, resp handler.Response, kind domain.Kind) {
	t.Helper()
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(kind), resp.Error.Kind)
}

func strPtr(s string) *string { return &s }

func TestMediaWorker_Name(t *testing.T) {
	assert.Equal(t, "media", newFixture(t).worker.Name())
}

func TestMediaWorker_GetVideoInfo(t *testing.T) {
	t.Run("classifies and ranks streams", func(t *testing.T) {
		f := newFixture(t)
		dur := 125.0
		f.extractor.On("FetchMetadata", mock.Anything, "https://v/1").Return(&media.Metadata{
			Title:    strPtr("Clip"),
			Duration: &dur,
			Formats: []map[string]any{
				{"format_id": "18", "format_note": "360p", "vcodec": "avc1", "acodec": "mp4a", "ext": "mp4", "filesize": float64(2 * 1024 * 1024)},
				{"format_id": "22", "format_note": "720p", "vcodec": "avc1", "acodec": "mp4a", "ext": "mp4"},
				{"format_id": "137", "format_note": "1080p", "vcodec": "avc1", "acodec": "none", "fps": 30.0},
				{"format_id": "140", "format_note": "medium", "vcodec": "none", "acodec": "mp4a", "abr": 128.0},
				{"vcodec": "avc1", "acodec": "mp4a"},
			},
		}, nil)

		resp := f.process(t, "get_video_info", `{"url":" https://v/1 "}`)
		require.True(t, resp.Success)

		var view videoInfoView
		require.NoError(t, json.Unmarshal(resp.Data, &view))

		assert.Equal(t, "Clip", view.VideoInfo.Title)
		assert.Equal(t, "2:05", view.VideoInfo.Duration)
		require.Len(t, view.Streams.VideoAudio, 2)
		assert.Equal(t, "22", view.Streams.VideoAudio[0].FormatID)
		assert.Equal(t, "unknown", view.Streams.VideoAudio[0].FileSize)
		assert.Equal(t, "2.00 MB", view.Streams.VideoAudio[1].FileSize)
		require.Len(t, view.Streams.VideoOnly, 1)
		assert.Equal(t, "137", view.Streams.VideoOnly[0].FormatID)
		require.Len(t, view.Streams.AudioOnly, 1)
		assert.Equal(t, "140", view.Streams.AudioOnly[0].FormatID)
	})

	t.Run("empty tiers are arrays", func(t *testing.T) {
		f := newFixture(t)
		f.extractor.On("FetchMetadata", mock.Anything, "https://v/2").Return(&media.Metadata{}, nil)

		resp := f.process(t, "get_video_info", `{"url":"https://v/2"}`)
		require.True(t, resp.Success)
		assert.Contains(t, string(resp.Data), `"video_audio":[]`)
		assert.Contains(t, string(resp.Data), `"title":"Untitled"`)
	})

	t.Run("missing url", func(t *testing.T) {
		resp := newFixture(t).process(t, "get_video_info", `{}`)
		requireKind(t, resp, domain.KindValidation)
		assert.Equal(t, domain.NewLocalizer("en").Message(domain.MsgInvalidURL), resp.Error.Message)
	})

	t.Run("classified extraction failure", func(t *testing.T) {
		f := newFixture(t)
		f.extractor.On("FetchMetadata", mock.Anything, "https://v/3").
			Return(nil, domain.ClassifyExtraction("ERROR: Private video", errors.New("exit status 1")))

		resp := f.process(t, "get_video_info", `{"url":"https://v/3"}`)
		requireKind(t, resp, domain.KindExtraction)
		assert.Equal(t, domain.CodePrivateVideo, resp.Error.Code)
	})

	t.Run("malformed payload", func(t *testing.T) {
		resp := newFixture(t).process(t, "get_video_info", `["not","an","object"]`)
		requireKind(t, resp, domain.KindValidation)
	})

	for _, bad := range []string{"--batch-file=/etc/passwd", "-a/etc/passwd", "file:///etc/passwd", "youtube.com/watch?v=x"} {
		t.Run("rejects "+bad, func(t *testing.T) {
			f := newFixture(t)
			resp := f.process(t, "get_video_info", `{"url":"`+bad+`"}`)
			requireKind(t, resp, domain.KindValidation)
			assert.Equal(t, domain.NewLocalizer("en").Message(domain.MsgInvalidURL), resp.Error.Message)
			f.extractor.AssertNotCalled(t, "FetchMetadata", mock.Anything, mock.Anything)
		})
	}
}

func TestMediaWorker_PlaylistAndSearch(t *testing.T) {
	entries := []media.Entry{{Title: "One", URL: "https://v/1"}, {Title: "Two", URL: "https://v/2"}}

	t.Run("playlist", func(t *testing.T) {
		f := newFixture(t)
		f.extractor.On("FetchFlatPlaylist", mock.Anything, "https://list").Return(entries, nil)

		resp := f.process(t, "playlist_info", `{"url":"https://list"}`)
		require.True(t, resp.Success)

		var view playlistView
		require.NoError(t, json.Unmarshal(resp.Data, &view))
		assert.Equal(t, 2, view.Count)
		assert.Equal(t, entries, view.Videos)
	})

	t.Run("search limits", func(t *testing.T) {
		tests := []struct {
			payload string
			limit   int
		}{
			{`{"query":"lofi"}`, 10},
			{`{"query":"lofi","limit":5}`, 5},
			{`{"query":"lofi","limit":500}`, 50},
			{`{"query":"lofi","limit":-1}`, 10},
		}
		for _, tt := range tests {
			f := newFixture(t)
			f.extractor.On("Search", mock.Anything, "lofi", tt.limit).Return(entries, nil).Once()

			resp := f.process(t, "search", tt.payload)
			assert.True(t, resp.Success, tt.payload)
			f.extractor.AssertExpectations(t)
		}
	})

	t.Run("empty query", func(t *testing.T) {
		resp := newFixture(t).process(t, "search", `{"query":"   "}`)
		requireKind(t, resp, domain.KindValidation)
		assert.Equal(t, domain.NewLocalizer("en").Message(domain.MsgEmptyQuery), resp.Error.Message)
	})

	t.Run("no results is an empty list", func(t *testing.T) {
		f := newFixture(t)
		f.extractor.On("Search", mock.Anything, "nothing", 10).Return(nil, nil)

		resp := f.process(t, "search", `{"query":"nothing"}`)
		require.True(t, resp.Success)
		assert.JSONEq(t, `{"results":[]}`, string(resp.Data))
	})
}

func TestMediaWorker_Subtitles(t *testing.T) {
	t.Run("listing", func(t *testing.T) {
		f := newFixture(t)
		tracks := []media.SubtitleTrack{{Language: "en", Name: "English", Formats: []string{"vtt"}}}
		f.extractor.On("ListSubtitles", mock.Anything, "https://v/1").Return(tracks, nil)

		resp := f.process(t, "subtitles", `{"url":"https://v/1"}`)
		require.True(t, resp.Success)

		var view subtitlesView
		require.NoError(t, json.Unmarshal(resp.Data, &view))
		assert.Equal(t, tracks, view.Subtitles)
	})

	t.Run("none", func(t *testing.T) {
		f := newFixture(t)
		f.extractor.On("ListSubtitles", mock.Anything, "https://v/1").Return(nil, nil)

		resp := f.process(t, "subtitles", `{"url":"https://v/1"}`)
		requireKind(t, resp, domain.KindNotFound)
	})
}

func TestMediaWorker_Batch(t *testing.T) {
	f := newFixture(t)

	resp := f.process(t, "batch_download", `{"urls":["https://v/1"," ","https://v/2"]}`)
	require.True(t, resp.Success)

	var view batchView
	require.NoError(t, json.Unmarshal(resp.Data, &view))
	assert.NotEmpty(t, view.BatchID)
	assert.Equal(t, 2, view.Total)

	assert.Eventually(t, func() bool {
		return f.store.Get(view.BatchID).Status == progress.StatusCompleted
	}, time.Second, 10*time.Millisecond)

	t.Run("no urls", func(t *testing.T) {
		resp := f.process(t, "batch_download", `{"urls":[]}`)
		requireKind(t, resp, domain.KindValidation)
	})

	t.Run("too many urls", func(t *testing.T) {
		resp := f.process(t, "batch_download", `{"urls":["https://v/1","https://v/2","https://v/3","https://v/4","https://v/5","https://v/6"]}`)
		requireKind(t, resp, domain.KindValidation)
		assert.Equal(t, domain.NewLocalizer("en").Message(domain.MsgTooManyItems), resp.Error.Message)
	})
}

func TestMediaWorker_ProgressAndHistory(t *testing.T) {
	f := newFixture(t)

	t.Run("unknown id", func(t *testing.T) {
		resp := f.process(t, "progress", `{"id":"nope"}`)
		require.True(t, resp.Success)

		var rec progress.Record
		require.NoError(t, json.Unmarshal(resp.Data, &rec))
		assert.Equal(t, progress.StatusNotFound, rec.Status)
		assert.Equal(t, 0, rec.Percent)
	})

	t.Run("known id", func(t *testing.T) {
		f.store.Update("dl-1", progress.StatusDownloading, 40, "Downloading...")

		resp := f.process(t, "progress", `{"id":"dl-1"}`)
		var rec progress.Record
		require.NoError(t, json.Unmarshal(resp.Data, &rec))
		assert.Equal(t, progress.StatusDownloading, rec.Status)
		assert.Equal(t, 40, rec.Percent)
	})

	t.Run("missing id", func(t *testing.T) {
		resp := f.process(t, "progress", `{}`)
		requireKind(t, resp, domain.KindValidation)
	})

	t.Run("history", func(t *testing.T) {
		resp := f.process(t, "history", ``)
		require.True(t, resp.Success)
		assert.JSONEq(t, `[]`, string(resp.Data))

		f.store.Append(progress.HistoryEntry{ID: "a", Title: "A"})
		f.store.Append(progress.HistoryEntry{ID: "b", Title: "B"})

		resp = f.process(t, "history", `{}`)
		var entries []progress.HistoryEntry
		require.NoError(t, json.Unmarshal(resp.Data, &entries))
		require.Len(t, entries, 2)
		assert.Equal(t, "b", entries[1].ID)
	})

	t.Run("clear history", func(t *testing.T) {
		resp := f.process(t, "clear_history", `{}`)
		require.True(t, resp.Success)
		assert.JSONEq(t, `{"cleared":true}`, string(resp.Data))
		assert.Empty(t, f.store.Recent(20))
	})
}

func TestMediaWorker_Jobs(t *testing.T) {
	t.Run("convert audio", func(t *testing.T) {
		f := newFixture(t)

		resp := f.process(t, "convert_audio", `{"url":"https://v/1","format":"opus","bitrate":128}`)
		require.True(t, resp.Success)
		assert.JSONEq(t, `{"job_id":"job-audio"}`, string(resp.Data))
		assert.Equal(t, transcode.AudioRequest{URL: "https://v/1", Format: "opus", Bitrate: 128}, f.jobs.audio)
	})

	t.Run("trim clip", func(t *testing.T) {
		f := newFixture(t)

		resp := f.process(t, "trim_clip", `{"url":"https://v/1","itag":"22","start":"0:10","end":"0:20"}`)
		require.True(t, resp.Success)
		assert.JSONEq(t, `{"job_id":"job-clip"}`, string(resp.Data))
		assert.Equal(t, "22", f.jobs.clip.FormatID)
		assert.Equal(t, "0:20", f.jobs.clip.End)
	})

	t.Run("rejected job", func(t *testing.T) {
		f := newFixture(t)
		f.jobs.err = domain.Validation(domain.MsgUnsupportedFormat, "flac")

		resp := f.process(t, "convert_audio", `{"url":"https://v/1","format":"flac"}`)
		requireKind(t, resp, domain.KindValidation)
	})
}

func TestMediaWorker_UnknownOperation(t *testing.T) {
	resp := newFixture(t).process(t, "explode", `{}`)
	requireKind(t, resp, domain.KindValidation)
	assert.Equal(t, domain.NewLocalizer("en").Message(domain.MsgUnknownOperation), resp.Error.Message)
}

func TestMediaWorker_Download(t *testing.T) {
	f := newFixture(t)
	ctx := handler.WithLocale(context.Background(), "en")

	req := httptest.NewRequest(http.MethodGet, "/download?url=https://v/1&itag=22&title=Clip&is_audio=true&download_id=dl-9", nil)
	rec := httptest.NewRecorder()

	require.NoError(t, f.worker.Streams()["GET /download"](ctx, rec, req))

	require.Len(t, f.relayed, 1)
	got := f.relayed[0]
	assert.Equal(t, "dl-9", got.DownloadID)
	assert.Equal(t, "https://v/1", got.URL)
	assert.Equal(t, "22", got.FormatID)
	assert.Equal(t, "Clip", got.Title)
	assert.True(t, got.Audio)
	assert.Equal(t, "en", got.Localizer.Locale())
	assert.Equal(t, "media", rec.Body.String())
}

// subtitleExtractor writes a subtitle file where the extractor would.
type subtitleExtractor struct {
	*toolmocks.MockExtractor
	content string
}

func (s *subtitleExtractor) DownloadSubtitle(ctx context.Context, url, lang, format, dir string) (string, error) {
	if s.content == "" {
		return "", domain.NotFound(domain.MsgSubtitlesNotFound, "no file")
	}
	path := filepath.Join(dir, "Clip."+lang+"."+format)
	return path, os.WriteFile(path, []byte(s.content), 0o644)
}

func TestMediaWorker_DownloadSubtitle(t *testing.T) {
	route := func(f *fixture) handler.StreamFunc { return f.worker.Streams()["GET /subtitles/download"] }

	t.Run("serves file", func(t *testing.T) {
		f := newFixture(t)
		f.worker.deps.Extractor = &subtitleExtractor{MockExtractor: f.extractor, content: "WEBVTT\n"}

		rec := httptest.NewRecorder()
		err := route(f)(context.Background(), rec, httptest.NewRequest(http.MethodGet, "/subtitles/download?url=https://v/1&lang=en", nil))

		require.NoError(t, err)
		assert.Equal(t, "WEBVTT\n", rec.Body.String())
		assert.Equal(t, "text/vtt", rec.Header().Get("Content-Type"))
		assert.Equal(t, "attachment; filename*=UTF-8''Clip.en.vtt", rec.Header().Get("Content-Disposition"))
	})

	t.Run("no file written", func(t *testing.T) {
		f := newFixture(t)
		f.worker.deps.Extractor = &subtitleExtractor{MockExtractor: f.extractor}

		err := route(f)(context.Background(), httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/subtitles/download?url=https://v/1&lang=fr", nil))
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("missing params", func(t *testing.T) {
		f := newFixture(t)
		err := route(f)(context.Background(), httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/subtitles/download?url=https://v/1", nil))
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("option-like url", func(t *testing.T) {
		f := newFixture(t)
		err := route(f)(context.Background(), httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/subtitles/download?url=--exec%3Did&lang=en", nil))
		require.ErrorIs(t, err, domain.ErrValidation)
		assert.Equal(t, domain.MsgInvalidURL, domain.AsError(err).MessageKey)
		f.extractor.AssertNotCalled(t, "DownloadSubtitle", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestMediaWorker_Artifact(t *testing.T) {
	f := newFixture(t)
	route := f.worker.Streams()["GET /artifacts/{key...}"]

	_, err := f.storage.Put(context.Background(), "audio/job.mp3", strings.NewReader("ID3"), storagetypes.ObjectMetadata{})
	require.NoError(t, err)

	get := func(key string) (*httptest.ResponseRecorder, error) {
		req := httptest.NewRequest(http.MethodGet, "/artifacts/"+key, nil)
		req.SetPathValue("key", key)
		rec := httptest.NewRecorder()
		return rec, route(context.Background(), rec, req)
	}

	t.Run("stored artifact", func(t *testing.T) {
		rec, err := get("audio/job.mp3")
		require.NoError(t, err)
		assert.Equal(t, "ID3", rec.Body.String())
		assert.Equal(t, "audio/mpeg", rec.Header().Get("Content-Type"))
		assert.Equal(t, "3", rec.Header().Get("Content-Length"))
		assert.Equal(t, "attachment; filename*=UTF-8''job.mp3", rec.Header().Get("Content-Disposition"))
	})

	t.Run("missing artifact", func(t *testing.T) {
		_, err := get("audio/missing.mp3")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("escaping key", func(t *testing.T) {
		_, err := get("../secret")
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestMediaWorker_HealthReport(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		f := newFixture(t)
		transcoder := &toolmocks.MockTranscoder{}
		f.worker.deps.Transcoder = transcoder
		f.extractor.On("Version", mock.Anything).Return("2025.01.15", nil)
		transcoder.On("Version", mock.Anything).Return("", errors.New("not installed"))

		report, err := f.worker.HealthReport(context.Background())

		require.NoError(t, err)
		assert.Equal(t, "2025.01.15", report["extractor"])
		assert.Equal(t, "unavailable", report["transcoder"])
		assert.Equal(t, "ok", report["storage"])
		assert.NoError(t, f.worker.Health(context.Background()))
	})

	t.Run("extractor missing", func(t *testing.T) {
		f := newFixture(t)
		f.extractor.On("Version", mock.Anything).Return("", errors.New("executable file not found"))

		report, err := f.worker.HealthReport(context.Background())

		assert.Error(t, err)
		assert.Equal(t, "unavailable", report["extractor"])
		assert.Error(t, f.worker.Health(context.Background()))
	})
}
