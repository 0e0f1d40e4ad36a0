package relay

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"streamrelay/config"
	"streamrelay/internal/domain"
	"streamrelay/internal/progress"
	"streamrelay/internal/tool"
	toolmocks "streamrelay/internal/tool/mocks"
	mockObservability "streamrelay/observability/mocks"
)

type update struct {
	status  progress.Status
	percent int
}

// recordingStore keeps every update so tests can check the state machine.
type recordingStore struct {
	*progress.MemoryStore
	mu      sync.Mutex
	updates []update
}

func (s *recordingStore) Update(id string, status progress.Status, percent int, message string) {
	s.mu.Lock()
	s.updates = append(s.updates, update{status, percent})
	s.mu.Unlock()
	s.MemoryStore.Update(id, status, percent, message)
}

func newStore() *recordingStore {
	return &recordingStore{
		MemoryStore: progress.NewMemoryStore(config.ProgressConfig{
			TTL:          time.Hour,
			HistoryLimit: 100,
		}, mockObservability.NewNopLogger()),
	}
}

func newRelay(ext *toolmocks.MockExtractor, store progress.Store, cfg config.RelayConfig) *Relay {
	return New(ext, store, cfg, mockObservability.NewNopLogger(), mockObservability.NewNopMetrics())
}

func size(n int64) *int64 { return &n }

func baseRequest() Request {
	return Request{
		DownloadID: "dl-1",
		URL:        "https://example.com/watch?v=abc",
		FormatID:   "22",
		Title:      `My: "Video"?`,
		Localizer:  domain.NewLocalizer("en"),
	}
}

func TestRelay_Success(t *testing.T) {
	ext := &toolmocks.MockExtractor{}
	store := newStore()
	r := newRelay(ext, store, config.RelayConfig{ChunkSize: 4, ProgressEvery: 1})

	payload := "0123456789abcdef"
	ext.On("ResolveFormat", mock.Anything, "https://example.com/watch?v=abc", "22").
		Return(tool.FormatInfo{Ext: "mp4", Size: size(int64(len(payload)))}, nil)
	stream := toolmocks.NewFakeStream(payload)
	ext.On("StreamFormat", mock.Anything, "https://example.com/watch?v=abc", "22").Return(stream, nil)

	rec := httptest.NewRecorder()
	res, err := r.Serve(context.Background(), rec, baseRequest())

	require.NoError(t, err)
	assert.True(t, res.Committed)
	assert.Equal(t, int64(16), res.Bytes)
	assert.Equal(t, "My Video.mp4", res.FileName)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, payload, rec.Body.String())
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "attachment; filename*=UTF-8''My%20Video.mp4", rec.Header().Get("Content-Disposition"))

	final := store.Get("dl-1")
	assert.Equal(t, progress.StatusCompleted, final.Status)
	assert.Equal(t, 100, final.Percent)

	history := store.Recent(20)
	require.Len(t, history, 1)
	assert.Equal(t, "dl-1", history[0].ID)
	assert.Equal(t, "22", history[0].FormatID)
	assert.Equal(t, "My Video.mp4", history[0].FileName)
	assert.Equal(t, int64(16), history[0].Size)

	assert.True(t, stream.Waited())
	assert.False(t, stream.Killed())

	// downloading 0, then 25/50/75 from the byte ratio, then 99 cap, then completed
	assert.Equal(t, []update{
		{progress.StatusDownloading, 0},
		{progress.StatusDownloading, 25},
		{progress.StatusDownloading, 50},
		{progress.StatusDownloading, 75},
		{progress.StatusDownloading, 99},
		{progress.StatusCompleted, 100},
	}, store.updates)
}

func TestRelay_AudioForcesExtension(t *testing.T) {
	ext := &toolmocks.MockExtractor{}
	store := newStore()
	r := newRelay(ext, store, config.RelayConfig{})

	ext.On("ResolveFormat", mock.Anything, mock.Anything, "140").Return(tool.FormatInfo{Ext: "m4a"}, nil)
	ext.On("StreamFormat", mock.Anything, mock.Anything, "140").Return(toolmocks.NewFakeStream("aac"), nil)

	req := baseRequest()
	req.FormatID = "140"
	req.Title = "Song"
	req.Audio = true

	rec := httptest.NewRecorder()
	res, err := r.Serve(context.Background(), rec, req)

	require.NoError(t, err)
	assert.Equal(t, "Song.mp3", res.FileName)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "Song.mp3")
}

func TestRelay_DefaultsTitleAndID(t *testing.T) {
	ext := &toolmocks.MockExtractor{}
	store := newStore()
	r := newRelay(ext, store, config.RelayConfig{DefaultTitle: "video"})

	ext.On("ResolveFormat", mock.Anything, mock.Anything, mock.Anything).Return(tool.FormatInfo{Ext: "webm"}, nil)
	ext.On("StreamFormat", mock.Anything, mock.Anything, mock.Anything).Return(toolmocks.NewFakeStream("x"), nil)

	req := baseRequest()
	req.DownloadID = ""
	req.Title = ""

	res, err := r.Serve(context.Background(), httptest.NewRecorder(), req)

	require.NoError(t, err)
	assert.NotEmpty(t, res.DownloadID)
	assert.Equal(t, "video.webm", res.FileName)
	assert.Equal(t, progress.StatusCompleted, store.Get(res.DownloadID).Status)
}

func TestRelay_MissingParams(t *testing.T) {
	ext := &toolmocks.MockExtractor{}
	store := newStore()
	r := newRelay(ext, store, config.RelayConfig{})

	req := baseRequest()
	req.FormatID = ""

	_, err := r.Serve(context.Background(), httptest.NewRecorder(), req)

	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, progress.StatusNotFound, store.Get("dl-1").Status)
	ext.AssertNotCalled(t, "ResolveFormat", mock.Anything, mock.Anything, mock.Anything)
}

func TestRelay_RejectsNonHTTPURL(t *testing.T) {
	for _, bad := range []string{"--exec=touch /tmp/x", "-a/etc/passwd", "file:///etc/passwd", "ftp://host/f"} {
		t.Run(bad, func(t *testing.T) {
			ext := &toolmocks.MockExtractor{}
			store := newStore()
			r := newRelay(ext, store, config.RelayConfig{})

			req := baseRequest()
			req.URL = bad

			_, err := r.Serve(context.Background(), httptest.NewRecorder(), req)

			require.ErrorIs(t, err, domain.ErrValidation)
			assert.Equal(t, domain.MsgInvalidURL, domain.AsError(err).MessageKey)
			assert.Equal(t, progress.StatusNotFound, store.Get("dl-1").Status)
			ext.AssertNotCalled(t, "ResolveFormat", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestRelay_ActiveIDConflict(t *testing.T) {
	ext := &toolmocks.MockExtractor{}
	store := newStore()
	r := newRelay(ext, store, config.RelayConfig{})
	require.NoError(t, store.Claim("dl-1", "busy"))

	_, err := r.Serve(context.Background(), httptest.NewRecorder(), baseRequest())

	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, progress.StatusStarting, store.Get("dl-1").Status)
}

func TestRelay_ResolveFailureBeforeCommit(t *testing.T) {
	ext := &toolmocks.MockExtractor{}
	store := newStore()
	r := newRelay(ext, store, config.RelayConfig{})

	ext.On("ResolveFormat", mock.Anything, mock.Anything, mock.Anything).
		Return(tool.FormatInfo{}, domain.ClassifyExtraction("ERROR: Video unavailable", errors.New("exit status 1")))

	rec := httptest.NewRecorder()
	res, err := r.Serve(context.Background(), rec, baseRequest())

	assert.ErrorIs(t, err, domain.ErrVideoUnavailable)
	assert.False(t, res.Committed)
	assert.Empty(t, rec.Body.String())

	final := store.Get("dl-1")
	assert.Equal(t, progress.StatusError, final.Status)
	assert.Equal(t, domain.NewLocalizer("en").Message(domain.MsgVideoUnavailable), final.Message)
	assert.Empty(t, store.Recent(20))
	ext.AssertNotCalled(t, "StreamFormat", mock.Anything, mock.Anything, mock.Anything)
}

func TestRelay_StreamFailsMidway(t *testing.T) {
	ext := &toolmocks.MockExtractor{}
	store := newStore()
	r := newRelay(ext, store, config.RelayConfig{ChunkSize: 2})

	stream := toolmocks.NewFakeStream("abcd")
	stream.ReadErr = errors.New("pipe broke")
	ext.On("ResolveFormat", mock.Anything, mock.Anything, mock.Anything).Return(tool.FormatInfo{Ext: "mp4"}, nil)
	ext.On("StreamFormat", mock.Anything, mock.Anything, mock.Anything).Return(stream, nil)

	rec := httptest.NewRecorder()
	res, err := r.Serve(context.Background(), rec, baseRequest())

	assert.ErrorIs(t, err, domain.ErrRelay)
	assert.True(t, res.Committed)
	assert.Equal(t, "abcd", rec.Body.String())
	assert.True(t, stream.Killed())
	assert.True(t, stream.Waited())
	assert.Equal(t, progress.StatusError, store.Get("dl-1").Status)
	assert.Empty(t, store.Recent(20))
}

func TestRelay_NonZeroExitAfterOutput(t *testing.T) {
	ext := &toolmocks.MockExtractor{}
	store := newStore()
	r := newRelay(ext, store, config.RelayConfig{})

	stream := toolmocks.NewFakeStream("partial")
	stream.WaitErr = domain.Relay(errors.New("exit status 1"))
	ext.On("ResolveFormat", mock.Anything, mock.Anything, mock.Anything).Return(tool.FormatInfo{Ext: "mp4"}, nil)
	ext.On("StreamFormat", mock.Anything, mock.Anything, mock.Anything).Return(stream, nil)

	res, err := r.Serve(context.Background(), httptest.NewRecorder(), baseRequest())

	assert.ErrorIs(t, err, domain.ErrRelay)
	assert.Equal(t, int64(7), res.Bytes)
	assert.Equal(t, progress.StatusError, store.Get("dl-1").Status)
	assert.Empty(t, store.Recent(20))
}

// brokenWriter fails every write, like a client that went away.
type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (w brokenWriter) Write([]byte) (int, error) { return 0, io.ErrClosedPipe }

func TestRelay_ClientGoneKillsProcess(t *testing.T) {
	ext := &toolmocks.MockExtractor{}
	store := newStore()
	r := newRelay(ext, store, config.RelayConfig{})

	stream := toolmocks.NewFakeStream("chunk")
	stream.Block = true
	ext.On("ResolveFormat", mock.Anything, mock.Anything, mock.Anything).Return(tool.FormatInfo{Ext: "mp4"}, nil)
	ext.On("StreamFormat", mock.Anything, mock.Anything, mock.Anything).Return(stream, nil)

	_, err := r.Serve(context.Background(), brokenWriter{httptest.NewRecorder()}, baseRequest())

	assert.ErrorIs(t, err, domain.ErrRelay)
	assert.True(t, stream.Killed())
	assert.True(t, stream.Waited())
	assert.Equal(t, progress.StatusError, store.Get("dl-1").Status)
}

func TestRelay_CancelledContext(t *testing.T) {
	ext := &toolmocks.MockExtractor{}
	store := newStore()
	r := newRelay(ext, store, config.RelayConfig{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stream := toolmocks.NewFakeStream("abc")
	stream.WaitErr = domain.Relay(context.Canceled)
	ext.On("ResolveFormat", mock.Anything, mock.Anything, mock.Anything).Return(tool.FormatInfo{Ext: "mp4"}, nil)
	ext.On("StreamFormat", mock.Anything, mock.Anything, mock.Anything).Return(stream, nil)

	_, err := r.Serve(ctx, httptest.NewRecorder(), baseRequest())

	assert.ErrorIs(t, err, context.Canceled)
	final := store.Get("dl-1")
	assert.Equal(t, progress.StatusError, final.Status)
	assert.Equal(t, domain.NewLocalizer("en").Message(domain.MsgStatusClientStopped), final.Message)
}

func TestRelay_EmptyOutput(t *testing.T) {
	ext := &toolmocks.MockExtractor{}
	store := newStore()
	r := newRelay(ext, store, config.RelayConfig{})

	ext.On("ResolveFormat", mock.Anything, mock.Anything, mock.Anything).Return(tool.FormatInfo{Ext: "mp4"}, nil)
	ext.On("StreamFormat", mock.Anything, mock.Anything, mock.Anything).Return(toolmocks.NewFakeStream(""), nil)

	rec := httptest.NewRecorder()
	res, err := r.Serve(context.Background(), rec, baseRequest())

	require.NoError(t, err)
	assert.True(t, res.Committed)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 0, rec.Body.Len())
	require.Len(t, store.Recent(20), 1)
}

func TestRelay_ReusesFinishedID(t *testing.T) {
	ext := &toolmocks.MockExtractor{}
	store := newStore()
	r := newRelay(ext, store, config.RelayConfig{})

	ext.On("ResolveFormat", mock.Anything, mock.Anything, mock.Anything).Return(tool.FormatInfo{Ext: "mp4"}, nil)
	ext.On("StreamFormat", mock.Anything, mock.Anything, mock.Anything).
		Return(toolmocks.NewFakeStream("one"), nil).Once()
	ext.On("StreamFormat", mock.Anything, mock.Anything, mock.Anything).
		Return(toolmocks.NewFakeStream("two"), nil).Once()

	_, err := r.Serve(context.Background(), httptest.NewRecorder(), baseRequest())
	require.NoError(t, err)
	_, err = r.Serve(context.Background(), httptest.NewRecorder(), baseRequest())
	require.NoError(t, err)

	assert.Len(t, store.Recent(20), 2)
}

func TestTicker(t *testing.T) {
	t.Run("unknown size advances one point per tick", func(t *testing.T) {
		tk := newTicker(2, nil)
		var got []int
		for i := 0; i < 6; i++ {
			if p, ok := tk.chunk(int64(i)); ok {
				got = append(got, p)
			}
		}
		assert.Equal(t, []int{1, 2, 3}, got)
	})

	t.Run("caps at 99", func(t *testing.T) {
		tk := newTicker(1, nil)
		var last int
		for i := 0; i < 150; i++ {
			last, _ = tk.chunk(0)
		}
		assert.Equal(t, 99, last)
	})

	t.Run("byte ratio never goes backwards or past 99", func(t *testing.T) {
		tk := newTicker(1, size(100))
		p, _ := tk.chunk(50)
		assert.Equal(t, 50, p)
		p, _ = tk.chunk(40)
		assert.Equal(t, 50, p)
		p, _ = tk.chunk(250)
		assert.Equal(t, 99, p)
	})
}

func TestRequest_Validate(t *testing.T) {
	assert.NoError(t, baseRequest().Validate())
	assert.Error(t, Request{FormatID: "22"}.Validate())
	assert.True(t, strings.Contains(Request{URL: "u"}.Validate().Error(), "itag"))
	assert.ErrorIs(t, Request{URL: "-f", FormatID: "22"}.Validate(), domain.ErrValidation)
}
