package worker

import (
	"context"
	"strings"

	"streamrelay/handler"
	"streamrelay/internal/domain"
	"streamrelay/internal/media"
	"streamrelay/internal/transcode"
)

type urlPayload struct {
	URL string `json:"url"`
}

func (p urlPayload) validate() (string, error) {
	return media.ValidateURL(p.URL)
}

func (w *MediaWorker) getVideoInfo(ctx context.Context, req handler.Request, l domain.Localizer) (interface{}, error) {
	var payload urlPayload
	if err := decode(req, &payload); err != nil {
		return nil, err
	}
	url, err := payload.validate()
	if err != nil {
		return nil, err
	}

	meta, err := w.deps.Extractor.FetchMetadata(ctx, url)
	if err != nil {
		return nil, err
	}

	tiers := media.ClassifyAndRank(media.NormalizeAll(meta.Formats))
	return videoInfoView{
		VideoInfo: meta.Summarize(l.Message(domain.MsgUntitled)),
		Streams:   newStreamsView(tiers, l),
	}, nil
}

func (w *MediaWorker) playlistInfo(ctx context.Context, req handler.Request, l domain.Localizer) (interface{}, error) {
	var payload urlPayload
	if err := decode(req, &payload); err != nil {
		return nil, err
	}
	url, err := payload.validate()
	if err != nil {
		return nil, err
	}

	entries, err := w.deps.Extractor.FetchFlatPlaylist(ctx, url)
	if err != nil {
		return nil, err
	}
	return playlistView{Videos: nonNil(entries), Count: len(entries)}, nil
}

type searchPayload struct {
	Query string `json:"query"`
	Limit int    `json:"limit"`
}

func (w *MediaWorker) search(ctx context.Context, req handler.Request, l domain.Localizer) (interface{}, error) {
	var payload searchPayload
	if err := decode(req, &payload); err != nil {
		return nil, err
	}

	query := strings.TrimSpace(payload.Query)
	if query == "" {
		return nil, domain.Validation(domain.MsgEmptyQuery, "query is required")
	}

	results, err := w.deps.Extractor.Search(ctx, query, w.searchLimit(payload.Limit))
	if err != nil {
		return nil, err
	}
	return searchView{Results: nonNil(results)}, nil
}

// searchLimit applies the default to unset limits and clamps the rest.
func (w *MediaWorker) searchLimit(n int) int {
	switch {
	case n <= 0:
		return w.limits.SearchLimit
	case n > w.limits.MaxSearch:
		return w.limits.MaxSearch
	default:
		return n
	}
}

func (w *MediaWorker) subtitles(ctx context.Context, req handler.Request, l domain.Localizer) (interface{}, error) {
	var payload urlPayload
	if err := decode(req, &payload); err != nil {
		return nil, err
	}
	url, err := payload.validate()
	if err != nil {
		return nil, err
	}

	tracks, err := w.deps.Extractor.ListSubtitles(ctx, url)
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, domain.NotFound(domain.MsgSubtitlesNotFound, "no subtitles listed for "+url)
	}
	return subtitlesView{Subtitles: tracks}, nil
}

type batchPayload struct {
	URLs []string `json:"urls"`
}

func (w *MediaWorker) batchDownload(ctx context.Context, req handler.Request, l domain.Localizer) (interface{}, error) {
	var payload batchPayload
	if err := decode(req, &payload); err != nil {
		return nil, err
	}

	task, err := w.deps.Batches.Start(payload.URLs, l)
	if err != nil {
		return nil, err
	}
	return batchView{BatchID: task.ID(), Total: task.Total()}, nil
}

type progressPayload struct {
	ID string `json:"id"`
}

func (w *MediaWorker) progress(ctx context.Context, req handler.Request, l domain.Localizer) (interface{}, error) {
	var payload progressPayload
	if err := decode(req, &payload); err != nil {
		return nil, err
	}
	if payload.ID == "" {
		return nil, domain.Validation(domain.MsgMissingParams, "id is required")
	}
	return w.deps.Store.Get(payload.ID), nil
}

func (w *MediaWorker) history(ctx context.Context, req handler.Request, l domain.Localizer) (interface{}, error) {
	return nonNil(w.deps.Store.Recent(w.limits.Recent)), nil
}

func (w *MediaWorker) clearHistory(ctx context.Context, req handler.Request, l domain.Localizer) (interface{}, error) {
	w.deps.Store.Clear()
	w.logger.Info(ctx, "History cleared", nil)
	return clearedView{Cleared: true}, nil
}

func (w *MediaWorker) convertAudio(ctx context.Context, req handler.Request, l domain.Localizer) (interface{}, error) {
	var payload transcode.AudioRequest
	if err := decode(req, &payload); err != nil {
		return nil, err
	}

	id, err := w.deps.Jobs.ConvertAudio(payload, l)
	if err != nil {
		return nil, err
	}
	return jobView{JobID: id}, nil
}

func (w *MediaWorker) trimClip(ctx context.Context, req handler.Request, l domain.Localizer) (interface{}, error) {
	var payload transcode.ClipRequest
	if err := decode(req, &payload); err != nil {
		return nil, err
	}

	id, err := w.deps.Jobs.TrimClip(payload, l)
	if err != nil {
		return nil, err
	}
	return jobView{JobID: id}, nil
}
