package batch

import (
	"context"
	"fmt"

	"streamrelay/internal/media"
	"streamrelay/internal/tool"
	"streamrelay/observability/types"
	storagetypes "streamrelay/storage/types"
)

// Archiver is the default Unit: it stores the best muxed format of each
// item under batches/<batch id>/.
type Archiver struct {
	extractor tool.Extractor
	storage   storagetypes.ObjectStorage
	// fallback is the format selector used when metadata lists no formats.
	fallback string
	untitled string
	logger   types.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(extractor tool.Extractor, storage storagetypes.ObjectStorage, fallbackFormat, untitled string, logger types.Logger) *Archiver {
	if fallbackFormat == "" {
		fallbackFormat = "best"
	}
	return &Archiver{
		extractor: extractor,
		storage:   storage,
		fallback:  fallbackFormat,
		untitled:  untitled,
		logger:    logger,
	}
}

// Process implements Unit
func (a *Archiver) Process(ctx context.Context, item Item) error {
	md, err := a.extractor.FetchMetadata(ctx, item.URL)
	if err != nil {
		return err
	}

	formatID, ext := a.fallback, ""
	if best, ok := media.ClassifyAndRank(media.NormalizeAll(md.Formats)).Best(); ok {
		formatID, ext = best.FormatID, best.Container
	}
	if ext == "" {
		info, err := a.extractor.ResolveFormat(ctx, item.URL, formatID)
		if err != nil {
			return err
		}
		ext = info.Ext
	}

	summary := md.Summarize(a.untitled)
	key := ItemKey(item, media.FileName(summary.Title, ext, a.untitled))

	stream, err := a.extractor.StreamFormat(ctx, item.URL, formatID)
	if err != nil {
		return err
	}

	n, err := a.storage.Put(ctx, key, stream, storagetypes.ObjectMetadata{
		ContentType: storagetypes.ContentTypeFor(key),
		UserMetadata: map[string]string{
			"source-url": item.URL,
			"itag":       formatID,
		},
	})
	if err != nil {
		stream.Kill()
		stream.Wait()
		return err
	}
	if err := stream.Wait(); err != nil {
		// The stored object is truncated.
		if delErr := a.storage.Delete(context.WithoutCancel(ctx), key); delErr != nil {
			a.logger.Warn(ctx, "failed to remove partial artifact", types.Fields{
				"key":   key,
				"error": delErr.Error(),
			})
		}
		return err
	}

	a.logger.Info(ctx, "batch item archived", types.Fields{
		"key":   key,
		"itag":  formatID,
		"bytes": n,
	})
	return nil
}

// ItemKey returns the artifact key of one archived batch item.
func ItemKey(item Item, fileName string) string {
	return fmt.Sprintf("batches/%s/%03d-%s", item.BatchID, item.Index+1, fileName)
}
