package media

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"streamrelay/internal/domain"
)

// watchURLPrefix rebuilds a watch URL for flat entries reporting only an id.
const watchURLPrefix = "https://www.youtube.com/watch?v="

// Entry is one member of a playlist or search result.
type Entry struct {
	Title     string `json:"title"`
	URL       string `json:"url"`
	Duration  string `json:"duration"`
	Thumbnail string `json:"thumbnail"`
}

type flatEntry struct {
	ID         string   `json:"id"`
	URL        string   `json:"url"`
	WebpageURL string   `json:"webpage_url"`
	Title      *string  `json:"title"`
	Duration   *float64 `json:"duration"`
	Thumbnail  string   `json:"thumbnail"`
	Thumbnails []struct {
		URL string `json:"url"`
	} `json:"thumbnails"`
}

// ParseEntries reads the newline-delimited JSON printed by a flat playlist
// or search run. Entries with neither id nor url are skipped; a line that is
// not JSON fails the whole listing.
func ParseEntries(r io.Reader, untitled string) ([]Entry, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 8*1024*1024)

	entries := make([]Entry, 0)
	line := 0
	for scanner.Scan() {
		line++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var fe flatEntry
		if err := json.Unmarshal(raw, &fe); err != nil {
			return nil, domain.Parse(fmt.Errorf("line %d: %w", line, err))
		}

		if e, ok := fe.entry(untitled); ok {
			entries = append(entries, e)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, domain.Parse(err)
	}

	return entries, nil
}

func (fe flatEntry) entry(untitled string) (Entry, bool) {
	link := fe.URL
	if link == "" {
		link = fe.WebpageURL
	}
	if link == "" && fe.ID != "" {
		link = watchURLPrefix + fe.ID
	}
	if link == "" {
		return Entry{}, false
	}

	e := Entry{
		Title:     untitled,
		URL:       link,
		Thumbnail: fe.Thumbnail,
	}
	if fe.Title != nil && *fe.Title != "" {
		e.Title = *fe.Title
	}
	if fe.Duration != nil {
		e.Duration = FormatDuration(*fe.Duration)
	}
	if e.Thumbnail == "" && len(fe.Thumbnails) > 0 {
		// Thumbnails are listed smallest first.
		e.Thumbnail = fe.Thumbnails[len(fe.Thumbnails)-1].URL
	}

	return e, true
}
