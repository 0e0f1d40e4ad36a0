package media

import (
	"bufio"
	"io"
	"strings"
)

// SubtitleTrack is one language offered by --list-subs.
type SubtitleTrack struct {
	Language  string   `json:"language"`
	Name      string   `json:"name"`
	Formats   []string `json:"formats"`
	Automatic bool     `json:"automatic"`
}

// ParseSubtitleListing reads the plain-text tables printed by --list-subs.
// Both the automatic captions table and the subtitles table are read;
// everything outside a table is ignored.
func ParseSubtitleListing(r io.Reader) []SubtitleTrack {
	scanner := bufio.NewScanner(r)

	tracks := make([]SubtitleTrack, 0)
	inTable := false
	automatic := false

	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), " \t\r")
		lower := strings.ToLower(line)

		switch {
		case strings.Contains(lower, "available automatic captions"):
			inTable, automatic = false, true
			continue
		case strings.Contains(lower, "available subtitles"):
			inTable, automatic = false, false
			continue
		case strings.HasPrefix(lower, "language"):
			inTable = true
			continue
		case line == "" || strings.HasPrefix(line, "["):
			inTable = false
			continue
		}

		if !inTable {
			continue
		}
		if track, ok := parseSubtitleRow(line); ok {
			track.Automatic = automatic
			tracks = append(tracks, track)
		}
	}

	return tracks
}

// parseSubtitleRow splits "en-GB  English (United Kingdom)  vtt, ttml, srv3"
// into language, name and formats. Formats are the trailing comma-joined
// words; whatever sits between them and the language is the name.
func parseSubtitleRow(line string) (SubtitleTrack, bool) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return SubtitleTrack{}, false
	}

	end := len(fields) - 1
	start := end
	for start > 1 && strings.HasSuffix(fields[start-1], ",") {
		start--
	}

	formats := make([]string, 0, end-start+1)
	for _, f := range fields[start : end+1] {
		if f = strings.TrimSuffix(f, ","); f != "" {
			formats = append(formats, f)
		}
	}

	return SubtitleTrack{
		Language: fields[0],
		Name:     strings.Join(fields[1:start], " "),
		Formats:  formats,
	}, true
}
