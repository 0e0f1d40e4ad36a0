// Package progress tracks the state of downloads, batches and jobs, and keeps
// the log of completed downloads.
package progress

import "time"

// Status is the lifecycle state of a tracked operation.
type Status string

const (
	StatusStarting    Status = "starting"
	StatusDownloading Status = "downloading"
	StatusCompleted   Status = "completed"
	StatusError       Status = "error"
	StatusNotFound    Status = "not_found"
)

// Terminal reports whether no further transition is expected.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusError
}

// Active reports whether an operation still owns the id.
func (s Status) Active() bool {
	return s == StatusStarting || s == StatusDownloading
}

// Record is the latest known state of one id. Every update replaces it.
type Record struct {
	Status    Status    `json:"status"`
	Percent   int       `json:"percent"`
	Message   string    `json:"message"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NotFound is returned for ids the store has never seen or already evicted.
var NotFound = Record{Status: StatusNotFound, Percent: 0}

// HistoryEntry describes one completed download.
type HistoryEntry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	FormatID  string    `json:"itag"`
	FileName  string    `json:"filename"`
	Timestamp time.Time `json:"timestamp"`
	Size      int64     `json:"size"`
}

// Tracker records progress per id.
type Tracker interface {
	// Update replaces the record for id.
	Update(id string, status Status, percent int, message string)
	// Get returns the record for id or NotFound.
	Get(id string) Record
	// Claim registers id as starting. It fails with a conflict error while
	// another operation holds the id.
	Claim(id string, message string) error
}

// History is the append-only log of completed downloads.
type History interface {
	Append(entry HistoryEntry)
	// Recent returns at most n entries, newest last.
	Recent(n int) []HistoryEntry
	Clear()
}

// Store combines Tracker and History.
type Store interface {
	Tracker
	History
}
