package progress

import (
	"context"
	"sync"
	"time"

	"streamrelay/config"
	"streamrelay/internal/domain"
	"streamrelay/observability/types"
)

// MemoryStore is the in-process Store. Terminal records older than the TTL
// are evicted by Sweep; the history keeps at most HistoryLimit entries.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record

	historyMu sync.RWMutex
	history   []HistoryEntry

	ttl           time.Duration
	sweepInterval time.Duration
	historyLimit  int
	now           func() time.Time
	logger        types.Logger
}

// NewMemoryStore creates a store using cfg's retention settings.
func NewMemoryStore(cfg config.ProgressConfig, logger types.Logger) *MemoryStore {
	return &MemoryStore{
		records:       make(map[string]Record),
		ttl:           cfg.TTL,
		sweepInterval: cfg.SweepInterval,
		historyLimit:  cfg.HistoryLimit,
		now:           time.Now,
		logger:        logger,
	}
}

// Update replaces the record for id. Percent is clamped to 0..99 for every
// status except completed, which is always 100.
func (s *MemoryStore) Update(id string, status Status, percent int, message string) {
	rec := Record{
		Status:    status,
		Percent:   clampPercent(status, percent),
		Message:   message,
		UpdatedAt: s.now().UTC(),
	}

	s.mu.Lock()
	s.records[id] = rec
	s.mu.Unlock()
}

// Get returns the record for id, or NotFound.
func (s *MemoryStore) Get(id string) Record {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()

	if !ok {
		return NotFound
	}
	return rec
}

// Claim registers id as starting unless it is currently active. Ids whose
// record is terminal may be reused.
func (s *MemoryStore) Claim(id string, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec, ok := s.records[id]; ok && rec.Status.Active() {
		return domain.Conflict(domain.MsgDownloadInProgress, "id "+id+" is "+string(rec.Status))
	}

	s.records[id] = Record{
		Status:    StatusStarting,
		Message:   message,
		UpdatedAt: s.now().UTC(),
	}
	return nil
}

// Sweep evicts terminal records last updated before now minus the TTL and
// returns how many were removed. Active records are never evicted.
func (s *MemoryStore) Sweep(now time.Time) int {
	if s.ttl <= 0 {
		return 0
	}
	cutoff := now.Add(-s.ttl)

	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := 0
	for id, rec := range s.records {
		if rec.Status.Terminal() && rec.UpdatedAt.Before(cutoff) {
			delete(s.records, id)
			evicted++
		}
	}
	return evicted
}

// Run sweeps on the configured interval until ctx is done.
func (s *MemoryStore) Run(ctx context.Context) {
	if s.sweepInterval <= 0 || s.ttl <= 0 {
		return
	}

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(s.now()); n > 0 {
				s.logger.Debug(ctx, "Evicted expired progress records", types.Fields{
					"evicted":   n,
					"remaining": s.Len(),
				})
			}
		}
	}
}

// Len returns the number of tracked ids.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Append adds entry to the history, dropping the oldest entries beyond the limit.
func (s *MemoryStore) Append(entry HistoryEntry) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append(s.history, entry)
	if s.historyLimit > 0 && len(s.history) > s.historyLimit {
		overflow := len(s.history) - s.historyLimit
		s.history = append(s.history[:0:0], s.history[overflow:]...)
	}
}

// Recent returns a copy of the last n entries, newest last.
func (s *MemoryStore) Recent(n int) []HistoryEntry {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if n <= 0 {
		return []HistoryEntry{}
	}
	start := len(s.history) - n
	if start < 0 {
		start = 0
	}

	out := make([]HistoryEntry, len(s.history)-start)
	copy(out, s.history[start:])
	return out
}

// Clear empties the history.
func (s *MemoryStore) Clear() {
	s.historyMu.Lock()
	s.history = nil
	s.historyMu.Unlock()
}

func clampPercent(status Status, percent int) int {
	if status == StatusCompleted {
		return 100
	}
	switch {
	case percent < 0:
		return 0
	case percent > 99:
		return 99
	default:
		return percent
	}
}
