package engine

import (
	"sync"

	"github.com/alanyoungcy/zeroxbot/internal/domain"
)

// DefaultThoughtCapacity bounds the thought log.
const DefaultThoughtCapacity = 50

// ThoughtLog is a fixed-capacity, most-recent-first record of decisions.
type ThoughtLog struct {
	mu       sync.RWMutex
	capacity int
	entries  []domain.ThoughtEntry
}

// NewThoughtLog creates a log holding at most capacity entries.
func NewThoughtLog(capacity int) *ThoughtLog {
	if capacity <= 0 {
		capacity = DefaultThoughtCapacity
	}
	return &ThoughtLog{
		capacity: capacity,
		entries:  make([]domain.ThoughtEntry, 0, capacity),
	}
}

// Add prepends e, evicting the oldest entry once capacity is exceeded.
func (l *ThoughtLog) Add(e domain.ThoughtEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) < l.capacity {
		l.entries = append(l.entries, domain.ThoughtEntry{})
	}
	copy(l.entries[1:], l.entries[:len(l.entries)-1])
	l.entries[0] = e
}

// Seed replaces the contents with entries (most recent first), truncated to
// capacity. Used to restore the log from the journal at startup.
func (l *ThoughtLog) Seed(entries []domain.ThoughtEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := min(len(entries), l.capacity)
	l.entries = l.entries[:0]
	l.entries = append(l.entries, entries[:n]...)
}

// Entries returns a copy, most recent first.
func (l *ThoughtLog) Entries() []domain.ThoughtEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]domain.ThoughtEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of retained entries.
func (l *ThoughtLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
