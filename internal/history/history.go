// Package history keeps the session's past analyses, newest first. Nothing is
// persisted.
package history

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anders-m-mygind/masa-app/internal/capture"
)

// Entry records one successful analysis.
type Entry struct {
	ID         uuid.UUID
	Image      *capture.StillImage
	Title      string
	Brand      string
	Country    string
	Confidence string
	At         time.Time
}

// Log is an append-only list of entries ordered most-recent-first.
type Log struct {
	mu      sync.RWMutex
	entries []Entry
}

func NewLog() *Log {
	return &Log{}
}

// Add prepends e, filling in ID and At when unset.
func (l *Log) Add(e Entry) Entry {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.At.IsZero() {
		e.At = time.Now()
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append([]Entry{e}, l.entries...)
	return e
}

// Entries returns a copy of the log, newest first.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}
