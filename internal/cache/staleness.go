// Package cache provides the staleness gate and the local file artifacts
// (per-symbol bar files, same-day catalog lists) shared by fetch tasks.
package cache

import (
	"os"
	"time"
)

// Entry is the metadata of a cached artifact, not its payload.
type Entry struct {
	Key          string
	LastModified time.Time
	SizeBytes    int64
}

// Staleness decides whether a previously written artifact is fresh enough
// to reuse. It never reads payloads; the only I/O is a metadata stat.
type Staleness struct {
	now func() time.Time
}

// NewStaleness returns a staleness gate using the wall clock.
func NewStaleness() *Staleness {
	return &Staleness{now: time.Now}
}

// Stat returns the artifact's cache metadata, or an error if it does not
// exist.
func (s *Staleness) Stat(path string) (Entry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Entry{}, err
	}
	return Entry{
		Key:          path,
		LastModified: info.ModTime(),
		SizeBytes:    info.Size(),
	}, nil
}

// IsFresh reports whether the artifact exists, is younger than ttl and is at
// least minSize bytes. The size floor guards against truncated writes being
// treated as valid data.
func (s *Staleness) IsFresh(path string, ttl time.Duration, minSize int64) bool {
	entry, err := s.Stat(path)
	if err != nil {
		return false
	}
	if entry.SizeBytes < minSize {
		return false
	}
	return s.now().Sub(entry.LastModified) < ttl
}

// WrittenToday reports whether the artifact was last modified on the current
// calendar day and is at least minSize bytes. Used for "already updated
// today" gates where a fixed TTL is the wrong shape.
func (s *Staleness) WrittenToday(path string, minSize int64) bool {
	entry, err := s.Stat(path)
	if err != nil {
		return false
	}
	if entry.SizeBytes < minSize {
		return false
	}
	y1, m1, d1 := entry.LastModified.Date()
	y2, m2, d2 := s.now().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
