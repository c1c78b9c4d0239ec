package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

const (
	// Capacity is the most entries the history ever holds
	Capacity = 10

	recordKey     = "scan_history"
	layoutVersion = 1
)

// ErrStorageCorrupt is logged when the persisted history cannot be read. It never leaves Load.
var ErrStorageCorrupt = errors.New("persisted history is corrupt")

type layout struct {
	Version int     `json:"version"`
	Entries []Entry `json:"entries"`
}

// Store is the bounded, most-recent-first scan history. All writes go through
// one mutex so persisted state always matches call order.
type Store struct {
	mu      sync.Mutex
	kv      KV
	entries []Entry
}

// NewStore creates a Store over kv. Call Load before use.
func NewStore(kv KV) *Store {
	return &Store{kv: kv}
}

// Load reads the persisted history. Missing or corrupt data yields an empty history.
func (s *Store) Load() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.read()
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			slog.Warn("Discarding unreadable scan history", "error", err)
		}
		entries = nil
	}
	s.entries = entries

	return s.snapshot()
}

func (s *Store) read() ([]Entry, error) {
	data, err := s.kv.Get(recordKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrStorageCorrupt, err)
	}

	var l layout
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorageCorrupt, err)
	}
	if l.Version != layoutVersion {
		return nil, fmt.Errorf("%w: unsupported layout version %d", ErrStorageCorrupt, l.Version)
	}
	for i, e := range l.Entries {
		if e.ID == "" {
			return nil, fmt.Errorf("%w: entry %d has no id", ErrStorageCorrupt, i)
		}
	}

	if len(l.Entries) > Capacity {
		l.Entries = l.Entries[:Capacity]
	}
	return l.Entries, nil
}

// Record prepends entry, evicting the oldest entries beyond Capacity, and
// persists the whole history before returning
func (s *Store) Record(entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make([]Entry, 0, Capacity)
	next = append(next, entry)
	next = append(next, s.entries...)
	if len(next) > Capacity {
		next = next[:Capacity]
	}

	if err := s.write(next); err != nil {
		return fmt.Errorf("recording scan: %w", err)
	}
	s.entries = next
	return nil
}

// Clear empties the history and persists the empty list
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.write(nil); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	s.entries = nil
	return nil
}

// Entries returns a copy of the history, most recent first
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Get returns the entry with the given id
func (s *Store) Get(id string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.ID == id {
			return e, true
		}
	}
	return Entry{}, false
}

// Close closes the underlying KV
func (s *Store) Close() error {
	return s.kv.Close()
}

func (s *Store) write(entries []Entry) error {
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.Marshal(layout{Version: layoutVersion, Entries: entries})
	if err != nil {
		return fmt.Errorf("marshaling history: %w", err)
	}
	return s.kv.Put(recordKey, data)
}

func (s *Store) snapshot() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}
