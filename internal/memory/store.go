// Package memory stores free-text entries the assistant has been asked
// to remember. Entries are kept newest-first and travel through the
// same portable JSON import/export as the other collections.
package memory

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one remembered fact.
type Entry struct {
	ID         string    `json:"id"`
	CreateTime time.Time `json:"createTime"`
	Content    string    `json:"content"`
}

// Store holds memory entries, newest first.
type Store struct {
	mu      sync.Mutex
	entries []Entry
	logger  *slog.Logger
}

// NewStore creates an empty memory store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger.With("store", "memory")}
}

// Add prepends a new entry with the given content.
func (s *Store) Add(content string) Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := Entry{
		ID:         uuid.NewString(),
		CreateTime: time.Now(),
		Content:    content,
	}
	s.entries = append([]Entry{e}, s.entries...)
	return e
}

// Delete removes the entry with the given ID.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	for _, e := range s.entries {
		if e.ID != id {
			kept = append(kept, e)
		}
	}
	s.entries = kept
}

// Entries returns a snapshot of all entries, newest first.
func (s *Store) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Clear removes all entries.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// portableState is the wire shape for memory export.
type portableState struct {
	MemoryList []Entry `json:"memoryList"`
}

// ExportJSON renders all entries as a portable JSON payload.
func (s *Store) ExportJSON() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(portableState{MemoryList: s.entries})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ImportJSON loads entries from a portable payload and returns the
// number imported. Additive unless overwrite is true; malformed
// payloads import nothing and return zero.
func (s *Store) ImportJSON(payload string, overwrite bool) int {
	if payload == "" {
		return 0
	}

	var p portableState
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		s.logger.Warn("memory import failed", "error", err)
		return 0
	}
	if p.MemoryList == nil {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if overwrite {
		s.entries = p.MemoryList
	} else {
		s.entries = append(s.entries, p.MemoryList...)
	}
	return len(p.MemoryList)
}
