// Package calendar stores day notes keyed by date. At most one note
// exists per date key; writes to an existing key update content while
// preserving the note's identity and creation time.
package calendar

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DateFormat is the key format for day notes.
const DateFormat = "2006-01-02"

// Note is the note attached to a single day.
type Note struct {
	ID         string    `json:"id"`
	CreateTime time.Time `json:"createTime"`
	Content    string    `json:"content"`
	Starred    bool      `json:"starred,omitempty"`
}

// Store holds day notes keyed by YYYY-MM-DD date strings.
type Store struct {
	mu     sync.Mutex
	notes  map[string]*Note
	logger *slog.Logger
}

// NewStore creates an empty calendar store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		notes:  make(map[string]*Note),
		logger: logger.With("store", "calendar"),
	}
}

// newNote creates a fresh note at the given date key. Callers must hold mu.
func (s *Store) newNote(date, content string) *Note {
	n := &Note{
		ID:         uuid.NewString(),
		CreateTime: time.Now(),
		Content:    content,
	}
	s.notes[date] = n
	return n
}

// Save writes content to the note at date, creating it if absent. An
// existing note keeps its identity and creation time; only content
// changes.
func (s *Store) Save(date, content string) *Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.notes[date]; ok {
		n.Content = content
		return n
	}
	return s.newNote(date, content)
}

// Append adds content to the note at date, separated by a blank line,
// creating the note if absent.
func (s *Store) Append(date, content string) *Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	if n, ok := s.notes[date]; ok {
		n.Content += "\n\n" + content
		return n
	}
	return s.newNote(date, content)
}

// Get returns the note at date, or nil.
func (s *Store) Get(date string) *Note {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notes[date]
}

// Range returns the notes whose date keys fall within [start, end],
// as a date→note map. Both bounds are YYYY-MM-DD strings; the string
// comparison is equivalent to date comparison for this format.
func (s *Store) Range(start, end string) map[string]Note {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]Note)
	for date, n := range s.notes {
		if date >= start && date <= end {
			out[date] = *n
		}
	}
	return out
}

// Star sets the starred flag on the note at date, if present.
func (s *Store) Star(date string, starred bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.notes[date]; ok {
		n.Starred = starred
	}
}

// Delete removes the note at date.
func (s *Store) Delete(date string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.notes, date)
}

// Len returns the number of stored notes.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.notes)
}

// Clear removes all notes.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notes = make(map[string]*Note)
}

// portableState is the wire shape for calendar export.
type portableState struct {
	DayNotes map[string]*Note `json:"dayNotes"`
}

// ExportJSON renders all day notes as a portable JSON payload.
func (s *Store) ExportJSON() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(portableState{DayNotes: s.notes})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ImportJSON loads day notes from a portable payload and returns the
// number of keys imported. When overwrite is false, imported notes are
// upserted key-by-key, replacing same-key existing notes and leaving
// other keys untouched. When overwrite is true, the whole map is
// replaced. Malformed payloads import nothing and return zero.
func (s *Store) ImportJSON(payload string, overwrite bool) int {
	if payload == "" {
		return 0
	}

	var p portableState
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		s.logger.Warn("calendar import failed", "error", err)
		return 0
	}
	if p.DayNotes == nil {
		return 0
	}

	// JSON null entries decode as nil notes; dropping them here keeps
	// every stored key dereferenceable.
	for date, n := range p.DayNotes {
		if n == nil {
			delete(p.DayNotes, date)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if overwrite {
		s.notes = p.DayNotes
	} else {
		for date, n := range p.DayNotes {
			s.notes[date] = n
		}
	}
	return len(p.DayNotes)
}
