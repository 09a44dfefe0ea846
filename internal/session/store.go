package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store owns the session list and the active-session reference.
//
// Every operation that targets the active session is a no-op (not an
// error) when there is no active session or no trailing message, so
// callers can invoke the store speculatively. All methods are safe for
// concurrent use, though the turn runner serializes mutation per turn.
type Store struct {
	mu       sync.Mutex
	sessions []*Session
	activeID string

	// generating is the transient still-streaming marker. It is set
	// while a provider stream feeds the trailing message and cleared on
	// completion or cancellation. It is not part of the portable state.
	generating bool

	logger *slog.Logger
}

// NewStore creates an empty session store.
func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{logger: logger.With("store", "session")}
}

// active resolves the active session. Callers must hold mu.
func (s *Store) active() *Session {
	for _, sess := range s.sessions {
		if sess.ID == s.activeID {
			return sess
		}
	}
	return nil
}

// trailing resolves the active session's last message. Callers must hold mu.
func (s *Store) trailing() *Message {
	sess := s.active()
	if sess == nil {
		return nil
	}
	return sess.Trailing()
}

// Create constructs a new session with the given option bundle,
// prepends it, and makes it active. If the current head of the list is
// an empty just-created session, it is replaced rather than kept, so
// repeated "new chat" actions collapse into a single empty session.
func (s *Store) Create(provider string, opts Options) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.sessions) > 0 && len(s.sessions[0].Messages) == 0 {
		s.sessions = s.sessions[1:]
	}

	sess := &Session{
		ID:         uuid.NewString(),
		CreateTime: time.Now(),
		Provider:   provider,
		Messages:   []*Message{},
		Options:    opts,
		IsNew:      true,
	}
	s.sessions = append([]*Session{sess}, s.sessions...)
	s.activeID = sess.ID

	s.logger.Debug("created session", "id", sess.ID)
	return sess
}

// Active returns the active session, or nil if none.
func (s *Store) Active() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active()
}

// Activate makes the session with the given ID active. Reports whether
// the session exists.
func (s *Store) Activate(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			s.activeID = id
			return true
		}
	}
	return false
}

// Get returns the session with the given ID, or nil.
func (s *Store) Get(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			return sess
		}
	}
	return nil
}

// Sessions returns a snapshot of the session list, newest first.
func (s *Store) Sessions() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*Session, len(s.sessions))
	copy(out, s.sessions)
	return out
}

// Used returns non-archived sessions that hold at least one message.
func (s *Store) Used() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Session
	for _, sess := range s.sessions {
		if !sess.IsNew && !sess.IsArchived {
			out = append(out, sess)
		}
	}
	return out
}

// Archived returns archived sessions.
func (s *Store) Archived() []*Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*Session
	for _, sess := range s.sessions {
		if sess.IsArchived {
			out = append(out, sess)
		}
	}
	return out
}

// Archive marks the session archived and moves the active reference to
// the head of the list (or clears it if the list is empty).
func (s *Store) Archive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			sess.IsArchived = true
			break
		}
	}
	s.resetActiveToHead()
}

// ArchiveAll archives every session that holds messages.
func (s *Store) ArchiveAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if len(sess.Messages) > 0 {
			sess.IsArchived = true
		}
	}
	s.resetActiveToHead()
}

// Unarchive clears the archived flag and resets the session's creation
// time to now so it resurfaces at the top of recency ordering.
func (s *Store) Unarchive(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.sessions {
		if sess.ID == id {
			sess.CreateTime = time.Now()
			sess.IsArchived = false
			return
		}
	}
}

// Delete removes the session. If it was active, the head of the
// remaining list becomes active (or none).
func (s *Store) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.sessions[:0]
	for _, sess := range s.sessions {
		if sess.ID != id {
			kept = append(kept, sess)
		}
	}
	s.sessions = kept
	if id == s.activeID {
		s.resetActiveToHead()
	}
}

// resetActiveToHead points the active reference at the head of the
// list, archived or not, or clears it when the list is empty. Callers
// must hold mu.
func (s *Store) resetActiveToHead() {
	if len(s.sessions) > 0 {
		s.activeID = s.sessions[0].ID
		return
	}
	s.activeID = ""
}

// Clear removes all sessions.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = nil
	s.activeID = ""
}

// PushMessage assigns identity and timestamp to msg and appends it to
// the active session, clearing the session's IsNew flag. The session
// name is set to sessionName if given; otherwise, if the session has no
// name yet and msg is a user message, its content becomes the name
// (first-message auto-titling). Returns the stored message, or nil if
// there is no active session.
func (s *Store) PushMessage(msg Message, sessionName string) *Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.active()
	if sess == nil {
		return nil
	}

	msg.ID = uuid.NewString()
	msg.CreateTime = time.Now()
	if msg.Kind == "" {
		msg.Kind = KindNormal
	}
	stored := &msg
	sess.Messages = append(sess.Messages, stored)
	sess.IsNew = false

	switch {
	case sessionName != "":
		sess.Name = sessionName
	case sess.Name == "" && msg.Role == RoleUser:
		sess.Name = msg.Content
	}

	return stored
}

// AppendMessageContent concatenates delta onto the trailing message's
// content. Non-nil images or searchItems replace (not merge with) the
// trailing message's current values. This is the streaming path.
func (s *Store) AppendMessageContent(delta string, images []File, searchItems []SearchItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.trailing()
	if msg == nil {
		return
	}

	msg.Content += delta
	if images != nil {
		msg.Images = images
	}
	if searchItems != nil {
		msg.SearchItems = searchItems
	}
}

// RecordUsage adds token counts onto the active session's usage,
// creating the aggregate if absent.
func (s *Store) RecordUsage(u Usage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.active()
	if sess == nil {
		return
	}
	if sess.Usage == nil {
		copied := u
		sess.Usage = &copied
		return
	}
	sess.Usage.Add(u)
}

// InsertContextDivider inserts a divider message immediately after the
// message with the given ID, unless the following message is already a
// divider. Reports whether a divider was inserted. Idempotent per
// position.
func (s *Store) InsertContextDivider(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.active()
	if sess == nil {
		return false
	}

	idx := -1
	for i, m := range sess.Messages {
		if m.ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	if idx+1 < len(sess.Messages) && sess.Messages[idx+1].Kind == KindDivider {
		return false
	}

	divider := &Message{
		ID:         uuid.NewString(),
		CreateTime: time.Now(),
		Kind:       KindDivider,
		Role:       RoleSystem,
	}
	sess.Messages = append(sess.Messages[:idx+1], append([]*Message{divider}, sess.Messages[idx+1:]...)...)
	return true
}

// DeleteMessage removes the message with the given ID from the active
// session.
func (s *Store) DeleteMessage(messageID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.active()
	if sess == nil {
		return
	}
	kept := sess.Messages[:0]
	for _, m := range sess.Messages {
		if m.ID != messageID {
			kept = append(kept, m)
		}
	}
	sess.Messages = kept
}

// DeleteMessagesThrough truncates the active session's message list to
// the messages up to and including the target, discarding everything
// after it. Reports whether anything changed. Targeting the first
// message (or an unknown ID) is a no-op.
func (s *Store) DeleteMessagesThrough(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.active()
	if sess == nil {
		return false
	}
	idx := -1
	for i, m := range sess.Messages {
		if m.ID == messageID {
			idx = i
			break
		}
	}
	if idx <= 0 {
		return false
	}
	sess.Messages = sess.Messages[:idx+1]
	return true
}

// StartChoice begins a regeneration of the trailing message. On first
// use the message's current state is preserved as choice 0; a fresh
// empty choice is then appended and selected as the streaming target.
func (s *Store) StartChoice() {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.trailing()
	if msg == nil {
		return
	}

	if msg.Choices == nil {
		msg.Choices = []Choice{{
			Content:     msg.Content,
			Images:      msg.Images,
			SearchItems: msg.SearchItems,
		}}
	}
	msg.Choices = append(msg.Choices, Choice{Images: []File{}, SearchItems: []SearchItem{}})
	msg.ChoiceIndex = len(msg.Choices) - 1

	// Visible state mirrors the selected choice, which is now empty.
	msg.Content = ""
	msg.Images = []File{}
	msg.SearchItems = []SearchItem{}
}

// CommitChoice writes the trailing message's current visible state back
// into its selected choice. Call after a streaming turn completes to
// persist the just-generated variant. No-op when the message has no
// choices.
func (s *Store) CommitChoice() {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.trailing()
	if msg == nil || len(msg.Choices) == 0 {
		return
	}
	msg.Choices[msg.ChoiceIndex] = Choice{
		Content:     msg.Content,
		Images:      msg.Images,
		SearchItems: msg.SearchItems,
	}
}

// StepChoice moves the message's selected choice by step, clamped to
// [0, len(choices)-1], and updates the visible content to match.
func (s *Store) StepChoice(messageID string, step int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := s.active()
	if sess == nil {
		return
	}
	var msg *Message
	for _, m := range sess.Messages {
		if m.ID == messageID {
			msg = m
			break
		}
	}
	if msg == nil || len(msg.Choices) == 0 {
		return
	}

	msg.ChoiceIndex += step
	if msg.ChoiceIndex < 0 {
		msg.ChoiceIndex = 0
	} else if msg.ChoiceIndex > len(msg.Choices)-1 {
		msg.ChoiceIndex = len(msg.Choices) - 1
	}

	choice := msg.Choices[msg.ChoiceIndex]
	msg.Content = choice.Content
	msg.Images = choice.Images
	msg.SearchItems = choice.SearchItems
}

// ResetTrailingMessage clears the trailing message's visible state.
// Used when a streaming turn is aborted before producing output.
func (s *Store) ResetTrailingMessage() {
	s.mu.Lock()
	defer s.mu.Unlock()

	msg := s.trailing()
	if msg == nil {
		return
	}
	msg.Content = ""
	msg.Images = []File{}
	msg.SearchItems = []SearchItem{}
}

// SetGenerating installs or clears the transient still-streaming
// marker consumed by rendering.
func (s *Store) SetGenerating(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generating = v
}

// Generating reports whether a provider stream is currently feeding the
// trailing message.
func (s *Store) Generating() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.generating
}
