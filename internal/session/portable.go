package session

import "encoding/json"

// portableState is the wire shape for session export.
type portableState struct {
	Sessions        []*Session `json:"sessions"`
	ActiveSessionID string     `json:"activeSessionId"`
}

// ExportJSON renders the full session list and active-session reference
// as a portable JSON payload.
func (s *Store) ExportJSON() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(portableState{
		Sessions:        s.sessions,
		ActiveSessionID: s.activeID,
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ImportJSON loads sessions from a portable payload and returns the
// number of sessions imported. When overwrite is false, imported
// sessions are concatenated after the existing ones (the merge is
// additive; duplicates are possible). When overwrite is true, the
// entire collection is replaced. A malformed payload imports nothing
// and returns zero.
func (s *Store) ImportJSON(payload string, overwrite bool) int {
	if payload == "" {
		return 0
	}

	var p portableState
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		s.logger.Warn("session import failed", "error", err)
		return 0
	}

	// JSON null entries decode as nil pointers; dropping them here
	// keeps every stored session and message dereferenceable.
	imported := p.Sessions[:0]
	for _, sess := range p.Sessions {
		if sess == nil {
			continue
		}
		msgs := sess.Messages[:0]
		for _, m := range sess.Messages {
			if m != nil {
				msgs = append(msgs, m)
			}
		}
		sess.Messages = msgs
		imported = append(imported, sess)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	if p.Sessions != nil {
		if overwrite {
			s.sessions = imported
		} else {
			s.sessions = append(s.sessions, imported...)
		}
		count = len(imported)
	}
	if p.ActiveSessionID != "" {
		s.activeID = p.ActiveSessionID
	}
	return count
}
