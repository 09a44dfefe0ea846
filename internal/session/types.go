// Package session holds the conversation data model and the store
// through which all session mutation flows. The store owns the session
// list and the active-session reference; callers never reach into a
// session's message slice directly.
package session

import (
	"strings"
	"time"

	"github.com/quincekit/quince/internal/config"
)

// Kind classifies a message within the transcript.
type Kind string

const (
	// KindNormal is an ordinary conversation message.
	KindNormal Kind = "normal"

	// KindError is a surfaced failure (provider error, bad tool call).
	KindError Kind = "error"

	// KindDivider is a sentinel marking a context-truncation boundary.
	// Messages before a divider are excluded from provider context.
	KindDivider Kind = "divider"
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
	RoleTool      Role = "tool"
)

// File describes a saved attachment (image or document).
type File struct {
	Name     string `json:"name"`
	SaveName string `json:"saveName"`
	Extname  string `json:"extname"`
}

// imageExts are attachment extensions rendered inline as images rather
// than fed to the prompt as text.
var imageExts = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".webp": true,
	".gif":  true,
}

// IsImageExt reports whether ext names an inline-image attachment type.
func IsImageExt(ext string) bool {
	return imageExts[strings.ToLower(ext)]
}

// SearchItem is one entry of an internet search result set.
type SearchItem struct {
	Title       string `json:"title"`
	Snippet     string `json:"snippet"`
	Link        string `json:"link"`
	DisplayLink string `json:"displayLink"`
}

// Choice is a snapshot of one generated variant of a message.
type Choice struct {
	Content     string       `json:"content"`
	Images      []File       `json:"images"`
	SearchItems []SearchItem `json:"searchItems"`
}

// Usage accumulates token counts across turns within a session.
type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// Add accumulates another usage summary into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
}

// Options bundles the per-session option sets captured at creation time.
type Options struct {
	Chat     config.ChatOptions     `json:"chatOption"`
	Speech   config.SpeechOptions   `json:"speechOption"`
	Image    config.ImageOptions    `json:"textToImageOption"`
	Memory   config.MemoryOptions   `json:"memoryOption"`
	Search   config.SearchOptions   `json:"internetSearchOption"`
	Calendar config.CalendarOptions `json:"calendarOption"`
}

// Message is a single transcript entry.
//
// Once Choices is non-empty, Content/Images/SearchItems mirror
// Choices[ChoiceIndex]; the store keeps that invariant on every
// choice operation.
type Message struct {
	ID         string    `json:"id"`
	CreateTime time.Time `json:"createTime"`
	Kind       Kind      `json:"type"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`

	Images      []File       `json:"images,omitempty"`
	Files       []File       `json:"files,omitempty"`
	Links       []string     `json:"links,omitempty"`
	SearchItems []SearchItem `json:"searchItems,omitempty"`

	Choices     []Choice `json:"choices,omitempty"`
	ChoiceIndex int      `json:"choiceIndex,omitempty"`
}

// Session is one conversation with its transcript and option bundle.
type Session struct {
	ID         string     `json:"id"`
	CreateTime time.Time  `json:"createTime"`
	Name       string     `json:"name"`
	Provider   string     `json:"provider"`
	Messages   []*Message `json:"messages"`
	Usage      *Usage     `json:"usage,omitempty"`
	Options    Options    `json:"options"`

	// IsNew marks a freshly created session with no messages yet.
	// The store keeps at most one session in this state.
	IsNew bool `json:"new"`

	IsArchived bool `json:"archived"`
}

// Trailing returns the last message of the session, or nil if empty.
func (s *Session) Trailing() *Message {
	if len(s.Messages) == 0 {
		return nil
	}
	return s.Messages[len(s.Messages)-1]
}
