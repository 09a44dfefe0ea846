// Package tools defines the functions the assistant can call during a
// chat turn and dispatches provider-issued invocations to their
// handlers.
package tools

import (
	"time"

	"github.com/quincekit/quince/internal/session"
)

// Name identifies one of the assistant's callable tools. The set is
// closed: dispatch matches exhaustively and unknown names never reach a
// handler.
type Name string

const (
	CalendarNoteQuery Name = "calendar_note_query"
	CalendarNoteAdd   Name = "calendar_note_add"
	Memory            Name = "memory"
	TextToImage       Name = "text_to_image"
	InternetSearch    Name = "internet_search"
)

// ParseName maps a provider-supplied function name onto the closed
// tool set.
func ParseName(s string) (Name, bool) {
	switch n := Name(s); n {
	case CalendarNoteQuery, CalendarNoteAdd, Memory, TextToImage, InternetSearch:
		return n, true
	default:
		return "", false
	}
}

// Descriptor describes one tool in the provider's function-calling
// convention.
type Descriptor struct {
	Name        Name           `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// Catalog returns descriptors for every tool. Rebuilt per call because
// the search description embeds the current date: models otherwise
// resolve "yesterday" against their training cutoff.
func Catalog() []Descriptor {
	today := time.Now().Format("2006-01-02")
	return []Descriptor{
		{
			Name:        CalendarNoteQuery,
			Description: "Query calendar notes by date",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"startTime": map[string]any{
						"type":        "string",
						"description": "Query start time, The format is YYYY-MM-DD",
					},
					"endTime": map[string]any{
						"type":        "string",
						"description": "Query end time, The format is YYYY-MM-DD",
					},
				},
				"required": []string{"startTime", "endTime"},
			},
		},
		{
			Name:        CalendarNoteAdd,
			Description: "Add calendar notes by date and note content",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"time": map[string]any{
						"type":        "string",
						"description": "Note time, The format is YYYY-MM-DD",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "Note content",
					},
				},
				"required": []string{"time", "content"},
			},
		},
		{
			Name:        Memory,
			Description: "Called when the user asks to remember something",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"content": map[string]any{
						"type":        "string",
						"description": "content to remember",
					},
				},
				"required": []string{"content"},
			},
		},
		{
			Name:        TextToImage,
			Description: "Generate images from text description",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"description": map[string]any{
						"type":        "string",
						"description": "Image description",
					},
				},
				"required": []string{"description"},
			},
		},
		{
			Name:        InternetSearch,
			Description: "Get search result from internet",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"query": map[string]any{
						"type": "string",
						"description": "What to search for. Note that today's date is " + today +
							", please describe the time in the question, specific to the date.",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

// Select filters the catalog to names and renders the result in the
// provider's wire form. Order follows the catalog, not names.
func Select(names []Name) []map[string]any {
	want := make(map[Name]bool, len(names))
	for _, n := range names {
		want[n] = true
	}

	var result []map[string]any
	for _, d := range Catalog() {
		if !want[d.Name] {
			continue
		}
		result = append(result, map[string]any{
			"type": "function",
			"function": map[string]any{
				"name":        string(d.Name),
				"description": d.Description,
				"parameters":  d.Parameters,
			},
		})
	}
	return result
}

// FromOptions computes the tools a session's capability toggles enable.
func FromOptions(opts session.Options) []Name {
	var names []Name
	if opts.Calendar.QueryEnabled {
		names = append(names, CalendarNoteQuery)
	}
	if opts.Calendar.AddEnabled {
		names = append(names, CalendarNoteAdd)
	}
	if opts.Memory.Enabled {
		names = append(names, Memory)
	}
	if opts.Image.Enabled {
		names = append(names, TextToImage)
	}
	if opts.Search.Enabled {
		names = append(names, InternetSearch)
	}
	return names
}
