package config

import "encoding/json"

// portableSettings is the wire shape for settings export. Each section
// is a pointer so that a missing section in imported JSON is
// distinguishable from a present-but-zero one.
type portableSettings struct {
	App            *AppConfig       `json:"app,omitempty"`
	OpenAI         *OpenAIConfig    `json:"openAI,omitempty"`
	Chat           *ChatConfig      `json:"chat,omitempty"`
	InternetSearch *SearchOptions   `json:"internetSearchOption,omitempty"`
	Calendar       *CalendarOptions `json:"calendarOption,omitempty"`
}

// ExportJSON renders the exportable settings sections as JSON.
// The memory section is deliberately omitted, matching the historic
// portable format.
func (c *Config) ExportJSON() (string, error) {
	p := portableSettings{
		App:            &c.App,
		OpenAI:         &c.OpenAI,
		Chat:           &c.Chat,
		InternetSearch: &c.InternetSearch,
		Calendar:       &c.Calendar,
	}
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ImportJSON applies settings sections present in the payload and
// reports whether anything was imported. Malformed JSON imports
// nothing and returns false.
func (c *Config) ImportJSON(payload string) bool {
	if payload == "" {
		return false
	}

	var p portableSettings
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return false
	}

	imported := false
	if p.App != nil {
		c.App = *p.App
		imported = true
	}
	if p.OpenAI != nil {
		c.OpenAI = *p.OpenAI
		imported = true
	}
	if p.Chat != nil {
		c.Chat = *p.Chat
		imported = true
	}
	if p.InternetSearch != nil {
		c.InternetSearch = *p.InternetSearch
		imported = true
	}
	if p.Calendar != nil {
		c.Calendar = *p.Calendar
		imported = true
	}
	return imported
}
