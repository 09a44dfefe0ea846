// Package config handles Quince configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./quince.yaml, ~/.config/quince/quince.yaml, /etc/quince/quince.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"quince.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "quince", "quince.yaml"))
	}

	paths = append(paths, "/etc/quince/quince.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Quince configuration.
type Config struct {
	App            AppConfig       `yaml:"app" json:"app"`
	OpenAI         OpenAIConfig    `yaml:"openai" json:"openAI"`
	Chat           ChatConfig      `yaml:"chat" json:"chat"`
	Memory         MemoryOptions   `yaml:"memory" json:"memoryOption"`
	InternetSearch SearchOptions   `yaml:"internet_search" json:"internetSearchOption"`
	Calendar       CalendarOptions `yaml:"calendar" json:"calendarOption"`
	// SystemPrompt is prepended to every provider conversation.
	SystemPrompt string `yaml:"system_prompt" json:"-"`
	DataDir      string `yaml:"data_dir" json:"-"`
	LogLevel     string `yaml:"log_level" json:"-"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	// Proxy is an optional outbound HTTP proxy URL.
	Proxy string `yaml:"proxy" json:"proxy"`
}

// OpenAIConfig defines the provider endpoint and per-session option defaults.
type OpenAIConfig struct {
	BaseURL string        `yaml:"base_url" json:"baseUrl"`
	APIKey  string        `yaml:"api_key" json:"apiKey"`
	Chat    ChatOptions   `yaml:"chat_option" json:"chatOption"`
	Speech  SpeechOptions `yaml:"speech_option" json:"speechOption"`
	Image   ImageOptions  `yaml:"image_option" json:"textToImageOption"`
}

// ChatConfig holds chat surface settings carried in the portable format.
type ChatConfig struct {
	SidebarVisible bool `yaml:"sidebar_visible" json:"sidebarVisible"`
}

// ChatOptions are per-session model and sampling parameters.
type ChatOptions struct {
	Model               string  `yaml:"model" json:"model"`
	Temperature         float64 `yaml:"temperature" json:"temperature"`
	TopP                float64 `yaml:"top_p" json:"topP"`
	MaxCompletionTokens int     `yaml:"max_completion_tokens" json:"maxCompletionTokens"`
	PresencePenalty     float64 `yaml:"presence_penalty" json:"presencePenalty"`
	FrequencyPenalty    float64 `yaml:"frequency_penalty" json:"frequencyPenalty"`
	// ContextSize limits how many prior messages are sent to the provider.
	ContextSize             int  `yaml:"context_size" json:"contextSize"`
	AutoGenerateSessionName bool `yaml:"auto_generate_session_name" json:"autoGenerateSessionName"`
}

// SpeechOptions are per-session text-to-speech parameters.
type SpeechOptions struct {
	Model string  `yaml:"model" json:"model"`
	Voice string  `yaml:"voice" json:"voice"`
	Speed float64 `yaml:"speed" json:"speed"`
}

// ImageOptions are per-session image generation parameters.
type ImageOptions struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Model   string `yaml:"model" json:"model"`
	N       int    `yaml:"n" json:"n"`
	Quality string `yaml:"quality" json:"quality"`
	Size    string `yaml:"size" json:"size"`
	Style   string `yaml:"style" json:"style"`
}

// MemoryOptions toggles the memory tool for a session.
type MemoryOptions struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// SearchOptions configures the internet search tool.
type SearchOptions struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// Count is the maximum number of search results per query.
	Count int `yaml:"count" json:"count"`
}

// CalendarOptions toggles the calendar tools for a session.
type CalendarOptions struct {
	QueryEnabled bool `yaml:"query_enabled" json:"queryEnabled"`
	AddEnabled   bool `yaml:"add_enabled" json:"addEnabled"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			BaseURL: "https://api.openai.com/v1",
			Chat: ChatOptions{
				Model:                   "gpt-4o",
				Temperature:             1,
				TopP:                    1,
				MaxCompletionTokens:     4096,
				ContextSize:             5,
				AutoGenerateSessionName: true,
			},
			Speech: SpeechOptions{
				Model: "tts-1",
				Voice: "alloy",
				Speed: 1,
			},
			Image: ImageOptions{
				Model:   "dall-e-3",
				N:       1,
				Quality: "standard",
				Size:    "1024x1024",
				Style:   "vivid",
			},
		},
		Chat: ChatConfig{SidebarVisible: true},
		InternetSearch: SearchOptions{
			Count: 3,
		},
		Calendar: CalendarOptions{
			QueryEnabled: true,
			AddEnabled:   true,
		},
		DataDir: "data",
	}
}
