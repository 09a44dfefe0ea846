package llm

import "context"

// Options carries the per-request model and sampling parameters,
// captured from the session's option bundle.
type Options struct {
	Model               string
	Temperature         float64
	TopP                float64
	MaxCompletionTokens int
	PresencePenalty     float64
	FrequencyPenalty    float64
}

// Client is the interface the turn runner talks to. The production
// implementation streams from an OpenAI-compatible endpoint; tests
// substitute scripted fakes.
type Client interface {
	// ChatStream opens a streaming chat request. Events are delivered
	// to callback in arrival order; the returned response repeats the
	// final summary. Cancelling ctx aborts the stream.
	ChatStream(ctx context.Context, opts Options, messages []Message, tools []map[string]any, callback StreamCallback) (*ChatResponse, error)
}
