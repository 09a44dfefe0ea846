// Package llm provides the provider-neutral chat types and the
// streaming client used to talk to an OpenAI-compatible endpoint.
package llm

// Message represents a chat message for the provider.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"` // For tool responses
}

// ToolCall is a provider-issued tool invocation. Arguments is the raw
// JSON payload exactly as the provider produced it; parsing is the
// dispatcher's job so that a malformed payload fails only that call.
type ToolCall struct {
	ID        string `json:"id,omitempty"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Usage is the terminal token summary of a provider turn.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is the final result of a streaming call.
type ChatResponse struct {
	Model        string
	Message      Message
	FinishReason string
	Usage        Usage
}

// StreamEvent is a single event in a streaming response. Consumers
// switch on Kind to determine what data is available.
type StreamEvent struct {
	Kind StreamEventKind

	// Token is set for KindToken events.
	Token string

	// ToolCall is set for KindToolCall events, after the call's
	// argument deltas have been fully assembled.
	ToolCall *ToolCall

	// Response is set for KindDone events (final summary).
	Response *ChatResponse
}

// StreamEventKind identifies the type of stream event.
type StreamEventKind int

const (
	// KindToken is an incremental content delta from the model.
	KindToken StreamEventKind = iota

	// KindToolCall fires when the model has produced a complete tool
	// invocation.
	KindToolCall

	// KindDone signals the stream is complete. Response carries final
	// usage and finish reason.
	KindDone
)

// StreamCallback receives streaming events in arrival order.
type StreamCallback func(event StreamEvent)
