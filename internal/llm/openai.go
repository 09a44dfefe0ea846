package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/quincekit/quince/internal/config"
	"github.com/quincekit/quince/internal/httpkit"
)

// OpenAIClient is a streaming client for OpenAI-compatible chat
// completion endpoints.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewOpenAIClient creates a client for the given endpoint. baseURL is
// the API root (e.g. "https://api.openai.com/v1").
func NewOpenAIClient(baseURL, apiKey string, logger *slog.Logger) *OpenAIClient {
	if logger == nil {
		logger = slog.Default()
	}
	// Responses can take a long time before headers arrive (long
	// prompts, tool-heavy turns). Widen the header timeout and rely on
	// ctx for overall cancellation.
	t := httpkit.NewTransport()
	t.ResponseHeaderTimeout = 120 * time.Second

	return &OpenAIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		logger:  logger.With("provider", "openai"),
		httpClient: httpkit.NewClient(
			// No global timeout; streaming responses are long-lived.
			httpkit.WithTimeout(0),
			httpkit.WithTransport(t),
		),
	}
}

// OpenAI request/response wire types

type openaiRequest struct {
	Model               string           `json:"model"`
	Messages            []openaiMessage  `json:"messages"`
	Temperature         float64          `json:"temperature,omitempty"`
	TopP                float64          `json:"top_p,omitempty"`
	MaxCompletionTokens int              `json:"max_completion_tokens,omitempty"`
	PresencePenalty     float64          `json:"presence_penalty,omitempty"`
	FrequencyPenalty    float64          `json:"frequency_penalty,omitempty"`
	Stream              bool             `json:"stream"`
	StreamOptions       *streamOptions   `json:"stream_options,omitempty"`
	Tools               []map[string]any `json:"tools,omitempty"`
}

type streamOptions struct {
	IncludeUsage bool `json:"include_usage"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiToolCall struct {
	Index    int    `json:"index,omitempty"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

type openaiStreamChunk struct {
	Model   string `json:"model"`
	Choices []struct {
		Delta struct {
			Content   string           `json:"content"`
			ToolCalls []openaiToolCall `json:"tool_calls"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage *Usage `json:"usage"`
}

// ChatStream opens a streaming chat request against the configured
// endpoint and feeds events to callback in arrival order.
func (c *OpenAIClient) ChatStream(ctx context.Context, opts Options, messages []Message, tools []map[string]any, callback StreamCallback) (*ChatResponse, error) {
	req := openaiRequest{
		Model:               opts.Model,
		Messages:            convertToOpenAI(messages),
		Temperature:         opts.Temperature,
		TopP:                opts.TopP,
		MaxCompletionTokens: opts.MaxCompletionTokens,
		PresencePenalty:     opts.PresencePenalty,
		FrequencyPenalty:    opts.FrequencyPenalty,
		Stream:              true,
		StreamOptions:       &streamOptions{IncludeUsage: true},
		Tools:               tools,
	}

	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	c.logger.Debug("preparing request",
		"model", opts.Model,
		"messages", len(messages),
		"tools", len(tools),
	)
	c.logger.Log(ctx, config.LevelTrace, "request payload", "json", string(jsonData))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errBody := httpkit.ReadErrorBody(resp.Body, 4096)
		c.logger.Error("API error", "status", resp.StatusCode, "body", errBody)
		return nil, fmt.Errorf("openai API error %d: %s", resp.StatusCode, errBody)
	}

	return c.handleStreaming(ctx, resp.Body, callback)
}

func (c *OpenAIClient) handleStreaming(ctx context.Context, body io.Reader, callback StreamCallback) (*ChatResponse, error) {
	scanner := bufio.NewScanner(body)
	// Large responses need a bigger scanner buffer than the default.
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		contentBuilder strings.Builder
		pendingCalls   = make(map[int]*ToolCall) // by stream index
		finishReason   string
		usage          Usage
		model          string
	)

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data: "))
		if data == "[DONE]" {
			break
		}

		var chunk openaiStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue // Skip malformed events
		}

		if chunk.Model != "" {
			model = chunk.Model
		}
		if chunk.Usage != nil {
			usage = *chunk.Usage
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			contentBuilder.WriteString(choice.Delta.Content)
			if callback != nil {
				callback(StreamEvent{Kind: KindToken, Token: choice.Delta.Content})
			}
		}

		// Tool-call arguments arrive as partial JSON fragments keyed
		// by index; assemble them until the finish reason fires.
		for _, tc := range choice.Delta.ToolCalls {
			call, ok := pendingCalls[tc.Index]
			if !ok {
				call = &ToolCall{}
				pendingCalls[tc.Index] = call
			}
			if tc.ID != "" {
				call.ID = tc.ID
			}
			if tc.Function.Name != "" {
				call.Name += tc.Function.Name
			}
			call.Arguments += tc.Function.Arguments
		}

		if choice.FinishReason != "" {
			finishReason = choice.FinishReason
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read stream: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	toolCalls := assembleToolCalls(pendingCalls)
	if callback != nil {
		for i := range toolCalls {
			callback(StreamEvent{Kind: KindToolCall, ToolCall: &toolCalls[i]})
		}
	}

	resp := &ChatResponse{
		Model: model,
		Message: Message{
			Role:      "assistant",
			Content:   contentBuilder.String(),
			ToolCalls: toolCalls,
		},
		FinishReason: finishReason,
		Usage:        usage,
	}
	if callback != nil {
		callback(StreamEvent{Kind: KindDone, Response: resp})
	}

	c.logger.Debug("stream complete",
		"model", resp.Model,
		"finish_reason", finishReason,
		"prompt_tokens", usage.PromptTokens,
		"completion_tokens", usage.CompletionTokens,
		"content_len", len(resp.Message.Content),
		"tool_calls", len(toolCalls),
	)
	c.logger.Log(ctx, config.LevelTrace, "stream final content", "content", resp.Message.Content)

	return resp, nil
}

// assembleToolCalls orders the pending calls by their stream index.
func assembleToolCalls(pending map[int]*ToolCall) []ToolCall {
	if len(pending) == 0 {
		return nil
	}
	indexes := make([]int, 0, len(pending))
	for i := range pending {
		indexes = append(indexes, i)
	}
	sort.Ints(indexes)

	calls := make([]ToolCall, 0, len(pending))
	for _, i := range indexes {
		calls = append(calls, *pending[i])
	}
	return calls
}

// convertToOpenAI maps neutral messages to the wire shape.
func convertToOpenAI(messages []Message) []openaiMessage {
	out := make([]openaiMessage, 0, len(messages))
	for _, m := range messages {
		om := openaiMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			otc := openaiToolCall{ID: tc.ID, Type: "function"}
			otc.Function.Name = tc.Name
			otc.Function.Arguments = tc.Arguments
			om.ToolCalls = append(om.ToolCalls, otc)
		}
		out = append(out, om)
	}
	return out
}
