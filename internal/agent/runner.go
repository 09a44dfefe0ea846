// Package agent runs chat turns: it feeds the transcript to the
// provider, streams deltas back into the trailing message, dispatches
// tool calls, and finalizes usage.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/quincekit/quince/internal/calendar"
	"github.com/quincekit/quince/internal/extract"
	"github.com/quincekit/quince/internal/llm"
	"github.com/quincekit/quince/internal/memory"
	"github.com/quincekit/quince/internal/session"
	"github.com/quincekit/quince/internal/tools"
	"github.com/quincekit/quince/internal/usage"
)

// maxToolRounds bounds the provider round-trips a single turn may take
// through tool dispatch.
const maxToolRounds = 5

// UsageRecorder persists per-turn token usage. *usage.Store satisfies
// it; tests substitute fakes.
type UsageRecorder interface {
	Record(ctx context.Context, rec usage.Record) error
}

// Runner executes chat turns against one session store. It is the
// single writer of transcript state during a turn: tool calls are
// dispatched sequentially and deltas apply in arrival order.
type Runner struct {
	sessions   *session.Store
	memory     *memory.Store
	calendar   *calendar.Store
	client     llm.Client
	dispatcher *tools.Dispatcher
	ledger     UsageRecorder
	system     string
	logger     *slog.Logger
}

// NewRunner creates a turn runner. ledger may be nil to skip the
// persistent usage ledger; system is an optional system prompt.
func NewRunner(sessions *session.Store, mem *memory.Store, cal *calendar.Store, client llm.Client, dispatcher *tools.Dispatcher, ledger UsageRecorder, system string, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		sessions:   sessions,
		memory:     mem,
		calendar:   cal,
		client:     client,
		dispatcher: dispatcher,
		ledger:     ledger,
		system:     system,
		logger:     logger.With("component", "agent"),
	}
}

// Send runs one full turn: append the user message (with any attached
// files), open the provider stream, and accumulate the reply into a
// fresh assistant message.
//
// Provider and tool failures surface as an error-kind message in the
// transcript so the user can resubmit; Send returns an error only for
// failures before the turn mutates anything. Cancellation terminates
// the turn cleanly, leaving accumulated content in place with no error
// message.
func (r *Runner) Send(ctx context.Context, content string, filePaths []string) error {
	sess := r.sessions.Active()
	if sess == nil {
		return fmt.Errorf("no active session")
	}
	if r.sessions.Generating() {
		return fmt.Errorf("a turn is already in progress")
	}

	var files, images []session.File
	for _, p := range filePaths {
		f := session.File{Name: p, SaveName: p, Extname: filepath.Ext(p)}
		if session.IsImageExt(f.Extname) {
			if _, err := os.Stat(p); err != nil {
				return fmt.Errorf("attach %s: %w", p, err)
			}
			images = append(images, f)
			continue
		}
		// Validate up front so a bad attachment fails the whole send
		// before anything lands in the transcript.
		if _, err := extract.Text(p); err != nil {
			return fmt.Errorf("attach %s: %w", p, err)
		}
		files = append(files, f)
	}

	r.sessions.PushMessage(session.Message{
		Role:    session.RoleUser,
		Content: content,
		Files:   files,
		Images:  images,
	}, "")
	r.sessions.PushMessage(session.Message{
		Role: session.RoleAssistant,
	}, "")

	r.sessions.SetGenerating(true)
	defer r.sessions.SetGenerating(false)

	r.generate(ctx, sess)
	return nil
}

// Regenerate opens an alternate completion for the trailing assistant
// message: the current content is snapshotted as a choice and a new
// empty choice is streamed into.
func (r *Runner) Regenerate(ctx context.Context) error {
	sess := r.sessions.Active()
	if sess == nil {
		return fmt.Errorf("no active session")
	}
	trailing := sess.Trailing()
	if trailing == nil || trailing.Role != session.RoleAssistant {
		return fmt.Errorf("nothing to regenerate")
	}
	if r.sessions.Generating() {
		return fmt.Errorf("a turn is already in progress")
	}

	r.sessions.StartChoice()

	r.sessions.SetGenerating(true)
	defer r.sessions.SetGenerating(false)

	r.generate(ctx, sess)
	return nil
}

// generate drives the provider loop for the trailing assistant
// message, round-tripping through tool dispatch until the model stops
// asking for tools.
func (r *Runner) generate(ctx context.Context, sess *session.Session) {
	convo := r.buildContext(sess)
	toolDefs := tools.Select(tools.FromOptions(sess.Options))
	opts := llm.Options{
		Model:               sess.Options.Chat.Model,
		Temperature:         sess.Options.Chat.Temperature,
		TopP:                sess.Options.Chat.TopP,
		MaxCompletionTokens: sess.Options.Chat.MaxCompletionTokens,
		PresencePenalty:     sess.Options.Chat.PresencePenalty,
		FrequencyPenalty:    sess.Options.Chat.FrequencyPenalty,
	}

	var total llm.Usage
	for round := 0; round < maxToolRounds; round++ {
		var calls []llm.ToolCall
		resp, err := r.client.ChatStream(ctx, opts, convo, toolDefs, func(ev llm.StreamEvent) {
			switch ev.Kind {
			case llm.KindToken:
				r.sessions.AppendMessageContent(ev.Token, nil, nil)
			case llm.KindToolCall:
				calls = append(calls, *ev.ToolCall)
			}
		})
		if err != nil {
			if ctx.Err() != nil {
				// Cancelled: accumulated content stays, no error entry.
				r.logger.Info("turn cancelled", "session", sess.ID)
				return
			}
			r.logger.Error("provider call failed", "error", err)
			r.pushError(err)
			return
		}

		total.PromptTokens += resp.Usage.PromptTokens
		total.CompletionTokens += resp.Usage.CompletionTokens
		total.TotalTokens += resp.Usage.TotalTokens

		// Some compatible endpoints report "stop" even with tool calls
		// present, so the calls themselves are the only reliable signal.
		if len(calls) == 0 {
			break
		}

		convo = append(convo, llm.Message{
			Role:      "assistant",
			Content:   resp.Message.Content,
			ToolCalls: calls,
		})
		for _, call := range calls {
			result, err := r.runTool(ctx, call, sess.Options)
			if err != nil {
				if ctx.Err() != nil {
					r.logger.Info("turn cancelled during tool call", "session", sess.ID, "tool", call.Name)
					return
				}
				r.logger.Error("tool call failed", "tool", call.Name, "error", err)
				r.pushError(err)
				return
			}
			convo = append(convo, llm.Message{
				Role:       "tool",
				Content:    result,
				ToolCallID: call.ID,
			})
		}
	}

	r.finishUsage(ctx, sess, opts.Model, total)
	r.sessions.CommitChoice()
}

// runTool dispatches one provider-issued tool call and applies its
// store side effects. Calendar and memory results come back as
// validated passthroughs; the runner is the workflow layer that
// persists them.
func (r *Runner) runTool(ctx context.Context, call llm.ToolCall, opts session.Options) (string, error) {
	name, ok := tools.ParseName(call.Name)
	if !ok {
		return "", fmt.Errorf("unknown tool %q", call.Name)
	}

	result, err := r.dispatcher.Execute(ctx, name, call.Arguments, opts)
	if err != nil {
		return "", err
	}

	switch name {
	case tools.Memory:
		if r.memory != nil {
			r.memory.Add(result)
		}

	case tools.CalendarNoteAdd:
		var args struct {
			Time    string `json:"time"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(result), &args); err == nil && r.calendar != nil {
			r.calendar.Append(args.Time, args.Content)
		}

	case tools.CalendarNoteQuery:
		var args struct {
			StartTime string `json:"startTime"`
			EndTime   string `json:"endTime"`
		}
		if err := json.Unmarshal([]byte(result), &args); err == nil && r.calendar != nil {
			notes := r.calendar.Range(args.StartTime, args.EndTime)
			found := make(map[string]string, len(notes))
			for date, note := range notes {
				found[date] = note.Content
			}
			if encoded, err := json.Marshal(found); err == nil {
				result = string(encoded)
			}
		}

	case tools.TextToImage:
		var images []session.File
		if err := json.Unmarshal([]byte(result), &images); err == nil {
			r.sessions.AppendMessageContent("", images, nil)
		}

	case tools.InternetSearch:
		var items []session.SearchItem
		if err := json.Unmarshal([]byte(result), &items); err == nil {
			r.sessions.AppendMessageContent("", nil, items)
		}
	}

	return result, nil
}

// buildContext assembles the provider conversation: an optional system
// prompt (with remembered facts when the session enables memory), then
// the transcript after the last divider, bounded by the session's
// context size. The trailing in-progress assistant message, error
// entries, and dividers are excluded.
func (r *Runner) buildContext(sess *session.Session) []llm.Message {
	msgs := sess.Messages
	if n := len(msgs); n > 0 && msgs[n-1].Role == session.RoleAssistant {
		msgs = msgs[:n-1]
	}
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Kind == session.KindDivider {
			msgs = msgs[i+1:]
			break
		}
	}

	var included []*session.Message
	for _, m := range msgs {
		if m.Kind != session.KindNormal {
			continue
		}
		included = append(included, m)
	}
	if cs := sess.Options.Chat.ContextSize; cs > 0 && len(included) > cs {
		included = included[len(included)-cs:]
	}

	var out []llm.Message
	if sysContent := r.systemContent(sess); sysContent != "" {
		out = append(out, llm.Message{Role: "system", Content: sysContent})
	}
	for _, m := range included {
		content := m.Content
		for _, f := range m.Files {
			text, err := extract.Text(f.SaveName)
			if err != nil {
				r.logger.Warn("attachment extraction failed", "file", f.SaveName, "error", err)
				continue
			}
			content += "\n\n" + f.Name + ":\n" + text
		}
		for _, link := range m.Links {
			content += "\n" + link
		}
		out = append(out, llm.Message{Role: string(m.Role), Content: content})
	}
	return out
}

// systemContent folds remembered facts into the system prompt when the
// session has memory enabled.
func (r *Runner) systemContent(sess *session.Session) string {
	content := r.system
	if !sess.Options.Memory.Enabled || r.memory == nil {
		return content
	}
	entries := r.memory.Entries()
	if len(entries) == 0 {
		return content
	}

	var sb strings.Builder
	sb.WriteString(content)
	if content != "" {
		sb.WriteString("\n\n")
	}
	sb.WriteString("Things the user asked you to remember:\n")
	for _, e := range entries {
		sb.WriteString("- ")
		sb.WriteString(e.Content)
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (r *Runner) finishUsage(ctx context.Context, sess *session.Session, model string, total llm.Usage) {
	if total.TotalTokens == 0 && total.PromptTokens == 0 && total.CompletionTokens == 0 {
		return
	}
	r.sessions.RecordUsage(session.Usage{
		PromptTokens:     total.PromptTokens,
		CompletionTokens: total.CompletionTokens,
		TotalTokens:      total.TotalTokens,
	})
	if r.ledger == nil {
		return
	}
	if err := r.ledger.Record(ctx, usage.Record{
		SessionID:        sess.ID,
		Model:            model,
		PromptTokens:     total.PromptTokens,
		CompletionTokens: total.CompletionTokens,
		TotalTokens:      total.TotalTokens,
	}); err != nil {
		r.logger.Warn("usage ledger write failed", "error", err)
	}
}

func (r *Runner) pushError(err error) {
	r.sessions.PushMessage(session.Message{
		Kind:    session.KindError,
		Role:    session.RoleAssistant,
		Content: err.Error(),
	}, "")
}
