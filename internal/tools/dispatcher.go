package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/quincekit/quince/internal/imagegen"
	"github.com/quincekit/quince/internal/session"
)

// ErrMalformedArguments reports an argument payload that failed to
// parse. It is fatal to that single tool call, never to the session.
var ErrMalformedArguments = errors.New("malformed tool arguments")

// Searcher runs the web-search sub-pipeline.
type Searcher interface {
	Run(ctx context.Context, query string, count int) ([]session.SearchItem, error)
}

// Dispatcher routes provider-issued tool invocations to their
// handlers. Calendar and memory calls are validated passthroughs: the
// dispatcher returns the parsed arguments and the caller applies any
// store mutation, since those need user-facing policy the dispatcher
// should not own. Image generation and web search do real external
// work under the turn's context.
type Dispatcher struct {
	searcher  Searcher
	generator imagegen.Generator
	saver     imagegen.FileSaver
	logger    *slog.Logger
}

// NewDispatcher creates a dispatcher. Any collaborator may be nil; the
// corresponding tool then fails at call time rather than construction
// time.
func NewDispatcher(searcher Searcher, generator imagegen.Generator, saver imagegen.FileSaver, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		searcher:  searcher,
		generator: generator,
		saver:     saver,
		logger:    logger.With("component", "tools"),
	}
}

// Execute runs one tool call and returns its result string. Tool calls
// within a turn run sequentially; the transcript assumes a single
// writer.
func (d *Dispatcher) Execute(ctx context.Context, name Name, argsJSON string, opts session.Options) (string, error) {
	switch name {
	case CalendarNoteQuery:
		var args struct {
			StartTime string `json:"startTime"`
			EndTime   string `json:"endTime"`
		}
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedArguments, err)
		}
		d.logger.Info("calendar note query", "start", args.StartTime, "end", args.EndTime)
		return argsJSON, nil

	case CalendarNoteAdd:
		var args struct {
			Time    string `json:"time"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedArguments, err)
		}
		d.logger.Info("calendar note add", "time", args.Time)
		return argsJSON, nil

	case Memory:
		var args struct {
			Content string `json:"content"`
		}
		if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
			return "", fmt.Errorf("%w: %v", ErrMalformedArguments, err)
		}
		d.logger.Info("memory content", "content", args.Content)
		return args.Content, nil

	case TextToImage:
		return d.textToImage(ctx, argsJSON, opts)

	case InternetSearch:
		return d.internetSearch(ctx, argsJSON, opts)

	default:
		return "", fmt.Errorf("unknown tool %q", name)
	}
}

func (d *Dispatcher) textToImage(ctx context.Context, argsJSON string, opts session.Options) (string, error) {
	var args struct {
		Description string `json:"description"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedArguments, err)
	}
	if d.generator == nil || d.saver == nil {
		return "", fmt.Errorf("image generation not configured")
	}

	images, err := d.generator.Generate(ctx, imagegen.Request{
		Prompt:  args.Description,
		Model:   opts.Image.Model,
		N:       opts.Image.N,
		Quality: opts.Image.Quality,
		Size:    opts.Image.Size,
		Style:   opts.Image.Style,
	})
	if err != nil {
		return "", err
	}

	files := make([]session.File, 0, len(images))
	for _, img := range images {
		const extname = ".png"
		name := uuid.NewString() + extname
		saveName, err := d.saver.SaveBase64(img.B64, name)
		if err != nil {
			return "", fmt.Errorf("save image: %w", err)
		}
		files = append(files, session.File{Name: name, SaveName: saveName, Extname: extname})
	}

	d.logger.Info("images generated", "count", len(files))
	result, err := json.Marshal(files)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(result), nil
}

func (d *Dispatcher) internetSearch(ctx context.Context, argsJSON string, opts session.Options) (string, error) {
	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(argsJSON), &args); err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedArguments, err)
	}
	if d.searcher == nil {
		return "", fmt.Errorf("web search not configured")
	}

	items, err := d.searcher.Run(ctx, args.Query, opts.Search.Count)
	if err != nil {
		return "", err
	}
	if items == nil {
		items = []session.SearchItem{}
	}

	result, err := json.Marshal(items)
	if err != nil {
		return "", fmt.Errorf("marshal result: %w", err)
	}
	return string(result), nil
}
