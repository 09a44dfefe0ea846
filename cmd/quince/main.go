// Quince is a conversational assistant client for OpenAI-compatible
// providers.
//
// It keeps chat sessions, remembered facts, and calendar notes in
// portable JSON state files, streams replies into the transcript, and
// lets the model call tools for calendar notes, memory, image
// generation, and web search. Configuration is loaded from a single
// YAML file discovered automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	quince chat [message]      Send a message (no message: interactive)
//	quince new                 Start a new session
//	quince sessions            List sessions
//	quince show [id]           Print a session transcript
//	quince export <kind>       Export sessions|memory|calendar|settings
//	quince import <kind> <f>   Import a portable payload
//	quince usage               Token usage summary
//	quince init [dir]          Write a default config file
//	quince version             Print version and build information
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/quincekit/quince/internal/agent"
	"github.com/quincekit/quince/internal/buildinfo"
	"github.com/quincekit/quince/internal/calendar"
	"github.com/quincekit/quince/internal/config"
	"github.com/quincekit/quince/internal/fetch"
	"github.com/quincekit/quince/internal/imagegen"
	"github.com/quincekit/quince/internal/llm"
	"github.com/quincekit/quince/internal/memory"
	"github.com/quincekit/quince/internal/search"
	"github.com/quincekit/quince/internal/session"
	"github.com/quincekit/quince/internal/tools"
	"github.com/quincekit/quince/internal/usage"
)

// main is intentionally minimal. It constructs the OS-level environment
// (context, stdio, argv) and delegates immediately to [run]. This keeps
// os.Exit, os.Stdout, and os.Args out of the application logic so that
// the full lifecycle can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point for the quince command. All OS-level
// dependencies are injected as parameters:
//
//   - ctx controls the lifetime of the process. Cancelling it aborts
//     any in-flight provider turn, keeping already-streamed content.
//   - stdout and stderr receive all program output.
//   - args is os.Args[1:]. We parse these manually rather than using
//     the flag package to avoid global state that interferes with
//     parallel tests.
func run(ctx context.Context, stdout io.Writer, stderr io.Writer, args []string) error {
	var configPath string
	var outputFmt string // "text" (default) or "json"
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case strings.HasPrefix(args[i], "--output="):
			outputFmt = strings.TrimPrefix(args[i], "--output=")
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case command == "":
			command = args[i]
		default:
			cmdArgs = append(cmdArgs, args[i])
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "chat":
		return runChat(ctx, stdout, stderr, configPath, cmdArgs)
	case "new":
		return runNew(stdout, configPath)
	case "sessions":
		return runSessions(stdout, configPath)
	case "show":
		return runShow(stdout, configPath, cmdArgs)
	case "export":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: quince export <sessions|memory|calendar|settings>")
		}
		return runExport(stdout, configPath, cmdArgs[0])
	case "import":
		if len(cmdArgs) < 2 {
			return fmt.Errorf("usage: quince import <sessions|memory|calendar|settings> <file> [-overwrite]")
		}
		overwrite := len(cmdArgs) > 2 && cmdArgs[2] == "-overwrite"
		return runImport(stdout, configPath, cmdArgs[0], cmdArgs[1], overwrite)
	case "usage":
		return runUsage(stdout, configPath)
	case "init":
		dir := "."
		if len(cmdArgs) > 0 {
			dir = cmdArgs[0]
		}
		return runInit(stdout, dir)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "Quince - conversational assistant client")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: quince [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  chat [message]       Send a message (no message: interactive)")
	fmt.Fprintln(w, "                       -f <path> attaches a .txt/.md file")
	fmt.Fprintln(w, "  new                  Start a new session")
	fmt.Fprintln(w, "  sessions             List sessions")
	fmt.Fprintln(w, "  show [id]            Print a session transcript (default: active)")
	fmt.Fprintln(w, "  export <kind>        Write portable JSON to stdout")
	fmt.Fprintln(w, "  import <kind> <file> Import portable JSON (-overwrite replaces)")
	fmt.Fprintln(w, "  usage                Token usage summary")
	fmt.Fprintln(w, "  init [dir]           Write a default config file (default: .)")
	fmt.Fprintln(w, "  version              Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -o, --output fmt  Output format: text (default) or json")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Config search order:")
	fmt.Fprintln(w, "  ./quince.yaml, ~/.config/quince/quince.yaml, /etc/quince/quince.yaml")
	return nil
}

// runVersion prints build metadata in the requested output format.
func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// runChat handles "quince chat". With a message it runs one turn and
// prints the reply; without one it reads messages from stdin until EOF.
// A leading "-f <path>" attaches a file to the message.
func runChat(ctx context.Context, stdout io.Writer, stderr io.Writer, configPath string, args []string) error {
	app, err := newApp(stdout, configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	// SIGINT cancels the in-flight turn; streamed content stays.
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var files []string
	for len(args) >= 2 && args[0] == "-f" {
		files = append(files, args[1])
		args = args[2:]
	}

	if app.sessions.Active() == nil {
		app.sessions.Create("openai", app.sessionOptions())
	}

	if len(args) > 0 {
		message := strings.Join(args, " ")
		if err := app.turn(ctx, stdout, message, files); err != nil {
			return err
		}
		return app.save()
	}

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Fprint(stdout, "> ")
	for scanner.Scan() {
		message := strings.TrimSpace(scanner.Text())
		if message == "" {
			fmt.Fprint(stdout, "> ")
			continue
		}
		if err := app.turn(ctx, stdout, message, files); err != nil {
			fmt.Fprintln(stderr, err)
		}
		files = nil
		if err := app.save(); err != nil {
			return err
		}
		if ctx.Err() != nil {
			break
		}
		fmt.Fprint(stdout, "> ")
	}
	return scanner.Err()
}

// runNew starts a fresh session. Repeated invocations without sending a
// message collapse into a single empty session.
func runNew(stdout io.Writer, configPath string) error {
	app, err := newApp(stdout, configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	sess := app.sessions.Create("openai", app.sessionOptions())
	fmt.Fprintf(stdout, "new session %s\n", sess.ID)
	return app.save()
}

func runSessions(stdout io.Writer, configPath string) error {
	app, err := newApp(stdout, configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	active := ""
	if sess := app.sessions.Active(); sess != nil {
		active = sess.ID
	}
	for _, sess := range app.sessions.Sessions() {
		marker := " "
		if sess.ID == active {
			marker = "*"
		}
		name := sess.Name
		if name == "" {
			name = "(unnamed)"
		}
		status := ""
		if sess.IsArchived {
			status = " [archived]"
		}
		fmt.Fprintf(stdout, "%s %s  %s  %d messages%s\n", marker, sess.ID, name, len(sess.Messages), status)
	}
	return nil
}

func runShow(stdout io.Writer, configPath string, args []string) error {
	app, err := newApp(stdout, configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	sess := app.sessions.Active()
	if len(args) > 0 {
		sess = app.sessions.Get(args[0])
	}
	if sess == nil {
		return fmt.Errorf("no such session")
	}

	for _, msg := range sess.Messages {
		printMessage(stdout, msg)
	}
	if sess.Usage != nil {
		fmt.Fprintf(stdout, "usage: %d prompt + %d completion = %d tokens\n",
			sess.Usage.PromptTokens, sess.Usage.CompletionTokens, sess.Usage.TotalTokens)
	}
	return nil
}

func runExport(stdout io.Writer, configPath, kind string) error {
	app, err := newApp(stdout, configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	var payload string
	switch kind {
	case "sessions":
		payload, err = app.sessions.ExportJSON()
	case "memory":
		payload, err = app.memory.ExportJSON()
	case "calendar":
		payload, err = app.calendar.ExportJSON()
	case "settings":
		payload, err = app.cfg.ExportJSON()
	default:
		return fmt.Errorf("unknown export kind: %s", kind)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, payload)
	return nil
}

func runImport(stdout io.Writer, configPath, kind, file string, overwrite bool) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("read import file: %w", err)
	}

	app, err := newApp(stdout, configPath)
	if err != nil {
		return err
	}
	defer app.Close()

	switch kind {
	case "sessions":
		count := app.sessions.ImportJSON(string(data), overwrite)
		fmt.Fprintf(stdout, "imported %d sessions\n", count)
	case "memory":
		count := app.memory.ImportJSON(string(data), overwrite)
		fmt.Fprintf(stdout, "imported %d memory entries\n", count)
	case "calendar":
		count := app.calendar.ImportJSON(string(data), overwrite)
		fmt.Fprintf(stdout, "imported %d calendar notes\n", count)
	case "settings":
		if !app.cfg.ImportJSON(string(data)) {
			return fmt.Errorf("settings payload not recognized")
		}
		fmt.Fprintln(stdout, "settings imported")
	default:
		return fmt.Errorf("unknown import kind: %s", kind)
	}
	return app.save()
}

func runUsage(stdout io.Writer, configPath string) error {
	cfg, _, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	ledger, err := usage.NewStore(filepath.Join(cfg.DataDir, "usage.db"))
	if err != nil {
		return err
	}
	defer ledger.Close()

	now := time.Now()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	epoch := time.Unix(0, 0)
	horizon := now.Add(24 * time.Hour)

	today, err := ledger.Summary(dayStart, horizon)
	if err != nil {
		return err
	}
	all, err := ledger.Summary(epoch, horizon)
	if err != nil {
		return err
	}
	byModel, err := ledger.SummaryByModel(epoch, horizon)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "today: %d turns, %d tokens\n", today.TotalRecords, today.TotalTokens)
	fmt.Fprintf(stdout, "total: %d turns, %d tokens (%d prompt, %d completion)\n",
		all.TotalRecords, all.TotalTokens, all.TotalPromptTokens, all.TotalCompletionTokens)
	for model, sum := range byModel {
		fmt.Fprintf(stdout, "  %-24s %d turns, %d tokens\n", model, sum.TotalRecords, sum.TotalTokens)
	}
	return nil
}

// runInit writes a default config file into dir, refusing to overwrite
// an existing one.
func runInit(stdout io.Writer, dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}
	path := filepath.Join(dir, "quince.yaml")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	if err := os.WriteFile(path, []byte(defaultConfigYAML), 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	fmt.Fprintf(stdout, "wrote %s\n", path)
	return nil
}

const defaultConfigYAML = `# Quince configuration.
# Values of the form ${VAR} are expanded from the environment.

openai:
  base_url: https://api.openai.com/v1
  api_key: ${OPENAI_API_KEY}
  chat_option:
    model: gpt-4o
    temperature: 1
    top_p: 1
    max_completion_tokens: 4096
    context_size: 5
    auto_generate_session_name: true
  image_option:
    enabled: false
    model: dall-e-3
    n: 1
    quality: standard
    size: 1024x1024
    style: vivid

memory:
  enabled: true

internet_search:
  enabled: true
  count: 3

calendar:
  query_enabled: true
  add_enabled: true

# system_prompt: You are a helpful assistant.
data_dir: data
log_level: info
`

// app bundles the stores and runner one command invocation works with.
// State is loaded from the portable JSON files under the data directory
// and written back by save.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	sessions *session.Store
	memory   *memory.Store
	calendar *calendar.Store
	runner   *agent.Runner
	ledger   *usage.Store
}

func newApp(stdout io.Writer, configPath string) (*app, error) {
	cfg, cfgPath, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if cfg.LogLevel != "" {
		if parsed, err := config.ParseLogLevel(cfg.LogLevel); err == nil {
			level = parsed
		}
	}
	logger := newLogger(stdout, level)
	logger.Debug("config loaded", "path", cfgPath)

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory %s: %w", cfg.DataDir, err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		sessions: session.NewStore(logger),
		memory:   memory.NewStore(logger),
		calendar: calendar.NewStore(logger),
	}
	a.loadState()

	ledger, err := usage.NewStore(filepath.Join(cfg.DataDir, "usage.db"))
	if err != nil {
		return nil, fmt.Errorf("open usage ledger: %w", err)
	}
	a.ledger = ledger

	fetcher := fetch.New(logger)
	pipeline := search.NewPipeline(fetcher, logger)
	generator := imagegen.NewOpenAIGenerator(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, logger)
	saver, err := imagegen.NewDiskSaver(filepath.Join(cfg.DataDir, "images"))
	if err != nil {
		return nil, err
	}
	dispatcher := tools.NewDispatcher(pipeline, generator, saver, logger)
	client := llm.NewOpenAIClient(cfg.OpenAI.BaseURL, cfg.OpenAI.APIKey, logger)

	a.runner = agent.NewRunner(a.sessions, a.memory, a.calendar, client, dispatcher, ledger, cfg.SystemPrompt, logger)
	return a, nil
}

func (a *app) Close() {
	if a.ledger != nil {
		a.ledger.Close()
	}
}

func (a *app) sessionOptions() session.Options {
	return session.Options{
		Chat:     a.cfg.OpenAI.Chat,
		Speech:   a.cfg.OpenAI.Speech,
		Image:    a.cfg.OpenAI.Image,
		Memory:   a.cfg.Memory,
		Search:   a.cfg.InternetSearch,
		Calendar: a.cfg.Calendar,
	}
}

// statePath returns the portable JSON file for one collection.
func (a *app) statePath(name string) string {
	return filepath.Join(a.cfg.DataDir, name+".json")
}

func (a *app) loadState() {
	for name, load := range map[string]func(string, bool) int{
		"sessions": a.sessions.ImportJSON,
		"memory":   a.memory.ImportJSON,
		"calendar": a.calendar.ImportJSON,
	} {
		data, err := os.ReadFile(a.statePath(name))
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				a.logger.Warn("state file unreadable", "file", name, "error", err)
			}
			continue
		}
		load(string(data), true)
	}
}

func (a *app) save() error {
	for name, export := range map[string]func() (string, error){
		"sessions": a.sessions.ExportJSON,
		"memory":   a.memory.ExportJSON,
		"calendar": a.calendar.ExportJSON,
	} {
		payload, err := export()
		if err != nil {
			return fmt.Errorf("export %s: %w", name, err)
		}
		if err := os.WriteFile(a.statePath(name), []byte(payload), 0o644); err != nil {
			return fmt.Errorf("write %s state: %w", name, err)
		}
	}
	return nil
}

// turn runs one chat turn and prints the assistant's reply.
func (a *app) turn(ctx context.Context, stdout io.Writer, message string, files []string) error {
	if err := a.runner.Send(ctx, message, files); err != nil {
		return err
	}
	sess := a.sessions.Active()
	if sess == nil {
		return nil
	}
	if msg := sess.Trailing(); msg != nil {
		printMessage(stdout, msg)
	}
	return nil
}

func printMessage(w io.Writer, msg *session.Message) {
	switch msg.Kind {
	case session.KindDivider:
		fmt.Fprintln(w, "----")
		return
	case session.KindError:
		fmt.Fprintf(w, "error: %s\n", msg.Content)
		return
	}

	fmt.Fprintf(w, "%s: %s\n", msg.Role, msg.Content)
	for _, f := range msg.Images {
		fmt.Fprintf(w, "  image: %s\n", f.SaveName)
	}
	for _, item := range msg.SearchItems {
		fmt.Fprintf(w, "  [%s] %s\n", item.DisplayLink, item.Link)
	}
}

// newLogger creates a structured logger writing to w. All log output in
// Quince goes through slog; this helper standardizes the handler
// configuration across subcommands.
func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	}))
}

// loadConfig locates and parses the YAML configuration file. If explicit
// is non-empty, that exact path is used (and must exist). Otherwise,
// [config.FindConfig] searches the default locations. A missing config
// is not fatal: defaults apply, so "quince version" and friends work out
// of the box.
func loadConfig(explicit string) (*config.Config, string, error) {
	cfgPath, err := config.FindConfig(explicit)
	if err != nil {
		if explicit != "" {
			return nil, "", err
		}
		return config.Default(), "", nil
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, cfgPath, fmt.Errorf("load config %s: %w", cfgPath, err)
	}

	return cfg, cfgPath, nil
}
