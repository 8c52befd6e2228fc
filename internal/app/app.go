package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rbright/refkeep/internal/cli"
	"github.com/rbright/refkeep/internal/config"
	"github.com/rbright/refkeep/internal/doctor"
	"github.com/rbright/refkeep/internal/focus"
	"github.com/rbright/refkeep/internal/history"
	"github.com/rbright/refkeep/internal/indicator"
	"github.com/rbright/refkeep/internal/ipc"
	"github.com/rbright/refkeep/internal/logging"
	"github.com/rbright/refkeep/internal/session"
	"github.com/rbright/refkeep/internal/version"
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger

	// Getwd resolves relative launch paths. Defaults to os.Getwd.
	Getwd func() (string, error)
	// Ready is called once a primary instance is applying hand-offs.
	Ready func(port int)
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(version.Name))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(version.Name))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := logging.New()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	if err := logRuntime.SetLevel(cfgLoaded.Config.Log.Level); err != nil {
		logger.Warn("invalid log level", "level", cfgLoaded.Config.Log.Level, "error", err.Error())
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	cfg := cfgLoaded.Config
	if parsed.Port != 0 {
		cfg.Remote.Port = parsed.Port
		cfgLoaded.Config = cfg
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"port", cfg.Remote.Port,
		"log", logRuntime.Path,
	)

	client := ipc.NewClient(ipc.Endpoint{
		Host:    cfg.Remote.Host,
		Port:    cfg.Remote.Port,
		Timeout: cfg.Remote.Timeout(),
	}, logger)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded, client)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandPing:
		if client.Ping(ctx) {
			fmt.Fprintf(r.Stdout, "running (port %d)\n", cfg.Remote.Port)
		} else {
			fmt.Fprintln(r.Stdout, "not running")
		}
		return 0
	case cli.CommandFocus:
		if !client.Ping(ctx) {
			fmt.Fprintln(r.Stderr, "error: no running refkeep instance")
			return 1
		}
		return r.forward(ctx, client, cli.Launch{})
	case cli.CommandRecent:
		return r.commandRecent(ctx, cfg.History, parsed.Limit)
	case cli.CommandOpen:
		return r.commandOpen(ctx, cfg, client, parsed.Args, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandOpen(ctx context.Context, cfg config.Config, client *ipc.Client, args []string, logger *slog.Logger) int {
	launch, err := cli.ParseLaunch(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 2
	}

	getwd := r.Getwd
	if getwd == nil {
		getwd = os.Getwd
	}
	cwd, err := getwd()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: resolve working directory: %v\n", err)
		return 1
	}
	launch = launch.Resolve(cwd)

	if cfg.Remote.Enable && client.Ping(ctx) {
		return r.forward(ctx, client, launch)
	}
	return r.runPrimary(ctx, cfg, client, launch, logger)
}

// forward hands the launch to the running instance. An empty launch only
// raises its window.
func (r Runner) forward(ctx context.Context, client *ipc.Client, launch cli.Launch) int {
	var ok bool
	if launch.Empty() {
		ok = client.SendFocus(ctx)
	} else {
		ok = client.SendCommandLineArguments(ctx, launch.Args())
	}
	if !ok {
		fmt.Fprintln(r.Stderr, "error: running instance did not accept the request")
		return 1
	}
	fmt.Fprintf(r.Stdout, "handed off to running instance (port %d)\n", client.Endpoint().Port)
	return 0
}

// runPrimary becomes the primary instance: it binds the remote port (unless
// remote operation is disabled), applies its own launch and serves hand-offs
// until ctx is done.
func (r Runner) runPrimary(ctx context.Context, cfg config.Config, client *ipc.Client, launch cli.Launch, logger *slog.Logger) int {
	instanceID := uuid.NewString()
	logger = logger.With("instance", instanceID)

	var recorder session.Recorder
	if cfg.History.Enable {
		store, err := openHistory(ctx, cfg.History)
		if err != nil {
			fmt.Fprintf(r.Stderr, "warning: launch history unavailable: %v\n", err)
			logger.Warn("open history failed", "error", err.Error())
		} else {
			defer func() { _ = store.Close() }()
			recorder = store
		}
	}

	notifier := indicator.New(cfg.Indicator, logger)
	defer notifier.Wait()

	controller := session.NewController(session.Options{
		Logger:           logger,
		Focuser:          focus.New(cfg.Focus, logger),
		Indicator:        notifier,
		Recorder:         recorder,
		InstanceID:       instanceID,
		FocusOnArguments: cfg.Remote.FocusOnArguments,
	})

	var server *ipc.Server
	if cfg.Remote.Enable {
		var err error
		server, err = ipc.Acquire(ctx, serverConfig(cfg.Remote), client, controller, logger)
		switch {
		case errors.Is(err, ipc.ErrAlreadyRunning):
			logger.Info("lost startup race; forwarding", "port", cfg.Remote.Port)
			return r.forward(ctx, client, launch)
		case err != nil:
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			logger.Error("acquire remote port failed", "port", cfg.Remote.Port, "error", err.Error())
			return 1
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	results := make(chan session.Result, 1)
	g.Go(func() error {
		results <- controller.Run(gctx)
		return nil
	})

	port := 0
	if server != nil {
		port = server.Port()
		g.Go(func() error {
			return server.Serve(gctx)
		})
	}

	if !launch.Empty() {
		if err := controller.Open(gctx, launch.Args()); err != nil {
			fmt.Fprintf(r.Stderr, "warning: open launch arguments: %v\n", err)
			logger.Warn("apply own launch failed", "error", err.Error())
		}
	}

	logger.Info("primary instance started", "port", port, "remote", server != nil)
	if r.Ready != nil {
		r.Ready(port)
	}

	err := g.Wait()
	result := <-results
	logSessionResult(logger, result)

	if err != nil {
		fmt.Fprintf(r.Stderr, "error: remote server failed: %v\n", err)
		return 1
	}
	if result.Err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", result.Err)
		return 1
	}

	fmt.Fprintf(r.Stdout, "stopped: %d launch(es) applied, %d focus request(s), %d librar%s open\n",
		result.Applied, result.Focused, len(result.Snapshot.Libraries), plural(len(result.Snapshot.Libraries), "y", "ies"))
	return 0
}

func (r Runner) commandRecent(ctx context.Context, cfg config.HistoryConfig, limit int) int {
	if !cfg.Enable {
		fmt.Fprintln(r.Stderr, "error: launch history is disabled (history.enable=false)")
		return 1
	}
	if limit <= 0 {
		limit = cfg.RecentLimit
	}

	store, err := openHistory(ctx, cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	visits, err := store.Recent(ctx, limit)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(visits) == 0 {
		fmt.Fprintln(r.Stdout, "no recent libraries")
		return 0
	}
	for _, v := range visits {
		fmt.Fprintf(r.Stdout, "%s  %s  (%d open%s)\n",
			v.LastOpen.Local().Format(time.DateTime), v.Path, v.Opens, plural(v.Opens, "", "s"))
	}
	return 0
}

func serverConfig(remote config.RemoteConfig) ipc.ServerConfig {
	return ipc.ServerConfig{
		Host:           remote.Host,
		Port:           remote.Port,
		Timeout:        remote.Timeout(),
		MaxConnections: remote.MaxConnections,
		AcceptRate:     remote.AcceptRate,
		AcceptBurst:    remote.AcceptBurst,
	}
}

func openHistory(ctx context.Context, cfg config.HistoryConfig) (*history.Store, error) {
	path, err := history.ResolvePath(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve history path: %w", err)
	}
	return history.Open(ctx, path)
}

func logSessionResult(logger *slog.Logger, result session.Result) {
	if logger == nil {
		return
	}
	fields := []any{
		"started_at", result.StartedAt.Format(time.RFC3339Nano),
		"finished_at", result.FinishedAt.Format(time.RFC3339Nano),
		"duration_ms", result.FinishedAt.Sub(result.StartedAt).Milliseconds(),
		"applied", result.Applied,
		"focused", result.Focused,
		"libraries", len(result.Snapshot.Libraries),
	}

	if result.Err != nil {
		logger.Error("session failed", append(fields, "error", result.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
