// Package session is the running application's state: which libraries are
// open, which one is active, and the queue that applies hand-offs one at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/rbright/refkeep/internal/cli"
	"github.com/rbright/refkeep/internal/history"
	"github.com/rbright/refkeep/internal/ipc"
)

// ErrNotRunning is returned when an action cannot be handed to Run.
var ErrNotRunning = errors.New("session is not running")

var _ ipc.Handler = (*Controller)(nil)

type actionKind int

const (
	actionApply actionKind = iota + 1
	actionFocus
)

type action struct {
	ctx    context.Context
	kind   actionKind
	launch cli.Launch
	source history.Source
	done   chan error
}

// Library is one open library. Untitled libraries have no path.
type Library struct {
	Path     string
	Untitled bool
	Imports  []string
	OpenedAt time.Time
}

// Snapshot is a copy of the open libraries. Active is -1 when none is open.
type Snapshot struct {
	Libraries []Library
	Active    int
}

// ActiveLibrary returns the active library, if any.
func (s Snapshot) ActiveLibrary() (Library, bool) {
	if s.Active < 0 || s.Active >= len(s.Libraries) {
		return Library{}, false
	}
	return s.Libraries[s.Active], true
}

// Result summarizes one Run.
type Result struct {
	StartedAt  time.Time
	FinishedAt time.Time
	Applied    int
	Focused    int
	Snapshot   Snapshot
	Err        error
}

// Focuser brings the application window to the front.
type Focuser interface {
	Focus(context.Context) error
}

// Indicator is the session-facing subset of indicator behavior.
type Indicator interface {
	ShowHandoff(ctx context.Context, opened []string, imported int)
	ShowFocus(context.Context)
	ShowError(context.Context, string)
	Hide(context.Context)
}

// Recorder persists library opens.
type Recorder interface {
	Record(context.Context, history.Entry) error
}

type noopFocuser struct{}

func (noopFocuser) Focus(context.Context) error { return nil }

type noopIndicator struct{}

func (noopIndicator) ShowHandoff(context.Context, []string, int) {}
func (noopIndicator) ShowFocus(context.Context)                  {}
func (noopIndicator) ShowError(context.Context, string)          {}
func (noopIndicator) Hide(context.Context)                       {}

type noopRecorder struct{}

func (noopRecorder) Record(context.Context, history.Entry) error { return nil }

// Options wires a Controller. Nil fields fall back to no-ops.
type Options struct {
	Logger           *slog.Logger
	Clock            clockwork.Clock
	Focuser          Focuser
	Indicator        Indicator
	Recorder         Recorder
	InstanceID       string
	FocusOnArguments bool
}

// Controller owns session state. All mutations happen on the goroutine
// running Run.
type Controller struct {
	logger           *slog.Logger
	clock            clockwork.Clock
	focuser          Focuser
	indicator        Indicator
	recorder         Recorder
	instanceID       string
	focusOnArguments bool

	mu        sync.RWMutex
	libraries []Library
	active    int

	actions chan action
	stopped chan struct{}
	once    sync.Once
}

// NewController constructs a controller with safe default fallbacks.
func NewController(opts Options) *Controller {
	c := &Controller{
		logger:           opts.Logger,
		clock:            opts.Clock,
		focuser:          opts.Focuser,
		indicator:        opts.Indicator,
		recorder:         opts.Recorder,
		instanceID:       opts.InstanceID,
		focusOnArguments: opts.FocusOnArguments,
		active:           -1,
		actions:          make(chan action),
		stopped:          make(chan struct{}),
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.focuser == nil {
		c.focuser = noopFocuser{}
	}
	if c.indicator == nil {
		c.indicator = noopIndicator{}
	}
	if c.recorder == nil {
		c.recorder = noopRecorder{}
	}
	return c
}

// Run applies queued actions until ctx is done. It must be called once.
func (c *Controller) Run(ctx context.Context) Result {
	result := Result{StartedAt: c.clock.Now()}
	defer c.once.Do(func() { close(c.stopped) })

	for {
		select {
		case <-ctx.Done():
			c.indicator.Hide(context.WithoutCancel(ctx))
			result.FinishedAt = c.clock.Now()
			result.Snapshot = c.Snapshot()
			if !errors.Is(ctx.Err(), context.Canceled) {
				result.Err = ctx.Err()
			}
			return result
		case a := <-c.actions:
			if err := a.ctx.Err(); err != nil {
				c.logger.Debug("dropping action whose caller is gone", "error", err.Error())
				a.done <- err
				continue
			}
			var err error
			switch a.kind {
			case actionApply:
				err = c.apply(ctx, a.launch, a.source)
				if err == nil {
					result.Applied++
				}
			case actionFocus:
				c.focus(ctx)
				result.Focused++
			default:
				err = fmt.Errorf("unknown action %d", a.kind)
			}
			a.done <- err
		}
	}
}

// ApplyIncomingArguments applies a launch forwarded by another instance.
func (c *Controller) ApplyIncomingArguments(ctx context.Context, args []string) error {
	launch, err := cli.ParseLaunch(args)
	if err != nil {
		c.indicator.ShowError(ctx, "")
		return err
	}
	return c.enqueue(ctx, action{kind: actionApply, launch: launch, source: history.SourceRemote})
}

// RequestFocus brings the window to the front.
func (c *Controller) RequestFocus(ctx context.Context) error {
	return c.enqueue(ctx, action{kind: actionFocus})
}

// Open applies the primary instance's own launch arguments.
func (c *Controller) Open(ctx context.Context, args []string) error {
	launch, err := cli.ParseLaunch(args)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, action{kind: actionApply, launch: launch, source: history.SourceLocal})
}

// Snapshot returns a copy of the current library state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	libs := make([]Library, len(c.libraries))
	for i, lib := range c.libraries {
		lib.Imports = slices.Clone(lib.Imports)
		libs[i] = lib
	}
	return Snapshot{Libraries: libs, Active: c.active}
}

// enqueue hands a to Run and waits for its outcome. Once Run has taken the
// action the result is always awaited, so an error return means nothing was
// applied.
func (c *Controller) enqueue(ctx context.Context, a action) error {
	a.ctx = ctx
	a.done = make(chan error, 1)

	select {
	case c.actions <- a:
	case <-c.stopped:
		return ErrNotRunning
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrNotRunning, ctx.Err())
	}
	return <-a.done
}

func (c *Controller) apply(ctx context.Context, launch cli.Launch, source history.Source) error {
	now := c.clock.Now()

	c.mu.Lock()
	for _, path := range launch.Libraries {
		idx := slices.IndexFunc(c.libraries, func(lib Library) bool {
			return !lib.Untitled && lib.Path == path
		})
		if idx < 0 {
			c.libraries = append(c.libraries, Library{Path: path, OpenedAt: now})
			idx = len(c.libraries) - 1
		}
		c.active = idx
	}
	if len(launch.Imports) > 0 {
		if c.active < 0 {
			c.libraries = append(c.libraries, Library{Untitled: true, OpenedAt: now})
			c.active = len(c.libraries) - 1
		}
		c.libraries[c.active].Imports = append(c.libraries[c.active].Imports, launch.Imports...)
	}
	c.mu.Unlock()

	recordFailed := false
	for _, path := range launch.Libraries {
		err := c.recorder.Record(ctx, history.Entry{
			InstanceID: c.instanceID,
			Path:       path,
			Source:     source,
			OpenedAt:   now,
		})
		if err != nil {
			recordFailed = true
			c.logger.Warn("record history failed", "path", path, "error", err.Error())
		}
	}
	if recordFailed {
		c.indicator.ShowError(ctx, "Launch history could not be saved")
	}

	c.logger.Info("launch applied",
		"source", string(source),
		"libraries", len(launch.Libraries),
		"imports", len(launch.Imports),
	)

	if source != history.SourceRemote {
		return nil
	}
	c.indicator.ShowHandoff(ctx, launch.Libraries, len(launch.Imports))
	if c.focusOnArguments {
		c.focus(ctx)
	}
	return nil
}

func (c *Controller) focus(ctx context.Context) {
	if err := c.focuser.Focus(ctx); err != nil {
		c.logger.Debug("focus failed", "error", err.Error())
		return
	}
	c.indicator.ShowFocus(ctx)
}
