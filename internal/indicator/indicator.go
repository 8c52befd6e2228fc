// Package indicator handles hand-off notifications and audio cue playback.
package indicator

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/rbright/refkeep/internal/config"
	"github.com/rbright/refkeep/internal/hypr"
)

// Notifier routes notifications via Hyprland or desktop DBus based on the
// configured backend.
type Notifier struct {
	cfg      config.IndicatorConfig
	logger   *slog.Logger
	messages messages

	mu                    sync.Mutex
	desktopNotificationID uint32
	soundMu               sync.Mutex
	cueWG                 sync.WaitGroup
}

// New creates a notifier from config.
func New(cfg config.IndicatorConfig, logger *slog.Logger) *Notifier {
	return &Notifier{
		cfg:      cfg,
		logger:   logger,
		messages: indicatorMessagesFromEnv(),
	}
}

// ShowHandoff announces libraries and imports forwarded by another launch.
func (n *Notifier) ShowHandoff(ctx context.Context, opened []string, imported int) {
	n.playCue(ctx, cueHandoff)
	if !n.cfg.Enable {
		return
	}
	text := n.messages.handoff(opened, imported)
	if text == "" {
		return
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, 1, n.timeoutMS(), "rgb(89b4fa)", text)
	})
}

// ShowFocus signals that the window was brought to the front on request.
func (n *Notifier) ShowFocus(ctx context.Context) {
	n.playCue(ctx, cueFocus)
}

// ShowError displays an error-state message.
func (n *Notifier) ShowError(ctx context.Context, text string) {
	if !n.cfg.Enable {
		return
	}
	if text == "" {
		text = n.messages.errorText
	}
	n.run(ctx, func(ctx context.Context) error {
		return n.notify(ctx, 3, n.timeoutMS(), "rgb(f38ba8)", text)
	})
}

// Hide dismisses the active notification.
func (n *Notifier) Hide(ctx context.Context) {
	if !n.cfg.Enable {
		return
	}
	n.run(ctx, n.dismiss)
}

// Wait blocks until queued cues finish playing.
func (n *Notifier) Wait() {
	n.cueWG.Wait()
}

func (n *Notifier) timeoutMS() int {
	if n.cfg.TimeoutMS <= 0 {
		return 2500
	}
	return n.cfg.TimeoutMS
}

func (n *Notifier) desktopBackend() bool {
	return strings.EqualFold(strings.TrimSpace(n.cfg.Backend), "desktop")
}

func (n *Notifier) notify(ctx context.Context, icon int, timeoutMS int, color string, text string) error {
	if n.desktopBackend() {
		return n.notifyDesktop(ctx, timeoutMS, text)
	}
	return hypr.Notify(ctx, icon, timeoutMS, color, text)
}

func (n *Notifier) dismiss(ctx context.Context) error {
	if n.desktopBackend() {
		return n.dismissDesktop(ctx)
	}
	return hypr.DismissNotify(ctx)
}

// notifyDesktop sends a replaceable desktop notification and stores its ID.
func (n *Notifier) notifyDesktop(ctx context.Context, timeoutMS int, text string) error {
	n.mu.Lock()
	replaceID := n.desktopNotificationID
	n.mu.Unlock()

	appName := strings.TrimSpace(n.cfg.DesktopAppName)
	if appName == "" {
		appName = "refkeep"
	}

	id, err := desktopNotify(ctx, appName, replaceID, text, timeoutMS)
	if err != nil {
		return err
	}

	n.mu.Lock()
	n.desktopNotificationID = id
	n.mu.Unlock()
	return nil
}

func (n *Notifier) dismissDesktop(ctx context.Context) error {
	n.mu.Lock()
	id := n.desktopNotificationID
	n.desktopNotificationID = 0
	n.mu.Unlock()

	if id == 0 {
		return nil
	}
	return desktopDismiss(ctx, id)
}

// run executes an indicator operation with a bounded timeout.
func (n *Notifier) run(ctx context.Context, fn func(context.Context) error) {
	runCtx, cancel := context.WithTimeout(ctx, 400*time.Millisecond)
	defer cancel()
	if err := fn(runCtx); err != nil {
		n.log("indicator dispatch failed", err)
	}
}

// playCue serializes cue playback and emits audio asynchronously.
func (n *Notifier) playCue(ctx context.Context, kind cueKind) {
	if !n.cfg.SoundEnable {
		return
	}
	ctx = context.WithoutCancel(ctx)
	n.cueWG.Add(1)
	go func() {
		defer n.cueWG.Done()
		n.soundMu.Lock()
		defer n.soundMu.Unlock()
		if err := emitCue(ctx, kind, n.cfg); err != nil {
			n.log("indicator audio cue failed", err)
		}
	}()
}

func (n *Notifier) log(message string, err error) {
	if n.logger == nil || err == nil {
		return
	}
	n.logger.Debug(message, "error", err.Error())
}
