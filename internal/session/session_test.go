package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"

	"github.com/rbright/refkeep/internal/history"
	"github.com/rbright/refkeep/internal/ipc"
)

type fakeFocuser struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeFocuser) Focus(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeFocuser) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type handoff struct {
	opened   []string
	imported int
}

type fakeIndicator struct {
	mu       sync.Mutex
	handoffs []handoff
	focuses  int
	errors   []string
	hides    int
}

func (f *fakeIndicator) ShowHandoff(_ context.Context, opened []string, imported int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handoffs = append(f.handoffs, handoff{opened: opened, imported: imported})
}

func (f *fakeIndicator) ShowFocus(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.focuses++
}

func (f *fakeIndicator) ShowError(_ context.Context, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, text)
}

func (f *fakeIndicator) Hide(context.Context) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hides++
}

type fakeRecorder struct {
	mu      sync.Mutex
	entries []history.Entry
	err     error
	delay   time.Duration
}

func (f *fakeRecorder) Record(_ context.Context, entry history.Entry) error {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return f.err
}

// startController runs a controller until the returned stop func is called.
func startController(t *testing.T, opts Options) (*Controller, func() Result) {
	t.Helper()

	ctrl := NewController(opts)
	ctx, cancel := context.WithCancel(context.Background())
	results := make(chan Result, 1)
	go func() {
		results <- ctrl.Run(ctx)
	}()

	var once sync.Once
	var result Result
	stop := func() Result {
		once.Do(func() {
			cancel()
			result = <-results
		})
		return result
	}
	t.Cleanup(func() { stop() })
	return ctrl, stop
}

func TestApplyIncomingArgumentsOpensAndActivates(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC))
	focuser := &fakeFocuser{}
	indicator := &fakeIndicator{}
	recorder := &fakeRecorder{}

	ctrl, stop := startController(t, Options{
		Clock:            clock,
		Focuser:          focuser,
		Indicator:        indicator,
		Recorder:         recorder,
		InstanceID:       "inst-1",
		FocusOnArguments: true,
	})

	ctx := context.Background()
	require.NoError(t, ctrl.ApplyIncomingArguments(ctx, []string{"--open=/refs/a.bib", "/refs/b.bib", "--import=/tmp/x.ris"}))

	snap := ctrl.Snapshot()
	require.Len(t, snap.Libraries, 2)
	require.Equal(t, 1, snap.Active)
	active, ok := snap.ActiveLibrary()
	require.True(t, ok)
	require.Equal(t, "/refs/b.bib", active.Path)
	require.Equal(t, []string{"/tmp/x.ris"}, active.Imports)
	require.Equal(t, clock.Now(), active.OpenedAt)

	clock.Advance(time.Minute)
	require.NoError(t, ctrl.ApplyIncomingArguments(ctx, []string{"--open=/refs/a.bib"}))

	snap = ctrl.Snapshot()
	require.Len(t, snap.Libraries, 2, "already open libraries are re-activated")
	require.Equal(t, 0, snap.Active)

	require.Equal(t, 2, focuser.count())
	require.Equal(t, 2, indicator.focuses)
	require.Equal(t, []handoff{
		{opened: []string{"/refs/a.bib", "/refs/b.bib"}, imported: 1},
		{opened: []string{"/refs/a.bib"}, imported: 0},
	}, indicator.handoffs)

	require.Len(t, recorder.entries, 3)
	last := recorder.entries[2]
	require.Equal(t, "inst-1", last.InstanceID)
	require.Equal(t, "/refs/a.bib", last.Path)
	require.Equal(t, history.SourceRemote, last.Source)
	require.Equal(t, clock.Now(), last.OpenedAt)

	result := stop()
	require.NoError(t, result.Err)
	require.Equal(t, 2, result.Applied)
	require.Equal(t, 0, result.Focused)
	require.Len(t, result.Snapshot.Libraries, 2)
}

func TestImportsWithoutLibraryCreateUntitled(t *testing.T) {
	ctrl, _ := startController(t, Options{})

	require.NoError(t, ctrl.ApplyIncomingArguments(context.Background(), []string{"--import=/tmp/one.bib", "-i", "/tmp/two.bib"}))

	snap := ctrl.Snapshot()
	require.Len(t, snap.Libraries, 1)
	require.True(t, snap.Libraries[0].Untitled)
	require.Equal(t, []string{"/tmp/one.bib", "/tmp/two.bib"}, snap.Libraries[0].Imports)
	require.Equal(t, 0, snap.Active)
}

func TestOpenIsLocalAndSilent(t *testing.T) {
	focuser := &fakeFocuser{}
	indicator := &fakeIndicator{}
	recorder := &fakeRecorder{}
	ctrl, _ := startController(t, Options{Focuser: focuser, Indicator: indicator, Recorder: recorder, FocusOnArguments: true})

	require.NoError(t, ctrl.Open(context.Background(), []string{"/refs/local.bib"}))

	require.Zero(t, focuser.count())
	require.Empty(t, indicator.handoffs)
	require.Len(t, recorder.entries, 1)
	require.Equal(t, history.SourceLocal, recorder.entries[0].Source)
}

func TestApplyRejectsMalformedArguments(t *testing.T) {
	indicator := &fakeIndicator{}
	ctrl, stop := startController(t, Options{Indicator: indicator})

	err := ctrl.ApplyIncomingArguments(context.Background(), []string{"--bogus"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "parse launch arguments")
	require.Empty(t, ctrl.Snapshot().Libraries)
	require.Equal(t, []string{""}, indicator.errors)
	require.Zero(t, stop().Applied)
}

func TestApplyToleratesRecorderFailure(t *testing.T) {
	recorder := &fakeRecorder{err: errors.New("disk full")}
	indicator := &fakeIndicator{}
	ctrl, _ := startController(t, Options{Recorder: recorder, Indicator: indicator})

	require.NoError(t, ctrl.ApplyIncomingArguments(context.Background(), []string{"/refs/a.bib", "/refs/b.bib"}))
	require.Len(t, ctrl.Snapshot().Libraries, 2)
	require.Equal(t, []string{"Launch history could not be saved"}, indicator.errors)
	require.Len(t, indicator.handoffs, 1)
}

func TestRunHidesIndicatorOnShutdown(t *testing.T) {
	indicator := &fakeIndicator{}
	_, stop := startController(t, Options{Indicator: indicator})

	stop()
	require.Equal(t, 1, indicator.hides)
}

func TestActionFromDepartedCallerIsNeverApplied(t *testing.T) {
	ctrl, stop := startController(t, Options{})

	for range 20 {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := ctrl.ApplyIncomingArguments(ctx, []string{"/refs/late.bib"})
		require.ErrorIs(t, err, context.Canceled)
	}

	require.Empty(t, ctrl.Snapshot().Libraries)
	require.Zero(t, stop().Applied)
}

func TestAcceptedActionReportsItsOutcomeAfterCallerDeadline(t *testing.T) {
	recorder := &fakeRecorder{delay: 200 * time.Millisecond}
	ctrl, _ := startController(t, Options{Recorder: recorder})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	require.NoError(t, ctrl.ApplyIncomingArguments(ctx, []string{"/refs/slow.bib"}), "an applied launch is never reported as failed")
	require.Len(t, ctrl.Snapshot().Libraries, 1)
}

func TestRequestFocus(t *testing.T) {
	focuser := &fakeFocuser{}
	indicator := &fakeIndicator{}
	ctrl, stop := startController(t, Options{Focuser: focuser, Indicator: indicator})

	require.NoError(t, ctrl.RequestFocus(context.Background()))
	require.Equal(t, 1, focuser.count())
	require.Equal(t, 1, indicator.focuses)

	focuser.mu.Lock()
	focuser.err = errors.New("no window")
	focuser.mu.Unlock()
	require.NoError(t, ctrl.RequestFocus(context.Background()), "focus failures are logged, not returned")
	require.Equal(t, 1, indicator.focuses)

	require.Equal(t, 2, stop().Focused)
}

func TestEnqueueWithoutRunReturnsErrNotRunning(t *testing.T) {
	ctrl := NewController(Options{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := ctrl.RequestFocus(ctx)
	require.ErrorIs(t, err, ErrNotRunning)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEnqueueAfterRunStoppedReturnsErrNotRunning(t *testing.T) {
	ctrl, stop := startController(t, Options{})
	stop()

	require.ErrorIs(t, ctrl.Open(context.Background(), []string{"/refs/a.bib"}), ErrNotRunning)
}

func TestSnapshotIsACopy(t *testing.T) {
	ctrl, _ := startController(t, Options{})
	require.NoError(t, ctrl.ApplyIncomingArguments(context.Background(), []string{"/refs/a.bib", "--import=/tmp/x.bib"}))

	snap := ctrl.Snapshot()
	snap.Libraries[0].Imports[0] = "mutated"
	snap.Libraries[0].Path = "mutated"

	again := ctrl.Snapshot()
	require.Equal(t, "/refs/a.bib", again.Libraries[0].Path)
	require.Equal(t, []string{"/tmp/x.bib"}, again.Libraries[0].Imports)
}

func TestEmptySnapshotHasNoActiveLibrary(t *testing.T) {
	_, ok := NewController(Options{}).Snapshot().ActiveLibrary()
	require.False(t, ok)
}

func TestControllerServesRemoteHandoff(t *testing.T) {
	indicator := &fakeIndicator{}
	ctrl, _ := startController(t, Options{Indicator: indicator})

	server, err := ipc.Listen(ipc.ServerConfig{Host: "127.0.0.1", Port: 0, Timeout: 2 * time.Second}, ctrl, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	serveErr := make(chan error, 1)
	go func() { serveErr <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-serveErr)
	})

	client := ipc.NewClient(ipc.Endpoint{Host: "127.0.0.1", Port: server.Port(), Timeout: 2 * time.Second}, nil)
	require.True(t, client.Ping(context.Background()))
	require.True(t, client.SendCommandLineArguments(context.Background(), []string{"--open=/refs/remote.bib"}))
	require.False(t, client.SendCommandLineArguments(context.Background(), []string{"--unknown-flag"}))
	require.True(t, client.SendFocus(context.Background()))

	snap := ctrl.Snapshot()
	require.Len(t, snap.Libraries, 1)
	require.Equal(t, "/refs/remote.bib", snap.Libraries[0].Path)
	require.Len(t, indicator.handoffs, 1)
}
