package doctor

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rbright/refkeep/internal/config"
	"github.com/rbright/refkeep/internal/ipc"
	"github.com/stretchr/testify/require"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestCheckEnv(t *testing.T) {
	t.Setenv("TEST_DOCTOR_ENV", "abc")

	check := checkEnv("TEST_DOCTOR_ENV", func(v string) bool { return strings.TrimSpace(v) != "" }, "looks good", "unexpected")
	require.True(t, check.Pass)
	require.Equal(t, "looks good", check.Message)
}

func TestCheckCommand(t *testing.T) {
	check := checkCommand(nil, "focus.command")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "command is empty")

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fake-bin"), []byte("#!/usr/bin/env bash\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir+":"+os.Getenv("PATH"))

	check = checkCommand([]string{"fake-bin", "--arg"}, "focus.command")
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "focus.command command is available")
}

func TestCheckBinaryMissing(t *testing.T) {
	check := checkBinary("definitely-not-a-real-binary", "unused")
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "binary not found")
}

func TestCheckConfig(t *testing.T) {
	missing := checkConfig(config.Loaded{Path: "/nope/config.jsonc"})
	require.True(t, missing.Pass)
	require.Contains(t, missing.Message, "using defaults")

	loaded := checkConfig(config.Loaded{Path: "/x/config.toml", Format: config.FormatTOML, Exists: true, Warnings: []config.Warning{{Message: "w"}}})
	require.Equal(t, `loaded "/x/config.toml" (toml), 1 warning(s)`, loaded.Message)
}

func TestCheckRemoteFreePort(t *testing.T) {
	port := freePort(t)
	remote := remoteConfig(port)

	check := checkRemote(context.Background(), remote, clientFor(port))
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "is free")
}

func TestCheckRemoteRunningInstance(t *testing.T) {
	server, err := ipc.Listen(ipc.ServerConfig{Host: "127.0.0.1", Port: 0, Timeout: time.Second}, probeHandler{}, nil)
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.Serve(ctx) }()
	t.Cleanup(func() {
		cancel()
		require.NoError(t, <-done)
	})

	check := checkRemote(context.Background(), remoteConfig(server.Port()), clientFor(server.Port()))
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "refkeep is running")
}

func TestCheckRemoteForeignOwner(t *testing.T) {
	foreign, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = foreign.Close() })
	port := foreign.Addr().(*net.TCPAddr).Port

	check := checkRemote(context.Background(), remoteConfig(port), clientFor(port))
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "another application may be using it")
}

func TestCheckRemoteDisabled(t *testing.T) {
	check := checkRemote(context.Background(), config.RemoteConfig{Enable: false}, nil)
	require.True(t, check.Pass)
	require.Equal(t, "remote operation disabled", check.Message)
}

func TestRunIncludesHistoryAndBackendChecks(t *testing.T) {
	cfg := config.Default()
	cfg.Remote.Enable = false
	cfg.Focus.Backend = "none"
	cfg.Indicator.Backend = "desktop"
	cfg.Indicator.SoundFile = "~/cue.wav"
	cfg.History.Path = filepath.Join(t.TempDir(), "history.db")

	report := Run(context.Background(), config.Loaded{Path: "p", Config: cfg}, nil)

	names := make([]string, 0, len(report.Checks))
	for _, check := range report.Checks {
		names = append(names, check.Name)
	}
	require.Equal(t, []string{"config", "remote.port", "busctl", "pw-play", "history"}, names)
	require.True(t, report.Checks[4].Pass, report.Checks[4].Message)
}

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func remoteConfig(port int) config.RemoteConfig {
	remote := config.Default().Remote
	remote.Port = port
	remote.TimeoutMS = 500
	return remote
}

func clientFor(port int) *ipc.Client {
	return ipc.NewClient(ipc.Endpoint{Host: "127.0.0.1", Port: port, Timeout: 500 * time.Millisecond}, nil)
}
