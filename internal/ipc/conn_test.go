package ipc

import (
	"bufio"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDialRefusedOnClosedPort(t *testing.T) {
	port := closedPort(t)

	_, err := Dial(context.Background(), "127.0.0.1", port, time.Second)
	require.Error(t, err)
	require.ErrorIs(t, err, ErrConnect)

	var connectErr *ConnectError
	require.True(t, errors.As(err, &connectErr))
	require.Equal(t, ConnectRefused, connectErr.Reason)
}

func TestDialCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Dial(ctx, "127.0.0.1", closedPort(t), time.Second)
	require.ErrorIs(t, err, ErrConnect)
}

func TestConnSendReceive(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	done := make(chan Message, 1)
	go func() {
		msg, err := ReadFrame(bufio.NewReader(server))
		if err != nil {
			done <- nil
			return
		}
		done <- msg
		_ = WriteFrame(server, OK{})
	}()

	conn := NewConn(client, time.Second)
	require.NoError(t, conn.Send(CommandLineArguments{Args: []string{"--open", "a.bib"}}))
	require.Equal(t, CommandLineArguments{Args: []string{"--open", "a.bib"}}, <-done)

	reply, err := conn.Receive()
	require.NoError(t, err)
	require.Equal(t, OK{}, reply)
}

func TestConnReceiveTimeout(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := NewConn(client, 50*time.Millisecond)
	start := time.Now()
	_, err := conn.Receive()
	require.ErrorIs(t, err, ErrTimeout)
	require.Less(t, time.Since(start), 2*time.Second)
}

func TestConnReceiveAfterPeerClose(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	require.NoError(t, server.Close())

	conn := NewConn(client, time.Second)
	_, err := conn.Receive()
	require.ErrorIs(t, err, ErrIO)
	require.NotErrorIs(t, err, ErrDecoding)
}

func TestConnReceiveMalformedFrame(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	go func() {
		_, _ = server.Write(frameOf(kindBody(42)))
	}()

	conn := NewConn(client, time.Second)
	_, err := conn.Receive()
	require.ErrorIs(t, err, ErrDecoding)
}

func TestConnSendErrors(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()

	conn := NewConn(client, time.Second)
	require.ErrorIs(t, conn.Send(nil), ErrEncoding)

	require.NoError(t, server.Close())
	err := conn.Send(Ping{})
	require.ErrorIs(t, err, ErrIO)
	require.Contains(t, err.Error(), "send PING")
}

func TestConnSendTimeoutWhenPeerNeverReads(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	conn := NewConn(client, 50*time.Millisecond)
	require.ErrorIs(t, conn.Send(Focus{}), ErrTimeout)
}

func TestConnCloseIsIdempotent(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	conn := NewConn(client, time.Second)
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())
}

func closedPort(t *testing.T) int {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())
	return port
}
