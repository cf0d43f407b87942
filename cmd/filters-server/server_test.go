package main

import (
	"bufio"
	"context"
	"io"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"filters.lopezb.com/internal/filters/config"
	"filters.lopezb.com/internal/filters/logger"
)

func newTestApp(t *testing.T) *application {
	t.Helper()

	cfg := config.Default()
	cfg.Server.Port = 0 // Use a random free port
	cfg.Server.MaxConnections = 10
	cfg.Server.ShutdownTimeout = time.Second

	app := newApplication(cfg, logger.Nop())
	app.readyCh = make(chan struct{})
	return app
}

// startTestApp runs app.serve until the test ends.
func startTestApp(t *testing.T, app *application) string {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.serve(ctx) }()

	select {
	case <-app.readyCh:
	case err := <-done:
		t.Fatalf("server failed to start: %v", err)
	}

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return app.listener.Addr().String()
}

type testClient struct {
	t      *testing.T
	conn   net.Conn
	reader *bufio.Reader
}

func dialTestClient(t *testing.T, addr string) *testClient {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err, "failed to connect to server")
	t.Cleanup(func() { _ = conn.Close() })

	return &testClient{t: t, conn: conn, reader: bufio.NewReader(conn)}
}

// do sends an inline command and returns the raw reply, including nested
// array elements.
func (c *testClient) do(cmd string) string {
	c.t.Helper()

	_, err := c.conn.Write([]byte(cmd + "\r\n"))
	require.NoError(c.t, err, "failed to write command %q", cmd)

	return c.readReply()
}

func (c *testClient) readReply() string {
	c.t.Helper()

	_ = c.conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	line, err := c.reader.ReadString('\n')
	require.NoError(c.t, err, "failed to read reply")

	switch line[0] {
	case '$':
		n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
		require.NoError(c.t, err)
		if n < 0 {
			return line
		}
		buf := make([]byte, n+2)
		_, err = io.ReadFull(c.reader, buf)
		require.NoError(c.t, err)
		return line + string(buf)
	case '*':
		n, err := strconv.Atoi(strings.TrimSpace(line[1:]))
		require.NoError(c.t, err)
		var b strings.Builder
		b.WriteString(line)
		for i := 0; i < n; i++ {
			b.WriteString(c.readReply())
		}
		return b.String()
	}
	return line
}

func TestPingServer(t *testing.T) {
	app := newTestApp(t)
	client := dialTestClient(t, startTestApp(t, app))

	require.Equal(t, "+PONG\r\n", client.do("PING"))
	require.Equal(t, "$5\r\nhello\r\n", client.do("PING hello"))
	require.Equal(t, "-ERR wrong number of arguments for 'PING' command\r\n", client.do("PING a b"))
}

func TestRESPArrayCommand(t *testing.T) {
	app := newTestApp(t)
	client := dialTestClient(t, startTestApp(t, app))

	_, err := client.conn.Write([]byte("*3\r\n$6\r\nBF.ADD\r\n$5\r\nusers\r\n$11\r\nhello world\r\n"))
	require.NoError(t, err)
	require.Equal(t, ":1\r\n", client.readReply())

	require.Equal(t, ":0\r\n", client.do("BF.EXISTS users hello"))

	_, err = client.conn.Write([]byte("*3\r\n$9\r\nBF.EXISTS\r\n$5\r\nusers\r\n$11\r\nhello world\r\n"))
	require.NoError(t, err)
	require.Equal(t, ":1\r\n", client.readReply())
}

func TestPipelining(t *testing.T) {
	app := newTestApp(t)
	client := dialTestClient(t, startTestApp(t, app))

	_, err := client.conn.Write([]byte("BF.ADD p a\r\nBF.ADD p a\r\nBF.EXISTS p a\r\nPING\r\n"))
	require.NoError(t, err)

	require.Equal(t, ":1\r\n", client.readReply())
	require.Equal(t, ":0\r\n", client.readReply())
	require.Equal(t, ":1\r\n", client.readReply())
	require.Equal(t, "+PONG\r\n", client.readReply())
}

func TestBlankLinesIgnored(t *testing.T) {
	app := newTestApp(t)
	client := dialTestClient(t, startTestApp(t, app))

	_, err := client.conn.Write([]byte("\r\n\r\nPING\r\n"))
	require.NoError(t, err)
	require.Equal(t, "+PONG\r\n", client.readReply())
	require.Equal(t, uint64(1), app.metrics.TotalCommands.Load())
}

func TestUnknownCommand(t *testing.T) {
	app := newTestApp(t)
	client := dialTestClient(t, startTestApp(t, app))

	require.Equal(t, "-ERR unknown command 'NOPE'\r\n", client.do("nope"))
	require.Equal(t, "+PONG\r\n", client.do("ping"))
}

func TestProtocolErrorClosesConnection(t *testing.T) {
	app := newTestApp(t)
	client := dialTestClient(t, startTestApp(t, app))

	_, err := client.conn.Write([]byte("*1\r\n:5\r\n"))
	require.NoError(t, err)
	require.Equal(t, "-ERR protocol error: invalid syntax\r\n", client.readReply())

	_ = client.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = client.reader.ReadByte()
	require.Error(t, err, "connection should be closed after a protocol error")
}

// TestConnectionLimiter verifies that the server correctly limits the number
// of concurrent connections.
func TestConnectionLimiter(t *testing.T) {
	app := newTestApp(t)
	app.config.Server.MaxConnections = 1
	app.connLimiter = make(chan struct{}, 1)
	addr := startTestApp(t, app)

	// Use up the single connection slot.
	hog := dialTestClient(t, addr)
	require.Equal(t, "+PONG\r\n", hog.do("PING"))

	rejected := dialTestClient(t, addr)
	require.Equal(t, "-ERR max number of clients reached\r\n", rejected.readReply())

	// Rejecting the second connection must not affect the first.
	require.Equal(t, "+PONG\r\n", hog.do("PING"))
	require.Equal(t, uint64(1), app.metrics.RejectedConnections.Load())
}

func TestGracefulShutdown(t *testing.T) {
	app := newTestApp(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- app.serve(ctx) }()
	<-app.readyCh

	addr := app.listener.Addr().String()
	client := dialTestClient(t, addr)
	require.Equal(t, "+PONG\r\n", client.do("PING"))
	require.NoError(t, client.conn.Close())

	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}

	_, err := net.DialTimeout("tcp", addr, 200*time.Millisecond)
	require.Error(t, err, "listener should be closed after shutdown")
}

func TestShutdownTimeoutWithOpenConnection(t *testing.T) {
	app := newTestApp(t)
	app.config.Server.ShutdownTimeout = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- app.serve(ctx) }()
	<-app.readyCh

	// An idle client that never disconnects.
	client := dialTestClient(t, app.listener.Addr().String())
	require.Equal(t, "+PONG\r\n", client.do("PING"))

	start := time.Now()
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
		require.Less(t, time.Since(start), 2*time.Second)
	case <-time.After(3 * time.Second):
		t.Fatal("shutdown timeout was not honoured")
	}
}

func TestIdleTimeout(t *testing.T) {
	app := newTestApp(t)
	app.config.Server.IdleTimeout = 50 * time.Millisecond
	client := dialTestClient(t, startTestApp(t, app))

	require.Equal(t, "+PONG\r\n", client.do("PING"))

	_ = client.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err := client.reader.ReadByte()
	require.Error(t, err, "idle connection should be closed by the server")
}
