package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/google/uuid"
)

const (
	writeTimeout              = 5 * time.Second
	rejectionTimeout          = 500 * time.Millisecond
	errMaxConnectionsResponse = "-ERR max number of clients reached\r\n"
)

// serve accepts connections until ctx is cancelled, then waits for in-flight
// connections to finish (bounded by the shutdown timeout).
func (app *application) serve(ctx context.Context) error {
	//
	// DESIGN
	// ------
	//
	// The connection limit is a buffered channel used as a semaphore. A
	// non-blocking send is a try-acquire: when the buffer is full the client
	// gets an error line and is closed immediately.
	//
	// Shutdown is driven by ctx (main wires it to SIGINT/SIGTERM). Closing the
	// listener unblocks Accept; the WaitGroup tracks handlers still running.
	//
	addr := fmt.Sprintf(":%d", app.config.Server.Port)

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	app.listener = ln
	serverAddr := ln.Addr().String()

	if app.readyCh != nil {
		close(app.readyCh)
	}

	shutdownError := make(chan error, 1)
	go func() {
		<-ctx.Done()

		app.logger.Info("shutting down server", "address", serverAddr)

		if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			shutdownError <- err
			return
		}

		wgDone := make(chan struct{})
		go func() {
			app.wg.Wait()
			close(wgDone)
		}()

		timer := time.NewTimer(app.config.Server.ShutdownTimeout)
		defer timer.Stop()

		select {
		case <-wgDone:
			shutdownError <- nil
		case <-timer.C:
			shutdownError <- context.DeadlineExceeded
		}
	}()

	app.logger.Info("server starting", "address", serverAddr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			app.logger.Error("failed to accept connection", "error", err, "address", serverAddr)
			continue
		}

		select {
		case app.connLimiter <- struct{}{}:
			app.wg.Add(1)
			go app.handleConnection(conn)
		default:
			app.metrics.RejectedConnections.Add(1)
			app.logger.Warn("rejecting connection, limit reached", "remote_addr", conn.RemoteAddr().String())

			// A client that never reads must not stall the accept loop.
			_ = conn.SetWriteDeadline(time.Now().Add(rejectionTimeout))
			_, _ = io.WriteString(conn, errMaxConnectionsResponse)
			_ = conn.Close()
		}
	}

	// The listener was closed outside of a shutdown (tests do this); there
	// is nothing to drain.
	if ctx.Err() == nil {
		return nil
	}

	err = <-shutdownError
	if errors.Is(err, context.DeadlineExceeded) {
		app.logger.Warn("shutdown timeout reached with connections still open", "address", serverAddr)
		return nil
	}
	if err != nil {
		return err
	}

	app.logger.Info("server stopped gracefully", "address", serverAddr)
	return nil
}

// handleConnection runs the request/response loop for a single client.
func (app *application) handleConnection(conn net.Conn) {
	//
	// DESIGN
	// ------
	//
	// Responses go through a 4KB bufio.Writer. After each command we only
	// flush when the parser has nothing buffered: a pipelining client gets
	// all of its responses in one write instead of one syscall per command.
	//
	defer func() { <-app.connLimiter }()
	defer app.wg.Done()
	defer func() { _ = conn.Close() }()

	app.metrics.TotalConnections.Add(1)

	log := app.logger.With("conn_id", uuid.NewString(), "remote_addr", conn.RemoteAddr().String())
	log.Debug("new connection")

	parser := NewParser(conn)
	writer := bufio.NewWriterSize(conn, 4096)

	// Responses to commands that were processed before a parse error must
	// still reach the client.
	defer func() { _ = writer.Flush() }()

	for {
		if app.config.Server.IdleTimeout > 0 {
			if err := conn.SetReadDeadline(time.Now().Add(app.config.Server.IdleTimeout)); err != nil {
				log.Error("failed to set read deadline", "error", err)
				return
			}
		}

		parts, err := parser.Parse()
		if err != nil {
			if errors.Is(err, io.EOF) {
				log.Debug("client disconnected")
				return
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}

			log.Warn("parser error", "error", err)
			var perr protocolError
			if errors.As(err, &perr) {
				_ = writeError(writer, perr.Error())
			}
			return
		}

		app.router.Dispatch(app, writer, parts)

		if parser.Buffered() == 0 {
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := writer.Flush(); err != nil {
				log.Error("failed to flush response", "error", err)
				return
			}
		}
	}
}
