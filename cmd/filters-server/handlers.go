// handlers.go implements the server-level commands: PING, INFO, DEL and
// MEMORY USAGE.

package main

import (
	"fmt"
	"io"
	"strings"
)

// handlePing handles the PING command.
// Syntax: PING [message]
func (app *application) handlePing(w io.Writer, args []string) {
	switch len(args) {
	case 0:
		_ = writeSimpleString(w, "PONG")
	case 1:
		_ = writeBulkString(w, args[0])
	default:
		wrongNumberOfArgs(w, "PING")
	}
}

// handleInfo handles the INFO command.
// Syntax: INFO
//
// The report uses the Redis INFO layout: "# Section" headers followed by
// CRLF-terminated key:value lines.
func (app *application) handleInfo(w io.Writer, args []string) {
	if len(args) != 0 {
		wrongNumberOfArgs(w, "INFO")
		return
	}

	var b strings.Builder

	b.WriteString("# Server\r\n")
	fmt.Fprintf(&b, "connections_total:%d\r\n", app.metrics.TotalConnections.Load())
	fmt.Fprintf(&b, "connections_active:%d\r\n", len(app.connLimiter))
	fmt.Fprintf(&b, "connections_rejected:%d\r\n", app.metrics.RejectedConnections.Load())
	fmt.Fprintf(&b, "commands_processed_total:%d\r\n", app.metrics.TotalCommands.Load())

	b.WriteString("# Filters\r\n")
	fmt.Fprintf(&b, "filters:%d\r\n", app.store.Len())
	fmt.Fprintf(&b, "items_added_total:%d\r\n", app.metrics.ItemsAdded.Load())
	fmt.Fprintf(&b, "default_error_rate:%g\r\n", app.config.Filters.ErrorRate)
	fmt.Fprintf(&b, "default_capacity:%d\r\n", app.config.Filters.Capacity)
	fmt.Fprintf(&b, "hash_algorithm:%s\r\n", app.config.Filters.Algorithm)

	_ = writeBulkString(w, b.String())
}

// handleDel handles the DEL command.
// Syntax: DEL key [key ...]
//
// Returns the number of keys that existed and were removed.
func (app *application) handleDel(w io.Writer, args []string) {
	if len(args) == 0 {
		wrongNumberOfArgs(w, "DEL")
		return
	}

	var deleted int64
	for _, key := range args {
		if app.store.Delete(key) {
			deleted++
		}
	}

	_ = writeInteger(w, deleted)
}

// handleMemory handles the MEMORY command.
// Syntax: MEMORY USAGE key
func (app *application) handleMemory(w io.Writer, args []string) {
	if len(args) < 1 {
		wrongNumberOfArgs(w, "MEMORY")
		return
	}

	sub := strings.ToUpper(args[0])
	if sub != "USAGE" {
		_ = writeError(w, fmt.Sprintf("ERR unknown subcommand '%s'. Try MEMORY USAGE <key>", sub))
		return
	}
	if len(args) != 2 {
		wrongNumberOfArgs(w, "MEMORY USAGE")
		return
	}

	key := args[1]

	// Approximation: the bit array rounded to 64-bit words, one word per
	// seed, the key itself, plus fixed map/struct overhead.
	const overhead = 128

	var size int64
	found := false
	_ = app.store.View(key, func(e *Entry) error {
		if e == nil {
			return nil
		}
		found = true
		words := (int64(e.Filter.BitCount()) + 63) / 64
		size = words*8 + int64(e.Filter.HashCount())*8 + int64(len(key)) + overhead
		return nil
	})

	if !found {
		_ = writeNil(w)
		return
	}
	_ = writeInteger(w, size)
}
