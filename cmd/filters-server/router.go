package main

import (
	"fmt"
	"io"
	"strings"
)

// CommandHandler handles one command. Handlers write their reply to w, which
// is the connection's buffered writer.
type CommandHandler func(w io.Writer, args []string)

// Router maps upper-cased command names to handlers.
type Router struct {
	handlers map[string]CommandHandler
}

func NewRouter() *Router {
	return &Router{handlers: make(map[string]CommandHandler)}
}

// Handle registers a handler. Command names are case-insensitive.
func (r *Router) Handle(name string, handler CommandHandler) {
	r.handlers[strings.ToUpper(name)] = handler
}

// Dispatch runs the handler for parts[0] with the remaining parts as args.
func (r *Router) Dispatch(app *application, w io.Writer, parts []string) {
	if len(parts) == 0 {
		return
	}

	app.metrics.TotalCommands.Add(1)

	name := strings.ToUpper(parts[0])
	handler, found := r.handlers[name]
	if !found {
		_ = writeError(w, fmt.Sprintf("ERR unknown command '%s'", name))
		return
	}

	handler(w, parts[1:])
}

// commands registers every supported command.
func (app *application) commands() *Router {
	router := NewRouter()

	// Generic
	router.Handle("PING", app.handlePing)
	router.Handle("INFO", app.handleInfo)
	router.Handle("DEL", app.handleDel)
	router.Handle("MEMORY", app.handleMemory)

	// Bloom filters
	router.Handle("BF.RESERVE", app.handleBFReserve)
	router.Handle("BF.ADD", app.handleBFAdd)
	router.Handle("BF.MADD", app.handleBFMAdd)
	router.Handle("BF.EXISTS", app.handleBFExists)
	router.Handle("BF.MEXISTS", app.handleBFMExists)
	router.Handle("BF.INFO", app.handleBFInfo)

	return router
}

func wrongNumberOfArgs(w io.Writer, name string) {
	_ = writeError(w, fmt.Sprintf("ERR wrong number of arguments for '%s' command", name))
}
