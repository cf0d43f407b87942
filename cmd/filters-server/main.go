// filters-server exposes named, in-memory Bloom filters over the Redis
// serialization protocol (RESP), so any Redis client or redis-cli can talk to
// it:
//
//	$ redis-cli -p 6489 BF.RESERVE users 0.01 100000
//	OK
//	$ redis-cli -p 6489 BF.ADD users alice
//	(integer) 1
//	$ redis-cli -p 6489 BF.EXISTS users bob
//	(integer) 0
//
// Configuration
// =============
//
// Settings come from three layers, later ones winning: built-in defaults, an
// optional YAML file (-config), then command-line flags. FILTERS_PORT and
// FILTERS_LOG_LEVEL override the file as well.
//
// Durability
// ==========
//
// There is none. Filters live in memory only and are lost when the process
// exits. A filter is a pre-filter in front of a source of truth, so it can
// always be rebuilt from that source.
//
// Concurrency
// ===========
//
// The bloom package does not synchronise access to a filter. The store adds
// that discipline: every key belongs to one of 256 shards, and each shard has
// an RWMutex. Queries (BF.EXISTS, BF.MEXISTS, BF.INFO) share the lock; inserts
// (BF.ADD, BF.MADD, BF.RESERVE) hold it exclusively.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"filters.lopezb.com/internal/filters/bloom"
	"filters.lopezb.com/internal/filters/config"
	"filters.lopezb.com/internal/filters/logger"
)

type application struct {
	config      *config.Config
	logger      logger.Logger
	listener    net.Listener
	store       *Store
	router      *Router
	metrics     *Metrics
	readyCh     chan struct{}
	wg          sync.WaitGroup
	connLimiter chan struct{}
}

func newApplication(cfg *config.Config, log logger.Logger) *application {
	app := &application{
		config:      cfg,
		logger:      log,
		store:       NewStore(),
		metrics:     NewMetrics(),
		connLimiter: make(chan struct{}, cfg.Server.MaxConnections),
	}
	app.router = app.commands()
	return app
}

func main() {
	var (
		cfgFile         string
		port            int
		maxConnections  int
		shutdownTimeout time.Duration
		idleTimeout     time.Duration
		errorRate       float64
		capacity        uint64
		algorithm       string
		logLevel        string
		logFormat       string
	)

	rootCmd := &cobra.Command{
		Use:           "filters-server",
		Short:         "Serve in-memory Bloom filters over RESP",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("port") {
				cfg.Server.Port = port
			}
			if flags.Changed("max-conn") {
				cfg.Server.MaxConnections = maxConnections
			}
			if flags.Changed("shutdown-timeout") {
				cfg.Server.ShutdownTimeout = shutdownTimeout
			}
			if flags.Changed("idle-timeout") {
				cfg.Server.IdleTimeout = idleTimeout
			}
			if flags.Changed("bf-error-rate") {
				cfg.Filters.ErrorRate = errorRate
			}
			if flags.Changed("bf-capacity") {
				cfg.Filters.Capacity = capacity
			}
			if flags.Changed("bf-algorithm") {
				cfg.Filters.Algorithm = algorithm
			}
			if flags.Changed("log-level") {
				cfg.Logging.Level = logLevel
			}
			if flags.Changed("log-format") {
				cfg.Logging.Format = logFormat
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			app := newApplication(cfg, log)
			if err := app.serve(ctx); err != nil {
				log.Error("server stopped with error", "error", err)
				return err
			}
			return nil
		},
	}

	defaults := config.Default()
	flags := rootCmd.Flags()
	flags.StringVar(&cfgFile, "config", "", "YAML config file")
	flags.IntVar(&port, "port", defaults.Server.Port, "TCP server port")
	flags.IntVar(&maxConnections, "max-conn", defaults.Server.MaxConnections, "Maximum concurrent connections")
	flags.DurationVar(&shutdownTimeout, "shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown timeout")
	flags.DurationVar(&idleTimeout, "idle-timeout", defaults.Server.IdleTimeout, "Idle client connection timeout (0 for no timeout)")
	flags.Float64Var(&errorRate, "bf-error-rate", defaults.Filters.ErrorRate, "False positive rate for filters created by BF.ADD")
	flags.Uint64Var(&capacity, "bf-capacity", defaults.Filters.Capacity, "Expected item count for filters created by BF.ADD")
	flags.StringVar(&algorithm, "bf-algorithm", defaults.Filters.Algorithm, fmt.Sprintf("Hash algorithm %v", bloom.Algorithms()))
	flags.StringVar(&logLevel, "log-level", defaults.Logging.Level, "Log level (debug, info, warn, error)")
	flags.StringVar(&logFormat, "log-format", defaults.Logging.Format, "Log format (json or text)")

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
