// Package extractor hosts long-running extraction processes: it wires
// configuration, logging, metrics and a state store, runs the extractor
// with restart-on-failure, and shuts it down on SIGINT and SIGTERM.
package extractor

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/abhissng/cortex/adapters/config"
	"github.com/abhissng/cortex/adapters/log"
	"github.com/abhissng/cortex/adapters/metrics"
	"github.com/abhissng/cortex/statestore"
)

// Environment bundles the resources the Runner prepares for an
// extractor before its Run method is called.
type Environment struct {
	Config  *config.Config
	Logger  *log.Log
	Metrics *metrics.BatchMetrics
	States  *statestore.RangeStore
}

// Extractor is a long-running extraction process. Run should block
// until the context is cancelled or a fatal error occurs.
type Extractor interface {
	Run(ctx context.Context, env Environment) error
}

// ExtractorFunc adapts a plain function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, env Environment) error

// Run implements Extractor.
func (f ExtractorFunc) Run(ctx context.Context, env Environment) error {
	return f(ctx, env)
}

// Runner hosts a single extractor.
type Runner struct {
	name           string
	cfg            *config.Config
	restartOnError bool
	restartBackoff time.Duration
	maxBackoff     time.Duration
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithConfig supplies a pre-loaded configuration, skipping the file
// lookup.
func WithConfig(cfg *config.Config) RunnerOption {
	return func(r *Runner) {
		r.cfg = cfg
	}
}

// WithRestartOnError makes the runner restart the extractor after a
// failure instead of exiting, with exponential backoff between
// attempts.
func WithRestartOnError(enabled bool) RunnerOption {
	return func(r *Runner) {
		r.restartOnError = enabled
	}
}

// WithRestartBackoff sets the initial and maximum delay between
// restarts.
func WithRestartBackoff(initial, max time.Duration) RunnerOption {
	return func(r *Runner) {
		if initial > 0 {
			r.restartBackoff = initial
		}
		if max > 0 {
			r.maxBackoff = max
		}
	}
}

// NewRunner creates a Runner for the named extractor.
func NewRunner(name string, opts ...RunnerOption) *Runner {
	r := &Runner{
		name:           name,
		restartBackoff: time.Second,
		maxBackoff:     5 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run prepares the environment and drives the extractor until the
// process receives SIGINT or SIGTERM, the context is cancelled, or the
// extractor fails without restarts enabled.
func (r *Runner) Run(ctx context.Context, ext Extractor) error {
	cfg := r.cfg
	if cfg == nil {
		loaded, err := config.NewLoader(r.name, "yaml", ".").Load()
		if err != nil {
			return err
		}
		cfg = loaded
	}

	logger, err := log.NewLogger(log.NewLoggerConfig(cfg.Logger.Production,
		log.WithServiceName(cfg.Logger.Service),
		log.WithRotationFile(cfg.Logger.RotationFile)))
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	// Prometheus namespaces cannot contain dashes.
	batchMetrics := metrics.NewBatchMetrics(strings.ReplaceAll(r.name, "-", "_"))

	store, err := openStore(ctx, cfg.StateStore)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	states := statestore.NewRangeStore(store, r.name,
		statestore.WithFlushInterval(cfg.StateStore.FlushInterval),
		statestore.WithRangeLogger(logger))
	if err := states.InitFromStore(ctx); err != nil {
		return fmt.Errorf("extractor: failed to load extraction states: %w", err)
	}

	runCtx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	states.Start(runCtx)

	env := Environment{
		Config:  cfg,
		Logger:  logger,
		Metrics: batchMetrics,
		States:  states,
	}

	logger.Info("extractor starting", log.String("name", r.name))
	runErr := r.loop(runCtx, ext, env)

	flushCtx, flushCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer flushCancel()
	if err := states.Stop(flushCtx); err != nil {
		logger.Error("final state flush failed", log.Err(err))
	}

	if runErr != nil && runCtx.Err() == nil {
		logger.Error("extractor failed", log.String("name", r.name), log.Err(runErr))
		return runErr
	}
	logger.Info("extractor stopped", log.String("name", r.name))
	return nil
}

func (r *Runner) loop(ctx context.Context, ext Extractor, env Environment) error {
	backoff := r.restartBackoff
	for {
		err := ext.Run(ctx, env)
		if ctx.Err() != nil {
			return nil
		}
		if err == nil {
			return nil
		}
		if !r.restartOnError {
			return err
		}

		env.Logger.Warn("extractor run failed, restarting",
			log.String("name", r.name),
			log.Duration("backoff", backoff),
			log.Err(err))

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil
		}
		backoff *= 2
		if backoff > r.maxBackoff {
			backoff = r.maxBackoff
		}
	}
}

func openStore(ctx context.Context, cfg config.StateStoreConfig) (statestore.Store, error) {
	switch cfg.Backend {
	case "redis":
		return statestore.NewRedisStore(statestore.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
	case "postgres":
		return statestore.NewPostgresStore(ctx, statestore.PostgresOptions{
			DSN:       cfg.Postgres.DSN,
			TableName: cfg.Postgres.Table,
		})
	default:
		return statestore.NewMemoryStore(), nil
	}
}
