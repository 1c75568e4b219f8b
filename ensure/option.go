package ensure

import (
	"time"

	"github.com/abhissng/cortex/adapters/log"
	"github.com/abhissng/cortex/sanitize"
)

const (
	defaultChunkSize    = 1000
	defaultThrottleSize = 1

	// defaultDuplicateBackoff is the base of the exponential backoff
	// applied between duplicate-conflict re-fetch rounds: base * 2^attempt.
	defaultDuplicateBackoff = 100 * time.Millisecond
	// defaultFatalRetryDelay is the constant delay between fatal-failure
	// retries. Fatal failures are expected to be transient infrastructure
	// issues, so the delay does not grow.
	defaultFatalRetryDelay = time.Second

	defaultMaxDuplicateRetries       = 5
	defaultMaxVersionConflictRetries = 5
)

// Config holds the tunables of one orchestrated run.
type Config struct {
	ChunkSize    int
	ThrottleSize int
	RetryMode    RetryMode
	Sanitation   sanitize.Mode

	DuplicateBackoff    time.Duration
	FatalRetryDelay     time.Duration
	MaxDuplicateRetries int
	// MaxVersionConflictRetries bounds the immediate-retry loop used for
	// optimistic-concurrency conflicts on updates.
	MaxVersionConflictRetries int

	// Progress, when set, is invoked with the running completed-chunk
	// count after each chunk settles. Diagnostic only.
	Progress func(completed int)

	Logger *log.Log
}

// Option is a functional option type for configuring a run.
type Option func(*Config)

// NewConfig builds a run configuration from defaults and options.
func NewConfig(opts ...Option) *Config {
	cfg := &Config{
		ChunkSize:                 defaultChunkSize,
		ThrottleSize:              defaultThrottleSize,
		RetryMode:                 RetryOnError,
		Sanitation:                sanitize.None,
		DuplicateBackoff:          defaultDuplicateBackoff,
		FatalRetryDelay:           defaultFatalRetryDelay,
		MaxDuplicateRetries:       defaultMaxDuplicateRetries,
		MaxVersionConflictRetries: defaultMaxVersionConflictRetries,
		Logger:                    log.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithChunkSize sets the number of items per remote request.
func WithChunkSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.ChunkSize = size
		}
	}
}

// WithThrottleSize sets how many chunks may be in flight concurrently.
func WithThrottleSize(size int) Option {
	return func(c *Config) {
		if size > 0 {
			c.ThrottleSize = size
		}
	}
}

// WithRetryMode sets the failure handling policy.
func WithRetryMode(mode RetryMode) Option {
	return func(c *Config) {
		c.RetryMode = mode
	}
}

// WithSanitation sets the pre-flight sanitation mode.
func WithSanitation(mode sanitize.Mode) Option {
	return func(c *Config) {
		c.Sanitation = mode
	}
}

// WithProgress installs a completed-chunk-count callback.
func WithProgress(fn func(completed int)) Option {
	return func(c *Config) {
		c.Progress = fn
	}
}

// WithLogger sets the run logger.
func WithLogger(logger *log.Log) Option {
	return func(c *Config) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithFatalRetryDelay overrides the constant fatal-failure retry delay.
func WithFatalRetryDelay(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.FatalRetryDelay = d
		}
	}
}

// WithDuplicateBackoff overrides the duplicate-conflict backoff base.
func WithDuplicateBackoff(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.DuplicateBackoff = d
		}
	}
}

// WithMaxDuplicateRetries bounds the duplicate-conflict re-fetch loop.
func WithMaxDuplicateRetries(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.MaxDuplicateRetries = n
		}
	}
}
