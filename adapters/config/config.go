// Package config loads and validates the library's YAML configuration.
package config

import (
	"time"
)

// Config is the root configuration for the batch helpers and the
// extractor runtime.
type Config struct {
	Logger     LoggerConfig     `mapstructure:"logger" yaml:"logger"`
	Throttle   ThrottleConfig   `mapstructure:"throttle" yaml:"throttle"`
	Retry      RetryConfig      `mapstructure:"retry" yaml:"retry"`
	StateStore StateStoreConfig `mapstructure:"state-store" yaml:"state-store"`
	Uploader   UploaderConfig   `mapstructure:"uploader" yaml:"uploader"`
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Production   bool   `mapstructure:"production" yaml:"production"`
	Service      string `mapstructure:"service" yaml:"service"`
	RotationFile string `mapstructure:"rotation-file" yaml:"rotation-file"`
}

// ThrottleConfig configures the task throttler.
type ThrottleConfig struct {
	MaxParallelism int           `mapstructure:"max-parallelism" yaml:"max-parallelism" validate:"gte=0"`
	PerUnit        int           `mapstructure:"per-unit" yaml:"per-unit" validate:"gte=0"`
	Window         time.Duration `mapstructure:"window" yaml:"window"`
}

// RetryConfig configures the chunked-retry orchestrator.
type RetryConfig struct {
	Mode         string `mapstructure:"mode" yaml:"mode" validate:"omitempty,oneof=none onError onErrorKeepDuplicates onFatal onFatalKeepDuplicates"`
	ChunkSize    int    `mapstructure:"chunk-size" yaml:"chunk-size" validate:"gt=0"`
	ThrottleSize int    `mapstructure:"throttle-size" yaml:"throttle-size" validate:"gt=0"`
}

// StateStoreConfig selects and configures the extraction-state backend.
type StateStoreConfig struct {
	Backend       string         `mapstructure:"backend" yaml:"backend" validate:"oneof=memory redis postgres"`
	FlushInterval time.Duration  `mapstructure:"flush-interval" yaml:"flush-interval"`
	Redis         RedisConfig    `mapstructure:"redis" yaml:"redis"`
	Postgres      PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// RedisConfig holds redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`
}

// PostgresConfig holds postgres connection settings.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn" yaml:"dsn"`
	Table string `mapstructure:"table" yaml:"table"`
}

// UploaderConfig configures the upload queues.
type UploaderConfig struct {
	MaxSize    int           `mapstructure:"max-size" yaml:"max-size" validate:"gt=0"`
	Interval   time.Duration `mapstructure:"interval" yaml:"interval"`
	MaxRetries int           `mapstructure:"max-retries" yaml:"max-retries" validate:"gte=0"`
}

// Default returns the configuration used when no file is provided.
func Default() *Config {
	return &Config{
		Logger: LoggerConfig{
			Service: "cortex",
		},
		Throttle: ThrottleConfig{
			MaxParallelism: 4,
			Window:         time.Second,
		},
		Retry: RetryConfig{
			Mode:         "onError",
			ChunkSize:    1000,
			ThrottleSize: 1,
		},
		StateStore: StateStoreConfig{
			Backend:       "memory",
			FlushInterval: 10 * time.Second,
		},
		Uploader: UploaderConfig{
			MaxSize:    10000,
			Interval:   time.Minute,
			MaxRetries: 5,
		},
	}
}
