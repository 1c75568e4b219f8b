package log

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Field is the structured log field type accepted by every Log method.
type Field = zap.Field

// Helper functions to create fields without directly using zap

// String creates a single Field (string) for a given key-value pair.
func String(key string, value string) Field {
	return zap.String(key, value)
}

// Int creates a single Field (int) for a given key-value pair.
func Int(key string, value int) Field {
	return zap.Int(key, value)
}

// Int64 creates a single Field (int64) for a given key-value pair.
func Int64(key string, value int64) Field {
	return zap.Int64(key, value)
}

// Float64 creates a single Field (float64) for a given key-value pair.
func Float64(key string, value float64) Field {
	return zap.Float64(key, value)
}

// Bool creates a single Field (bool) for a given key-value pair.
func Bool(key string, value bool) Field {
	return zap.Bool(key, value)
}

// Time creates a single Field (time.Time) for a given key-value pair.
func Time(key string, value time.Time) Field {
	return zap.Time(key, value)
}

// Duration creates a single Field (time.Duration) for a given key-value pair.
func Duration(key string, value time.Duration) Field {
	return zap.Duration(key, value)
}

// Any creates a single Field (any) for a given key-value pair.
func Any(key string, value any) Field {
	return zap.Any(key, value)
}

// Err creates a single Field (error) for a given error.
func Err(err error) Field {
	return zap.Error(err)
}

// Stringer creates a single Field (fmt.Stringer) for a given key-value pair.
func Stringer(key string, value fmt.Stringer) Field {
	return zap.Stringer(key, value)
}

// LoggerConfig holds the settings used to construct a Log.
type LoggerConfig struct {
	IsProd       bool
	Environment  string
	ServiceName  string
	RotationFile string
	ZapOptions   []zap.Option
}

// LoggerOption defines a function that modifies LoggerConfig.
type LoggerOption func(*LoggerConfig)

// NewLoggerConfig creates a new LoggerConfig with default values.
func NewLoggerConfig(isProd bool, opts ...LoggerOption) *LoggerConfig {
	cfg := &LoggerConfig{
		IsProd:      isProd,
		Environment: "dev",
		ServiceName: "cortex",
	}
	if isProd {
		cfg.Environment = "prod"
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithServiceName sets the service name attached to every log entry.
func WithServiceName(name string) LoggerOption {
	return func(c *LoggerConfig) {
		c.ServiceName = name
	}
}

// WithEnvironment sets the environment attached to every log entry.
func WithEnvironment(env string) LoggerOption {
	return func(c *LoggerConfig) {
		c.Environment = env
	}
}

// WithRotationFile enables rotated file logging at the given path.
func WithRotationFile(path string) LoggerOption {
	return func(c *LoggerConfig) {
		c.RotationFile = path
	}
}

// WithZapOptions appends extra zap options to the logger.
func WithZapOptions(opts ...zap.Option) LoggerOption {
	return func(c *LoggerConfig) {
		c.ZapOptions = append(c.ZapOptions, opts...)
	}
}
