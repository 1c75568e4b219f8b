package log

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Log struct holds the zap Logger instance.
type Log struct {
	*zap.Logger
	closeLog func() error // Function to gracefully shut down the logger
}

// NewBasicLogger creates a basic logger for utility functions carrying the
// default configuration.
func NewBasicLogger(isProd bool) *Log {
	basicLogger, _ := NewLogger(NewLoggerConfig(isProd))
	return basicLogger
}

// NewNop returns a logger that discards everything. Useful as a default
// in components where logging is optional.
func NewNop() *Log {
	return &Log{Logger: zap.NewNop()}
}

// NewLogger creates a new Log instance with the specified configuration.
func NewLogger(cfg *LoggerConfig) (*Log, error) {
	// Set the log level
	atomicLevel := zap.NewAtomicLevel()
	if cfg.IsProd {
		atomicLevel.SetLevel(zapcore.InfoLevel)
	} else {
		atomicLevel.SetLevel(zapcore.DebugLevel) // Debug mode for development
	}

	// Configure encoder settings
	encoderConfig := zapcore.EncoderConfig{
		TimeKey:       "time",
		LevelKey:      "level",
		NameKey:       "log",
		CallerKey:     "caller",
		MessageKey:    "msg",
		StacktraceKey: "stacktrace",
		EncodeLevel: func() zapcore.LevelEncoder {
			if cfg.IsProd {
				return zapcore.CapitalLevelEncoder
			}
			return zapcore.CapitalColorLevelEncoder
		}(), // INFO, WARN, ERROR (readable)
		EncodeTime:     zapcore.ISO8601TimeEncoder, // 2025-02-22T13:43:42.977+0530
		EncodeCaller:   zapcore.ShortCallerEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
	}

	defaultOptions := []zap.Option{
		zap.Fields(
			zap.String("environment", cfg.Environment),
			zap.String("service", cfg.ServiceName),
		),
		zap.AddCaller(),
		zap.AddCallerSkip(1),
	}
	options := append(defaultOptions, cfg.ZapOptions...)

	// Select the encoder based on mode
	var encoder zapcore.Encoder
	if cfg.IsProd {
		encoder = zapcore.NewJSONEncoder(encoderConfig) // JSON logs for production
	} else {
		encoder = zapcore.NewConsoleEncoder(encoderConfig) // Readable console logs
	}

	// Setup log output (stdout by default, rotated file when configured)
	logOutput := zapcore.AddSync(os.Stdout)

	cores := []zapcore.Core{zapcore.NewCore(encoder, logOutput, atomicLevel)}

	if cfg.RotationFile != "" {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(encoderConfig),
			getLumberjackLogger(cfg.RotationFile),
			atomicLevel,
		))
	}

	// Combine all cores using NewTee so every message reaches every core.
	finalCore := zapcore.NewTee(cores...)

	l := zap.New(finalCore, options...)

	return &Log{Logger: l}, nil
}

// Debug logs a message at the DebugLevel.
func (l *Log) Debug(msg string, fields ...zap.Field) {
	l.Logger.Debug(msg, fields...)
}

// Info logs a message at the InfoLevel.
func (l *Log) Info(msg string, fields ...zap.Field) {
	l.Logger.Info(msg, fields...)
}

// Warn logs a message at the WarnLevel.
func (l *Log) Warn(msg string, fields ...zap.Field) {
	l.Logger.Warn(msg, fields...)
}

// Error logs a message at the ErrorLevel.
func (l *Log) Error(msg string, fields ...zap.Field) {
	l.Logger.Error(msg, fields...)
}

// Fatal logs a message at the FatalLevel and then exits the program.
func (l *Log) Fatal(msg string, fields ...zap.Field) {
	l.Logger.Fatal(msg, fields...)
}

// With creates a child Log with the specified fields.
func (l *Log) With(fields ...zap.Field) *Log {
	return &Log{Logger: l.Logger.With(fields...), closeLog: l.closeLog}
}

// Sync flushes any buffered log entries. Applications should take care to
// call Sync before exiting.
func (l *Log) Sync() error {
	err := l.Logger.Sync()

	if l.closeLog != nil {
		if closeErr := l.closeLog(); closeErr != nil {
			if err != nil {
				return fmt.Errorf("zap sync error: %w; close error: %v", err, closeErr)
			}
			return closeErr
		}
	}
	return err
}

// getLumberjackLogger returns a WriteSyncer for rotated file logging.
func getLumberjackLogger(filename string) zapcore.WriteSyncer {
	lumberjackLogger := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    50, // Max size in MB before rotating
		MaxBackups: 5,  // Max old log files
		MaxAge:     30, // Max days to retain logs
		Compress:   true,
	}

	return zapcore.AddSync(lumberjackLogger)
}
