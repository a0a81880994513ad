// Package logging builds the process logger.
package logging

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Options select the level and an optional rotated log file.
type Options struct {
	Level   string
	File    string
	Verbose bool // forces debug level
}

// New returns a production zap logger writing JSON to stderr, or to File with
// rotation when one is set.
func New(opts Options) (*zap.Logger, error) {
	level := zap.NewAtomicLevel()
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}
	if opts.Verbose {
		level.SetLevel(zapcore.DebugLevel)
	}

	if opts.File == "" {
		config := zap.NewProductionConfig()
		config.Level = level
		logger, err := config.Build()
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		return logger, nil
	}

	rotated := &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    10, // megabytes
		MaxBackups: 5,
		MaxAge:     90, // days
	}
	encoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
	core := zapcore.NewTee(
		zapcore.NewCore(encoder, zapcore.AddSync(rotated), level),
		zapcore.NewCore(encoder, zapcore.Lock(os.Stderr), zap.NewAtomicLevelAt(zapcore.WarnLevel)),
	)
	return zap.New(core, zap.AddCaller()), nil
}
