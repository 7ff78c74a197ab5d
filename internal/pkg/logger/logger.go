// Package logger holds the zap logger shared by the server, the seed command
// and the jobs. The level lives in an AtomicLevel and can be changed while
// the process runs.
package logger

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global      *zap.Logger
	atomicLevel = zap.NewAtomicLevel()
	once        sync.Once
	nop         = zap.NewNop()
)

// Init builds the shared logger once. level is one of debug, info, warn or
// error; format "console" selects the colored development encoder and
// anything else JSON.
func Init(level, format string) error {
	var initErr error
	once.Do(func() {
		if err := atomicLevel.UnmarshalText([]byte(level)); err != nil {
			initErr = fmt.Errorf("parse log level %q: %w", level, err)
			return
		}
		l, err := buildConfig(format).Build(zap.AddCallerSkip(1))
		if err != nil {
			initErr = fmt.Errorf("build logger: %w", err)
			return
		}
		global = l
	})
	return initErr
}

func buildConfig(format string) zap.Config {
	cfg := zap.NewProductionConfig()
	if format == "console" {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.Level = atomicLevel
	return cfg
}

// SetLevel swaps the active level.
func SetLevel(level string) error {
	return atomicLevel.UnmarshalText([]byte(level))
}

// GetLevel reports the active level.
func GetLevel() zapcore.Level {
	return atomicLevel.Level()
}

// L returns the shared logger, or a no-op logger before Init so the engine
// packages can be driven from tests and tools without setup.
func L() *zap.Logger {
	if global == nil {
		return nop
	}
	return global
}

// S is the sugared form of L.
func S() *zap.SugaredLogger {
	return L().Sugar()
}

func Debug(msg string, fields ...zap.Field) { L().Debug(msg, fields...) }

func Info(msg string, fields ...zap.Field) { L().Info(msg, fields...) }

func Warn(msg string, fields ...zap.Field) { L().Warn(msg, fields...) }

func Error(msg string, fields ...zap.Field) { L().Error(msg, fields...) }

// Fatal logs and exits the process.
func Fatal(msg string, fields ...zap.Field) { L().Fatal(msg, fields...) }

// With returns a child of the shared logger carrying fields.
func With(fields ...zap.Field) *zap.Logger {
	return L().With(fields...)
}

// HTTPHandler returns the atomic level for mounting on the admin router.
// GET reports the level; PUT {"level":"debug"} changes it.
func HTTPHandler() *zap.AtomicLevel {
	return &atomicLevel
}

// Sync flushes buffered entries. It is a no-op before Init.
func Sync() error {
	if global == nil {
		return nil
	}
	return global.Sync()
}
