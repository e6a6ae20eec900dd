// Package obs wires up the process-wide structured logger shared by the
// ring, config, client and reactor packages.
package obs

import (
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	once   sync.Once
	logger *zap.Logger
)

// L returns the shared logger, building it on first use from the
// NETLET_LOG_FILE environment variable (empty means stderr only).
func L() *zap.Logger {
	once.Do(func() {
		logger = build(os.Getenv("NETLET_LOG_FILE"))
	})
	return logger
}

// SetForTest installs l as the shared logger and returns a restore func.
// Intended for _test.go files that want to assert on logged warnings.
func SetForTest(l *zap.Logger) func() {
	once.Do(func() {}) // freeze once so L() never rebuilds over us
	prev := logger
	logger = l
	return func() { logger = prev }
}

func build(logFile string) *zap.Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoder := zapcore.NewConsoleEncoder(cfg)

	cores := []zapcore.Core{
		zapcore.NewCore(encoder, zapcore.AddSync(os.Stderr), zap.InfoLevel),
	}
	if logFile != "" {
		rotator := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    64, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(rotator), zap.DebugLevel))
	}
	return zap.New(zapcore.NewTee(cores...))
}
