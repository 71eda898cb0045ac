package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger(level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	// Parse level
	l, err := zapcore.ParseLevel(level)
	if err != nil {
		l = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(l)

	return config.Build()
}

// NewFileLogger writes to the given file instead of stderr. Used for
// long-running background loops whose output would drown the main log.
func NewFileLogger(path string, level string) (*zap.Logger, error) {
	config := zap.NewProductionConfig()

	l, err := zapcore.ParseLevel(level)
	if err != nil {
		l = zapcore.InfoLevel
	}
	config.Level = zap.NewAtomicLevelAt(l)
	config.OutputPaths = []string{path}
	config.ErrorOutputPaths = []string{path}

	return config.Build()
}
