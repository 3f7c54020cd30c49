package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// FileName is the log file created inside the logs directory.
const FileName = "techdir.log"

// New builds a JSON zap logger that appends to <logDir>/techdir.log so the
// terminal stays free for the UI. Unknown levels fall back to info.
func New(logDir, level string) (*zap.Logger, error) {
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("logging: ensure log dir: %w", err)
	}
	path := filepath.Join(logDir, FileName)
	return build(level, []string{path}, []string{path})
}

// NewStdout builds the same logger writing to stdout, for headless binaries.
func NewStdout(level string) (*zap.Logger, error) {
	return build(level, []string{"stdout"}, []string{"stderr"})
}

// NewNop returns a logger that discards everything.
func NewNop() *zap.Logger {
	return zap.NewNop()
}

// ParseLevel maps a config string onto a zap level.
func ParseLevel(level string) zapcore.Level {
	parsed := zapcore.InfoLevel
	if err := parsed.Set(strings.ToLower(strings.TrimSpace(level))); err != nil {
		return zapcore.InfoLevel
	}
	return parsed
}

func build(level string, outputs, errOutputs []string) (*zap.Logger, error) {
	cfg := zap.Config{
		Level:    zap.NewAtomicLevelAt(ParseLevel(level)),
		Encoding: "json",
		EncoderConfig: zapcore.EncoderConfig{
			MessageKey:  "message",
			LevelKey:    "level",
			TimeKey:     "ts",
			NameKey:     "component",
			EncodeLevel: zapcore.LowercaseLevelEncoder,
			EncodeTime:  zapcore.ISO8601TimeEncoder,
			EncodeName:  zapcore.FullNameEncoder,
		},
		OutputPaths:      outputs,
		ErrorOutputPaths: errOutputs,
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("logging: build logger: %w", err)
	}
	return logger, nil
}
