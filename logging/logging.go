// Package logging builds the structured logrus loggers used by the enclave,
// the gateway and the CLI.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"

	"github.com/cloudx-io/assetauction/config"
)

// New creates a JSON logger configured from cfg. LOG_LEVEL overrides the
// configured level when set. When cfg.File is set output goes to a rotating
// file instead of stderr.
func New(cfg config.LoggingConfig) (*logrus.Logger, error) {
	logger := logrus.New()

	levelStr := cfg.Level
	if env := os.Getenv("LOG_LEVEL"); env != "" {
		levelStr = env
	}
	if levelStr == "" {
		levelStr = config.DefaultLogLevel
	}
	level, err := logrus.ParseLevel(strings.ToLower(levelStr))
	if err != nil {
		return nil, fmt.Errorf("parse log level: %w", err)
	}
	logger.SetLevel(level)

	logger.SetReportCaller(true)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
		CallerPrettyfier: func(f *runtime.Frame) (string, string) {
			return "", fmt.Sprintf("%s:%d", filepath.Base(f.File), f.Line)
		},
	})

	logger.SetOutput(Output(cfg))
	return logger, nil
}

// Output returns the writer selected by cfg.
func Output(cfg config.LoggingConfig) io.Writer {
	if cfg.File == "" {
		return os.Stderr
	}
	return &lumberjack.Logger{
		Filename:   cfg.File,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// WithComponent tags every entry with the component name.
func WithComponent(logger logrus.FieldLogger, component string) *logrus.Entry {
	return logger.WithField("component", component)
}
