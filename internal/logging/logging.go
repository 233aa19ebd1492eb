// Package logging configures the process-wide slog logger: console output
// always, plus an optional rotating log file.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/framekit/framekit/internal/config"
)

// Setup builds a logger from the global config and installs it as the
// slog default. With no log file configured it logs to the console only;
// with one it writes to both, rotating the file by size.
func Setup(cfg config.GlobalConfig) *slog.Logger {
	var writer io.Writer = os.Stdout

	if cfg.LogFile != "" {
		fileWriter := &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    cfg.LogMaxSize, // MB
			MaxBackups: cfg.LogBackups,
			Compress:   true,
		}
		writer = io.MultiWriter(os.Stdout, fileWriter)
	}

	handler := slog.NewTextHandler(writer, &slog.HandlerOptions{
		Level: ParseLevel(cfg.LogLevel),
	})

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// ParseLevel maps a config level name to a slog level, consulting the
// LOG_LEVEL environment variable when the name is empty. Unknown names
// fall back to info.
func ParseLevel(level string) slog.Level {
	if level == "" {
		level = os.Getenv("LOG_LEVEL")
	}

	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
