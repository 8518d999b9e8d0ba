package internal

import (
	"io"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// newLogger builds the JSON logger. When a log file is configured records go
// to both console and the rotated file. The returned closer releases the file.
func newLogger(cfg ApplicationConfig, console io.Writer) (*slog.Logger, io.Closer) {
	out := console
	var closer io.Closer = io.NopCloser(nil)

	if cfg.LogFile.Enabled() {
		lj := &lumberjack.Logger{
			Filename:   cfg.LogFile.Path,
			MaxSize:    cfg.LogFile.MaxSizeMB,
			MaxBackups: cfg.LogFile.MaxBackups,
			MaxAge:     cfg.LogFile.MaxAgeDays,
			Compress:   cfg.LogFile.Compress,
		}
		closer = lj
		if console != nil {
			out = io.MultiWriter(console, lj)
		} else {
			out = lj
		}
	}
	if out == nil {
		out = io.Discard
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))
	return logger, closer
}
