package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/natefinch/lumberjack"

	"github.com/plantqc/historian-bridge/server/internal/config"
)

// New returns a JSON logger filtered by level. When cfg.File is set the
// output also goes to that file, rotated by lumberjack; the returned Closer
// releases it and is a no-op otherwise.
func New(cfg config.LogConfig, level slog.Leveler) (*slog.Logger, io.Closer) {
	return newLogger(os.Stdout, cfg, level)
}

func newLogger(stdout io.Writer, cfg config.LogConfig, level slog.Leveler) (*slog.Logger, io.Closer) {
	var (
		out              = stdout
		closer io.Closer = nopCloser{}
	)
	if cfg.File != "" {
		file := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		out = io.MultiWriter(stdout, file)
		closer = file
	}
	return slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})), closer
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
