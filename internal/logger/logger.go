package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Default rotation configuration
const (
	DefaultMaxSizeMB  = 10 // MB
	DefaultMaxBackups = 3  // number of backup files
	DefaultMaxAgeDays = 7  // days
)

// Config describes the monitor's log destination and rotation.
// When File is empty, logs go to stderr only.
// Rotation parameters follow lumberjack semantics.
type Config struct {
	Level      string // debug, info, warn, error (default info)
	File       string // optional rotated log file path
	MaxSizeMB  int    // megabytes before rotation (default 10)
	MaxBackups int    // number of backups to keep (default 3)
	MaxAgeDays int    // days to keep (default 7)
	Compress   bool   // gzip rotated files
	NoColor    bool   // plain text on stderr
}

// Writer returns the rotated file writer, or nil when no file is set.
func (c Config) Writer() io.WriteCloser {
	if c.File == "" {
		return nil
	}
	return &lj.Logger{
		Filename:   c.File,
		MaxSize:    valOr(c.MaxSizeMB, DefaultMaxSizeMB),
		MaxBackups: valOr(c.MaxBackups, DefaultMaxBackups),
		MaxAge:     valOr(c.MaxAgeDays, DefaultMaxAgeDays),
		Compress:   c.Compress,
	}
}

// Setup builds the root slog.Logger for the process and installs it as the
// slog default. Console output is colorized unless NoColor is set; the file
// writer, when configured, receives plain text.
func Setup(c Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.slogLevel()}

	var handler slog.Handler
	if w := c.Writer(); w != nil {
		handler = slog.NewTextHandler(io.MultiWriter(os.Stderr, w), opts)
	} else if c.NoColor {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = NewColorTextHandler(os.Stderr, opts, true)
	}

	l := slog.New(handler)
	slog.SetDefault(l)
	return l
}

func (c Config) slogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.Level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func valOr(v int, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
