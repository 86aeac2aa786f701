package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestWriterNilWithoutFile(t *testing.T) {
	if w := (Config{}).Writer(); w != nil {
		t.Fatalf("expected nil writer when no file configured")
	}
}

func TestWriterCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idlewatch.log")
	w := Config{File: path}.Writer()
	if w == nil {
		t.Fatalf("expected writer")
	}
	if _, err := w.Write([]byte("hello\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = w.Close()
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("log file not created: %v", err)
	}
}

func TestSlogLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := (Config{Level: in}).slogLevel(); got != want {
			t.Fatalf("slogLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestColorTextHandlerColorsByLevel(t *testing.T) {
	var buf bytes.Buffer
	h := NewColorTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}, true)
	l := slog.New(h)

	l.Error("boom")
	if !bytes.Contains(buf.Bytes(), []byte("\033[31m")) {
		t.Fatalf("error output missing red code: %q", buf.String())
	}

	buf.Reset()
	l.Info("fine")
	if !bytes.Contains(buf.Bytes(), []byte("\033[32m")) {
		t.Fatalf("info output missing green code: %q", buf.String())
	}
}
