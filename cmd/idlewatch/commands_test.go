package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/loykin/idlewatch/internal/command"
	"github.com/loykin/idlewatch/internal/status"
)

func TestBuildRootHasSubcommands(t *testing.T) {
	root := buildRoot()
	want := []string{"run", "stop", "pause", "resume", "delete-now", "status", "instances"}
	for _, name := range want {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
				break
			}
		}
		if !found {
			t.Fatalf("missing subcommand %q", name)
		}
	}
}

func TestSendControlWritesCommandFile(t *testing.T) {
	dir := t.TempDir()
	if err := sendControl(&ControlFlags{CommandDir: dir}, command.Pause); err != nil {
		t.Fatalf("sendControl: %v", err)
	}

	ch, err := command.New(dir, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("channel: %v", err)
	}
	kind, ok := ch.Poll()
	if !ok || kind != command.Pause {
		t.Fatalf("poll = %v %v, want pause", kind, ok)
	}
}

func TestShowStatus(t *testing.T) {
	dir := t.TempDir()
	pub, err := status.NewPublisher(dir, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	if err := pub.Publish("Process Running", true, ""); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var buf bytes.Buffer
	if err := showStatus(&buf, &StatusFlags{StatusDir: dir}); err != nil {
		t.Fatalf("showStatus: %v", err)
	}
	if !strings.Contains(buf.String(), "Process Running") {
		t.Fatalf("output = %q", buf.String())
	}
}

func TestShowStatusEmptyDir(t *testing.T) {
	var buf bytes.Buffer
	if err := showStatus(&buf, &StatusFlags{StatusDir: t.TempDir()}); err == nil {
		t.Fatalf("expected error for empty status dir")
	}
}

func TestLoadRunConfigFlagOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "idlewatch.toml")
	body := `
processes = ["python"]
timeout_minutes = 60.0
api_key = "k-from-file"
instance = "from-file"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadRunConfig(&RunFlags{
		ConfigPath:     path,
		TimeoutMinutes: 30,
		Instance:       "12345",
		Interval:       2 * time.Second,
	})
	if err != nil {
		t.Fatalf("loadRunConfig: %v", err)
	}
	if cfg.TimeoutMinutes != 30 {
		t.Fatalf("timeout = %v, want flag override 30", cfg.TimeoutMinutes)
	}
	if cfg.Instance != "12345" {
		t.Fatalf("instance = %q, want flag override", cfg.Instance)
	}
	if cfg.Interval != 2*time.Second {
		t.Fatalf("interval = %v", cfg.Interval)
	}
	// file values survive where no flag was given
	if cfg.APIKey != "k-from-file" {
		t.Fatalf("api_key = %q, want file value", cfg.APIKey)
	}
	if len(cfg.Processes) != 1 || cfg.Processes[0] != "python" {
		t.Fatalf("processes = %v", cfg.Processes)
	}
}

func TestResolveDir(t *testing.T) {
	dir, err := resolveDir("", "", "/explicit", true)
	if err != nil {
		t.Fatalf("resolveDir: %v", err)
	}
	if dir != "/explicit" {
		t.Fatalf("dir = %q, want explicit override", dir)
	}

	dir, err = resolveDir("", "/work", "", false)
	if err != nil {
		t.Fatalf("resolveDir: %v", err)
	}
	if dir != "/work" {
		t.Fatalf("dir = %q, want work dir fallback", dir)
	}

	dir, err = resolveDir("", "", "", true)
	if err != nil {
		t.Fatalf("resolveDir: %v", err)
	}
	if dir != "." {
		t.Fatalf("dir = %q, want current dir default", dir)
	}
}

func TestRunWatchRejectsInvalidConfig(t *testing.T) {
	// no probe and no API key
	if err := runWatch(&RunFlags{}); err == nil {
		t.Fatalf("expected validation error")
	}
}
