// Package status publishes immutable loop-state snapshots for external
// viewers. Each snapshot is a new uniquely named JSON file; nothing is ever
// rewritten in place, so a concurrent reader never sees a torn record.
// Readers pick the most recently modified file.
package status

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrNoSnapshot is returned by Latest when the directory holds no snapshots.
var ErrNoSnapshot = errors.New("no status snapshot")

// Snapshot is one published record of loop state.
type Snapshot struct {
	Timestamp      float64 `json:"timestamp"` // unix epoch seconds
	Status         string  `json:"status"`
	ProcessRunning bool    `json:"process_running"`
	TimeRemaining  *string `json:"time_remaining"`
}

// Remaining returns the human-readable remaining time, or "" when absent.
func (s Snapshot) Remaining() string {
	if s.TimeRemaining == nil {
		return ""
	}
	return *s.TimeRemaining
}

// Publisher writes snapshots into a directory.
type Publisher struct {
	dir    string
	logger *slog.Logger
}

// NewPublisher returns a publisher over dir, creating it if needed.
func NewPublisher(dir string, logger *slog.Logger) (*Publisher, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create status dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{dir: dir, logger: logger.With("component", "status")}, nil
}

// Dir returns the status directory.
func (p *Publisher) Dir() string { return p.dir }

// Publish writes one snapshot. timeRemaining may be empty, meaning null in
// the published record.
func (p *Publisher) Publish(statusText string, processRunning bool, timeRemaining string) error {
	snap := Snapshot{
		Timestamp:      float64(time.Now().UnixNano()) / float64(time.Second),
		Status:         statusText,
		ProcessRunning: processRunning,
	}
	if timeRemaining != "" {
		snap.TimeRemaining = &timeRemaining
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("status_%d.json", time.Now().UnixNano())
	if err := os.WriteFile(filepath.Join(p.dir, name), data, 0o644); err != nil { // #nosec G306 -- read by external viewers
		return fmt.Errorf("write snapshot: %w", err)
	}
	p.logger.Debug("status published", "status", statusText, "running", processRunning)
	return nil
}

// Prune removes all but the keep most recent snapshot files. Best effort;
// removal errors are logged.
func (p *Publisher) Prune(keep int) {
	if keep < 1 {
		keep = 1
	}
	infos, err := snapshotFiles(p.dir)
	if err != nil {
		p.logger.Error("prune scan failed", "error", err)
		return
	}
	if len(infos) <= keep {
		return
	}
	for _, fi := range infos[:len(infos)-keep] {
		if err := os.Remove(filepath.Join(p.dir, fi.Name())); err != nil {
			p.logger.Error("prune remove failed", "file", fi.Name(), "error", err)
		}
	}
}

// Latest reads the newest snapshot in dir by modification time.
func Latest(dir string) (Snapshot, error) {
	infos, err := snapshotFiles(dir)
	if err != nil {
		return Snapshot{}, err
	}
	if len(infos) == 0 {
		return Snapshot{}, ErrNoSnapshot
	}
	newest := infos[len(infos)-1]
	return ReadFile(filepath.Join(dir, newest.Name()))
}

// ReadFile decodes a single snapshot file.
func ReadFile(path string) (Snapshot, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path comes from our own directory scan
	if err != nil {
		return Snapshot{}, err
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode snapshot %s: %w", filepath.Base(path), err)
	}
	return snap, nil
}

// IsSnapshotName reports whether name looks like a published snapshot file.
func IsSnapshotName(name string) bool {
	return strings.HasPrefix(name, "status_") && strings.HasSuffix(name, ".json")
}

// snapshotFiles returns snapshot entries sorted oldest first by mtime, with
// the file name as tie-breaker (names embed a unix-nano counter).
func snapshotFiles(dir string) ([]fs.FileInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var infos []fs.FileInfo
	for _, e := range entries {
		if e.IsDir() || !IsSnapshotName(e.Name()) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, fi)
	}
	sort.Slice(infos, func(i, j int) bool {
		if infos[i].ModTime().Equal(infos[j].ModTime()) {
			return infos[i].Name() < infos[j].Name()
		}
		return infos[i].ModTime().Before(infos[j].ModTime())
	})
	return infos, nil
}
