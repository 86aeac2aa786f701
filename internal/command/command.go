// Package command implements the file-based control channel between an
// external controller and the monitor loop. A command is a marker file in
// the channel directory named `<kind>_<token>.json`; discovering the file is
// the delivery, deleting it is the acknowledgment.
package command

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/loykin/idlewatch/internal/status"
)

// Kind identifies a control command.
type Kind string

const (
	Stop      Kind = "stop"
	DeleteNow Kind = "delete_now"
	Pause     Kind = "pause"
	Resume    Kind = "resume"
)

// byPriority lists kinds highest priority first. A Stop filed together with
// anything else always wins the tick.
var byPriority = []Kind{Stop, DeleteNow, Pause, Resume}

// Kinds returns all recognized kinds in priority order.
func Kinds() []Kind {
	out := make([]Kind, len(byPriority))
	copy(out, byPriority)
	return out
}

// ParseKind validates a textual command kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range byPriority {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown command kind %q", s)
}

type payload struct {
	Command string `json:"command"`
}

// Channel scans a directory for command files. It is the consuming side;
// external controllers write files via Send (or pkg/control).
type Channel struct {
	dir    string
	logger *slog.Logger

	// unrecognized files are logged once, then ignored
	warned map[string]struct{}
}

// New returns a channel over dir, creating it if needed.
func New(dir string, logger *slog.Logger) (*Channel, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create command dir: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		dir:    dir,
		logger: logger.With("component", "command"),
		warned: make(map[string]struct{}),
	}, nil
}

// Dir returns the channel directory.
func (c *Channel) Dir() string { return c.dir }

// Poll scans the directory once and returns the highest-priority kind
// present, consuming every file of that kind. Files of lower-priority kinds
// are left for a later tick. Returns ok=false when no recognized command
// file exists. Deletion failures are logged and do not fail the poll; a file
// left behind may replay next tick, which command handling tolerates.
func (c *Channel) Poll() (Kind, bool) {
	entries, err := os.ReadDir(c.dir)
	if err != nil {
		c.logger.Error("scan command dir failed", "dir", c.dir, "error", err)
		return "", false
	}

	found := make(map[Kind][]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		k, ok := kindOf(e.Name())
		if !ok {
			// status snapshots share the working directory
			if status.IsSnapshotName(e.Name()) {
				continue
			}
			if _, seen := c.warned[e.Name()]; !seen {
				c.warned[e.Name()] = struct{}{}
				c.logger.Warn("ignoring unrecognized file in command dir", "file", e.Name())
			}
			continue
		}
		found[k] = append(found[k], e.Name())
	}

	for _, k := range byPriority {
		names := found[k]
		if len(names) == 0 {
			continue
		}
		for _, name := range names {
			if err := os.Remove(filepath.Join(c.dir, name)); err != nil {
				c.logger.Error("remove command file failed", "file", name, "error", err)
			}
		}
		return k, true
	}
	return "", false
}

// Send drops a command file for kind into dir. The unix-nano suffix keeps
// concurrently filed commands from colliding.
func Send(dir string, kind Kind) error {
	if _, err := ParseKind(string(kind)); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create command dir: %w", err)
	}
	data, err := json.Marshal(payload{Command: string(kind)})
	if err != nil {
		return err
	}
	name := fmt.Sprintf("%s_%d.json", kind, time.Now().UnixNano())
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o600); err != nil {
		return fmt.Errorf("write command file: %w", err)
	}
	return nil
}

// kindOf matches a filename against the recognized `<kind>_<token>.json`
// patterns. DeleteNow is checked before Pause so its embedded underscore
// cannot be shadowed.
func kindOf(name string) (Kind, bool) {
	if !strings.HasSuffix(name, ".json") {
		return "", false
	}
	for _, k := range byPriority {
		if strings.HasPrefix(name, string(k)+"_") {
			return k, true
		}
	}
	return "", false
}
