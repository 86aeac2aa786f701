// Package control is the SDK for external controllers of a running
// watcher: desktop frontends, scripts, other services. It speaks the same
// file protocol as the monitor loop, so a controller needs nothing but
// access to the watcher's directories.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"github.com/loykin/idlewatch/internal/command"
	"github.com/loykin/idlewatch/internal/status"
)

// Kind identifies a control command.
type Kind = command.Kind

const (
	Stop      = command.Stop
	DeleteNow = command.DeleteNow
	Pause     = command.Pause
	Resume    = command.Resume
)

// Snapshot is one published status record.
type Snapshot = status.Snapshot

// Controller operates on a watcher through its command and status
// directories. The zero value is not usable; use New.
type Controller struct {
	commandDir string
	statusDir  string
	logger     *slog.Logger
}

// New binds a controller to the watcher's directories. Pass the same
// directory twice when the watcher runs with a single working directory.
func New(commandDir, statusDir string) *Controller {
	return &Controller{
		commandDir: commandDir,
		statusDir:  statusDir,
		logger:     slog.Default().With("component", "control"),
	}
}

// Send files one command for the monitor's next tick.
func (c *Controller) Send(kind Kind) error {
	return command.Send(c.commandDir, kind)
}

// Latest returns the newest status snapshot. status.ErrNoSnapshot means
// the watcher has not published yet.
func (c *Controller) Latest() (Snapshot, error) {
	return status.Latest(c.statusDir)
}

// Follow streams snapshots as the watcher publishes them. The current
// latest snapshot, if any, is delivered first. The channel closes when
// ctx is done. Slow consumers lose intermediate snapshots rather than
// blocking the stream.
func (c *Controller) Follow(ctx context.Context) (<-chan Snapshot, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(c.statusDir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", c.statusDir, err)
	}

	out := make(chan Snapshot, 16)
	go c.followLoop(ctx, fsw, out)
	return out, nil
}

func (c *Controller) followLoop(ctx context.Context, fsw *fsnotify.Watcher, out chan<- Snapshot) {
	defer close(out)
	defer func() { _ = fsw.Close() }()

	if snap, err := status.Latest(c.statusDir); err == nil {
		c.deliver(out, snap)
	}

	// Create can fire before the snapshot bytes land, so the follow-up
	// Write event retries the read. Snapshots are published one at a time
	// with monotonic names, so remembering the last delivered name is
	// enough to dedupe the Create/Write pair without unbounded state.
	var lastDelivered string

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !status.IsSnapshotName(filepath.Base(event.Name)) || event.Name == lastDelivered {
				continue
			}
			snap, err := status.ReadFile(event.Name)
			if err != nil {
				continue
			}
			lastDelivered = event.Name
			c.deliver(out, snap)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			c.logger.Error("status watcher error", "error", err)
		}
	}
}

func (c *Controller) deliver(out chan<- Snapshot, snap Snapshot) {
	select {
	case out <- snap:
	default:
		c.logger.Warn("follow channel full, dropping snapshot")
	}
}
