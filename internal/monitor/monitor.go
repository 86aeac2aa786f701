// Package monitor implements the inactivity state machine: it owns the
// last-seen-active timestamp, the pause flag, and the single decision of
// when the grace period has elapsed and the remote instances must go.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/loykin/idlewatch/internal/command"
	"github.com/loykin/idlewatch/internal/history"
	"github.com/loykin/idlewatch/internal/metrics"
	"github.com/loykin/idlewatch/internal/probe"
	"github.com/loykin/idlewatch/internal/status"
	"github.com/loykin/idlewatch/internal/vast"
)

// errStopped signals a graceful loop exit (Stop command or completed
// timeout deletion). It never escapes Run.
var errStopped = errors.New("monitoring stopped")

// deletion trigger paths, used for logging and metrics labels
const (
	pathTimeout = "timeout"
	pathManual  = "manual"
)

// Config wires the monitor's collaborators. Probe, ControlPlane, Commands
// and Status are required.
type Config struct {
	Probe        probe.Probe
	ControlPlane vast.ControlPlane
	Selector     vast.Selector
	Commands     *command.Channel
	Status       *status.Publisher
	History      history.Sink // optional, defaults to history.Nop

	GracePeriod   time.Duration
	PollInterval  time.Duration
	RetryInterval time.Duration // shortened wait after an empty timeout-path list
	StatusKeep    int           // snapshots retained per prune, 0 disables pruning

	Logger *slog.Logger
	Now    func() time.Time // test hook, defaults to time.Now
}

// State is a read-only copy of the loop's mutable state.
type State struct {
	LastActiveAt    time.Time
	Running         bool
	Paused          bool
	Stopped         bool
	DeleteAttempted bool // a timeout-path deletion ran in this inactivity episode
}

// Monitor is the poll loop. All state is owned by the loop goroutine;
// State() takes a lock only so external viewers can read a copy.
type Monitor struct {
	cfg Config

	mu sync.Mutex
	st State
}

// New validates the configuration and builds a monitor.
func New(cfg Config) (*Monitor, error) {
	if cfg.Probe == nil {
		return nil, errors.New("monitor: probe is required")
	}
	if cfg.ControlPlane == nil {
		return nil, errors.New("monitor: control plane client is required")
	}
	if cfg.Commands == nil {
		return nil, errors.New("monitor: command channel is required")
	}
	if cfg.Status == nil {
		return nil, errors.New("monitor: status publisher is required")
	}
	if cfg.GracePeriod <= 0 {
		return nil, errors.New("monitor: grace period must be positive")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = time.Minute
	}
	if cfg.RetryInterval > cfg.GracePeriod {
		cfg.RetryInterval = cfg.GracePeriod
	}
	if cfg.History == nil {
		cfg.History = history.Nop{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	cfg.Logger = cfg.Logger.With("component", "monitor")
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	m := &Monitor{cfg: cfg}
	// a never-seen workload counts as active at construction, so the first
	// countdown runs from here rather than from the zero time
	m.st.LastActiveAt = cfg.Now()
	return m, nil
}

// State returns a copy of the current loop state.
func (m *Monitor) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.st
}

// Run executes the poll loop until a Stop command, a completed
// timeout-path deletion, or ctx cancellation. A final snapshot is written
// on every exit path; only a panic yields a non-nil error.
func (m *Monitor) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.cfg.Logger.Error("monitor loop panicked", "panic", r, "stack", string(debug.Stack()))
			m.publish(fmt.Sprintf("Error: %v", r), m.State().Running, "")
			err = fmt.Errorf("monitor: unexpected fault: %v", r)
		}
	}()

	m.mu.Lock()
	m.st.LastActiveAt = m.cfg.Now()
	m.mu.Unlock()

	m.cfg.Logger.Info("monitoring started",
		"probe", m.cfg.Probe.Describe(),
		"selector", m.cfg.Selector.String(),
		"grace_period", m.cfg.GracePeriod,
		"poll_interval", m.cfg.PollInterval)
	m.publish("Monitoring Started", false, "")
	m.record(history.EventMonitorStart, "watching "+m.cfg.Probe.Describe(), false, 0)

	ticker := time.NewTicker(m.cfg.PollInterval)
	defer ticker.Stop()

	for {
		if tickErr := m.tick(ctx); tickErr != nil {
			if errors.Is(tickErr, errStopped) {
				return nil
			}
			return tickErr
		}
		metrics.IncTick()
		if m.cfg.StatusKeep > 0 {
			m.cfg.Status.Prune(m.cfg.StatusKeep)
		}

		select {
		case <-ctx.Done():
			m.cfg.Logger.Info("monitoring canceled")
			m.finalize("Monitoring Stopped", "canceled by signal")
			return nil
		case <-ticker.C:
		}
	}
}

// tick runs one loop iteration: drain commands, gate on pause, probe,
// evaluate the countdown, maybe delete. Commands always run first so a
// Stop filed alongside an expiring timer wins the tick.
func (m *Monitor) tick(ctx context.Context) error {
	if kind, ok := m.cfg.Commands.Poll(); ok {
		if err := m.handleCommand(ctx, kind); err != nil {
			return err
		}
		// a manual deletion ends the tick so the countdown branch cannot
		// run a second deletion in the same iteration
		if kind == command.Pause || kind == command.DeleteNow {
			return nil
		}
	}

	m.mu.Lock()
	paused := m.st.Paused
	m.mu.Unlock()
	if paused {
		return nil
	}

	alive, err := m.cfg.Probe.Alive()
	if err != nil {
		// recoverable: keep the timer untouched and try again next tick
		m.cfg.Logger.Error("liveness probe failed", "error", err)
		metrics.IncProbeError()
		return nil
	}
	metrics.IncProbeCheck(alive)

	now := m.cfg.Now()
	m.mu.Lock()
	if alive != m.st.Running {
		m.st.Running = alive
		m.st.LastActiveAt = now
		if alive {
			m.st.DeleteAttempted = false
		}
		m.mu.Unlock()
		metrics.SetWorkloadRunning(alive)
		if alive {
			m.cfg.Logger.Info("workload started running")
			m.record(history.EventProbeUp, "workload started", true, 0)
		} else {
			m.cfg.Logger.Info("workload stopped running")
			m.record(history.EventProbeDown, "workload stopped", false, 0)
		}
		m.mu.Lock()
	}
	running := m.st.Running
	lastActive := m.st.LastActiveAt
	m.mu.Unlock()

	if running {
		metrics.SetCountdownSeconds(0)
		m.publish("Process Running", true, "")
		return nil
	}

	elapsed := now.Sub(lastActive)
	remaining := m.cfg.GracePeriod - elapsed
	if remaining > 0 {
		metrics.SetCountdownSeconds(remaining.Seconds())
		rem := formatRemaining(remaining)
		m.publish(fmt.Sprintf("Process Not Running - %s until deletion", rem), false, rem)
		return nil
	}

	m.cfg.Logger.Info("grace period elapsed, deleting instances",
		"grace_period", m.cfg.GracePeriod, "selector", m.cfg.Selector.String())
	return m.runDeletion(ctx, pathTimeout)
}

// handleCommand applies one consumed command. Stop returns errStopped;
// DeleteNow runs the deletion procedure without touching the timer.
func (m *Monitor) handleCommand(ctx context.Context, kind command.Kind) error {
	m.cfg.Logger.Info("command received", "kind", string(kind))
	metrics.IncCommand(string(kind))
	m.record(history.EventCommand, string(kind), m.State().Running, 0)

	switch kind {
	case command.Stop:
		m.finalize("Monitoring Stopped", "stopped by command")
		return errStopped
	case command.Pause:
		m.mu.Lock()
		m.st.Paused = true
		running := m.st.Running
		m.mu.Unlock()
		m.publish("Monitoring Paused", running, "")
	case command.Resume:
		m.mu.Lock()
		m.st.Paused = false
		running := m.st.Running
		m.mu.Unlock()
		m.publish("Monitoring Resumed", running, "")
	case command.DeleteNow:
		return m.runDeletion(ctx, pathManual)
	}
	return nil
}

// runDeletion is the shared deletion procedure. The timeout and manual
// paths differ only in how the timer and terminal state react.
func (m *Monitor) runDeletion(ctx context.Context, path string) error {
	if path == pathTimeout {
		m.mu.Lock()
		m.st.DeleteAttempted = true
		m.mu.Unlock()
	}

	instances, err := m.cfg.ControlPlane.ListInstances(ctx, m.cfg.Selector)
	if err != nil {
		m.cfg.Logger.Error("listing instances failed", "error", err)
		metrics.IncDeletion(path, "error")
		m.record(history.EventDeleteFailure, "list failed: "+err.Error(), false, 0)
		if path == pathTimeout {
			// back off a full grace period rather than hot-looping the API
			m.rewindTimer(0)
		}
		m.publish(fmt.Sprintf("Error listing instances: %v", err), false, "")
		return nil
	}

	metrics.SetInstancesMatched(len(instances))
	if len(instances) == 0 {
		m.cfg.Logger.Warn("no instances matched selector", "selector", m.cfg.Selector.String())
		metrics.IncDeletion(path, "none_found")
		if path == pathTimeout {
			// keep checking: shrink the remaining window to the retry interval
			m.rewindTimer(m.cfg.RetryInterval)
			m.publish(fmt.Sprintf("No instances found, retrying in %s", formatRemaining(m.cfg.RetryInterval)), false, "")
		} else {
			m.publish("No instances found to delete", m.State().Running, "")
		}
		return nil
	}

	succeeded := 0
	for _, inst := range instances {
		m.record(history.EventDeleteAttempt, fmt.Sprintf("destroying instance %d (%s)", inst.ID, inst.Label), false, inst.ID)
		err := m.cfg.ControlPlane.DestroyInstance(ctx, inst.ID)
		switch {
		case err == nil:
			succeeded++
			m.record(history.EventDeleteSuccess, "instance destroyed", false, inst.ID)
		case errors.Is(err, vast.ErrNotFound):
			// already gone; the goal state is reached
			succeeded++
			m.cfg.Logger.Info("instance already gone", "id", inst.ID)
			m.record(history.EventDeleteSuccess, "instance already gone", false, inst.ID)
		default:
			m.cfg.Logger.Error("destroying instance failed", "id", inst.ID, "error", err)
			m.record(history.EventDeleteFailure, err.Error(), false, inst.ID)
		}
	}

	if succeeded == 0 {
		metrics.IncDeletion(path, "failure")
		if path == pathTimeout {
			m.cfg.Logger.Warn("all deletions failed, backing off a full grace period")
			m.rewindTimer(0)
		}
		m.publish("Failed to delete instances, will retry later", false, "")
		return nil
	}

	metrics.IncDeletion(path, "success")
	if path == pathManual {
		// a manual one-off deletion does not end the monitoring session
		m.publish(fmt.Sprintf("Deleted %d of %d instance(s)", succeeded, len(instances)), m.State().Running, "")
		return nil
	}
	m.cfg.Logger.Info("instances deleted, monitoring finished", "deleted", succeeded, "matched", len(instances))
	m.finalize("Instances Deleted, Monitoring Stopped", "timeout deletion completed")
	return errStopped
}

// rewindTimer resets LastActiveAt so that exactly `window` of grace time
// remains. Zero leaves the full grace period.
func (m *Monitor) rewindTimer(window time.Duration) {
	now := m.cfg.Now()
	m.mu.Lock()
	if window <= 0 || window > m.cfg.GracePeriod {
		m.st.LastActiveAt = now
	} else {
		m.st.LastActiveAt = now.Add(window - m.cfg.GracePeriod)
	}
	m.mu.Unlock()
}

// finalize marks the loop stopped and writes the terminal snapshot.
func (m *Monitor) finalize(statusText, detail string) {
	m.mu.Lock()
	m.st.Stopped = true
	running := m.st.Running
	m.mu.Unlock()
	m.publish(statusText, running, "")
	m.record(history.EventMonitorStop, detail, running, 0)
	m.cfg.Logger.Info("monitoring stopped", "reason", detail)
}

func (m *Monitor) publish(statusText string, running bool, remaining string) {
	if err := m.cfg.Status.Publish(statusText, running, remaining); err != nil {
		m.cfg.Logger.Error("publishing status failed", "error", err)
	}
}

func (m *Monitor) record(t history.EventType, detail string, running bool, instanceID int64) {
	e := history.Event{
		Type:           t,
		OccurredAt:     m.cfg.Now().UTC(),
		Detail:         detail,
		ProcessRunning: running,
		InstanceID:     instanceID,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.cfg.History.Send(ctx, e); err != nil {
		m.cfg.Logger.Error("history sink rejected event", "type", string(t), "error", err)
	}
}
