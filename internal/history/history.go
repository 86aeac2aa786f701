package history

import (
	"context"
	"time"
)

// EventType defines the kind of monitor lifecycle event.
type EventType string

const (
	EventMonitorStart  EventType = "monitor_start"
	EventProbeUp       EventType = "probe_up"
	EventProbeDown     EventType = "probe_down"
	EventCommand       EventType = "command"
	EventDeleteAttempt EventType = "delete_attempt"
	EventDeleteSuccess EventType = "delete_success"
	EventDeleteFailure EventType = "delete_failure"
	EventMonitorStop   EventType = "monitor_stop"
)

// Event is one monitor lifecycle record exported to an audit store. It is
// the persistent counterpart of the transient status snapshots: snapshots
// describe now, events describe what happened.
type Event struct {
	Type           EventType `json:"type"`
	OccurredAt     time.Time `json:"occurred_at"`
	Detail         string    `json:"detail"`
	ProcessRunning bool      `json:"process_running"`
	InstanceID     int64     `json:"instance_id,omitempty"`
}

// Sink is a destination for history events.
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Nop discards every event. Used when no history DSN is configured.
type Nop struct{}

func (Nop) Send(context.Context, Event) error { return nil }
