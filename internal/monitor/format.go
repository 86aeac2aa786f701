package monitor

import (
	"fmt"
	"time"
)

// formatRemaining renders a countdown as "1h 2m 3s", omitting the hour
// part when zero. Sub-second remainders round up so the display never
// shows "0m 0s" while time is actually left.
func formatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64((d + time.Second - 1) / time.Second)
	h := secs / 3600
	m := (secs % 3600) / 60
	s := secs % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm %ds", h, m, s)
	}
	return fmt.Sprintf("%dm %ds", m, s)
}
