package probe

// Probe is a strategy that determines if the watched workload is active.
// Implementations may scan the process table, check a PID file, or run a
// custom script. It must be safe for concurrent use.
type Probe interface {
	// Alive returns true if the workload is detected as running.
	Alive() (bool, error)
	// Describe returns a human-readable description of the probe method.
	Describe() string
}

// Multi reports the workload alive if any member probe does. Member errors
// are ignored as long as one probe answers; the last error is returned only
// when every probe failed.
type Multi []Probe

func (m Multi) Alive() (bool, error) {
	var lastErr error
	answered := false
	for _, p := range m {
		alive, err := p.Alive()
		if err != nil {
			lastErr = err
			continue
		}
		answered = true
		if alive {
			return true, nil
		}
	}
	if !answered && lastErr != nil {
		return false, lastErr
	}
	return false, nil
}

func (m Multi) Describe() string {
	s := "multi:"
	for i, p := range m {
		if i > 0 {
			s += "+"
		}
		s += p.Describe()
	}
	return s
}
