//go:build windows

package probe

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// pidAlive returns true if a process with given pid exists on Windows.
func pidAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := syscall.OpenProcess(syscall.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer syscall.CloseHandle(h)
	return true
}

// PIDFileProbe watches a workload through its PID file. The first line must
// be the PID; an optional second line may carry JSON metadata with the
// process start time, used to reject PID reuse.
type PIDFileProbe struct {
	PIDFile string
}

type pidMeta struct {
	StartUnix int64 `json:"start_unix"`
}

func (p PIDFileProbe) Alive() (bool, error) {
	data, err := os.ReadFile(p.PIDFile)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	pidStr := strings.TrimSpace(lines[0])
	pid, err := strconv.Atoi(pidStr)
	if err != nil {
		return false, fmt.Errorf("invalid pid in %s: %w", p.PIDFile, err)
	}

	if len(lines) >= 2 && strings.TrimSpace(lines[1]) != "" {
		var m pidMeta
		if err := json.Unmarshal([]byte(strings.TrimSpace(lines[1])), &m); err == nil && m.StartUnix > 0 {
			cur := getProcStartUnix(pid)
			if cur > 0 && cur != m.StartUnix {
				return false, nil // PID reused; not our process
			}
		}
	}

	return pidAlive(pid), nil
}

func (p PIDFileProbe) Describe() string { return "pidfile:" + p.PIDFile }
