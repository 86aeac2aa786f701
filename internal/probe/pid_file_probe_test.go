//go:build !windows

package probe

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestPIDFileProbeMissingFile(t *testing.T) {
	p := PIDFileProbe{PIDFile: filepath.Join(t.TempDir(), "missing.pid")}
	alive, err := p.Alive()
	if err != nil || alive {
		t.Fatalf("missing file should be not-alive, got alive=%v err=%v", alive, err)
	}
}

func TestPIDFileProbeOwnPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "self.pid")
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0o644); err != nil {
		t.Fatalf("write pidfile: %v", err)
	}
	p := PIDFileProbe{PIDFile: path}
	alive, err := p.Alive()
	if err != nil || !alive {
		t.Fatalf("own pid should be alive, got alive=%v err=%v", alive, err)
	}
}

func TestPIDFileProbeInvalidPID(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.pid")
	if err := os.WriteFile(path, []byte("not-a-pid\n"), 0o644); err != nil {
		t.Fatalf("write pidfile: %v", err)
	}
	p := PIDFileProbe{PIDFile: path}
	if _, err := p.Alive(); err == nil {
		t.Fatalf("invalid pid should error")
	}
}

func TestPIDFileProbeRejectsReusedPID(t *testing.T) {
	cur := getProcStartUnix(os.Getpid())
	if cur == 0 {
		t.Skip("start time unavailable on this platform")
	}
	path := filepath.Join(t.TempDir(), "stale.pid")
	content := fmt.Sprintf("%d\n{\"start_unix\":%d}\n", os.Getpid(), cur-1000)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write pidfile: %v", err)
	}
	p := PIDFileProbe{PIDFile: path}
	alive, err := p.Alive()
	if err != nil || alive {
		t.Fatalf("mismatched start time must be treated as PID reuse, got alive=%v err=%v", alive, err)
	}
}
