package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/loykin/idlewatch/internal/status"
	"github.com/loykin/idlewatch/internal/vast"
	"github.com/loykin/idlewatch/pkg/control"
)

// printSnapshot renders one status snapshot as a single line.
func printSnapshot(w io.Writer, snap status.Snapshot) {
	ts := time.Unix(0, int64(snap.Timestamp*float64(time.Second))).Format("2006-01-02 15:04:05")
	line := fmt.Sprintf("%s  %s  running=%t", ts, snap.Status, snap.ProcessRunning)
	if snap.TimeRemaining != nil {
		line += "  remaining=" + *snap.TimeRemaining
	}
	_, _ = fmt.Fprintln(w, line)
}

// printInstances renders the instance list as an aligned table.
func printInstances(w io.Writer, instances []vast.Instance) {
	if len(instances) == 0 {
		_, _ = fmt.Fprintln(w, "no instances matched")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "ID\tLABEL\tSTATUS\tGPU\t$/HR")
	for _, inst := range instances {
		gpu := inst.GPUName
		if inst.NumGPUs > 1 {
			gpu = fmt.Sprintf("%dx %s", inst.NumGPUs, inst.GPUName)
		}
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%.4f\n",
			inst.ID, inst.Label, inst.ActualStatus, gpu, inst.DPHTotal)
	}
	_ = tw.Flush()
}

// followSnapshots streams snapshots from the status directory.
func followSnapshots(ctx context.Context, dir string) (<-chan control.Snapshot, error) {
	return control.New(dir, dir).Follow(ctx)
}
