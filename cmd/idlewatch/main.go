package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/loykin/idlewatch/internal/command"
	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot()
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command and all subcommands.
func buildRoot() *cobra.Command {
	root := createRootCommand()
	root.AddCommand(
		createRunCommand(),
		createControlCommand("stop", "Stop the running watcher", command.Stop),
		createControlCommand("pause", "Pause monitoring without stopping the watcher", command.Pause),
		createControlCommand("resume", "Resume a paused watcher", command.Resume),
		createControlCommand("delete-now", "Delete the remote instances immediately", command.DeleteNow),
		createStatusCommand(),
		createInstancesCommand(),
	)
	return root
}

func createRootCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "idlewatch",
		Short: "Inactivity watcher for billed remote compute instances",
		Long: `Idlewatch watches a local workload and deletes a remote Vast.ai-style
instance once the workload has been idle for a grace period, so an
abandoned GPU box stops billing.

Examples:
  idlewatch run --processes=python --instance=12345 --timeout=30
  idlewatch run --config=idlewatch.toml --daemonize --pidfile=/run/idlewatch.pid
  idlewatch status --follow
  idlewatch delete-now`,
	}
}

func createRunCommand() *cobra.Command {
	flags := &RunFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the monitor loop",
		Long: `Start the monitor loop: probe the workload every interval, count down
the grace period while it is idle, and delete the matching remote
instances when the countdown expires.

Examples:
  idlewatch run --processes=python,ffmpeg --instance=12345 --timeout=30
  idlewatch run --config=idlewatch.toml --listen=:8080 --metrics-listen=:9090`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(flags)
		},
	}

	cmd.Flags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	cmd.Flags().StringSliceVar(&flags.Processes, "processes", nil, "process names to watch (comma separated)")
	cmd.Flags().StringVar(&flags.MatchMode, "match-mode", "", "process name matching: exact or substring")
	cmd.Flags().StringVar(&flags.WatchPIDFile, "watch-pidfile", "", "watch the process recorded in this pidfile")
	cmd.Flags().StringVar(&flags.CheckCommand, "check-command", "", "shell command whose zero exit means the workload is alive")
	cmd.Flags().Float64Var(&flags.TimeoutMinutes, "timeout", 0, "idle minutes before deletion (default 15)")
	cmd.Flags().DurationVar(&flags.Interval, "interval", 0, "poll interval (default 5s)")
	cmd.Flags().StringVar(&flags.APIKey, "api-key", "", "control plane API key (or IDLEWATCH_API_KEY)")
	cmd.Flags().StringVar(&flags.APIBase, "api-base", "", "control plane base URL")
	cmd.Flags().StringVar(&flags.Instance, "instance", "", "instance id or label; empty selects all")
	cmd.Flags().StringVar(&flags.WorkDir, "work-dir", "", "directory for command and status files (default .)")
	cmd.Flags().StringVar(&flags.CommandDir, "command-dir", "", "override the command file directory")
	cmd.Flags().StringVar(&flags.StatusDir, "status-dir", "", "override the status file directory")
	cmd.Flags().StringVar(&flags.Listen, "listen", "", "serve the HTTP control API on this address")
	cmd.Flags().StringVar(&flags.MetricsListen, "metrics-listen", "", "serve Prometheus metrics on this address")
	cmd.Flags().StringVar(&flags.HistoryDSN, "history-dsn", "", "history sink DSN (sqlite://, postgres://, clickhouse://)")
	cmd.Flags().BoolVar(&flags.Daemonize, "daemonize", false, "run in the background")
	cmd.Flags().StringVar(&flags.PidFile, "pidfile", "", "write the daemon PID to this file")
	cmd.Flags().StringVar(&flags.LogFile, "logfile", "", "redirect daemon logs to file")

	return cmd
}

func createControlCommand(use, short string, kind command.Kind) *cobra.Command {
	flags := &ControlFlags{}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		Long: fmt.Sprintf(`%s by dropping a %s command file into the watcher's
command directory. The watcher picks it up on its next tick.`, short, string(kind)),
		RunE: func(cmd *cobra.Command, args []string) error {
			return sendControl(flags, kind)
		},
	}
	cmd.Flags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	cmd.Flags().StringVar(&flags.WorkDir, "work-dir", "", "watcher working directory (default .)")
	cmd.Flags().StringVar(&flags.CommandDir, "command-dir", "", "override the command file directory")
	return cmd
}

func createStatusCommand() *cobra.Command {
	flags := &StatusFlags{}
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Print the latest watcher status snapshot",
		Long: `Print the latest status snapshot the watcher published.

Examples:
  idlewatch status
  idlewatch status --follow        # stream snapshots as they appear`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(cmd.OutOrStdout(), flags)
		},
	}
	cmd.Flags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	cmd.Flags().StringVar(&flags.WorkDir, "work-dir", "", "watcher working directory (default .)")
	cmd.Flags().StringVar(&flags.StatusDir, "status-dir", "", "override the status file directory")
	cmd.Flags().BoolVar(&flags.Follow, "follow", false, "keep printing snapshots as they are published")
	return cmd
}

func createInstancesCommand() *cobra.Command {
	flags := &InstancesFlags{}
	cmd := &cobra.Command{
		Use:   "instances",
		Short: "List remote instances matching the selector",
		Long: `List the control-plane instances the configured selector matches,
with their status, GPU, and hourly cost.

Examples:
  idlewatch instances --api-key=...
  idlewatch instances --config=idlewatch.toml --instance=trainer`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			return listInstances(ctx, cmd.OutOrStdout(), flags)
		},
	}
	cmd.Flags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	cmd.Flags().StringVar(&flags.APIKey, "api-key", "", "control plane API key (or IDLEWATCH_API_KEY)")
	cmd.Flags().StringVar(&flags.APIBase, "api-base", "", "control plane base URL")
	cmd.Flags().StringVar(&flags.Instance, "instance", "", "instance id or label; empty selects all")
	return cmd
}
