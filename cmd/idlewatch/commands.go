package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/loykin/idlewatch/internal/command"
	"github.com/loykin/idlewatch/internal/config"
	"github.com/loykin/idlewatch/internal/history"
	"github.com/loykin/idlewatch/internal/history/factory"
	"github.com/loykin/idlewatch/internal/logger"
	"github.com/loykin/idlewatch/internal/metrics"
	"github.com/loykin/idlewatch/internal/monitor"
	"github.com/loykin/idlewatch/internal/server"
	"github.com/loykin/idlewatch/internal/status"
	"github.com/loykin/idlewatch/internal/vast"
	"github.com/prometheus/client_golang/prometheus"
)

// loadRunConfig merges defaults, config file, environment, and flags.
// Flags win when they carry a non-zero value.
func loadRunConfig(flags *RunFlags) (config.WatchConfig, error) {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return cfg, err
	}
	if len(flags.Processes) > 0 {
		cfg.Processes = flags.Processes
	}
	if flags.MatchMode != "" {
		cfg.MatchMode = flags.MatchMode
	}
	if flags.WatchPIDFile != "" {
		cfg.PIDFile = flags.WatchPIDFile
	}
	if flags.CheckCommand != "" {
		cfg.CheckCommand = flags.CheckCommand
	}
	if flags.TimeoutMinutes > 0 {
		cfg.TimeoutMinutes = flags.TimeoutMinutes
	}
	if flags.Interval > 0 {
		cfg.Interval = flags.Interval
	}
	if flags.APIKey != "" {
		cfg.APIKey = flags.APIKey
	}
	if flags.APIBase != "" {
		cfg.APIBase = flags.APIBase
	}
	if flags.Instance != "" {
		cfg.Instance = flags.Instance
	}
	if flags.WorkDir != "" {
		cfg.WorkDir = flags.WorkDir
	}
	if flags.CommandDir != "" {
		cfg.CommandDir = flags.CommandDir
	}
	if flags.StatusDir != "" {
		cfg.StatusDir = flags.StatusDir
	}
	if flags.Listen != "" {
		cfg.Listen = flags.Listen
	}
	if flags.MetricsListen != "" {
		cfg.MetricsListen = flags.MetricsListen
	}
	if flags.HistoryDSN != "" {
		cfg.HistoryDSN = flags.HistoryDSN
	}
	cfg.Normalize()
	return cfg, nil
}

// runWatch is the `run` command: build the collaborators from config and
// drive the monitor loop until it stops or a signal arrives.
func runWatch(flags *RunFlags) error {
	if flags.Daemonize {
		return daemonize(flags.PidFile, flags.LogFile)
	}

	cfg, err := loadRunConfig(flags)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	var logCfg logger.Config
	if cfg.Log != nil {
		logCfg = *cfg.Log
	}
	if flags.LogFile != "" {
		logCfg.File = flags.LogFile
	}
	lg := logger.Setup(logCfg)

	prb, err := cfg.BuildProbe()
	if err != nil {
		return err
	}

	ch, err := command.New(cfg.CommandDir, lg)
	if err != nil {
		return err
	}
	pub, err := status.NewPublisher(cfg.StatusDir, lg)
	if err != nil {
		return err
	}

	cp := vast.New(vast.Config{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.APIBase,
		Logger:  lg,
	})
	sel := vast.ParseSelector(cfg.Instance)

	var sink history.Sink
	if cfg.HistoryDSN != "" {
		sink, err = factory.NewSinkFromDSN(cfg.HistoryDSN)
		if err != nil {
			return fmt.Errorf("history sink: %w", err)
		}
		defer func() {
			if closer, ok := sink.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		}()
	}

	mon, err := monitor.New(monitor.Config{
		Probe:         prb,
		ControlPlane:  cp,
		Selector:      sel,
		Commands:      ch,
		Status:        pub,
		History:       sink,
		GracePeriod:   cfg.GracePeriod(),
		PollInterval:  cfg.Interval,
		RetryInterval: cfg.RetryInterval,
		StatusKeep:    cfg.StatusKeep,
		Logger:        lg,
	})
	if err != nil {
		return err
	}

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		lg.Warn("metrics registration failed", "error", err)
	}
	if cfg.MetricsListen != "" {
		msrv := &http.Server{
			Addr:              cfg.MetricsListen,
			Handler:           metrics.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() { _ = msrv.ListenAndServe() }()
		defer func() { _ = msrv.Close() }()
		lg.Info("metrics server listening", "addr", cfg.MetricsListen)
	}

	if cfg.Listen != "" {
		srv, err := server.NewServer(cfg.Listen, server.Config{
			StatusDir:    cfg.StatusDir,
			CommandDir:   cfg.CommandDir,
			ControlPlane: cp,
			Selector:     sel,
			Monitor:      mon,
		})
		if err != nil {
			return fmt.Errorf("control API server: %w", err)
		}
		defer func() { _ = srv.Close() }()
		lg.Info("control API listening", "addr", cfg.Listen)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err = mon.Run(ctx)
	if flags.PidFile != "" {
		_ = removePidFile(flags.PidFile)
	}
	return err
}

// sendControl implements stop/pause/resume/delete-now: drop one command
// file where the watcher looks for them.
func sendControl(flags *ControlFlags, kind command.Kind) error {
	dir, err := resolveDir(flags.ConfigPath, flags.WorkDir, flags.CommandDir, true)
	if err != nil {
		return err
	}
	if err := command.Send(dir, kind); err != nil {
		return err
	}
	fmt.Printf("%s command sent to %s\n", string(kind), dir)
	return nil
}

// showStatus prints the newest snapshot, optionally following the stream.
func showStatus(w io.Writer, flags *StatusFlags) error {
	dir, err := resolveDir(flags.ConfigPath, flags.WorkDir, flags.StatusDir, false)
	if err != nil {
		return err
	}

	snap, err := status.Latest(dir)
	if err == nil {
		printSnapshot(w, snap)
	} else if !flags.Follow {
		return err
	}

	if !flags.Follow {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	stream, err := followSnapshots(ctx, dir)
	if err != nil {
		return err
	}
	last := snap
	for s := range stream {
		if s.Timestamp == last.Timestamp && s.Status == last.Status {
			continue
		}
		printSnapshot(w, s)
		last = s
	}
	return nil
}

// listInstances prints the remote instances the selector matches.
func listInstances(ctx context.Context, w io.Writer, flags *InstancesFlags) error {
	cfg, err := config.Load(flags.ConfigPath)
	if err != nil {
		return err
	}
	if flags.APIKey != "" {
		cfg.APIKey = flags.APIKey
	}
	if flags.APIBase != "" {
		cfg.APIBase = flags.APIBase
	}
	if flags.Instance != "" {
		cfg.Instance = flags.Instance
	}
	if cfg.APIKey == "" {
		return fmt.Errorf("api key is required: set --api-key, api_key in the config, or %s", config.EnvAPIKey)
	}

	cp := vast.New(vast.Config{APIKey: cfg.APIKey, BaseURL: cfg.APIBase})
	instances, err := cp.ListInstances(ctx, vast.ParseSelector(cfg.Instance))
	if err != nil {
		return err
	}
	printInstances(w, instances)
	return nil
}

// resolveDir picks the directory for command or status files: explicit
// override, then config file, then working directory.
func resolveDir(configPath, workDir, override string, forCommands bool) (string, error) {
	if override != "" {
		return override, nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return "", err
	}
	if workDir != "" {
		cfg.WorkDir = workDir
		cfg.CommandDir = ""
		cfg.StatusDir = ""
	}
	cfg.Normalize()
	if forCommands {
		return cfg.CommandDir, nil
	}
	return cfg.StatusDir, nil
}
