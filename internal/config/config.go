// Package config loads the watcher configuration from a TOML file and
// applies defaults, environment overrides, and validation. Precedence is
// defaults, then file, then IDLEWATCH_API_KEY, then CLI flags (applied by
// the caller after Load).
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/loykin/idlewatch/internal/logger"
	"github.com/loykin/idlewatch/internal/probe"
	"github.com/spf13/viper"
)

// EnvAPIKey overrides the file credential when set. The key never has to
// live on disk.
const EnvAPIKey = "IDLEWATCH_API_KEY"

const (
	DefaultInterval       = 5 * time.Second
	DefaultTimeoutMinutes = 15.0
	DefaultRetryInterval  = time.Minute
	DefaultStatusKeep     = 20
)

// WatchConfig is the resolved configuration for one monitor run.
type WatchConfig struct {
	Processes      []string      `toml:"processes" mapstructure:"processes"`
	MatchMode      string        `toml:"match_mode" mapstructure:"match_mode"`
	PIDFile        string        `toml:"watch_pidfile" mapstructure:"watch_pidfile"`
	CheckCommand   string        `toml:"check_command" mapstructure:"check_command"`
	TimeoutMinutes float64       `toml:"timeout_minutes" mapstructure:"timeout_minutes"`
	Interval       time.Duration `toml:"interval" mapstructure:"interval"`
	RetryInterval  time.Duration `toml:"retry_interval" mapstructure:"retry_interval"`

	APIKey   string `toml:"api_key" mapstructure:"api_key"`
	APIBase  string `toml:"api_base" mapstructure:"api_base"`
	Instance string `toml:"instance" mapstructure:"instance"`

	WorkDir    string `toml:"work_dir" mapstructure:"work_dir"`
	CommandDir string `toml:"command_dir" mapstructure:"command_dir"`
	StatusDir  string `toml:"status_dir" mapstructure:"status_dir"`
	StatusKeep int    `toml:"status_keep" mapstructure:"status_keep"`

	Listen        string `toml:"listen" mapstructure:"listen"`
	MetricsListen string `toml:"metrics_listen" mapstructure:"metrics_listen"`
	HistoryDSN    string `toml:"history_dsn" mapstructure:"history_dsn"`

	Log *logger.Config `toml:"log" mapstructure:"log"`
}

// Default returns a WatchConfig with every default applied.
func Default() WatchConfig {
	return WatchConfig{
		MatchMode:      string(probe.MatchExact),
		TimeoutMinutes: DefaultTimeoutMinutes,
		Interval:       DefaultInterval,
		RetryInterval:  DefaultRetryInterval,
		StatusKeep:     DefaultStatusKeep,
		WorkDir:        ".",
	}
}

// Load reads a TOML file into a WatchConfig on top of the defaults and
// applies the environment override. An empty path yields plain defaults.
func Load(path string) (WatchConfig, error) {
	wc := Default()
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return wc, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := v.Unmarshal(&wc); err != nil {
			return wc, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	wc.ApplyEnv()
	return wc, nil
}

// ApplyEnv applies environment overrides. Called by Load; exposed for
// callers that build a WatchConfig directly.
func (c *WatchConfig) ApplyEnv() {
	if key := os.Getenv(EnvAPIKey); key != "" {
		c.APIKey = key
	}
}

// Normalize fills derived fields. Command and status directories default
// to the working directory, which itself defaults to the current one.
func (c *WatchConfig) Normalize() {
	if c.WorkDir == "" {
		c.WorkDir = "."
	}
	if c.CommandDir == "" {
		c.CommandDir = c.WorkDir
	}
	if c.StatusDir == "" {
		c.StatusDir = c.WorkDir
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.RetryInterval <= 0 {
		c.RetryInterval = DefaultRetryInterval
	}
	if c.TimeoutMinutes <= 0 {
		c.TimeoutMinutes = DefaultTimeoutMinutes
	}
	if c.MatchMode == "" {
		c.MatchMode = string(probe.MatchExact)
	}
}

// Validate checks the fields a monitor run cannot proceed without.
func (c *WatchConfig) Validate() error {
	if len(c.Processes) == 0 && c.PIDFile == "" && c.CheckCommand == "" {
		return fmt.Errorf("no liveness probe configured: set processes, watch_pidfile, or check_command")
	}
	if _, err := probe.ParseMatchMode(c.MatchMode); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("api key is required: set api_key or %s", EnvAPIKey)
	}
	if c.TimeoutMinutes <= 0 {
		return fmt.Errorf("timeout_minutes must be positive, got %v", c.TimeoutMinutes)
	}
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	}
	return nil
}

// GracePeriod converts the minute-denominated timeout into a duration.
func (c *WatchConfig) GracePeriod() time.Duration {
	return time.Duration(c.TimeoutMinutes * float64(time.Minute))
}

// BuildProbe assembles the configured liveness probes into one Probe.
// Several sources combine with any-alive semantics.
func (c *WatchConfig) BuildProbe() (probe.Probe, error) {
	mode, err := probe.ParseMatchMode(c.MatchMode)
	if err != nil {
		return nil, err
	}
	var probes []probe.Probe
	if len(c.Processes) > 0 {
		probes = append(probes, probe.NameProbe{Names: c.Processes, Mode: mode})
	}
	if c.PIDFile != "" {
		probes = append(probes, probe.PIDFileProbe{PIDFile: c.PIDFile})
	}
	if c.CheckCommand != "" {
		probes = append(probes, probe.CommandProbe{Command: c.CheckCommand})
	}
	if len(probes) == 0 {
		return nil, fmt.Errorf("no liveness probe configured")
	}
	if len(probes) == 1 {
		return probes[0], nil
	}
	return probe.Multi(probes), nil
}
