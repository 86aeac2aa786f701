package idlewatch

import (
	"context"
	"net/http"
	"time"

	"github.com/loykin/idlewatch/internal/command"
	icfg "github.com/loykin/idlewatch/internal/config"
	"github.com/loykin/idlewatch/internal/history"
	"github.com/loykin/idlewatch/internal/history/factory"
	"github.com/loykin/idlewatch/internal/metrics"
	"github.com/loykin/idlewatch/internal/monitor"
	"github.com/loykin/idlewatch/internal/probe"
	iapi "github.com/loykin/idlewatch/internal/server"
	"github.com/loykin/idlewatch/internal/status"
	"github.com/loykin/idlewatch/internal/vast"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Probe = probe.Probe

type NameProbe = probe.NameProbe

type PIDFileProbe = probe.PIDFileProbe

type CommandProbe = probe.CommandProbe

type MultiProbe = probe.Multi

type Instance = vast.Instance

type Selector = vast.Selector

type ControlPlane = vast.ControlPlane

type Snapshot = status.Snapshot

type CommandKind = command.Kind

type HistorySink = history.Sink

type HistoryEvent = history.Event

type WatchConfig = icfg.WatchConfig

// Watcher is a thin facade over internal/monitor.Monitor.
// It provides a stable public API for embedding.

type Watcher struct{ inner *monitor.Monitor }

// WatcherConfig is the embedding-level monitor configuration.
type WatcherConfig struct {
	Probe         Probe
	ControlPlane  ControlPlane
	Selector      Selector
	CommandDir    string
	StatusDir     string
	History       HistorySink
	GracePeriod   time.Duration
	PollInterval  time.Duration
	RetryInterval time.Duration
	StatusKeep    int
}

// NewWatcher assembles a monitor from an embedding-level configuration.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	ch, err := command.New(cfg.CommandDir, nil)
	if err != nil {
		return nil, err
	}
	pub, err := status.NewPublisher(cfg.StatusDir, nil)
	if err != nil {
		return nil, err
	}
	inner, err := monitor.New(monitor.Config{
		Probe:         cfg.Probe,
		ControlPlane:  cfg.ControlPlane,
		Selector:      cfg.Selector,
		Commands:      ch,
		Status:        pub,
		History:       cfg.History,
		GracePeriod:   cfg.GracePeriod,
		PollInterval:  cfg.PollInterval,
		RetryInterval: cfg.RetryInterval,
		StatusKeep:    cfg.StatusKeep,
	})
	if err != nil {
		return nil, err
	}
	return &Watcher{inner: inner}, nil
}

// Run drives the monitor loop until it stops or ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error { return w.inner.Run(ctx) }

// Monitor exposes the underlying monitor for HTTP mounting.
func (w *Watcher) Monitor() *monitor.Monitor { return w.inner }

// LoadConfig reads a TOML config file with defaults and env overrides.
func LoadConfig(path string) (WatchConfig, error) { return icfg.Load(path) }

// NewClient creates a control-plane REST client.
func NewClient(apiKey, baseURL string) *vast.Client {
	return vast.New(vast.Config{APIKey: apiKey, BaseURL: baseURL})
}

// ParseSelector parses an instance selector: integer means id, anything
// else matches labels, empty selects all.
func ParseSelector(s string) Selector { return vast.ParseSelector(s) }

// SendCommand drops a control command file for a watcher using dir.
func SendCommand(dir string, kind CommandKind) error { return command.Send(dir, kind) }

// LatestStatus reads the newest snapshot a watcher published into dir.
func LatestStatus(dir string) (Snapshot, error) { return status.Latest(dir) }

// NewHistorySink builds a history sink from a DSN
// (sqlite://, postgres://, clickhouse://).
func NewHistorySink(dsn string) (HistorySink, error) { return factory.NewSinkFromDSN(dsn) }

// NewHTTPServer starts an HTTP server exposing the control API for a watcher.
func NewHTTPServer(addr, basePath string, w *Watcher, statusDir, commandDir string, cp ControlPlane, sel Selector) (*http.Server, error) {
	var mon *monitor.Monitor
	if w != nil {
		mon = w.inner
	}
	return iapi.NewServer(addr, iapi.Config{
		StatusDir:    statusDir,
		CommandDir:   commandDir,
		ControlPlane: cp,
		Selector:     sel,
		Monitor:      mon,
		BasePath:     basePath,
	})
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }

// ServeMetrics starts an HTTP server on addr exposing /metrics using the default registry.
// It returns any immediate listen error; otherwise it runs the server in the caller goroutine.
func ServeMetrics(addr string) error {
	http.Handle("/metrics", metrics.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           nil,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return srv.ListenAndServe()
}
