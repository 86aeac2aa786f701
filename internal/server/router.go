package server

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/idlewatch/internal/command"
	"github.com/loykin/idlewatch/internal/monitor"
	"github.com/loykin/idlewatch/internal/status"
	"github.com/loykin/idlewatch/internal/vast"
)

// Router provides embeddable HTTP handlers over a running monitor.
// Endpoints:
//
//	GET  {basePath}/healthz    monitor loop state
//	GET  {basePath}/status     latest status snapshot
//	GET  {basePath}/instances  remote instances matching the selector
//	POST {basePath}/command    query: kind=stop|delete_now|pause|resume
//
// POST /command writes a command file into the same channel directory the
// loop polls, so HTTP control and file control share one delivery path.
// basePath may be empty or start with '/'; no trailing slash.

type Router struct {
	statusDir  string
	commandDir string
	cp         vast.ControlPlane
	sel        vast.Selector
	mon        *monitor.Monitor
	basePath   string
}

// Config wires the router. ControlPlane and Monitor are optional; their
// endpoints degrade to 503/minimal health when absent.
type Config struct {
	StatusDir    string
	CommandDir   string
	ControlPlane vast.ControlPlane
	Selector     vast.Selector
	Monitor      *monitor.Monitor
	BasePath     string
}

// NewRouter constructs a Router with configurable basePath.
// Example basePath: "/api" results in /api/status, /api/command, etc.
func NewRouter(cfg Config) *Router {
	return &Router{
		statusDir:  cfg.StatusDir,
		commandDir: cfg.CommandDir,
		cp:         cfg.ControlPlane,
		sel:        cfg.Selector,
		mon:        cfg.Monitor,
		basePath:   sanitizeBase(cfg.BasePath),
	}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	group := g.Group(r.basePath)
	group.GET("/healthz", r.handleHealthz)
	group.GET("/status", r.handleStatus)
	group.GET("/instances", r.handleInstances)
	group.POST("/command", r.handleCommand)
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
// The listener is bound before returning so an unusable address surfaces
// as an error. Call Close or Shutdown on the returned server to stop it.
func NewServer(addr string, cfg Config) (*http.Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}
	r := NewRouter(cfg)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.Serve(ln) }()
	return server, nil
}

// --- Handlers ---

type errorResp struct {
	Error string `json:"error"`
}

type okResp struct {
	OK bool `json:"ok"`
}

type healthResp struct {
	OK      bool  `json:"ok"`
	Running *bool `json:"process_running,omitempty"`
	Paused  *bool `json:"paused,omitempty"`
	Stopped *bool `json:"stopped,omitempty"`
}

func (r *Router) handleHealthz(c *gin.Context) {
	resp := healthResp{OK: true}
	if r.mon != nil {
		st := r.mon.State()
		resp.Running = &st.Running
		resp.Paused = &st.Paused
		resp.Stopped = &st.Stopped
	}
	writeJSON(c, http.StatusOK, resp)
}

func (r *Router) handleStatus(c *gin.Context) {
	snap, err := status.Latest(r.statusDir)
	if err != nil {
		if errors.Is(err, status.ErrNoSnapshot) {
			writeJSON(c, http.StatusNotFound, errorResp{Error: "no status snapshot yet"})
			return
		}
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, snap)
}

func (r *Router) handleInstances(c *gin.Context) {
	if r.cp == nil {
		writeJSON(c, http.StatusServiceUnavailable, errorResp{Error: "no control plane configured"})
		return
	}
	instances, err := r.cp.ListInstances(c.Request.Context(), r.sel)
	if err != nil {
		writeJSON(c, http.StatusBadGateway, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusOK, instances)
}

func (r *Router) handleCommand(c *gin.Context) {
	kind, err := command.ParseKind(c.Query("kind"))
	if err != nil {
		writeJSON(c, http.StatusBadRequest, errorResp{Error: err.Error()})
		return
	}
	if err := command.Send(r.commandDir, kind); err != nil {
		writeJSON(c, http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	writeJSON(c, http.StatusAccepted, okResp{OK: true})
}
