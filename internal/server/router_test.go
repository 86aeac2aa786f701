package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/loykin/idlewatch/internal/command"
	"github.com/loykin/idlewatch/internal/status"
	"github.com/loykin/idlewatch/internal/vast"
)

func init() { gin.SetMode(gin.TestMode) }

type fakeCP struct {
	instances []vast.Instance
	err       error
}

func (f fakeCP) ListInstances(context.Context, vast.Selector) ([]vast.Instance, error) {
	return f.instances, f.err
}

func (f fakeCP) DestroyInstance(context.Context, int64) error { return nil }

func newTestServer(t *testing.T, cfg Config) (*httptest.Server, string) {
	t.Helper()
	dir := t.TempDir()
	if cfg.StatusDir == "" {
		cfg.StatusDir = dir
	}
	if cfg.CommandDir == "" {
		cfg.CommandDir = dir
	}
	srv := httptest.NewServer(NewRouter(cfg).Handler())
	t.Cleanup(srv.Close)
	return srv, dir
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s: %v", url, err)
		}
	}
	return resp.StatusCode
}

func TestStatusEndpoint(t *testing.T) {
	srv, dir := newTestServer(t, Config{})

	if code := getJSON(t, srv.URL+"/status", nil); code != http.StatusNotFound {
		t.Fatalf("empty dir status code = %d, want 404", code)
	}

	pub, err := status.NewPublisher(dir, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("publisher: %v", err)
	}
	if err := pub.Publish("Process Running", true, ""); err != nil {
		t.Fatalf("publish: %v", err)
	}

	var snap status.Snapshot
	if code := getJSON(t, srv.URL+"/status", &snap); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if snap.Status != "Process Running" || !snap.ProcessRunning {
		t.Fatalf("snapshot = %+v", snap)
	}
}

func TestCommandEndpoint(t *testing.T) {
	srv, dir := newTestServer(t, Config{})

	resp, err := http.Post(srv.URL+"/command?kind=pause", "", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status code = %d, want 202", resp.StatusCode)
	}

	ch, err := command.New(dir, slog.New(slog.DiscardHandler))
	if err != nil {
		t.Fatalf("channel: %v", err)
	}
	kind, ok := ch.Poll()
	if !ok || kind != command.Pause {
		t.Fatalf("poll = %v %v, want pause", kind, ok)
	}

	resp, err = http.Post(srv.URL+"/command?kind=explode", "", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("bad kind status code = %d, want 400", resp.StatusCode)
	}
}

func TestInstancesEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, Config{
		ControlPlane: fakeCP{instances: []vast.Instance{{ID: 7, Label: "train", DPHTotal: 0.42}}},
	})

	var got []vast.Instance
	if code := getJSON(t, srv.URL+"/instances", &got); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if len(got) != 1 || got[0].ID != 7 {
		t.Fatalf("instances = %+v", got)
	}
}

func TestInstancesEndpointErrors(t *testing.T) {
	srv, _ := newTestServer(t, Config{ControlPlane: fakeCP{err: errors.New("api down")}})
	if code := getJSON(t, srv.URL+"/instances", nil); code != http.StatusBadGateway {
		t.Fatalf("status code = %d, want 502", code)
	}

	srv2, _ := newTestServer(t, Config{})
	if code := getJSON(t, srv2.URL+"/instances", nil); code != http.StatusServiceUnavailable {
		t.Fatalf("status code = %d, want 503", code)
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, Config{})
	var resp healthResp
	if code := getJSON(t, srv.URL+"/healthz", &resp); code != http.StatusOK {
		t.Fatalf("status code = %d", code)
	}
	if !resp.OK || resp.Running != nil {
		t.Fatalf("health = %+v, want ok with no loop state", resp)
	}
}

func TestNewServerReportsBindError(t *testing.T) {
	dir := t.TempDir()
	if _, err := NewServer("not-an-address", Config{StatusDir: dir, CommandDir: dir}); err == nil {
		t.Fatalf("expected error for unusable listen address")
	}

	srv, err := NewServer("127.0.0.1:0", Config{StatusDir: dir, CommandDir: dir})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := srv.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}

func TestSanitizeBase(t *testing.T) {
	cases := map[string]string{
		"":      "",
		"/":     "",
		"api":   "/api",
		"/api/": "/api",
	}
	for in, want := range cases {
		if got := sanitizeBase(in); got != want {
			t.Fatalf("sanitizeBase(%q) = %q, want %q", in, got, want)
		}
	}
}
