package statusbridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kingrea/cv-review/internal/config"
	"github.com/kingrea/cv-review/internal/logging"
	"github.com/kingrea/cv-review/internal/session"
)

func TestSettingsFromConfigHonorsEnv(t *testing.T) {
	t.Setenv("CVREVIEW_BRIDGE_PORT", "9001")
	t.Setenv("CVREVIEW_BRIDGE_HOST", "0.0.0.0")
	t.Setenv("CVREVIEW_BRIDGE_ENABLED", "true")
	settings := SettingsFromConfig(&config.Config{})
	if settings.Port != 9001 {
		t.Fatalf("expected port 9001, got %d", settings.Port)
	}
	if settings.Host != "0.0.0.0" {
		t.Fatalf("expected host override, got %s", settings.Host)
	}
	if !settings.Enabled {
		t.Fatalf("expected enabled=true from env override")
	}
}

func TestSettingsDisabledByDefault(t *testing.T) {
	settings := SettingsFromConfig(nil)
	if settings.Enabled || settings.Port != DefaultPort || settings.Host != DefaultHost {
		t.Fatalf("unexpected defaults %+v", settings)
	}
	if err := NewServer(settings, NewBoard()).Start(context.Background()); err != ErrDisabled {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

func TestStateServesLatestPublish(t *testing.T) {
	board := NewBoard()
	srv := NewServer(Settings{}, board, WithLogger(logging.Discard()))
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	var empty Snapshot
	getJSON(t, ts.URL+"/state", &empty)
	if empty.Published {
		t.Fatalf("nothing published yet")
	}

	board.Publish(session.State{Epoch: 3, Phase: session.PhaseProcessing, Progress: 42, Step: "Scoring"})
	var snap Snapshot
	getJSON(t, ts.URL+"/state", &snap)
	if !snap.Published || snap.Sequence != 1 {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap.State.Phase != session.PhaseProcessing || snap.State.Progress != 42 || snap.State.Epoch != 3 {
		t.Fatalf("unexpected state %+v", snap.State)
	}
}

func TestStateRejectsWrites(t *testing.T) {
	srv := NewServer(Settings{}, NewBoard())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()
	resp, err := http.Post(ts.URL+"/state", "application/json", nil)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", resp.StatusCode)
	}
}

func TestServerLifecycle(t *testing.T) {
	t.Parallel()
	settings := Settings{Enabled: true, Host: "127.0.0.1", Port: 0, Timeout: time.Second}
	srv := NewServer(settings, NewBoard(), WithLogger(logging.Discard()))
	t.Cleanup(func() {
		_ = srv.Shutdown(context.Background())
	})
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("start server: %v", err)
	}
	var health healthResponse
	getJSON(t, srv.BaseURL()+"/health", &health)
	if health.Status != string(StatusReady) {
		t.Fatalf("expected ready, got %s", health.Status)
	}
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown: %v", err)
	}
	if srv.Status() != StatusDraining {
		t.Fatalf("expected draining, got %s", srv.Status())
	}
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}
