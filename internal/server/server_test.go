package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/echoform/internal/analyzer"
	"github.com/MrWong99/echoform/internal/health"
	"github.com/MrWong99/echoform/internal/stats"
	"github.com/MrWong99/echoform/internal/visual"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()

	an := analyzer.New(analyzer.Config{})
	engine := visual.New(visual.Config{}, an, func() bool { return false }, stats.New(10))
	s := New(
		Config{ListenAddr: ":0", PushInterval: 10 * time.Millisecond},
		engine,
		stats.New(10),
		health.New(),
	)

	ts := httptest.NewServer(s.srv.Handler)
	t.Cleanup(ts.Close)
	return s, ts
}

func TestHandleViz_ReturnsSnapshot(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/viz")
	if err != nil {
		t.Fatalf("GET /viz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var snap visual.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if len(snap.BlobPoints) != 16 {
		t.Errorf("blob points = %d, want 16", len(snap.BlobPoints))
	}
}

func TestHandleStatusz_ReturnsStats(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/statusz")
	if err != nil {
		t.Fatalf("GET /statusz: %v", err)
	}
	defer resp.Body.Close()

	var body stats.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode statusz: %v", err)
	}
	if body.UptimeSeconds < 0 {
		t.Errorf("uptime = %v, want ≥ 0", body.UptimeSeconds)
	}
}

func TestHandleWS_PushesSnapshots(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t)
	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", wsURL, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	for i := 0; i < 3; i++ {
		var snap visual.Snapshot
		if err := wsjson.Read(ctx, conn, &snap); err != nil {
			t.Fatalf("read snapshot %d: %v", i, err)
		}
		if len(snap.BlobPoints) != 16 {
			t.Errorf("snapshot %d blob points = %d, want 16", i, len(snap.BlobPoints))
		}
	}
}

func TestHealthRoutesRegistered(t *testing.T) {
	t.Parallel()

	_, ts := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusNotFound {
			t.Errorf("route %s not registered", path)
		}
	}
}
