// Package server exposes the pipeline over HTTP for remote renderers and
// operations tooling:
//
//   - /viz     — current animation snapshot as JSON (poll model)
//   - /ws      — animation snapshots pushed over WebSocket
//   - /statusz — pipeline counters, latency percentiles, uptime
//   - /healthz, /readyz — liveness and readiness probes
//   - /metrics — Prometheus scrape endpoint
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MrWong99/echoform/internal/health"
	"github.com/MrWong99/echoform/internal/stats"
	"github.com/MrWong99/echoform/internal/visual"
)

// DefaultPushInterval is the WebSocket snapshot push rate (~20 Hz), a
// comfortable cadence for remote renderers that interpolate between frames.
const DefaultPushInterval = 50 * time.Millisecond

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// Config holds the HTTP server settings.
type Config struct {
	// ListenAddr is the TCP address to listen on, e.g. ":8080".
	ListenAddr string

	// PushInterval is the WebSocket snapshot cadence. Default: 50 ms.
	PushInterval time.Duration
}

// Server is the Echoform HTTP surface. Construct with New, drive with Run.
type Server struct {
	cfg    Config
	engine *visual.Engine
	stats  *stats.PipelineStats
	srv    *http.Server
}

// New creates a Server with all routes registered.
func New(cfg Config, engine *visual.Engine, ps *stats.PipelineStats, h *health.Handler) *Server {
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = DefaultPushInterval
	}
	s := &Server{
		cfg:    cfg,
		engine: engine,
		stats:  ps,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /viz", s.handleViz)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.HandleFunc("GET /statusz", s.handleStatusz)
	mux.Handle("GET /metrics", promhttp.Handler())
	h.Register(mux)

	s.srv = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.srv.ListenAndServe()
	}()
	slog.Info("http server listening", "addr", s.cfg.ListenAddr)

	select {
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := s.srv.Shutdown(sctx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: listen on %s: %w", s.cfg.ListenAddr, err)
	}
}

// handleViz returns the latest animation snapshot.
func (s *Server) handleViz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

// handleStatusz returns pipeline counters and latency percentiles.
func (s *Server) handleStatusz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.stats.Snapshot())
}

// handleWS upgrades to WebSocket and pushes snapshots at the configured
// cadence until the client goes away.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	// Renderer pages are typically served from file:// or another local
	// origin, so origin checking is disabled.
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "done")

	ctx := r.Context()
	ticker := time.NewTicker(s.cfg.PushInterval)
	defer ticker.Stop()

	slog.Debug("websocket renderer connected", "remote", r.RemoteAddr)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wctx, cancel := context.WithTimeout(ctx, s.cfg.PushInterval*4)
			err := wsjson.Write(wctx, conn, s.engine.Snapshot())
			cancel()
			if err != nil {
				slog.Debug("websocket renderer gone", "remote", r.RemoteAddr, "error", err)
				return
			}
		}
	}
}

// writeJSON encodes v as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"status":"error"}`, http.StatusInternalServerError)
	}
}
