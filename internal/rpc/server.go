package rpc

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/bgpkit/monocle/internal/config"
	"github.com/bgpkit/monocle/internal/metrics"
)

// Server exposes a Registry over WebSocket, plus plain HTTP health and
// metrics endpoints, the way core/bgpipe.go exposes stages over a
// single process but for HTTP instead of a CLI pipeline.
type Server struct {
	zerolog.Logger

	cfg      config.ServerConfig
	registry *Registry
	metrics  *metrics.Registry
	upgrader websocket.Upgrader
}

func NewServer(logger zerolog.Logger, cfg config.ServerConfig, registry *Registry, m *metrics.Registry) *Server {
	return &Server{
		Logger:   logger.With().Str("component", "rpc.server").Logger(),
		cfg:      cfg,
		registry: registry,
		metrics:  m,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler builds the chi router this server listens with.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Get("/metrics", s.handleMetrics)
	r.Get("/ws", s.handleWS)
	return r
}

// ListenAndServe starts the HTTP server on cfg.Address:cfg.Port and
// blocks until ctx is cancelled or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Address, s.cfg.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		BaseContext: func(_ net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		s.Info().Str("addr", addr).Msg("rpc: listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if s.metrics == nil {
		w.WriteHeader(http.StatusOK)
		return
	}
	s.metrics.WritePrometheus(w)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("rpc: upgrade failed")
		return
	}
	s.Info().Str("remote", r.RemoteAddr).Msg("rpc: client connected")

	if s.cfg.PingIntervalSecs > 0 {
		configurePing(ws, s.cfg.PingIntervalSecs)
	}

	conn := newConn(ws, s.registry, s.metrics, s.cfg.MaxConcurrentOps, s.cfg.MaxMessageSize, s.Logger)
	conn.Serve(r.Context())
}

func configurePing(ws *websocket.Conn, interval time.Duration) {
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(2 * interval))
	})
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C {
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(10*time.Second)); err != nil {
				return
			}
		}
	}()
}
