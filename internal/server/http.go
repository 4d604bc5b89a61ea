// Package server exposes engine diagnostics over HTTP and streams snapshots to
// websocket clients.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zeusync/scenehook/internal/config"
	"github.com/zeusync/scenehook/internal/core/collectibles"
	"github.com/zeusync/scenehook/internal/core/observability/log"
	"github.com/zeusync/scenehook/internal/engine"
	"github.com/zeusync/scenehook/internal/ledger"
)

// Source provides the engine views the server publishes.
type Source interface {
	Diagnostics() engine.Diagnostics
	Minimap() collectibles.Minimap
}

// Ledger is the read side of the pickup ledger.
type Ledger interface {
	Totals(ctx context.Context) (ledger.Totals, error)
	Recent(ctx context.Context, n int) ([]ledger.Entry, error)
}

type Server struct {
	cfg    config.ServerConfig
	source Source
	ledger Ledger
	auth   *TokenAuth
	log    log.Log

	server *http.Server
	ws     *WebSocketServer

	running atomic.Bool
	closed  atomic.Bool
	addrMu  sync.Mutex
	addr    net.Addr
}

func New(cfg config.ServerConfig, source Source, logger log.Log) *Server {
	if logger == nil {
		logger = log.NewNop()
	}
	s := &Server{
		cfg:    cfg,
		source: source,
		auth:   NewTokenAuth(cfg.Token),
		log:    logger.With(log.Component("server")),
	}
	s.ws = NewWebSocketServer(source, cfg.SnapshotInterval, s.log)
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// SetLedger enables GET /ledger.
func (s *Server) SetLedger(l Ledger) { s.ledger = l }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /diagnostics", s.handleDiagnostics)
	mux.HandleFunc("GET /minimap", s.handleMinimap)
	mux.HandleFunc("GET /ledger", s.handleLedger)
	mux.HandleFunc("GET /ws", s.ws.handleWebSocket)
	return s.auth.Wrap(mux)
}

// Serve listens on the configured address and blocks until ctx is done or
// the listener fails. The server is shut down gracefully on return.
func (s *Server) Serve(ctx context.Context) error {
	if s.closed.Load() {
		return ErrServerClosed
	}
	if !s.running.CompareAndSwap(false, true) {
		return ErrServerAlreadyRunning
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		s.running.Store(false)
		return err
	}
	s.addrMu.Lock()
	s.addr = ln.Addr()
	s.addrMu.Unlock()
	s.log.Info("server listening", log.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.server.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.Shutdown(sctx)
	}
}

// Addr returns the bound address once Serve is listening.
func (s *Server) Addr() net.Addr {
	s.addrMu.Lock()
	defer s.addrMu.Unlock()
	return s.addr
}

// Shutdown stops accepting connections, closes websocket streams and waits
// for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.ws.Close()
	err := s.server.Shutdown(ctx)
	s.log.Info("server stopped")
	return err
}

func (s *Server) handleDiagnostics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Diagnostics())
}

func (s *Server) handleMinimap(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.source.Minimap())
}

type ledgerView struct {
	Totals ledger.Totals  `json:"totals"`
	Recent []ledger.Entry `json:"recent"`
}

func (s *Server) handleLedger(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		http.Error(w, ErrNoLedger.Error(), http.StatusNotFound)
		return
	}
	n := 20
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			http.Error(w, "invalid n", http.StatusBadRequest)
			return
		}
		n = parsed
	}
	totals, err := s.ledger.Totals(r.Context())
	if err != nil {
		s.log.Warn("ledger totals", log.Error(err))
		http.Error(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}
	recent, err := s.ledger.Recent(r.Context(), n)
	if err != nil {
		s.log.Warn("ledger recent", log.Error(err))
		http.Error(w, "ledger unavailable", http.StatusInternalServerError)
		return
	}
	if recent == nil {
		recent = []ledger.Entry{}
	}
	writeJSON(w, http.StatusOK, ledgerView{Totals: totals, Recent: recent})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
