package server

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/zeusync/scenehook/internal/core/collectibles"
	"github.com/zeusync/scenehook/internal/core/observability/log"
	"github.com/zeusync/scenehook/internal/engine"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
}

const writeWait = 2 * time.Second

// Frame is one pushed snapshot.
type Frame struct {
	Seq         uint64                `json:"seq"`
	Diagnostics *engine.Diagnostics   `json:"diagnostics,omitempty"`
	Minimap     *collectibles.Minimap `json:"minimap,omitempty"`
}

// WebSocketServer pushes engine snapshots to every connected client at a
// fixed interval. The stream query parameter selects "diagnostics",
// "minimap" or both (default).
type WebSocketServer struct {
	source   Source
	interval time.Duration
	log      log.Log

	mu      sync.Mutex
	clients map[*websocket.Conn]chan struct{}
	closed  bool
	wg      sync.WaitGroup
}

func NewWebSocketServer(source Source, interval time.Duration, logger log.Log) *WebSocketServer {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &WebSocketServer{
		source:   source,
		interval: interval,
		log:      logger,
		clients:  make(map[*websocket.Conn]chan struct{}),
	}
}

// Clients reports connected streams.
func (s *WebSocketServer) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Close ends every stream and waits for their writers.
func (s *WebSocketServer) Close() {
	s.mu.Lock()
	s.closed = true
	for conn, done := range s.clients {
		close(done)
		delete(s.clients, conn)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

func (s *WebSocketServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	stream := r.URL.Query().Get("stream")
	switch stream {
	case "", "all", "diagnostics", "minimap":
	default:
		http.Error(w, "unknown stream", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", log.Error(err))
		return
	}

	done := make(chan struct{})
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[conn] = done
	s.wg.Add(1)
	s.mu.Unlock()
	s.log.Debug("stream opened", log.String("remote", conn.RemoteAddr().String()), log.String("stream", stream))

	go s.readLoop(conn)
	s.writeLoop(conn, stream, done)
}

// readLoop drains client frames so close messages are observed.
func (s *WebSocketServer) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.drop(conn)
			return
		}
	}
}

func (s *WebSocketServer) writeLoop(conn *websocket.Conn, stream string, done chan struct{}) {
	defer func() {
		s.drop(conn)
		_ = conn.Close()
		s.wg.Done()
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	var seq uint64
	for {
		seq++
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return
		}
		if err := conn.WriteJSON(s.frame(seq, stream)); err != nil {
			s.log.Debug("stream write failed", log.Error(err))
			return
		}
		select {
		case <-done:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutdown"),
				time.Now().Add(writeWait))
			return
		case <-ticker.C:
		}
	}
}

func (s *WebSocketServer) frame(seq uint64, stream string) Frame {
	f := Frame{Seq: seq}
	if stream != "minimap" {
		d := s.source.Diagnostics()
		f.Diagnostics = &d
	}
	if stream != "diagnostics" {
		m := s.source.Minimap()
		f.Minimap = &m
	}
	return f
}

func (s *WebSocketServer) drop(conn *websocket.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if done, ok := s.clients[conn]; ok {
		close(done)
		delete(s.clients, conn)
	}
}
