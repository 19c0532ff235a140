package service

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// RunStatus is the JSON payload pushed to status-server clients after
// every run, successful or not.
type RunStatus struct {
	SiteID       string    `json:"site_id"`
	Period       int       `json:"period"`
	Skipped      bool      `json:"skipped"`
	TargetLitres float64   `json:"target_litres"`
	TotalVolumeL float64   `json:"total_volume_litres"`
	TotalCostGBP float64   `json:"total_cost_gbp"`
	Advisory     string    `json:"advisory,omitempty"`
	Error        string    `json:"error,omitempty"`
	At           time.Time `json:"at"`
}

// StatusServer broadcasts RunStatus updates to connected websocket
// clients, so an operator dashboard can watch runs happen without
// polling the store.
type StatusServer struct {
	logger   *log.Logger
	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewStatusServer builds a StatusServer. A nil logger falls back to
// log.Default.
func NewStatusServer(logger *log.Logger) *StatusServer {
	if logger == nil {
		logger = log.Default()
	}
	return &StatusServer{
		logger:   logger,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024},
		clients:  make(map[*websocket.Conn]struct{}),
	}
}

// Handler returns the HTTP handler to mount (typically at "/status").
func (s *StatusServer) Handler() http.Handler {
	return http.HandlerFunc(s.serveWS)
}

func (s *StatusServer) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Printf("status server: upgrade failed: %v", err)
		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// Drain incoming messages (there are none expected) until the client
	// disconnects, so the connection's close is detected promptly.
	go func() {
		defer s.drop(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (s *StatusServer) drop(conn *websocket.Conn) {
	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	conn.Close()
}

// Broadcast sends status to every connected client, dropping any that
// fail to write.
func (s *StatusServer) Broadcast(status RunStatus) {
	data, err := json.Marshal(status)
	if err != nil {
		s.logger.Printf("status server: marshal: %v", err)
		return
	}

	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
			s.drop(c)
		}
	}
}
