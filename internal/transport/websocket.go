// SPDX-License-Identifier: MIT
package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"lightshow/internal/packet"
)

// Event is one message pushed to monitor clients.
type Event struct {
	Type   string    `json:"type"`
	Kind   string    `json:"kind,omitempty"`
	Status string    `json:"status,omitempty"`
	Time   time.Time `json:"time"`
	Data   any       `json:"data,omitempty"`
}

// Monitor serves a websocket on /ws that broadcasts packets and state
// snapshots to every connected observer. Slow observers lose messages rather
// than slowing the sender.
type Monitor struct {
	addr      string
	upgrader  websocket.Upgrader
	clients   map[*websocket.Conn]bool
	clientsMu sync.Mutex
	broadcast chan Event
	server    *http.Server
	listener  net.Listener
	dropped   atomic.Uint64
}

// NewMonitor prepares a monitor listening on addr, e.g. ":8080".
func NewMonitor(addr string) *Monitor {
	return &Monitor{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan Event, 256),
	}
}

// Start listens and serves in the background until ctx is done.
func (m *Monitor) Start(ctx context.Context) error {
	l, err := net.Listen("tcp", m.addr)
	if err != nil {
		return err
	}
	m.listener = l

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", m.handleWebSocket)
	m.server = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Infof("monitor listening on %s", l.Addr())
		if err := m.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("monitor server error: %v", err)
		}
	}()
	go m.handleBroadcasts(ctx)
	go func() {
		<-ctx.Done()
		m.Close()
	}()
	return nil
}

// Addr is the bound address once started.
func (m *Monitor) Addr() string {
	if m.listener == nil {
		return m.addr
	}
	return m.listener.Addr().String()
}

func (m *Monitor) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := m.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warnf("monitor upgrade error: %v", err)
		return
	}

	m.clientsMu.Lock()
	m.clients[conn] = true
	n := len(m.clients)
	m.clientsMu.Unlock()
	logger.Debugf("monitor client connected, total: %d", n)

	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				m.remove(conn)
				return
			}
		}
	}()
}

func (m *Monitor) remove(conn *websocket.Conn) {
	m.clientsMu.Lock()
	if m.clients[conn] {
		delete(m.clients, conn)
		conn.Close()
	}
	m.clientsMu.Unlock()
}

func (m *Monitor) handleBroadcasts(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-m.broadcast:
			m.clientsMu.Lock()
			for client := range m.clients {
				_ = client.SetWriteDeadline(time.Now().Add(time.Second))
				if err := client.WriteJSON(ev); err != nil {
					logger.Debugf("monitor client write failed: %v", err)
					client.Close()
					delete(m.clients, client)
				}
			}
			m.clientsMu.Unlock()
		}
	}
}

// Publish queues ev for broadcast. It never blocks; a full queue drops ev.
func (m *Monitor) Publish(ev Event) bool {
	select {
	case m.broadcast <- ev:
		return true
	default:
		m.dropped.Add(1)
		return false
	}
}

// Handle forwards every packet except ticks.
func (m *Monitor) Handle(p packet.Packet) {
	if p.Kind == packet.Tick {
		return
	}
	m.Publish(Event{Type: "packet", Kind: p.Kind.String(), Status: p.Status.String(), Time: p.Time})
}

// Dropped counts events lost to a full queue.
func (m *Monitor) Dropped() uint64 { return m.dropped.Load() }

// Clients returns the number of connected observers.
func (m *Monitor) Clients() int {
	m.clientsMu.Lock()
	defer m.clientsMu.Unlock()
	return len(m.clients)
}

// Close disconnects every client and stops the server.
func (m *Monitor) Close() error {
	m.clientsMu.Lock()
	for client := range m.clients {
		client.Close()
	}
	m.clients = make(map[*websocket.Conn]bool)
	m.clientsMu.Unlock()

	if m.server != nil {
		return m.server.Close()
	}
	return nil
}

var _ packet.Handler = (*Monitor)(nil)
