package receiver

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/bnema/waytablet/internal/logger"
	"github.com/bnema/waytablet/internal/metrics"
	"github.com/bnema/waytablet/internal/protocol"
	"github.com/gorilla/websocket"
)

const monitorWriteTimeout = time.Second

// MonitorMessage is sent to websocket monitors for every received event.
// Fields not carried by the event type are nil and left out.
type MonitorMessage struct {
	Type     string   `json:"type"`
	X        *float32 `json:"x,omitempty"`
	Y        *float32 `json:"y,omitempty"`
	Pressure *float32 `json:"pressure,omitempty"`
	Button   *uint8   `json:"button,omitempty"`
	Pressed  *bool    `json:"pressed,omitempty"`
}

// NewMonitorMessage converts a decoded event.
func NewMonitorMessage(e protocol.DataEvent) MonitorMessage {
	msg := MonitorMessage{Type: e.Tag().String()}
	switch ev := e.(type) {
	case protocol.Motion:
		msg.X, msg.Y, msg.Pressure = &ev.X, &ev.Y, &ev.Pressure
	case protocol.Button:
		msg.Button, msg.Pressed = &ev.ID, &ev.Pressed
	}
	return msg
}

// Monitor streams received events to connected websocket clients. It is a
// Handler, so the receive loop feeds it like any other consumer.
type Monitor struct {
	clients  map[*websocket.Conn]bool
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	metrics  *metrics.Receiver
}

// NewMonitor creates an empty hub.
func NewMonitor(m *metrics.Receiver) *Monitor {
	return &Monitor{
		clients: make(map[*websocket.Conn]bool),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // read-only local stream
			},
		},
		metrics: m,
	}
}

// ServeHTTP upgrades the request and keeps the connection registered until
// the peer goes away.
func (m *Monitor) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	conn, err := m.upgrader.Upgrade(w, req, nil)
	if err != nil {
		logger.Debug("Monitor upgrade failed", "error", err)
		return
	}

	m.mu.Lock()
	m.clients[conn] = true
	m.metrics.SetMonitorClients(len(m.clients))
	m.mu.Unlock()
	logger.Info("Monitor connected", "remote", req.RemoteAddr)

	// Keep connection alive until client disconnects
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	m.remove(conn)
	logger.Info("Monitor disconnected", "remote", req.RemoteAddr)
}

func (m *Monitor) Name() string { return "monitor" }

// Handle broadcasts e to every monitor. Write failures drop the client.
func (m *Monitor) Handle(e protocol.DataEvent) error {
	m.mu.RLock()
	if len(m.clients) == 0 {
		m.mu.RUnlock()
		return nil
	}
	clients := make([]*websocket.Conn, 0, len(m.clients))
	for client := range m.clients {
		clients = append(clients, client)
	}
	m.mu.RUnlock()

	data, err := json.Marshal(NewMonitorMessage(e))
	if err != nil {
		return err
	}

	for _, client := range clients {
		_ = client.SetWriteDeadline(time.Now().Add(monitorWriteTimeout))
		if err := client.WriteMessage(websocket.TextMessage, data); err != nil {
			m.remove(client)
		}
	}
	return nil
}

// ClientCount returns the number of connected monitors.
func (m *Monitor) ClientCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// Close disconnects every monitor.
func (m *Monitor) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for client := range m.clients {
		_ = client.Close()
		delete(m.clients, client)
	}
	m.metrics.SetMonitorClients(0)
	return nil
}

func (m *Monitor) remove(conn *websocket.Conn) {
	m.mu.Lock()
	if _, ok := m.clients[conn]; ok {
		delete(m.clients, conn)
		m.metrics.SetMonitorClients(len(m.clients))
	}
	m.mu.Unlock()
	_ = conn.Close()
}
