// Package ws fans session snapshots out to browser websocket clients.
package ws

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeWait = 5 * time.Second

// Connection wraps websocket.Conn with metadata. gorilla allows one
// concurrent writer, so every write goes through mu.
type Connection struct {
	Conn    *websocket.Conn
	UserKey string

	mu       sync.Mutex
	lastSeen time.Time
}

func (c *Connection) Touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

func (c *Connection) idleFor() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return time.Since(c.lastSeen)
}

func (c *Connection) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.Conn.WriteJSON(v)
}

func (c *Connection) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(time.Second))
}

type Manager struct {
	mu          sync.RWMutex
	connections map[*Connection]struct{}
	logger      *zap.Logger
}

func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		connections: make(map[*Connection]struct{}),
		logger:      logger,
	}
}

// Add registers a connection and sends it initial so a new subscriber never
// waits for the next change to render.
func (m *Manager) Add(userID string, conn *websocket.Conn, initial any) *Connection {
	c := &Connection{Conn: conn, UserKey: userID, lastSeen: time.Now()}

	m.mu.Lock()
	m.connections[c] = struct{}{}
	total := len(m.connections)
	m.mu.Unlock()

	m.logger.Info("status stream connected", zap.String("user", userID), zap.Int("total", total))
	if initial != nil {
		if err := c.writeJSON(initial); err != nil {
			m.Remove(c)
		}
	}
	return c
}

// Remove closes the connection. Calling it twice is harmless.
func (m *Manager) Remove(c *Connection) {
	m.mu.Lock()
	_, ok := m.connections[c]
	delete(m.connections, c)
	m.mu.Unlock()

	if !ok {
		return
	}
	_ = c.Conn.Close()
	m.logger.Info("status stream disconnected", zap.String("user", c.UserKey))
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *Manager) snapshot() []*Connection {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conns := make([]*Connection, 0, len(m.connections))
	for c := range m.connections {
		conns = append(conns, c)
	}
	return conns
}

// Broadcast sends message to every connection, dropping the ones that fail.
func (m *Manager) Broadcast(message any) {
	for _, c := range m.snapshot() {
		if err := c.writeJSON(message); err != nil {
			m.logger.Warn("status stream write failed", zap.String("user", c.UserKey), zap.Error(err))
			m.Remove(c)
		}
	}
}

// Heartbeat pings connections until ctx is done and drops the ones that
// have not answered for two intervals.
func (m *Manager) Heartbeat(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, c := range m.snapshot() {
				if c.idleFor() > 2*interval {
					m.Remove(c)
					continue
				}
				if err := c.ping(); err != nil {
					m.Remove(c)
				}
			}
		}
	}
}

// CloseAll drops every connection, used on shutdown.
func (m *Manager) CloseAll() {
	for _, c := range m.snapshot() {
		m.Remove(c)
	}
}

// Feed returns a non-blocking push function whose values are broadcast on a
// separate goroutine until ctx is done. A value still pending when a newer
// one arrives is replaced, so slow clients only ever see the latest state.
func (m *Manager) Feed(ctx context.Context) (push func(any), done <-chan struct{}) {
	pending := make(chan any, 1)
	finished := make(chan struct{})

	go func() {
		defer close(finished)
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-pending:
				m.Broadcast(v)
			}
		}
	}()

	push = func(v any) {
		for {
			select {
			case pending <- v:
				return
			default:
			}
			select {
			case <-pending:
			default:
			}
		}
	}
	return push, finished
}
