// Package stream pushes live session snapshots to browsers over WebSocket.
package stream

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"

	"github.com/ashureev/gridassist/internal/registry"
)

// ConnManager tracks the single active connection per operator tab.
type ConnManager struct {
	mu     sync.RWMutex
	active map[registry.Key]*websocket.Conn
}

// NewConnManager creates an empty manager.
func NewConnManager() *ConnManager {
	return &ConnManager{active: make(map[registry.Key]*websocket.Conn)}
}

// GetActive returns the active connection for key.
func (m *ConnManager) GetActive(key registry.Key) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.active[key]
}

// Register adds conn for key, closing any connection it replaces.
func (m *ConnManager) Register(key registry.Key, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if existing, ok := m.active[key]; ok && existing != conn {
		_ = existing.Close(websocket.StatusPolicyViolation, "session replaced")
	}
	m.active[key] = conn
	slog.Info("Stream registered", "operator_id", key.OperatorID, "tab_id", key.TabID)
}

// Unregister removes conn for key unless it has already been replaced.
func (m *ConnManager) Unregister(key registry.Key, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.active[key]; ok && current == conn {
		delete(m.active, key)
		slog.Info("Stream unregistered", "operator_id", key.OperatorID, "tab_id", key.TabID)
	}
}

// Count returns the number of open streams.
func (m *ConnManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.active)
}

// CloseKey terminates the stream for key, if any. It matches registry.EndHook.
func (m *ConnManager) CloseKey(s *registry.Session, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	conn, ok := m.active[s.Key]
	if !ok {
		return
	}
	_ = conn.Close(websocket.StatusNormalClosure, "session "+reason)
	delete(m.active, s.Key)
	slog.Info("Stream closed", "session_id", s.ID, "reason", reason)
}
