package websocket

import (
	"sync"

	"ride-share/pkg/logger"
)

// Manager tracks one live connection per user.
type Manager struct {
	connections map[string]*Connection // user_id -> connection
	mu          sync.RWMutex
	log         logger.Logger
}

func NewManager(log logger.Logger) *Manager {
	return &Manager{
		connections: make(map[string]*Connection),
		log:         log,
	}
}

// AddConnection registers conn for userID, closing any previous one.
func (m *Manager) AddConnection(userID string, conn *Connection) {
	m.mu.Lock()
	existing, replaced := m.connections[userID]
	m.connections[userID] = conn
	total := len(m.connections)
	m.mu.Unlock()

	if replaced && existing != conn {
		existing.Close()
		m.log.WithFields(logger.LogFields{"user_id": userID}).Info("websocket_replaced", "Replacing existing connection")
	}
	m.log.WithFields(logger.LogFields{
		"user_id": userID,
		"total":   total,
	}).Info("websocket_connected", "New connection added")
}

// RemoveConnection drops conn if it is still the user's current one.
func (m *Manager) RemoveConnection(userID string, conn *Connection) {
	m.mu.Lock()
	current, ok := m.connections[userID]
	if ok && current == conn {
		delete(m.connections, userID)
	}
	total := len(m.connections)
	m.mu.Unlock()

	if ok && current == conn {
		conn.Close()
		m.log.WithFields(logger.LogFields{
			"user_id": userID,
			"total":   total,
		}).Info("websocket_disconnected", "Connection removed")
	}
}

// SendToUser queues message for userID. Offline users are not an error.
func (m *Manager) SendToUser(userID string, message interface{}) error {
	m.mu.RLock()
	conn, ok := m.connections[userID]
	m.mu.RUnlock()

	if !ok {
		m.log.WithFields(logger.LogFields{"user_id": userID}).Debug("websocket_user_not_connected", "User not connected")
		return nil
	}

	if err := conn.WriteJSON(message); err != nil {
		m.log.WithFields(logger.LogFields{"user_id": userID}).Error("websocket_send_failed", err)
		m.RemoveConnection(userID, conn)
		return err
	}
	return nil
}

func (m *Manager) GetConnectionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.connections)
}

func (m *Manager) IsUserConnected(userID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.connections[userID]
	return ok
}

// CloseAll closes every connection, used on shutdown.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	conns := m.connections
	m.connections = make(map[string]*Connection)
	m.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}
