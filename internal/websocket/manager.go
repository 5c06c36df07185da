// Package websocket lets browser clients take part in matchmaking next to Telegram
// users. Each connection is one anonymous user with a "ws-" prefixed id.
package websocket

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"anonchat/backend/internal/chathub"
	"anonchat/backend/internal/models"

	gorillaws "github.com/gorilla/websocket"
)

// IDPrefix marks user ids owned by this transport.
const IDPrefix = "ws-"

const sendBuffer = 256

// Submitter accepts events for processing.
type Submitter interface {
	Submit(ctx context.Context, ev models.Event) error
}

// UserID builds the user id for an anonymous WebSocket identity.
func UserID(anonID string) models.UserID {
	return models.UserID(IDPrefix + anonID)
}

// Manager tracks live connections and implements chathub.Gateway for them.
type Manager struct {
	clients map[models.UserID]*Client
	mu      sync.RWMutex

	RegisterCh   chan *Client
	UnregisterCh chan *Client

	events Submitter
	log    *slog.Logger
	done   chan struct{}
}

// NewManager creates a Manager that submits inbound frames to events.
func NewManager(events Submitter, log *slog.Logger) *Manager {
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		clients:      make(map[models.UserID]*Client),
		RegisterCh:   make(chan *Client),
		UnregisterCh: make(chan *Client),
		events:       events,
		log:          log,
		done:         make(chan struct{}),
	}
}

// Run processes registrations until ctx is cancelled, then closes every connection.
func (m *Manager) Run(ctx context.Context) error {
	for {
		select {
		case client := <-m.RegisterCh:
			m.register(client)
		case client := <-m.UnregisterCh:
			m.unregister(client)
		case <-ctx.Done():
			close(m.done)
			m.closeAll()
			return nil
		}
	}
}

// Attach wraps an upgraded connection, registers it and starts its pumps.
func (m *Manager) Attach(ctx context.Context, conn *gorillaws.Conn, id models.UserID, lang string) *Client {
	client := &Client{
		ID:   id,
		Lang: lang,
		Conn: conn,
		Hub:  m,
		Send: make(chan Frame, sendBuffer),
		ctx:  context.WithoutCancel(ctx),
	}

	select {
	case m.RegisterCh <- client:
	case <-m.done:
		_ = conn.Close()
		return client
	}
	client.Run()
	return client
}

// Owns reports whether id belongs to this transport.
func (m *Manager) Owns(id models.UserID) bool {
	return strings.HasPrefix(string(id), IDPrefix)
}

// Connected reports whether id has a live connection.
func (m *Manager) Connected(id models.UserID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.clients[id]
	return ok
}

// Count returns the number of live connections.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

// SendText delivers a system text to the user.
func (m *Manager) SendText(_ context.Context, to models.UserID, text string) error {
	return m.deliver(to, Frame{Type: FrameSystem, Text: text})
}

// Forward delivers a partner message. Only its textual body crosses transports.
func (m *Manager) Forward(_ context.Context, _ models.UserID, to models.UserID, msg models.Message) error {
	return m.deliver(to, Frame{Type: FrameMessage, Kind: msg.Kind, Text: msg.Body()})
}

func (m *Manager) deliver(to models.UserID, frame Frame) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	client, ok := m.clients[to]
	if !ok {
		return fmt.Errorf("%w: %s is not connected", chathub.ErrRecipientUnreachable, to)
	}

	select {
	case client.Send <- frame:
		return nil
	default:
		return fmt.Errorf("%w: send buffer of %s is full", chathub.ErrRecipientUnreachable, to)
	}
}

func (m *Manager) register(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// A second tab with the same identity replaces the first.
	if old, ok := m.clients[client.ID]; ok && old != client {
		close(old.Send)
	}
	m.clients[client.ID] = client
	m.log.Info("websocket client connected", "user_id", client.ID, "clients", len(m.clients))
}

func (m *Manager) unregister(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.clients[client.ID]; ok && current == client {
		delete(m.clients, client.ID)
		close(client.Send)
		m.log.Info("websocket client disconnected", "user_id", client.ID, "clients", len(m.clients))
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, client := range m.clients {
		close(client.Send)
		delete(m.clients, id)
	}
}

func (m *Manager) release(client *Client) {
	select {
	case m.UnregisterCh <- client:
	case <-m.done:
	}
}
