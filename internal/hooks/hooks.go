// Package hooks fans bridge lifecycle events out to registered observers.
package hooks

import (
	"context"
	"sync"

	"github.com/soyeahso/mmassist/internal/logging"
)

// Event names for the hook system.
const (
	EventBridgeStart     = "bridge_start"
	EventBridgeStop      = "bridge_stop"
	EventMessageReceived = "message_received"
	EventMessageSending  = "message_sending"
	EventBeforeRun       = "before_run"
	EventAfterRun        = "after_run"
)

// AllEvents lists all known hook event names.
var AllEvents = []string{
	EventBridgeStart,
	EventBridgeStop,
	EventMessageReceived,
	EventMessageSending,
	EventBeforeRun,
	EventAfterRun,
}

// Payload carries event data to hook handlers.
type Payload struct {
	Event string         `json:"event"`
	Data  map[string]any `json:"data,omitempty"`
}

// String returns the value at key if it is a string.
func (p Payload) String(key string) string {
	s, _ := p.Data[key].(string)
	return s
}

// Handler handles a hook event. A returned error is logged and does not
// stop the remaining handlers.
type Handler func(ctx context.Context, p Payload) error

// Manager manages hook registrations and dispatches events.
// A nil *Manager is valid and drops every event.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string][]namedHandler
	log      *logging.Logger
}

type namedHandler struct {
	name    string
	handler Handler
}

// NewManager creates a hook manager.
func NewManager(log *logging.Logger) *Manager {
	return &Manager{
		handlers: make(map[string][]namedHandler),
		log:      log.Sub("hooks"),
	}
}

// On registers a handler for the given event under a name used in logs.
func (m *Manager) On(event, name string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], namedHandler{name: name, handler: handler})
	m.log.Debug().Str("event", event).Str("handler", name).Msg("hook registered")
}

// Emit dispatches an event to all registered handlers synchronously,
// in registration order.
func (m *Manager) Emit(ctx context.Context, event string, data map[string]any) {
	if m == nil {
		return
	}

	m.mu.RLock()
	handlers := make([]namedHandler, len(m.handlers[event]))
	copy(handlers, m.handlers[event])
	m.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	payload := Payload{Event: event, Data: data}

	for _, h := range handlers {
		if err := h.handler(ctx, payload); err != nil {
			m.log.Warn().
				Err(err).
				Str("event", event).
				Str("handler", h.name).
				Msg("hook handler error")
		}
	}
}

// Count returns the number of handlers registered for an event.
func (m *Manager) Count(event string) int {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.handlers[event])
}
