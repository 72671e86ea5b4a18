package domain

import "time"

// EventType identifica los eventos de dominio que emite el core.
type EventType string

const (
	EventSessionCreated     EventType = "session.created"
	EventSessionRevoked     EventType = "session.revoked"
	EventClientConnected    EventType = "client.connected"
	EventClientDisconnected EventType = "client.disconnected"
	EventUserConnected      EventType = "user.connected"
	EventUserDisconnected   EventType = "user.disconnected"
)

// Event es el valor tipado que se entrega al publisher. Los eventos de
// transicion (user.*) se emiten solo cuando el estado agregado cambia;
// los eventos por conexion (client.*) se emiten en cada conexion.
type Event struct {
	Type         EventType `json:"type"`
	UserID       string    `json:"user_id,omitempty"`
	SessionID    string    `json:"session_id,omitempty"`
	ConnectionID string    `json:"connection_id,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}
