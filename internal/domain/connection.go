package domain

import "time"

// Connection representa un enlace de transporte vivo, opcionalmente
// atribuido a un usuario autenticado (UserID vacio = anonimo).
type Connection struct {
	ID          string    `json:"id"`
	UserID      string    `json:"user_id,omitempty"`
	IPAddress   string    `json:"ip_address,omitempty"`
	DeviceID    string    `json:"device_id,omitempty"`
	UserAgent   string    `json:"user_agent,omitempty"`
	ConnectedAt time.Time `json:"connected_at"`
	Active      bool      `json:"active"`
}
