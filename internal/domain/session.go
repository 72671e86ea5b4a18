package domain

import "time"

// Session autoriza un par de tokens access/refresh para un usuario.
// El registro pertenece al SessionRepository; los servicios nunca lo cachean.
type Session struct {
	ID               string    `json:"id"`
	UserID           string    `json:"user_id"`
	AccessToken      string    `json:"access_token"`
	RefreshToken     string    `json:"refresh_token"`
	AccessExpiresAt  time.Time `json:"access_expires_at"`
	RefreshExpiresAt time.Time `json:"refresh_expires_at"`
	CreatedAt        time.Time `json:"created_at"`
}

// Valid indica si la sesion todavia admite refresh en el instante dado.
func (s Session) Valid(now time.Time) bool {
	return now.Before(s.RefreshExpiresAt)
}

// GrantsAccess indica si la sesion todavia autoriza requests en el instante dado.
func (s Session) GrantsAccess(now time.Time) bool {
	return now.Before(s.AccessExpiresAt)
}
