package domain

import "time"

// Session asocia un token opaco a un usuario hasta su expiración.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Token     string    `json:"-"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// Expired indica si la sesión ya no es válida en el instante dado.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Viewer es la identidad resuelta para una request: un usuario autenticado o anónimo.
type Viewer struct {
	User          User
	Authenticated bool
}

// Anonymous devuelve un Viewer sin sesión.
func Anonymous() Viewer {
	return Viewer{}
}

// AuthenticatedAs devuelve un Viewer autenticado como user.
func AuthenticatedAs(user User) Viewer {
	return Viewer{User: user, Authenticated: true}
}
