package models

import "time"

const (
	// RoleGuest is the role of a visitor without a session.
	RoleGuest = "guest"
	// RoleUser is the default role assigned on first sign-in, and the role a
	// session is demoted to when its profile lookup fails.
	RoleUser = "user"
	// RoleAdmin marks privileged profiles.
	RoleAdmin = "admin"
)

// Profile is the per-user record backing role resolution. The identity
// provider owns authentication; profiles only add the application role.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email,omitempty"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Session is the read-only view of the current identity handed to the rest
// of the system. A signed-out session has no user and role guest.
type Session struct {
	UserID string `json:"userId,omitempty"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Role   string `json:"role"`
}

// SignedIn reports whether the session belongs to an authenticated user.
func (s Session) SignedIn() bool {
	return s.UserID != ""
}

// GuestSession is the session used when nobody is signed in.
func GuestSession() Session {
	return Session{Role: RoleGuest}
}
