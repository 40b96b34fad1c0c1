// Package auth provides token issuance and per-request session resolution.
// Every authenticated request carries a Session: the token subject joined
// with its profile record from the users table. A request whose profile is
// missing or unreadable still gets a Session, just a degraded one — the
// caller stays authenticated but is unauthorized for any role-gated route.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Role is the domain role stored on a user profile.
type Role string

const (
	RolePatient   Role = "patient"
	RoleCaretaker Role = "caretaker"
)

// Valid reports whether r is a recognized role.
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleCaretaker
}

// Session warning conditions. These are advisory, not fatal: the session
// remains authenticated but unauthorized for role-gated destinations.
const (
	WarningProfileMissing    = "profile_missing"
	WarningProfileLoadFailed = "profile_load_failed"
)

// Session is the resolved identity for one request. It replaces any ambient
// current-user state: handlers receive it through the request context and
// services receive it as an explicit argument.
type Session struct {
	UserID      uuid.UUID  `json:"user_id"`
	Email       string     `json:"email"`
	Role        Role       `json:"role,omitempty"`
	CaretakerID *uuid.UUID `json:"caretaker_id,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`

	// Warning is set when the profile could not be resolved and the session
	// was degraded (role empty).
	Warning string `json:"warning,omitempty"`
}

// IsPatient reports whether the session belongs to a patient profile.
func (s *Session) IsPatient() bool { return s != nil && s.Role == RolePatient }

// IsCaretaker reports whether the session belongs to a caretaker profile.
func (s *Session) IsCaretaker() bool { return s != nil && s.Role == RoleCaretaker }

// Degraded reports whether profile resolution fell back to token data only.
func (s *Session) Degraded() bool { return s != nil && s.Warning != "" }

type contextKey string

const sessionKey contextKey = "session"

// WithSession returns a context carrying the resolved session.
func WithSession(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the resolved session, or nil for an
// unauthenticated request.
func SessionFromContext(ctx context.Context) *Session {
	s, _ := ctx.Value(sessionKey).(*Session)
	return s
}
