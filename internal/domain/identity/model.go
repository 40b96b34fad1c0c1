package identity

import (
	"time"

	"github.com/google/uuid"

	"github.com/medminder/medminder/internal/platform/auth"
)

// UserProfile maps to the users table. It is the domain mirror of an
// authenticated identity: role, caretaker linkage and the credential hash.
//
// A patient's CaretakerID is null until exactly one assignment event occurs;
// a caretaker's CaretakerID is always null.
type UserProfile struct {
	ID           uuid.UUID  `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         auth.Role  `db:"role" json:"role"`
	CaretakerID  *uuid.UUID `db:"caretaker_id" json:"caretaker_id,omitempty"`
	AssignedAt   *time.Time `db:"assigned_at" json:"assigned_at,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// Assigned reports whether the patient has been claimed by a caretaker.
func (u *UserProfile) Assigned() bool {
	return u.CaretakerID != nil
}

// Session converts the profile into a resolved session.
func (u *UserProfile) Session() *auth.Session {
	created := u.CreatedAt
	return &auth.Session{
		UserID:      u.ID,
		Email:       u.Email,
		Role:        u.Role,
		CaretakerID: u.CaretakerID,
		CreatedAt:   &created,
	}
}
