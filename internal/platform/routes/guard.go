// Package routes implements the navigational surface: six logical
// destinations and the pure guard decision that gates them by role.
package routes

import (
	"github.com/medminder/medminder/internal/platform/auth"
)

// Destination is a logical navigation target.
type Destination string

const (
	DestRoot               Destination = "/"
	DestLogin              Destination = "/login"
	DestSignup             Destination = "/signup"
	DestPatientDashboard   Destination = "/pdashboard"
	DestCaretakerDashboard Destination = "/cdashboard"
)

// Decision is the outcome of a guard check: either admit the request to the
// destination, or redirect it elsewhere.
type Decision struct {
	Admit      bool
	RedirectTo Destination
}

func admit() Decision                 { return Decision{Admit: true} }
func redirect(d Destination) Decision { return Decision{RedirectTo: d} }

// dashboardFor returns the canonical destination for a role, or DestLogin for
// an unset/unrecognized role.
func dashboardFor(role auth.Role) Destination {
	switch role {
	case auth.RolePatient:
		return DestPatientDashboard
	case auth.RoleCaretaker:
		return DestCaretakerDashboard
	default:
		return DestLogin
	}
}

// isPublic reports whether dest is a sign-in/sign-up entry point.
func isPublic(dest Destination) bool {
	return dest == DestRoot || dest == DestLogin || dest == DestSignup
}

// Decide determines whether sess may view dest. requiredRole is empty for
// public destinations. A nil session is an unauthenticated visitor.
//
// Rules:
//   - unauthenticated visitors are admitted to public destinations and
//     redirected to sign-in everywhere else;
//   - an authenticated user with a recognized role is bounced from public
//     destinations to their own dashboard;
//   - a role mismatch redirects to the destination canonically associated
//     with the user's role, falling back to sign-in when the role is unset
//     (degraded profile) or unrecognized;
//   - anything outside the known destinations redirects to the root.
func Decide(sess *auth.Session, requiredRole auth.Role, dest Destination) Decision {
	if !known(dest) {
		return redirect(DestRoot)
	}

	if isPublic(dest) {
		if sess != nil && sess.Role.Valid() {
			return redirect(dashboardFor(sess.Role))
		}
		return admit()
	}

	if sess == nil {
		return redirect(DestLogin)
	}

	if requiredRole != "" && sess.Role != requiredRole {
		return redirect(dashboardFor(sess.Role))
	}

	return admit()
}

func known(dest Destination) bool {
	switch dest {
	case DestRoot, DestLogin, DestSignup, DestPatientDashboard, DestCaretakerDashboard:
		return true
	}
	return false
}

// RequiredRole returns the role a destination demands, empty when public.
func RequiredRole(dest Destination) auth.Role {
	switch dest {
	case DestPatientDashboard:
		return auth.RolePatient
	case DestCaretakerDashboard:
		return auth.RoleCaretaker
	default:
		return ""
	}
}
