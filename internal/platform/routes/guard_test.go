package routes

import (
	"testing"

	"github.com/google/uuid"

	"github.com/medminder/medminder/internal/platform/auth"
)

func patientSession() *auth.Session {
	return &auth.Session{UserID: uuid.New(), Email: "p@x.com", Role: auth.RolePatient}
}

func caretakerSession() *auth.Session {
	return &auth.Session{UserID: uuid.New(), Email: "c@x.com", Role: auth.RoleCaretaker}
}

func degradedSession() *auth.Session {
	return &auth.Session{UserID: uuid.New(), Email: "g@x.com", Warning: auth.WarningProfileMissing}
}

func TestDecide(t *testing.T) {
	cases := []struct {
		name     string
		sess     *auth.Session
		dest     Destination
		admit    bool
		redirect Destination
	}{
		{"anonymous visits login", nil, DestLogin, true, ""},
		{"anonymous visits signup", nil, DestSignup, true, ""},
		{"anonymous visits root", nil, DestRoot, true, ""},
		{"anonymous visits patient dashboard", nil, DestPatientDashboard, false, DestLogin},
		{"anonymous visits caretaker dashboard", nil, DestCaretakerDashboard, false, DestLogin},

		{"patient visits own dashboard", patientSession(), DestPatientDashboard, true, ""},
		{"patient visits caretaker dashboard", patientSession(), DestCaretakerDashboard, false, DestPatientDashboard},
		{"patient visits login", patientSession(), DestLogin, false, DestPatientDashboard},
		{"patient visits signup", patientSession(), DestSignup, false, DestPatientDashboard},
		{"patient visits root", patientSession(), DestRoot, false, DestPatientDashboard},

		{"caretaker visits own dashboard", caretakerSession(), DestCaretakerDashboard, true, ""},
		{"caretaker visits patient dashboard", caretakerSession(), DestPatientDashboard, false, DestCaretakerDashboard},
		{"caretaker visits login", caretakerSession(), DestLogin, false, DestCaretakerDashboard},

		{"degraded profile visits dashboard", degradedSession(), DestPatientDashboard, false, DestLogin},
		{"degraded profile stays on login", degradedSession(), DestLogin, true, ""},

		{"unknown destination", patientSession(), Destination("/nothing"), false, DestRoot},
		{"unknown destination anonymous", nil, Destination("/nothing"), false, DestRoot},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := Decide(tc.sess, RequiredRole(tc.dest), tc.dest)
			if d.Admit != tc.admit {
				t.Fatalf("admit = %v, want %v", d.Admit, tc.admit)
			}
			if !tc.admit && d.RedirectTo != tc.redirect {
				t.Errorf("redirect = %q, want %q", d.RedirectTo, tc.redirect)
			}
		})
	}
}

func TestRequiredRole(t *testing.T) {
	if RequiredRole(DestPatientDashboard) != auth.RolePatient {
		t.Error("patient dashboard should require patient role")
	}
	if RequiredRole(DestCaretakerDashboard) != auth.RoleCaretaker {
		t.Error("caretaker dashboard should require caretaker role")
	}
	if RequiredRole(DestLogin) != "" {
		t.Error("login should require no role")
	}
}
