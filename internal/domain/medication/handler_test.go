package medication

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/medminder/medminder/internal/platform/auth"
	"github.com/medminder/medminder/internal/platform/websocket"
)

func sessionMiddleware(sess *auth.Session) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if sess != nil {
				c.SetRequest(c.Request().WithContext(auth.WithSession(c.Request().Context(), sess)))
			}
			return next(c)
		}
	}
}

func setupHandler(f *fixture, sess *auth.Session) *echo.Echo {
	e := echo.New()
	h := NewHandler(f.svc, websocket.NewHandler(websocket.NewHub()))
	mw := sessionMiddleware(sess)
	h.RegisterRoutes(e.Group("/api", mw), e.Group("/ws", mw))
	return e
}

func seedEntry(t *testing.T, f *fixture, name, tm string) *Entry {
	t.Helper()
	entry, err := f.svc.Create(context.Background(), f.caretaker, CreateInput{
		PatientID: f.patient.UserID, Name: name, Dosage: "1 tab", Time: tm,
	})
	if err != nil {
		t.Fatalf("seed %s: %v", name, err)
	}
	return entry
}

func TestCreateMedicineEndpoint(t *testing.T) {
	f := newFixture(t)
	e := setupHandler(f, f.caretaker)

	body := `{"patient_id":"` + f.patient.UserID.String() +
		`","name":"Aspirin","dosage":"100mg","time":"08:30"}`
	req := httptest.NewRequest(http.MethodPost, "/api/caretaker/medicines", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var entry Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entry); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if entry.PatientEmail != "pat@example.com" || entry.Taken {
		t.Errorf("entry = %+v", entry)
	}
}

func TestCreateMedicineRejectsPatientRole(t *testing.T) {
	f := newFixture(t)
	e := setupHandler(f, f.patient)

	req := httptest.NewRequest(http.MethodPost, "/api/caretaker/medicines",
		strings.NewReader(`{"name":"Aspirin"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestPatientDashboardEndpoint(t *testing.T) {
	f := newFixture(t)
	seedEntry(t, f, "Aspirin", "08:30")
	seedEntry(t, f, "Metformin", "20:00")

	e := setupHandler(f, f.patient)
	req := httptest.NewRequest(http.MethodGet, "/api/patient/dashboard", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var dash Dashboard
	if err := json.Unmarshal(rec.Body.Bytes(), &dash); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if dash.Stats.Total != 2 || dash.Stats.Pending != 2 {
		t.Errorf("stats = %+v", dash.Stats)
	}
	if len(dash.Medicines) != 2 || dash.Medicines[0].Name != "Aspirin" {
		t.Errorf("medicines = %+v", dash.Medicines)
	}
}

func TestMarkTakenEndpoint(t *testing.T) {
	f := newFixture(t)
	entry := seedEntry(t, f, "Aspirin", "08:30")

	e := setupHandler(f, f.patient)
	req := httptest.NewRequest(http.MethodPost, "/api/medicines/"+entry.ID.String()+"/taken", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var got Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !got.Taken || got.TakenAt == nil {
		t.Errorf("entry not acknowledged: %+v", got)
	}
}

func TestMarkTakenUnknownMedicine(t *testing.T) {
	f := newFixture(t)
	e := setupHandler(f, f.patient)

	req := httptest.NewRequest(http.MethodPost,
		"/api/medicines/00000000-0000-0000-0000-0000000000aa/taken", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListForPatientEndpointForbidden(t *testing.T) {
	f := newFixture(t)
	seedEntry(t, f, "Aspirin", "08:30")

	other := &auth.Session{UserID: uuid.New(), Role: auth.RolePatient}
	e := setupHandler(f, other)
	req := httptest.NewRequest(http.MethodGet,
		"/api/patients/"+f.patient.UserID.String()+"/medicines", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestListForPatientEndpointAsCaretaker(t *testing.T) {
	f := newFixture(t)
	seedEntry(t, f, "Aspirin", "08:30")

	e := setupHandler(f, f.caretaker)
	req := httptest.NewRequest(http.MethodGet,
		"/api/patients/"+f.patient.UserID.String()+"/medicines", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var entries []*Entry
	if err := json.Unmarshal(rec.Body.Bytes(), &entries); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("got %d entries", len(entries))
	}
}

func TestStreamMedicinesRejectsUnauthorized(t *testing.T) {
	f := newFixture(t)

	other := &auth.Session{UserID: uuid.New(), Role: auth.RolePatient}
	e := setupHandler(f, other)
	req := httptest.NewRequest(http.MethodGet,
		"/ws/patients/"+f.patient.UserID.String()+"/medicines", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}
