package medication

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/medminder/medminder/internal/domain/identity"
	"github.com/medminder/medminder/internal/platform/auth"
	"github.com/medminder/medminder/internal/platform/websocket"
)

type mockMedRepo struct {
	entries map[uuid.UUID]*Entry
	failAll error
}

func newMockMedRepo() *mockMedRepo {
	return &mockMedRepo{entries: make(map[uuid.UUID]*Entry)}
}

func (m *mockMedRepo) Create(_ context.Context, e *Entry) error {
	if m.failAll != nil {
		return m.failAll
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	now := time.Now()
	e.CreatedAt, e.UpdatedAt = now, now
	m.entries[e.ID] = e
	return nil
}

func (m *mockMedRepo) GetByID(_ context.Context, id uuid.UUID) (*Entry, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	e, ok := m.entries[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (m *mockMedRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*Entry, error) {
	if m.failAll != nil {
		return nil, m.failAll
	}
	var out []*Entry
	for _, e := range m.entries {
		if e.PatientID == patientID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockMedRepo) MarkTaken(_ context.Context, id, patientID uuid.UUID) (*Entry, error) {
	e, ok := m.entries[id]
	if !ok || e.PatientID != patientID {
		return nil, ErrNotFound
	}
	if !e.Taken {
		now := time.Now()
		e.Taken = true
		e.TakenAt = &now
		e.UpdatedAt = now
	}
	return e, nil
}

func (m *mockMedRepo) SetLastAlert(_ context.Context, id uuid.UUID, at time.Time) error {
	e, ok := m.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.LastAlertSent = &at
	return nil
}

type mockUserRepo struct {
	users map[uuid.UUID]*identity.UserProfile
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{users: make(map[uuid.UUID]*identity.UserProfile)}
}

func (m *mockUserRepo) Create(_ context.Context, u *identity.UserProfile) error {
	m.users[u.ID] = u
	return nil
}

func (m *mockUserRepo) GetByID(_ context.Context, id uuid.UUID) (*identity.UserProfile, error) {
	u, ok := m.users[id]
	if !ok {
		return nil, identity.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) GetByEmail(_ context.Context, email string) (*identity.UserProfile, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, identity.ErrNotFound
}

type mockPublisher struct {
	events []websocket.Event
}

func (m *mockPublisher) Publish(_ context.Context, event websocket.Event) error {
	m.events = append(m.events, event)
	return nil
}

type fixture struct {
	svc       *Service
	meds      *mockMedRepo
	users     *mockUserRepo
	publisher *mockPublisher

	caretaker *auth.Session
	patient   *auth.Session
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	meds := newMockMedRepo()
	users := newMockUserRepo()
	publisher := &mockPublisher{}

	caretakerID := uuid.New()
	patientID := uuid.New()
	users.users[caretakerID] = &identity.UserProfile{
		ID: caretakerID, Email: "carer@example.com", Role: auth.RoleCaretaker,
	}
	users.users[patientID] = &identity.UserProfile{
		ID: patientID, Email: "pat@example.com", Role: auth.RolePatient,
		CaretakerID: &caretakerID,
	}

	return &fixture{
		svc:       NewService(meds, users, publisher),
		meds:      meds,
		users:     users,
		publisher: publisher,
		caretaker: &auth.Session{UserID: caretakerID, Email: "carer@example.com", Role: auth.RoleCaretaker},
		patient:   &auth.Session{UserID: patientID, Email: "pat@example.com", Role: auth.RolePatient},
	}
}

func TestCreateDenormalizesEmails(t *testing.T) {
	f := newFixture(t)

	entry, err := f.svc.Create(context.Background(), f.caretaker, CreateInput{
		PatientID: f.patient.UserID,
		Name:      "Aspirin",
		Dosage:    "100mg",
		Time:      "08:30",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if entry.PatientEmail != "pat@example.com" {
		t.Errorf("PatientEmail = %q", entry.PatientEmail)
	}
	if entry.CaretakerEmail != "carer@example.com" {
		t.Errorf("CaretakerEmail = %q", entry.CaretakerEmail)
	}
	if entry.CaretakerID != f.caretaker.UserID {
		t.Error("caretaker id not stamped")
	}
	if entry.Taken {
		t.Error("new entry must start pending")
	}
	if len(f.publisher.events) != 1 {
		t.Fatalf("published %d events, want 1", len(f.publisher.events))
	}
	if f.publisher.events[0].Topic != websocket.PatientMedicinesTopic(f.patient.UserID) {
		t.Errorf("published to topic %q", f.publisher.events[0].Topic)
	}
}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t)

	cases := []struct {
		name string
		in   CreateInput
	}{
		{"missing name", CreateInput{PatientID: f.patient.UserID, Dosage: "100mg", Time: "08:30"}},
		{"missing dosage", CreateInput{PatientID: f.patient.UserID, Name: "Aspirin", Time: "08:30"}},
		{"missing time", CreateInput{PatientID: f.patient.UserID, Name: "Aspirin", Dosage: "100mg"}},
		{"missing patient", CreateInput{Name: "Aspirin", Dosage: "100mg", Time: "08:30"}},
		{"bad time format", CreateInput{PatientID: f.patient.UserID, Name: "Aspirin", Dosage: "100mg", Time: "25:00"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Create(context.Background(), f.caretaker, tc.in); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCreateRequiresAssignment(t *testing.T) {
	f := newFixture(t)

	stranger := uuid.New()
	f.users.users[stranger] = &identity.UserProfile{
		ID: stranger, Email: "other@example.com", Role: auth.RolePatient,
	}

	_, err := f.svc.Create(context.Background(), f.caretaker, CreateInput{
		PatientID: stranger, Name: "Aspirin", Dosage: "100mg", Time: "08:30",
	})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("err = %v, want ErrForbidden", err)
	}
}

func TestCreateRejectsPatientRole(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), f.patient, CreateInput{
		PatientID: f.patient.UserID, Name: "Aspirin", Dosage: "100mg", Time: "08:30",
	})
	if err == nil {
		t.Fatal("expected role error")
	}
}

func TestListForPatientSortsAndAuthorizes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, tm := range []string{"14:00", "", "08:30"} {
		_, err := f.svc.Create(ctx, f.caretaker, CreateInput{
			PatientID: f.patient.UserID, Name: "med " + tm, Dosage: "1 tab",
			Time: tm,
		})
		if tm == "" {
			if err == nil {
				t.Fatal("empty time should be rejected at creation")
			}
			continue
		}
		if err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	entries, err := f.svc.ListForPatient(ctx, f.patient, f.patient.UserID)
	if err != nil {
		t.Fatalf("ListForPatient as patient: %v", err)
	}
	if len(entries) != 2 || entries[0].Time != "08:30" || entries[1].Time != "14:00" {
		t.Fatalf("unexpected order: %+v", entries)
	}

	if _, err := f.svc.ListForPatient(ctx, f.caretaker, f.patient.UserID); err != nil {
		t.Fatalf("ListForPatient as assigned caretaker: %v", err)
	}

	otherPatient := &auth.Session{UserID: uuid.New(), Role: auth.RolePatient}
	if _, err := f.svc.ListForPatient(ctx, otherPatient, f.patient.UserID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("other patient err = %v, want ErrForbidden", err)
	}

	otherCaretaker := &auth.Session{UserID: uuid.New(), Role: auth.RoleCaretaker}
	if _, err := f.svc.ListForPatient(ctx, otherCaretaker, f.patient.UserID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("unassigned caretaker err = %v, want ErrForbidden", err)
	}
}

func TestPatientDashboardStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, err := f.svc.Create(ctx, f.caretaker, CreateInput{
		PatientID: f.patient.UserID, Name: "Aspirin", Dosage: "100mg", Time: "08:30",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Create(ctx, f.caretaker, CreateInput{
		PatientID: f.patient.UserID, Name: "Metformin", Dosage: "500mg", Time: "20:00",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.MarkTaken(ctx, f.patient, first.ID); err != nil {
		t.Fatalf("MarkTaken: %v", err)
	}

	dash, err := f.svc.PatientDashboard(ctx, f.patient)
	if err != nil {
		t.Fatalf("PatientDashboard: %v", err)
	}
	if dash.Stats.Total != 2 || dash.Stats.Taken != 1 || dash.Stats.Pending != 1 {
		t.Fatalf("unexpected stats: %+v", dash.Stats)
	}
	if len(dash.Medicines) != 2 {
		t.Fatalf("dashboard has %d medicines", len(dash.Medicines))
	}
}

func TestMarkTakenIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.svc.Create(ctx, f.caretaker, CreateInput{
		PatientID: f.patient.UserID, Name: "Aspirin", Dosage: "100mg", Time: "08:30",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	taken, err := f.svc.MarkTaken(ctx, f.patient, entry.ID)
	if err != nil {
		t.Fatalf("MarkTaken: %v", err)
	}
	if !taken.Taken || taken.TakenAt == nil {
		t.Fatal("first acknowledgement did not record the dose")
	}
	firstAt := *taken.TakenAt

	again, err := f.svc.MarkTaken(ctx, f.patient, entry.ID)
	if err != nil {
		t.Fatalf("second MarkTaken: %v", err)
	}
	if !again.Taken || !again.TakenAt.Equal(firstAt) {
		t.Fatal("second acknowledgement must keep the original timestamp")
	}
}

func TestMarkTakenOtherPatient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	entry, err := f.svc.Create(ctx, f.caretaker, CreateInput{
		PatientID: f.patient.UserID, Name: "Aspirin", Dosage: "100mg", Time: "08:30",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	other := &auth.Session{UserID: uuid.New(), Role: auth.RolePatient}
	if _, err := f.svc.MarkTaken(ctx, other, entry.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestSnapshotEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Create(ctx, f.caretaker, CreateInput{
		PatientID: f.patient.UserID, Name: "Aspirin", Dosage: "100mg", Time: "08:30",
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	event, err := f.svc.SnapshotEvent(ctx, f.patient.UserID)
	if err != nil {
		t.Fatalf("SnapshotEvent: %v", err)
	}
	if event.Type != websocket.EventTypeSnapshot {
		t.Errorf("Type = %q", event.Type)
	}
	if event.PatientID != f.patient.UserID.String() {
		t.Errorf("PatientID = %q", event.PatientID)
	}

	var entries []*Entry
	if err := json.Unmarshal(event.Data, &entries); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "Aspirin" {
		t.Fatalf("unexpected snapshot payload: %+v", entries)
	}
}
