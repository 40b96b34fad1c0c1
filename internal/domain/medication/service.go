package medication

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medminder/medminder/internal/domain/identity"
	"github.com/medminder/medminder/internal/platform/auth"
	"github.com/medminder/medminder/internal/platform/websocket"
)

// ErrForbidden is returned when the session is not allowed to read or mutate
// the requested patient's medicines.
var ErrForbidden = errors.New("not allowed to access this patient's medicines")

type Service struct {
	meds      MedicationRepository
	users     identity.UserRepository
	publisher websocket.EventPublisher
}

func NewService(meds MedicationRepository, users identity.UserRepository, publisher websocket.EventPublisher) *Service {
	return &Service{meds: meds, users: users, publisher: publisher}
}

// CreateInput is the caretaker-supplied medicine definition.
type CreateInput struct {
	PatientID uuid.UUID `json:"patient_id"`
	Name      string    `json:"name"`
	Dosage    string    `json:"dosage"`
	Time      string    `json:"time"`
}

// Dashboard is the patient view: the full schedule plus adherence counts.
type Dashboard struct {
	Medicines []*Entry `json:"medicines"`
	Stats     Stats    `json:"stats"`
}

// Create records a medicine for one of the caretaker's assigned patients.
// Patient and caretaker emails are denormalized onto the entry so alert
// dispatch never needs a join.
func (s *Service) Create(ctx context.Context, sess *auth.Session, in CreateInput) (*Entry, error) {
	if !sess.IsCaretaker() {
		return nil, fmt.Errorf("caretaker role required")
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Dosage = strings.TrimSpace(in.Dosage)
	in.Time = strings.TrimSpace(in.Time)
	if in.PatientID == uuid.Nil || in.Name == "" || in.Dosage == "" || in.Time == "" {
		return nil, fmt.Errorf("all fields are required")
	}
	if !ValidTime(in.Time) {
		return nil, fmt.Errorf("time must be in HH:MM format")
	}

	patient, err := s.users.GetByID(ctx, in.PatientID)
	if err != nil {
		return nil, fmt.Errorf("load patient: %w", err)
	}
	if patient.Role != auth.RolePatient {
		return nil, fmt.Errorf("user %s is not a patient", in.PatientID)
	}
	if patient.CaretakerID == nil || *patient.CaretakerID != sess.UserID {
		return nil, ErrForbidden
	}

	entry := &Entry{
		Name:           in.Name,
		Dosage:         in.Dosage,
		Time:           in.Time,
		PatientID:      patient.ID,
		PatientEmail:   patient.Email,
		CaretakerID:    sess.UserID,
		CaretakerEmail: sess.Email,
	}
	if err := s.meds.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("create medicine: %w", err)
	}

	s.publishSnapshot(ctx, patient.ID)
	return entry, nil
}

// ListForPatient returns the patient's schedule sorted by scheduled time.
// Readable by the patient themself or by their assigned caretaker.
func (s *Service) ListForPatient(ctx context.Context, sess *auth.Session, patientID uuid.UUID) ([]*Entry, error) {
	if err := s.authorizeRead(ctx, sess, patientID); err != nil {
		return nil, err
	}
	entries, err := s.meds.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list medicines: %w", err)
	}
	SortByTime(entries)
	return entries, nil
}

// PatientDashboard assembles the acting patient's own schedule and stats.
func (s *Service) PatientDashboard(ctx context.Context, sess *auth.Session) (*Dashboard, error) {
	if !sess.IsPatient() {
		return nil, fmt.Errorf("patient role required")
	}
	entries, err := s.ListForPatient(ctx, sess, sess.UserID)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Medicines: entries, Stats: ComputeStats(entries)}, nil
}

// MarkTaken acknowledges a dose for the acting patient. Re-acknowledging an
// already-taken entry succeeds without changing the stored timestamp.
func (s *Service) MarkTaken(ctx context.Context, sess *auth.Session, id uuid.UUID) (*Entry, error) {
	if !sess.IsPatient() {
		return nil, fmt.Errorf("patient role required")
	}
	entry, err := s.meds.MarkTaken(ctx, id, sess.UserID)
	if err != nil {
		return nil, err
	}
	s.publishSnapshot(ctx, sess.UserID)
	return entry, nil
}

// AuthorizeRead applies the shared read rule for a patient's medicines:
// the patient themself, or the caretaker currently assigned to them.
func (s *Service) AuthorizeRead(ctx context.Context, sess *auth.Session, patientID uuid.UUID) error {
	return s.authorizeRead(ctx, sess, patientID)
}

func (s *Service) authorizeRead(ctx context.Context, sess *auth.Session, patientID uuid.UUID) error {
	if sess == nil || sess.Degraded() {
		return ErrForbidden
	}
	if sess.IsPatient() {
		if sess.UserID != patientID {
			return ErrForbidden
		}
		return nil
	}
	if !sess.IsCaretaker() {
		return ErrForbidden
	}
	patient, err := s.users.GetByID(ctx, patientID)
	if err != nil {
		if errors.Is(err, identity.ErrNotFound) {
			return ErrForbidden
		}
		return fmt.Errorf("load patient: %w", err)
	}
	if patient.CaretakerID == nil || *patient.CaretakerID != sess.UserID {
		return ErrForbidden
	}
	return nil
}

// SnapshotEvent builds the event carrying the patient's current sorted
// schedule. Used both for the initial frame on a new stream and for
// post-mutation broadcasts.
func (s *Service) SnapshotEvent(ctx context.Context, patientID uuid.UUID) (*websocket.Event, error) {
	entries, err := s.meds.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list medicines: %w", err)
	}
	SortByTime(entries)
	data, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return &websocket.Event{
		Type:      websocket.EventTypeSnapshot,
		Topic:     websocket.PatientMedicinesTopic(patientID),
		PatientID: patientID.String(),
		Timestamp: time.Now().UTC(),
		Data:      data,
	}, nil
}

// publishSnapshot is best-effort. A mutation that reached the database is
// reported as a success even when the live update could not be delivered.
func (s *Service) publishSnapshot(ctx context.Context, patientID uuid.UUID) {
	if s.publisher == nil {
		return
	}
	event, err := s.SnapshotEvent(ctx, patientID)
	if err != nil {
		log.Warn().Err(err).Str("patient_id", patientID.String()).
			Msg("failed to build medicine snapshot")
		return
	}
	if err := s.publisher.Publish(ctx, *event); err != nil {
		log.Warn().Err(err).Str("patient_id", patientID.String()).
			Msg("failed to publish medicine snapshot")
	}
}
