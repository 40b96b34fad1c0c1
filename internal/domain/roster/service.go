package roster

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/medminder/medminder/internal/domain/identity"
	"github.com/medminder/medminder/internal/platform/auth"
	"github.com/medminder/medminder/internal/platform/notification"
)

type Service struct {
	patients  RosterRepository
	sender    notification.EmailSender
	templates *notification.TemplateEngine

	// now is swappable for tests.
	now func() time.Time
}

// NewService builds the roster service. A nil sender or template engine
// disables the assignment confirmation email.
func NewService(patients RosterRepository, sender notification.EmailSender,
	templates *notification.TemplateEngine) *Service {
	return &Service{patients: patients, sender: sender, templates: templates, now: time.Now}
}

// Roster loads both patient pools for the acting caretaker. Both reads are
// point-in-time; staleness against concurrent claims is resolved by the
// conditional assignment write, not here.
func (s *Service) Roster(ctx context.Context, sess *auth.Session, limit, offset int) (*Roster, error) {
	if !sess.IsCaretaker() {
		return nil, fmt.Errorf("caretaker role required")
	}

	unassigned, unassignedTotal, err := s.patients.ListUnassigned(ctx, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list unassigned patients: %w", err)
	}
	assigned, assignedTotal, err := s.patients.ListAssigned(ctx, sess.UserID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list assigned patients: %w", err)
	}

	return &Roster{
		Unassigned:      unassigned,
		UnassignedTotal: unassignedTotal,
		Assigned:        assigned,
		AssignedTotal:   assignedTotal,
	}, nil
}

// Assign claims an unassigned patient for the acting caretaker. On a lost
// race the caller receives ErrAlreadyAssigned and must reload the roster.
func (s *Service) Assign(ctx context.Context, sess *auth.Session, patientID uuid.UUID) (*identity.UserProfile, error) {
	if !sess.IsCaretaker() {
		return nil, fmt.Errorf("caretaker role required")
	}
	if patientID == uuid.Nil {
		return nil, fmt.Errorf("patient id is required")
	}

	claimed, err := s.patients.Assign(ctx, patientID, sess.UserID)
	if err != nil {
		return nil, err
	}
	s.notifyAssigned(ctx, sess, claimed)
	return claimed, nil
}

// notifyAssigned emails the assignment confirmation to the caretaker.
// Delivery is best-effort; the claim has already committed.
func (s *Service) notifyAssigned(ctx context.Context, sess *auth.Session, patient *identity.UserProfile) {
	if s.sender == nil || s.templates == nil {
		return
	}
	subject, body, err := s.templates.Render(notification.PatientAssignedTemplateID, map[string]string{
		"patient_email": patient.Email,
		"current_date":  s.now().Format("January 2, 2006"),
	})
	if err != nil {
		log.Error().Err(err).Str("patient_id", patient.ID.String()).
			Msg("failed to render assignment confirmation")
		return
	}

	err = s.sender.SendEmail(ctx, sess.Email, subject, body)
	if notification.IsNotConfigured(err) {
		return
	}
	if err != nil {
		log.Warn().Err(err).Str("to", sess.Email).
			Msg("failed to send assignment confirmation")
	}
}
