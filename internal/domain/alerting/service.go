package alerting

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/medminder/medminder/internal/domain/identity"
	"github.com/medminder/medminder/internal/domain/medication"
	"github.com/medminder/medminder/internal/domain/roster"
	"github.com/medminder/medminder/internal/platform/auth"
	"github.com/medminder/medminder/internal/platform/notification"
	"github.com/medminder/medminder/internal/platform/telemetry"
)

const sweepPageSize = 100

// Report summarizes one sweep over a caretaker's assigned patients.
// Missed counts every overdue, untaken dose found, including doses already
// alerted today; suppression gates only the dispatch, never the accounting,
// so a dashboard loaded twice on the same day still shows the dose as
// missed. AlertsSent counts only the dispatches that actually went out.
type Report struct {
	PatientsChecked int                 `json:"patients_checked"`
	Missed          int                 `json:"missed"`
	AlertsSent      int                 `json:"alerts_sent"`
	MissedMedicines []*medication.Entry `json:"missed_medicines"`
}

type Service struct {
	meds       medication.MedicationRepository
	patients   roster.RosterRepository
	sender     notification.EmailSender
	templates  *notification.TemplateEngine
	templateID string
	metrics    *telemetry.Provider

	// now is swappable for tests.
	now func() time.Time
}

// NewService builds the alerting service. templateID selects the alert
// template; an empty ID means the alert boundary is unconfigured and
// dispatch is skipped, matching the config gate.
func NewService(meds medication.MedicationRepository, patients roster.RosterRepository,
	sender notification.EmailSender, templates *notification.TemplateEngine,
	templateID string, metrics *telemetry.Provider) *Service {
	return &Service{
		meds:       meds,
		patients:   patients,
		sender:     sender,
		templates:  templates,
		templateID: templateID,
		metrics:    metrics,
		now:        time.Now,
	}
}

// Sweep walks every patient assigned to the acting caretaker and alerts on
// each overdue dose that has not been alerted today. A failure on one patient
// or one dispatch is logged and skipped; the sweep always finishes.
func (s *Service) Sweep(ctx context.Context, sess *auth.Session) (*Report, error) {
	if !sess.IsCaretaker() {
		return nil, fmt.Errorf("caretaker role required")
	}

	now := s.now()
	report := &Report{MissedMedicines: []*medication.Entry{}}

	for offset := 0; ; offset += sweepPageSize {
		patients, total, err := s.patients.ListAssigned(ctx, sess.UserID, sweepPageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("list assigned patients: %w", err)
		}
		for _, p := range patients {
			report.PatientsChecked++
			s.sweepPatient(ctx, p, now, report)
		}
		if offset+len(patients) >= total || len(patients) == 0 {
			break
		}
	}

	if s.metrics != nil {
		s.metrics.SweepRun()
	}
	return report, nil
}

func (s *Service) sweepPatient(ctx context.Context, p *identity.UserProfile, now time.Time, report *Report) {
	entries, err := s.meds.ListByPatient(ctx, p.ID)
	if err != nil {
		log.Warn().Err(err).Str("patient_id", p.ID.String()).
			Msg("skipping patient during alert sweep")
		return
	}
	for _, e := range entries {
		if !Overdue(e, now) {
			continue
		}
		report.Missed++
		report.MissedMedicines = append(report.MissedMedicines, e)
		if AlertSentToday(e, now) {
			continue
		}
		if s.dispatch(ctx, e, now) {
			report.AlertsSent++
		}
	}
}

// dispatch sends one missed-dose alert to the caretaker on record for the
// entry. It reports whether the alert went out; only then is the suppression
// timestamp persisted, so a failed send retries on the next sweep.
func (s *Service) dispatch(ctx context.Context, e *medication.Entry, now time.Time) bool {
	if s.templateID == "" {
		log.Debug().Str("medicine_id", e.ID.String()).
			Msg("alert template not configured, alert skipped")
		return false
	}
	subject, body, err := s.templates.Render(s.templateID, map[string]string{
		"to_email":       e.CaretakerEmail,
		"patient_email":  e.PatientEmail,
		"medicine_name":  e.Name,
		"dosage":         e.Dosage,
		"scheduled_time": medication.DisplayTime(e.Time),
		"current_date":   now.Format("January 2, 2006"),
		"current_time":   now.Format("3:04 PM"),
	})
	if err != nil {
		log.Error().Err(err).Str("medicine_id", e.ID.String()).
			Msg("failed to render missed-dose alert")
		return false
	}

	err = s.sender.SendEmail(ctx, e.CaretakerEmail, subject, body)
	if notification.IsNotConfigured(err) {
		log.Debug().Str("medicine_id", e.ID.String()).
			Msg("email not configured, alert skipped")
		return false
	}
	if err != nil {
		log.Warn().Err(err).Str("medicine_id", e.ID.String()).
			Str("to", e.CaretakerEmail).Msg("failed to send missed-dose alert")
		return false
	}

	if err := s.meds.SetLastAlert(ctx, e.ID, now); err != nil {
		// The alert went out; a stale timestamp at worst repeats it tomorrow.
		log.Warn().Err(err).Str("medicine_id", e.ID.String()).
			Msg("failed to record alert timestamp")
	}
	if s.metrics != nil {
		s.metrics.AlertSent()
	}
	return true
}
