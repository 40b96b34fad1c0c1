// Package notification provides the transactional email boundary for
// missed-dose alerts: template rendering, an SMTP sender, and a recognized
// "not configured" state in which dispatch is skipped rather than failed.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrNotConfigured is returned by a sender whose transport was never
// configured. Callers treat it as "alert skipped", not as a delivery failure.
var ErrNotConfigured = errors.New("email transport not configured")

// IsNotConfigured reports whether err represents the unconfigured state.
func IsNotConfigured(err error) bool {
	return errors.Is(err, ErrNotConfigured)
}

// EmailSender is the interface for sending email messages.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// Template defines a reusable notification template.
type Template struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// TemplateEngine manages notification templates and renders them with data.
type TemplateEngine struct {
	mu        sync.RWMutex
	templates map[string]*Template
}

// Built-in template IDs.
const (
	// MissedMedicationTemplateID identifies the missed-dose alert template.
	MissedMedicationTemplateID = "missed-medication-alert"
	// PatientAssignedTemplateID identifies the assignment confirmation sent
	// to a caretaker after claiming a patient.
	PatientAssignedTemplateID = "patient-assigned"
)

// NewTemplateEngine creates a TemplateEngine with the built-in templates
// pre-registered.
func NewTemplateEngine() *TemplateEngine {
	e := &TemplateEngine{
		templates: make(map[string]*Template),
	}
	e.registerBuiltIn()
	return e
}

func (e *TemplateEngine) registerBuiltIn() {
	builtIn := []Template{
		{
			ID:      MissedMedicationTemplateID,
			Name:    "Missed Medication Alert",
			Subject: "Missed medication: {{medicine_name}} for {{patient_email}}",
			Body: "Your patient {{patient_email}} has not taken {{medicine_name}} ({{dosage}}) " +
				"scheduled for {{scheduled_time}}. Checked on {{current_date}} at {{current_time}}.",
		},
		{
			ID:      PatientAssignedTemplateID,
			Name:    "Patient Assigned",
			Subject: "You are now caring for {{patient_email}}",
			Body:    "The patient {{patient_email}} was assigned to you on {{current_date}}.",
		},
	}
	for i := range builtIn {
		t := builtIn[i]
		e.templates[t.ID] = &t
	}
}

// RegisterTemplate adds or replaces a template in the engine.
func (e *TemplateEngine) RegisterTemplate(t Template) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.templates[t.ID] = &t
}

// Render looks up a template by ID and performs {{key}} replacement using the
// supplied data map. Keys present in the template but absent from data are
// left as-is.
func (e *TemplateEngine) Render(templateID string, data map[string]string) (subject, body string, err error) {
	e.mu.RLock()
	t, ok := e.templates[templateID]
	e.mu.RUnlock()
	if !ok {
		return "", "", fmt.Errorf("template %q not found", templateID)
	}

	subject = t.Subject
	body = t.Body
	for k, v := range data {
		placeholder := "{{" + k + "}}"
		subject = strings.ReplaceAll(subject, placeholder, v)
		body = strings.ReplaceAll(body, placeholder, v)
	}
	return subject, body, nil
}

// DisabledSender is an EmailSender for deployments without email
// configuration. Every send reports ErrNotConfigured.
type DisabledSender struct{}

func (DisabledSender) SendEmail(context.Context, string, string, string) error {
	return ErrNotConfigured
}

// EmailCall records a single call to SendEmail.
type EmailCall struct {
	To      string
	Subject string
	Body    string
}

// MockEmailSender is a test double for EmailSender.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
	FailError  string
}

// SendEmail records the call and optionally returns an error.
func (m *MockEmailSender) SendEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, EmailCall{To: to, Subject: subject, Body: body})
	if m.ShouldFail {
		return errors.New(m.FailError)
	}
	return nil
}

// Calls returns a copy of recorded email calls.
func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}
