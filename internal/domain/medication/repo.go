package medication

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no medicine matches the lookup.
var ErrNotFound = errors.New("medicine not found")

type MedicationRepository interface {
	Create(ctx context.Context, e *Entry) error
	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Entry, error)
	// MarkTaken acknowledges a dose. The write only fires on the
	// false-to-true transition; acknowledging an already-taken entry is a
	// no-op that returns the stored entry unchanged.
	MarkTaken(ctx context.Context, id, patientID uuid.UUID) (*Entry, error)
	// SetLastAlert records a successful alert dispatch for the entry.
	SetLastAlert(ctx context.Context, id uuid.UUID, at time.Time) error
}
