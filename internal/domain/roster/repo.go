package roster

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/medminder/medminder/internal/domain/identity"
)

var (
	// ErrAlreadyAssigned is returned when the target patient was claimed by
	// another caretaker between the roster read and the assignment write.
	ErrAlreadyAssigned = errors.New("patient already assigned to a caretaker")
	// ErrNotPatient is returned when the assignment target is not a patient
	// profile.
	ErrNotPatient = errors.New("target user is not a patient")
)

type RosterRepository interface {
	ListUnassigned(ctx context.Context, limit, offset int) ([]*identity.UserProfile, int, error)
	ListAssigned(ctx context.Context, caretakerID uuid.UUID, limit, offset int) ([]*identity.UserProfile, int, error)
	// Assign claims an unassigned patient for the caretaker with a
	// conditional write and stamps the assignment time. It returns the
	// updated profile, ErrAlreadyAssigned when the patient is already
	// claimed, ErrNotPatient for non-patient targets, or
	// identity.ErrNotFound when no such user exists.
	Assign(ctx context.Context, patientID, caretakerID uuid.UUID) (*identity.UserProfile, error)
}
