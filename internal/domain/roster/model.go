package roster

import (
	"github.com/google/uuid"

	"github.com/medminder/medminder/internal/domain/identity"
)

// Roster is a caretaker's point-in-time view of the patient pools: patients
// nobody has claimed yet and patients assigned to this caretaker. It is not
// a live view; another caretaker may claim a patient after the read.
type Roster struct {
	Unassigned      []*identity.UserProfile `json:"unassigned"`
	UnassignedTotal int                     `json:"unassigned_total"`
	Assigned        []*identity.UserProfile `json:"assigned"`
	AssignedTotal   int                     `json:"assigned_total"`
}

// ApplyAssignment moves a just-claimed patient from the unassigned pool to
// the assigned pool without re-querying. This is a best-effort local patch:
// it keeps the view consistent with the successful write, but any other
// concurrent change is only picked up by the next full load.
func (r *Roster) ApplyAssignment(patient *identity.UserProfile) {
	for i, p := range r.Unassigned {
		if p.ID == patient.ID {
			r.Unassigned = append(r.Unassigned[:i], r.Unassigned[i+1:]...)
			r.UnassignedTotal--
			break
		}
	}
	for _, p := range r.Assigned {
		if p.ID == patient.ID {
			return
		}
	}
	r.Assigned = append(r.Assigned, patient)
	r.AssignedTotal++
}

// Contains reports whether the assigned pool holds the given patient.
func (r *Roster) Contains(patientID uuid.UUID) bool {
	for _, p := range r.Assigned {
		if p.ID == patientID {
			return true
		}
	}
	return false
}
