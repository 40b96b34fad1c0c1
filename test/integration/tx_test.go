package integration

import (
	"context"
	"errors"
	"testing"

	"github.com/medminder/medminder/internal/domain/identity"
	"github.com/medminder/medminder/internal/domain/medication"
	"github.com/medminder/medminder/internal/domain/roster"
	"github.com/medminder/medminder/internal/platform/auth"
	"github.com/medminder/medminder/internal/platform/db"
)

func TestTransactionScope(t *testing.T) {
	tdb := requireDB(t)
	ctx := context.Background()

	users := identity.NewUserRepoPG(tdb.Pool)
	identitySvc := identity.NewService(users, testIssuer())
	rosterRepo := roster.NewRosterRepoPG(tdb.Pool)
	medRepo := medication.NewMedicationRepoPG(tdb.Pool)

	patientSess := signupUser(t, ctx, identitySvc, "tx-patient", auth.RolePatient)
	caretakerSess := signupUser(t, ctx, identitySvc, "tx-carer", auth.RoleCaretaker)
	if _, err := rosterRepo.Assign(ctx, patientSess.UserID, caretakerSess.UserID); err != nil {
		t.Fatalf("assign: %v", err)
	}

	seed := func(name string) *medication.Entry {
		return &medication.Entry{
			Name: name, Dosage: "1", Time: "09:00",
			PatientID: patientSess.UserID, PatientEmail: patientSess.Email,
			CaretakerID: caretakerSess.UserID, CaretakerEmail: caretakerSess.Email,
		}
	}

	t.Run("RollbackDiscardsWrites", func(t *testing.T) {
		entry := seed("Rolled Back")
		boom := errors.New("abort")
		err := db.InTx(ctx, tdb.Pool, func(ctx context.Context) error {
			if err := medRepo.Create(ctx, entry); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("InTx err = %v", err)
		}
		if _, err := medRepo.GetByID(ctx, entry.ID); !errors.Is(err, medication.ErrNotFound) {
			t.Fatalf("rolled-back entry still visible: err = %v", err)
		}
	})

	t.Run("CommitPersistsWrites", func(t *testing.T) {
		entry := seed("Committed")
		err := db.InTx(ctx, tdb.Pool, func(ctx context.Context) error {
			return medRepo.Create(ctx, entry)
		})
		if err != nil {
			t.Fatalf("InTx: %v", err)
		}
		stored, err := medRepo.GetByID(ctx, entry.ID)
		if err != nil {
			t.Fatalf("reload: %v", err)
		}
		if stored.Name != "Committed" {
			t.Fatalf("stored = %+v", stored)
		}
	})
}
