package medication

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medminder/medminder/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type medicationRepoPG struct{ pool *pgxpool.Pool }

func NewMedicationRepoPG(pool *pgxpool.Pool) MedicationRepository {
	return &medicationRepoPG{pool: pool}
}

func (r *medicationRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const medicineCols = `id, name, dosage, time, patient_id, patient_email,
	caretaker_id, caretaker_email, taken, taken_at, last_alert_sent,
	created_at, updated_at`

func (r *medicationRepoPG) scanEntry(row pgx.Row) (*Entry, error) {
	var e Entry
	err := row.Scan(&e.ID, &e.Name, &e.Dosage, &e.Time, &e.PatientID,
		&e.PatientEmail, &e.CaretakerID, &e.CaretakerEmail, &e.Taken,
		&e.TakenAt, &e.LastAlertSent, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return &e, err
}

func (r *medicationRepoPG) Create(ctx context.Context, e *Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medicines (id, name, dosage, time, patient_id, patient_email,
			caretaker_id, caretaker_email)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		e.ID, e.Name, e.Dosage, e.Time, e.PatientID, e.PatientEmail,
		e.CaretakerID, e.CaretakerEmail).Scan(&e.CreatedAt, &e.UpdatedAt)
}

func (r *medicationRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Entry, error) {
	return r.scanEntry(r.conn(ctx).QueryRow(ctx,
		`SELECT `+medicineCols+` FROM medicines WHERE id = $1`, id))
}

func (r *medicationRepoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Entry, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+medicineCols+` FROM medicines WHERE patient_id = $1`, patientID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e, err := r.scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// MarkTaken runs the conditional write and its idempotency read in one
// transaction, so a concurrent acknowledgement cannot slip between them.
func (r *medicationRepoPG) MarkTaken(ctx context.Context, id, patientID uuid.UUID) (*Entry, error) {
	if db.TxFromContext(ctx) != nil {
		return r.markTaken(ctx, id, patientID)
	}
	var e *Entry
	err := db.InTx(ctx, r.pool, func(ctx context.Context) error {
		var err error
		e, err = r.markTaken(ctx, id, patientID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return e, nil
}

func (r *medicationRepoPG) markTaken(ctx context.Context, id, patientID uuid.UUID) (*Entry, error) {
	e, err := r.scanEntry(r.conn(ctx).QueryRow(ctx, `
		UPDATE medicines
		SET taken = TRUE, taken_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND patient_id = $2 AND taken = FALSE
		RETURNING `+medicineCols, id, patientID))
	if !errors.Is(err, ErrNotFound) {
		return e, err
	}
	// Either the entry does not exist for this patient or it was already
	// taken. The second case is an idempotent no-op.
	e, err = r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e.PatientID != patientID {
		return nil, ErrNotFound
	}
	return e, nil
}

func (r *medicationRepoPG) SetLastAlert(ctx context.Context, id uuid.UUID, at time.Time) error {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE medicines SET last_alert_sent = $2, updated_at = NOW()
		WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
