package roster

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medminder/medminder/internal/domain/identity"
	"github.com/medminder/medminder/internal/platform/auth"
	"github.com/medminder/medminder/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type rosterRepoPG struct{ pool *pgxpool.Pool }

func NewRosterRepoPG(pool *pgxpool.Pool) RosterRepository {
	return &rosterRepoPG{pool: pool}
}

func (r *rosterRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

const patientCols = `id, email, password_hash, role, caretaker_id, assigned_at,
	created_at, updated_at`

func scanPatient(row pgx.Row) (*identity.UserProfile, error) {
	var u identity.UserProfile
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role,
		&u.CaretakerID, &u.AssignedAt, &u.CreatedAt, &u.UpdatedAt)
	return &u, err
}

func (r *rosterRepoPG) listPatients(ctx context.Context, where string, args []interface{}, limit, offset int) ([]*identity.UserProfile, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s ORDER BY created_at, id LIMIT $%d OFFSET $%d`,
		patientCols, where, len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var items []*identity.UserProfile
	for rows.Next() {
		u, err := scanPatient(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, u)
	}
	return items, total, rows.Err()
}

func (r *rosterRepoPG) ListUnassigned(ctx context.Context, limit, offset int) ([]*identity.UserProfile, int, error) {
	return r.listPatients(ctx, `role = $1 AND caretaker_id IS NULL`,
		[]interface{}{auth.RolePatient}, limit, offset)
}

func (r *rosterRepoPG) ListAssigned(ctx context.Context, caretakerID uuid.UUID, limit, offset int) ([]*identity.UserProfile, int, error) {
	return r.listPatients(ctx, `role = $1 AND caretaker_id = $2`,
		[]interface{}{auth.RolePatient, caretakerID}, limit, offset)
}

// Assign runs the claim and its diagnostic read in one transaction so the
// error reported for a failed claim reflects the row state that made it fail.
func (r *rosterRepoPG) Assign(ctx context.Context, patientID, caretakerID uuid.UUID) (*identity.UserProfile, error) {
	if db.TxFromContext(ctx) != nil {
		return r.assign(ctx, patientID, caretakerID)
	}
	var u *identity.UserProfile
	err := db.InTx(ctx, r.pool, func(ctx context.Context) error {
		var err error
		u, err = r.assign(ctx, patientID, caretakerID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *rosterRepoPG) assign(ctx context.Context, patientID, caretakerID uuid.UUID) (*identity.UserProfile, error) {
	// Conditional write: only an unclaimed patient row is updated, so a
	// concurrent claim loses instead of overwriting.
	row := r.conn(ctx).QueryRow(ctx, `
		UPDATE users
		SET caretaker_id = $2, assigned_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND role = $3 AND caretaker_id IS NULL
		RETURNING `+patientCols,
		patientID, caretakerID, auth.RolePatient)

	u, err := scanPatient(row)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// Nothing updated: distinguish missing, wrong role, and already taken.
	var role auth.Role
	var existing *uuid.UUID
	err = r.conn(ctx).QueryRow(ctx,
		`SELECT role, caretaker_id FROM users WHERE id = $1`, patientID).
		Scan(&role, &existing)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return nil, identity.ErrNotFound
	case err != nil:
		return nil, err
	case role != auth.RolePatient:
		return nil, ErrNotPatient
	default:
		return nil, ErrAlreadyAssigned
	}
}
