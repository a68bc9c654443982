package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medisync/medisync/internal/platform/db"
)

const mrnConstraint = "patients_mrn_key"

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.From(ctx, r.pool)
}

const patientCols = `id, mrn, first_name, last_name, dob, created_at, updated_at`

func (r *repoPG) Create(ctx context.Context, p *Patient) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (mrn, first_name, last_name, dob)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		p.MRN, p.FirstName, p.LastName, p.DOB.Time,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err, mrnConstraint) {
		return ErrDuplicateMRN
	}
	if err != nil {
		return fmt.Errorf("insert patient %s: %w", p.MRN, err)
	}
	return nil
}

func (r *repoPG) Upsert(ctx context.Context, p *Patient) (bool, error) {
	var inserted bool
	// xmax is zero only for freshly inserted tuples.
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (mrn, first_name, last_name, dob)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (mrn) DO UPDATE SET updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0)`,
		p.MRN, p.FirstName, p.LastName, p.DOB.Time,
	).Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt, &inserted)
	if err != nil {
		return false, fmt.Errorf("upsert patient %s: %w", p.MRN, err)
	}
	return inserted, nil
}

func (r *repoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
}

func (r *repoPG) GetByMRN(ctx context.Context, mrn string) (*Patient, error) {
	return scanPatient(r.conn(ctx).QueryRow(ctx, `SELECT `+patientCols+` FROM patients WHERE mrn = $1`, mrn))
}

func (r *repoPG) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	var exists bool
	err := r.conn(ctx).QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM patients WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check patient %s: %w", id, err)
	}
	return exists, nil
}

func (r *repoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete patient %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.MRN, &p.FirstName, &p.LastName, &p.DOB.Time, &p.CreatedAt, &p.UpdatedAt)
	if db.IsNoRows(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan patient: %w", err)
	}
	return &p, nil
}
