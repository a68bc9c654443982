package lab

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medisync/medisync/internal/platform/db"
)

const patientFK = "labs_patient_id_fkey"

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.From(ctx, r.pool)
}

func (r *repoPG) Create(ctx context.Context, l *Lab) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO labs (patient_id, lab_code, lab_name, result_value, result_unit, is_abnormal, collected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		l.PatientID, l.LabCode, l.LabName, l.ResultValue, l.ResultUnit, l.IsAbnormal, l.CollectedAt,
	).Scan(&l.ID)
	if db.IsForeignKeyViolation(err, patientFK) {
		return ErrPatientNotFound
	}
	if err != nil {
		return fmt.Errorf("insert lab %s for patient %s: %w", l.LabCode, l.PatientID, err)
	}
	return nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Lab, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, patient_id, lab_code, lab_name, result_value, result_unit, is_abnormal, collected_at
		FROM labs
		WHERE patient_id = $1
		ORDER BY collected_at DESC, id`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query labs for patient %s: %w", patientID, err)
	}
	defer rows.Close()

	labs := make([]*Lab, 0)
	for rows.Next() {
		l, err := scanLab(rows)
		if err != nil {
			return nil, err
		}
		labs = append(labs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labs: %w", err)
	}
	return labs, nil
}

func scanLab(row pgx.Row) (*Lab, error) {
	var l Lab
	if err := row.Scan(&l.ID, &l.PatientID, &l.LabCode, &l.LabName, &l.ResultValue, &l.ResultUnit, &l.IsAbnormal, &l.CollectedAt); err != nil {
		return nil, fmt.Errorf("scan lab: %w", err)
	}
	return &l, nil
}
