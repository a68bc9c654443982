package note

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medisync/medisync/internal/domain/patient"
	"github.com/medisync/medisync/internal/platform/db"
)

const patientFK = "clinical_notes_patient_id_fkey"

type repoPG struct {
	pool *pgxpool.Pool
}

func NewRepo(pool *pgxpool.Pool) Repository {
	return &repoPG{pool: pool}
}

func (r *repoPG) conn(ctx context.Context) db.Querier {
	return db.From(ctx, r.pool)
}

func (r *repoPG) Create(ctx context.Context, n *ClinicalNote) error {
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO clinical_notes (patient_id, note_type, content)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`,
		n.PatientID, n.NoteType, n.Content,
	).Scan(&n.ID, &n.CreatedAt)
	if db.IsForeignKeyViolation(err, patientFK) {
		return ErrPatientNotFound
	}
	if err != nil {
		return fmt.Errorf("insert note for patient %s: %w", n.PatientID, err)
	}
	return nil
}

func (r *repoPG) EnsureTag(ctx context.Context, name string) (int, error) {
	q := r.conn(ctx)
	if _, err := q.Exec(ctx, `INSERT INTO tags (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name); err != nil {
		return 0, fmt.Errorf("insert tag %q: %w", name, err)
	}
	var id int
	if err := q.QueryRow(ctx, `SELECT id FROM tags WHERE name = $1`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("resolve tag %q: %w", name, err)
	}
	return id, nil
}

func (r *repoPG) AttachTag(ctx context.Context, noteID uuid.UUID, tagID int) (bool, error) {
	tag, err := r.conn(ctx).Exec(ctx,
		`INSERT INTO note_tags (note_id, tag_id) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		noteID, tagID)
	if err != nil {
		return false, fmt.Errorf("tag note %s with %d: %w", noteID, tagID, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repoPG) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ClinicalNote, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT n.id, n.patient_id, n.note_type, n.content, n.created_at,
		       COALESCE(array_agg(t.name ORDER BY t.name) FILTER (WHERE t.name IS NOT NULL), '{}')
		FROM clinical_notes n
		LEFT JOIN note_tags nt ON nt.note_id = n.id
		LEFT JOIN tags t ON t.id = nt.tag_id
		WHERE n.patient_id = $1
		GROUP BY n.id
		ORDER BY n.created_at DESC, n.id`, patientID)
	if err != nil {
		return nil, fmt.Errorf("query notes for patient %s: %w", patientID, err)
	}
	defer rows.Close()

	notes := make([]*ClinicalNote, 0)
	for rows.Next() {
		var n ClinicalNote
		if err := rows.Scan(&n.ID, &n.PatientID, &n.NoteType, &n.Content, &n.CreatedAt, &n.Tags); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		notes = append(notes, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	return notes, nil
}

func (r *repoPG) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer rows.Close()

	tags := make([]Tag, 0)
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.Name); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

func (r *repoPG) PatientsByPillar(ctx context.Context, pillar string) ([]patient.Summary, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT DISTINCT p.id, p.mrn, p.first_name, p.last_name
		FROM patients p
		JOIN clinical_notes n ON n.patient_id = p.id
		JOIN note_tags nt ON nt.note_id = n.id
		JOIN tags t ON t.id = nt.tag_id
		WHERE lower(t.name) = lower($1)
		ORDER BY p.mrn`, pillar)
	if err != nil {
		return nil, fmt.Errorf("query patients for pillar %q: %w", pillar, err)
	}
	defer rows.Close()

	out := make([]patient.Summary, 0)
	for rows.Next() {
		var (
			s           patient.Summary
			first, last string
		)
		if err := rows.Scan(&s.ID, &s.MRN, &first, &last); err != nil {
			return nil, fmt.Errorf("scan pillar patient: %w", err)
		}
		s.Name = first + " " + last
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pillar patients: %w", err)
	}
	return out, nil
}
