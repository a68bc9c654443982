package note

import (
	"context"

	"github.com/google/uuid"

	"github.com/medisync/medisync/internal/domain/patient"
)

type Repository interface {
	Create(ctx context.Context, n *ClinicalNote) error
	// EnsureTag creates the tag if missing and returns its id.
	EnsureTag(ctx context.Context, name string) (int, error)
	// AttachTag links a note and tag. It reports false when the link existed.
	AttachTag(ctx context.Context, noteID uuid.UUID, tagID int) (bool, error)
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*ClinicalNote, error)
	ListTags(ctx context.Context) ([]Tag, error)
	// PatientsByPillar returns each patient with a note tagged pillar once,
	// ordered by MRN. The tag name matches case-insensitively.
	PatientsByPillar(ctx context.Context, pillar string) ([]patient.Summary, error)
}
