package patient

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *Patient) error
	// Upsert inserts p or, when the MRN exists, only touches updated_at.
	// It fills p's ID and timestamps from the stored row.
	Upsert(ctx context.Context, p *Patient) (inserted bool, err error)
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetByMRN(ctx context.Context, mrn string) (*Patient, error)
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
