package lab

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, l *Lab) error
	// ListByPatient returns labs newest first by collected_at.
	ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*Lab, error)
}
