package visit

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, v *Visit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Visit, error)
	// GetByVisitID returns the newest row carrying the external identifier.
	GetByVisitID(ctx context.Context, visitID string) (*Visit, error)
	// ListByVisitID returns every row sharing the external identifier,
	// newest first. Feeds the selection reconciler's recovery scan.
	ListByVisitID(ctx context.Context, visitID string) ([]*Visit, error)
	Update(ctx context.Context, v *Visit) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Update(ctx context.Context, p *Patient) error
}
