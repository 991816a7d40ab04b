package bill

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	GetByVisit(ctx context.Context, visitID uuid.UUID) (*Bill, error)
	Save(ctx context.Context, b *Bill) error
	Delete(ctx context.Context, visitID uuid.UUID) error
}
