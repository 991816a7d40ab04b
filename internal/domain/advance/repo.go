package advance

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, p *AdvancePayment) error
	GetByID(ctx context.Context, id uuid.UUID) (*AdvancePayment, error)
	ListByVisit(ctx context.Context, visitUUID uuid.UUID) ([]*AdvancePayment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
