package selection

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists selection records. Get returns (nil, nil) when no
// record exists for the pair — absence is a state, not an error.
type Repository interface {
	Upsert(ctx context.Context, rec *ServiceSelectionRecord) error
	Get(ctx context.Context, visitUUID, serviceID uuid.UUID) (*ServiceSelectionRecord, error)
	ListByVisit(ctx context.Context, visitUUID uuid.UUID) ([]*ServiceSelectionRecord, error)
	Delete(ctx context.Context, visitUUID, serviceID uuid.UUID) error
}
