package summary

import (
	"context"

	"github.com/google/uuid"
)

// Repository persists summary snapshots, one per visit. GetByVisit
// returns (nil, nil) when no snapshot exists yet.
type Repository interface {
	GetByVisit(ctx context.Context, visitUUID uuid.UUID) (*Summary, error)
	Save(ctx context.Context, s *Summary) error
	Delete(ctx context.Context, visitUUID uuid.UUID) error
}
