package catalog

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	Create(ctx context.Context, e *ServiceCatalogEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceCatalogEntry, error)
	Update(ctx context.Context, e *ServiceCatalogEntry) error
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context, family, status string, limit, offset int) ([]*ServiceCatalogEntry, int, error)
	SearchByName(ctx context.Context, q string, limit, offset int) ([]*ServiceCatalogEntry, int, error)
}
