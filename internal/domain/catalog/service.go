package catalog

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type Service struct {
	entries Repository
}

func NewService(entries Repository) *Service {
	return &Service{entries: entries}
}

var validFamilies = map[string]bool{
	FamilyClinical: true, FamilyLab: true, FamilyRadiology: true,
	FamilyMandatory: true, FamilyAccommodation: true, FamilySurgery: true,
	FamilyOther: true,
}

var validStatuses = map[string]bool{"active": true, "retired": true}

func (s *Service) validate(e *ServiceCatalogEntry) error {
	if e.Name == "" {
		return fmt.Errorf("name is required")
	}
	if e.Family == "" {
		e.Family = FamilyOther
	}
	if !validFamilies[e.Family] {
		return fmt.Errorf("invalid service family: %s", e.Family)
	}
	if e.Status == "" {
		e.Status = "active"
	}
	if !validStatuses[e.Status] {
		return fmt.Errorf("invalid status: %s", e.Status)
	}
	for _, rate := range []*float64{
		e.PrivateRate, e.TPARate, e.CGHSRate, e.NonCGHSRate, e.NABHRate, e.NonNABHRate,
	} {
		if rate != nil && *rate < 0 {
			return fmt.Errorf("rates must not be negative")
		}
	}
	return nil
}

func (s *Service) Create(ctx context.Context, e *ServiceCatalogEntry) error {
	if err := s.validate(e); err != nil {
		return err
	}
	return s.entries.Create(ctx, e)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ServiceCatalogEntry, error) {
	return s.entries.GetByID(ctx, id)
}

func (s *Service) Update(ctx context.Context, e *ServiceCatalogEntry) error {
	if err := s.validate(e); err != nil {
		return err
	}
	return s.entries.Update(ctx, e)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.entries.Delete(ctx, id)
}

func (s *Service) List(ctx context.Context, family, status string, limit, offset int) ([]*ServiceCatalogEntry, int, error) {
	if family != "" && !validFamilies[family] {
		return nil, 0, fmt.Errorf("invalid service family: %s", family)
	}
	return s.entries.List(ctx, family, status, limit, offset)
}

func (s *Service) SearchByName(ctx context.Context, q string, limit, offset int) ([]*ServiceCatalogEntry, int, error) {
	return s.entries.SearchByName(ctx, q, limit, offset)
}
