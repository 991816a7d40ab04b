package visit

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/tariff"
)

type Service struct {
	visits   Repository
	patients PatientRepository
}

func NewService(visits Repository, patients PatientRepository) *Service {
	return &Service{visits: visits, patients: patients}
}

func (s *Service) Register(ctx context.Context, v *Visit) error {
	if v.VisitID == "" {
		return fmt.Errorf("visit_id is required")
	}
	if v.PatientID == uuid.Nil {
		return fmt.Errorf("patient_id is required")
	}
	return s.visits.Create(ctx, v)
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Visit, error) {
	return s.visits.GetByID(ctx, id)
}

func (s *Service) GetByVisitID(ctx context.Context, visitID string) (*Visit, error) {
	return s.visits.GetByVisitID(ctx, visitID)
}

func (s *Service) ListByVisitID(ctx context.Context, visitID string) ([]*Visit, error) {
	return s.visits.ListByVisitID(ctx, visitID)
}

// SetDates updates the admission, discharge, surgery, and package windows.
// Each pair that is fully present must be ordered.
func (s *Service) SetDates(ctx context.Context, v *Visit) error {
	if v.AdmissionDate != nil && v.DischargeDate != nil && v.DischargeDate.Before(*v.AdmissionDate) {
		return fmt.Errorf("discharge date before admission date")
	}
	if v.PackageStart != nil && v.PackageEnd != nil && v.PackageEnd.Before(*v.PackageStart) {
		return fmt.Errorf("package end before package start")
	}
	return s.visits.Update(ctx, v)
}

// BillingCategory derives the patient category for a visit. The category
// stays stable within one billing session: callers resolve once and carry
// the value, they do not re-derive per line.
func (s *Service) BillingCategory(ctx context.Context, visitUUID uuid.UUID) (tariff.PatientCategory, error) {
	v, err := s.visits.GetByID(ctx, visitUUID)
	if err != nil {
		return "", fmt.Errorf("loading visit: %w", err)
	}
	patientFields := tariff.CategoryFields{}
	if p, err := s.patients.GetByID(ctx, v.PatientID); err == nil {
		patientFields = p.CategoryFields()
	}
	return tariff.ResolveCategory(v.CategoryFields(), patientFields), nil
}

func (s *Service) RegisterPatient(ctx context.Context, p *Patient) error {
	if p.Name == "" {
		return fmt.Errorf("name is required")
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}
