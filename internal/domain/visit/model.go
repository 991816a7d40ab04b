package visit

import (
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/tariff"
)

// Patient holds the demographics and tier fields the billing core reads.
type Patient struct {
	ID              uuid.UUID `json:"id"`
	Name            string    `json:"name"`
	Phone           *string   `json:"phone,omitempty"`
	BillingCategory string    `json:"billing_category,omitempty"`
	PatientType     string    `json:"patient_type,omitempty"`
	InsuranceType   string    `json:"insurance_type,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Visit is one admission. VisitID is the human-entered external identifier
// (e.g. "IH25F25001"); upstream data entry can produce several rows sharing
// one VisitID, which is why the reconciler needs ListByVisitID.
type Visit struct {
	ID              uuid.UUID  `json:"id"`
	VisitID         string     `json:"visit_id"`
	PatientID       uuid.UUID  `json:"patient_id"`
	BillingCategory string     `json:"billing_category,omitempty"`
	PatientType     string     `json:"patient_type,omitempty"`
	InsuranceType   string     `json:"insurance_type,omitempty"`
	AdmissionDate   *time.Time `json:"admission_date,omitempty"`
	DischargeDate   *time.Time `json:"discharge_date,omitempty"`
	SurgeryDate     *time.Time `json:"surgery_date,omitempty"`
	PackageStart    *time.Time `json:"package_start,omitempty"`
	PackageEnd      *time.Time `json:"package_end,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// CategoryFields adapts a visit for the category resolver.
func (v *Visit) CategoryFields() tariff.CategoryFields {
	return tariff.CategoryFields{
		BillingCategory: v.BillingCategory,
		PatientType:     v.PatientType,
		InsuranceType:   v.InsuranceType,
	}
}

// CategoryFields adapts a patient for the category resolver.
func (p *Patient) CategoryFields() tariff.CategoryFields {
	return tariff.CategoryFields{
		BillingCategory: p.BillingCategory,
		PatientType:     p.PatientType,
		InsuranceType:   p.InsuranceType,
	}
}
