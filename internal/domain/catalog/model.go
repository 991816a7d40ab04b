package catalog

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/tariff"
)

// Service families group catalog entries for nominal-fee defaults and
// summary bucketing.
const (
	FamilyClinical      = "clinical"
	FamilyLab           = "lab"
	FamilyRadiology     = "radiology"
	FamilyMandatory     = "mandatory"
	FamilyAccommodation = "accommodation"
	FamilySurgery       = "surgery"
	FamilyOther         = "other"
)

// ServiceCatalogEntry is a priced service in the hospital's rate list.
// Reference data: the billing core reads it, only catalog endpoints write it.
// Each tariff column is nullable; a nil column means the hospital has no
// negotiated rate for that tier.
type ServiceCatalogEntry struct {
	ID     uuid.UUID `json:"id"`
	Name   string    `json:"name"`
	Code   *string   `json:"code,omitempty"`
	Family string    `json:"family"`

	PrivateRate *float64 `json:"private_rate,omitempty"`
	TPARate     *float64 `json:"tpa_rate,omitempty"`
	CGHSRate    *float64 `json:"cghs_rate,omitempty"`
	NonCGHSRate *float64 `json:"non_cghs_rate,omitempty"`
	NABHRate    *float64 `json:"nabh_rate,omitempty"`
	NonNABHRate *float64 `json:"non_nabh_rate,omitempty"`

	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ServiceID implements tariff.RateCard.
func (e *ServiceCatalogEntry) ServiceID() uuid.UUID { return e.ID }

// ServiceFamily implements tariff.RateCard.
func (e *ServiceCatalogEntry) ServiceFamily() string { return e.Family }

// Rate implements tariff.RateCard. ok is false when the column is nil.
func (e *ServiceCatalogEntry) Rate(rt tariff.RateType) (float64, bool) {
	var col *float64
	switch rt {
	case tariff.RatePrivate:
		col = e.PrivateRate
	case tariff.RateTPA:
		col = e.TPARate
	case tariff.RateCGHS:
		col = e.CGHSRate
	case tariff.RateNonCGHS:
		col = e.NonCGHSRate
	case tariff.RateNABH:
		col = e.NABHRate
	case tariff.RateNonNABH:
		col = e.NonNABHRate
	}
	if col == nil {
		return 0, false
	}
	return *col, true
}

// MissError reports a rate-type column that is absent or unusable for a
// service. The resolver, not the catalog, decides the fallback.
type MissError struct {
	ServiceID uuid.UUID
	RateType  tariff.RateType
}

func (e *MissError) Error() string {
	return fmt.Sprintf("catalog miss: service %s has no usable %s rate", e.ServiceID, e.RateType)
}

// Lookup returns the price for one tariff column, or a *MissError when the
// column is nil or zero.
func Lookup(e *ServiceCatalogEntry, rt tariff.RateType) (float64, error) {
	rate, ok := e.Rate(rt)
	if !ok || rate <= 0 {
		return 0, &MissError{ServiceID: e.ID, RateType: rt}
	}
	return rate, nil
}
