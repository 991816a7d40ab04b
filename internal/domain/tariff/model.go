package tariff

import (
	"time"

	"github.com/google/uuid"
)

// RateType names a tariff column on a catalog service. The set is closed;
// persistence and resolution logic both key on these values.
type RateType string

const (
	RatePrivate RateType = "private"
	RateTPA     RateType = "tpa"
	RateCGHS    RateType = "cghs"
	RateNonCGHS RateType = "non_cghs"
	RateNABH    RateType = "nabh"
	RateNonNABH RateType = "non_nabh"
	// RateNominal marks a last-resort configured fee, used when a service
	// carries no usable rate column at all.
	RateNominal RateType = "nominal"
)

// AllRateTypes is the fixed scan order for the any-non-zero fallback step.
// Private leads so that the generic tariff always wins over scheme tariffs
// when nothing better is available.
var AllRateTypes = []RateType{
	RatePrivate, RateTPA, RateCGHS, RateNonCGHS, RateNABH, RateNonNABH,
}

// PatientCategory is the billing tier derived per visit. It stays stable
// within one billing session even if upstream visit data changes later.
type PatientCategory string

const (
	CategoryPrivate PatientCategory = "PRIVATE"
	CategoryTPA     PatientCategory = "TPA"
	CategoryCGHS    PatientCategory = "CGHS"
	CategoryNonCGHS PatientCategory = "NON_CGHS"
	CategoryNABH    PatientCategory = "NABH"
	CategoryNonNABH PatientCategory = "NON_NABH"
)

// RatePreference returns the ordered rate types to try for a category,
// before the private and any-non-zero fallbacks. Total over all categories:
// unknown categories resolve like private patients.
func RatePreference(cat PatientCategory) []RateType {
	switch cat {
	case CategoryTPA:
		return []RateType{RateTPA}
	case CategoryCGHS:
		return []RateType{RateCGHS, RateNABH}
	case CategoryNonCGHS:
		return []RateType{RateNonCGHS, RateNonNABH}
	case CategoryNABH:
		return []RateType{RateNABH, RateCGHS}
	case CategoryNonNABH:
		return []RateType{RateNonNABH, RateNonCGHS}
	default:
		return []RateType{RatePrivate}
	}
}

// RateCard is the read contract the resolver needs from a catalog service.
// The catalog package implements it; keeping the interface here avoids a
// dependency from tariff onto catalog.
type RateCard interface {
	ServiceID() uuid.UUID
	ServiceFamily() string
	// Rate returns the price for a tariff column and whether the column is
	// set at all. A set-but-zero price is returned as (0, true).
	Rate(rt RateType) (float64, bool)
}

// RateSelection is an immutable snapshot of a resolved tariff, taken at
// selection time. A later catalog price change must not retroactively alter
// an already-billed line, so callers persist this value rather than
// re-deriving it.
type RateSelection struct {
	ServiceID     uuid.UUID `json:"service_id"`
	RateType      RateType  `json:"rate_type"`
	UnitRate      float64   `json:"unit_rate"`
	Fallback      bool      `json:"fallback"`
	FallbackSteps []string  `json:"fallback_steps,omitempty"`
	ResolvedAt    time.Time `json:"resolved_at"`
}
