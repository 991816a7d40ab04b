package tariff

import (
	"fmt"
	"time"
)

// NominalRates are the last-resort fees used when a service has no usable
// rate column at all. Business policy values: they come from configuration,
// never derived from catalog data.
type NominalRates struct {
	Lab      float64
	Clinical float64
	Default  float64
}

// ForFamily picks the nominal fee for a service family.
func (n NominalRates) ForFamily(family string) float64 {
	switch family {
	case "lab", "laboratory":
		return n.Lab
	case "clinical":
		return n.Clinical
	default:
		return n.Default
	}
}

// Resolver picks the tariff to charge for a service and patient category.
// There is one fallback chain for every service family; call sites must not
// re-implement it.
type Resolver struct {
	nominal NominalRates
	now     func() time.Time
}

func NewResolver(nominal NominalRates) *Resolver {
	return &Resolver{nominal: nominal, now: time.Now}
}

// Resolve returns the rate to charge and which tariff column it came from.
//
// Chain: the category's preferred rate types in order, then private, then
// any other non-zero column in AllRateTypes order, then the configured
// nominal fee for the service family. A service is never billed at zero
// silently: every skipped step is recorded in FallbackSteps so the caller
// can warn the operator that a non-ideal rate was used.
func (r *Resolver) Resolve(card RateCard, category PatientCategory) RateSelection {
	sel := RateSelection{
		ServiceID:  card.ServiceID(),
		ResolvedAt: r.now(),
	}

	tried := make(map[RateType]bool)
	try := func(rt RateType) bool {
		if tried[rt] {
			return false
		}
		tried[rt] = true
		rate, ok := card.Rate(rt)
		if !ok {
			sel.FallbackSteps = append(sel.FallbackSteps, fmt.Sprintf("%s: not set", rt))
			return false
		}
		if rate <= 0 {
			sel.FallbackSteps = append(sel.FallbackSteps, fmt.Sprintf("%s: zero", rt))
			return false
		}
		sel.RateType = rt
		sel.UnitRate = rate
		return true
	}

	preferred := RatePreference(category)
	for i, rt := range preferred {
		if try(rt) {
			sel.Fallback = i > 0
			return sel
		}
	}

	if try(RatePrivate) {
		sel.Fallback = true
		return sel
	}

	for _, rt := range AllRateTypes {
		if try(rt) {
			sel.Fallback = true
			return sel
		}
	}

	sel.RateType = RateNominal
	sel.UnitRate = r.nominal.ForFamily(card.ServiceFamily())
	sel.Fallback = true
	sel.FallbackSteps = append(sel.FallbackSteps,
		fmt.Sprintf("nominal: no usable rate, charged %s default", card.ServiceFamily()))
	return sel
}
