package tariff

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

type testCard struct {
	id     uuid.UUID
	family string
	rates  map[RateType]float64
}

func (c *testCard) ServiceID() uuid.UUID   { return c.id }
func (c *testCard) ServiceFamily() string  { return c.family }
func (c *testCard) Rate(rt RateType) (float64, bool) {
	r, ok := c.rates[rt]
	return r, ok
}

func newTestResolver() *Resolver {
	r := NewResolver(NominalRates{Lab: 100, Clinical: 200, Default: 50})
	r.now = func() time.Time { return time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC) }
	return r
}

func TestResolve_PreferredRatePresent(t *testing.T) {
	card := &testCard{id: uuid.New(), family: "clinical", rates: map[RateType]float64{
		RateCGHS:    350,
		RatePrivate: 500,
	}}

	sel := newTestResolver().Resolve(card, CategoryCGHS)

	if sel.RateType != RateCGHS {
		t.Errorf("expected cghs rate type, got %s", sel.RateType)
	}
	if sel.UnitRate != 350 {
		t.Errorf("expected rate 350, got %v", sel.UnitRate)
	}
	if sel.Fallback {
		t.Error("preferred rate hit should not be flagged as fallback")
	}
	if len(sel.FallbackSteps) != 0 {
		t.Errorf("expected no fallback steps, got %v", sel.FallbackSteps)
	}
	if sel.ServiceID != card.id {
		t.Error("selection should carry the service id")
	}
}

func TestResolve_CGHSMissingFallsBackToPrivateNeverTPA(t *testing.T) {
	card := &testCard{id: uuid.New(), family: "clinical", rates: map[RateType]float64{
		RatePrivate: 500,
		RateTPA:     450,
	}}

	sel := newTestResolver().Resolve(card, CategoryCGHS)

	if sel.RateType != RatePrivate {
		t.Errorf("expected private fallback, got %s", sel.RateType)
	}
	if sel.UnitRate != 500 {
		t.Errorf("expected rate 500, got %v", sel.UnitRate)
	}
	if !sel.Fallback {
		t.Error("fallback to private must be flagged")
	}
}

func TestResolve_ZeroPreferredRateFallsBack(t *testing.T) {
	// Service with rates {private: 100, cghs: 0}, category CGHS.
	card := &testCard{id: uuid.New(), family: "lab", rates: map[RateType]float64{
		RatePrivate: 100,
		RateCGHS:    0,
	}}

	sel := newTestResolver().Resolve(card, CategoryCGHS)

	if sel.RateType != RatePrivate {
		t.Errorf("expected private fallback, got %s", sel.RateType)
	}
	if sel.UnitRate != 100 {
		t.Errorf("expected rate 100, got %v", sel.UnitRate)
	}
	if !sel.Fallback {
		t.Error("zero preferred rate must set the fallback flag")
	}
	if len(sel.FallbackSteps) == 0 {
		t.Error("skipped steps must be reported, not just logged")
	}
}

func TestResolve_SecondPreferenceCountsAsFallback(t *testing.T) {
	card := &testCard{id: uuid.New(), family: "clinical", rates: map[RateType]float64{
		RateNABH: 275,
	}}

	sel := newTestResolver().Resolve(card, CategoryCGHS)

	if sel.RateType != RateNABH {
		t.Errorf("expected nabh (second preference), got %s", sel.RateType)
	}
	if !sel.Fallback {
		t.Error("second-preference hit should be flagged as fallback")
	}
}

func TestResolve_AnyNonZeroRate(t *testing.T) {
	// Private category but only a tpa rate exists.
	card := &testCard{id: uuid.New(), family: "clinical", rates: map[RateType]float64{
		RateTPA: 420,
	}}

	sel := newTestResolver().Resolve(card, CategoryPrivate)

	if sel.RateType != RateTPA {
		t.Errorf("expected tpa via any-non-zero scan, got %s", sel.RateType)
	}
	if sel.UnitRate != 420 {
		t.Errorf("expected rate 420, got %v", sel.UnitRate)
	}
	if !sel.Fallback {
		t.Error("any-non-zero hit must be flagged as fallback")
	}
}

func TestResolve_NominalDefaultByFamily(t *testing.T) {
	tests := []struct {
		family string
		want   float64
	}{
		{"lab", 100},
		{"clinical", 200},
		{"radiology", 50},
	}

	for _, tt := range tests {
		t.Run(tt.family, func(t *testing.T) {
			card := &testCard{id: uuid.New(), family: tt.family, rates: map[RateType]float64{}}

			sel := newTestResolver().Resolve(card, CategoryTPA)

			if sel.RateType != RateNominal {
				t.Errorf("expected nominal rate type, got %s", sel.RateType)
			}
			if sel.UnitRate != tt.want {
				t.Errorf("expected nominal rate %v, got %v", tt.want, sel.UnitRate)
			}
			if sel.UnitRate == 0 {
				t.Error("a service must never resolve to zero")
			}
			if !sel.Fallback {
				t.Error("nominal fee must be flagged as fallback")
			}
		})
	}
}

func TestResolve_AllZeroColumnsUsesNominal(t *testing.T) {
	card := &testCard{id: uuid.New(), family: "lab", rates: map[RateType]float64{
		RatePrivate: 0,
		RateTPA:     0,
		RateCGHS:    0,
	}}

	sel := newTestResolver().Resolve(card, CategoryPrivate)

	if sel.RateType != RateNominal {
		t.Errorf("expected nominal, got %s", sel.RateType)
	}
	if sel.UnitRate != 100 {
		t.Errorf("expected lab nominal 100, got %v", sel.UnitRate)
	}
}

func TestRatePreference(t *testing.T) {
	tests := []struct {
		cat  PatientCategory
		want []RateType
	}{
		{CategoryPrivate, []RateType{RatePrivate}},
		{CategoryTPA, []RateType{RateTPA}},
		{CategoryCGHS, []RateType{RateCGHS, RateNABH}},
		{CategoryNonCGHS, []RateType{RateNonCGHS, RateNonNABH}},
		{CategoryNABH, []RateType{RateNABH, RateCGHS}},
		{CategoryNonNABH, []RateType{RateNonNABH, RateNonCGHS}},
		{PatientCategory("MYSTERY"), []RateType{RatePrivate}},
	}

	for _, tt := range tests {
		got := RatePreference(tt.cat)
		if len(got) != len(tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.cat, tt.want, got)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("%s: expected %v, got %v", tt.cat, tt.want, got)
				break
			}
		}
	}
}

func TestNominalRates_ForFamily(t *testing.T) {
	n := NominalRates{Lab: 10, Clinical: 20, Default: 5}
	if n.ForFamily("lab") != 10 {
		t.Error("lab family should use the lab nominal")
	}
	if n.ForFamily("laboratory") != 10 {
		t.Error("laboratory alias should use the lab nominal")
	}
	if n.ForFamily("clinical") != 20 {
		t.Error("clinical family should use the clinical nominal")
	}
	if n.ForFamily("surgery") != 5 {
		t.Error("unknown families should use the default nominal")
	}
}
