package bill

import "math"

// Adjustment is one ordered percentage reduction. Percent 0 means "no
// adjustment" and is a no-op.
type Adjustment struct {
	Label   string  `json:"label"`
	Percent float64 `json:"percent"`
}

// CascadeResult reports every intermediate figure of a two-step discount
// cascade so the bill can show the operator how the final amount was built.
type CascadeResult struct {
	Base           float64 `json:"base"`
	AfterFirst     float64 `json:"after_first"`
	Final          float64 `json:"final"`
	FirstDiscount  float64 `json:"first_discount"`
	SecondDiscount float64 `json:"second_discount"`
}

// ApplyCascade applies two ordered percentage adjustments to a base amount.
// Each adjustment operates on the running amount, not the original base:
// 50% then 25% yields base*0.5*0.75, not base*0.25. The ordering is billing
// policy and must not be changed.
func ApplyCascade(base float64, first, second Adjustment) CascadeResult {
	afterFirst := roundCurrency(base * (1 - first.Percent/100))
	final := roundCurrency(afterFirst * (1 - second.Percent/100))
	return CascadeResult{
		Base:           roundCurrency(base),
		AfterFirst:     afterFirst,
		Final:          final,
		FirstDiscount:  roundCurrency(base - afterFirst),
		SecondDiscount: roundCurrency(afterFirst - final),
	}
}

// ValidPercent reports whether a percentage is acceptable for an adjustment.
func ValidPercent(p float64) bool {
	return p >= 0 && p <= 100
}

// SurgeryRow is a surgical treatment line: base amount with up to two
// ordered adjustments. The final amount is always derived from its inputs,
// never stored independently, so it cannot drift.
type SurgeryRow struct {
	Description      string     `json:"description"`
	UnitRate         float64    `json:"unit_rate"`
	Quantity         int        `json:"quantity"`
	FirstAdjustment  Adjustment `json:"first_adjustment"`
	SecondAdjustment Adjustment `json:"second_adjustment"`
}

func (r SurgeryRow) BaseAmount() float64 {
	return roundCurrency(r.UnitRate * float64(r.Quantity))
}

func (r SurgeryRow) Cascade() CascadeResult {
	return ApplyCascade(r.BaseAmount(), r.FirstAdjustment, r.SecondAdjustment)
}

func (r SurgeryRow) FinalAmount() float64 {
	return r.Cascade().Final
}

func roundCurrency(v float64) float64 {
	return math.Round(v*100) / 100
}
