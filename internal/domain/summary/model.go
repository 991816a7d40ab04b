package summary

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Category is one row of the financial summary. The set is fixed; every
// summary carries all of them even when zero, so the rendered matrix never
// shifts shape between visits.
type Category string

const (
	CategoryAdvancePayment   Category = "advance_payment"
	CategoryClinical         Category = "clinical_services"
	CategoryLaboratory       Category = "laboratory_services"
	CategoryRadiology        Category = "radiology"
	CategoryPharmacy         Category = "pharmacy"
	CategoryImplant          Category = "implant"
	CategoryBlood            Category = "blood"
	CategorySurgery          Category = "surgery"
	CategoryMandatory        Category = "mandatory_services"
	CategoryPhysiotherapy    Category = "physiotherapy"
	CategoryConsultation     Category = "consultation"
	CategorySurgeryInternal  Category = "surgery_internal_report"
	CategoryImplantCost      Category = "implant_cost"
	CategoryPrivate          Category = "private"
	CategoryAccommodation    Category = "accommodation_charges"
)

// AllCategories in display order.
var AllCategories = []Category{
	CategoryAdvancePayment,
	CategoryClinical,
	CategoryLaboratory,
	CategoryRadiology,
	CategoryPharmacy,
	CategoryImplant,
	CategoryBlood,
	CategorySurgery,
	CategoryMandatory,
	CategoryPhysiotherapy,
	CategoryConsultation,
	CategorySurgeryInternal,
	CategoryImplantCost,
	CategoryPrivate,
	CategoryAccommodation,
}

func validCategory(c Category) bool {
	for _, known := range AllCategories {
		if known == c {
			return true
		}
	}
	return false
}

// Row is one category's figures. TotalAmount is always derived from
// charge data; the other three are entered by the billing operator (or,
// for the advance row, derived from payment records).
type Row struct {
	TotalAmount    float64 `json:"total_amount"`
	Discount       float64 `json:"discount"`
	AmountPaid     float64 `json:"amount_paid"`
	RefundedAmount float64 `json:"refunded_amount"`
}

// Balance is what the patient still owes on this row.
func (r Row) Balance() float64 {
	return roundCurrency(r.TotalAmount - r.Discount - r.AmountPaid + r.RefundedAmount)
}

// Summary is the per-visit financial matrix snapshot. SavedAt is the
// start time of the operation that produced the snapshot; the store keeps
// whichever snapshot started later.
type Summary struct {
	ID        uuid.UUID        `json:"id"`
	VisitUUID uuid.UUID        `json:"visit_uuid"`
	Rows      map[Category]Row `json:"rows"`
	SavedAt   time.Time        `json:"saved_at"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewSummary returns a summary with every category present and zeroed.
func NewSummary(visitUUID uuid.UUID) *Summary {
	rows := make(map[Category]Row, len(AllCategories))
	for _, c := range AllCategories {
		rows[c] = Row{}
	}
	return &Summary{ID: uuid.New(), VisitUUID: visitUUID, Rows: rows}
}

// TotalRow sums every category.
func (s *Summary) TotalRow() Row {
	var t Row
	for _, c := range AllCategories {
		r := s.Rows[c]
		t.TotalAmount += r.TotalAmount
		t.Discount += r.Discount
		t.AmountPaid += r.AmountPaid
		t.RefundedAmount += r.RefundedAmount
	}
	t.TotalAmount = roundCurrency(t.TotalAmount)
	t.Discount = roundCurrency(t.Discount)
	t.AmountPaid = roundCurrency(t.AmountPaid)
	t.RefundedAmount = roundCurrency(t.RefundedAmount)
	return t
}

func roundCurrency(v float64) float64 {
	return math.Round(v*100) / 100
}
