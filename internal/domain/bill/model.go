package bill

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Line item types. Surgical sub items carry cascade adjustments; standard
// ones bill gross.
const (
	ItemStandard = "standard"
	ItemSurgical = "surgical"
)

// ErrNotInTree marks a mutation aimed at an id the tree does not hold.
// UI edits can race with concurrent removals, so this is reported to the
// caller and the tree is left untouched.
var ErrNotInTree = errors.New("line item not in tree")

// ValidationError rejects a mutation at the boundary; prior state is kept.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// InvariantError means a sub item's stored amount no longer matches
// rate x quantity. Programmer error: Heal recomputes the amount and
// reports the mismatch rather than propagating a wrong bill.
type InvariantError struct {
	SubItemID uuid.UUID
	Expected  float64
	Got       float64
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("sub item %s: amount %.2f does not match rate x quantity %.2f",
		e.SubItemID, e.Got, e.Expected)
}

// SubItem is a billable leaf row. Amount is always rate x quantity (gross);
// surgical items additionally derive an effective amount through the
// discount cascade.
type SubItem struct {
	ID               uuid.UUID   `json:"id"`
	Serial           string      `json:"serial"`
	Description      string      `json:"description"`
	UnitRate         float64     `json:"unit_rate"`
	Quantity         int         `json:"quantity"`
	Amount           float64     `json:"amount"`
	Ranges           []DateRange `json:"ranges,omitempty"`
	CatalogCode      *string     `json:"catalog_code,omitempty"`
	ItemType         string      `json:"item_type"`
	FirstAdjustment  *Adjustment `json:"first_adjustment,omitempty"`
	SecondAdjustment *Adjustment `json:"second_adjustment,omitempty"`
}

// EffectiveAmount is what the row contributes to totals: the gross amount
// for standard items, the cascaded final for surgical ones.
func (s *SubItem) EffectiveAmount() float64 {
	if s.ItemType != ItemSurgical {
		return s.Amount
	}
	first, second := Adjustment{}, Adjustment{}
	if s.FirstAdjustment != nil {
		first = *s.FirstAdjustment
	}
	if s.SecondAdjustment != nil {
		second = *s.SecondAdjustment
	}
	return ApplyCascade(s.Amount, first, second).Final
}

// MainItem groups sub items under a numbered heading.
type MainItem struct {
	ID       uuid.UUID  `json:"id"`
	SerialNo int        `json:"serial_no"`
	Title    string     `json:"title"`
	SubItems []*SubItem `json:"sub_items"`
}

// Section is the top grouping of the bill. The open flag is a UI concern
// carried through persistence, never part of any computation.
type Section struct {
	ID        uuid.UUID   `json:"id"`
	Title     string      `json:"title"`
	Category  string      `json:"category,omitempty"`
	Open      bool        `json:"open"`
	Ranges    []DateRange `json:"ranges,omitempty"`
	MainItems []*MainItem `json:"main_items"`
}

// Tree is the full line-item hierarchy of one bill.
type Tree struct {
	Sections []*Section `json:"sections"`
}

// Bill is the persisted snapshot of a visit's line-item tree. SavedAt is
// the operation start time of the write that produced it; stale writes
// (older SavedAt) are discarded, not applied out of order.
type Bill struct {
	ID          uuid.UUID `json:"id"`
	VisitID     uuid.UUID `json:"visit_id"`
	Tree        Tree      `json:"tree"`
	TotalAmount float64   `json:"total_amount"`
	SavedAt     time.Time `json:"saved_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}
