package bill

import (
	"github.com/google/uuid"
)

// NewTree returns an empty line-item tree.
func NewTree() *Tree {
	return &Tree{}
}

// AddSection appends a section and returns it.
func (t *Tree) AddSection(title, category string) *Section {
	sec := &Section{ID: uuid.New(), Title: title, Category: category, Open: true}
	t.Sections = append(t.Sections, sec)
	return sec
}

// AddMainItem appends a numbered heading to a section.
func (t *Tree) AddMainItem(sectionID uuid.UUID, title string) (*MainItem, error) {
	sec := t.findSection(sectionID)
	if sec == nil {
		return nil, ErrNotInTree
	}
	mi := &MainItem{ID: uuid.New(), Title: title}
	sec.MainItems = append(sec.MainItems, mi)
	t.renumber()
	return mi, nil
}

// AddSubItem validates the seed, derives quantity from its date ranges when
// present, computes the amount, and appends the row. Serial labels are
// renumbered before returning.
func (t *Tree) AddSubItem(mainItemID uuid.UUID, seed SubItem) (*SubItem, error) {
	_, mi := t.findMainItem(mainItemID)
	if mi == nil {
		return nil, ErrNotInTree
	}
	if err := validateSeed(&seed); err != nil {
		return nil, err
	}
	sub := seed
	sub.ID = uuid.New()
	if sub.ItemType == "" {
		sub.ItemType = ItemStandard
	}
	recomputeSubItem(&sub)
	mi.SubItems = append(mi.SubItems, &sub)
	t.renumber()
	return &sub, nil
}

// RemoveSubItem deletes a row. A missing id is a reported no-op.
func (t *Tree) RemoveSubItem(mainItemID, subItemID uuid.UUID) error {
	_, mi := t.findMainItem(mainItemID)
	if mi == nil {
		return ErrNotInTree
	}
	for i, sub := range mi.SubItems {
		if sub.ID == subItemID {
			mi.SubItems = append(mi.SubItems[:i], mi.SubItems[i+1:]...)
			t.renumber()
			return nil
		}
	}
	return ErrNotInTree
}

// SetRate updates a row's unit rate and recomputes its amount in the same
// operation.
func (t *Tree) SetRate(mainItemID, subItemID uuid.UUID, rate float64) error {
	if rate < 0 {
		return &ValidationError{Field: "rate", Reason: "must not be negative"}
	}
	sub := t.findSubItem(mainItemID, subItemID)
	if sub == nil {
		return ErrNotInTree
	}
	sub.UnitRate = rate
	recomputeSubItem(sub)
	return nil
}

// SetQuantity updates a row's quantity directly. Rejected when the row's
// quantity is derived from date ranges; the ranges are authoritative then.
func (t *Tree) SetQuantity(mainItemID, subItemID uuid.UUID, qty int) error {
	if qty < 0 {
		return &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	sub := t.findSubItem(mainItemID, subItemID)
	if sub == nil {
		return ErrNotInTree
	}
	if len(sub.Ranges) > 0 {
		return &ValidationError{Field: "quantity", Reason: "derived from date ranges; edit the ranges instead"}
	}
	sub.Quantity = qty
	recomputeSubItem(sub)
	return nil
}

// SetDescription updates a row's display text.
func (t *Tree) SetDescription(mainItemID, subItemID uuid.UUID, desc string) error {
	sub := t.findSubItem(mainItemID, subItemID)
	if sub == nil {
		return ErrNotInTree
	}
	sub.Description = desc
	return nil
}

// SetRanges replaces a row's date ranges; quantity and amount are
// recomputed in the same operation so they are never stale relative to the
// dates.
func (t *Tree) SetRanges(mainItemID, subItemID uuid.UUID, ranges []DateRange) error {
	for _, r := range ranges {
		if !r.Valid() {
			return &ValidationError{Field: "dates", Reason: "range end before start"}
		}
	}
	sub := t.findSubItem(mainItemID, subItemID)
	if sub == nil {
		return ErrNotInTree
	}
	sub.Ranges = ranges
	recomputeSubItem(sub)
	return nil
}

// SetAdjustments replaces a surgical row's cascade adjustments.
func (t *Tree) SetAdjustments(mainItemID, subItemID uuid.UUID, first, second *Adjustment) error {
	for _, a := range []*Adjustment{first, second} {
		if a != nil && !ValidPercent(a.Percent) {
			return &ValidationError{Field: "adjustment", Reason: "percent must be between 0 and 100"}
		}
	}
	sub := t.findSubItem(mainItemID, subItemID)
	if sub == nil {
		return ErrNotInTree
	}
	sub.ItemType = ItemSurgical
	sub.FirstAdjustment = first
	sub.SecondAdjustment = second
	return nil
}

// MoveSubItem shifts a row up (-1) or down (+1) within its main item and
// renumbers. Moves past either end are no-ops.
func (t *Tree) MoveSubItem(mainItemID, subItemID uuid.UUID, delta int) error {
	_, mi := t.findMainItem(mainItemID)
	if mi == nil {
		return ErrNotInTree
	}
	for i, sub := range mi.SubItems {
		if sub.ID == subItemID {
			j := i + delta
			if j < 0 || j >= len(mi.SubItems) {
				return nil
			}
			mi.SubItems[i], mi.SubItems[j] = mi.SubItems[j], mi.SubItems[i]
			t.renumber()
			return nil
		}
	}
	return ErrNotInTree
}

// ToggleSection flips a section's open flag. Display state only.
func (t *Tree) ToggleSection(sectionID uuid.UUID) error {
	sec := t.findSection(sectionID)
	if sec == nil {
		return ErrNotInTree
	}
	sec.Open = !sec.Open
	return nil
}

// SectionTotal sums the effective amounts of every row under a section.
func (t *Tree) SectionTotal(sectionID uuid.UUID) (float64, error) {
	sec := t.findSection(sectionID)
	if sec == nil {
		return 0, ErrNotInTree
	}
	var total float64
	for _, mi := range sec.MainItems {
		for _, sub := range mi.SubItems {
			total += sub.EffectiveAmount()
		}
	}
	return roundCurrency(total), nil
}

// ComputeBill returns the bill's grand total. Pure: safe to call from
// request handlers or batch code without side effects.
func ComputeBill(t *Tree) float64 {
	var total float64
	for _, sec := range t.Sections {
		for _, mi := range sec.MainItems {
			for _, sub := range mi.SubItems {
				total += sub.EffectiveAmount()
			}
		}
	}
	return roundCurrency(total)
}

// Heal verifies the derived fields on every row, recomputing any row that
// drifted. Quantity is checked against the date ranges when the row has them,
// then amount against rate x quantity; a stored quantity that disagrees with
// its ranges would otherwise pass the amount check and bill the wrong total.
// The mismatches are returned so the caller can report them; a wrong bill
// must never propagate silently.
func (t *Tree) Heal() []InvariantError {
	var violations []InvariantError
	for _, sec := range t.Sections {
		for _, mi := range sec.MainItems {
			for _, sub := range mi.SubItems {
				qty := sub.Quantity
				if len(sub.Ranges) > 0 {
					qty = TotalQuantity(sub.Ranges[0], sub.Ranges[1:]...)
				}
				expected := roundCurrency(sub.UnitRate * float64(qty))
				if sub.Quantity != qty || sub.Amount != expected {
					violations = append(violations, InvariantError{
						SubItemID: sub.ID,
						Expected:  expected,
						Got:       sub.Amount,
					})
					recomputeSubItem(sub)
				}
			}
		}
	}
	return violations
}

func validateSeed(seed *SubItem) error {
	if seed.UnitRate < 0 {
		return &ValidationError{Field: "rate", Reason: "must not be negative"}
	}
	if seed.Quantity < 0 {
		return &ValidationError{Field: "quantity", Reason: "must not be negative"}
	}
	for _, r := range seed.Ranges {
		if !r.Valid() {
			return &ValidationError{Field: "dates", Reason: "range end before start"}
		}
	}
	for _, a := range []*Adjustment{seed.FirstAdjustment, seed.SecondAdjustment} {
		if a != nil && !ValidPercent(a.Percent) {
			return &ValidationError{Field: "adjustment", Reason: "percent must be between 0 and 100"}
		}
	}
	return nil
}

// recomputeSubItem is the single authoritative update for derived fields.
// Every mutation path funnels through here so the amount invariant cannot
// be bypassed.
func recomputeSubItem(sub *SubItem) {
	if len(sub.Ranges) > 0 {
		sub.Quantity = TotalQuantity(sub.Ranges[0], sub.Ranges[1:]...)
	}
	sub.Amount = expectedAmount(sub)
}

func expectedAmount(sub *SubItem) float64 {
	return roundCurrency(sub.UnitRate * float64(sub.Quantity))
}

func (t *Tree) findSection(id uuid.UUID) *Section {
	for _, sec := range t.Sections {
		if sec.ID == id {
			return sec
		}
	}
	return nil
}

func (t *Tree) findMainItem(id uuid.UUID) (*Section, *MainItem) {
	for _, sec := range t.Sections {
		for _, mi := range sec.MainItems {
			if mi.ID == id {
				return sec, mi
			}
		}
	}
	return nil, nil
}

func (t *Tree) findSubItem(mainItemID, subItemID uuid.UUID) *SubItem {
	_, mi := t.findMainItem(mainItemID)
	if mi == nil {
		return nil
	}
	for _, sub := range mi.SubItems {
		if sub.ID == subItemID {
			return sub
		}
	}
	return nil
}

// renumber rewrites main item numbers and sub item serial labels after any
// structural change so gaps never appear after a deletion.
func (t *Tree) renumber() {
	for _, sec := range t.Sections {
		for i, mi := range sec.MainItems {
			mi.SerialNo = i + 1
			for j, sub := range mi.SubItems {
				sub.Serial = serialLabel(j)
			}
		}
	}
}

// serialLabel produces "a)", "b)", ..., "z)", "aa)", ...
func serialLabel(i int) string {
	s := ""
	for {
		s = string(rune('a'+i%26)) + s
		i = i/26 - 1
		if i < 0 {
			break
		}
	}
	return s + ")"
}
