package summary

// ChargeLine is one billed amount already bucketed into a summary
// category. Callers build these from whatever charge sources exist
// (service selections, bill sections, pharmacy feeds).
type ChargeLine struct {
	Category Category
	Amount   float64
}

// AdvanceTotals are the per-visit payment aggregates feeding the advance
// row: money taken in and money given back.
type AdvanceTotals struct {
	Paid     float64
	Refunded float64
}

// ComputeTotals folds charge lines into per-category totals. Pure: same
// lines in, same totals out, no matter how many times it runs. Lines
// carrying an unknown category are dropped rather than invented into the
// fixed matrix.
func ComputeTotals(lines []ChargeLine) map[Category]float64 {
	totals := make(map[Category]float64, len(AllCategories))
	for _, c := range AllCategories {
		totals[c] = 0
	}
	for _, line := range lines {
		if !validCategory(line.Category) {
			continue
		}
		totals[line.Category] = roundCurrency(totals[line.Category] + line.Amount)
	}
	return totals
}

// Merge lays freshly computed totals over an existing summary without
// disturbing what the operator typed. TotalAmount is authoritative from
// charge data and is always replaced; Discount, AmountPaid and
// RefundedAmount survive the refresh, except on the advance row where the
// paid and refunded figures come from payment records.
func Merge(existing *Summary, totals map[Category]float64, adv AdvanceTotals) {
	for _, c := range AllCategories {
		row := existing.Rows[c]
		row.TotalAmount = totals[c]
		if c == CategoryAdvancePayment {
			row.AmountPaid = roundCurrency(adv.Paid)
			row.RefundedAmount = roundCurrency(adv.Refunded)
		}
		existing.Rows[c] = row
	}
}
