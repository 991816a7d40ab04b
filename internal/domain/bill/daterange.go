package bill

import "time"

// DateRange is an inclusive span of calendar days. A line item may own
// zero, one, or many ranges; pre- and post-surgical windows around a
// package period are the common multi-range case.
type DateRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

func (r DateRange) IsZero() bool {
	return r.From.IsZero() && r.To.IsZero()
}

// Valid reports whether the range can be accepted at a mutation boundary.
func (r DateRange) Valid() bool {
	if r.From.IsZero() || r.To.IsZero() {
		return false
	}
	return !r.To.Before(dateOnly(r.From))
}

// Days counts calendar days inclusive of both endpoints. A malformed but
// present range clamps to 1 so a stay never bills less than one day.
func (r DateRange) Days() int {
	if r.IsZero() || r.From.IsZero() || r.To.IsZero() {
		return 0
	}
	from := dateOnly(r.From)
	to := dateOnly(r.To)
	d := int(to.Sub(from).Hours()/24) + 1
	if d < 1 {
		return 1
	}
	return d
}

// TotalQuantity sums days across a primary range and any additional ranges.
// Zero-value ranges contribute nothing.
func TotalQuantity(primary DateRange, additional ...DateRange) int {
	total := primary.Days()
	for _, r := range additional {
		total += r.Days()
	}
	return total
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
