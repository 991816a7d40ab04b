package summary

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrStaleWrite means a snapshot from an operation that started earlier
// tried to land on top of one that started later. The newer snapshot
// stands; the stale one is discarded.
var ErrStaleWrite = errors.New("summary snapshot is stale")

// ChargeSource supplies the billed amounts for a visit, already bucketed
// into summary categories. Wired in at startup.
type ChargeSource interface {
	ChargeLines(ctx context.Context, visitUUID uuid.UUID) ([]ChargeLine, error)
}

// AdvanceSource supplies the advance-payment aggregates for a visit.
type AdvanceSource interface {
	Totals(ctx context.Context, visitUUID uuid.UUID) (AdvanceTotals, error)
}

// Aggregator maintains the per-visit financial matrix.
type Aggregator struct {
	summaries Repository
	charges   ChargeSource
	advances  AdvanceSource
	logger    zerolog.Logger
	now       func() time.Time
}

func NewAggregator(summaries Repository, charges ChargeSource, advances AdvanceSource, logger zerolog.Logger) *Aggregator {
	return &Aggregator{
		summaries: summaries,
		charges:   charges,
		advances:  advances,
		logger:    logger.With().Str("component", "summary").Logger(),
		now:       time.Now,
	}
}

// Get returns the stored snapshot, or an all-zero matrix when nothing has
// been saved for the visit yet.
func (a *Aggregator) Get(ctx context.Context, visitUUID uuid.UUID) (*Summary, error) {
	s, err := a.summaries.GetByVisit(ctx, visitUUID)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return NewSummary(visitUUID), nil
	}
	return s, nil
}

// Refresh recomputes every TotalAmount from current charge data and the
// advance row from payment records, preserving the operator-entered
// discount, paid and refunded figures on every other row. startedAt is
// when the operator's save began; a snapshot from an older operation is
// rejected with ErrStaleWrite.
func (a *Aggregator) Refresh(ctx context.Context, visitUUID uuid.UUID, startedAt time.Time) (*Summary, error) {
	existing, err := a.summaries.GetByVisit(ctx, visitUUID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		existing = NewSummary(visitUUID)
	} else if existing.SavedAt.After(startedAt) {
		return nil, fmt.Errorf("refresh for visit %s: %w", visitUUID, ErrStaleWrite)
	}

	lines, err := a.charges.ChargeLines(ctx, visitUUID)
	if err != nil {
		return nil, fmt.Errorf("load charges for %s: %w", visitUUID, err)
	}
	adv, err := a.advances.Totals(ctx, visitUUID)
	if err != nil {
		return nil, fmt.Errorf("load advances for %s: %w", visitUUID, err)
	}

	Merge(existing, ComputeTotals(lines), adv)
	existing.SavedAt = startedAt
	if err := a.summaries.Save(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}

// OperatorEdit carries the figures a billing operator may type into a
// summary row. Nil fields are left alone.
type OperatorEdit struct {
	Discount       *float64 `json:"discount,omitempty"`
	AmountPaid     *float64 `json:"amount_paid,omitempty"`
	RefundedAmount *float64 `json:"refunded_amount,omitempty"`
}

// SetFigures applies an operator edit to one category row. TotalAmount is
// never touched here; it belongs to charge data alone.
func (a *Aggregator) SetFigures(ctx context.Context, visitUUID uuid.UUID, category Category, edit OperatorEdit, startedAt time.Time) (*Summary, error) {
	if !validCategory(category) {
		return nil, fmt.Errorf("unknown summary category %q", category)
	}
	for _, v := range []*float64{edit.Discount, edit.AmountPaid, edit.RefundedAmount} {
		if v != nil && *v < 0 {
			return nil, fmt.Errorf("summary figures cannot be negative")
		}
	}

	existing, err := a.summaries.GetByVisit(ctx, visitUUID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		existing = NewSummary(visitUUID)
	} else if existing.SavedAt.After(startedAt) {
		return nil, fmt.Errorf("edit for visit %s: %w", visitUUID, ErrStaleWrite)
	}

	row := existing.Rows[category]
	if edit.Discount != nil {
		row.Discount = roundCurrency(*edit.Discount)
	}
	if edit.AmountPaid != nil {
		row.AmountPaid = roundCurrency(*edit.AmountPaid)
	}
	if edit.RefundedAmount != nil {
		row.RefundedAmount = roundCurrency(*edit.RefundedAmount)
	}
	existing.Rows[category] = row
	existing.SavedAt = startedAt

	if err := a.summaries.Save(ctx, existing); err != nil {
		return nil, err
	}
	return existing, nil
}
