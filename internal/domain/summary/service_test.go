package summary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type mockSummaryRepo struct {
	byVisit map[uuid.UUID]*Summary
}

func newMockSummaryRepo() *mockSummaryRepo {
	return &mockSummaryRepo{byVisit: make(map[uuid.UUID]*Summary)}
}

func (m *mockSummaryRepo) GetByVisit(_ context.Context, visitUUID uuid.UUID) (*Summary, error) {
	s, ok := m.byVisit[visitUUID]
	if !ok {
		return nil, nil
	}
	cp := *s
	cp.Rows = make(map[Category]Row, len(s.Rows))
	for k, v := range s.Rows {
		cp.Rows[k] = v
	}
	return &cp, nil
}

func (m *mockSummaryRepo) Save(_ context.Context, s *Summary) error {
	if existing, ok := m.byVisit[s.VisitUUID]; ok && existing.SavedAt.After(s.SavedAt) {
		return nil // snapshot from an older operation loses silently
	}
	cp := *s
	cp.Rows = make(map[Category]Row, len(s.Rows))
	for k, v := range s.Rows {
		cp.Rows[k] = v
	}
	m.byVisit[s.VisitUUID] = &cp
	return nil
}

func (m *mockSummaryRepo) Delete(_ context.Context, visitUUID uuid.UUID) error {
	delete(m.byVisit, visitUUID)
	return nil
}

type staticCharges struct {
	lines []ChargeLine
}

func (s *staticCharges) ChargeLines(context.Context, uuid.UUID) ([]ChargeLine, error) {
	return s.lines, nil
}

type staticAdvances struct {
	totals AdvanceTotals
}

func (s *staticAdvances) Totals(context.Context, uuid.UUID) (AdvanceTotals, error) {
	return s.totals, nil
}

func at(sec int) time.Time {
	return time.Date(2025, 3, 10, 9, 0, sec, 0, time.UTC)
}

func TestComputeTotals_Idempotent(t *testing.T) {
	lines := []ChargeLine{
		{Category: CategoryLaboratory, Amount: 350},
		{Category: CategoryLaboratory, Amount: 150},
		{Category: CategorySurgery, Amount: 5000},
		{Category: "mystery", Amount: 999},
	}
	first := ComputeTotals(lines)
	second := ComputeTotals(lines)
	if first[CategoryLaboratory] != 500 || first[CategorySurgery] != 5000 {
		t.Fatalf("totals = %v", first)
	}
	for _, c := range AllCategories {
		if first[c] != second[c] {
			t.Fatalf("category %s differs across runs: %v vs %v", c, first[c], second[c])
		}
	}
	if _, ok := first["mystery"]; ok {
		t.Fatal("unknown category must not enter the matrix")
	}
}

func TestRow_Balance(t *testing.T) {
	r := Row{TotalAmount: 10000, Discount: 1000, AmountPaid: 6000, RefundedAmount: 500}
	if got := r.Balance(); got != 3500 {
		t.Fatalf("balance = %v, want 3500", got)
	}
}

func TestRefresh_PreservesOperatorFigures(t *testing.T) {
	visitUUID := uuid.New()
	repo := newMockSummaryRepo()
	charges := &staticCharges{lines: []ChargeLine{{Category: CategorySurgery, Amount: 8000}}}
	agg := NewAggregator(repo, charges, &staticAdvances{}, zerolog.Nop())
	ctx := context.Background()

	if _, err := agg.Refresh(ctx, visitUUID, at(1)); err != nil {
		t.Fatal(err)
	}
	disc := 800.0
	if _, err := agg.SetFigures(ctx, visitUUID, CategorySurgery, OperatorEdit{Discount: &disc}, at(2)); err != nil {
		t.Fatal(err)
	}

	// Charges changed; refresh must update the total and keep the discount.
	charges.lines = []ChargeLine{{Category: CategorySurgery, Amount: 9500}}
	s, err := agg.Refresh(ctx, visitUUID, at(3))
	if err != nil {
		t.Fatal(err)
	}
	row := s.Rows[CategorySurgery]
	if row.TotalAmount != 9500 {
		t.Fatalf("total = %v, want 9500 after refresh", row.TotalAmount)
	}
	if row.Discount != 800 {
		t.Fatalf("discount = %v, operator figure must survive refresh", row.Discount)
	}
}

func TestSetFigures_DiscountNeverTouchesTotal(t *testing.T) {
	visitUUID := uuid.New()
	repo := newMockSummaryRepo()
	charges := &staticCharges{lines: []ChargeLine{{Category: CategoryPharmacy, Amount: 1200}}}
	agg := NewAggregator(repo, charges, &staticAdvances{}, zerolog.Nop())
	ctx := context.Background()

	if _, err := agg.Refresh(ctx, visitUUID, at(1)); err != nil {
		t.Fatal(err)
	}
	disc := 200.0
	s, err := agg.SetFigures(ctx, visitUUID, CategoryPharmacy, OperatorEdit{Discount: &disc}, at(2))
	if err != nil {
		t.Fatal(err)
	}
	row := s.Rows[CategoryPharmacy]
	if row.TotalAmount != 1200 {
		t.Fatalf("total = %v, discount edit must not change it", row.TotalAmount)
	}
	if row.Balance() != 1000 {
		t.Fatalf("balance = %v, want 1000", row.Balance())
	}
}

func TestSetFigures_Validation(t *testing.T) {
	agg := NewAggregator(newMockSummaryRepo(), &staticCharges{}, &staticAdvances{}, zerolog.Nop())
	ctx := context.Background()
	neg := -5.0
	if _, err := agg.SetFigures(ctx, uuid.New(), CategoryPharmacy, OperatorEdit{Discount: &neg}, at(1)); err == nil {
		t.Fatal("expected error for negative figure")
	}
	v := 10.0
	if _, err := agg.SetFigures(ctx, uuid.New(), "bogus", OperatorEdit{Discount: &v}, at(1)); err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestRefresh_AdvanceRowFromPaymentRecords(t *testing.T) {
	visitUUID := uuid.New()
	agg := NewAggregator(newMockSummaryRepo(), &staticCharges{},
		&staticAdvances{totals: AdvanceTotals{Paid: 5000, Refunded: 750}}, zerolog.Nop())

	s, err := agg.Refresh(context.Background(), visitUUID, at(1))
	if err != nil {
		t.Fatal(err)
	}
	row := s.Rows[CategoryAdvancePayment]
	if row.AmountPaid != 5000 || row.RefundedAmount != 750 {
		t.Fatalf("advance row = %+v", row)
	}
}

func TestStaleWriteRejected(t *testing.T) {
	visitUUID := uuid.New()
	agg := NewAggregator(newMockSummaryRepo(), &staticCharges{}, &staticAdvances{}, zerolog.Nop())
	ctx := context.Background()

	if _, err := agg.Refresh(ctx, visitUUID, at(10)); err != nil {
		t.Fatal(err)
	}
	_, err := agg.Refresh(ctx, visitUUID, at(5))
	if !errors.Is(err, ErrStaleWrite) {
		t.Fatalf("err = %v, want ErrStaleWrite", err)
	}
	v := 1.0
	_, err = agg.SetFigures(ctx, visitUUID, CategoryPrivate, OperatorEdit{AmountPaid: &v}, at(5))
	if !errors.Is(err, ErrStaleWrite) {
		t.Fatalf("err = %v, want ErrStaleWrite", err)
	}
}

func TestTotalRow_SumsAcrossCategories(t *testing.T) {
	s := NewSummary(uuid.New())
	s.Rows[CategorySurgery] = Row{TotalAmount: 5000, Discount: 500, AmountPaid: 3000}
	s.Rows[CategoryLaboratory] = Row{TotalAmount: 1500, AmountPaid: 500, RefundedAmount: 100}
	total := s.TotalRow()
	if total.TotalAmount != 6500 || total.Discount != 500 || total.AmountPaid != 3500 || total.RefundedAmount != 100 {
		t.Fatalf("total row = %+v", total)
	}
	if total.Balance() != 2600 {
		t.Fatalf("total balance = %v, want 2600", total.Balance())
	}
}
