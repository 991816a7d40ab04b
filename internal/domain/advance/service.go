package advance

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
)

var validModes = map[string]bool{
	ModeCash:   true,
	ModeCard:   true,
	ModeUPI:    true,
	ModeCheque: true,
	ModeNEFT:   true,
}

type Service struct {
	payments Repository
	now      func() time.Time
}

func NewService(payments Repository) *Service {
	return &Service{payments: payments, now: time.Now}
}

func (s *Service) Record(ctx context.Context, p *AdvancePayment) error {
	if p.VisitUUID == uuid.Nil {
		return fmt.Errorf("visit is required")
	}
	if p.Amount <= 0 {
		return fmt.Errorf("amount must be positive, got %v", p.Amount)
	}
	if p.Mode == "" {
		p.Mode = ModeCash
	}
	if !validModes[p.Mode] {
		return fmt.Errorf("unknown payment mode %q", p.Mode)
	}
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.PaidAt.IsZero() {
		p.PaidAt = s.now()
	}
	p.Amount = roundCurrency(p.Amount)
	return s.payments.Create(ctx, p)
}

func (s *Service) ListByVisit(ctx context.Context, visitUUID uuid.UUID) ([]*AdvancePayment, error) {
	return s.payments.ListByVisit(ctx, visitUUID)
}

func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	return s.payments.Delete(ctx, id)
}

// Totals folds a visit's payments into the two figures the financial
// summary needs: total taken and total refunded.
func (s *Service) Totals(ctx context.Context, visitUUID uuid.UUID) (paid, refunded float64, err error) {
	payments, err := s.payments.ListByVisit(ctx, visitUUID)
	if err != nil {
		return 0, 0, err
	}
	for _, p := range payments {
		if p.IsRefund {
			refunded += p.Amount
		} else {
			paid += p.Amount
		}
	}
	return roundCurrency(paid), roundCurrency(refunded), nil
}

func roundCurrency(v float64) float64 {
	return math.Round(v*100) / 100
}
