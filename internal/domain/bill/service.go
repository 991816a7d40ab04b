package bill

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// ErrStaleWrite marks a save superseded by a newer one for the same visit.
// Ordering is keyed by operation start time, not completion time; a late
// arrival from an older operation is discarded, not applied.
var ErrStaleWrite = errors.New("bill snapshot superseded by a newer save")

type Service struct {
	bills  Repository
	logger zerolog.Logger
}

func NewService(bills Repository, logger zerolog.Logger) *Service {
	return &Service{bills: bills, logger: logger}
}

// Load returns the persisted bill for a visit, healing any amount drift
// before handing it out. Violations are logged: they indicate a write path
// that bypassed the recompute.
func (s *Service) Load(ctx context.Context, visitID uuid.UUID) (*Bill, error) {
	b, err := s.bills.GetByVisit(ctx, visitID)
	if err != nil {
		return nil, err
	}
	if violations := b.Tree.Heal(); len(violations) > 0 {
		for _, v := range violations {
			s.logger.Warn().
				Str("visit_id", visitID.String()).
				Str("sub_item_id", v.SubItemID.String()).
				Float64("expected", v.Expected).
				Float64("got", v.Got).
				Msg("bill amount invariant healed")
		}
		b.TotalAmount = ComputeBill(&b.Tree)
	}
	return b, nil
}

// Save persists a tree snapshot for a visit. startedAt is when the caller
// began the save; an existing newer snapshot wins and the write is
// rejected with ErrStaleWrite.
func (s *Service) Save(ctx context.Context, visitID uuid.UUID, tree Tree, startedAt time.Time) (*Bill, error) {
	if startedAt.IsZero() {
		startedAt = time.Now()
	}
	if violations := tree.Heal(); len(violations) > 0 {
		for _, v := range violations {
			s.logger.Warn().
				Str("visit_id", visitID.String()).
				Str("sub_item_id", v.SubItemID.String()).
				Msg("bill amount invariant healed on save")
		}
	}

	existing, err := s.bills.GetByVisit(ctx, visitID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}
	if existing != nil && existing.SavedAt.After(startedAt) {
		return nil, ErrStaleWrite
	}

	b := &Bill{
		VisitID:     visitID,
		Tree:        tree,
		TotalAmount: ComputeBill(&tree),
		SavedAt:     startedAt,
	}
	if existing != nil {
		b.ID = existing.ID
	}
	if err := s.bills.Save(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// Compute returns the grand total for a tree without persisting anything.
func (s *Service) Compute(tree *Tree) float64 {
	return ComputeBill(tree)
}

func (s *Service) Delete(ctx context.Context, visitID uuid.UUID) error {
	return s.bills.Delete(ctx, visitID)
}
