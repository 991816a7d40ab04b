package selection

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/tariff"
)

// TxFunc runs fn atomically. The zero wiring runs fn directly; production
// passes db.WithTx so a read-modify-write against the store commits or
// rolls back as one.
type TxFunc func(ctx context.Context, fn func(ctx context.Context) error) error

// Reconciler keeps the selection store consistent with what the operator
// sees on screen. It owns two jobs: the per-(visit, service) state machine
// around Select/Deselect, and parent recovery when visit rows were
// duplicated under one external identifier.
type Reconciler struct {
	selections Repository
	visits     VisitLookup
	logger     zerolog.Logger
	tx         TxFunc

	mu       sync.Mutex
	resolved map[string]*ResolutionContext

	now func() time.Time
}

func NewReconciler(selections Repository, visits VisitLookup, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		selections: selections,
		visits:     visits,
		logger:     logger.With().Str("component", "selection").Logger(),
		tx:         func(ctx context.Context, fn func(ctx context.Context) error) error { return fn(ctx) },
		resolved:   make(map[string]*ResolutionContext),
		now:        time.Now,
	}
}

// WithTx installs the transaction runner used around get-then-upsert
// sequences. Returns the reconciler for wiring-time chaining.
func (r *Reconciler) WithTx(tx TxFunc) *Reconciler {
	r.tx = tx
	return r
}

// ResolveParent maps an external visit identifier to the visit row the
// selection store should be read and written under. The result is cached
// for the lifetime of the reconciler, so repeated calls for the same
// identifier do not re-scan.
//
// With a single candidate row the mapping is direct. With duplicates the
// store is probed under each candidate, newest first, and the first row
// that already holds selections wins; the ambiguity is reported on the
// context rather than failing the call.
func (r *Reconciler) ResolveParent(ctx context.Context, externalID string) (*ResolutionContext, error) {
	r.mu.Lock()
	cached, ok := r.resolved[externalID]
	r.mu.Unlock()
	if ok {
		return cached, nil
	}

	candidates, err := r.visits.ListByVisitID(ctx, externalID)
	if err != nil {
		return nil, fmt.Errorf("resolve parent %q: %w", externalID, err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("resolve parent: no visit row for %q", externalID)
	}

	rctx := &ResolutionContext{
		ExternalID: externalID,
		VisitUUID:  candidates[0].UUID,
		Candidates: len(candidates),
	}
	if len(candidates) == 1 {
		r.remember(rctx)
		return rctx, nil
	}

	amb := &AmbiguousParentError{ExternalID: externalID, Candidates: len(candidates)}
	for _, cand := range candidates {
		recs, err := r.selections.ListByVisit(ctx, cand.UUID)
		if err != nil {
			return nil, fmt.Errorf("resolve parent %q: probe %s: %w", externalID, cand.UUID, err)
		}
		if len(recs) > 0 {
			rctx.VisitUUID = cand.UUID
			rctx.Recovered = true
			amb.Chosen = cand.UUID
			rctx.Ambiguity = amb
			r.logger.Warn().
				Str("visit_id", externalID).
				Int("candidates", len(candidates)).
				Str("chosen", cand.UUID.String()).
				Msg("recovered selections from duplicate visit row")
			r.remember(rctx)
			return rctx, nil
		}
	}

	// Nothing saved under any candidate. Writes will land on the newest
	// row; the mapping is not cached yet, because a save racing this
	// resolution could still surface data under another candidate.
	amb.Chosen = candidates[0].UUID
	rctx.Ambiguity = amb
	return rctx, nil
}

func (r *Reconciler) remember(rctx *ResolutionContext) {
	r.mu.Lock()
	r.resolved[rctx.ExternalID] = rctx
	r.mu.Unlock()
}

// ListSaved returns the saved selections for an external visit identifier.
// An empty store after a full candidate scan comes back as NoCandidateError
// so callers can surface "nothing saved yet" instead of a blank failure.
func (r *Reconciler) ListSaved(ctx context.Context, externalID string) ([]*ServiceSelectionRecord, *ResolutionContext, error) {
	rctx, err := r.ResolveParent(ctx, externalID)
	if err != nil {
		return nil, nil, err
	}
	recs, err := r.selections.ListByVisit(ctx, rctx.VisitUUID)
	if err != nil {
		return nil, nil, fmt.Errorf("list selections for %q: %w", externalID, err)
	}
	if len(recs) == 0 {
		return nil, rctx, &NoCandidateError{ExternalID: externalID, Scanned: rctx.Candidates}
	}
	return recs, rctx, nil
}

// Select records a catalog service against a visit. First selection
// creates the record with quantity 1. Selecting an already-recorded
// service applies the operator's decision: increment the quantity on the
// existing record, or keep it untouched. Either way there is never a
// second row for the pair. Returns the record and whether it was created.
func (r *Reconciler) Select(ctx context.Context, externalID string, sel tariff.RateSelection, decision Decision) (*ServiceSelectionRecord, bool, error) {
	rctx, err := r.ResolveParent(ctx, externalID)
	if err != nil {
		return nil, false, err
	}

	var (
		rec     *ServiceSelectionRecord
		created bool
	)
	// The read and the write must see the same store state: two operators
	// selecting the same service concurrently must end up with one row.
	err = r.tx(ctx, func(ctx context.Context) error {
		existing, err := r.selections.Get(ctx, rctx.VisitUUID, sel.ServiceID)
		if err != nil {
			return fmt.Errorf("select: %w", err)
		}
		if existing != nil {
			if decision == DecisionKeep {
				rec = existing
				return nil
			}
			existing.Quantity++
			existing.Amount = roundCurrency(existing.RateUsed * float64(existing.Quantity))
			existing.UpdatedAt = r.now()
			if err := r.selections.Upsert(ctx, existing); err != nil {
				return err
			}
			rec = existing
			return nil
		}

		now := r.now()
		rec = &ServiceSelectionRecord{
			ID:         uuid.New(),
			VisitUUID:  rctx.VisitUUID,
			ServiceID:  sel.ServiceID,
			Quantity:   1,
			RateUsed:   sel.UnitRate,
			RateType:   sel.RateType,
			Amount:     roundCurrency(sel.UnitRate),
			Fallback:   sel.Fallback,
			SelectedAt: now,
			UpdatedAt:  now,
		}
		created = true
		return r.selections.Upsert(ctx, rec)
	})
	if err != nil {
		return nil, false, err
	}
	if created {
		r.remember(rctx)
	}
	return rec, created, nil
}

// SetQuantity is the operator editing the count directly. The amount is
// recomputed from the stored unit rate, never trusted from the caller.
func (r *Reconciler) SetQuantity(ctx context.Context, externalID string, serviceID uuid.UUID, qty int) (*ServiceSelectionRecord, error) {
	if qty < 1 {
		return nil, fmt.Errorf("quantity must be at least 1, got %d", qty)
	}
	rctx, err := r.ResolveParent(ctx, externalID)
	if err != nil {
		return nil, err
	}
	var rec *ServiceSelectionRecord
	err = r.tx(ctx, func(ctx context.Context) error {
		rec, err = r.selections.Get(ctx, rctx.VisitUUID, serviceID)
		if err != nil {
			return fmt.Errorf("set quantity: %w", err)
		}
		if rec == nil {
			return fmt.Errorf("service %s is not selected for visit %q", serviceID, externalID)
		}
		rec.Quantity = qty
		rec.Amount = roundCurrency(rec.RateUsed * float64(qty))
		rec.UpdatedAt = r.now()
		return r.selections.Upsert(ctx, rec)
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Deselect removes the record for the pair, returning the state machine to
// absent. A later Select starts over at quantity 1.
func (r *Reconciler) Deselect(ctx context.Context, externalID string, serviceID uuid.UUID) error {
	rctx, err := r.ResolveParent(ctx, externalID)
	if err != nil {
		return err
	}
	return r.selections.Delete(ctx, rctx.VisitUUID, serviceID)
}

func roundCurrency(v float64) float64 {
	return math.Round(v*100) / 100
}
