package selection

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hms/hms/internal/domain/tariff"
)

// ServiceSelectionRecord is one billed catalog service for one visit.
// Keyed uniquely by (visit row, service): re-selecting the same pair
// updates quantity and amount on the existing record, never inserts a
// duplicate row. Rate fields are the snapshot taken at selection time; a
// later catalog price change does not touch them.
type ServiceSelectionRecord struct {
	ID         uuid.UUID       `json:"id"`
	VisitUUID  uuid.UUID       `json:"visit_uuid"`
	ServiceID  uuid.UUID       `json:"service_id"`
	Quantity   int             `json:"quantity"`
	RateUsed   float64         `json:"rate_used"`
	RateType   tariff.RateType `json:"rate_type"`
	Amount     float64         `json:"amount"`
	Fallback   bool            `json:"fallback"`
	SelectedAt time.Time       `json:"selected_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Decision is the operator's answer when a service is selected again while
// already on the bill.
type Decision string

const (
	DecisionIncrement Decision = "increment"
	DecisionKeep      Decision = "keep"
)

// VisitRef is the slice of a visit row the reconciler needs when scanning
// duplicate parents.
type VisitRef struct {
	UUID      uuid.UUID
	CreatedAt time.Time
}

// VisitLookup is the reconciler's view of the visit store. The concrete
// adapter is wired in at startup; keeping the interface here avoids a
// package dependency on visit.
type VisitLookup interface {
	// ListByVisitID returns every visit row sharing an external
	// identifier, newest first.
	ListByVisitID(ctx context.Context, externalID string) ([]VisitRef, error)
}

// ResolutionContext records how the parent visit row for an external
// identifier was found. It is resolved once per session and threaded
// through reconciler calls; subsequent writes reuse the cached key instead
// of re-deriving it.
type ResolutionContext struct {
	ExternalID string    `json:"external_id"`
	VisitUUID  uuid.UUID `json:"visit_uuid"`
	Candidates int       `json:"candidates"`
	// Recovered is set when the key came from the duplicate-parent scan
	// rather than a unique direct lookup.
	Recovered bool `json:"recovered"`
	// Ambiguity reports a duplicate-parent situation to the operator.
	// It is a warning attached to the result, not a failure.
	Ambiguity *AmbiguousParentError `json:"ambiguity,omitempty"`
}

// AmbiguousParentError reports that more than one visit row carries the
// same external identifier. Resolved deterministically: the first
// candidate (newest, or newest with saved data) wins.
type AmbiguousParentError struct {
	ExternalID string    `json:"external_id"`
	Candidates int       `json:"candidates"`
	Chosen     uuid.UUID `json:"chosen"`
}

func (e *AmbiguousParentError) Error() string {
	return fmt.Sprintf("ambiguous parent: %d visit rows share id %q, using %s",
		e.Candidates, e.ExternalID, e.Chosen)
}

// NoCandidateError means the recovery scan exhausted every candidate
// parent without finding saved selections. "Nothing saved yet" — not a
// lookup failure, and not a hard error.
type NoCandidateError struct {
	ExternalID string
	Scanned    int
}

func (e *NoCandidateError) Error() string {
	return fmt.Sprintf("no selections saved for visit %q (scanned %d candidate rows)",
		e.ExternalID, e.Scanned)
}
