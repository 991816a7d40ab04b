package selection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"

	"github.com/hms/hms/internal/domain/tariff"
)

type selKey struct {
	visit, service uuid.UUID
}

type mockSelectionRepo struct {
	records map[selKey]*ServiceSelectionRecord
	lists   int
}

func newMockSelectionRepo() *mockSelectionRepo {
	return &mockSelectionRepo{records: make(map[selKey]*ServiceSelectionRecord)}
}

func (m *mockSelectionRepo) Upsert(_ context.Context, rec *ServiceSelectionRecord) error {
	cp := *rec
	m.records[selKey{rec.VisitUUID, rec.ServiceID}] = &cp
	return nil
}

func (m *mockSelectionRepo) Get(_ context.Context, visitUUID, serviceID uuid.UUID) (*ServiceSelectionRecord, error) {
	rec, ok := m.records[selKey{visitUUID, serviceID}]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *mockSelectionRepo) ListByVisit(_ context.Context, visitUUID uuid.UUID) ([]*ServiceSelectionRecord, error) {
	m.lists++
	var out []*ServiceSelectionRecord
	for k, rec := range m.records {
		if k.visit == visitUUID {
			cp := *rec
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockSelectionRepo) Delete(_ context.Context, visitUUID, serviceID uuid.UUID) error {
	k := selKey{visitUUID, serviceID}
	if _, ok := m.records[k]; !ok {
		return pgx.ErrNoRows
	}
	delete(m.records, k)
	return nil
}

type mockVisitLookup struct {
	refs map[string][]VisitRef
}

func (m *mockVisitLookup) ListByVisitID(_ context.Context, externalID string) ([]VisitRef, error) {
	return m.refs[externalID], nil
}

func newTestReconciler(repo Repository, visits VisitLookup) *Reconciler {
	r := NewReconciler(repo, visits, zerolog.Nop())
	base := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	n := 0
	r.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Second)
	}
	return r
}

func privateRate(serviceID uuid.UUID, rate float64) tariff.RateSelection {
	return tariff.RateSelection{ServiceID: serviceID, RateType: tariff.RatePrivate, UnitRate: rate}
}

func TestSelect_SecondSelectIncrementsNotDuplicates(t *testing.T) {
	visitRow := uuid.New()
	serviceID := uuid.New()
	repo := newMockSelectionRepo()
	visits := &mockVisitLookup{refs: map[string][]VisitRef{
		"IH25F25001": {{UUID: visitRow, CreatedAt: time.Now()}},
	}}
	rec := newTestReconciler(repo, visits)
	ctx := context.Background()

	first, created, err := rec.Select(ctx, "IH25F25001", privateRate(serviceID, 350), DecisionIncrement)
	if err != nil {
		t.Fatalf("first select: %v", err)
	}
	if !created || first.Quantity != 1 || first.Amount != 350 {
		t.Fatalf("first select = created:%v qty:%d amount:%v", created, first.Quantity, first.Amount)
	}

	second, created, err := rec.Select(ctx, "IH25F25001", privateRate(serviceID, 350), DecisionIncrement)
	if err != nil {
		t.Fatalf("second select: %v", err)
	}
	if created {
		t.Fatal("second select must not create a new record")
	}
	if second.Quantity != 2 || second.Amount != 700 {
		t.Fatalf("after increment qty = %d amount = %v, want 2 and 700", second.Quantity, second.Amount)
	}
	if len(repo.records) != 1 {
		t.Fatalf("store holds %d records, want exactly 1", len(repo.records))
	}
}

func TestSelect_KeepExistingLeavesRecordUntouched(t *testing.T) {
	visitRow := uuid.New()
	serviceID := uuid.New()
	repo := newMockSelectionRepo()
	visits := &mockVisitLookup{refs: map[string][]VisitRef{
		"IH25F25002": {{UUID: visitRow}},
	}}
	rec := newTestReconciler(repo, visits)
	ctx := context.Background()

	if _, _, err := rec.Select(ctx, "IH25F25002", privateRate(serviceID, 500), DecisionIncrement); err != nil {
		t.Fatal(err)
	}
	kept, created, err := rec.Select(ctx, "IH25F25002", privateRate(serviceID, 500), DecisionKeep)
	if err != nil {
		t.Fatal(err)
	}
	if created || kept.Quantity != 1 || kept.Amount != 500 {
		t.Fatalf("keep decision changed record: created:%v qty:%d amount:%v", created, kept.Quantity, kept.Amount)
	}
}

func TestSelect_DeselectThenSelectStartsAtOne(t *testing.T) {
	visitRow := uuid.New()
	serviceID := uuid.New()
	repo := newMockSelectionRepo()
	visits := &mockVisitLookup{refs: map[string][]VisitRef{
		"IH25F25003": {{UUID: visitRow}},
	}}
	rec := newTestReconciler(repo, visits)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, _, err := rec.Select(ctx, "IH25F25003", privateRate(serviceID, 100), DecisionIncrement); err != nil {
			t.Fatal(err)
		}
	}
	if err := rec.Deselect(ctx, "IH25F25003", serviceID); err != nil {
		t.Fatalf("deselect: %v", err)
	}
	again, created, err := rec.Select(ctx, "IH25F25003", privateRate(serviceID, 100), DecisionIncrement)
	if err != nil {
		t.Fatal(err)
	}
	if !created || again.Quantity != 1 {
		t.Fatalf("select after deselect = created:%v qty:%d, want fresh record at 1", created, again.Quantity)
	}
}

func TestSetQuantity_RecomputesAmountFromStoredRate(t *testing.T) {
	visitRow := uuid.New()
	serviceID := uuid.New()
	repo := newMockSelectionRepo()
	visits := &mockVisitLookup{refs: map[string][]VisitRef{
		"IH25F25004": {{UUID: visitRow}},
	}}
	rec := newTestReconciler(repo, visits)
	ctx := context.Background()

	if _, _, err := rec.Select(ctx, "IH25F25004", privateRate(serviceID, 250), DecisionIncrement); err != nil {
		t.Fatal(err)
	}
	updated, err := rec.SetQuantity(ctx, "IH25F25004", serviceID, 4)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Quantity != 4 || updated.Amount != 1000 {
		t.Fatalf("qty = %d amount = %v, want 4 and 1000", updated.Quantity, updated.Amount)
	}

	if _, err := rec.SetQuantity(ctx, "IH25F25004", serviceID, 0); err == nil {
		t.Fatal("expected error for quantity 0")
	}
	if _, err := rec.SetQuantity(ctx, "IH25F25004", uuid.New(), 2); err == nil {
		t.Fatal("expected error for unselected service")
	}
}

func TestResolveParent_DuplicateRowsRecoversNewestWithData(t *testing.T) {
	// Two visit rows share one external id: t1 (older) and t2 (newer).
	// Selections were saved only under t2. Recovery must return t2's data
	// and pin t2 for subsequent writes.
	t1 := uuid.New()
	t2 := uuid.New()
	serviceID := uuid.New()
	repo := newMockSelectionRepo()
	repo.records[selKey{t2, serviceID}] = &ServiceSelectionRecord{
		ID: uuid.New(), VisitUUID: t2, ServiceID: serviceID,
		Quantity: 2, RateUsed: 300, RateType: tariff.RatePrivate, Amount: 600,
	}
	visits := &mockVisitLookup{refs: map[string][]VisitRef{
		"V1": {
			{UUID: t2, CreatedAt: time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)},
			{UUID: t1, CreatedAt: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)},
		},
	}}
	rec := newTestReconciler(repo, visits)
	ctx := context.Background()

	recs, rctx, err := rec.ListSaved(ctx, "V1")
	if err != nil {
		t.Fatalf("ListSaved: %v", err)
	}
	if len(recs) != 1 || recs[0].VisitUUID != t2 {
		t.Fatalf("recovered %d records under wrong parent", len(recs))
	}
	if rctx.VisitUUID != t2 || !rctx.Recovered {
		t.Fatalf("resolution = %+v, want recovered t2", rctx)
	}
	if rctx.Ambiguity == nil || rctx.Ambiguity.Candidates != 2 || rctx.Ambiguity.Chosen != t2 {
		t.Fatalf("ambiguity report = %+v", rctx.Ambiguity)
	}

	// Subsequent writes land under the cached t2 key.
	created, isNew, err := rec.Select(ctx, "V1", privateRate(uuid.New(), 150), DecisionIncrement)
	if err != nil {
		t.Fatal(err)
	}
	if !isNew || created.VisitUUID != t2 {
		t.Fatalf("write landed under %s, want cached %s", created.VisitUUID, t2)
	}
}

func TestResolveParent_ProbeSkipsEmptyNewerRow(t *testing.T) {
	// Data lives under the OLDER duplicate: the scan walks newest first
	// and keeps going until it hits a row with saved selections.
	newer := uuid.New()
	older := uuid.New()
	serviceID := uuid.New()
	repo := newMockSelectionRepo()
	repo.records[selKey{older, serviceID}] = &ServiceSelectionRecord{
		ID: uuid.New(), VisitUUID: older, ServiceID: serviceID,
		Quantity: 1, RateUsed: 800, Amount: 800,
	}
	visits := &mockVisitLookup{refs: map[string][]VisitRef{
		"V2": {{UUID: newer}, {UUID: older}},
	}}
	rec := newTestReconciler(repo, visits)

	rctx, err := rec.ResolveParent(context.Background(), "V2")
	if err != nil {
		t.Fatal(err)
	}
	if rctx.VisitUUID != older {
		t.Fatalf("resolved %s, want older row %s", rctx.VisitUUID, older)
	}
}

func TestResolveParent_CachesAcrossCalls(t *testing.T) {
	visitRow := uuid.New()
	repo := newMockSelectionRepo()
	repo.records[selKey{visitRow, uuid.New()}] = &ServiceSelectionRecord{VisitUUID: visitRow, Quantity: 1}
	other := uuid.New()
	visits := &mockVisitLookup{refs: map[string][]VisitRef{
		"V3": {{UUID: visitRow}, {UUID: other}},
	}}
	rec := newTestReconciler(repo, visits)
	ctx := context.Background()

	if _, err := rec.ResolveParent(ctx, "V3"); err != nil {
		t.Fatal(err)
	}
	probes := repo.lists
	if _, err := rec.ResolveParent(ctx, "V3"); err != nil {
		t.Fatal(err)
	}
	if repo.lists != probes {
		t.Fatalf("second resolve re-scanned the store (%d -> %d probes)", probes, repo.lists)
	}
}

func TestListSaved_EmptyStoreIsNoCandidateNotFailure(t *testing.T) {
	visits := &mockVisitLookup{refs: map[string][]VisitRef{
		"V4": {{UUID: uuid.New()}, {UUID: uuid.New()}},
	}}
	rec := newTestReconciler(newMockSelectionRepo(), visits)

	_, rctx, err := rec.ListSaved(context.Background(), "V4")
	var noCand *NoCandidateError
	if !errors.As(err, &noCand) {
		t.Fatalf("err = %v, want NoCandidateError", err)
	}
	if noCand.Scanned != 2 {
		t.Fatalf("scanned = %d, want 2", noCand.Scanned)
	}
	if rctx == nil || rctx.Ambiguity == nil {
		t.Fatal("empty scan must still report the resolution attempt")
	}
}

func TestResolveParent_UnknownExternalIDFails(t *testing.T) {
	rec := newTestReconciler(newMockSelectionRepo(), &mockVisitLookup{refs: map[string][]VisitRef{}})
	if _, err := rec.ResolveParent(context.Background(), "NOPE"); err == nil {
		t.Fatal("expected lookup failure for unknown external id")
	}
}

type txTrackingRepo struct {
	*mockSelectionRepo
	inTx    *bool
	outside int
}

func (m *txTrackingRepo) Get(ctx context.Context, visitUUID, serviceID uuid.UUID) (*ServiceSelectionRecord, error) {
	if !*m.inTx {
		m.outside++
	}
	return m.mockSelectionRepo.Get(ctx, visitUUID, serviceID)
}

func (m *txTrackingRepo) Upsert(ctx context.Context, rec *ServiceSelectionRecord) error {
	if !*m.inTx {
		m.outside++
	}
	return m.mockSelectionRepo.Upsert(ctx, rec)
}

func TestSelect_ReadModifyWriteRunsInsideTx(t *testing.T) {
	visitRow := uuid.New()
	serviceID := uuid.New()
	inTx := false
	repo := &txTrackingRepo{mockSelectionRepo: newMockSelectionRepo(), inTx: &inTx}
	visits := &mockVisitLookup{refs: map[string][]VisitRef{
		"IH25F25001": {{UUID: visitRow, CreatedAt: time.Now()}},
	}}
	rec := newTestReconciler(repo, visits).WithTx(func(ctx context.Context, fn func(context.Context) error) error {
		inTx = true
		defer func() { inTx = false }()
		return fn(ctx)
	})
	ctx := context.Background()

	if _, _, err := rec.Select(ctx, "IH25F25001", privateRate(serviceID, 350), DecisionIncrement); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, _, err := rec.Select(ctx, "IH25F25001", privateRate(serviceID, 350), DecisionIncrement); err != nil {
		t.Fatalf("second select: %v", err)
	}
	if _, err := rec.SetQuantity(ctx, "IH25F25001", serviceID, 5); err != nil {
		t.Fatalf("set quantity: %v", err)
	}

	if repo.outside != 0 {
		t.Errorf("%d store calls ran outside the transaction, want 0", repo.outside)
	}
	saved, _ := repo.mockSelectionRepo.Get(ctx, visitRow, serviceID)
	if saved == nil || saved.Quantity != 5 || saved.Amount != 1750 {
		t.Errorf("stored record = %+v, want qty 5 amount 1750", saved)
	}
}

func TestSelect_TxFailureSurfacesAndWritesNothing(t *testing.T) {
	visitRow := uuid.New()
	repo := newMockSelectionRepo()
	visits := &mockVisitLookup{refs: map[string][]VisitRef{
		"IH25F25001": {{UUID: visitRow, CreatedAt: time.Now()}},
	}}
	txErr := errors.New("begin failed")
	rec := newTestReconciler(repo, visits).WithTx(func(ctx context.Context, fn func(context.Context) error) error {
		return txErr
	})

	if _, _, err := rec.Select(context.Background(), "IH25F25001", privateRate(uuid.New(), 350), DecisionIncrement); !errors.Is(err, txErr) {
		t.Fatalf("expected transaction error to surface, got %v", err)
	}
	if len(repo.records) != 0 {
		t.Error("failed transaction must not leave a record behind")
	}
}
