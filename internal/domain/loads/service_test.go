package loads

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain"
	"millstock/internal/domain/allocation"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/lots"
	"millstock/pkg/numerator"
)

// Mock objects

type fakeTxManager struct {
	serializableCalls int
}

func (f *fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeTxManager) RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	f.serializableCalls++
	return fn(ctx)
}

type claimCall struct {
	lotID      id.ID
	weightUsed types.Weight
}

type fakeLotRepo struct {
	byID     map[id.ID]*lots.Lot
	claims   []claimCall
	created  []*lots.Lot
	claimErr error
}

func newFakeLotRepo(existing ...*lots.Lot) *fakeLotRepo {
	f := &fakeLotRepo{byID: make(map[id.ID]*lots.Lot)}
	for _, lot := range existing {
		f.byID[lot.ID] = lot
	}
	return f
}

func (f *fakeLotRepo) Create(ctx context.Context, lot *lots.Lot) error {
	f.created = append(f.created, lot)
	f.byID[lot.ID] = lot
	return nil
}

func (f *fakeLotRepo) CreateBatch(ctx context.Context, batch []*lots.Lot) error {
	for _, lot := range batch {
		if err := f.Create(ctx, lot); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeLotRepo) GetByID(ctx context.Context, lotID id.ID) (*lots.Lot, error) {
	lot, ok := f.byID[lotID]
	if !ok {
		return nil, apperror.NewNotFound("lot", lotID)
	}
	return lot, nil
}

func (f *fakeLotRepo) ListAvailable(ctx context.Context, productType lots.ProductType, order lots.Order) ([]*lots.Lot, error) {
	return nil, nil
}

func (f *fakeLotRepo) ClaimForLoad(ctx context.Context, lotID id.ID, weightUsed types.Weight) error {
	if f.claimErr != nil {
		return f.claimErr
	}
	f.claims = append(f.claims, claimCall{lotID: lotID, weightUsed: weightUsed})
	return nil
}

func (f *fakeLotRepo) UpdateStatus(ctx context.Context, lotID id.ID, from, to lots.Status) error {
	return nil
}

func (f *fakeLotRepo) MarkSoldWithWeight(ctx context.Context, lotID id.ID, soldWeight types.Weight) error {
	return nil
}

func (f *fakeLotRepo) List(ctx context.Context, filter lots.ListFilter) (domain.ListResult[*lots.Lot], error) {
	return domain.ListResult[*lots.Lot]{}, nil
}

type fakeLedgerRepo struct {
	deltas map[lots.ProductType]ledger.Delta
}

func newFakeLedgerRepo() *fakeLedgerRepo {
	return &fakeLedgerRepo{deltas: make(map[lots.ProductType]ledger.Delta)}
}

func (f *fakeLedgerRepo) ApplyDelta(ctx context.Context, productType lots.ProductType, delta ledger.Delta) error {
	f.deltas[productType] = f.deltas[productType].Add(delta)
	return nil
}

func (f *fakeLedgerRepo) Get(ctx context.Context, productType lots.ProductType) (*ledger.StockTotals, error) {
	return &ledger.StockTotals{ProductType: productType}, nil
}

func (f *fakeLedgerRepo) ListAll(ctx context.Context) ([]*ledger.StockTotals, error) {
	return nil, nil
}

type fakeLoadRepo struct {
	created []*Load
}

func (f *fakeLoadRepo) Create(ctx context.Context, load *Load) error {
	f.created = append(f.created, load)
	return nil
}

func (f *fakeLoadRepo) GetByID(ctx context.Context, loadID id.ID) (*Load, error) {
	return nil, apperror.NewNotFound("load", loadID)
}

func (f *fakeLoadRepo) GetForUpdate(ctx context.Context, loadID id.ID) (*Load, error) {
	return nil, apperror.NewNotFound("load", loadID)
}

func (f *fakeLoadRepo) Delete(ctx context.Context, loadID id.ID) error { return nil }

func (f *fakeLoadRepo) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Load], error) {
	return domain.ListResult[*Load]{}, nil
}

type seqRow struct{ val int64 }

func (r *seqRow) Scan(dest ...any) error {
	if ptr, ok := dest[0].(*int64); ok {
		*ptr = r.val
	}
	return nil
}

type seqQuerier struct{ current int64 }

func (q *seqQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	q.current++
	return &seqRow{val: q.current}
}

func w(v float64) types.Weight { return types.NewWeightFromFloat64(v) }

func ricePlan(lotA, lotB *lots.Lot) *allocation.Plan {
	return &allocation.Plan{
		ProductType:  lots.ProductRice,
		TierID:       lots.TierIDFor(lotA.Price),
		Quantity:     w(70),
		PricePerUnit: lotA.Price,
		Items: []allocation.Item{
			{LotID: lotA.ID, WeightUsed: w(50), LotWeight: w(50), PricePerUnit: lotA.Price},
			{LotID: lotB.ID, WeightUsed: w(20), LotWeight: w(30), PricePerUnit: lotB.Price},
		},
	}
}

func TestCommit_ClaimsSplitsAndLedger(t *testing.T) {
	lotA := lots.NewLot(lots.ProductRice, w(50), types.MustMoney("100"))
	lotB := lots.NewLot(lots.ProductRice, w(30), types.MustMoney("100"))
	lotB.CreatedAt = time.Now().UTC().Add(-48 * time.Hour)

	lotRepo := newFakeLotRepo(lotA, lotB)
	ledgerRepo := newFakeLedgerRepo()
	loadRepo := &fakeLoadRepo{}
	txm := &fakeTxManager{}
	svc := NewService(loadRepo, lotRepo, ledger.NewService(ledgerRepo), numerator.New(&seqQuerier{}), txm)

	load, err := svc.Commit(context.Background(), CommitInput{
		Plans:    []*allocation.Plan{ricePlan(lotA, lotB)},
		Assignee: "rep-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if txm.serializableCalls != 1 {
		t.Errorf("commit must run in a serializable transaction")
	}
	if load.Number == "" {
		t.Errorf("expected load number to be assigned")
	}
	if len(loadRepo.created) != 1 {
		t.Fatalf("expected one load persisted, got %d", len(loadRepo.created))
	}

	// Both lots claimed, second one partially.
	if len(lotRepo.claims) != 2 {
		t.Fatalf("expected 2 claims, got %d", len(lotRepo.claims))
	}
	if lotRepo.claims[0].lotID != lotA.ID || lotRepo.claims[0].weightUsed != w(50) {
		t.Errorf("unexpected first claim: %+v", lotRepo.claims[0])
	}
	if lotRepo.claims[1].lotID != lotB.ID || lotRepo.claims[1].weightUsed != w(20) {
		t.Errorf("unexpected second claim: %+v", lotRepo.claims[1])
	}

	// The unconsumed 10 of lotB becomes a fresh available lot keeping
	// lotB's bagging time.
	if len(lotRepo.created) != 1 {
		t.Fatalf("expected one residual lot, got %d", len(lotRepo.created))
	}
	residual := lotRepo.created[0]
	if residual.Weight != w(10) {
		t.Errorf("expected residual weight 10, got %s", residual.Weight)
	}
	if residual.Status != lots.StatusAvailable {
		t.Errorf("residual lot must be available, got %s", residual.Status)
	}
	if !residual.CreatedAt.Equal(lotB.CreatedAt) {
		t.Errorf("residual lot must inherit the parent bagging time")
	}

	// 70 moved bagged -> loaded; 2 bags left bagged, 1 residual came back.
	delta := ledgerRepo.deltas[lots.ProductRice]
	if delta.BaggedTotal != w(-70) || delta.LoadedTotal != w(70) {
		t.Errorf("unexpected weight delta: %+v", delta)
	}
	if delta.BaggedBagCount != -1 || delta.LoadedBagCount != 2 {
		t.Errorf("unexpected bag count delta: %+v", delta)
	}
	if !delta.WeightShift().IsZero() {
		t.Errorf("commit must conserve total weight, shift = %s", delta.WeightShift())
	}

	if load.TotalWeight != w(70) {
		t.Errorf("expected total weight 70, got %s", load.TotalWeight)
	}
	if !load.TotalValue.Equal(types.MustMoney("7000")) {
		t.Errorf("expected total value 7000, got %s", load.TotalValue)
	}
}

func TestCommit_ClaimFailureAborts(t *testing.T) {
	lotA := lots.NewLot(lots.ProductRice, w(50), types.MustMoney("100"))
	lotRepo := newFakeLotRepo(lotA)
	lotRepo.claimErr = apperror.NewConcurrentModification("lot", lotA.ID)
	loadRepo := &fakeLoadRepo{}
	svc := NewService(loadRepo, lotRepo, ledger.NewService(newFakeLedgerRepo()), numerator.New(&seqQuerier{}), &fakeTxManager{})

	plan := &allocation.Plan{
		ProductType:  lots.ProductRice,
		TierID:       lots.TierIDFor(lotA.Price),
		Quantity:     w(50),
		PricePerUnit: lotA.Price,
		Items: []allocation.Item{
			{LotID: lotA.ID, WeightUsed: w(50), LotWeight: w(50), PricePerUnit: lotA.Price},
		},
	}

	_, err := svc.Commit(context.Background(), CommitInput{Plans: []*allocation.Plan{plan}, Assignee: "rep-1"})
	if !apperror.IsConcurrentModification(err) {
		t.Fatalf("expected CONCURRENT_MODIFICATION, got %v", err)
	}
	if len(loadRepo.created) != 0 {
		t.Errorf("no load must be persisted when a claim fails")
	}
}

func TestCommit_Validation(t *testing.T) {
	svc := NewService(&fakeLoadRepo{}, newFakeLotRepo(), ledger.NewService(newFakeLedgerRepo()), numerator.New(&seqQuerier{}), &fakeTxManager{})
	ctx := context.Background()

	if _, err := svc.Commit(ctx, CommitInput{Assignee: "rep-1"}); !apperror.IsValidation(err) {
		t.Errorf("expected validation error for empty plans, got %v", err)
	}

	lotA := lots.NewLot(lots.ProductRice, w(50), types.MustMoney("100"))
	lotB := lots.NewLot(lots.ProductRice, w(30), types.MustMoney("100"))
	plans := []*allocation.Plan{ricePlan(lotA, lotB)}

	if _, err := svc.Commit(ctx, CommitInput{Plans: plans}); !apperror.IsValidation(err) {
		t.Errorf("expected validation error for missing assignee, got %v", err)
	}

	// Two lines for the same product type are rejected.
	dup := []*allocation.Plan{ricePlan(lotA, lotB), ricePlan(lotA, lotB)}
	if _, err := svc.Commit(ctx, CommitInput{Plans: dup, Assignee: "rep-1"}); !apperror.IsValidation(err) {
		t.Errorf("expected validation error for duplicate product type, got %v", err)
	}
}
