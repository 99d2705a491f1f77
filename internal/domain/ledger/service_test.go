package ledger

import (
	"context"
	"testing"

	"millstock/internal/core/apperror"
	"millstock/internal/core/types"
	"millstock/internal/domain/lots"
)

type fakeRepo struct {
	deltas map[lots.ProductType]Delta
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{deltas: make(map[lots.ProductType]Delta)}
}

func (f *fakeRepo) ApplyDelta(ctx context.Context, productType lots.ProductType, delta Delta) error {
	f.deltas[productType] = f.deltas[productType].Add(delta)
	return nil
}

func (f *fakeRepo) Get(ctx context.Context, productType lots.ProductType) (*StockTotals, error) {
	return &StockTotals{ProductType: productType}, nil
}

func (f *fakeRepo) ListAll(ctx context.Context) ([]*StockTotals, error) { return nil, nil }

func w(v float64) types.Weight { return types.NewWeightFromFloat64(v) }

func TestDelta_Algebra(t *testing.T) {
	a := Delta{BaggedTotal: w(-70), BaggedBagCount: -1, LoadedTotal: w(70), LoadedBagCount: 2}
	b := Delta{BaggedTotal: w(20), BaggedBagCount: 1, LoadedTotal: w(-70), LoadedBagCount: -2, SoldTotal: w(50), SoldValue: types.MustMoney("5000")}

	sum := a.Add(b)
	if sum.BaggedTotal != w(-50) || sum.LoadedTotal != w(0) || sum.SoldTotal != w(50) {
		t.Errorf("unexpected sum: %+v", sum)
	}
	if sum.BaggedBagCount != 0 || sum.LoadedBagCount != 0 {
		t.Errorf("unexpected bag counts: %+v", sum)
	}

	// A commit followed by its reconcile shifts no weight in total.
	if !a.WeightShift().IsZero() || !b.WeightShift().IsZero() || !sum.WeightShift().IsZero() {
		t.Errorf("allocate and reconcile deltas must each conserve weight")
	}

	if !(Delta{}).IsZero() {
		t.Errorf("zero delta must report IsZero")
	}
	if a.IsZero() {
		t.Errorf("non-empty delta must not report IsZero")
	}
}

func TestApply_ConservationGuard(t *testing.T) {
	svc := NewService(newFakeRepo())
	ctx := context.Background()

	// Weight leaking out of the system is refused.
	leak := Delta{BaggedTotal: w(-10)}
	if err := svc.Apply(ctx, lots.ProductRice, leak, false); err == nil {
		t.Fatalf("expected conservation violation to be refused")
	}

	// Intake may grow the total, but only when flagged.
	grow := Delta{BaggedTotal: w(10), BaggedBagCount: 1}
	if err := svc.Apply(ctx, lots.ProductRice, grow, false); err == nil {
		t.Fatalf("expected growth without intake flag to be refused")
	}
	if err := svc.Apply(ctx, lots.ProductRice, grow, true); err != nil {
		t.Fatalf("unexpected error for intake delta: %v", err)
	}

	// Intake flag still refuses shrinking the total.
	if err := svc.Apply(ctx, lots.ProductRice, leak, true); err == nil {
		t.Fatalf("expected shrink with intake flag to be refused")
	}
}

func TestApply_BalancedDelta(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	delta := Delta{BaggedTotal: w(-70), BaggedBagCount: -1, LoadedTotal: w(70), LoadedBagCount: 2}
	if err := svc.Apply(ctx, lots.ProductRice, delta, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := repo.deltas[lots.ProductRice]
	if got.BaggedTotal != delta.BaggedTotal || got.LoadedTotal != delta.LoadedTotal ||
		got.BaggedBagCount != delta.BaggedBagCount || got.LoadedBagCount != delta.LoadedBagCount {
		t.Errorf("delta not forwarded to repository: %+v", got)
	}

	// Zero deltas are dropped before the repository.
	if err := svc.Apply(ctx, lots.ProductHusk, Delta{}, false); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := repo.deltas[lots.ProductHusk]; ok {
		t.Errorf("zero delta must not reach the repository")
	}
}

func TestApply_UnknownProductType(t *testing.T) {
	svc := NewService(newFakeRepo())
	err := svc.Apply(context.Background(), "gravel", Delta{BaggedTotal: w(1), BaggedBagCount: 1}, true)
	if !apperror.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
