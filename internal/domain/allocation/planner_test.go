package allocation

import (
	"context"
	"testing"
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain"
	"millstock/internal/domain/lots"
)

// fakeLotRepo serves a fixed availability list in insertion order.
type fakeLotRepo struct {
	available []*lots.Lot
}

func (f *fakeLotRepo) Create(ctx context.Context, lot *lots.Lot) error        { return nil }
func (f *fakeLotRepo) CreateBatch(ctx context.Context, batch []*lots.Lot) error { return nil }
func (f *fakeLotRepo) GetByID(ctx context.Context, lotID id.ID) (*lots.Lot, error) {
	return nil, apperror.NewNotFound("lot", lotID)
}
func (f *fakeLotRepo) ListAvailable(ctx context.Context, productType lots.ProductType, order lots.Order) ([]*lots.Lot, error) {
	out := make([]*lots.Lot, 0, len(f.available))
	for _, lot := range f.available {
		if lot.ProductType == productType {
			out = append(out, lot)
		}
	}
	return out, nil
}
func (f *fakeLotRepo) ClaimForLoad(ctx context.Context, lotID id.ID, weightUsed types.Weight) error {
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

func availableLot(productType lots.ProductType, weight float64, price string, age time.Duration) *lots.Lot {
	lot := lots.NewLot(productType, types.NewWeightFromFloat64(weight), types.MustMoney(price))
	lot.CreatedAt = time.Now().UTC().Add(-age)
	return lot
}

func TestPlan_ExactFIFO(t *testing.T) {
	lotA := availableLot(lots.ProductRice, 50, "100", 3*time.Hour)
	lotB := availableLot(lots.ProductRice, 30, "100", 2*time.Hour)
	lotC := availableLot(lots.ProductRice, 40, "100", 1*time.Hour)
	repo := &fakeLotRepo{available: []*lots.Lot{lotA, lotB, lotC}}

	plan, err := NewPlanner(repo).Plan(context.Background(), lots.ProductRice, types.NewWeightFromFloat64(70), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(plan.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(plan.Items))
	}
	if plan.Items[0].LotID != lotA.ID {
		t.Errorf("expected oldest lot first")
	}
	if plan.Items[0].WeightUsed != lotA.Weight {
		t.Errorf("first lot must be consumed whole, got %s", plan.Items[0].WeightUsed)
	}
	if plan.Items[1].LotID != lotB.ID {
		t.Errorf("expected second-oldest lot next")
	}
	if got := plan.Items[1].WeightUsed; got != types.NewWeightFromFloat64(20) {
		t.Errorf("expected partial 20 from second lot, got %s", got)
	}
	if got := plan.ResidualWeight(); got != types.NewWeightFromFloat64(10) {
		t.Errorf("expected residual 10, got %s", got)
	}

	var total types.Weight
	for _, item := range plan.Items {
		total += item.WeightUsed
	}
	if total != plan.Quantity {
		t.Errorf("item weights must sum to quantity: %s != %s", total, plan.Quantity)
	}
	if want := types.MustMoney("7000"); !plan.TotalValue().Equal(want) {
		t.Errorf("expected total value 7000, got %s", plan.TotalValue())
	}
}

func TestPlan_WholeLotsNoResidual(t *testing.T) {
	lotA := availableLot(lots.ProductHusk, 25, "15", 2*time.Hour)
	lotB := availableLot(lots.ProductHusk, 25, "15", time.Hour)
	repo := &fakeLotRepo{available: []*lots.Lot{lotA, lotB}}

	plan, err := NewPlanner(repo).Plan(context.Background(), lots.ProductHusk, types.NewWeightFromFloat64(50), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(plan.Items))
	}
	if !plan.ResidualWeight().IsZero() {
		t.Errorf("expected no residual, got %s", plan.ResidualWeight())
	}
}

func TestPlan_TierSelection(t *testing.T) {
	cheap := availableLot(lots.ProductRice, 100, "90", 3*time.Hour)
	dear := availableLot(lots.ProductRice, 100, "110", 2*time.Hour)
	repo := &fakeLotRepo{available: []*lots.Lot{cheap, dear}}
	planner := NewPlanner(repo)
	ctx := context.Background()
	qty := types.NewWeightFromFloat64(60)

	// Ambiguous without an explicit tier.
	if _, err := planner.Plan(ctx, lots.ProductRice, qty, ""); !apperror.IsValidation(err) {
		t.Fatalf("expected validation error for ambiguous tier, got %v", err)
	}

	// Explicit tier draws only from its own lots.
	plan, err := planner.Plan(ctx, lots.ProductRice, qty, lots.TierIDFor(types.MustMoney("110")))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Items) != 1 || plan.Items[0].LotID != dear.ID {
		t.Fatalf("expected single item from the 110 tier")
	}
	if !plan.PricePerUnit.Equal(types.MustMoney("110")) {
		t.Errorf("expected tier price 110, got %s", plan.PricePerUnit)
	}

	// Unknown tier.
	if _, err := planner.Plan(ctx, lots.ProductRice, qty, "105"); !apperror.IsValidation(err) {
		t.Fatalf("expected validation error for unknown tier, got %v", err)
	}
}

func TestPlan_ImplicitSingleTier(t *testing.T) {
	repo := &fakeLotRepo{available: []*lots.Lot{availableLot(lots.ProductFlour, 80, "55", time.Hour)}}

	plan, err := NewPlanner(repo).Plan(context.Background(), lots.ProductFlour, types.NewWeightFromFloat64(30), "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.TierID != lots.TierIDFor(types.MustMoney("55")) {
		t.Errorf("expected implicit tier selection, got %q", plan.TierID)
	}
}

func TestPlan_InsufficientStock(t *testing.T) {
	repo := &fakeLotRepo{available: []*lots.Lot{availableLot(lots.ProductRice, 40, "100", time.Hour)}}

	_, err := NewPlanner(repo).Plan(context.Background(), lots.ProductRice, types.NewWeightFromFloat64(41), "")
	appErr, ok := apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeInsufficientStock {
		t.Fatalf("expected INSUFFICIENT_STOCK, got %v", err)
	}

	// No lots at all reports insufficient stock, not a tier error.
	empty := &fakeLotRepo{}
	_, err = NewPlanner(empty).Plan(context.Background(), lots.ProductRice, types.NewWeightFromFloat64(1), "")
	appErr, ok = apperror.AsAppError(err)
	if !ok || appErr.Code != apperror.CodeInsufficientStock {
		t.Fatalf("expected INSUFFICIENT_STOCK for empty stock, got %v", err)
	}
}

func TestPlan_Validation(t *testing.T) {
	repo := &fakeLotRepo{}
	planner := NewPlanner(repo)
	ctx := context.Background()

	if _, err := planner.Plan(ctx, "gravel", types.NewWeightFromFloat64(10), ""); !apperror.IsValidation(err) {
		t.Errorf("expected validation error for unknown product type, got %v", err)
	}
	if _, err := planner.Plan(ctx, lots.ProductRice, 0, ""); !apperror.IsValidation(err) {
		t.Errorf("expected validation error for zero quantity, got %v", err)
	}
	if _, err := planner.Plan(ctx, lots.ProductRice, types.NewWeightFromFloat64(-5), ""); !apperror.IsValidation(err) {
		t.Errorf("expected validation error for negative quantity, got %v", err)
	}
}
