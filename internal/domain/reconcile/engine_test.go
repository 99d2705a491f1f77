package reconcile

import (
	"context"
	"testing"
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/loads"
	"millstock/internal/domain/lots"
	"millstock/internal/domain/reports"
)

// Mock objects

type fakeTxManager struct{}

func (f *fakeTxManager) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeTxManager) RunSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type statusChange struct {
	lotID    id.ID
	from, to lots.Status
}

type markSold struct {
	lotID      id.ID
	soldWeight types.Weight
}

type fakeLotRepo struct {
	statusChanges []statusChange
	markedSold    []markSold
	created       []*lots.Lot
}

func (f *fakeLotRepo) Create(ctx context.Context, lot *lots.Lot) error {
	f.created = append(f.created, lot)
	return nil
}

func (f *fakeLotRepo) CreateBatch(ctx context.Context, batch []*lots.Lot) error { return nil }

func (f *fakeLotRepo) GetByID(ctx context.Context, lotID id.ID) (*lots.Lot, error) {
	return nil, apperror.NewNotFound("lot", lotID)
}

func (f *fakeLotRepo) ListAvailable(ctx context.Context, productType lots.ProductType, order lots.Order) ([]*lots.Lot, error) {
	return nil, nil
}

func (f *fakeLotRepo) ClaimForLoad(ctx context.Context, lotID id.ID, weightUsed types.Weight) error {
	return nil
}

func (f *fakeLotRepo) UpdateStatus(ctx context.Context, lotID id.ID, from, to lots.Status) error {
	f.statusChanges = append(f.statusChanges, statusChange{lotID: lotID, from: from, to: to})
	return nil
}

func (f *fakeLotRepo) MarkSoldWithWeight(ctx context.Context, lotID id.ID, soldWeight types.Weight) error {
	f.markedSold = append(f.markedSold, markSold{lotID: lotID, soldWeight: soldWeight})
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
	load    *loads.Load
	deleted []id.ID
}

func (f *fakeLoadRepo) Create(ctx context.Context, load *loads.Load) error { return nil }

func (f *fakeLoadRepo) GetByID(ctx context.Context, loadID id.ID) (*loads.Load, error) {
	return f.GetForUpdate(ctx, loadID)
}

func (f *fakeLoadRepo) GetForUpdate(ctx context.Context, loadID id.ID) (*loads.Load, error) {
	if f.load == nil || f.load.ID != loadID {
		return nil, apperror.NewNotFound("load", loadID)
	}
	return f.load, nil
}

func (f *fakeLoadRepo) Delete(ctx context.Context, loadID id.ID) error {
	f.deleted = append(f.deleted, loadID)
	f.load = nil
	return nil
}

func (f *fakeLoadRepo) List(ctx context.Context, filter loads.ListFilter) (domain.ListResult[*loads.Load], error) {
	return domain.ListResult[*loads.Load]{}, nil
}

type fakeReportRepo struct {
	created []*reports.LoadReport
}

func (f *fakeReportRepo) Create(ctx context.Context, report *reports.LoadReport) error {
	f.created = append(f.created, report)
	return nil
}

func (f *fakeReportRepo) GetByID(ctx context.Context, reportID id.ID) (*reports.LoadReport, error) {
	return nil, apperror.NewNotFound("load report", reportID)
}

func (f *fakeReportRepo) List(ctx context.Context, filter reports.ListFilter) (domain.ListResult[*reports.LoadReport], error) {
	return domain.ListResult[*reports.LoadReport]{}, nil
}

func w(v float64) types.Weight { return types.NewWeightFromFloat64(v) }

// riceLoad is a committed load of 70 rice at 100: lot A consumed whole (50),
// lot B partially (20 of 30).
func riceLoad(lotAID, lotBID id.ID) *loads.Load {
	price := types.MustMoney("100")
	return &loads.Load{
		ID:       id.New(),
		Number:   "LD-2026-00001",
		Assignee: "rep-1",
		Lines: []loads.Line{
			{
				LineID:       id.New(),
				LineNo:       1,
				ProductType:  lots.ProductRice,
				Quantity:     w(70),
				PricePerUnit: price,
				TotalValue:   types.MustMoney("7000"),
				LotsUsed: []loads.LotUsage{
					{LotID: lotAID, WeightUsed: w(50), PricePerUnit: price},
					{LotID: lotBID, WeightUsed: w(20), PricePerUnit: price},
				},
			},
		},
		TotalWeight: w(70),
		TotalValue:  types.MustMoney("7000"),
		Version:     1,
		CreatedAt:   time.Now().UTC().Add(-8 * time.Hour),
	}
}

func newTestEngine(loadRepo *fakeLoadRepo, lotRepo *fakeLotRepo, ledgerRepo *fakeLedgerRepo, reportRepo *fakeReportRepo) *Engine {
	return NewEngine(loadRepo, lotRepo, ledger.NewService(ledgerRepo), reportRepo, &fakeTxManager{})
}

func TestReconcile_PartialReturn(t *testing.T) {
	lotAID, lotBID := id.New(), id.New()
	loadRepo := &fakeLoadRepo{load: riceLoad(lotAID, lotBID)}
	loadID := loadRepo.load.ID
	lotRepo := &fakeLotRepo{}
	ledgerRepo := newFakeLedgerRepo()
	reportRepo := &fakeReportRepo{}
	engine := newTestEngine(loadRepo, lotRepo, ledgerRepo, reportRepo)

	report, err := engine.Reconcile(context.Background(), Input{
		LoadID:    loadID,
		Remaining: map[lots.ProductType]types.Weight{lots.ProductRice: w(20)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Remaining 20 exactly covers lot B (last consumed): B goes back to
	// available whole, A is fully sold.
	if len(lotRepo.statusChanges) != 2 {
		t.Fatalf("expected 2 status changes, got %d", len(lotRepo.statusChanges))
	}
	first := lotRepo.statusChanges[0]
	if first.lotID != lotBID || first.to != lots.StatusAvailable {
		t.Errorf("expected lot B restored first, got %+v", first)
	}
	second := lotRepo.statusChanges[1]
	if second.lotID != lotAID || second.to != lots.StatusSold {
		t.Errorf("expected lot A sold, got %+v", second)
	}
	if len(lotRepo.created) != 0 {
		t.Errorf("whole-lot restore must not create new lots")
	}

	delta := ledgerRepo.deltas[lots.ProductRice]
	if delta.BaggedTotal != w(20) || delta.LoadedTotal != w(-70) || delta.SoldTotal != w(50) {
		t.Errorf("unexpected weight delta: %+v", delta)
	}
	if delta.BaggedBagCount != 1 || delta.LoadedBagCount != -2 {
		t.Errorf("unexpected bag count delta: %+v", delta)
	}
	if !delta.SoldValue.Equal(types.MustMoney("5000")) {
		t.Errorf("expected sold value 5000, got %s", delta.SoldValue)
	}
	if !delta.WeightShift().IsZero() {
		t.Errorf("reconcile must conserve total weight, shift = %s", delta.WeightShift())
	}

	if report.TotalSold != w(50) || report.TotalRemaining != w(20) {
		t.Errorf("unexpected report totals: sold %s remaining %s", report.TotalSold, report.TotalRemaining)
	}
	if !report.TotalSoldValue.Equal(types.MustMoney("5000")) {
		t.Errorf("expected report sold value 5000, got %s", report.TotalSoldValue)
	}
	if report.LoadNumber != "LD-2026-00001" {
		t.Errorf("report must carry the load number")
	}
	if len(reportRepo.created) != 1 {
		t.Errorf("expected report persisted")
	}
	if len(loadRepo.deleted) != 1 || loadRepo.deleted[0] != loadID {
		t.Errorf("load must be deleted in the settlement")
	}
}

func TestReconcile_SplitsBoundaryLot(t *testing.T) {
	lotAID, lotBID := id.New(), id.New()
	loadRepo := &fakeLoadRepo{load: riceLoad(lotAID, lotBID)}
	lotRepo := &fakeLotRepo{}
	ledgerRepo := newFakeLedgerRepo()
	engine := newTestEngine(loadRepo, lotRepo, ledgerRepo, &fakeReportRepo{})

	// 8 remaining: lot B sold 12 of its 20, the 8 comes back as a new lot.
	_, err := engine.Reconcile(context.Background(), Input{
		LoadID:    loadRepo.load.ID,
		Remaining: map[lots.ProductType]types.Weight{lots.ProductRice: w(8)},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(lotRepo.markedSold) != 1 {
		t.Fatalf("expected one partial sale, got %d", len(lotRepo.markedSold))
	}
	if lotRepo.markedSold[0].lotID != lotBID || lotRepo.markedSold[0].soldWeight != w(12) {
		t.Errorf("unexpected partial sale: %+v", lotRepo.markedSold[0])
	}

	if len(lotRepo.created) != 1 {
		t.Fatalf("expected one restored lot, got %d", len(lotRepo.created))
	}
	restored := lotRepo.created[0]
	if restored.Weight != w(8) || restored.Status != lots.StatusAvailable {
		t.Errorf("unexpected restored lot: weight %s status %s", restored.Weight, restored.Status)
	}
	if !restored.Price.Equal(types.MustMoney("100")) {
		t.Errorf("restored lot must keep the price, got %s", restored.Price)
	}

	if len(lotRepo.statusChanges) != 1 || lotRepo.statusChanges[0].lotID != lotAID {
		t.Errorf("expected only lot A status change, got %+v", lotRepo.statusChanges)
	}

	delta := ledgerRepo.deltas[lots.ProductRice]
	if delta.BaggedTotal != w(8) || delta.SoldTotal != w(62) {
		t.Errorf("unexpected delta: %+v", delta)
	}
	if !delta.SoldValue.Equal(types.MustMoney("6200")) {
		t.Errorf("expected sold value 6200, got %s", delta.SoldValue)
	}
	if !delta.WeightShift().IsZero() {
		t.Errorf("reconcile must conserve total weight")
	}
}

func TestReconcile_FullReturnAndFullSale(t *testing.T) {
	t.Run("everything returned", func(t *testing.T) {
		lotAID, lotBID := id.New(), id.New()
		loadRepo := &fakeLoadRepo{load: riceLoad(lotAID, lotBID)}
		lotRepo := &fakeLotRepo{}
		ledgerRepo := newFakeLedgerRepo()
		engine := newTestEngine(loadRepo, lotRepo, ledgerRepo, &fakeReportRepo{})

		report, err := engine.Reconcile(context.Background(), Input{
			LoadID:    loadRepo.load.ID,
			Remaining: map[lots.ProductType]types.Weight{lots.ProductRice: w(70)},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.TotalSold != w(0) {
			t.Errorf("expected nothing sold, got %s", report.TotalSold)
		}
		for _, change := range lotRepo.statusChanges {
			if change.to != lots.StatusAvailable {
				t.Errorf("expected all lots restored, got %+v", change)
			}
		}
		delta := ledgerRepo.deltas[lots.ProductRice]
		if delta.SoldTotal != w(0) || !delta.SoldValue.IsZero() {
			t.Errorf("expected no sale in delta: %+v", delta)
		}
	})

	t.Run("everything sold", func(t *testing.T) {
		lotAID, lotBID := id.New(), id.New()
		loadRepo := &fakeLoadRepo{load: riceLoad(lotAID, lotBID)}
		lotRepo := &fakeLotRepo{}
		ledgerRepo := newFakeLedgerRepo()
		engine := newTestEngine(loadRepo, lotRepo, ledgerRepo, &fakeReportRepo{})

		report, err := engine.Reconcile(context.Background(), Input{
			LoadID:    loadRepo.load.ID,
			Remaining: map[lots.ProductType]types.Weight{lots.ProductRice: w(0)},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if report.TotalSold != w(70) || !report.TotalSoldValue.Equal(types.MustMoney("7000")) {
			t.Errorf("unexpected totals: %+v", report)
		}
		for _, change := range lotRepo.statusChanges {
			if change.to != lots.StatusSold {
				t.Errorf("expected all lots sold, got %+v", change)
			}
		}
	})
}

func TestReconcile_Idempotency(t *testing.T) {
	lotAID, lotBID := id.New(), id.New()
	loadRepo := &fakeLoadRepo{load: riceLoad(lotAID, lotBID)}
	loadID := loadRepo.load.ID
	engine := newTestEngine(loadRepo, &fakeLotRepo{}, newFakeLedgerRepo(), &fakeReportRepo{})
	input := Input{
		LoadID:    loadID,
		Remaining: map[lots.ProductType]types.Weight{lots.ProductRice: w(20)},
	}

	if _, err := engine.Reconcile(context.Background(), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The load is gone, so settling it again fails before touching stock.
	_, err := engine.Reconcile(context.Background(), input)
	if !apperror.IsNotFound(err) {
		t.Fatalf("expected NOT_FOUND on repeat reconcile, got %v", err)
	}
}

func TestReconcile_Validation(t *testing.T) {
	lotAID, lotBID := id.New(), id.New()

	tests := []struct {
		name      string
		remaining map[lots.ProductType]types.Weight
	}{
		{
			name:      "missing product type",
			remaining: map[lots.ProductType]types.Weight{},
		},
		{
			name: "unknown product type",
			remaining: map[lots.ProductType]types.Weight{
				lots.ProductRice: w(20),
				lots.ProductHusk: w(5),
			},
		},
		{
			name:      "negative remaining",
			remaining: map[lots.ProductType]types.Weight{lots.ProductRice: w(-1)},
		},
		{
			name:      "remaining exceeds loaded",
			remaining: map[lots.ProductType]types.Weight{lots.ProductRice: w(71)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loadRepo := &fakeLoadRepo{load: riceLoad(lotAID, lotBID)}
			lotRepo := &fakeLotRepo{}
			engine := newTestEngine(loadRepo, lotRepo, newFakeLedgerRepo(), &fakeReportRepo{})

			_, err := engine.Reconcile(context.Background(), Input{
				LoadID:    loadRepo.load.ID,
				Remaining: tt.remaining,
			})
			if !apperror.IsValidation(err) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if len(lotRepo.statusChanges) != 0 || len(lotRepo.markedSold) != 0 {
				t.Errorf("validation failure must not touch lots")
			}
			if len(loadRepo.deleted) != 0 {
				t.Errorf("validation failure must not delete the load")
			}
		})
	}
}
