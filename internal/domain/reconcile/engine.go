// Package reconcile provides the load reconciliation engine.
// Reconciliation settles a load when the representative returns: sold weight
// is recorded, unsold weight goes back to available stock weight-exact, a
// permanent report is written and the load document is deleted. The whole
// settlement is one serializable transaction.
package reconcile

import (
	"context"
	"fmt"
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/core/tenant"
	"millstock/internal/core/tx"
	"millstock/internal/core/types"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/loads"
	"millstock/internal/domain/lots"
	"millstock/internal/domain/reports"
	"millstock/pkg/logger"
)

// Input is a reconciliation request. Remaining maps every product type on
// the load to the unsold weight brought back.
type Input struct {
	LoadID    id.ID
	Remaining map[lots.ProductType]types.Weight
}

// Engine settles loads.
// Deleting the load inside the settlement transaction is what makes
// reconciliation idempotent: a second attempt finds no load and fails with
// NOT_FOUND before touching stock.
type Engine struct {
	loadRepo   loads.Repository
	lotRepo    lots.Repository
	ledger     *ledger.Service
	reportRepo reports.Repository
	txManager  tx.Manager // Optional. If nil, obtained from context (DB-per-tenant).
}

// NewEngine creates a reconciliation engine.
func NewEngine(
	loadRepo loads.Repository,
	lotRepo lots.Repository,
	ledgerSvc *ledger.Service,
	reportRepo reports.Repository,
	txManager tx.Manager,
) *Engine {
	return &Engine{
		loadRepo:   loadRepo,
		lotRepo:    lotRepo,
		ledger:     ledgerSvc,
		reportRepo: reportRepo,
		txManager:  txManager,
	}
}

func (e *Engine) getTxManager(ctx context.Context) (tx.Manager, error) {
	if e.txManager != nil {
		return e.txManager, nil
	}
	return tenant.GetTxManager(ctx)
}

// Reconcile settles the load and returns the report it produced.
func (e *Engine) Reconcile(ctx context.Context, input Input) (*reports.LoadReport, error) {
	txm, err := e.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}

	var report *reports.LoadReport
	err = txm.RunSerializable(ctx, func(ctx context.Context) error {
		load, err := e.loadRepo.GetForUpdate(ctx, input.LoadID)
		if err != nil {
			return err
		}

		if err := validateRemaining(load, input.Remaining); err != nil {
			return err
		}

		report = newReport(load)
		for i := range load.Lines {
			line := &load.Lines[i]
			remaining := input.Remaining[line.ProductType]

			restoredBags, err := e.restoreLots(ctx, line, remaining)
			if err != nil {
				return err
			}

			sold := line.Quantity - remaining
			soldValue := sold.Decimal().Mul(line.PricePerUnit)

			report.Lines = append(report.Lines, buildReportLine(line, sold, remaining, soldValue))

			// Remaining weight goes back to bagged, the rest is sold;
			// loaded drains completely. Bag counts follow the lots.
			delta := ledger.Delta{
				BaggedTotal:    remaining,
				BaggedBagCount: restoredBags,
				LoadedTotal:    -line.Quantity,
				LoadedBagCount: -len(line.LotsUsed),
				SoldTotal:      sold,
				SoldValue:      soldValue,
			}
			if err := e.ledger.Apply(ctx, line.ProductType, delta, false); err != nil {
				return err
			}
		}
		report.RecalculateTotals()

		if err := e.reportRepo.Create(ctx, report); err != nil {
			return fmt.Errorf("create report: %w", err)
		}
		if err := e.loadRepo.Delete(ctx, load.ID); err != nil {
			return fmt.Errorf("delete load: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "load reconciled",
		"load_id", input.LoadID,
		"number", report.LoadNumber,
		"sold", report.TotalSold.String(),
		"remaining", report.TotalRemaining.String(),
		"sold_value", report.TotalSoldValue.String(),
	)
	return report, nil
}

// restoreLots walks the line's lot usage in reverse consumption order,
// restoring remaining weight to available stock. The last-consumed lot is
// restored first, so a partial restoration splits at most one lot: the
// sold portion stays on the original lot (marked sold) and the unsold
// portion becomes a fresh available lot. A restored split gets the current
// time as its bagging time since the weight re-enters stock now.
//
// Returns the number of available bags created.
func (e *Engine) restoreLots(ctx context.Context, line *loads.Line, remaining types.Weight) (int, error) {
	toRestore := remaining
	restoredBags := 0

	for i := len(line.LotsUsed) - 1; i >= 0; i-- {
		usage := line.LotsUsed[i]

		switch {
		case toRestore >= usage.WeightUsed:
			// Fully unsold: the lot goes back to available as-is.
			if err := e.lotRepo.UpdateStatus(ctx, usage.LotID, lots.StatusLoaded, lots.StatusAvailable); err != nil {
				return 0, err
			}
			toRestore -= usage.WeightUsed
			restoredBags++

		case toRestore.IsPositive():
			// Boundary lot: part sold, part restored.
			soldPortion := usage.WeightUsed - toRestore
			if err := e.lotRepo.MarkSoldWithWeight(ctx, usage.LotID, soldPortion); err != nil {
				return 0, err
			}

			restored := lots.NewLot(line.ProductType, toRestore, usage.PricePerUnit)
			if err := e.lotRepo.Create(ctx, restored); err != nil {
				return 0, fmt.Errorf("create restored lot: %w", err)
			}
			toRestore = 0
			restoredBags++

		default:
			// Fully sold.
			if err := e.lotRepo.UpdateStatus(ctx, usage.LotID, lots.StatusLoaded, lots.StatusSold); err != nil {
				return 0, err
			}
		}
	}

	return restoredBags, nil
}

// validateRemaining checks the remaining map covers exactly the load's
// product types with weights within the loaded quantities.
func validateRemaining(load *loads.Load, remaining map[lots.ProductType]types.Weight) error {
	for productType := range remaining {
		if load.LineByProduct(productType) == nil {
			return apperror.NewValidation("product type is not on the load").
				WithDetail("productType", string(productType))
		}
	}

	for _, line := range load.Lines {
		rem, ok := remaining[line.ProductType]
		if !ok {
			return apperror.NewValidation("remaining weight is required for every product type on the load").
				WithDetail("productType", string(line.ProductType))
		}
		if rem.IsNegative() {
			return apperror.NewValidation("remaining weight cannot be negative").
				WithDetail("productType", string(line.ProductType)).
				WithDetail("remaining", rem.String())
		}
		if rem > line.Quantity {
			return apperror.NewValidation("remaining weight exceeds loaded quantity").
				WithDetail("productType", string(line.ProductType)).
				WithDetail("remaining", rem.String()).
				WithDetail("loaded", line.Quantity.String())
		}
	}
	return nil
}

func newReport(load *loads.Load) *reports.LoadReport {
	return &reports.LoadReport{
		ID:           id.New(),
		LoadID:       load.ID,
		LoadNumber:   load.Number,
		Assignee:     load.Assignee,
		Lines:        make([]reports.ReportLine, 0, len(load.Lines)),
		LoadedAt:     load.CreatedAt,
		ReconciledAt: time.Now().UTC(),
	}
}

func buildReportLine(line *loads.Line, sold, remaining types.Weight, soldValue types.Money) reports.ReportLine {
	refs := make([]reports.LotRef, 0, len(line.LotsUsed))
	for _, u := range line.LotsUsed {
		refs = append(refs, reports.LotRef{LotID: u.LotID, WeightUsed: u.WeightUsed})
	}
	return reports.ReportLine{
		LineNo:            line.LineNo,
		ProductType:       line.ProductType,
		PricePerUnit:      line.PricePerUnit,
		LoadedQuantity:    line.Quantity,
		SoldQuantity:      sold,
		RemainingQuantity: remaining,
		SoldValue:         soldValue,
		LotsUsed:          refs,
	}
}
