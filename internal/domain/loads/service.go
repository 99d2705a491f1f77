package loads

import (
	"context"
	"fmt"
	"time"

	"millstock/internal/core/apperror"
	appctx "millstock/internal/core/context"
	"millstock/internal/core/id"
	"millstock/internal/core/tenant"
	"millstock/internal/core/tx"
	"millstock/internal/core/types"
	"millstock/internal/domain"
	"millstock/internal/domain/allocation"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/lots"
	"millstock/pkg/logger"
	"millstock/pkg/numerator"
)

// CommitInput is the request to commit one or more allocation plans as a load.
type CommitInput struct {
	Plans    []*allocation.Plan
	Assignee string
	Notes    string
}

// Service is the load committer.
// Commit re-validates every planned lot inside a SERIALIZABLE transaction:
// the expected-status guard on ClaimForLoad plus serializable isolation
// guarantee that a plan built against stale availability fails with
// CONCURRENT_MODIFICATION instead of double-allocating a lot.
//
// In Database-per-Tenant architecture, TxManager is obtained from context.
type Service struct {
	repo      Repository
	lotRepo   lots.Repository
	ledger    *ledger.Service
	numerator *numerator.Service
	txManager tx.Manager // Optional. If nil, obtained from context (DB-per-tenant).
}

// NewService creates a new load committer.
func NewService(
	repo Repository,
	lotRepo lots.Repository,
	ledgerSvc *ledger.Service,
	num *numerator.Service,
	txManager tx.Manager,
) *Service {
	return &Service{
		repo:      repo,
		lotRepo:   lotRepo,
		ledger:    ledgerSvc,
		numerator: num,
		txManager: txManager,
	}
}

func (s *Service) getTxManager(ctx context.Context) (tx.Manager, error) {
	if s.txManager != nil {
		return s.txManager, nil
	}
	return tenant.GetTxManager(ctx)
}

// Commit atomically turns allocation plans into a load document.
//
// All selected lots move available -> loaded, partially consumed lots are
// split (the unconsumed weight becomes a fresh available lot keeping the
// parent's bagging time so stock rotation is not disturbed), and the stock
// ledger shifts the committed weight from bagged to loaded. Everything
// happens in one serializable transaction; on any failure no lot and no
// total changes.
func (s *Service) Commit(ctx context.Context, input CommitInput) (*Load, error) {
	if len(input.Plans) == 0 {
		return nil, apperror.NewValidation("at least one plan is required").
			WithDetail("field", "plans")
	}

	load := NewLoad(input.Assignee, input.Notes)
	load.CreatedBy = appctx.GetUserID(ctx)
	for _, plan := range input.Plans {
		if plan == nil || len(plan.Items) == 0 {
			return nil, apperror.NewValidation("plan has no lot selections")
		}
		load.AddLine(plan)
	}
	if err := load.Validate(ctx); err != nil {
		return nil, err
	}

	// Number before the transaction: strict numbering takes its own row
	// lock on the sequence table and must not extend the serializable
	// footprint.
	cfg := numerator.DefaultConfig("LD")
	number, err := s.numerator.GetNextNumber(ctx, cfg, &numerator.Options{Strategy: NumeratorStrategy}, time.Now())
	if err != nil {
		return nil, fmt.Errorf("generate number: %w", err)
	}
	load.Number = number

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}

	err = txm.RunSerializable(ctx, func(ctx context.Context) error {
		for i := range load.Lines {
			if err := s.commitLine(ctx, &load.Lines[i], input.Plans[i]); err != nil {
				return err
			}
		}
		if err := s.repo.Create(ctx, load); err != nil {
			return fmt.Errorf("create load: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "load committed",
		"id", load.ID,
		"number", load.Number,
		"assignee", load.Assignee,
		"total_weight", load.TotalWeight.String(),
		"total_value", load.TotalValue.String(),
	)
	return load, nil
}

// commitLine claims the line's lots, splits the residual and applies the
// ledger delta. Must run inside the commit transaction.
func (s *Service) commitLine(ctx context.Context, line *Line, plan *allocation.Plan) error {
	for _, item := range plan.Items {
		if err := s.lotRepo.ClaimForLoad(ctx, item.LotID, item.WeightUsed); err != nil {
			return err
		}
	}

	residual := plan.ResidualWeight()
	if residual.IsPositive() {
		parent := plan.Items[len(plan.Items)-1]
		if err := s.splitResidual(ctx, line.ProductType, parent.LotID, residual, parent.PricePerUnit); err != nil {
			return err
		}
	}

	// Weight moves bagged -> loaded; bag counts follow the lots, with the
	// residual split adding one bag back on the bagged side.
	delta := ledger.Delta{
		BaggedTotal:    -line.Quantity,
		BaggedBagCount: -line.LotsConsumed + line.ResidualBags,
		LoadedTotal:    line.Quantity,
		LoadedBagCount: line.LotsConsumed,
	}
	return s.ledger.Apply(ctx, line.ProductType, delta, false)
}

// splitResidual creates the available lot carrying the unconsumed weight of
// a partially claimed lot. It inherits the parent's bagging time so FIFO
// ordering keeps treating the remainder as old stock.
func (s *Service) splitResidual(ctx context.Context, productType lots.ProductType, parentID id.ID, weight types.Weight, price types.Money) error {
	parent, err := s.lotRepo.GetByID(ctx, parentID)
	if err != nil {
		return fmt.Errorf("load parent lot: %w", err)
	}

	residual := lots.NewLot(productType, weight, price)
	residual.CreatedAt = parent.CreatedAt
	if err := s.lotRepo.Create(ctx, residual); err != nil {
		return fmt.Errorf("create residual lot: %w", err)
	}

	logger.Debug(ctx, "residual lot split",
		"parent_id", parentID,
		"residual_id", residual.ID,
		"weight", weight.String(),
	)
	return nil
}

// GetByID retrieves a load with lines.
func (s *Service) GetByID(ctx context.Context, loadID id.ID) (*Load, error) {
	return s.repo.GetByID(ctx, loadID)
}

// List retrieves loads with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Load], error) {
	return s.repo.List(ctx, filter)
}
