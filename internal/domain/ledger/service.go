package ledger

import (
	"context"

	"millstock/internal/core/apperror"
	"millstock/internal/domain/lots"
	"millstock/pkg/logger"
)

// Service provides business operations for the stock ledger.
// Transactions are managed by the caller (committer / reconciliation engine).
type Service struct {
	repo Repository
}

// NewService creates a new ledger service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Apply validates and applies a delta for a product type.
// allowIntake permits a positive weight shift (new stock entering the
// system); allocate/reconcile callers must pass false so a bug in delta
// construction cannot silently create or destroy goods-weight.
func (s *Service) Apply(ctx context.Context, productType lots.ProductType, delta Delta, allowIntake bool) error {
	if !productType.Valid() {
		return apperror.NewValidation("unknown product type").
			WithDetail("productType", string(productType))
	}
	if delta.IsZero() {
		return nil
	}

	shift := delta.WeightShift()
	if !shift.IsZero() && !(allowIntake && shift.IsPositive()) {
		return apperror.NewInternal(nil).
			WithDetail("reason", "ledger delta violates weight conservation").
			WithDetail("product_type", string(productType)).
			WithDetail("shift", shift.String())
	}

	if err := s.repo.ApplyDelta(ctx, productType, delta); err != nil {
		return err
	}

	logger.Debug(ctx, "ledger delta applied",
		"product_type", productType,
		"bagged", delta.BaggedTotal.String(),
		"loaded", delta.LoadedTotal.String(),
		"sold", delta.SoldTotal.String(),
	)
	return nil
}

// Get returns totals for one product type.
func (s *Service) Get(ctx context.Context, productType lots.ProductType) (*StockTotals, error) {
	if !productType.Valid() {
		return nil, apperror.NewValidation("unknown product type").
			WithDetail("productType", string(productType))
	}
	return s.repo.Get(ctx, productType)
}

// ListAll returns totals for all product types.
func (s *Service) ListAll(ctx context.Context) ([]*StockTotals, error) {
	return s.repo.ListAll(ctx)
}
