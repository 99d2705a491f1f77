// Package intake records newly bagged lots entering stock.
package intake

import (
	"context"
	"fmt"

	"millstock/internal/core/apperror"
	"millstock/internal/core/tenant"
	"millstock/internal/core/tx"
	"millstock/internal/core/types"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/lots"
	"millstock/pkg/logger"
)

// BagInput describes one bag to take into stock.
type BagInput struct {
	ProductType lots.ProductType
	Weight      types.Weight
	Price       types.Money
}

// Service takes bagged lots into stock: the lot rows and the matching
// ledger increase are written in one transaction, so totals and lots can
// never disagree. Intake is the only operation allowed to grow the
// system's total weight.
type Service struct {
	lotRepo   lots.Repository
	ledger    *ledger.Service
	txManager tx.Manager // Optional. If nil, obtained from context (DB-per-tenant).
}

// NewService creates an intake service.
func NewService(lotRepo lots.Repository, ledgerSvc *ledger.Service, txManager tx.Manager) *Service {
	return &Service{lotRepo: lotRepo, ledger: ledgerSvc, txManager: txManager}
}

func (s *Service) getTxManager(ctx context.Context) (tx.Manager, error) {
	if s.txManager != nil {
		return s.txManager, nil
	}
	return tenant.GetTxManager(ctx)
}

// Intake creates available lots for the given bags and adds their weight to
// the bagged totals.
func (s *Service) Intake(ctx context.Context, bags []BagInput) ([]*lots.Lot, error) {
	if len(bags) == 0 {
		return nil, apperror.NewValidation("at least one bag is required").
			WithDetail("field", "bags")
	}

	created := make([]*lots.Lot, 0, len(bags))
	deltas := make(map[lots.ProductType]ledger.Delta, len(bags))
	for i, bag := range bags {
		lot := lots.NewLot(bag.ProductType, bag.Weight, bag.Price)
		if err := lot.Validate(ctx); err != nil {
			if appErr, ok := err.(*apperror.AppError); ok {
				return nil, appErr.WithDetail("bagNo", i+1)
			}
			return nil, err
		}
		created = append(created, lot)
		deltas[bag.ProductType] = deltas[bag.ProductType].Add(ledger.Delta{
			BaggedTotal:    bag.Weight,
			BaggedBagCount: 1,
		})
	}

	txm, err := s.getTxManager(ctx)
	if err != nil {
		return nil, apperror.NewInternal(err).WithDetail("missing", "tx_manager")
	}
	err = txm.RunInTransaction(ctx, func(ctx context.Context) error {
		if err := s.lotRepo.CreateBatch(ctx, created); err != nil {
			return fmt.Errorf("create lots: %w", err)
		}
		for productType, delta := range deltas {
			if err := s.ledger.Apply(ctx, productType, delta, true); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "lots taken into stock", "bags", len(created))
	return created, nil
}
