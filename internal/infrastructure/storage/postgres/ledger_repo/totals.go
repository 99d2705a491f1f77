// Package ledger_repo provides the PostgreSQL implementation of the
// aggregate stock ledger.
// In Database-per-Tenant architecture, TxManager is obtained from context.
package ledger_repo

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"

	"millstock/internal/domain/ledger"
	"millstock/internal/domain/lots"
	"millstock/internal/infrastructure/storage/postgres"
)

const totalsTable = "reg_stock_totals"

// applyDeltaSQL adds the signed delta to the row in place. Relative updates
// keep concurrent commits from overwriting each other's totals; there is no
// read-modify-write anywhere on this table.
const applyDeltaSQL = `
	INSERT INTO reg_stock_totals (
		product_type,
		bagged_total, bagged_bag_count,
		loaded_total, loaded_bag_count,
		sold_total, sold_value,
		last_updated
	)
	VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
	ON CONFLICT (product_type) DO UPDATE SET
		bagged_total     = reg_stock_totals.bagged_total     + EXCLUDED.bagged_total,
		bagged_bag_count = reg_stock_totals.bagged_bag_count + EXCLUDED.bagged_bag_count,
		loaded_total     = reg_stock_totals.loaded_total     + EXCLUDED.loaded_total,
		loaded_bag_count = reg_stock_totals.loaded_bag_count + EXCLUDED.loaded_bag_count,
		sold_total       = reg_stock_totals.sold_total       + EXCLUDED.sold_total,
		sold_value       = reg_stock_totals.sold_value       + EXCLUDED.sold_value,
		last_updated     = NOW()
`

var totalsColumns = postgres.ExtractDBColumns[ledger.StockTotals]()

// LedgerRepo implements ledger.Repository.
type LedgerRepo struct {
	builder squirrel.StatementBuilderType
}

// NewLedgerRepo creates a new stock ledger repository.
func NewLedgerRepo() *LedgerRepo {
	return &LedgerRepo{
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

func (r *LedgerRepo) getTxManager(ctx context.Context) *postgres.TxManager {
	return postgres.MustGetTxManager(ctx)
}

// ApplyDelta applies a signed adjustment to one product type's totals,
// creating the row on first touch.
func (r *LedgerRepo) ApplyDelta(ctx context.Context, productType lots.ProductType, delta ledger.Delta) error {
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	_, err := querier.Exec(ctx, applyDeltaSQL,
		productType,
		delta.BaggedTotal.Int64Scaled(), delta.BaggedBagCount,
		delta.LoadedTotal.Int64Scaled(), delta.LoadedBagCount,
		delta.SoldTotal.Int64Scaled(), delta.SoldValue,
	)
	if err != nil {
		return fmt.Errorf("apply ledger delta: %w", err)
	}
	return nil
}

// Get returns totals for one product type. Product types never touched yet
// report zero totals rather than NOT_FOUND.
func (r *LedgerRepo) Get(ctx context.Context, productType lots.ProductType) (*ledger.StockTotals, error) {
	q := r.builder.Select(totalsColumns...).
		From(totalsTable).
		Where(squirrel.Eq{"product_type": productType})

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var totals ledger.StockTotals
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Get(ctx, querier, &totals, sql, args...); err != nil {
		if pgxscan.NotFound(err) {
			return &ledger.StockTotals{ProductType: productType}, nil
		}
		return nil, fmt.Errorf("get totals: %w", err)
	}

	return &totals, nil
}

// ListAll returns totals for every product type, including zero rows for
// types with no movements yet.
func (r *LedgerRepo) ListAll(ctx context.Context) ([]*ledger.StockTotals, error) {
	q := r.builder.Select(totalsColumns...).
		From(totalsTable).
		OrderBy("product_type")

	sql, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	var stored []*ledger.StockTotals
	querier := r.getTxManager(ctx).GetQuerier(ctx)
	if err := pgxscan.Select(ctx, querier, &stored, sql, args...); err != nil {
		return nil, fmt.Errorf("list totals: %w", err)
	}

	byType := make(map[lots.ProductType]*ledger.StockTotals, len(stored))
	for _, totals := range stored {
		byType[totals.ProductType] = totals
	}

	result := make([]*ledger.StockTotals, 0, len(lots.AllProductTypes()))
	for _, productType := range lots.AllProductTypes() {
		if totals, ok := byType[productType]; ok {
			result = append(result, totals)
			continue
		}
		result = append(result, &ledger.StockTotals{ProductType: productType})
	}

	return result, nil
}

// Ensure interface compliance.
var _ ledger.Repository = (*LedgerRepo)(nil)
