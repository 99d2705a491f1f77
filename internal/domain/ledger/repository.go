package ledger

import (
	"context"

	"millstock/internal/domain/lots"
)

// Repository defines operations for the aggregate stock ledger.
type Repository interface {
	// ApplyDelta increments one product type's totals by the signed delta,
	// creating the row if it does not exist yet. Must be called inside the
	// transaction that carries the corresponding lot/load mutation.
	ApplyDelta(ctx context.Context, productType lots.ProductType, delta Delta) error

	// Get returns current totals for a product type (zero row if absent).
	Get(ctx context.Context, productType lots.ProductType) (*StockTotals, error)

	// ListAll returns totals for every product type that has a row.
	ListAll(ctx context.Context) ([]*StockTotals, error)
}
