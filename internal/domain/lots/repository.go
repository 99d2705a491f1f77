package lots

import (
	"context"

	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain"
)

// Order is the named allocation ordering policy for availability reads.
type Order string

const (
	// OrderOldestFirst consumes lots in bagging order (FIFO stock rotation).
	// This is the only policy the allocation engine ships with.
	OrderOldestFirst Order = "oldest_first"

	// OrderNewestFirst exists for ad-hoc queries only; the planner never
	// uses it.
	OrderNewestFirst Order = "newest_first"
)

// Repository defines operations on the lot store.
//
// Status-changing methods use an expected-status guard: the UPDATE only
// applies when the lot is still in the expected state, and a missed guard
// reports CONCURRENT_MODIFICATION. Combined with serializable commit
// transactions this closes the plan-then-commit race.
type Repository interface {
	// Create inserts a single lot.
	Create(ctx context.Context, lot *Lot) error

	// CreateBatch inserts many lots at once (seeding, intake batches).
	CreateBatch(ctx context.Context, batch []*Lot) error

	// GetByID retrieves a lot.
	GetByID(ctx context.Context, lotID id.ID) (*Lot, error)

	// ListAvailable returns available lots of a product type in the given
	// order.
	ListAvailable(ctx context.Context, productType ProductType, order Order) ([]*Lot, error)

	// ClaimForLoad transitions an available lot to loaded, shrinking its
	// weight to weightUsed when the lot is consumed partially.
	// Fails with CONCURRENT_MODIFICATION if the lot is no longer available.
	ClaimForLoad(ctx context.Context, lotID id.ID, weightUsed types.Weight) error

	// UpdateStatus transitions a lot from one status to another with an
	// expected-status guard.
	UpdateStatus(ctx context.Context, lotID id.ID, from, to Status) error

	// MarkSoldWithWeight marks a loaded lot sold, shrinking its weight to
	// the portion actually sold (partial restoration splits the rest into
	// a fresh available lot).
	MarkSoldWithWeight(ctx context.Context, lotID id.ID, soldWeight types.Weight) error

	// List retrieves lots with filtering and pagination.
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Lot], error)
}

// ListFilter for lot queries.
type ListFilter struct {
	domain.ListFilter

	ProductType *ProductType
	Status      *Status
}
