package loads

import (
	"context"

	"millstock/internal/core/id"
	"millstock/internal/domain"
)

// ListFilter filters load listings.
type ListFilter struct {
	domain.ListFilter
	Assignee string
}

// Repository persists load documents.
type Repository interface {
	// Create inserts the load header and its lines.
	Create(ctx context.Context, load *Load) error

	// GetByID loads the document with its lines.
	GetByID(ctx context.Context, loadID id.ID) (*Load, error)

	// GetForUpdate loads the document with a row lock for reconciliation.
	// Must run inside a transaction.
	GetForUpdate(ctx context.Context, loadID id.ID) (*Load, error)

	// Delete removes the load and its lines. Reconciliation calls this in
	// the same transaction that writes the report.
	Delete(ctx context.Context, loadID id.ID) error

	List(ctx context.Context, filter ListFilter) (domain.ListResult[*Load], error)
}
