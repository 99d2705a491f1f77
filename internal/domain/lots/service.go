package lots

import (
	"context"
	"fmt"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/domain"
)

// Service provides read operations over the lot store.
// All mutations go through the load committer, the reconciliation engine,
// or the intake service — never through this service — so the conservation
// invariant is enforced in one place.
type Service struct {
	repo Repository
}

// NewService creates a new lot service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// GetByID retrieves a lot.
func (s *Service) GetByID(ctx context.Context, lotID id.ID) (*Lot, error) {
	lot, err := s.repo.GetByID(ctx, lotID)
	if err != nil {
		if apperror.IsNotFound(err) {
			return nil, apperror.NewNotFound("lot", lotID.String())
		}
		return nil, err
	}
	return lot, nil
}

// ListAvailable returns available lots of a product type, oldest first.
func (s *Service) ListAvailable(ctx context.Context, productType ProductType) ([]*Lot, error) {
	if !productType.Valid() {
		return nil, apperror.NewValidation("unknown product type").
			WithDetail("productType", string(productType))
	}
	return s.repo.ListAvailable(ctx, productType, OrderOldestFirst)
}

// ListTiers returns the price tiers currently available for a product type.
func (s *Service) ListTiers(ctx context.Context, productType ProductType) ([]PriceTier, error) {
	available, err := s.ListAvailable(ctx, productType)
	if err != nil {
		return nil, fmt.Errorf("list available: %w", err)
	}
	return BuildTiers(productType, available), nil
}

// List retrieves lots with filtering.
func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*Lot], error) {
	return s.repo.List(ctx, filter)
}
