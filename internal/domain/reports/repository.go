package reports

import (
	"context"

	"millstock/internal/core/id"
	"millstock/internal/domain"
)

// Repository persists load reports. Reports are immutable: create and read
// only, no update and no delete.
type Repository interface {
	Create(ctx context.Context, report *LoadReport) error
	GetByID(ctx context.Context, reportID id.ID) (*LoadReport, error)
	List(ctx context.Context, filter ListFilter) (domain.ListResult[*LoadReport], error)
}

// Service provides read access to load reports.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) GetByID(ctx context.Context, reportID id.ID) (*LoadReport, error) {
	return s.repo.GetByID(ctx, reportID)
}

func (s *Service) List(ctx context.Context, filter ListFilter) (domain.ListResult[*LoadReport], error) {
	return s.repo.List(ctx, filter)
}
