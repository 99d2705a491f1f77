package dto

import (
	"time"

	"millstock/internal/core/types"
	"millstock/internal/domain/lots"
)

// --- Lot DTOs ---

// LotResponse represents a lot in API responses.
type LotResponse struct {
	ID          string       `json:"id"`
	ProductType string       `json:"productType"`
	Weight      types.Weight `json:"weight"`
	Price       types.Money  `json:"price"`
	Status      string       `json:"status"`
	Version     int          `json:"version"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// FromLot converts a lot to response DTO.
func FromLot(l *lots.Lot) LotResponse {
	return LotResponse{
		ID:          l.ID.String(),
		ProductType: string(l.ProductType),
		Weight:      l.Weight,
		Price:       l.Price,
		Status:      string(l.Status),
		Version:     l.Version,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
}

// FromLots converts a slice of lots.
func FromLots(items []*lots.Lot) []LotResponse {
	out := make([]LotResponse, 0, len(items))
	for _, l := range items {
		out = append(out, FromLot(l))
	}
	return out
}

// LotListQuery filters lot listings.
type LotListQuery struct {
	ListQuery
	ProductType string `form:"productType"`
	Status      string `form:"status"`
}

// --- Intake DTOs ---

// IntakeBagRequest describes one bag entering stock.
type IntakeBagRequest struct {
	ProductType string       `json:"productType" binding:"required"`
	Weight      types.Weight `json:"weight" binding:"required"`
	Price       types.Money  `json:"price" binding:"required"`
}

// IntakeRequest records newly bagged lots.
type IntakeRequest struct {
	Bags []IntakeBagRequest `json:"bags" binding:"required,min=1,dive"`
}

// IntakeResponse returns the created lots.
type IntakeResponse struct {
	Lots []LotResponse `json:"lots"`
}

// --- Price Tier DTOs ---

// TierResponse represents a price tier of available stock.
type TierResponse struct {
	ProductType string       `json:"productType"`
	TierID      string       `json:"tierId"`
	Price       types.Money  `json:"price"`
	TotalWeight types.Weight `json:"totalWeight"`
	LotCount    int          `json:"lotCount"`
}

// FromTier converts a price tier to response DTO.
func FromTier(t lots.PriceTier) TierResponse {
	return TierResponse{
		ProductType: string(t.ProductType),
		TierID:      t.TierID,
		Price:       t.Price,
		TotalWeight: t.TotalWeight,
		LotCount:    t.LotCount,
	}
}
