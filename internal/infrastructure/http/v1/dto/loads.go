package dto

import (
	"time"

	"millstock/internal/core/types"
	"millstock/internal/domain/allocation"
	"millstock/internal/domain/loads"
)

// --- Request DTOs ---

// AllocationLineRequest asks for a quantity of one product type.
// TierID is required only when the product is stocked at several prices.
type AllocationLineRequest struct {
	ProductType string       `json:"productType" binding:"required"`
	Quantity    types.Weight `json:"quantity" binding:"required"`
	TierID      string       `json:"tierId,omitempty"`
}

// PlanRequest previews the lot allocation for a set of lines without
// committing anything.
type PlanRequest struct {
	Lines []AllocationLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// CommitLoadRequest commits a load. The allocation is planned and claimed
// inside one transaction; a concurrent claim on any selected lot fails the
// whole commit.
type CommitLoadRequest struct {
	Lines    []AllocationLineRequest `json:"lines" binding:"required,min=1,dive"`
	Assignee string                  `json:"assignee" binding:"required"`
	Notes    string                  `json:"notes,omitempty"`
}

// ReconcileRequest settles a load: remaining maps each product type of the
// load to the weight that came back unsold.
type ReconcileRequest struct {
	Remaining map[string]types.Weight `json:"remaining" binding:"required"`
}

// --- Response DTOs ---

type PlanItemResponse struct {
	LotID        string       `json:"lotId"`
	WeightUsed   types.Weight `json:"weightUsed"`
	LotWeight    types.Weight `json:"lotWeight"`
	PricePerUnit types.Money  `json:"pricePerUnit"`
}

type PlanResponse struct {
	ProductType    string             `json:"productType"`
	TierID         string             `json:"tierId"`
	Quantity       types.Weight       `json:"quantity"`
	PricePerUnit   types.Money        `json:"pricePerUnit"`
	TotalValue     types.Money        `json:"totalValue"`
	LotsConsumed   int                `json:"lotsConsumed"`
	ResidualWeight types.Weight       `json:"residualWeight"`
	Items          []PlanItemResponse `json:"items"`
}

func FromPlan(p *allocation.Plan) *PlanResponse {
	resp := &PlanResponse{
		ProductType:    string(p.ProductType),
		TierID:         p.TierID,
		Quantity:       p.Quantity,
		PricePerUnit:   p.PricePerUnit,
		TotalValue:     p.TotalValue(),
		LotsConsumed:   p.LotsConsumed(),
		ResidualWeight: p.ResidualWeight(),
		Items:          make([]PlanItemResponse, len(p.Items)),
	}
	for i, item := range p.Items {
		resp.Items[i] = PlanItemResponse{
			LotID:        item.LotID.String(),
			WeightUsed:   item.WeightUsed,
			LotWeight:    item.LotWeight,
			PricePerUnit: item.PricePerUnit,
		}
	}
	return resp
}

type PlanPreviewResponse struct {
	Plans       []*PlanResponse `json:"plans"`
	TotalWeight types.Weight    `json:"totalWeight"`
	TotalValue  types.Money     `json:"totalValue"`
}

func FromPlans(plans []*allocation.Plan) *PlanPreviewResponse {
	resp := &PlanPreviewResponse{
		Plans:      make([]*PlanResponse, len(plans)),
		TotalValue: types.ZeroMoney(),
	}
	for i, p := range plans {
		resp.Plans[i] = FromPlan(p)
		resp.TotalWeight += p.Quantity
		resp.TotalValue = resp.TotalValue.Add(p.TotalValue())
	}
	return resp
}

type LotUsageResponse struct {
	LotID        string       `json:"lotId"`
	WeightUsed   types.Weight `json:"weightUsed"`
	PricePerUnit types.Money  `json:"pricePerUnit"`
}

type LoadLineResponse struct {
	LineID       string             `json:"lineId"`
	LineNo       int                `json:"lineNo"`
	ProductType  string             `json:"productType"`
	Quantity     types.Weight       `json:"quantity"`
	PricePerUnit types.Money        `json:"pricePerUnit"`
	TotalValue   types.Money        `json:"totalValue"`
	LotsUsed     []LotUsageResponse `json:"lotsUsed"`
}

type LoadResponse struct {
	ID          string             `json:"id"`
	Number      string             `json:"number"`
	Assignee    string             `json:"assignee"`
	Notes       string             `json:"notes,omitempty"`
	TotalWeight types.Weight       `json:"totalWeight"`
	TotalValue  types.Money        `json:"totalValue"`
	Lines       []LoadLineResponse `json:"lines,omitempty"`
	Version     int                `json:"version"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
}

func FromLoad(l *loads.Load) *LoadResponse {
	resp := &LoadResponse{
		ID:          l.ID.String(),
		Number:      l.Number,
		Assignee:    l.Assignee,
		Notes:       l.Notes,
		TotalWeight: l.TotalWeight,
		TotalValue:  l.TotalValue,
		Version:     l.Version,
		CreatedAt:   l.CreatedAt,
		UpdatedAt:   l.UpdatedAt,
	}
	if len(l.Lines) > 0 {
		resp.Lines = make([]LoadLineResponse, len(l.Lines))
		for i, line := range l.Lines {
			usages := make([]LotUsageResponse, len(line.LotsUsed))
			for j, u := range line.LotsUsed {
				usages[j] = LotUsageResponse{
					LotID:        u.LotID.String(),
					WeightUsed:   u.WeightUsed,
					PricePerUnit: u.PricePerUnit,
				}
			}
			resp.Lines[i] = LoadLineResponse{
				LineID:       line.LineID.String(),
				LineNo:       line.LineNo,
				ProductType:  string(line.ProductType),
				Quantity:     line.Quantity,
				PricePerUnit: line.PricePerUnit,
				TotalValue:   line.TotalValue,
				LotsUsed:     usages,
			}
		}
	}
	return resp
}

func FromLoadList(items []*loads.Load) []*LoadResponse {
	out := make([]*LoadResponse, len(items))
	for i, l := range items {
		out[i] = FromLoad(l)
	}
	return out
}

// LoadListQuery filters load listings.
type LoadListQuery struct {
	ListQuery
	Assignee string `form:"assignee"`
}
