package dto

import (
	"time"

	"millstock/internal/core/types"
	"millstock/internal/domain/reports"
)

type LotRefResponse struct {
	LotID      string       `json:"lotId"`
	WeightUsed types.Weight `json:"weightUsed"`
}

type ReportLineResponse struct {
	LineNo       int          `json:"lineNo"`
	ProductType  string       `json:"productType"`
	PricePerUnit types.Money  `json:"pricePerUnit"`

	LoadedQuantity    types.Weight `json:"loadedQuantity"`
	SoldQuantity      types.Weight `json:"soldQuantity"`
	RemainingQuantity types.Weight `json:"remainingQuantity"`

	SoldValue types.Money      `json:"soldValue"`
	LotsUsed  []LotRefResponse `json:"lotsUsed"`
}

type LoadReportResponse struct {
	ID         string `json:"id"`
	LoadID     string `json:"loadId"`
	LoadNumber string `json:"loadNumber"`
	Assignee   string `json:"assignee"`

	Lines []ReportLineResponse `json:"lines,omitempty"`

	TotalLoaded    types.Weight `json:"totalLoaded"`
	TotalSold      types.Weight `json:"totalSold"`
	TotalRemaining types.Weight `json:"totalRemaining"`
	TotalSoldValue types.Money  `json:"totalSoldValue"`

	LoadedAt     time.Time `json:"loadedAt"`
	ReconciledAt time.Time `json:"reconciledAt"`
}

func FromLoadReport(r *reports.LoadReport) *LoadReportResponse {
	resp := &LoadReportResponse{
		ID:             r.ID.String(),
		LoadID:         r.LoadID.String(),
		LoadNumber:     r.LoadNumber,
		Assignee:       r.Assignee,
		TotalLoaded:    r.TotalLoaded,
		TotalSold:      r.TotalSold,
		TotalRemaining: r.TotalRemaining,
		TotalSoldValue: r.TotalSoldValue,
		LoadedAt:       r.LoadedAt,
		ReconciledAt:   r.ReconciledAt,
	}
	if len(r.Lines) > 0 {
		resp.Lines = make([]ReportLineResponse, len(r.Lines))
		for i, line := range r.Lines {
			refs := make([]LotRefResponse, len(line.LotsUsed))
			for j, ref := range line.LotsUsed {
				refs[j] = LotRefResponse{
					LotID:      ref.LotID.String(),
					WeightUsed: ref.WeightUsed,
				}
			}
			resp.Lines[i] = ReportLineResponse{
				LineNo:            line.LineNo,
				ProductType:       string(line.ProductType),
				PricePerUnit:      line.PricePerUnit,
				LoadedQuantity:    line.LoadedQuantity,
				SoldQuantity:      line.SoldQuantity,
				RemainingQuantity: line.RemainingQuantity,
				SoldValue:         line.SoldValue,
				LotsUsed:          refs,
			}
		}
	}
	return resp
}

func FromLoadReportList(items []*reports.LoadReport) []*LoadReportResponse {
	out := make([]*LoadReportResponse, len(items))
	for i, r := range items {
		out[i] = FromLoadReport(r)
	}
	return out
}

// ReportListQuery filters report listings.
type ReportListQuery struct {
	ListQuery
	Assignee string     `form:"assignee"`
	From     *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To       *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}
