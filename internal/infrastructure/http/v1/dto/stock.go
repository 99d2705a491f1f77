package dto

import (
	"time"

	"millstock/internal/core/types"
	"millstock/internal/domain/ledger"
)

// StockTotalsResponse is the aggregate picture for one product type.
type StockTotalsResponse struct {
	ProductType string `json:"productType"`

	BaggedTotal    types.Weight `json:"baggedTotal"`
	BaggedBagCount int          `json:"baggedBagCount"`

	LoadedTotal    types.Weight `json:"loadedTotal"`
	LoadedBagCount int          `json:"loadedBagCount"`

	SoldTotal types.Weight `json:"soldTotal"`
	SoldValue types.Money  `json:"soldValue"`

	LastUpdated time.Time `json:"lastUpdated"`
}

func FromStockTotals(t *ledger.StockTotals) StockTotalsResponse {
	return StockTotalsResponse{
		ProductType:    string(t.ProductType),
		BaggedTotal:    t.BaggedTotal,
		BaggedBagCount: t.BaggedBagCount,
		LoadedTotal:    t.LoadedTotal,
		LoadedBagCount: t.LoadedBagCount,
		SoldTotal:      t.SoldTotal,
		SoldValue:      t.SoldValue,
		LastUpdated:    t.LastUpdated,
	}
}

// StockTotalsListResponse is the response for the totals endpoint.
type StockTotalsListResponse struct {
	Totals []StockTotalsResponse `json:"totals"`

	// Cached reports whether the response was served from cache.
	Cached bool `json:"cached"`
}

func FromStockTotalsList(items []*ledger.StockTotals, cached bool) *StockTotalsListResponse {
	resp := &StockTotalsListResponse{
		Totals: make([]StockTotalsResponse, len(items)),
		Cached: cached,
	}
	for i, t := range items {
		resp.Totals[i] = FromStockTotals(t)
	}
	return resp
}
