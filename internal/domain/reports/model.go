// Package reports provides the immutable load report — the permanent record
// reconciliation leaves behind after a load document is settled and deleted.
package reports

import (
	"time"

	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain"
	"millstock/internal/domain/lots"
)

// ReportLine is the settled outcome for one product type of a load.
// Invariant: LoadedQuantity = SoldQuantity + RemainingQuantity.
type ReportLine struct {
	LineNo int `db:"line_no" json:"lineNo"`

	ProductType  lots.ProductType `db:"product_type" json:"productType"`
	PricePerUnit types.Money      `db:"price_per_unit" json:"pricePerUnit"`

	LoadedQuantity    types.Weight `db:"loaded_quantity" json:"loadedQuantity"`
	SoldQuantity      types.Weight `db:"sold_quantity" json:"soldQuantity"`
	RemainingQuantity types.Weight `db:"remaining_quantity" json:"remainingQuantity"`

	SoldValue types.Money `db:"sold_value" json:"soldValue"`

	// LotsUsed preserves the load line's lot references for traceability.
	LotsUsed []LotRef `db:"lots_used" json:"lotsUsed"`
}

// LotRef is a lot reference carried over from the load line.
type LotRef struct {
	LotID      id.ID        `json:"lotId"`
	WeightUsed types.Weight `json:"weightUsed"`
}

// LoadReport is the permanent settlement record of one load.
// Reports are append-only; there is no update or delete operation.
type LoadReport struct {
	ID id.ID `db:"id" json:"id"`

	// LoadID and LoadNumber identify the deleted load document.
	LoadID     id.ID  `db:"load_id" json:"loadId"`
	LoadNumber string `db:"load_number" json:"loadNumber"`
	Assignee   string `db:"assignee" json:"assignee"`

	Lines []ReportLine `db:"-" json:"lines"`

	TotalLoaded    types.Weight `db:"total_loaded" json:"totalLoaded"`
	TotalSold      types.Weight `db:"total_sold" json:"totalSold"`
	TotalRemaining types.Weight `db:"total_remaining" json:"totalRemaining"`
	TotalSoldValue types.Money  `db:"total_sold_value" json:"totalSoldValue"`

	// LoadedAt is the load's creation time, ReconciledAt the settlement time.
	LoadedAt     time.Time `db:"loaded_at" json:"loadedAt"`
	ReconciledAt time.Time `db:"reconciled_at" json:"reconciledAt"`
}

// RecalculateTotals recomputes totals from lines.
func (r *LoadReport) RecalculateTotals() {
	r.TotalLoaded = 0
	r.TotalSold = 0
	r.TotalRemaining = 0
	r.TotalSoldValue = types.ZeroMoney()
	for _, line := range r.Lines {
		r.TotalLoaded += line.LoadedQuantity
		r.TotalSold += line.SoldQuantity
		r.TotalRemaining += line.RemainingQuantity
		r.TotalSoldValue = r.TotalSoldValue.Add(line.SoldValue)
	}
}

// ListFilter filters report listings.
type ListFilter struct {
	domain.ListFilter
	Assignee string
	From     *time.Time
	To       *time.Time
}
