// Package loads provides the outbound Load document and its committer.
// A Load is a committed allocation of lots handed to a sales representative;
// it exists only between loading and unloading — reconciliation deletes it.
package loads

import (
	"context"
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain/allocation"
	"millstock/internal/domain/lots"
)

// LotUsage records how much weight a load line took from one lot.
type LotUsage struct {
	LotID        id.ID        `json:"lotId"`
	WeightUsed   types.Weight `json:"weightUsed"`
	PricePerUnit types.Money  `json:"pricePerUnit"`
}

// Line is one product-type position of a load.
// Invariant: the weights in LotsUsed sum exactly to Quantity.
type Line struct {
	LineID id.ID `db:"line_id" json:"lineId"`
	LineNo int   `db:"line_no" json:"lineNo"`

	ProductType  lots.ProductType `db:"product_type" json:"productType"`
	Quantity     types.Weight     `db:"quantity" json:"quantity"`
	PricePerUnit types.Money      `db:"price_per_unit" json:"pricePerUnit"`
	TotalValue   types.Money      `db:"total_value" json:"totalValue"`

	// LotsUsed is persisted as JSONB on the line row, in consumption order.
	// Reconciliation walks it in reverse to restore unsold weight.
	LotsUsed []LotUsage `db:"lots_used" json:"lotsUsed"`

	// LotsConsumed and ResidualBags carry the planner's bag accounting into
	// ledger deltas. Not persisted; recomputable from LotsUsed.
	LotsConsumed int `db:"-" json:"-"`
	ResidualBags int `db:"-" json:"-"`
}

// Load is the outbound load document.
type Load struct {
	ID     id.ID  `db:"id" json:"id"`
	Number string `db:"number" json:"number"`

	Lines []Line `db:"-" json:"lines"`

	TotalWeight types.Weight `db:"total_weight" json:"totalWeight"`
	TotalValue  types.Money  `db:"total_value" json:"totalValue"`

	// Assignee is the sales representative taking the load out.
	Assignee string `db:"assignee" json:"assignee"`
	Notes    string `db:"notes" json:"notes,omitempty"`

	// Version for optimistic locking
	Version int `db:"version" json:"version"`

	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
}

// NewLoad creates an empty load document.
func NewLoad(assignee, notes string) *Load {
	now := time.Now().UTC()
	return &Load{
		ID:        id.New(),
		Assignee:  assignee,
		Notes:     notes,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		Lines:     make([]Line, 0),
	}
}

// AddLine appends a line built from an allocation plan and recalculates totals.
func (l *Load) AddLine(plan *allocation.Plan) {
	line := Line{
		LineID:       id.New(),
		LineNo:       len(l.Lines) + 1,
		ProductType:  plan.ProductType,
		Quantity:     plan.Quantity,
		PricePerUnit: plan.PricePerUnit,
		TotalValue:   plan.TotalValue(),
		LotsUsed:     make([]LotUsage, 0, len(plan.Items)),
		LotsConsumed: plan.LotsConsumed(),
	}
	if plan.ResidualWeight().IsPositive() {
		line.ResidualBags = 1
	}
	for _, item := range plan.Items {
		line.LotsUsed = append(line.LotsUsed, LotUsage{
			LotID:        item.LotID,
			WeightUsed:   item.WeightUsed,
			PricePerUnit: item.PricePerUnit,
		})
	}

	l.Lines = append(l.Lines, line)
	l.recalculateTotals()
}

func (l *Load) recalculateTotals() {
	l.TotalWeight = 0
	l.TotalValue = types.ZeroMoney()
	for _, line := range l.Lines {
		l.TotalWeight += line.Quantity
		l.TotalValue = l.TotalValue.Add(line.TotalValue)
	}
}

// LineByProduct returns the line for a product type, or nil.
func (l *Load) LineByProduct(productType lots.ProductType) *Line {
	for i := range l.Lines {
		if l.Lines[i].ProductType == productType {
			return &l.Lines[i]
		}
	}
	return nil
}

// Validate checks load invariants.
func (l *Load) Validate(ctx context.Context) error {
	if l.Assignee == "" {
		return apperror.NewValidation("assignee is required").
			WithDetail("field", "assignee")
	}
	if len(l.Lines) == 0 {
		return apperror.NewValidation("at least one line is required").
			WithDetail("field", "lines")
	}
	if !l.TotalWeight.IsPositive() {
		return apperror.NewValidation("total weight must be positive").
			WithDetail("totalWeight", l.TotalWeight.String())
	}

	seen := make(map[lots.ProductType]bool, len(l.Lines))
	for i, line := range l.Lines {
		if !line.ProductType.Valid() {
			return apperror.NewValidation("unknown product type").
				WithDetail("lineNo", i+1)
		}
		if seen[line.ProductType] {
			return apperror.NewValidation("duplicate product type across lines").
				WithDetail("lineNo", i+1).
				WithDetail("productType", string(line.ProductType))
		}
		seen[line.ProductType] = true

		if !line.Quantity.IsPositive() {
			return apperror.NewValidation("quantity must be positive").
				WithDetail("lineNo", i+1)
		}

		var used types.Weight
		for _, u := range line.LotsUsed {
			used += u.WeightUsed
		}
		if used != line.Quantity {
			return apperror.NewValidation("lot usage does not sum to line quantity").
				WithDetail("lineNo", i+1).
				WithDetail("quantity", line.Quantity.String()).
				WithDetail("lotsUsedTotal", used.String())
		}
	}

	return nil
}
