// Package allocation provides the lot allocation planner.
// Given a requested weight and price tier, the planner decides which lots a
// load will consume and how (whole or partial). Planning is a pure read; the
// committer re-validates every selected lot inside its transaction.
package allocation

import (
	"context"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
	"millstock/internal/domain/lots"
)

// Item is one lot selection in a plan.
type Item struct {
	LotID id.ID `json:"lotId"`

	// WeightUsed is the weight the load takes from this lot. For every item
	// except possibly the last it equals LotWeight.
	WeightUsed types.Weight `json:"weightUsed"`

	// LotWeight is the lot's full weight at planning time; the committer
	// uses the difference to split off a residual lot.
	LotWeight types.Weight `json:"lotWeight"`

	PricePerUnit types.Money `json:"pricePerUnit"`
}

// Plan is an ordered selection of lots satisfying one product-type request.
// Item weights sum exactly to Quantity.
type Plan struct {
	ProductType  lots.ProductType `json:"productType"`
	TierID       string           `json:"tierId"`
	Quantity     types.Weight     `json:"quantity"`
	PricePerUnit types.Money      `json:"pricePerUnit"`
	Items        []Item           `json:"items"`
}

// TotalValue is Quantity × PricePerUnit.
func (p *Plan) TotalValue() types.Money {
	return p.Quantity.Decimal().Mul(p.PricePerUnit)
}

// LotsConsumed is the number of lots the plan takes weight from.
func (p *Plan) LotsConsumed() int {
	return len(p.Items)
}

// ResidualWeight is the unconsumed weight of the final, partially used lot
// (zero when every selected lot is consumed whole).
func (p *Plan) ResidualWeight() types.Weight {
	if len(p.Items) == 0 {
		return 0
	}
	last := p.Items[len(p.Items)-1]
	return last.LotWeight - last.WeightUsed
}

// Planner selects lots for outbound loads.
type Planner struct {
	repo   lots.Repository
	policy lots.Order
}

// NewPlanner creates a planner with FIFO ordering.
func NewPlanner(repo lots.Repository) *Planner {
	return &Planner{repo: repo, policy: lots.OrderOldestFirst}
}

// Policy returns the active ordering policy.
func (p *Planner) Policy() lots.Order {
	return p.policy
}

// Plan builds an allocation plan for one product type.
//
// tierID selects the price group to draw from; when empty and exactly one
// tier exists, that tier is selected implicitly. Lots within the tier are
// consumed in the repository's FIFO read order: whole lots while the
// remaining request covers them, then at most one partial lot to land
// exactly on the requested quantity.
func (p *Planner) Plan(ctx context.Context, productType lots.ProductType, quantity types.Weight, tierID string) (*Plan, error) {
	if !productType.Valid() {
		return nil, apperror.NewValidation("unknown product type").
			WithDetail("productType", string(productType))
	}
	if !quantity.IsPositive() {
		return nil, apperror.NewValidation("quantity must be positive").
			WithDetail("quantity", quantity.String())
	}

	available, err := p.repo.ListAvailable(ctx, productType, p.policy)
	if err != nil {
		return nil, err
	}

	tier, tierLots, err := selectTier(productType, available, tierID)
	if err != nil {
		return nil, err
	}

	if quantity > tier.TotalWeight {
		return nil, apperror.NewInsufficientStock(
			string(productType),
			quantity.Float64(),
			tier.TotalWeight.Float64(),
		).WithDetail("tier_id", tier.TierID)
	}

	plan := &Plan{
		ProductType:  productType,
		TierID:       tier.TierID,
		Quantity:     quantity,
		PricePerUnit: tier.Price,
	}

	remaining := quantity
	for _, lot := range tierLots {
		if remaining.IsZero() {
			break
		}
		used := lot.Weight
		if remaining < lot.Weight {
			used = remaining
		}
		plan.Items = append(plan.Items, Item{
			LotID:        lot.ID,
			WeightUsed:   used,
			LotWeight:    lot.Weight,
			PricePerUnit: lot.Price,
		})
		remaining -= used
	}

	// Unreachable after the tier total check; kept as a hard stop so a
	// broken availability read can never produce an under-filled plan.
	if !remaining.IsZero() {
		return nil, apperror.NewInternal(nil).
			WithDetail("reason", "allocation fell short of requested quantity").
			WithDetail("short_by", remaining.String())
	}

	return plan, nil
}

// selectTier resolves the requested price tier and the ordered lots in it.
func selectTier(productType lots.ProductType, available []*lots.Lot, tierID string) (lots.PriceTier, []*lots.Lot, error) {
	tiers := lots.BuildTiers(productType, available)
	if len(tiers) == 0 {
		return lots.PriceTier{}, nil, apperror.NewInsufficientStock(string(productType), 0, 0).
			WithDetail("reason", "no available lots")
	}

	var selected *lots.PriceTier
	switch {
	case tierID == "" && len(tiers) == 1:
		selected = &tiers[0]
	case tierID == "":
		return lots.PriceTier{}, nil, apperror.NewValidation("price tier is required when multiple tiers exist").
			WithDetail("productType", string(productType)).
			WithDetail("tiers", len(tiers))
	default:
		for i := range tiers {
			if tiers[i].TierID == tierID {
				selected = &tiers[i]
				break
			}
		}
		if selected == nil {
			return lots.PriceTier{}, nil, apperror.NewValidation("price tier not found").
				WithDetail("productType", string(productType)).
				WithDetail("tierId", tierID)
		}
	}

	tierLots := make([]*lots.Lot, 0, selected.LotCount)
	for _, lot := range available {
		if lots.TierIDFor(lot.Price) == selected.TierID {
			tierLots = append(tierLots, lot)
		}
	}
	return *selected, tierLots, nil
}
