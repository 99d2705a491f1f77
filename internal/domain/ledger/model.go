// Package ledger provides the per-product-type aggregate stock totals.
// Totals are mutated only via signed deltas applied inside the caller's
// transaction; there is deliberately no "set totals" operation, so two
// concurrent commits can never lose each other's update.
package ledger

import (
	"time"

	"millstock/internal/core/types"
	"millstock/internal/domain/lots"
)

// StockTotals is the running aggregate for one product type.
// Invariant: baggedTotal equals the weight sum of available lots and
// loadedTotal the weight sum of loaded lots, at every commit boundary.
type StockTotals struct {
	ProductType lots.ProductType `db:"product_type" json:"productType"`

	BaggedTotal    types.Weight `db:"bagged_total" json:"baggedTotal"`
	BaggedBagCount int          `db:"bagged_bag_count" json:"baggedBagCount"`

	LoadedTotal    types.Weight `db:"loaded_total" json:"loadedTotal"`
	LoadedBagCount int          `db:"loaded_bag_count" json:"loadedBagCount"`

	SoldTotal types.Weight `db:"sold_total" json:"soldTotal"`
	SoldValue types.Money  `db:"sold_value" json:"soldValue"`

	LastUpdated time.Time `db:"last_updated" json:"lastUpdated"`
}

// Delta is a signed adjustment to one product type's totals.
type Delta struct {
	BaggedTotal    types.Weight
	BaggedBagCount int
	LoadedTotal    types.Weight
	LoadedBagCount int
	SoldTotal      types.Weight
	SoldValue      types.Money
}

// IsZero reports whether the delta changes nothing.
func (d Delta) IsZero() bool {
	return d.BaggedTotal.IsZero() &&
		d.BaggedBagCount == 0 &&
		d.LoadedTotal.IsZero() &&
		d.LoadedBagCount == 0 &&
		d.SoldTotal.IsZero() &&
		d.SoldValue.IsZero()
}

// Add combines two deltas.
func (d Delta) Add(other Delta) Delta {
	return Delta{
		BaggedTotal:    d.BaggedTotal + other.BaggedTotal,
		BaggedBagCount: d.BaggedBagCount + other.BaggedBagCount,
		LoadedTotal:    d.LoadedTotal + other.LoadedTotal,
		LoadedBagCount: d.LoadedBagCount + other.LoadedBagCount,
		SoldTotal:      d.SoldTotal + other.SoldTotal,
		SoldValue:      d.SoldValue.Add(other.SoldValue),
	}
}

// WeightShift is the delta's effect on baggedTotal + loadedTotal + soldTotal.
// Allocate and reconcile deltas must shift nothing; only lot intake may be
// positive.
func (d Delta) WeightShift() types.Weight {
	return d.BaggedTotal + d.LoadedTotal + d.SoldTotal
}
