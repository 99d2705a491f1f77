// Package lots provides the stock lot ("bag") domain model.
// A lot is an individually tracked, fixed-weight unit of bagged product.
package lots

import (
	"context"
	"fmt"
	"time"

	"millstock/internal/core/apperror"
	"millstock/internal/core/id"
	"millstock/internal/core/types"
)

// ProductType identifies the milled product a lot contains.
type ProductType string

const (
	ProductRice  ProductType = "rice"
	ProductHusk  ProductType = "husk"
	ProductFlour ProductType = "flour"
)

// AllProductTypes lists every valid product type.
func AllProductTypes() []ProductType {
	return []ProductType{ProductRice, ProductHusk, ProductFlour}
}

// Valid reports whether the product type is a known value.
func (p ProductType) Valid() bool {
	switch p {
	case ProductRice, ProductHusk, ProductFlour:
		return true
	}
	return false
}

// ParseProductType validates and converts a string.
func ParseProductType(s string) (ProductType, error) {
	p := ProductType(s)
	if !p.Valid() {
		return "", apperror.NewValidation("unknown product type").
			WithDetail("productType", s)
	}
	return p, nil
}

// Status is the lot lifecycle state. Transitions are forward-only
// (available → loaded → sold); the single exception is the unload path,
// which may return loaded weight to available.
type Status string

const (
	StatusAvailable Status = "available"
	StatusLoaded    Status = "loaded"
	StatusSold      Status = "sold"
)

// Valid reports whether the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusLoaded, StatusSold:
		return true
	}
	return false
}

// Lot represents a physical bag of product.
type Lot struct {
	ID          id.ID        `db:"id" json:"id"`
	ProductType ProductType  `db:"product_type" json:"productType"`
	Weight      types.Weight `db:"weight" json:"weight"`
	Price       types.Money  `db:"price" json:"price"`
	Status      Status       `db:"status" json:"status"`

	// Version for optimistic locking (incremented on each status change)
	Version int `db:"version" json:"version"`

	// CreatedAt is the bagging time; allocation consumes lots oldest-first.
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// NewLot creates an available lot with generated id.
func NewLot(productType ProductType, weight types.Weight, price types.Money) *Lot {
	now := time.Now().UTC()
	return &Lot{
		ID:          id.New(),
		ProductType: productType,
		Weight:      weight,
		Price:       price,
		Status:      StatusAvailable,
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Validate checks lot invariants.
func (l *Lot) Validate(ctx context.Context) error {
	if !l.ProductType.Valid() {
		return apperror.NewValidation("unknown product type").
			WithDetail("productType", string(l.ProductType))
	}
	if !l.Weight.IsPositive() {
		return apperror.NewValidation("weight must be positive").
			WithDetail("weight", l.Weight.String())
	}
	if l.Price.IsNegative() || l.Price.IsZero() {
		return apperror.NewValidation("price must be positive").
			WithDetail("price", l.Price.String())
	}
	if !l.Status.Valid() {
		return apperror.NewValidation("unknown lot status").
			WithDetail("status", string(l.Status))
	}
	return nil
}

// PriceTier groups available lots of one product type sharing a price point.
// TierID is the canonical price string; callers use it to disambiguate when
// a product type is stocked at several prices.
type PriceTier struct {
	ProductType ProductType  `json:"productType"`
	TierID      string       `json:"tierId"`
	Price       types.Money  `json:"price"`
	TotalWeight types.Weight `json:"totalWeight"`
	LotCount    int          `json:"lotCount"`
}

// TierIDFor derives the tier id for a price.
func TierIDFor(price types.Money) string {
	return price.String()
}

// BuildTiers groups available lots into price tiers, preserving lot order
// within each tier. Tiers are returned in first-seen order.
func BuildTiers(productType ProductType, available []*Lot) []PriceTier {
	index := make(map[string]int)
	tiers := make([]PriceTier, 0, 2)

	for _, lot := range available {
		key := TierIDFor(lot.Price)
		i, ok := index[key]
		if !ok {
			i = len(tiers)
			index[key] = i
			tiers = append(tiers, PriceTier{
				ProductType: productType,
				TierID:      key,
				Price:       lot.Price,
			})
		}
		tiers[i].TotalWeight += lot.Weight
		tiers[i].LotCount++
	}

	return tiers
}

// String implements fmt.Stringer for log fields.
func (t PriceTier) String() string {
	return fmt.Sprintf("%s@%s", t.ProductType, t.TierID)
}
