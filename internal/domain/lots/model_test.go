package lots

import (
	"context"
	"testing"

	"millstock/internal/core/apperror"
	"millstock/internal/core/types"
)

func w(v float64) types.Weight { return types.NewWeightFromFloat64(v) }

func TestBuildTiers(t *testing.T) {
	available := []*Lot{
		NewLot(ProductRice, w(50), types.MustMoney("100")),
		NewLot(ProductRice, w(30), types.MustMoney("110")),
		NewLot(ProductRice, w(20), types.MustMoney("100")),
	}

	tiers := BuildTiers(ProductRice, available)
	if len(tiers) != 2 {
		t.Fatalf("expected 2 tiers, got %d", len(tiers))
	}

	// Tiers keep first-seen order, which follows the FIFO read order.
	if tiers[0].TierID != TierIDFor(types.MustMoney("100")) {
		t.Errorf("expected 100 tier first, got %s", tiers[0].TierID)
	}
	if tiers[0].TotalWeight != w(70) || tiers[0].LotCount != 2 {
		t.Errorf("unexpected 100 tier: %+v", tiers[0])
	}
	if tiers[1].TotalWeight != w(30) || tiers[1].LotCount != 1 {
		t.Errorf("unexpected 110 tier: %+v", tiers[1])
	}

	if len(BuildTiers(ProductRice, nil)) != 0 {
		t.Errorf("no lots must yield no tiers")
	}
}

func TestTierIDFor_NormalizesPrice(t *testing.T) {
	// 100 and 100.00 are the same tier.
	a := TierIDFor(types.MustMoney("100"))
	b := TierIDFor(types.MustMoney("100.00"))
	if a != b {
		t.Errorf("equal prices must share a tier: %q vs %q", a, b)
	}
	if a == TierIDFor(types.MustMoney("100.50")) {
		t.Errorf("different prices must not share a tier")
	}
}

func TestLot_Validate(t *testing.T) {
	ctx := context.Background()

	valid := NewLot(ProductRice, w(25), types.MustMoney("100"))
	if err := valid.Validate(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Lot)
	}{
		{"unknown product type", func(l *Lot) { l.ProductType = "gravel" }},
		{"zero weight", func(l *Lot) { l.Weight = 0 }},
		{"negative weight", func(l *Lot) { l.Weight = w(-1) }},
		{"negative price", func(l *Lot) { l.Price = types.MustMoney("-1") }},
		{"invalid status", func(l *Lot) { l.Status = "misplaced" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lot := NewLot(ProductRice, w(25), types.MustMoney("100"))
			tt.mutate(lot)
			if err := lot.Validate(ctx); !apperror.IsValidation(err) {
				t.Errorf("expected validation error, got %v", err)
			}
		})
	}
}

func TestParseProductType(t *testing.T) {
	if _, err := ParseProductType("rice"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ParseProductType("gravel"); !apperror.IsValidation(err) {
		t.Errorf("expected validation error, got %v", err)
	}
}
