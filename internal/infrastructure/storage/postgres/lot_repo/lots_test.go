package lot_repo

import (
	"strings"
	"testing"

	"millstock/internal/core/id"
	"millstock/internal/core/types"
)

func TestClaimQuery_GuardsStatusAndWeight(t *testing.T) {
	repo := NewLotRepo()
	lotID := id.New()
	weight := types.NewWeightFromFloat64(20)

	sql, args, err := repo.claimQuery(lotID, weight).ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}

	// The status predicate is the optimistic guard closing the
	// plan-then-commit race.
	if !strings.Contains(sql, "status = $") {
		t.Errorf("claim must guard on current status:\n%s", sql)
	}
	if !strings.Contains(sql, "weight >= $") {
		t.Errorf("claim must guard on sufficient weight:\n%s", sql)
	}
	if !strings.Contains(sql, "version = version + 1") {
		t.Errorf("claim must bump the version:\n%s", sql)
	}

	found := false
	for _, arg := range args {
		if arg == weight.Int64Scaled() {
			found = true
		}
	}
	if !found {
		t.Errorf("claim must bind the scaled weight, args: %v", args)
	}
}

func TestMarkSoldQuery_GuardsLoadedStatus(t *testing.T) {
	repo := NewLotRepo()

	sql, _, err := repo.markSoldQuery(id.New(), types.NewWeightFromFloat64(12)).ToSql()
	if err != nil {
		t.Fatalf("ToSql failed: %v", err)
	}

	if !strings.Contains(sql, "status = $") || !strings.Contains(sql, "weight >= $") {
		t.Errorf("mark sold must guard status and weight:\n%s", sql)
	}
}

func TestParseOrderBy(t *testing.T) {
	tests := []struct {
		name    string
		orderBy string
		want    string
		wantErr bool
	}{
		{name: "default", orderBy: "", want: "created_at ASC"},
		{name: "ascending", orderBy: "weight", want: "weight ASC"},
		{name: "descending", orderBy: "-created_at", want: "created_at DESC"},
		{name: "unknown column", orderBy: "weight; DROP TABLE stock_lots", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseOrderBy(tt.orderBy)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %q", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("want %q, got %q", tt.want, got)
			}
		})
	}
}
