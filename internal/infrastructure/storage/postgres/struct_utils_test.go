package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"millstock/internal/core/id"
	"millstock/internal/domain/ledger"
	"millstock/internal/domain/loads"
	"millstock/internal/domain/lots"
	"millstock/internal/domain/reports"
)

type auditedRow struct {
	ID        id.ID     `db:"id" json:"id"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

type mockDocument struct {
	auditedRow
	Number string `db:"number" json:"number"`
	Skip   string `db:"-" json:"-"`
	NoTag  string
}

func TestExtractDBColumns_EmbeddedAndIgnored(t *testing.T) {
	cols := ExtractDBColumns[mockDocument]()

	assert.Equal(t, []string{"id", "created_at", "updated_at", "number"}, cols)
}

// The repositories pass these column lists positionally alongside struct
// fields in INSERT Values(), so field order in the models is load-bearing.
func TestExtractDBColumns_DomainModels(t *testing.T) {
	tests := []struct {
		name     string
		got      []string
		expected []string
	}{
		{
			name: "lot",
			got:  ExtractDBColumns[lots.Lot](),
			expected: []string{
				"id", "product_type", "weight", "price", "status",
				"version", "created_at", "updated_at",
			},
		},
		{
			name: "load",
			got:  ExtractDBColumns[loads.Load](),
			expected: []string{
				"id", "number", "total_weight", "total_value",
				"assignee", "notes", "version", "created_at", "updated_at", "created_by",
			},
		},
		{
			name: "load line",
			got:  ExtractDBColumns[loads.Line](),
			expected: []string{
				"line_id", "line_no", "product_type",
				"quantity", "price_per_unit", "total_value", "lots_used",
			},
		},
		{
			name: "stock totals",
			got:  ExtractDBColumns[ledger.StockTotals](),
			expected: []string{
				"product_type",
				"bagged_total", "bagged_bag_count",
				"loaded_total", "loaded_bag_count",
				"sold_total", "sold_value",
				"last_updated",
			},
		},
		{
			name: "load report",
			got:  ExtractDBColumns[reports.LoadReport](),
			expected: []string{
				"id", "load_id", "load_number", "assignee",
				"total_loaded", "total_sold", "total_remaining", "total_sold_value",
				"loaded_at", "reconciled_at",
			},
		},
		{
			name: "report line",
			got:  ExtractDBColumns[reports.ReportLine](),
			expected: []string{
				"line_no", "product_type", "price_per_unit",
				"loaded_quantity", "sold_quantity", "remaining_quantity",
				"sold_value", "lots_used",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.got)
		})
	}
}
