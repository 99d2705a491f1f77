package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeight_String(t *testing.T) {
	tests := []struct {
		name string
		w    Weight
		want string
	}{
		{"zero", 0, "0.0000"},
		{"whole kilos", NewWeightFromFloat64(50), "50.0000"},
		{"fractional", NewWeightFromInt64Scaled(123456), "12.3456"},
		{"negative", NewWeightFromInt64Scaled(-5000), "-0.5000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.w.String())
		})
	}
}

func TestWeight_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Weight
	}{
		{"number", `70`, NewWeightFromFloat64(70)},
		{"number with decimals", `20.5`, NewWeightFromInt64Scaled(205000)},
		{"string", `"30.25"`, NewWeightFromInt64Scaled(302500)},
		{"null", `null`, 0},
		{"extra digits truncated", `1.23456789`, NewWeightFromInt64Scaled(12345)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var w Weight
			require.NoError(t, json.Unmarshal([]byte(tt.input), &w))
			assert.Equal(t, tt.want, w)
		})
	}
}

func TestWeight_UnmarshalJSON_RejectsExponentForm(t *testing.T) {
	for _, input := range []string{`1e3`, `"1e3"`, `"1E2"`, `"2.5e-1"`} {
		t.Run(input, func(t *testing.T) {
			var w Weight
			err := json.Unmarshal([]byte(input), &w)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "exponent")
		})
	}
}

func TestWeight_RoundTrip(t *testing.T) {
	w := NewWeightFromInt64Scaled(705000) // 70.5 kg

	data, err := json.Marshal(w)
	require.NoError(t, err)
	assert.Equal(t, "70.5000", string(data))

	var back Weight
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, w, back)
}

func TestWeight_Decimal(t *testing.T) {
	w := NewWeightFromFloat64(70)
	price := MustMoney("100")

	// 70 kg × 100/kg = 7000
	value := w.Decimal().Mul(price)
	assert.True(t, value.Equal(MustMoney("7000")), "got %s", value)
}
