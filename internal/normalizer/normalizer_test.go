package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpliao1997/estimation-validator/pkg/logger"
)

func TestNormalizeAmountFormats(t *testing.T) {
	n := New(logger.NewTestLogger())

	cases := []struct {
		in   any
		want float64
	}{
		{"1,234.56", 1234.56},
		{"NT$1,000", 1000},
		{"1000元", 1000},
		{"$ 500", 500},
		{1234.5, 1234.5},
		{100, 100},
		{nil, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, n.NormalizeAmount(c.in), "input %v", c.in)
	}
}

func TestNormalizeAmountUnparseableDefaultsToZero(t *testing.T) {
	log := logger.NewTestLogger()
	n := New(log)

	got := n.NormalizeAmount("約一千")

	assert.Equal(t, 0.0, got)
	entries := log.GetEntries()
	require.NotEmpty(t, entries)
	assert.Equal(t, "WARN", entries[0].Level)
}

func TestNormalizeIdentifier(t *testing.T) {
	n := New(logger.NewTestLogger())

	assert.Equal(t, "EST-2024-001", n.NormalizeIdentifier("  est-2024-001  "))
	// 底線等非法字元一律移除,不做轉換
	assert.Equal(t, "ABC123", n.NormalizeIdentifier("abc_123#工程"))
	assert.Equal(t, "ABC-123", n.NormalizeIdentifier("abc-123#工程"))
}

func TestNormalizeDateFormats(t *testing.T) {
	n := New(logger.NewTestLogger())

	for _, in := range []string{"2024-03-15", "2024/03/15", "2024.03.15", "2024年03月15日", "20240315"} {
		assert.Equal(t, "2024-03-15", n.NormalizeDate(in), "input %q", in)
	}
}

func TestNormalizeDateUnrecognizedReturnedUnchanged(t *testing.T) {
	n := New(logger.NewTestLogger())

	assert.Equal(t, "民國113年3月15日", n.NormalizeDate("民國113年3月15日"))
}

func TestNormalizeDocument(t *testing.T) {
	n := New(logger.NewTestLogger())

	raw := map[string]any{
		"document_id":   "est-2024-001",
		"total_amount":  "NT$1,500",
		"period_amount": "500",
		"date":          "2024/03/15",
		"contract_info": map[string]any{
			"contract_number":      "c-001",
			"contract_amount":      "10,000",
			"current_total_amount": "12,000",
			"start_date":           "2024.01.01",
			"contractor":           "某營造公司",
		},
		"items": []any{
			map[string]any{"description": "模板", "quantity": "10", "unit_price": "100", "amount": "1,000"},
		},
		"custom_field": "survives",
	}

	doc := n.NormalizeDocument(raw, "estimation")

	assert.Equal(t, "estimation", doc["document_type"])
	assert.NotEmpty(t, doc["normalized_at"])
	assert.Equal(t, "EST-2024-001", doc["document_id"])
	assert.Equal(t, 1500.0, doc["total_amount"])
	assert.Equal(t, 500.0, doc["period_amount"])
	assert.Equal(t, "2024-03-15", doc["date"])
	assert.Equal(t, "survives", doc["custom_field"])

	info, ok := doc["contract_info"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "C-001", info["contract_number"])
	assert.Equal(t, 10000.0, info["contract_amount"])
	assert.Equal(t, 12000.0, info["current_total_amount"])
	assert.Equal(t, "2024-01-01", info["start_date"])
	assert.Equal(t, "某營造公司", info["contractor"])

	items, ok := doc["items"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, 10.0, items[0]["quantity"])
	assert.Equal(t, 100.0, items[0]["unit_price"])
	assert.Equal(t, 1000.0, items[0]["amount"])
	assert.Equal(t, "模板", items[0]["description"])
}

func TestRemoveNullsRecursive(t *testing.T) {
	data := map[string]any{
		"keep": "value",
		"drop": nil,
		"nested": map[string]any{
			"inner_drop": nil,
			"inner_keep": 1,
		},
		"list": []any{
			nil,
			map[string]any{"drop": nil, "keep": true},
			"plain",
		},
	}

	cleaned := RemoveNulls(data, true)

	assert.NotContains(t, cleaned, "drop")
	nested := cleaned["nested"].(map[string]any)
	assert.NotContains(t, nested, "inner_drop")
	list := cleaned["list"].([]any)
	require.Len(t, list, 2)
	assert.NotContains(t, list[0].(map[string]any), "drop")
	assert.Equal(t, "plain", list[1])
}

func TestRemoveNullsShallow(t *testing.T) {
	data := map[string]any{
		"drop":   nil,
		"nested": map[string]any{"inner_drop": nil},
	}

	cleaned := RemoveNulls(data, false)

	assert.NotContains(t, cleaned, "drop")
	nested := cleaned["nested"].(map[string]any)
	assert.Contains(t, nested, "inner_drop")
}
