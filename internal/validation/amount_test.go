package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
)

func estimationDoc() models.NormalizedDocument {
	return models.NormalizedDocument{
		"document_id":  "EST-2024-001",
		"total_amount": 1500.0,
		"items": []map[string]any{
			{"description": "模板工程", "unit_price": 100.0, "quantity": 10.0, "amount": 1000.0},
			{"description": "鋼筋工程", "unit_price": 50.0, "quantity": 10.0, "amount": 500.0},
		},
	}
}

func TestVerticalSumPass(t *testing.T) {
	engine := NewAmountEngine(logger.NewTestLogger())

	result := engine.ValidateVerticalSum(estimationDoc())

	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, 1500.0, result.Details["calculated"])
	assert.Equal(t, 1500.0, result.Details["declared"])
}

func TestVerticalSumMismatch(t *testing.T) {
	engine := NewAmountEngine(logger.NewTestLogger())
	doc := estimationDoc()
	doc["total_amount"] = 1600.0

	result := engine.ValidateVerticalSum(doc)

	require.Equal(t, StatusFail, result.Status)
	assert.InDelta(t, 100.0, result.Details["difference"], 1e-9)
}

func TestVerticalSumWithinTolerance(t *testing.T) {
	engine := NewAmountEngine(logger.NewTestLogger())
	doc := estimationDoc()
	doc["total_amount"] = 1500.005

	result := engine.ValidateVerticalSum(doc)

	assert.Equal(t, StatusPass, result.Status)
}

func TestVerticalSumCustomTolerance(t *testing.T) {
	engine := NewAmountEngine(logger.NewTestLogger(), WithAmountTolerance(1.0))
	doc := estimationDoc()
	doc["total_amount"] = 1500.5

	result := engine.ValidateVerticalSum(doc)

	assert.Equal(t, StatusPass, result.Status)
}

func TestVerticalSumNonNumericIsError(t *testing.T) {
	engine := NewAmountEngine(logger.NewTestLogger())
	doc := estimationDoc()
	doc["total_amount"] = "約一千五"

	result := engine.ValidateVerticalSum(doc)

	// data-quality problem, not a business-rule failure
	assert.Equal(t, StatusError, result.Status)
}

func TestVerticalSumMissingTotalCountsAsZero(t *testing.T) {
	engine := NewAmountEngine(logger.NewTestLogger())
	doc := estimationDoc()
	delete(doc, "total_amount")

	result := engine.ValidateVerticalSum(doc)

	require.Equal(t, StatusFail, result.Status)
	assert.Equal(t, 0.0, result.Details["declared"])
}

func TestHorizontalCalculationPass(t *testing.T) {
	engine := NewAmountEngine(logger.NewTestLogger())

	result := engine.ValidateHorizontalCalculation(estimationDoc())

	assert.Equal(t, StatusPass, result.Status)
	assert.Equal(t, 2, result.Details["checked_items"])
}

func TestHorizontalCalculationEnumeratesFailures(t *testing.T) {
	engine := NewAmountEngine(logger.NewTestLogger())
	doc := estimationDoc()
	doc["items"] = []map[string]any{
		{"description": "模板工程", "unit_price": 100.0, "quantity": 10.0, "amount": 1000.0},
		{"description": "鋼筋工程", "unit_price": 50.0, "quantity": 10.0, "amount": 600.0},
		{"description": "混凝土工程", "unit_price": 20.0, "quantity": 5.0, "amount": 150.0},
	}

	result := engine.ValidateHorizontalCalculation(doc)

	require.Equal(t, StatusFail, result.Status)
	failed, ok := result.Details["failed_items"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, failed, 2)

	assert.Equal(t, 1, failed[0]["item_index"])
	assert.Equal(t, "鋼筋工程", failed[0]["item_description"])
	assert.Equal(t, 500.0, failed[0]["calculated"])
	assert.Equal(t, 600.0, failed[0]["declared"])
	assert.Equal(t, 2, failed[1]["item_index"])
}

func TestHorizontalCalculationNonNumericItem(t *testing.T) {
	engine := NewAmountEngine(logger.NewTestLogger())
	doc := estimationDoc()
	doc["items"] = []map[string]any{
		{"unit_price": "N/A", "quantity": 10.0, "amount": 1000.0},
	}

	result := engine.ValidateHorizontalCalculation(doc)

	assert.Equal(t, StatusError, result.Status)
	assert.Equal(t, 0, result.Details["item_index"])
}

func TestValidateAllStrictOverall(t *testing.T) {
	engine := NewAmountEngine(logger.NewTestLogger())

	passed := engine.ValidateAll(estimationDoc())
	assert.Equal(t, StatusPass, passed.OverallStatus)

	doc := estimationDoc()
	doc["total_amount"] = 2000.0
	failed := engine.ValidateAll(doc)
	assert.Equal(t, StatusFail, failed.OverallStatus)
	assert.Equal(t, StatusFail, failed.Checks["vertical_sum"].Status)
	assert.Equal(t, StatusPass, failed.Checks["horizontal_calculation"].Status)
}

func TestValidateAllCarriesPlaceholderChecks(t *testing.T) {
	engine := NewAmountEngine(logger.NewTestLogger())

	result := engine.ValidateAll(estimationDoc())

	// 小計與總計檢查尚未定義規則,固定回報通過
	require.Contains(t, result.Checks, "subtotal_check")
	require.Contains(t, result.Checks, "total_check")
	assert.Equal(t, StatusPass, result.Checks["subtotal_check"].Status)
	assert.Equal(t, StatusPass, result.Checks["total_check"].Status)
}

func TestItemListToleratesDecodedJSON(t *testing.T) {
	engine := NewAmountEngine(logger.NewTestLogger())
	doc := models.NormalizedDocument{
		"total_amount": 100.0,
		"items": []any{
			map[string]any{"amount": 60.0},
			map[string]any{"amount": 40.0},
		},
	}

	result := engine.ValidateVerticalSum(doc)

	assert.Equal(t, StatusPass, result.Status)
}
