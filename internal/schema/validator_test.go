package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEstimation() map[string]any {
	return map[string]any{
		"document_type": "estimation",
		"document_id":   "EST-2024-001",
		"period_number": 2.0,
		"contract_info": map[string]any{
			"contract_number": "C-001",
			"contract_amount": 10000.0,
		},
		"items": []map[string]any{
			{"description": "模板", "quantity": 10.0, "unit_price": 100.0, "amount": 1000.0},
		},
	}
}

func TestValidateConformingDocument(t *testing.T) {
	v := NewValidator()

	ok, errs := v.Validate(validEstimation(), EstimationPaymentSchema())

	assert.True(t, ok)
	assert.Empty(t, errs)
}

func TestValidateMissingRequired(t *testing.T) {
	v := NewValidator()
	data := validEstimation()
	delete(data, "document_id")

	ok, errs := v.Validate(data, EstimationPaymentSchema())

	require.False(t, ok)
	assert.Contains(t, errs, "missing required field: document_id")
}

func TestValidateTypeMismatch(t *testing.T) {
	v := NewValidator()
	data := validEstimation()
	data["document_id"] = 42

	ok, errs := v.Validate(data, EstimationPaymentSchema())

	require.False(t, ok)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "wrong type")
}

func TestValidateEnumViolation(t *testing.T) {
	v := NewValidator()
	data := validEstimation()
	data["document_type"] = "invoice"

	ok, errs := v.Validate(data, EstimationPaymentSchema())

	require.False(t, ok)
	assert.Contains(t, errs[0], "not in allowed values")
}

func TestValidateRangeViolation(t *testing.T) {
	v := NewValidator()
	data := validEstimation()
	data["contract_info"].(map[string]any)["contract_amount"] = -5.0

	ok, errs := v.Validate(data, EstimationPaymentSchema())

	require.False(t, ok)
	assert.Contains(t, errs[0], "below minimum")
}

func TestValidateArrayItemsNamed(t *testing.T) {
	v := NewValidator()
	data := validEstimation()
	data["items"] = []map[string]any{
		{"quantity": 10.0},
		{"quantity": "ten"},
	}

	ok, errs := v.Validate(data, EstimationPaymentSchema())

	require.False(t, ok)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "items[1].quantity")
}

func TestValidateAccumulatesAllErrors(t *testing.T) {
	v := NewValidator()
	data := validEstimation()
	delete(data, "document_id")
	data["document_type"] = 7
	data["period_number"] = 1.5 // integer schema rejects fractional values

	ok, errs := v.Validate(data, EstimationPaymentSchema())

	require.False(t, ok)
	assert.GreaterOrEqual(t, len(errs), 3)
}

func TestIntegerAcceptsWholeFloat(t *testing.T) {
	assert.True(t, checkType(3.0, "integer"))
	assert.False(t, checkType(3.5, "integer"))
	assert.True(t, checkType(3, "integer"))
}

func TestUnknownSchemaTypePasses(t *testing.T) {
	assert.True(t, checkType("anything", "datetime"))
}

func TestNestedRequiredAppliesAtOwnLevel(t *testing.T) {
	v := NewValidator()
	data := map[string]any{"contract_number": "C-001"}

	ok, errs := v.Validate(data, ContractInfoSchema())
	assert.True(t, ok)
	assert.Empty(t, errs)

	ok, errs = v.Validate(map[string]any{}, ContractInfoSchema())
	require.False(t, ok)
	assert.Contains(t, errs, "missing required field: contract_number")
}
