package confidence

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/internal/validation"
)

func TestICRConfidenceAveragesPageScores(t *testing.T) {
	calc := NewCalculator()
	raw := &models.RawExtraction{
		Pages: []models.ExtractedPage{
			{Number: 1, Confidence: 0.9},
			{Number: 2, Confidence: 0.8},
		},
	}

	assert.InDelta(t, 0.85, calc.ICRConfidence(raw), 1e-9)
}

func TestICRConfidenceSkipsUnreportedPages(t *testing.T) {
	calc := NewCalculator()
	raw := &models.RawExtraction{
		Pages: []models.ExtractedPage{
			{Number: 1, Confidence: 0.9},
			{Number: 2}, // 後端未回報信心值
		},
	}

	assert.InDelta(t, 0.9, calc.ICRConfidence(raw), 1e-9)
}

func TestICRConfidenceFallback(t *testing.T) {
	calc := NewCalculator()

	assert.InDelta(t, FallbackICRConfidence, calc.ICRConfidence(nil), 1e-9)

	noScores := &models.RawExtraction{
		Pages: []models.ExtractedPage{{Number: 1, Text: "第一期估驗計價單"}},
	}
	assert.InDelta(t, FallbackICRConfidence, calc.ICRConfidence(noScores), 1e-9)
}

func TestMappingConfidenceFullCoverage(t *testing.T) {
	calc := NewCalculator()
	mapped := map[string]any{
		"document_id":  "EST-2024-001",
		"total_amount": 1500.0,
	}

	score := calc.MappingConfidence(mapped, []string{"document_id", "total_amount"})
	assert.InDelta(t, 1.0, score, 1e-9)
}

func TestMappingConfidencePenalizesMissingRequired(t *testing.T) {
	calc := NewCalculator()
	mapped := map[string]any{
		"document_id": "EST-2024-001",
	}

	// coverage 1/2 加權 0.7,品質 1.0 加權 0.3
	score := calc.MappingConfidence(mapped, []string{"document_id", "total_amount"})
	assert.InDelta(t, 0.5*0.7+1.0*0.3, score, 1e-9)
}

func TestMappingConfidenceEmptyValueDoesNotCount(t *testing.T) {
	calc := NewCalculator()
	mapped := map[string]any{
		"document_id":  "",
		"total_amount": 1500.0,
	}

	// document_id 視為缺漏:coverage 1/2,品質 (0 + 1)/2
	score := calc.MappingConfidence(mapped, []string{"document_id", "total_amount"})
	assert.InDelta(t, 0.5*0.7+0.5*0.3, score, 1e-9)
}

func TestMappingConfidenceShortStringHalfQuality(t *testing.T) {
	calc := NewCalculator()
	mapped := map[string]any{
		"document_id": "A",
	}

	score := calc.MappingConfidence(mapped, []string{"document_id"})
	assert.InDelta(t, 1.0*0.7+0.5*0.3, score, 1e-9)
}

func TestMappingConfidenceNoRequiredFields(t *testing.T) {
	calc := NewCalculator()
	assert.InDelta(t, 1.0, calc.MappingConfidence(nil, nil), 1e-9)
}

func TestValidationConfidenceFractionPassed(t *testing.T) {
	calc := NewCalculator()
	result := &validation.ValidationResult{
		Amount: validation.CategoryResult{
			Checks: map[string]validation.CheckResult{
				"vertical_sum": {Status: validation.StatusPass},
				"horizontal":   {Status: validation.StatusFail},
			},
		},
		Accumulation: validation.CategoryResult{
			Checks: map[string]validation.CheckResult{
				"accumulation_logic": {Status: validation.StatusPass},
				"contract_limit":     {Status: validation.StatusPass},
			},
		},
	}

	assert.InDelta(t, 0.75, calc.ValidationConfidence(result), 1e-9)
}

func TestValidationConfidenceVacuous(t *testing.T) {
	calc := NewCalculator()

	assert.InDelta(t, 1.0, calc.ValidationConfidence(nil), 1e-9)
	assert.InDelta(t, 1.0, calc.ValidationConfidence(&validation.ValidationResult{}), 1e-9)
}

func TestOverallWeighting(t *testing.T) {
	calc := NewCalculator()

	overall := calc.Overall(0.9, 0.85, 1.0)
	expected := 0.9*DefaultICRWeight + 0.85*DefaultMappingWeight + 1.0*DefaultValidationWeight
	assert.InDelta(t, expected, overall, 1e-9)
}

func TestOverallClamped(t *testing.T) {
	calc := NewCalculator().WithWeights(Weights{ICR: 1, Mapping: 1, Validation: 1})

	assert.Equal(t, 1.0, calc.Overall(0.9, 0.9, 0.9))
	assert.Equal(t, 0.0, calc.Overall(-1, 0, 0))
}

func TestWithWeights(t *testing.T) {
	calc := NewCalculator().WithWeights(Weights{ICR: 0.5, Mapping: 0.25, Validation: 0.25})

	overall := calc.Overall(0.8, 1.0, 1.0)
	assert.InDelta(t, 0.8*0.5+1.0*0.25+1.0*0.25, overall, 1e-9)
}

func TestComputeBuildsFullScore(t *testing.T) {
	calc := NewCalculator()
	raw := &models.RawExtraction{
		Pages: []models.ExtractedPage{{Number: 1, Confidence: 0.9}},
	}
	mapped := map[string]any{
		"document_id":  "EST-2024-001",
		"total_amount": 1500.0,
	}
	result := &validation.ValidationResult{
		Amount: validation.CategoryResult{
			Checks: map[string]validation.CheckResult{
				"vertical_sum": {Status: validation.StatusPass},
			},
		},
	}

	score := calc.Compute(raw, mapped, []string{"document_id", "total_amount"}, result)

	assert.InDelta(t, 0.9, score.ICRAccuracy, 1e-9)
	assert.InDelta(t, 1.0, score.FieldMapping, 1e-9)
	assert.Equal(t, score.FieldMapping, score.LogicUnderstanding)
	assert.InDelta(t, 1.0, score.ValidationConfidence, 1e-9)
	expected := 0.9*DefaultICRWeight + 1.0*DefaultMappingWeight + 1.0*DefaultValidationWeight
	assert.InDelta(t, expected, score.Overall, 1e-9)
	assert.LessOrEqual(t, score.Overall, 1.0)
}
