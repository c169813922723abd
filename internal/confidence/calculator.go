package confidence

import (
	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/internal/validation"
)

// Default stage weights. Overriding callers are not required to make the
// weights sum to 1; the overall score is clamped to [0,1] instead.
const (
	DefaultICRWeight        = 0.3
	DefaultMappingWeight    = 0.4
	DefaultValidationWeight = 0.3
)

// FallbackICRConfidence applies when the extraction stage reports no
// confidence metadata at all: an optimistic default rather than zero.
const FallbackICRConfidence = 0.8

// Score 信心分數
type Score struct {
	Overall              float64 `json:"overall"`
	ICRAccuracy          float64 `json:"icrAccuracy"`
	FieldMapping         float64 `json:"fieldMapping"`
	LogicUnderstanding   float64 `json:"logicUnderstanding"`
	ValidationConfidence float64 `json:"validationConfidence"`
}

// Weights 各階段權重
type Weights struct {
	ICR        float64
	Mapping    float64
	Validation float64
}

// Calculator combines per-stage confidence signals into one score. Derived
// each run from current-run inputs only; nothing is persisted or reused.
type Calculator struct {
	weights Weights
}

func NewCalculator() *Calculator {
	return &Calculator{
		weights: Weights{
			ICR:        DefaultICRWeight,
			Mapping:    DefaultMappingWeight,
			Validation: DefaultValidationWeight,
		},
	}
}

// WithWeights returns a calculator using the given weights.
func (c *Calculator) WithWeights(w Weights) *Calculator {
	return &Calculator{weights: w}
}

// ICRConfidence is the arithmetic mean of whatever per-page confidence the
// extraction backend reported, or the fallback when it reported none.
func (c *Calculator) ICRConfidence(raw *models.RawExtraction) float64 {
	if raw == nil {
		return FallbackICRConfidence
	}
	scores := raw.PageConfidences()
	if len(scores) == 0 {
		return FallbackICRConfidence
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	return sum / float64(len(scores))
}

// MappingConfidence scores the field-mapping stage: coverage of required
// fields weighted 0.7, value quality weighted 0.3. Short string values
// count as half-quality; empty values as none.
func (c *Calculator) MappingConfidence(mapped map[string]any, requiredFields []string) float64 {
	if len(requiredFields) == 0 {
		return 1.0
	}

	found := 0
	for _, field := range requiredFields {
		if v, ok := mapped[field]; ok && !isEmpty(v) {
			found++
		}
	}
	base := float64(found) / float64(len(requiredFields))

	quality := 1.0
	if len(mapped) > 0 {
		var sum float64
		for _, v := range mapped {
			switch {
			case isEmpty(v):
				// no contribution
			case isShortString(v):
				sum += 0.5
			default:
				sum += 1.0
			}
		}
		quality = sum / float64(len(mapped))
	}

	return base*0.7 + quality*0.3
}

// ValidationConfidence is the fraction of all individual checks that
// passed. Zero checks is vacuously confident.
func (c *Calculator) ValidationConfidence(result *validation.ValidationResult) float64 {
	if result == nil {
		return 1.0
	}
	checks := result.Flatten()
	if len(checks) == 0 {
		return 1.0
	}
	passed := 0
	for _, check := range checks {
		if check.Status == validation.StatusPass {
			passed++
		}
	}
	return float64(passed) / float64(len(checks))
}

// Overall combines the stage confidences under the configured weights,
// clamped to [0,1].
func (c *Calculator) Overall(icr, mapping, validationConf float64) float64 {
	overall := icr*c.weights.ICR + mapping*c.weights.Mapping + validationConf*c.weights.Validation
	return clamp(overall)
}

// Compute builds the full per-run score.
func (c *Calculator) Compute(
	raw *models.RawExtraction,
	mapped map[string]any,
	requiredFields []string,
	result *validation.ValidationResult,
) Score {
	icr := c.ICRConfidence(raw)
	mapping := c.MappingConfidence(mapped, requiredFields)
	validationConf := c.ValidationConfidence(result)
	return Score{
		Overall:              c.Overall(icr, mapping, validationConf),
		ICRAccuracy:          icr,
		FieldMapping:         mapping,
		LogicUnderstanding:   mapping, // no separate signal yet, mirrors field mapping
		ValidationConfidence: validationConf,
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

func isShortString(v any) bool {
	s, ok := v.(string)
	return ok && len([]rune(s)) < 2
}
