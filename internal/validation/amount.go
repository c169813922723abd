package validation

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
)

// DefaultTolerance is the maximum absolute discrepancy, in the document's
// currency unit, before an arithmetic check fails.
const DefaultTolerance = 0.01

// AmountEngine 金額驗算引擎
// Verifies the internal arithmetic of a normalized document: vertical sums
// across line items and the horizontal unit_price × quantity = amount
// relation per item. Stateless; safe for concurrent runs.
type AmountEngine struct {
	tolerance float64
	logger    logger.Logger
}

type AmountOption func(*AmountEngine)

// WithAmountTolerance overrides the default comparison tolerance.
func WithAmountTolerance(tol float64) AmountOption {
	return func(e *AmountEngine) {
		e.tolerance = tol
	}
}

func NewAmountEngine(log logger.Logger, opts ...AmountOption) *AmountEngine {
	e := &AmountEngine{
		tolerance: DefaultTolerance,
		logger:    log,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ValidateAll runs every amount check and synthesizes the category status.
// Any fail or error in a constituent check fails the category.
func (e *AmountEngine) ValidateAll(doc models.NormalizedDocument) CategoryResult {
	e.logger.Debug("running amount checks", logger.Int("items", len(itemList(doc))))
	checks := map[string]CheckResult{
		"vertical_sum":           e.ValidateVerticalSum(doc),
		"horizontal_calculation": e.ValidateHorizontalCalculation(doc),
		"subtotal_check":         e.ValidateSubtotal(doc),
		"total_check":            e.ValidateTotal(doc),
	}
	return CategoryResult{
		Checks:        checks,
		OverallStatus: strictOverall(checks),
	}
}

// ValidateVerticalSum 驗證直式加總：所有項目金額加總應等於總金額
func (e *AmountEngine) ValidateVerticalSum(doc models.NormalizedDocument) CheckResult {
	items := itemList(doc)
	declared, err := toNumber(doc["total_amount"])
	if err != nil {
		return CheckResult{
			Status:  StatusError,
			Message: fmt.Sprintf("declared total is not numeric: %v", err),
		}
	}

	var calculated float64
	for i, item := range items {
		amount, err := toNumber(item["amount"])
		if err != nil {
			return CheckResult{
				Status:  StatusError,
				Message: fmt.Sprintf("item %d amount is not numeric: %v", i, err),
				Details: map[string]any{"item_index": i},
			}
		}
		calculated += amount
	}

	difference := math.Abs(calculated - declared)
	details := map[string]any{
		"calculated": calculated,
		"declared":   declared,
		"difference": difference,
	}
	if difference <= e.tolerance {
		return CheckResult{
			Status:  StatusPass,
			Message: "vertical sum matches declared total",
			Details: details,
		}
	}
	return CheckResult{
		Status:  StatusFail,
		Message: fmt.Sprintf("vertical sum mismatch: difference %.2f", difference),
		Details: details,
	}
}

// ValidateHorizontalCalculation 驗證橫式計算：單價 × 數量 = 金額
// Every failing item is enumerated with computed vs. declared values.
func (e *AmountEngine) ValidateHorizontalCalculation(doc models.NormalizedDocument) CheckResult {
	items := itemList(doc)
	var failed []map[string]any

	for i, item := range items {
		unitPrice, err := toNumber(item["unit_price"])
		if err != nil {
			return CheckResult{
				Status:  StatusError,
				Message: fmt.Sprintf("item %d unit_price is not numeric: %v", i, err),
				Details: map[string]any{"item_index": i},
			}
		}
		quantity, err := toNumber(item["quantity"])
		if err != nil {
			return CheckResult{
				Status:  StatusError,
				Message: fmt.Sprintf("item %d quantity is not numeric: %v", i, err),
				Details: map[string]any{"item_index": i},
			}
		}
		declared, err := toNumber(item["amount"])
		if err != nil {
			return CheckResult{
				Status:  StatusError,
				Message: fmt.Sprintf("item %d amount is not numeric: %v", i, err),
				Details: map[string]any{"item_index": i},
			}
		}

		calculated := unitPrice * quantity
		difference := math.Abs(calculated - declared)
		if difference > e.tolerance {
			desc, _ := item["description"].(string)
			failed = append(failed, map[string]any{
				"item_index":       i,
				"item_description": desc,
				"calculated":       calculated,
				"declared":         declared,
				"difference":       difference,
			})
		}
	}

	if len(failed) == 0 {
		return CheckResult{
			Status:  StatusPass,
			Message: "horizontal calculation verified",
			Details: map[string]any{"checked_items": len(items)},
		}
	}
	return CheckResult{
		Status:  StatusFail,
		Message: fmt.Sprintf("%d item(s) with mismatched amounts", len(failed)),
		Details: map[string]any{"failed_items": failed},
	}
}

// ValidateSubtotal 驗證小計金額
// Documented no-op: what counts as a subtotal depends on the sheet layout
// and has no agreed definition yet, so the check reports pass
// unconditionally rather than inventing one.
func (e *AmountEngine) ValidateSubtotal(doc models.NormalizedDocument) CheckResult {
	return CheckResult{
		Status:  StatusPass,
		Message: "subtotal check not yet implemented",
	}
}

// ValidateTotal 驗證總計金額
// Documented no-op, same reasoning as ValidateSubtotal.
func (e *AmountEngine) ValidateTotal(doc models.NormalizedDocument) CheckResult {
	return CheckResult{
		Status:  StatusPass,
		Message: "total check not yet implemented",
	}
}

// itemList extracts the line items as mappings, tolerating both the
// normalizer's []map[string]any and decoded-JSON []any shapes.
func itemList(doc models.NormalizedDocument) []map[string]any {
	switch items := doc["items"].(type) {
	case []map[string]any:
		return items
	case []any:
		out := make([]map[string]any, 0, len(items))
		for _, it := range items {
			if m, ok := it.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}

// toNumber coerces a normalized field to float64. A missing value counts as
// zero, matching the upstream lossy-but-available policy; anything that is
// neither numeric nor a numeric string is a data-quality error.
func toNumber(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, fmt.Errorf("cannot parse %q as number", n)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
