package validation

import (
	"fmt"
	"math"

	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
)

// AccumulationChecker 累計檢核器
// Verifies cross-period cumulative totals against contract ceilings.
// Stateless; previous periods and contract info come in per call.
type AccumulationChecker struct {
	tolerance float64
	logger    logger.Logger
}

type AccumulationOption func(*AccumulationChecker)

func WithAccumulationTolerance(tol float64) AccumulationOption {
	return func(c *AccumulationChecker) {
		c.tolerance = tol
	}
}

func NewAccumulationChecker(log logger.Logger, opts ...AccumulationOption) *AccumulationChecker {
	c := &AccumulationChecker{
		tolerance: DefaultTolerance,
		logger:    log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ValidateAll runs every accumulation check. Warnings do not block the
// category: a missing contract ceiling is a "cannot check", not a failure.
func (c *AccumulationChecker) ValidateAll(
	current models.NormalizedDocument,
	previous []models.NormalizedDocument,
	contractInfo map[string]any,
) CategoryResult {
	c.logger.Debug("running accumulation checks", logger.Int("previousPeriods", len(previous)))
	checks := map[string]CheckResult{
		"accumulation_logic": c.CheckAccumulationLogic(current, previous),
		"contract_limit":     c.CheckContractLimit(current, contractInfo),
		"progress_check":     c.CheckProgressReasonability(current, previous, contractInfo),
	}
	return CategoryResult{
		Checks:        checks,
		OverallStatus: lenientOverall(checks),
	}
}

// CheckAccumulationLogic 檢核累計邏輯：前期累計 + 本期金額 = 本期累計
// The first period passes trivially since there is nothing to accumulate.
func (c *AccumulationChecker) CheckAccumulationLogic(
	current models.NormalizedDocument,
	previous []models.NormalizedDocument,
) CheckResult {
	if len(previous) == 0 {
		period := 1
		if n, err := toNumber(current["period_number"]); err == nil && n > 0 {
			period = int(n)
		}
		return CheckResult{
			Status:  StatusPass,
			Message: "first period, no prior accumulation",
			Details: map[string]any{"period_number": period},
		}
	}

	prevTotal, err := toNumber(previous[len(previous)-1]["current_accumulation"])
	if err != nil {
		return CheckResult{
			Status:  StatusError,
			Message: fmt.Sprintf("previous accumulation is not numeric: %v", err),
		}
	}
	currentAmount, err := toNumber(current["period_amount"])
	if err != nil {
		return CheckResult{
			Status:  StatusError,
			Message: fmt.Sprintf("period amount is not numeric: %v", err),
		}
	}
	declaredTotal, err := toNumber(current["current_accumulation"])
	if err != nil {
		return CheckResult{
			Status:  StatusError,
			Message: fmt.Sprintf("declared accumulation is not numeric: %v", err),
		}
	}

	calculatedTotal := prevTotal + currentAmount
	difference := math.Abs(calculatedTotal - declaredTotal)
	details := map[string]any{
		"previous_total":   prevTotal,
		"current_amount":   currentAmount,
		"calculated_total": calculatedTotal,
		"declared_total":   declaredTotal,
		"difference":       difference,
	}
	if difference <= c.tolerance {
		return CheckResult{
			Status:  StatusPass,
			Message: "accumulation logic verified",
			Details: details,
		}
	}
	return CheckResult{
		Status:  StatusFail,
		Message: fmt.Sprintf("accumulation mismatch: difference %.2f", difference),
		Details: details,
	}
}

// CheckContractLimit 檢核合約總額上限
// The ceiling may arrive under the newer current_total_amount key (amount
// after contract changes) or the legacy contract_amount key; the newer key
// wins when both are present.
func (c *AccumulationChecker) CheckContractLimit(
	current models.NormalizedDocument,
	contractInfo map[string]any,
) CheckResult {
	if contractInfo == nil {
		return CheckResult{
			Status:  StatusWarning,
			Message: "no contract info, ceiling not checked",
		}
	}

	ceilingField := contractInfo["current_total_amount"]
	if ceilingField == nil {
		ceilingField = contractInfo["contract_amount"]
	}
	contractAmount, err := toNumber(ceilingField)
	if err != nil {
		return CheckResult{
			Status:  StatusError,
			Message: fmt.Sprintf("contract amount is not numeric: %v", err),
		}
	}
	currentTotal, err := toNumber(current["current_accumulation"])
	if err != nil {
		return CheckResult{
			Status:  StatusError,
			Message: fmt.Sprintf("current accumulation is not numeric: %v", err),
		}
	}

	if currentTotal > contractAmount {
		return CheckResult{
			Status:  StatusFail,
			Message: "accumulated amount exceeds contract ceiling",
			Details: map[string]any{
				"contract_amount": contractAmount,
				"current_total":   currentTotal,
				"exceeded_amount": currentTotal - contractAmount,
			},
		}
	}

	usage := 0.0
	if contractAmount > 0 {
		usage = currentTotal / contractAmount * 100
	}
	return CheckResult{
		Status:  StatusPass,
		Message: "within contract ceiling",
		Details: map[string]any{
			"contract_amount":  contractAmount,
			"current_total":    currentTotal,
			"remaining_amount": contractAmount - currentTotal,
			"usage_percentage": usage,
		},
	}
}

// CheckProgressReasonability is a documented no-op. What counts as
// "reasonable" progress against time and spend has no agreed definition
// yet, so the check reports pass unconditionally rather than inventing a
// threshold.
func (c *AccumulationChecker) CheckProgressReasonability(
	current models.NormalizedDocument,
	previous []models.NormalizedDocument,
	contractInfo map[string]any,
) CheckResult {
	return CheckResult{
		Status:  StatusPass,
		Message: "progress reasonability check not yet implemented",
	}
}
