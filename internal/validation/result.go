package validation

// Status of one individual check.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusWarning Status = "warning"
	// StatusError marks a data-quality problem (a value that could not be
	// coerced to a number), distinct from a business rule that computed
	// cleanly and did not hold.
	StatusError Status = "error"
)

// CheckResult is the terminal value of a single validation. Once emitted for
// a run it is never re-derived.
type CheckResult struct {
	Status  Status         `json:"status"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// CategoryResult 單一類別的檢核結果
type CategoryResult struct {
	Checks        map[string]CheckResult `json:"checks"`
	OverallStatus Status                 `json:"overallStatus"`
}

// ValidationResult groups the check categories of one run.
type ValidationResult struct {
	Amount            CategoryResult           `json:"amountValidation"`
	Accumulation      CategoryResult           `json:"accumulationValidation"`
	PaymentConditions []ParsedPaymentCondition `json:"paymentConditions"`

	// CustomRules holds the registry-driven rule results. Advisory: they
	// annotate the report but do not feed the overall status, which the
	// category checks already determine.
	CustomRules []RuleResult `json:"customRules,omitempty"`

	OverallStatus Status `json:"overallStatus"`
}

// Flatten returns every individual check result across all categories.
func (v *ValidationResult) Flatten() []CheckResult {
	var out []CheckResult
	for _, r := range v.Amount.Checks {
		out = append(out, r)
	}
	for _, r := range v.Accumulation.Checks {
		out = append(out, r)
	}
	return out
}

// ComputeOverall derives the document-level status: pass iff every category
// passed. Accumulation already treats its own warnings as non-blocking when
// computing its category status.
func (v *ValidationResult) ComputeOverall() {
	v.OverallStatus = StatusPass
	if v.Amount.OverallStatus != StatusPass || v.Accumulation.OverallStatus != StatusPass {
		v.OverallStatus = StatusFail
	}
}

// strictOverall is pass only when every check passed.
func strictOverall(checks map[string]CheckResult) Status {
	for _, r := range checks {
		if r.Status != StatusPass {
			return StatusFail
		}
	}
	return StatusPass
}

// lenientOverall treats warnings as non-blocking; only fail/error block.
func lenientOverall(checks map[string]CheckResult) Status {
	for _, r := range checks {
		if r.Status != StatusPass && r.Status != StatusWarning {
			return StatusFail
		}
	}
	return StatusPass
}
