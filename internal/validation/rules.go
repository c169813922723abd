package validation

import (
	"fmt"
	"sort"
	"sync"

	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
)

// Rule is a single evaluable validation. Rules are independent of each
// other; priority affects report order only, never outcomes.
type Rule interface {
	RuleID() string
	Name() string
	Description() string
	Enabled() bool
	Priority() int
	Evaluate(doc models.NormalizedDocument) CheckResult
}

// RuleResult 單一規則的執行結果
type RuleResult struct {
	RuleID   string      `json:"ruleId"`
	RuleName string      `json:"ruleName"`
	Result   CheckResult `json:"result"`
}

// RulesEngine 規則引擎
// Registry mapping rule ID to implementation. Registration happens at
// startup; execution is read-only and safe across concurrent runs.
type RulesEngine struct {
	mu     sync.RWMutex
	rules  map[string]Rule
	logger logger.Logger
}

func NewRulesEngine(log logger.Logger) *RulesEngine {
	return &RulesEngine{
		rules:  make(map[string]Rule),
		logger: log,
	}
}

// Register adds or replaces a rule.
func (e *RulesEngine) Register(rule Rule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules[rule.RuleID()] = rule
	e.logger.Info("registered rule",
		logger.String("ruleId", rule.RuleID()),
		logger.String("name", rule.Name()),
	)
}

// Unregister removes a rule if present.
func (e *RulesEngine) Unregister(ruleID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.rules, ruleID)
}

// Execute runs every enabled rule against the document. A panicking rule is
// reported as an error result; it never takes the run down.
func (e *RulesEngine) Execute(doc models.NormalizedDocument) []RuleResult {
	e.mu.RLock()
	rules := make([]Rule, 0, len(e.rules))
	for _, r := range e.rules {
		rules = append(rules, r)
	}
	e.mu.RUnlock()

	// priority orders the report, not the outcomes
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority() != rules[j].Priority() {
			return rules[i].Priority() > rules[j].Priority()
		}
		return rules[i].RuleID() < rules[j].RuleID()
	})

	results := make([]RuleResult, 0, len(rules))
	for _, rule := range rules {
		if !rule.Enabled() {
			continue
		}
		results = append(results, RuleResult{
			RuleID:   rule.RuleID(),
			RuleName: rule.Name(),
			Result:   e.evaluate(rule, doc),
		})
	}
	return results
}

func (e *RulesEngine) evaluate(rule Rule, doc models.NormalizedDocument) (result CheckResult) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("rule panicked",
				logger.String("ruleId", rule.RuleID()),
				logger.Any("panic", r),
			)
			result = CheckResult{
				Status:  StatusError,
				Message: fmt.Sprintf("rule execution failed: %v", r),
			}
		}
	}()
	return rule.Evaluate(doc)
}

// BaseRule carries the common rule attributes so concrete rules only supply
// Evaluate.
type BaseRule struct {
	ID       string
	RuleName string
	Desc     string
	Disabled bool
	Prio     int
}

func (b BaseRule) RuleID() string      { return b.ID }
func (b BaseRule) Name() string        { return b.RuleName }
func (b BaseRule) Description() string { return b.Desc }
func (b BaseRule) Enabled() bool       { return !b.Disabled }
func (b BaseRule) Priority() int       { return b.Prio }

// FuncRule adapts a plain function into a Rule.
type FuncRule struct {
	BaseRule
	Fn func(doc models.NormalizedDocument) CheckResult
}

func (r FuncRule) Evaluate(doc models.NormalizedDocument) CheckResult {
	return r.Fn(doc)
}

// BuiltinRules exposes the amount and accumulation checks through the
// registry so generic callers can run them without knowing the engines.
func BuiltinRules(amounts *AmountEngine, accumulation *AccumulationChecker) []Rule {
	return []Rule{
		FuncRule{
			BaseRule: BaseRule{
				ID:       "amount.vertical_sum",
				RuleName: "Vertical sum",
				Desc:     "Sum of line item amounts must equal the declared total",
				Prio:     100,
			},
			Fn: amounts.ValidateVerticalSum,
		},
		FuncRule{
			BaseRule: BaseRule{
				ID:       "amount.horizontal_calculation",
				RuleName: "Horizontal calculation",
				Desc:     "unit_price × quantity must equal amount for every line item",
				Prio:     90,
			},
			Fn: amounts.ValidateHorizontalCalculation,
		},
		FuncRule{
			BaseRule: BaseRule{
				ID:       "accumulation.contract_limit",
				RuleName: "Contract ceiling",
				Desc:     "Accumulated payments must not exceed the contract amount",
				Prio:     80,
			},
			Fn: func(doc models.NormalizedDocument) CheckResult {
				contractInfo, _ := doc["contract_info"].(map[string]any)
				return accumulation.CheckContractLimit(doc, contractInfo)
			},
		},
	}
}
