package validation

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
)

// TriggerType classifies what releases a payment.
type TriggerType string

const (
	TriggerProgress   TriggerType = "progress"
	TriggerTime       TriggerType = "time"
	TriggerMilestone  TriggerType = "milestone"
	TriggerAcceptance TriggerType = "acceptance"
	TriggerUnknown    TriggerType = "unknown"
)

// ParsedPaymentCondition is the structured form of one payment trigger
// condition. Immutable once parsed; evaluated against actual project state
// at a later point in time.
type ParsedPaymentCondition struct {
	OriginalText string      `json:"originalText"`
	TriggerType  TriggerType `json:"triggerType"`
	Threshold    *float64    `json:"threshold,omitempty"`
	PaymentPhase *int        `json:"paymentPhase,omitempty"`
	Conditions   []string    `json:"conditions,omitempty"`
}

// ConditionParser is the language-understanding strategy for condition
// parsing. Implementations must produce the same shape as the pattern
// fallback so validation stays strategy-agnostic.
type ConditionParser interface {
	ParseConditionText(ctx context.Context, text string) (ParsedPaymentCondition, error)
}

// PaymentConditionEngine 付款條件驗算引擎
type PaymentConditionEngine struct {
	parser ConditionParser // optional LLM strategy
	logger logger.Logger
}

func NewPaymentConditionEngine(parser ConditionParser, log logger.Logger) *PaymentConditionEngine {
	return &PaymentConditionEngine{
		parser: parser,
		logger: log,
	}
}

var (
	// 工程完成30%後支付第二期款 → progress 30, phase 2
	progressPattern = regexp.MustCompile(`工程完成.*?(\d+(?:\.\d+)?)%.*?第([一二三四五六七八九十]+|\d+)期`)
	// 6個月 / 6月 → duration in months
	timePattern = regexp.MustCompile(`(\d+)個?月`)
	// 驗收 keyword marks an acceptance trigger
	acceptancePattern = regexp.MustCompile(`驗收`)
	passedPattern     = regexp.MustCompile(`合格`)
)

// localized ordinal numerals one through ten; anything else maps to zero
var chineseNumerals = map[string]int{
	"一": 1, "二": 2, "三": 3, "四": 4, "五": 5,
	"六": 6, "七": 7, "八": 8, "九": 9, "十": 10,
}

// ParseCondition parses one condition string. With useLLM the configured
// language-understanding strategy is tried first; the pattern fallback
// covers a missing strategy or a strategy failure.
func (e *PaymentConditionEngine) ParseCondition(ctx context.Context, text string, useLLM bool) ParsedPaymentCondition {
	if useLLM && e.parser != nil {
		parsed, err := e.parser.ParseConditionText(ctx, text)
		if err == nil {
			return parsed
		}
		e.logger.Warn("condition parser failed, using pattern fallback",
			logger.String("text", text),
			logger.Error(err),
		)
	}
	return e.parseWithRules(text)
}

// parseWithRules is the deterministic pattern-based strategy. Unmatched
// text yields TriggerUnknown with all threshold fields nil.
func (e *PaymentConditionEngine) parseWithRules(text string) ParsedPaymentCondition {
	parsed := ParsedPaymentCondition{
		OriginalText: text,
		TriggerType:  TriggerUnknown,
	}

	if m := progressPattern.FindStringSubmatch(text); m != nil {
		parsed.TriggerType = TriggerProgress
		threshold, _ := strconv.ParseFloat(m[1], 64)
		parsed.Threshold = &threshold
		phase := convertNumeral(m[2])
		parsed.PaymentPhase = &phase
	}

	if acceptancePattern.MatchString(text) {
		parsed.TriggerType = TriggerAcceptance
		if passedPattern.MatchString(text) {
			parsed.Conditions = append(parsed.Conditions, "acceptance_passed")
		}
	}

	if m := timePattern.FindStringSubmatch(text); m != nil {
		parsed.TriggerType = TriggerTime
		months, _ := strconv.ParseFloat(m[1], 64)
		parsed.Threshold = &months
	}

	return parsed
}

// convertNumeral maps a phase numeral (localized or arabic) to an integer.
// Unmapped numerals default to zero, a lossy fallback rather than an error.
func convertNumeral(s string) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return chineseNumerals[s]
}

// ValidatePayment evaluates a parsed condition against actual project
// state. Only progress triggers have agreed semantics; acceptance, time and
// milestone evaluation report pass with an explicit not-yet-implemented
// message instead of inventing thresholds.
func (e *PaymentConditionEngine) ValidatePayment(parsed ParsedPaymentCondition, actual map[string]any) CheckResult {
	switch parsed.TriggerType {
	case TriggerProgress:
		return e.validateProgress(parsed, actual)
	case TriggerAcceptance:
		return CheckResult{Status: StatusPass, Message: "acceptance condition evaluation not yet implemented"}
	case TriggerTime:
		return CheckResult{Status: StatusPass, Message: "time condition evaluation not yet implemented"}
	case TriggerMilestone:
		return CheckResult{Status: StatusPass, Message: "milestone condition evaluation not yet implemented"}
	default:
		return CheckResult{Status: StatusWarning, Message: "unrecognized payment condition type"}
	}
}

func (e *PaymentConditionEngine) validateProgress(parsed ParsedPaymentCondition, actual map[string]any) CheckResult {
	var required float64
	if parsed.Threshold != nil {
		required = *parsed.Threshold
	}
	actualProgress, err := toNumber(actual["progress_percentage"])
	if err != nil {
		return CheckResult{
			Status:  StatusError,
			Message: fmt.Sprintf("actual progress is not numeric: %v", err),
		}
	}

	details := map[string]any{
		"required_progress": required,
		"actual_progress":   actualProgress,
	}
	if actualProgress >= required {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("progress %.1f%% meets required %.1f%%", actualProgress, required),
			Details: details,
		}
	}
	return CheckResult{
		Status:  StatusFail,
		Message: fmt.Sprintf("progress %.1f%% below required %.1f%%", actualProgress, required),
		Details: details,
	}
}

// ExtractConditions pulls the free-text payment terms out of the contract
// info (the newer contract_financials location wins over the legacy
// contract_info one) and parses them, then appends any pre-parsed
// payment_conditions the document carries without re-parsing.
func (e *PaymentConditionEngine) ExtractConditions(ctx context.Context, doc models.NormalizedDocument, useLLM bool) []ParsedPaymentCondition {
	var conditions []ParsedPaymentCondition

	contractInfo, _ := doc["contract_financials"].(map[string]any)
	if contractInfo == nil {
		contractInfo, _ = doc["contract_info"].(map[string]any)
	}
	if contractInfo != nil {
		if terms, _ := contractInfo["payment_terms"].(string); terms != "" {
			conditions = append(conditions, e.ParseCondition(ctx, terms, useLLM))
		}
	}

	if raw, ok := doc["payment_conditions"].([]any); ok {
		for _, entry := range raw {
			if m, ok := entry.(map[string]any); ok {
				conditions = append(conditions, conditionFromMap(m))
			}
		}
	}

	return conditions
}

// conditionFromMap decodes a pre-structured condition entry. The entry may
// carry the parsed form under parsed_condition or be the parsed form itself.
func conditionFromMap(m map[string]any) ParsedPaymentCondition {
	if inner, ok := m["parsed_condition"].(map[string]any); ok {
		parsed := conditionFromMap(inner)
		if parsed.OriginalText == "" {
			parsed.OriginalText, _ = m["condition_text"].(string)
		}
		return parsed
	}

	parsed := ParsedPaymentCondition{TriggerType: TriggerUnknown}
	if s, ok := m["original_text"].(string); ok {
		parsed.OriginalText = s
	} else if s, ok := m["condition_text"].(string); ok {
		parsed.OriginalText = s
	}
	if s, ok := m["trigger_type"].(string); ok && s != "" {
		parsed.TriggerType = TriggerType(s)
	}
	if n, err := toNumber(m["threshold"]); err == nil && m["threshold"] != nil {
		parsed.Threshold = &n
	}
	if n, err := toNumber(m["payment_phase"]); err == nil && m["payment_phase"] != nil {
		phase := int(n)
		parsed.PaymentPhase = &phase
	}
	if list, ok := m["conditions"].([]any); ok {
		for _, c := range list {
			if s, ok := c.(string); ok {
				parsed.Conditions = append(parsed.Conditions, s)
			}
		}
	}
	return parsed
}
