package normalizer

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
)

// Normalizer 資料標準化處理器
// Coerces heterogeneous raw field values into canonical types. Unparseable
// amounts become 0 with a logged warning: the pipeline prefers continuing
// with a defaulted value over failing the whole run. Stateless.
type Normalizer struct {
	logger logger.Logger
}

func New(log logger.Logger) *Normalizer {
	return &Normalizer{logger: log}
}

// amount fields normalized on the document root
var rootAmountFields = []string{"period_amount", "previous_accumulation", "current_accumulation", "total_amount"}

// amount fields normalized on each line item
var itemAmountFields = []string{"quantity", "unit_price", "amount", "previous_quantity", "total_quantity"}

var identifierPattern = regexp.MustCompile(`[^A-Z0-9-]`)

// candidate date layouts, first match wins
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"2006年01月02日",
	"20060102",
}

// currency markers stripped before numeric parsing
var currencyMarkers = []string{",", "NT$", "$", "元"}

// NormalizeDocument 標準化整份文件資料
// Known fields are coerced; unknown fields pass through verbatim so the
// schema can grow without breaking older callers.
func (n *Normalizer) NormalizeDocument(raw map[string]any, documentType string) models.NormalizedDocument {
	normalized := models.NormalizedDocument{
		"document_type": documentType,
		"normalized_at": time.Now().Format(time.RFC3339),
	}

	if v, ok := raw["document_id"]; ok {
		normalized["document_id"] = n.NormalizeIdentifier(v)
	}
	if info, ok := raw["contract_info"].(map[string]any); ok {
		normalized["contract_info"] = n.NormalizeContractInfo(info)
	}
	if items, ok := raw["items"]; ok {
		normalized["items"] = n.NormalizeItems(items)
	}
	for _, field := range rootAmountFields {
		if v, ok := raw[field]; ok {
			normalized[field] = n.NormalizeAmount(v)
		}
	}
	if v, ok := raw["date"]; ok {
		normalized["date"] = n.NormalizeDate(v)
	}

	// pass through everything not explicitly normalized
	for key, value := range raw {
		if _, done := normalized[key]; !done {
			normalized[key] = value
		}
	}

	return normalized
}

// NormalizeIdentifier uppercases, trims, and strips everything outside
// [A-Z0-9-].
func (n *Normalizer) NormalizeIdentifier(v any) string {
	s := strings.ToUpper(strings.TrimSpace(toString(v)))
	return identifierPattern.ReplaceAllString(s, "")
}

// NormalizeAmount coerces native numbers or formatted strings (thousands
// separators, currency markers) to float64. Unparseable input yields 0 and
// a warning, never an error.
func (n *Normalizer) NormalizeAmount(v any) float64 {
	switch a := v.(type) {
	case float64:
		return a
	case float32:
		return float64(a)
	case int:
		return float64(a)
	case int64:
		return float64(a)
	case string:
		s := a
		for _, marker := range currencyMarkers {
			s = strings.ReplaceAll(s, marker, "")
		}
		s = strings.TrimSpace(s)
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			n.logger.Warn("unparseable amount, defaulting to 0",
				logger.String("value", a),
			)
			return 0
		}
		return f
	case nil:
		return 0
	default:
		n.logger.Warn("unexpected amount type, defaulting to 0",
			logger.Any("value", v),
		)
		return 0
	}
}

// NormalizeDate tries the candidate layouts in order and renders the first
// match as ISO YYYY-MM-DD. Input that matches nothing is returned unchanged
// so schema validation can flag it explicitly.
func (n *Normalizer) NormalizeDate(v any) string {
	if t, ok := v.(time.Time); ok {
		return t.Format("2006-01-02")
	}
	s := toString(v)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02")
		}
	}
	n.logger.Warn("unrecognized date format", logger.String("value", s))
	return s
}

// NormalizeContractInfo 標準化合約資訊
func (n *Normalizer) NormalizeContractInfo(info map[string]any) map[string]any {
	normalized := make(map[string]any, len(info))

	if v, ok := info["contract_number"]; ok {
		normalized["contract_number"] = n.NormalizeIdentifier(v)
	}
	for _, field := range []string{"contract_amount", "current_total_amount"} {
		if v, ok := info[field]; ok {
			normalized[field] = n.NormalizeAmount(v)
		}
	}
	for _, field := range []string{"start_date", "end_date"} {
		if v, ok := info[field]; ok {
			normalized[field] = n.NormalizeDate(v)
		}
	}
	for key, value := range info {
		if _, done := normalized[key]; !done {
			normalized[key] = value
		}
	}

	return normalized
}

// NormalizeItems 標準化項目明細列表
func (n *Normalizer) NormalizeItems(items any) []map[string]any {
	var list []map[string]any
	switch v := items.(type) {
	case []map[string]any:
		list = v
	case []any:
		for _, it := range v {
			if m, ok := it.(map[string]any); ok {
				list = append(list, m)
			}
		}
	default:
		return nil
	}

	normalized := make([]map[string]any, 0, len(list))
	for _, item := range list {
		out := make(map[string]any, len(item))
		for _, field := range itemAmountFields {
			if v, ok := item[field]; ok {
				out[field] = n.NormalizeAmount(v)
			}
		}
		for key, value := range item {
			if _, done := out[key]; !done {
				out[key] = value
			}
		}
		normalized = append(normalized, out)
	}
	return normalized
}

// RemoveNulls drops nil-valued keys, recursing into nested maps and lists
// when recursive is set. Used before steps that reject nulls.
func RemoveNulls(data map[string]any, recursive bool) map[string]any {
	cleaned := make(map[string]any, len(data))
	for key, value := range data {
		if value == nil {
			continue
		}
		switch v := value.(type) {
		case map[string]any:
			if recursive {
				cleaned[key] = RemoveNulls(v, true)
				continue
			}
		case []any:
			if recursive {
				list := make([]any, 0, len(v))
				for _, item := range v {
					if item == nil {
						continue
					}
					if m, ok := item.(map[string]any); ok {
						list = append(list, RemoveNulls(m, true))
					} else {
						list = append(list, item)
					}
				}
				cleaned[key] = list
				continue
			}
		}
		cleaned[key] = value
	}
	return cleaned
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	if v == nil {
		return ""
	}
	return strconvFormat(v)
}

func strconvFormat(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case int:
		return strconv.Itoa(n)
	case int64:
		return strconv.FormatInt(n, 10)
	default:
		return ""
	}
}
