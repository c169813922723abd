package converters

import (
	"fmt"
	"time"

	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/internal/pipeline"
	"github.com/wpliao1997/estimation-validator/internal/validation"
)

// ReportConverter 定義報告轉換器介面
type ReportConverter interface {
	Convert(outcome *pipeline.Outcome, meta ReportMetadata) (*ValidationReport, error)
}

// ValidationReport is the downloadable artifact of one document run:
// the normalized data, every check result, the confidence breakdown
// and the full processing audit trail.
type ValidationReport struct {
	TaskID       string                    `json:"taskId"`
	DocumentID   string                    `json:"documentId"`
	Status       string                    `json:"status"`
	Error        string                    `json:"error,omitempty"`
	Document     models.NormalizedDocument `json:"document,omitempty"`
	Validation   *ValidationSection        `json:"validation,omitempty"`
	Confidence   *ConfidenceSection        `json:"confidence,omitempty"`
	SchemaErrors []string                  `json:"schemaErrors,omitempty"`
	Logs         []models.ProcessingLog    `json:"logs"`
	Metadata     ReportMetadata            `json:"metadata"`
	ProcessedAt  time.Time                 `json:"processedAt"`
}

// ValidationSection 驗證結果摘要
type ValidationSection struct {
	OverallStatus validation.Status                   `json:"overallStatus"`
	Amount        validation.CategoryResult           `json:"amount"`
	Accumulation  validation.CategoryResult           `json:"accumulation"`
	Conditions    []validation.ParsedPaymentCondition `json:"paymentConditions,omitempty"`
	CustomRules   []validation.RuleResult             `json:"customRules,omitempty"`
	Summary       map[validation.Status]int           `json:"summary"`
}

// ConfidenceSection 信賴度明細
type ConfidenceSection struct {
	Overall              float64 `json:"overall"`
	ICRAccuracy          float64 `json:"icrAccuracy"`
	FieldMapping         float64 `json:"fieldMapping"`
	LogicUnderstanding   float64 `json:"logicUnderstanding"`
	ValidationConfidence float64 `json:"validationConfidence"`
}

// ReportMetadata 報告元資料
type ReportMetadata struct {
	FileName     string `json:"fileName"`
	FileType     string `json:"fileType"`
	FileSize     int64  `json:"fileSize"`
	DocumentType string `json:"documentType"`
	PageCount    int    `json:"pageCount,omitempty"`
	Source       string `json:"source,omitempty"`
	ProcessingMs int64  `json:"processingMs"`
}

// JSONReportConverter 實作報告轉換器
type JSONReportConverter struct{}

func NewJSONReportConverter() *JSONReportConverter {
	return &JSONReportConverter{}
}

func (c *JSONReportConverter) Convert(outcome *pipeline.Outcome, meta ReportMetadata) (*ValidationReport, error) {
	if outcome == nil {
		return nil, fmt.Errorf("no outcome to convert")
	}

	report := &ValidationReport{
		DocumentID:   outcome.DocumentID,
		Status:       string(outcome.Status),
		Error:        outcome.ErrorMessage,
		Document:     outcome.Normalized,
		SchemaErrors: outcome.SchemaErrors,
		Logs:         outcome.Logs,
		Metadata:     meta,
		ProcessedAt:  time.Now(),
	}
	if !outcome.CompletedAt.IsZero() {
		report.ProcessedAt = outcome.CompletedAt
	}

	if outcome.Raw != nil {
		report.Metadata.PageCount = len(outcome.Raw.Pages)
		report.Metadata.Source = outcome.Raw.Source
	}

	if outcome.Validation != nil {
		report.Validation = buildValidationSection(outcome.Validation)
	}

	if outcome.Confidence != nil {
		report.Confidence = &ConfidenceSection{
			Overall:              outcome.Confidence.Overall,
			ICRAccuracy:          outcome.Confidence.ICRAccuracy,
			FieldMapping:         outcome.Confidence.FieldMapping,
			LogicUnderstanding:   outcome.Confidence.LogicUnderstanding,
			ValidationConfidence: outcome.Confidence.ValidationConfidence,
		}
	}

	return report, nil
}

func buildValidationSection(result *validation.ValidationResult) *ValidationSection {
	section := &ValidationSection{
		OverallStatus: result.OverallStatus,
		Amount:        result.Amount,
		Accumulation:  result.Accumulation,
		Conditions:    result.PaymentConditions,
		CustomRules:   result.CustomRules,
		Summary:       make(map[validation.Status]int),
	}

	for _, check := range result.Flatten() {
		section.Summary[check.Status]++
	}

	return section
}
