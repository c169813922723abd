package pipeline

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/wpliao1997/estimation-validator/internal/confidence"
	"github.com/wpliao1997/estimation-validator/internal/extraction"
	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/internal/normalizer"
	"github.com/wpliao1997/estimation-validator/internal/schema"
	"github.com/wpliao1997/estimation-validator/internal/validation"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
)

// Stage names as they appear in the audit log.
const (
	StageStarted         = "started"
	StageExtraction      = "extraction"
	StageUnderstanding   = "understanding"
	StageStandardization = "standardization"
	StageValidation      = "validation"
	StageConfidence      = "confidence_calculation"
	StageCompleted       = "completed"
	StageError           = "error"
)

// StageError attributes a pipeline failure to the stage that raised it.
type StageError struct {
	Stage string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// FieldMapper is the understanding-service boundary consumed by the
// pipeline.
type FieldMapper interface {
	MapFields(ctx context.Context, raw *models.RawExtraction, target *schema.Schema) (map[string]any, error)
}

// ExtractorResolver resolves the extraction backend for a file type.
// *extraction.Factory satisfies it.
type ExtractorResolver interface {
	Get(fileType string) (extraction.Extractor, error)
}

// RunInput is one document run.
type RunInput struct {
	Document *models.Document
	File     io.Reader
	FileType string // file extension, e.g. ".pdf"

	// PreviousPeriods are earlier normalized documents of the same
	// contract, most recent last. Optional.
	PreviousPeriods []models.NormalizedDocument
}

// Outcome is the produced artifact of one run: everything callers and
// storage need, including the ordered stage log and terminal status.
type Outcome struct {
	DocumentID   string                       `json:"documentId"`
	Status       models.ProcessingStatus      `json:"status"`
	ErrorMessage string                       `json:"errorMessage,omitempty"`
	Raw          *models.RawExtraction        `json:"raw,omitempty"`
	Normalized   models.NormalizedDocument    `json:"normalized,omitempty"`
	SchemaErrors []string                     `json:"schemaErrors,omitempty"`
	Validation   *validation.ValidationResult `json:"validation,omitempty"`
	Confidence   *confidence.Score            `json:"confidence,omitempty"`
	Logs         []models.ProcessingLog       `json:"logs"`
	CompletedAt  time.Time                    `json:"completedAt,omitempty"`
}

// Orchestrator sequences one document run: extraction → understanding →
// standardization → validation → confidence. Stages run strictly in order;
// the three validators read the same normalized snapshot and never write
// back into it. The orchestrator performs no retries: a stage failure marks
// the run failed and the error propagates so the execution layer can apply
// its own retry policy.
//
// All collaborators are injected and stateless, so one orchestrator serves
// any number of concurrent runs.
type Orchestrator struct {
	extractors   ExtractorResolver
	mapper       FieldMapper
	normalizer   *normalizer.Normalizer
	schemas      *schema.Registry
	schemaCheck  *schema.Validator
	amounts      *validation.AmountEngine
	accumulation *validation.AccumulationChecker
	payments     *validation.PaymentConditionEngine
	rules        *validation.RulesEngine
	confidence   *confidence.Calculator
	useLLM       bool
	logger       logger.Logger
}

type Config struct {
	Extractors   ExtractorResolver
	Mapper       FieldMapper
	Normalizer   *normalizer.Normalizer
	Schemas      *schema.Registry
	SchemaCheck  *schema.Validator
	Amounts      *validation.AmountEngine
	Accumulation *validation.AccumulationChecker
	Payments     *validation.PaymentConditionEngine
	Confidence   *confidence.Calculator

	// Rules is the optional registry of additional project rules executed
	// alongside the category checks. Their results are advisory.
	Rules *validation.RulesEngine

	// UseLLM enables the language-understanding strategy for payment
	// condition parsing; the pattern fallback applies otherwise.
	UseLLM bool
}

func NewOrchestrator(cfg Config, log logger.Logger) *Orchestrator {
	return &Orchestrator{
		extractors:   cfg.Extractors,
		mapper:       cfg.Mapper,
		normalizer:   cfg.Normalizer,
		schemas:      cfg.Schemas,
		schemaCheck:  cfg.SchemaCheck,
		amounts:      cfg.Amounts,
		accumulation: cfg.Accumulation,
		payments:     cfg.Payments,
		rules:        cfg.Rules,
		confidence:   cfg.Confidence,
		useLLM:       cfg.UseLLM,
		logger:       log,
	}
}

// Run executes the full pipeline for one document. The outcome is returned
// even on failure so the caller can store the partial audit trail; the
// error carries the failing stage.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) (*Outcome, error) {
	doc := in.Document
	outcome := &Outcome{
		DocumentID: doc.DocumentID,
		Status:     models.StatusProcessing,
	}
	doc.Status = models.StatusProcessing

	o.appendLog(outcome, StageStarted, "document processing started", nil)

	// extraction
	o.appendLog(outcome, StageExtraction, "running text and table extraction", nil)
	raw, err := o.extract(ctx, in)
	if err != nil {
		return outcome, o.fail(outcome, doc, StageExtraction, err)
	}
	outcome.Raw = raw
	o.appendLog(outcome, StageExtraction, "extraction completed", map[string]any{
		"pages": len(raw.Pages), "tables": len(raw.Tables), "source": raw.Source,
	})

	// understanding
	targetSchema := o.schemas.Get(string(doc.DocumentType))
	o.appendLog(outcome, StageUnderstanding, "running semantic field mapping", nil)
	mapped, err := o.mapper.MapFields(ctx, raw, targetSchema)
	if err != nil {
		return outcome, o.fail(outcome, doc, StageUnderstanding, err)
	}
	o.appendLog(outcome, StageUnderstanding, "field mapping completed", map[string]any{
		"fields": len(mapped),
	})

	// standardization
	o.appendLog(outcome, StageStandardization, "normalizing document data", nil)
	cleaned := normalizer.RemoveNulls(mapped, true)
	normalized := o.normalizer.NormalizeDocument(cleaned, string(doc.DocumentType))
	outcome.Normalized = normalized

	if ok, schemaErrors := o.schemaCheck.Validate(normalized, targetSchema); !ok {
		// schema problems are reported, not fatal: the validators flag
		// the concrete impact per check
		outcome.SchemaErrors = schemaErrors
		o.appendLog(outcome, StageStandardization,
			fmt.Sprintf("schema validation found %d issue(s)", len(schemaErrors)),
			map[string]any{"errors": schemaErrors})
	}
	o.appendLog(outcome, StageStandardization, "standardization completed", nil)

	// validation
	o.appendLog(outcome, StageValidation, "running validation engines", nil)
	contractInfo, _ := normalized["contract_info"].(map[string]any)
	result := &validation.ValidationResult{
		Amount:            o.amounts.ValidateAll(normalized),
		Accumulation:      o.accumulation.ValidateAll(normalized, in.PreviousPeriods, contractInfo),
		PaymentConditions: o.payments.ExtractConditions(ctx, normalized, o.useLLM),
	}
	if o.rules != nil {
		result.CustomRules = o.rules.Execute(normalized)
	}
	result.ComputeOverall()
	outcome.Validation = result
	o.appendLog(outcome, StageValidation, "validation completed", map[string]any{
		"overallStatus": result.OverallStatus,
	})

	// confidence
	o.appendLog(outcome, StageConfidence, "computing confidence score", nil)
	score := o.confidence.Compute(raw, mapped, targetSchema.Required, result)
	outcome.Confidence = &score

	// completed
	now := time.Now()
	outcome.Status = models.StatusCompleted
	outcome.CompletedAt = now
	doc.Status = models.StatusCompleted
	doc.ProcessedAt = now
	o.appendLog(outcome, StageCompleted,
		fmt.Sprintf("document processing completed (confidence %.2f)", score.Overall),
		map[string]any{
			"icr_confidence":        score.ICRAccuracy,
			"mapping_confidence":    score.FieldMapping,
			"validation_confidence": score.ValidationConfidence,
			"overall_confidence":    score.Overall,
		})

	return outcome, nil
}

func (o *Orchestrator) extract(ctx context.Context, in RunInput) (*models.RawExtraction, error) {
	extractor, err := o.extractors.Get(in.FileType)
	if err != nil {
		return nil, err
	}
	return extractor.Analyze(ctx, in.File)
}

// fail transitions the run to failed, records the error in the audit trail,
// and wraps the error with its stage.
func (o *Orchestrator) fail(outcome *Outcome, doc *models.Document, stage string, err error) error {
	stageErr := &StageError{Stage: stage, Err: err}
	outcome.Status = models.StatusFailed
	outcome.ErrorMessage = stageErr.Error()
	doc.Status = models.StatusFailed
	doc.ErrorMessage = stageErr.Error()

	o.appendLog(outcome, StageError, fmt.Sprintf("processing failed: %v", stageErr), nil)
	o.logger.Error("pipeline run failed",
		logger.String("documentId", doc.DocumentID),
		logger.String("stage", stage),
		logger.Error(err),
	)
	return stageErr
}

// appendLog emits one append-only audit entry. Entries are never edited or
// removed once written.
func (o *Orchestrator) appendLog(outcome *Outcome, stage, message string, details map[string]any) {
	outcome.Logs = append(outcome.Logs, models.ProcessingLog{
		Stage:     stage,
		Message:   message,
		Details:   details,
		CreatedAt: time.Now(),
	})
	o.logger.Info(message,
		logger.String("documentId", outcome.DocumentID),
		logger.String("stage", stage),
	)
}
