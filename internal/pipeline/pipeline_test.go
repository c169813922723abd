package pipeline

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpliao1997/estimation-validator/internal/confidence"
	"github.com/wpliao1997/estimation-validator/internal/extraction"
	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/internal/normalizer"
	"github.com/wpliao1997/estimation-validator/internal/schema"
	"github.com/wpliao1997/estimation-validator/internal/validation"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
)

type fakeExtractor struct {
	raw *models.RawExtraction
	err error
}

func (f *fakeExtractor) CanProcess(string) bool { return true }

func (f *fakeExtractor) Analyze(_ context.Context, _ io.Reader) (*models.RawExtraction, error) {
	return f.raw, f.err
}

func (f *fakeExtractor) Close() error { return nil }

type fakeResolver struct {
	extractor *fakeExtractor
	err       error
}

func (f *fakeResolver) Get(string) (extraction.Extractor, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.extractor, nil
}

type fakeMapper struct {
	mapped map[string]any
	err    error
	calls  int
}

func (f *fakeMapper) MapFields(_ context.Context, _ *models.RawExtraction, _ *schema.Schema) (map[string]any, error) {
	f.calls++
	return f.mapped, f.err
}

func newTestOrchestrator(t *testing.T, resolver ExtractorResolver, mapper FieldMapper) *Orchestrator {
	t.Helper()
	log := logger.NewTestLogger()
	return NewOrchestrator(Config{
		Extractors:   resolver,
		Mapper:       mapper,
		Normalizer:   normalizer.New(log),
		Schemas:      schema.NewRegistry(log),
		SchemaCheck:  schema.NewValidator(),
		Amounts:      validation.NewAmountEngine(log),
		Accumulation: validation.NewAccumulationChecker(log),
		Payments:     validation.NewPaymentConditionEngine(nil, log),
		Confidence:   confidence.NewCalculator(),
		UseLLM:       false,
	}, log)
}

func cannedExtraction() *models.RawExtraction {
	return &models.RawExtraction{
		Pages: []models.ExtractedPage{
			{Number: 1, Text: "第一期估驗計價單", Confidence: 0.92},
		},
		Tables: []models.ExtractedTable{
			{Page: 1, Rows: [][]string{{"項目", "單價", "數量", "金額"}, {"鋼筋", "500", "2", "1000"}}},
		},
		Source: "tesseract",
	}
}

func cannedMapping() map[string]any {
	return map[string]any{
		"document_id":   "EST-2024-001",
		"total_amount":  "1,500",
		"period_amount": 1500.0,
		"period_number": 1,
		"items": []any{
			map[string]any{"description": "鋼筋", "unit_price": 500.0, "quantity": 2.0, "amount": 1000.0},
			map[string]any{"description": "模板", "unit_price": 250.0, "quantity": 2.0, "amount": 500.0},
		},
		"contract_info": map[string]any{
			"contract_number": "C-2024-001",
			"contract_amount": 100000.0,
			"payment_terms":   "工程完成30%後支付第一期款",
		},
	}
}

func TestRunCompletesAndLogsStagesInOrder(t *testing.T) {
	resolver := &fakeResolver{extractor: &fakeExtractor{raw: cannedExtraction()}}
	mapper := &fakeMapper{mapped: cannedMapping()}
	orch := newTestOrchestrator(t, resolver, mapper)

	doc := &models.Document{
		ID:           "task-1",
		DocumentID:   "task-1",
		DocumentType: models.TypeEstimation,
		Status:       models.StatusUploaded,
	}
	outcome, err := orch.Run(context.Background(), RunInput{
		Document: doc,
		File:     strings.NewReader("fake pdf bytes"),
		FileType: ".pdf",
	})

	require.NoError(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, models.StatusCompleted, outcome.Status)
	assert.Equal(t, models.StatusCompleted, doc.Status)
	assert.False(t, doc.ProcessedAt.IsZero())
	assert.False(t, outcome.CompletedAt.IsZero())
	assert.Equal(t, 1, mapper.calls)

	// 稽核軌跡依序記錄各階段
	var stages []string
	for _, entry := range outcome.Logs {
		stages = append(stages, entry.Stage)
	}
	assert.Equal(t, []string{
		StageStarted,
		StageExtraction, StageExtraction,
		StageUnderstanding, StageUnderstanding,
		StageStandardization, StageStandardization,
		StageValidation, StageValidation,
		StageConfidence,
		StageCompleted,
	}, stages)

	require.NotNil(t, outcome.Validation)
	assert.Equal(t, validation.StatusPass, outcome.Validation.OverallStatus)
	assert.NotEmpty(t, outcome.Validation.PaymentConditions)

	require.NotNil(t, outcome.Confidence)
	assert.InDelta(t, 0.92, outcome.Confidence.ICRAccuracy, 1e-9)
	assert.Greater(t, outcome.Confidence.Overall, 0.0)
	assert.LessOrEqual(t, outcome.Confidence.Overall, 1.0)
}

func TestRunNormalizesBeforeValidation(t *testing.T) {
	resolver := &fakeResolver{extractor: &fakeExtractor{raw: cannedExtraction()}}
	mapper := &fakeMapper{mapped: cannedMapping()}
	orch := newTestOrchestrator(t, resolver, mapper)

	outcome, err := orch.Run(context.Background(), RunInput{
		Document: &models.Document{DocumentID: "task-2", DocumentType: models.TypeEstimation},
		File:     strings.NewReader("x"),
		FileType: ".pdf",
	})

	require.NoError(t, err)
	// "1,500" 需在驗證前轉為數值,縱向加總才會通過
	assert.Equal(t, 1500.0, outcome.Normalized["total_amount"])
	vertical := outcome.Validation.Amount.Checks["vertical_sum"]
	assert.Equal(t, validation.StatusPass, vertical.Status)
}

func TestRunExtractionFailure(t *testing.T) {
	extractErr := errors.New("tesseract: image decode failed")
	resolver := &fakeResolver{extractor: &fakeExtractor{err: extractErr}}
	mapper := &fakeMapper{mapped: cannedMapping()}
	orch := newTestOrchestrator(t, resolver, mapper)

	doc := &models.Document{DocumentID: "task-3", DocumentType: models.TypeEstimation}
	outcome, err := orch.Run(context.Background(), RunInput{
		Document: doc,
		File:     strings.NewReader("x"),
		FileType: ".png",
	})

	require.Error(t, err)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageExtraction, stageErr.Stage)
	assert.ErrorIs(t, err, extractErr)

	require.NotNil(t, outcome)
	assert.Equal(t, models.StatusFailed, outcome.Status)
	assert.Equal(t, models.StatusFailed, doc.Status)
	assert.NotEmpty(t, doc.ErrorMessage)
	assert.Equal(t, StageError, lastStage(outcome.Logs))
	// 後續階段不得執行
	assert.Equal(t, 0, mapper.calls)
	assert.Nil(t, outcome.Validation)
	assert.Nil(t, outcome.Confidence)
}

func TestRunUnknownFileType(t *testing.T) {
	resolver := &fakeResolver{err: errors.New("unsupported file type .docx")}
	orch := newTestOrchestrator(t, resolver, &fakeMapper{})

	_, err := orch.Run(context.Background(), RunInput{
		Document: &models.Document{DocumentID: "task-4", DocumentType: models.TypeEstimation},
		File:     strings.NewReader("x"),
		FileType: ".docx",
	})

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageExtraction, stageErr.Stage)
}

func TestRunMappingFailure(t *testing.T) {
	resolver := &fakeResolver{extractor: &fakeExtractor{raw: cannedExtraction()}}
	mapper := &fakeMapper{err: errors.New("llm: request timed out")}
	orch := newTestOrchestrator(t, resolver, mapper)

	outcome, err := orch.Run(context.Background(), RunInput{
		Document: &models.Document{DocumentID: "task-5", DocumentType: models.TypeEstimation},
		File:     strings.NewReader("x"),
		FileType: ".pdf",
	})

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageUnderstanding, stageErr.Stage)
	// 萃取結果仍保留在 outcome,供除錯使用
	assert.NotNil(t, outcome.Raw)
	assert.Equal(t, models.StatusFailed, outcome.Status)
}

func TestRunSchemaErrorsAreNotFatal(t *testing.T) {
	mapped := cannedMapping()
	delete(mapped, "document_id") // 必填欄位缺漏
	resolver := &fakeResolver{extractor: &fakeExtractor{raw: cannedExtraction()}}
	orch := newTestOrchestrator(t, resolver, &fakeMapper{mapped: mapped})

	outcome, err := orch.Run(context.Background(), RunInput{
		Document: &models.Document{DocumentID: "task-6", DocumentType: models.TypeEstimation},
		File:     strings.NewReader("x"),
		FileType: ".pdf",
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, outcome.Status)
	assert.NotEmpty(t, outcome.SchemaErrors)
}

func TestRunPassesPreviousPeriods(t *testing.T) {
	mapped := cannedMapping()
	mapped["period_number"] = 2
	mapped["current_accumulation"] = 2700.0
	resolver := &fakeResolver{extractor: &fakeExtractor{raw: cannedExtraction()}}
	orch := newTestOrchestrator(t, resolver, &fakeMapper{mapped: mapped})

	outcome, err := orch.Run(context.Background(), RunInput{
		Document: &models.Document{DocumentID: "task-7", DocumentType: models.TypeEstimation},
		File:     strings.NewReader("x"),
		FileType: ".pdf",
		PreviousPeriods: []models.NormalizedDocument{
			{"period_number": 1, "current_accumulation": 1200.0},
		},
	})

	require.NoError(t, err)
	logic := outcome.Validation.Accumulation.Checks["accumulation_logic"]
	assert.Equal(t, validation.StatusPass, logic.Status)
}

func TestRunExecutesRegisteredRules(t *testing.T) {
	log := logger.NewTestLogger()
	rules := validation.NewRulesEngine(log)
	for _, rule := range validation.BuiltinRules(
		validation.NewAmountEngine(log),
		validation.NewAccumulationChecker(log),
	) {
		rules.Register(rule)
	}

	resolver := &fakeResolver{extractor: &fakeExtractor{raw: cannedExtraction()}}
	orch := NewOrchestrator(Config{
		Extractors:   resolver,
		Mapper:       &fakeMapper{mapped: cannedMapping()},
		Normalizer:   normalizer.New(log),
		Schemas:      schema.NewRegistry(log),
		SchemaCheck:  schema.NewValidator(),
		Amounts:      validation.NewAmountEngine(log),
		Accumulation: validation.NewAccumulationChecker(log),
		Payments:     validation.NewPaymentConditionEngine(nil, log),
		Rules:        rules,
		Confidence:   confidence.NewCalculator(),
	}, log)

	outcome, err := orch.Run(context.Background(), RunInput{
		Document: &models.Document{DocumentID: "task-8", DocumentType: models.TypeEstimation},
		File:     strings.NewReader("x"),
		FileType: ".pdf",
	})

	require.NoError(t, err)
	require.Len(t, outcome.Validation.CustomRules, 3)
	assert.Equal(t, "amount.vertical_sum", outcome.Validation.CustomRules[0].RuleID)
	for _, r := range outcome.Validation.CustomRules {
		assert.Equal(t, validation.StatusPass, r.Result.Status)
	}
}

func lastStage(logs []models.ProcessingLog) string {
	if len(logs) == 0 {
		return ""
	}
	return logs[len(logs)-1].Stage
}
