package estimation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	cfg "github.com/wpliao1997/estimation-validator/config"
	"github.com/wpliao1997/estimation-validator/internal/confidence"
	"github.com/wpliao1997/estimation-validator/internal/extraction"
	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/internal/normalizer"
	"github.com/wpliao1997/estimation-validator/internal/pipeline"
	"github.com/wpliao1997/estimation-validator/internal/schema"
	"github.com/wpliao1997/estimation-validator/internal/understanding"
	"github.com/wpliao1997/estimation-validator/internal/utils/validator"
	"github.com/wpliao1997/estimation-validator/internal/validation"
	"github.com/wpliao1997/estimation-validator/pkg/converters"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
	"github.com/wpliao1997/estimation-validator/pkg/queue"
	"github.com/wpliao1997/estimation-validator/pkg/storage"
	"github.com/wpliao1997/estimation-validator/pkg/storage/artifact"
)

type EstimationService struct {
	orchestrator *pipeline.Orchestrator
	queue        queue.Queue
	storage      storage.Storage
	uploads      *validator.DocumentValidator
	converter    converters.ReportConverter
	logger       logger.Logger
	config       *ServiceConfig
}

type ServiceConfig struct {
	MaxFileSize    int64
	AllowedTypes   []string
	QueuePriority  int
	MaxConcurrent  int
	ProcessTimeout time.Duration
	// RetentionPeriod 為上傳原始檔的保存期限
	RetentionPeriod time.Duration
	// ReportRetention 為驗證報告的保存期限,報告供事後稽核,
	// 保存得比原始檔久
	ReportRetention time.Duration
}

func NewService(
	orchestrator *pipeline.Orchestrator,
	q queue.Queue,
	store storage.Storage,
	uploads *validator.DocumentValidator,
	log logger.Logger,
	c *ServiceConfig,
) EstimationProcessor {
	if c == nil {
		c = &ServiceConfig{
			MaxFileSize:     50 * 1024 * 1024, // 50MB
			AllowedTypes:    []string{".pdf", ".jpg", ".jpeg", ".png", ".tiff"},
			MaxConcurrent:   5,
			ProcessTimeout:  30 * time.Minute,
			RetentionPeriod: 24 * time.Hour,
			ReportRetention: 7 * 24 * time.Hour,
		}
	}

	return &EstimationService{
		orchestrator: orchestrator,
		queue:        q,
		storage:      store,
		uploads:      uploads,
		converter:    converters.NewJSONReportConverter(),
		logger:       log,
		config:       c,
	}
}

// GetService 組裝預設的估驗服務
func GetService(ctx context.Context, log logger.Logger) (EstimationProcessor, error) {
	pc := cfg.GetPipelineConfig()

	store, err := storage.NewStorage(storage.StorageType(pc.StorageBackend), log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	q, err := queue.GetQueue()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize queue: %w", err)
	}

	extractors, err := extraction.NewFactory(ctx, &extraction.FactoryConfig{UseTextract: pc.UseTextract}, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize extractors: %w", err)
	}

	registry := schema.NewRegistry(log)
	if pc.SchemaDir != "" {
		if err := registry.LoadDir(pc.SchemaDir); err != nil {
			return nil, fmt.Errorf("failed to load schemas: %w", err)
		}
	}

	llm := understanding.NewClient(log)
	amounts := validation.NewAmountEngine(log, validation.WithAmountTolerance(pc.AmountTolerance))
	accumulation := validation.NewAccumulationChecker(log, validation.WithAccumulationTolerance(pc.AmountTolerance))

	rules := validation.NewRulesEngine(log)
	for _, rule := range validation.BuiltinRules(amounts, accumulation) {
		rules.Register(rule)
	}

	orchestrator := pipeline.NewOrchestrator(pipeline.Config{
		Extractors:   extractors,
		Mapper:       llm,
		Normalizer:   normalizer.New(log),
		Schemas:      registry,
		SchemaCheck:  schema.NewValidator(),
		Amounts:      amounts,
		Accumulation: accumulation,
		Payments:     validation.NewPaymentConditionEngine(llm, log),
		Rules:        rules,
		Confidence:   confidence.NewCalculator(),
		UseLLM:       pc.UseLLM,
	}, log)

	uploads := validator.NewDocumentValidator(log, nil)

	return NewService(orchestrator, q, store, uploads, log, nil), nil
}

// ProcessFile 處理單一檔案：驗證、儲存、入列
func (s *EstimationService) ProcessFile(
	ctx context.Context,
	file multipart.File,
	header *multipart.FileHeader,
	docType string,
) (*models.ProcessingTask, error) {
	s.logger.Info("Starting file processing",
		logger.String("filename", header.Filename),
		logger.Int64("size", header.Size),
		logger.String("documentType", docType),
	)

	checked, err := s.uploads.ValidateFile(header)
	if err != nil {
		return nil, fmt.Errorf("failed to validate file: %w", err)
	}
	if !checked.IsValid {
		s.logger.Error("File validation failed",
			logger.String("filename", header.Filename),
			logger.Any("errors", checked.Errors),
		)
		return nil, fmt.Errorf("file rejected: %s", checked.Errors[0].Message)
	}

	if docType == "" {
		docType = string(models.TypeEstimation)
	}

	taskID := uuid.New().String()

	task := &models.ProcessingTask{
		ID:        taskID,
		Status:    "pending",
		Type:      queue.TaskTypeEstimationProcess,
		Priority:  s.config.QueuePriority,
		Progress:  0,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
		Metadata: map[string]string{
			"filename":     header.Filename,
			"size":         fmt.Sprintf("%d", header.Size),
			"type":         filepath.Ext(header.Filename),
			"documentType": docType,
		},
	}

	fileID, err := s.storage.Store(ctx, file, artifact.UploadKey(taskID, header.Filename))
	if err != nil {
		s.logger.Error("Failed to store file",
			logger.String("filename", header.Filename),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to store file: %w", err)
	}

	queueTask := &queue.Task{
		ID:       taskID,
		Type:     task.Type,
		Priority: task.Priority,
		Payload: map[string]interface{}{
			"fileId":       fileID,
			"filename":     header.Filename,
			"size":         header.Size,
			"type":         filepath.Ext(header.Filename),
			"documentType": docType,
		},
		Metadata:  task.Metadata,
		CreatedAt: task.CreatedAt,
	}

	if err := s.queue.Enqueue(ctx, queueTask); err != nil {
		s.logger.Error("Failed to enqueue task",
			logger.String("taskId", taskID),
			logger.Error(err),
		)
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	initialStatus := &queue.TaskStatus{
		TaskID:    taskID,
		Status:    "pending",
		Progress:  0,
		StartedAt: time.Now(),
	}
	if err := s.queue.SaveFinalStatus(ctx, initialStatus); err != nil {
		s.logger.Error("Failed to save initial status",
			logger.String("taskId", taskID),
			logger.Error(err),
		)
	}

	s.logger.Info("Validation task created",
		logger.String("taskId", taskID),
		logger.String("filename", header.Filename),
	)

	return task, nil
}

// ProcessBatch 批次處理檔案
func (s *EstimationService) ProcessBatch(ctx context.Context, files []*multipart.FileHeader, docType string) ([]*models.ProcessingTask, error) {
	tasks := make([]*models.ProcessingTask, 0, len(files))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.config.MaxConcurrent)

	for _, header := range files {
		header := header
		g.Go(func() error {
			file, err := header.Open()
			if err != nil {
				return fmt.Errorf("failed to open file %s: %w", header.Filename, err)
			}
			defer file.Close()

			task, err := s.ProcessFile(ctx, file, header, docType)
			if err != nil {
				return fmt.Errorf("failed to process file %s: %w", header.Filename, err)
			}

			mu.Lock()
			tasks = append(tasks, task)
			mu.Unlock()

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return tasks, err
	}

	return tasks, nil
}

// HandleDocument 執行單一文件的完整驗證流程
func (s *EstimationService) HandleDocument(ctx context.Context, task *queue.Task) error {
	if task == nil || task.Payload == nil || task.Metadata == nil {
		return fmt.Errorf("invalid task: missing required data")
	}

	s.logger.Info("Processing document",
		logger.String("taskId", task.ID),
		logger.String("filename", task.Metadata["filename"]),
	)

	fileID, _ := task.Payload["fileId"].(string)
	if fileID == "" {
		return fmt.Errorf("invalid task: missing fileId")
	}
	reader, err := s.storage.Get(ctx, fileID)
	if err != nil {
		return fmt.Errorf("failed to get file: %w", err)
	}
	defer reader.Close()

	doc := &models.Document{
		ID:           task.ID,
		DocumentID:   task.ID,
		DocumentType: models.DocumentType(task.Metadata["documentType"]),
		FileName:     task.Metadata["filename"],
		Status:       models.StatusUploaded,
		UploadedAt:   task.CreatedAt,
	}
	if size, err := strconv.ParseInt(task.Metadata["size"], 10, 64); err == nil {
		doc.FileSize = size
	}

	outcome, runErr := s.orchestrator.Run(ctx, pipeline.RunInput{
		Document:        doc,
		File:            reader,
		FileType:        task.Metadata["type"],
		PreviousPeriods: previousPeriods(task.Payload),
	})

	// the report is stored even for failed runs so the audit trail and
	// partial results stay retrievable
	if outcome != nil {
		if storeErr := s.storeReport(ctx, task, outcome); storeErr != nil {
			s.logger.Error("Failed to store report",
				logger.String("taskId", task.ID),
				logger.Error(storeErr),
			)
			if runErr == nil {
				return storeErr
			}
		}
	}

	finalStatus := &queue.TaskStatus{
		TaskID:     task.ID,
		Status:     "completed",
		Progress:   1.0,
		StartedAt:  task.CreatedAt,
		FinishedAt: time.Now(),
	}
	if runErr != nil {
		finalStatus.Status = "failed"
		finalStatus.Error = runErr.Error()
	}
	if err := s.queue.SaveFinalStatus(ctx, finalStatus); err != nil {
		s.logger.Error("Failed to save final status",
			logger.String("taskId", task.ID),
			logger.Error(err),
		)
	}

	if runErr != nil {
		return runErr
	}

	s.logger.Info("Document validation completed",
		logger.String("taskId", task.ID),
		logger.String("status", string(outcome.Status)),
	)

	return nil
}

func (s *EstimationService) storeReport(ctx context.Context, task *queue.Task, outcome *pipeline.Outcome) error {
	meta := converters.ReportMetadata{
		FileName:     task.Metadata["filename"],
		FileType:     task.Metadata["type"],
		DocumentType: task.Metadata["documentType"],
	}
	if size, err := strconv.ParseInt(task.Metadata["size"], 10, 64); err == nil {
		meta.FileSize = size
	}
	if !task.CreatedAt.IsZero() {
		meta.ProcessingMs = time.Since(task.CreatedAt).Milliseconds()
	}

	report, err := s.converter.Convert(outcome, meta)
	if err != nil {
		return fmt.Errorf("failed to convert outcome: %w", err)
	}
	report.TaskID = task.ID

	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if _, err := s.storage.Store(ctx, bytes.NewReader(data), artifact.ReportKey(task.ID)); err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}
	return nil
}

// GetProcessingStatus 取得處理狀態
func (s *EstimationService) GetProcessingStatus(ctx context.Context, taskID string) (*models.ProcessingTask, error) {
	status, err := s.queue.GetTaskStatus(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("failed to get task status: %w", err)
	}

	return &models.ProcessingTask{
		ID:        status.TaskID,
		Status:    status.Status,
		Type:      queue.TaskTypeEstimationProcess,
		Progress:  status.Progress,
		Error:     status.Error,
		Metadata:  make(map[string]string),
		CreatedAt: status.StartedAt,
		UpdatedAt: status.FinishedAt,
	}, nil
}

// GetReport 取得驗證報告
func (s *EstimationService) GetReport(ctx context.Context, taskID string) (*converters.ValidationReport, error) {
	status, err := s.GetProcessingStatus(ctx, taskID)
	if err != nil {
		return nil, err
	}

	// failed runs still carry a stored report with the audit trail
	if status.Status != "completed" && status.Status != "failed" {
		return nil, fmt.Errorf("task is not finished: %s", status.Status)
	}

	reader, err := s.storage.Get(ctx, artifact.ReportKey(taskID))
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	defer reader.Close()

	var report converters.ValidationReport
	if err := json.NewDecoder(reader).Decode(&report); err != nil {
		return nil, fmt.Errorf("failed to decode report: %w", err)
	}

	return &report, nil
}

// CancelTask 取消任務
func (s *EstimationService) CancelTask(ctx context.Context, taskID string) error {
	if err := s.queue.CancelTask(ctx, taskID); err != nil {
		return fmt.Errorf("failed to cancel task: %w", err)
	}

	s.logger.Info("Task cancelled",
		logger.String("taskId", taskID),
	)

	return nil
}

// CleanupTasks 清理過期檔案與報告,兩種物件套用各自的保存期限
func (s *EstimationService) CleanupTasks(ctx context.Context) error {
	uploadThreshold := time.Now().Add(-s.config.RetentionPeriod)
	if err := s.storage.CleanupBefore(ctx, artifact.KindUpload, uploadThreshold); err != nil {
		return fmt.Errorf("failed to cleanup uploads: %w", err)
	}

	reportThreshold := time.Now().Add(-s.config.ReportRetention)
	if err := s.storage.CleanupBefore(ctx, artifact.KindReport, reportThreshold); err != nil {
		return fmt.Errorf("failed to cleanup reports: %w", err)
	}

	s.logger.Info("Completed tasks cleanup",
		logger.Time("uploadThreshold", uploadThreshold),
		logger.Time("reportThreshold", reportThreshold),
	)

	return nil
}

// previousPeriods decodes earlier-period documents attached to the task.
func previousPeriods(payload map[string]interface{}) []models.NormalizedDocument {
	rawList, ok := payload["previousPeriods"].([]interface{})
	if !ok {
		return nil
	}
	periods := make([]models.NormalizedDocument, 0, len(rawList))
	for _, item := range rawList {
		if m, ok := item.(map[string]interface{}); ok {
			periods = append(periods, models.NormalizedDocument(m))
		}
	}
	return periods
}
