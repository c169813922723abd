package estimation

import (
	"context"
	"mime/multipart"

	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/pkg/converters"
	"github.com/wpliao1997/estimation-validator/pkg/queue"
)

// EstimationProcessor 估驗文件處理服務
type EstimationProcessor interface {
	ProcessFile(ctx context.Context, file multipart.File, header *multipart.FileHeader, docType string) (*models.ProcessingTask, error)
	ProcessBatch(ctx context.Context, files []*multipart.FileHeader, docType string) ([]*models.ProcessingTask, error)
	GetProcessingStatus(ctx context.Context, taskID string) (*models.ProcessingTask, error)
	HandleDocument(ctx context.Context, task *queue.Task) error
	GetReport(ctx context.Context, taskID string) (*converters.ValidationReport, error)
	CancelTask(ctx context.Context, taskID string) error
	CleanupTasks(ctx context.Context) error
}
