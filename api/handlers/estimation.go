package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/wpliao1997/estimation-validator/internal/service/estimation"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
)

type EstimationHandler struct {
	service estimation.EstimationProcessor
	logger  logger.Logger
}

// ProcessResponse 定義處理回應結構
type ProcessResponse struct {
	TaskID       string `json:"taskId"`
	Status       string `json:"status"`
	Filename     string `json:"filename"`
	FileSize     int64  `json:"fileSize"`
	FileType     string `json:"fileType"`
	DocumentType string `json:"documentType"`
	CreatedAt    string `json:"createdAt"`
}

// ErrorResponse 定義錯誤回應結構
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func NewEstimationHandler(service estimation.EstimationProcessor, logger logger.Logger) *EstimationHandler {
	return &EstimationHandler{
		service: service,
		logger:  logger,
	}
}

// ValidateDocument 驗證單一文件
func (h *EstimationHandler) ValidateDocument(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid file upload", err)
		return
	}
	defer file.Close()

	docType := c.PostForm("document_type")

	task, err := h.service.ProcessFile(c.Request.Context(), file, header, docType)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to process file", err)
		return
	}

	c.JSON(http.StatusOK, ProcessResponse{
		TaskID:       task.ID,
		Status:       task.Status,
		Filename:     header.Filename,
		FileSize:     header.Size,
		FileType:     filepath.Ext(header.Filename),
		DocumentType: task.Metadata["documentType"],
		CreatedAt:    task.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// ValidateBatch 批次驗證文件
func (h *EstimationHandler) ValidateBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		h.handleError(c, http.StatusBadRequest, "Invalid form data", err)
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		h.handleError(c, http.StatusBadRequest, "No files provided", nil)
		return
	}

	docType := c.PostForm("document_type")

	tasks, err := h.service.ProcessBatch(c.Request.Context(), files, docType)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to process files", err)
		return
	}

	responses := make([]ProcessResponse, len(tasks))
	for i, task := range tasks {
		responses[i] = ProcessResponse{
			TaskID:       task.ID,
			Status:       task.Status,
			Filename:     task.Metadata["filename"],
			DocumentType: task.Metadata["documentType"],
			FileType:     task.Metadata["type"],
			CreatedAt:    task.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": fmt.Sprintf("Processing %d documents", len(files)),
		"tasks":   responses,
	})
}

// GetStatus 取得處理狀態
func (h *EstimationHandler) GetStatus(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	task, err := h.service.GetProcessingStatus(c.Request.Context(), taskID)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to get status", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"taskId":    task.ID,
		"status":    task.Status,
		"progress":  task.Progress,
		"error":     task.Error,
		"createdAt": task.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		"updatedAt": task.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	})
}

// GetReport 取得驗證報告
func (h *EstimationHandler) GetReport(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	report, err := h.service.GetReport(c.Request.Context(), taskID)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to get report", err)
		return
	}

	c.JSON(http.StatusOK, report)
}

// DownloadReport 下載驗證報告
func (h *EstimationHandler) DownloadReport(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	report, err := h.service.GetReport(c.Request.Context(), taskID)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to get report", err)
		return
	}

	reportJSON, err := json.Marshal(report)
	if err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to serialize report", err)
		return
	}

	filename := fmt.Sprintf("report_%s.json", taskID)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	c.Data(http.StatusOK, "application/json", reportJSON)
}

// CancelTask 取消處理任務
func (h *EstimationHandler) CancelTask(c *gin.Context) {
	taskID := c.Param("taskId")
	if taskID == "" {
		h.handleError(c, http.StatusBadRequest, "Task ID is required", nil)
		return
	}

	if err := h.service.CancelTask(c.Request.Context(), taskID); err != nil {
		h.handleError(c, http.StatusInternalServerError, "Failed to cancel task", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Task cancelled successfully",
		"taskId":  taskID,
	})
}

// handleError 統一錯誤處理
func (h *EstimationHandler) handleError(c *gin.Context, status int, message string, err error) {
	h.logger.Error(message,
		logger.String("path", c.Request.URL.Path),
		logger.Error(err),
	)

	response := ErrorResponse{
		Message: message,
	}
	if err != nil {
		response.Error = err.Error()
	}

	c.JSON(status, response)
}
