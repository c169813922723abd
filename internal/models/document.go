package models

import (
	"time"
)

// DocumentType 文件類型
type DocumentType string

const (
	TypeEstimation DocumentType = "estimation" // 估驗計價單
	TypePayment    DocumentType = "payment"    // 付款明細
	TypeContract   DocumentType = "contract"   // 工程合約
	TypeOther      DocumentType = "other"
)

// ProcessingStatus is the lifecycle of one document run.
// uploaded → processing → completed | failed. Terminal states are never left.
type ProcessingStatus string

const (
	StatusUploaded   ProcessingStatus = "uploaded"
	StatusProcessing ProcessingStatus = "processing"
	StatusCompleted  ProcessingStatus = "completed"
	StatusFailed     ProcessingStatus = "failed"
)

// Document 文件記錄
type Document struct {
	ID           string           `json:"id"`
	DocumentID   string           `json:"documentId"`
	DocumentType DocumentType     `json:"documentType"`
	FileName     string           `json:"fileName"`
	FileSize     int64            `json:"fileSize"`
	Status       ProcessingStatus `json:"status"`
	UploadedAt   time.Time        `json:"uploadedAt"`
	ProcessedAt  time.Time        `json:"processedAt,omitempty"`
	ErrorMessage string           `json:"errorMessage,omitempty"`
}

// ProcessingLog is one append-only audit entry. Entries are emitted before
// the stage they describe advances and are never edited afterwards.
type ProcessingLog struct {
	Stage     string         `json:"stage"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

// NormalizedDocument is the canonical mapping produced by the normalizer.
// Known numeric and date fields carry canonical types; unknown fields
// survive verbatim. It is created once per run and read-only afterwards.
//
// Well-known keys: document_id, document_type, contract_info, items,
// period_amount, previous_accumulation, current_accumulation,
// payment_conditions.
type NormalizedDocument map[string]any

// ProcessingTask 佇列任務視圖
type ProcessingTask struct {
	ID        string            `json:"id"`
	Status    string            `json:"status"`
	Type      string            `json:"type"`
	Priority  int               `json:"priority"`
	Progress  float64           `json:"progress"`
	Error     string            `json:"error,omitempty"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt,omitempty"`
}
