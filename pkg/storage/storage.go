package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/wpliao1997/estimation-validator/pkg/logger"
	"github.com/wpliao1997/estimation-validator/pkg/storage/artifact"
	"github.com/wpliao1997/estimation-validator/pkg/storage/minio"
	"github.com/wpliao1997/estimation-validator/pkg/storage/s3"
)

// StorageType 定義儲存類型
type StorageType string

const (
	StorageTypeS3    StorageType = "s3"
	StorageTypeMinio StorageType = "minio"
)

// Storage 介面定義。物件 key 依 artifact 套件的規則命名,
// 上傳檔與報告各有前綴,清理時依類別分別處理。
type Storage interface {
	// Store 儲存物件,Content-Type 由 key 的副檔名決定
	Store(ctx context.Context, reader io.Reader, key string) (string, error)
	// Get 取得物件
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// Delete 刪除物件
	Delete(ctx context.Context, key string) error
	// CleanupBefore 清理指定類別中早於門檻時間的物件
	CleanupBefore(ctx context.Context, kind artifact.Kind, threshold time.Time) error
}

// NewStorage 建立儲存實例的工廠方法
func NewStorage(storageType StorageType, logger logger.Logger) (Storage, error) {
	switch storageType {
	case StorageTypeS3:
		return s3.GetClient(logger)
	case StorageTypeMinio:
		return minio.GetClient(logger)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", storageType)
	}
}
