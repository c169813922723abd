// Package artifact 定義儲存桶中物件的分類與命名規則。
// 上傳的原始文件與驗證報告分別放在不同的前綴下,
// 讓清理與列舉可以依類別各自進行。
package artifact

import (
	"path"
	"path/filepath"
	"strings"
)

// Kind 區分儲存的物件類別
type Kind string

const (
	// KindUpload 代表使用者上傳的原始文件
	KindUpload Kind = "upload"
	// KindReport 代表管線產出的驗證報告
	KindReport Kind = "report"
)

const (
	uploadPrefix = "uploads/"
	reportPrefix = "reports/"
)

// UploadKey 組出上傳文件的物件 key,檔名前帶任務 ID 避免重名互蓋。
// 瀏覽器送來的檔名可能帶路徑(Windows 為反斜線),一律只取檔名。
func UploadKey(taskID, filename string) string {
	name := strings.ReplaceAll(filename, `\`, "/")
	return uploadPrefix + taskID + "_" + path.Base(name)
}

// ReportKey 組出驗證報告的物件 key,報告一律以 JSON 儲存
func ReportKey(taskID string) string {
	return reportPrefix + taskID + ".json"
}

// Prefix 回傳類別對應的桶內前綴,未知類別回傳空字串(即整個桶)
func Prefix(kind Kind) string {
	switch kind {
	case KindUpload:
		return uploadPrefix
	case KindReport:
		return reportPrefix
	default:
		return ""
	}
}

// ContentType 依副檔名推斷物件的 Content-Type
func ContentType(key string) string {
	switch strings.ToLower(filepath.Ext(key)) {
	case ".json":
		return "application/json"
	case ".pdf":
		return "application/pdf"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".tiff", ".tif":
		return "image/tiff"
	default:
		return "application/octet-stream"
	}
}
