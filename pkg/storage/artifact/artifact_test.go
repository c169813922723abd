package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUploadKey(t *testing.T) {
	assert.Equal(t, "uploads/task-1_估驗計價單.pdf", UploadKey("task-1", "估驗計價單.pdf"))

	// 只保留檔名,路徑部分一律剝除
	assert.Equal(t, "uploads/task-1_scan.png", UploadKey("task-1", "../tmp/scan.png"))
	assert.Equal(t, "uploads/task-1_scan.png", UploadKey("task-1", `C:\tmp\scan.png`))
}

func TestReportKey(t *testing.T) {
	assert.Equal(t, "reports/task-1.json", ReportKey("task-1"))
}

func TestPrefix(t *testing.T) {
	assert.Equal(t, "uploads/", Prefix(KindUpload))
	assert.Equal(t, "reports/", Prefix(KindReport))
	assert.Equal(t, "", Prefix(Kind("unknown")))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "application/json", ContentType(ReportKey("task-1")))
	assert.Equal(t, "application/pdf", ContentType("uploads/task-1_doc.PDF"))
	assert.Equal(t, "image/jpeg", ContentType("uploads/task-1_scan.jpeg"))
	assert.Equal(t, "image/tiff", ContentType("uploads/task-1_scan.tif"))
	assert.Equal(t, "application/octet-stream", ContentType("uploads/task-1_raw"))
}
