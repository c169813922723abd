package schema

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
)

func TestRegistryBuiltinTypes(t *testing.T) {
	reg := NewRegistry(logger.NewTestLogger())

	for _, docType := range []models.DocumentType{models.TypeEstimation, models.TypePayment, models.TypeContract} {
		assert.NotNil(t, reg.Get(string(docType)), string(docType))
	}
}

func TestRegistryUnknownTypeFallsBack(t *testing.T) {
	log := logger.NewTestLogger()
	reg := NewRegistry(log)

	s := reg.Get("invoice")

	require.NotNil(t, s)
	assert.Equal(t, reg.Get(string(models.TypeEstimation)), s)

	var warned bool
	for _, entry := range log.GetEntries() {
		if entry.Level == "WARN" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestRegistryRegisterOverrides(t *testing.T) {
	reg := NewRegistry(logger.NewTestLogger())
	custom := &Schema{Type: "object", Required: []string{"invoice_number"}}

	reg.Register("invoice", custom)

	assert.Equal(t, custom, reg.Get("invoice"))
}

func TestRegistryLoadDir(t *testing.T) {
	dir := t.TempDir()
	content := []byte(`type: object
required:
  - receipt_number
properties:
  receipt_number:
    type: string
`)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "receipt.yaml"), content, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	reg := NewRegistry(logger.NewTestLogger())
	require.NoError(t, reg.LoadDir(dir))

	s := reg.Get("receipt")
	require.NotNil(t, s)
	assert.Equal(t, []string{"receipt_number"}, s.Required)
}

func TestRegistryLoadDirMissing(t *testing.T) {
	reg := NewRegistry(logger.NewTestLogger())
	assert.Error(t, reg.LoadDir("/does/not/exist"))
}

func TestRegistryLoadDirBadYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("{not yaml"), 0o644))

	reg := NewRegistry(logger.NewTestLogger())
	assert.Error(t, reg.LoadDir(dir))
}
