package config

import (
	"os"
	"sync"
)

var (
	pipelineOnce   sync.Once
	pipelineConfig *PipelineConfig
)

// PipelineConfig tunes the validation pipeline. Zero values fall back to
// the defaults declared by the individual engines.
type PipelineConfig struct {
	// AmountTolerance is the absolute difference below which two monetary
	// values are considered equal.
	AmountTolerance float64

	// UseTextract selects AWS Textract over local Tesseract for images.
	UseTextract bool

	// UseLLM enables language-understanding payment condition parsing.
	UseLLM bool

	// StorageBackend is "s3" or "minio".
	StorageBackend string

	// SchemaDir optionally overrides the builtin document schemas.
	SchemaDir string

	ServerAddr string
}

func GetPipelineConfig() *PipelineConfig {
	pipelineOnce.Do(func() {
		loadEnv()

		pipelineConfig = &PipelineConfig{
			AmountTolerance: getEnvFloat("AMOUNT_TOLERANCE", 0.01),
			UseTextract:     getEnvBool("USE_TEXTRACT", false),
			UseLLM:          getEnvBool("USE_LLM_PARSING", true),
			StorageBackend:  getEnv("STORAGE_BACKEND", "minio"),
			SchemaDir:       os.Getenv("SCHEMA_DIR"),
			ServerAddr:      getEnv("SERVER_ADDR", ":8080"),
		}
	})
	return pipelineConfig
}
