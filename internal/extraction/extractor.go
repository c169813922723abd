package extraction

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
)

// Extractor is the extraction service boundary: it turns a scanned document
// into a RawExtraction. An extractor failure is fatal for the run.
type Extractor interface {
	// CanProcess reports whether the extractor handles the MIME type.
	CanProcess(mimeType string) bool

	// Analyze recognizes text, tables and key-value pairs.
	Analyze(ctx context.Context, reader io.Reader) (*models.RawExtraction, error)

	// Close releases backend resources.
	Close() error
}

var extToMIME = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".tiff": "image/tiff",
	".pdf":  "application/pdf",
}

// Factory resolves the extractor for a file type.
type Factory struct {
	extractors map[string]Extractor
	logger     logger.Logger
}

// FactoryConfig selects the image backend. Textract is used when
// configured; the local Tesseract fallback covers deployments without it.
type FactoryConfig struct {
	UseTextract bool
}

func NewFactory(ctx context.Context, cfg *FactoryConfig, log logger.Logger) (*Factory, error) {
	if cfg == nil {
		cfg = &FactoryConfig{UseTextract: true}
	}

	f := &Factory{
		extractors: make(map[string]Extractor),
		logger:     log,
	}

	f.extractors["application/pdf"] = NewPDFExtractor(log)

	var imageExtractor Extractor
	if cfg.UseTextract {
		textract, err := NewTextractExtractor(ctx, nil, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create textract extractor: %w", err)
		}
		imageExtractor = textract
	} else {
		imageExtractor = NewTesseractExtractor(log, nil)
	}
	for _, mime := range []string{"image/jpeg", "image/png", "image/tiff"} {
		f.extractors[mime] = imageExtractor
	}

	return f, nil
}

// Get returns the extractor for a file extension.
func (f *Factory) Get(fileType string) (Extractor, error) {
	mimeType, ok := extToMIME[strings.ToLower(fileType)]
	if !ok {
		return nil, fmt.Errorf("unsupported file type: %s", fileType)
	}
	extractor, ok := f.extractors[mimeType]
	if !ok {
		return nil, fmt.Errorf("no extractor for mime type: %s", mimeType)
	}
	return extractor, nil
}

// Close closes every registered extractor.
func (f *Factory) Close() error {
	var firstErr error
	closed := make(map[Extractor]bool)
	for _, e := range f.extractors {
		if closed[e] {
			continue
		}
		closed[e] = true
		if err := e.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
