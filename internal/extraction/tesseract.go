package extraction

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/otiai10/gosseract/v2"

	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
)

// TesseractExtractor is the local OCR fallback for deployments without a
// cloud extraction backend. It reports no per-element confidence metadata,
// so downstream confidence scoring falls back to its optimistic default.
type TesseractExtractor struct {
	config *TesseractConfig
	logger logger.Logger
}

type TesseractConfig struct {
	Languages   []string
	PageSegMode gosseract.PageSegMode
	MaxWidth    int
}

func NewTesseractExtractor(log logger.Logger, tc *TesseractConfig) *TesseractExtractor {
	if tc == nil {
		tc = &TesseractConfig{
			Languages:   []string{"chi_tra", "eng"},
			PageSegMode: gosseract.PSM_AUTO,
			MaxWidth:    2500,
		}
	}
	return &TesseractExtractor{
		config: tc,
		logger: log,
	}
}

func (e *TesseractExtractor) CanProcess(mimeType string) bool {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg", "image/png", "image/tiff":
		return true
	}
	return false
}

func (e *TesseractExtractor) Analyze(ctx context.Context, reader io.Reader) (*models.RawExtraction, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	processed, err := e.preprocess(img)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess image: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, processed); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	client := gosseract.NewClient()
	defer client.Close()

	if err := client.SetLanguage(strings.Join(e.config.Languages, "+")); err != nil {
		return nil, fmt.Errorf("failed to set OCR language: %w", err)
	}
	if err := client.SetPageSegMode(e.config.PageSegMode); err != nil {
		return nil, fmt.Errorf("failed to set page segmentation mode: %w", err)
	}
	if err := client.SetImageFromBytes(buf.Bytes()); err != nil {
		return nil, fmt.Errorf("failed to set image: %w", err)
	}

	text, err := client.Text()
	if err != nil {
		return nil, fmt.Errorf("OCR failed: %w", err)
	}

	lines := splitLines(text)
	e.logger.Info("tesseract OCR completed",
		logger.Int("lines", len(lines)),
	)

	return &models.RawExtraction{
		Source:  "tesseract",
		RawText: text,
		Pages: []models.ExtractedPage{
			{
				Number: 1,
				Lines:  lines,
				Text:   text,
				// no confidence: tesseract word confidences are too noisy
				// on scanned estimation sheets to be meaningful per page
			},
		},
	}, nil
}

func (e *TesseractExtractor) Close() error {
	return nil
}

// preprocess grayscales and caps the image width before OCR.
func (e *TesseractExtractor) preprocess(img image.Image) (image.Image, error) {
	out := imaging.Grayscale(img)
	if e.config.MaxWidth > 0 && out.Bounds().Dx() > e.config.MaxWidth {
		out = imaging.Resize(out, e.config.MaxWidth, 0, imaging.Lanczos)
	}
	return out, nil
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}
