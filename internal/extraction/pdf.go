package extraction

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
)

// PDFExtractor pulls embedded text out of born-digital PDFs. Scanned PDFs
// without a text layer come back empty and should go through an OCR
// backend instead.
type PDFExtractor struct {
	logger logger.Logger
}

func NewPDFExtractor(log logger.Logger) *PDFExtractor {
	return &PDFExtractor{logger: log}
}

func (e *PDFExtractor) CanProcess(mimeType string) bool {
	return mimeType == "application/pdf"
}

func (e *PDFExtractor) Analyze(ctx context.Context, reader io.Reader) (*models.RawExtraction, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	r := bytes.NewReader(content)
	pdfReader, err := pdf.NewReader(r, r.Size())
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	numPages := pdfReader.NumPage()
	pages := make([]models.ExtractedPage, numPages)
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)

	for i := 1; i <= numPages; i++ {
		pageNum := i
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			page := pdfReader.Page(pageNum)
			if page.V.IsNull() {
				return nil
			}
			text, err := page.GetPlainText(nil)
			if err != nil {
				return fmt.Errorf("failed to extract text from page %d: %w", pageNum, err)
			}

			mu.Lock()
			pages[pageNum-1] = models.ExtractedPage{
				Number: pageNum,
				Lines:  splitLines(text),
				Text:   text,
			}
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var allText []string
	for _, p := range pages {
		allText = append(allText, p.Text)
	}

	e.logger.Info("PDF text extraction completed",
		logger.Int("pages", numPages),
	)

	return &models.RawExtraction{
		Source:  "pdf",
		Pages:   pages,
		RawText: strings.Join(allText, "\n"),
	}, nil
}

func (e *PDFExtractor) Close() error {
	return nil
}
