package extraction

import (
	"context"
	"fmt"
	"io"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/textract"
	"github.com/aws/aws-sdk-go-v2/service/textract/types"

	cfg "github.com/wpliao1997/estimation-validator/config"
	"github.com/wpliao1997/estimation-validator/internal/models"
	"github.com/wpliao1997/estimation-validator/pkg/logger"
)

// TextractExtractor recognizes printed and handwritten text, tables and
// form key-value pairs through AWS Textract.
type TextractExtractor struct {
	client *textract.Client
	config *TextractConfig
	logger logger.Logger
}

type TextractConfig struct {
	Region        string
	AccessKey     string
	SecretKey     string
	MinConfidence float32
	FeatureTypes  []types.FeatureType
}

func NewTextractExtractor(ctx context.Context, tc *TextractConfig, log logger.Logger) (*TextractExtractor, error) {
	if tc == nil {
		env := cfg.GetTextractConfig()
		minConf := float32(env.MinConfidence)
		if minConf <= 0 {
			minConf = 50.0
		}
		tc = &TextractConfig{
			Region:        env.Region,
			AccessKey:     env.AccessKey,
			SecretKey:     env.SecretKey,
			MinConfidence: minConf,
			FeatureTypes: []types.FeatureType{
				types.FeatureTypeTables,
				types.FeatureTypeForms,
			},
		}
	}

	creds := credentials.NewStaticCredentialsProvider(tc.AccessKey, tc.SecretKey, "")
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(tc.Region),
		awsconfig.WithCredentialsProvider(creds),
	)
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}

	return &TextractExtractor{
		client: textract.NewFromConfig(awsCfg),
		config: tc,
		logger: log,
	}, nil
}

func (e *TextractExtractor) CanProcess(mimeType string) bool {
	switch strings.ToLower(mimeType) {
	case "image/jpeg", "image/jpg", "image/png", "image/tiff", "application/pdf":
		return true
	}
	return false
}

func (e *TextractExtractor) Analyze(ctx context.Context, reader io.Reader) (*models.RawExtraction, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	input := &textract.AnalyzeDocumentInput{
		Document:     &types.Document{Bytes: data},
		FeatureTypes: e.config.FeatureTypes,
	}
	result, err := e.client.AnalyzeDocument(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to analyze document: %w", err)
	}

	raw := &models.RawExtraction{
		Source:    "textract",
		Pages:     e.collectPages(result.Blocks),
		Tables:    e.collectTables(result.Blocks),
		KeyValues: e.collectKeyValues(result.Blocks),
	}

	var allText []string
	for _, p := range raw.Pages {
		allText = append(allText, p.Text)
	}
	raw.RawText = strings.Join(allText, "\n")

	e.logger.Info("textract analysis completed",
		logger.Int("pages", len(raw.Pages)),
		logger.Int("tables", len(raw.Tables)),
		logger.Int("keyValues", len(raw.KeyValues)),
	)

	return raw, nil
}

func (e *TextractExtractor) Close() error {
	return nil
}

// collectPages groups LINE blocks by page and averages their confidence.
// Textract reports confidence on a 0-100 scale; we carry 0-1.
func (e *TextractExtractor) collectPages(blocks []types.Block) []models.ExtractedPage {
	type pageAcc struct {
		lines []string
		sum   float64
		count int
	}
	pages := make(map[int]*pageAcc)
	maxPage := 0

	for _, block := range blocks {
		if block.BlockType != types.BlockTypeLine || block.Text == nil {
			continue
		}
		if block.Confidence != nil && *block.Confidence < e.config.MinConfidence {
			continue
		}
		page := 1
		if block.Page != nil {
			page = int(*block.Page)
		}
		acc, ok := pages[page]
		if !ok {
			acc = &pageAcc{}
			pages[page] = acc
		}
		acc.lines = append(acc.lines, *block.Text)
		if block.Confidence != nil {
			acc.sum += float64(*block.Confidence) / 100
			acc.count++
		}
		if page > maxPage {
			maxPage = page
		}
	}

	var out []models.ExtractedPage
	for num := 1; num <= maxPage; num++ {
		acc, ok := pages[num]
		if !ok {
			continue
		}
		page := models.ExtractedPage{
			Number: num,
			Lines:  acc.lines,
			Text:   strings.Join(acc.lines, "\n"),
		}
		if acc.count > 0 {
			page.Confidence = acc.sum / float64(acc.count)
		}
		out = append(out, page)
	}
	return out
}

func (e *TextractExtractor) collectTables(blocks []types.Block) []models.ExtractedTable {
	byID := make(map[string]types.Block, len(blocks))
	for _, block := range blocks {
		if block.Id != nil {
			byID[*block.Id] = block
		}
	}

	var tables []models.ExtractedTable
	for _, block := range blocks {
		if block.BlockType != types.BlockTypeTable {
			continue
		}

		var rowCount, colCount int
		var cells []types.Block
		for _, rel := range block.Relationships {
			if rel.Type != types.RelationshipTypeChild {
				continue
			}
			for _, id := range rel.Ids {
				cell, ok := byID[id]
				if !ok || cell.BlockType != types.BlockTypeCell {
					continue
				}
				cells = append(cells, cell)
				if cell.RowIndex != nil && int(*cell.RowIndex) > rowCount {
					rowCount = int(*cell.RowIndex)
				}
				if cell.ColumnIndex != nil && int(*cell.ColumnIndex) > colCount {
					colCount = int(*cell.ColumnIndex)
				}
			}
		}
		if rowCount == 0 || colCount == 0 {
			continue
		}

		rows := make([][]string, rowCount)
		for i := range rows {
			rows[i] = make([]string, colCount)
		}
		var confSum float64
		var confCount int
		for _, cell := range cells {
			if cell.RowIndex == nil || cell.ColumnIndex == nil {
				continue
			}
			rows[*cell.RowIndex-1][*cell.ColumnIndex-1] = e.childText(cell, byID)
			if cell.Confidence != nil {
				confSum += float64(*cell.Confidence) / 100
				confCount++
			}
		}

		table := models.ExtractedTable{Rows: rows}
		if block.Page != nil {
			table.Page = int(*block.Page)
		}
		if confCount > 0 {
			table.Confidence = confSum / float64(confCount)
		}
		tables = append(tables, table)
	}
	return tables
}

func (e *TextractExtractor) collectKeyValues(blocks []types.Block) []models.ExtractedKeyValue {
	byID := make(map[string]types.Block, len(blocks))
	for _, block := range blocks {
		if block.Id != nil {
			byID[*block.Id] = block
		}
	}

	var out []models.ExtractedKeyValue
	for _, block := range blocks {
		if block.BlockType != types.BlockTypeKeyValueSet ||
			len(block.EntityTypes) == 0 ||
			block.EntityTypes[0] != types.EntityTypeKey {
			continue
		}

		key := e.childText(block, byID)
		var value string
		for _, rel := range block.Relationships {
			if rel.Type != types.RelationshipTypeValue {
				continue
			}
			for _, id := range rel.Ids {
				if valueBlock, ok := byID[id]; ok {
					value = e.childText(valueBlock, byID)
				}
			}
		}
		if key == "" {
			continue
		}

		kv := models.ExtractedKeyValue{Key: key, Value: value}
		if block.Confidence != nil {
			kv.Confidence = float64(*block.Confidence) / 100
		}
		out = append(out, kv)
	}
	return out
}

func (e *TextractExtractor) childText(block types.Block, byID map[string]types.Block) string {
	var sb strings.Builder
	for _, rel := range block.Relationships {
		if rel.Type != types.RelationshipTypeChild {
			continue
		}
		for _, id := range rel.Ids {
			child, ok := byID[id]
			if !ok || child.Text == nil {
				continue
			}
			if sb.Len() > 0 {
				sb.WriteString(" ")
			}
			sb.WriteString(*child.Text)
		}
	}
	return sb.String()
}
