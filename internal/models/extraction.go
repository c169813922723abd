package models

// RawExtraction is the untyped output of the extraction service: recognized
// text, tables and key-value pairs with per-element confidence where the
// backend reports one. Immutable once produced.
type RawExtraction struct {
	Pages     []ExtractedPage     `json:"pages"`
	Tables    []ExtractedTable    `json:"tables"`
	KeyValues []ExtractedKeyValue `json:"keyValues"`
	RawText   string              `json:"rawText"`
	Source    string              `json:"source"` // textract, tesseract, pdf
}

// ExtractedPage 單頁辨識結果
type ExtractedPage struct {
	Number     int      `json:"number"`
	Lines      []string `json:"lines"`
	Text       string   `json:"text"`
	Confidence float64  `json:"confidence,omitempty"` // 0 when the backend reports none
}

// ExtractedTable 表格辨識結果
type ExtractedTable struct {
	Page       int        `json:"page"`
	Rows       [][]string `json:"rows"`
	Confidence float64    `json:"confidence,omitempty"`
}

// ExtractedKeyValue 鍵值對辨識結果
type ExtractedKeyValue struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence,omitempty"`
}

// PageConfidences collects the per-page confidence figures that were
// actually reported. Pages without confidence metadata are skipped.
func (r *RawExtraction) PageConfidences() []float64 {
	var scores []float64
	for _, p := range r.Pages {
		if p.Confidence > 0 {
			scores = append(scores, p.Confidence)
		}
	}
	return scores
}
