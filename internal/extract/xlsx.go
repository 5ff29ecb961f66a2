package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"

	"deepresearch/internal/models"
)

// XLSXExtractor reads local Excel workbooks, generalizing the prior
// internal/tools.XLSXReadTool row/column preview into body text fed through
// the Content Chunker instead of a hard string truncation.
type XLSXExtractor struct {
	maxSheets       int
	maxRowsPerSheet int
	maxColsPerRow   int
}

// NewXLSXExtractor returns an XLSX extractor with the prior extractor's default
// preview limits.
func NewXLSXExtractor() *XLSXExtractor {
	return &XLSXExtractor{maxSheets: 3, maxRowsPerSheet: 20, maxColsPerRow: 12}
}

func (x *XLSXExtractor) CanHandle(ref string) bool {
	return strings.HasSuffix(strings.ToLower(ref), ".xlsx")
}

func (x *XLSXExtractor) Extract(ctx context.Context, ref string) (models.ExtractedContent, error) {
	if _, err := os.Stat(ref); os.IsNotExist(err) {
		return models.ExtractedContent{}, models.NewDomainError(models.KindContentExtraction, "extract.XLSXExtractor", fmt.Errorf("file not found: %s", ref))
	}

	f, err := excelize.OpenFile(ref)
	if err != nil {
		return models.ExtractedContent{}, models.NewDomainError(models.KindContentExtraction, "extract.XLSXExtractor", fmt.Errorf("open XLSX: %w", err))
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	var b strings.Builder

	maxSheets := x.maxSheets
	if maxSheets <= 0 || maxSheets > len(sheets) {
		maxSheets = len(sheets)
	}

	for i := 0; i < maxSheets; i++ {
		select {
		case <-ctx.Done():
			return models.ExtractedContent{}, ctx.Err()
		default:
		}

		sheetName := sheets[i]
		b.WriteString(fmt.Sprintf("Sheet: %s\n", sheetName))

		rows, err := f.GetRows(sheetName)
		if err != nil || len(rows) == 0 {
			continue
		}

		maxRows := x.maxRowsPerSheet
		if maxRows <= 0 || maxRows > len(rows) {
			maxRows = len(rows)
		}

		for rowIdx := 0; rowIdx < maxRows; rowIdx++ {
			b.WriteString(formatXLSXRow(rows[rowIdx], x.maxColsPerRow))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	out := models.ExtractedContent{
		SourceURL: ref,
		Title:     baseName(ref),
		Body:      strings.TrimSpace(b.String()),
		Truncated: maxSheets < len(sheets),
	}
	out.Chunks = sharedChunker.Chunk(out.Body)
	return out, nil
}

func formatXLSXRow(row []string, maxCols int) string {
	if len(row) == 0 {
		return "[empty row]"
	}
	n := len(row)
	if maxCols > 0 && maxCols < n {
		n = maxCols
	}
	values := make([]string, 0, n)
	for i := 0; i < n; i++ {
		cell := strings.TrimSpace(row[i])
		if cell == "" {
			cell = " "
		}
		values = append(values, cell)
	}
	line := strings.Join(values, " | ")
	if maxCols > 0 && len(row) > maxCols {
		line += " | ..."
	}
	return line
}
