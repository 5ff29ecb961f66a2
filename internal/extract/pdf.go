package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"

	"deepresearch/internal/models"
)

// PDFExtractor reads local PDF files, generalizing the prior
// internal/tools.PDFReadTool from a truncated-string Tool result into a
// models.ExtractedContent with page-break-delimited body text fed through
// the Content Chunker.
type PDFExtractor struct {
	maxPages int
}

// NewPDFExtractor returns a PDF extractor limited to the first maxPages; a
// maxPages of 0 or less selects the prior extractor's default cap of 50.
func NewPDFExtractor(maxPages int) *PDFExtractor {
	if maxPages <= 0 {
		maxPages = 50
	}
	return &PDFExtractor{maxPages: maxPages}
}

func (p *PDFExtractor) CanHandle(ref string) bool {
	return strings.HasSuffix(strings.ToLower(ref), ".pdf")
}

func (p *PDFExtractor) Extract(ctx context.Context, ref string) (models.ExtractedContent, error) {
	if _, err := os.Stat(ref); os.IsNotExist(err) {
		return models.ExtractedContent{}, models.NewDomainError(models.KindContentExtraction, "extract.PDFExtractor", fmt.Errorf("file not found: %s", ref))
	}

	f, r, err := pdf.Open(ref)
	if err != nil {
		return models.ExtractedContent{}, models.NewDomainError(models.KindContentExtraction, "extract.PDFExtractor", fmt.Errorf("open PDF: %w", err))
	}
	defer f.Close()

	var text strings.Builder
	numPages := r.NumPage()
	maxPages := p.maxPages
	if maxPages > numPages {
		maxPages = numPages
	}

	for i := 1; i <= maxPages; i++ {
		select {
		case <-ctx.Done():
			return models.ExtractedContent{}, ctx.Err()
		default:
		}
		pg := r.Page(i)
		if pg.V.IsNull() {
			continue
		}
		pageText, err := pg.GetPlainText(nil)
		if err != nil {
			continue
		}
		text.WriteString(pageText)
		text.WriteString("\n\n")
	}

	out := models.ExtractedContent{
		SourceURL: ref,
		Title:     strings.TrimSuffix(baseName(ref), ".pdf"),
		Body:      strings.TrimSpace(text.String()),
		Truncated: maxPages < numPages,
	}
	out.Chunks = sharedChunker.Chunk(out.Body)
	return out, nil
}

func baseName(path string) string {
	if idx := strings.LastIndexAny(path, "/\\"); idx != -1 {
		return path[idx+1:]
	}
	return path
}
