package extract

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/nguyenthenguyen/docx"

	"deepresearch/internal/models"
)

// DOCXExtractor reads local Word documents, generalizing the prior
// internal/tools.DOCXReadTool into a ContentExtractor.
type DOCXExtractor struct{}

// NewDOCXExtractor returns a DOCX extractor.
func NewDOCXExtractor() *DOCXExtractor {
	return &DOCXExtractor{}
}

func (d *DOCXExtractor) CanHandle(ref string) bool {
	return strings.HasSuffix(strings.ToLower(ref), ".docx")
}

func (d *DOCXExtractor) Extract(ctx context.Context, ref string) (models.ExtractedContent, error) {
	if _, err := os.Stat(ref); os.IsNotExist(err) {
		return models.ExtractedContent{}, models.NewDomainError(models.KindContentExtraction, "extract.DOCXExtractor", fmt.Errorf("file not found: %s", ref))
	}

	r, err := docx.ReadDocxFile(ref)
	if err != nil {
		return models.ExtractedContent{}, models.NewDomainError(models.KindContentExtraction, "extract.DOCXExtractor", fmt.Errorf("open DOCX: %w", err))
	}
	defer r.Close()

	body := cleanDocxContent(r.Editable().GetContent())

	out := models.ExtractedContent{
		SourceURL: ref,
		Title:     strings.TrimSuffix(baseName(ref), ".docx"),
		Body:      body,
	}
	out.Chunks = sharedChunker.Chunk(out.Body)
	return out, nil
}

// cleanDocxContent drops blank lines and joins paragraphs with a blank line
// between them, matching the earlier tools.cleanDocxContent.
func cleanDocxContent(s string) string {
	lines := strings.Split(s, "\n")
	var cleaned []string
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	return strings.Join(cleaned, "\n\n")
}
