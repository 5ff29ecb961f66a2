package extract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"deepresearch/internal/content"
	"deepresearch/internal/models"
)

// HTTPExtractor fetches a web page and runs it through the Content
// Processor, grounded directly on the earlier internal/tools.FetchTool
// (same User-Agent/Accept headers, same 30s timeout), generalized from
// returning a truncated string to returning a models.ExtractedContent.
type HTTPExtractor struct {
	httpClient *http.Client
	processor  *content.Processor
}

// NewHTTPExtractor returns an extractor for http(s) URLs.
func NewHTTPExtractor() *HTTPExtractor {
	return &HTTPExtractor{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		processor:  content.NewProcessor(),
	}
}

func (h *HTTPExtractor) CanHandle(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

func (h *HTTPExtractor) Extract(ctx context.Context, ref string) (models.ExtractedContent, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", ref, nil)
	if err != nil {
		return models.ExtractedContent{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; DeepResearchBot/1.0)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return models.ExtractedContent{}, models.NewDomainError(models.KindContentExtraction, "extract.HTTPExtractor", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return models.ExtractedContent{}, models.NewDomainError(models.KindContentExtraction, "extract.HTTPExtractor",
			fmt.Errorf("fetch error %d for %s", resp.StatusCode, ref))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return models.ExtractedContent{}, fmt.Errorf("read body: %w", err)
	}

	out := h.processor.Process(ref, body)
	out.Chunks = content.NewChunker().Chunk(out.Body)
	return out, nil
}
