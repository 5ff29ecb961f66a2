package agents

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"deepresearch/internal/extract"
	"deepresearch/internal/models"
)

// Enrichment implements the Content Enrichment Agent (SPEC_FULL.md §4.7):
// fetching each SearchSource's content via the extract.Registry, scoring
// its trustworthiness, and classifying extraction failures rather than
// dropping the source silently. Grounded on the original
// internal/tools.FetchTool fan-out shape, now over the Content
// Processor/Chunker pipeline via internal/extract, with the same
// semaphore-via-buffered-channel concurrency limit the Search Coordinator
// uses.
type Enrichment struct {
	extractors  *extract.Registry
	maxParallel int
}

// NewEnrichment returns a Content Enrichment Agent bounded to maxParallel
// concurrent fetches.
func NewEnrichment(extractors *extract.Registry, maxParallel int) *Enrichment {
	if maxParallel <= 0 {
		maxParallel = 5
	}
	return &Enrichment{extractors: extractors, maxParallel: maxParallel}
}

// Enrich fetches and scores every source, skipping URLs for which
// alreadyFetched reports true (case-insensitively, per ResearchState's own dedup) so a repeated
// iteration doesn't re-fetch a known source.
func (e *Enrichment) Enrich(ctx context.Context, sources []models.SearchSource, alreadyFetched func(url string) bool) []models.SourceDocument {
	sem := make(chan struct{}, e.maxParallel)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var out []models.SourceDocument

	for _, src := range sources {
		if alreadyFetched != nil && alreadyFetched(src.URL) {
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(source models.SearchSource) {
			defer wg.Done()
			defer func() { <-sem }()

			doc := e.enrichOne(ctx, source)
			mu.Lock()
			out = append(out, doc)
			mu.Unlock()
		}(src)
	}
	wg.Wait()

	return out
}

func (e *Enrichment) enrichOne(ctx context.Context, source models.SearchSource) models.SourceDocument {
	content, err := e.extractors.Extract(ctx, source.URL)
	doc := models.SourceDocument{
		ID:      uuid.NewString(),
		Source:  source,
		Content: content,
	}
	if err != nil {
		doc.FailureKind = models.KindContentExtraction
		doc.TrustScore = 0
		doc.Trust = models.TrustLow
		return doc
	}

	doc.TrustScore = trustScore(source, content)
	doc.Trust = models.TrustLevelFor(doc.TrustScore)
	return doc
}

// trustScore blends source/content signals into [0,1]: a non-empty body
// and title each contribute, truncation is penalized lightly, and a higher
// search rank (closer to 1) contributes a small bonus — the Enrichment
// Agent's own per-source scoring, distinct from the Analysis Agent's
// stats.Mean source-quality pass across the whole selected set
// (SPEC_FULL.md §4.7 vs §4.8).
func trustScore(source models.SearchSource, content models.ExtractedContent) float64 {
	score := 0.0
	if len(content.Body) > 200 {
		score += 0.5
	} else if len(content.Body) > 0 {
		score += 0.2
	}
	if content.Title != "" {
		score += 0.2
	}
	if content.Truncated {
		score -= 0.05
	}
	if source.Rank > 0 && source.Rank <= 3 {
		score += 0.2
	} else if source.Rank > 0 {
		score += 0.1
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return score
}
