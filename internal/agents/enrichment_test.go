package agents

import (
	"context"
	"errors"
	"testing"

	"deepresearch/internal/extract"
	"deepresearch/internal/models"
)

type fakeExtractor struct {
	fails map[string]bool
}

func (f *fakeExtractor) CanHandle(ref string) bool { return true }
func (f *fakeExtractor) Extract(ctx context.Context, ref string) (models.ExtractedContent, error) {
	if f.fails[ref] {
		return models.ExtractedContent{}, models.NewDomainError(models.KindContentExtraction, "fakeExtractor", errors.New("fake extraction failure"))
	}
	return models.ExtractedContent{SourceURL: ref, Title: "title", Body: "some body content here"}, nil
}

func TestEnrichSkipsAlreadyFetchedURLs(t *testing.T) {
	reg := extract.NewRegistry()
	reg.Register(&fakeExtractor{})
	e := NewEnrichment(reg, 4)

	sources := []models.SearchSource{{URL: "https://a.test"}, {URL: "https://b.test"}}
	docs := e.Enrich(context.Background(), sources, func(url string) bool { return url == "https://a.test" })

	if len(docs) != 1 || docs[0].Source.URL != "https://b.test" {
		t.Fatalf("want only the not-yet-fetched source enriched, got %+v", docs)
	}
}

func TestEnrichMarksFailedExtractionsWithFailureKind(t *testing.T) {
	reg := extract.NewRegistry()
	reg.Register(&fakeExtractor{fails: map[string]bool{"https://bad.test": true}})
	e := NewEnrichment(reg, 4)

	docs := e.Enrich(context.Background(), []models.SearchSource{{URL: "https://bad.test"}}, nil)
	if len(docs) != 1 {
		t.Fatalf("want 1 document even on failure, got %d", len(docs))
	}
	if docs[0].FailureKind != models.KindContentExtraction {
		t.Fatalf("want FailureKind set on extraction failure, got %q", docs[0].FailureKind)
	}
	if docs[0].TrustScore != 0 {
		t.Fatalf("want zero trust on a failed extraction, got %v", docs[0].TrustScore)
	}
}

func TestTrustScoreRewardsBodyTitleAndRank(t *testing.T) {
	full := trustScore(
		models.SearchSource{Rank: 1},
		models.ExtractedContent{Body: string(make([]byte, 300)), Title: "t"},
	)
	empty := trustScore(models.SearchSource{}, models.ExtractedContent{})

	if full <= empty {
		t.Fatalf("want a well-populated source to score higher than an empty one, got %v vs %v", full, empty)
	}
	if full > 1 || empty < 0 {
		t.Fatalf("want trust score clamped to [0,1], got %v and %v", full, empty)
	}
}
