package agents

import (
	"context"
	"testing"
	"time"

	"deepresearch/internal/models"
	"deepresearch/internal/providers"
)

type flakyProvider struct {
	id       string
	failures int
	calls    int
}

func (f *flakyProvider) ID() string                         { return f.id }
func (f *flakyProvider) Capabilities() providers.Capability { return providers.CapWeb }
func (f *flakyProvider) EffectiveParallelism() int          { return 5 }
func (f *flakyProvider) Search(ctx context.Context, q models.SearchQuery) (models.SearchResult, error) {
	f.calls++
	if f.calls <= f.failures {
		return models.SearchResult{}, &providers.StatusError{Status: 503}
	}
	return models.SearchResult{
		Provider: f.id,
		Query:    q,
		Sources:  []models.SearchSource{{URL: "https://a.test/" + q.Query, Title: q.Query}},
	}, nil
}

func TestExecuteSearchesRetriesRetryableFailures(t *testing.T) {
	reg := providers.NewRegistry()
	p := &flakyProvider{id: "flaky", failures: 2}
	reg.Register(p)

	c := NewCoordinator(reg, 2)
	c.sleep = func(time.Duration) {} // skip real backoff sleeps in tests

	sources, errs := c.ExecuteSearches(context.Background(), []models.ExpandedQuery{
		{Query: "topic a", Type: models.SearchWeb},
	})

	if len(errs) != 0 {
		t.Fatalf("want no errors after successful retry, got %v", errs)
	}
	if len(sources) != 1 {
		t.Fatalf("want 1 source, got %d", len(sources))
	}
	if p.calls != 3 {
		t.Fatalf("want 3 attempts (2 failures + 1 success), got %d", p.calls)
	}
}

func TestExecuteSearchesGivesUpAfterMaxRetries(t *testing.T) {
	reg := providers.NewRegistry()
	p := &flakyProvider{id: "always-down", failures: maxRetries + 5}
	reg.Register(p)

	c := NewCoordinator(reg, 2)
	c.sleep = func(time.Duration) {}

	_, errs := c.ExecuteSearches(context.Background(), []models.ExpandedQuery{
		{Query: "topic b", Type: models.SearchWeb},
	})

	if len(errs) != 1 {
		t.Fatalf("want 1 error after exhausting retries, got %d", len(errs))
	}
}

func TestExecuteSearchesDedupesAcrossQueries(t *testing.T) {
	reg := providers.NewRegistry()
	reg.Register(&stubProviderForCoordinator{})

	c := NewCoordinator(reg, 4)
	sources, _ := c.ExecuteSearches(context.Background(), []models.ExpandedQuery{
		{Query: "same", Type: models.SearchWeb},
		{Query: "same", Type: models.SearchWeb},
	})
	if len(sources) != 1 {
		t.Fatalf("want deduped to 1 source, got %d", len(sources))
	}
}

type stubProviderForCoordinator struct{}

func (stubProviderForCoordinator) ID() string                       { return "stub" }
func (stubProviderForCoordinator) Capabilities() providers.Capability { return providers.CapWeb }
func (stubProviderForCoordinator) EffectiveParallelism() int         { return 5 }
func (stubProviderForCoordinator) Search(ctx context.Context, q models.SearchQuery) (models.SearchResult, error) {
	return models.SearchResult{Sources: []models.SearchSource{{URL: "https://shared.test/page"}}}, nil
}
