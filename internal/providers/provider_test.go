package providers

import (
	"context"
	"testing"

	"deepresearch/internal/models"
)

type stubProvider struct {
	id   string
	caps Capability
}

func (s stubProvider) ID() string                { return s.id }
func (s stubProvider) Capabilities() Capability  { return s.caps }
func (s stubProvider) EffectiveParallelism() int { return 3 }
func (s stubProvider) Search(ctx context.Context, q models.SearchQuery) (models.SearchResult, error) {
	return models.SearchResult{Provider: s.id, Query: q}, nil
}

func TestRegistryDefaultIsFirstRegistered(t *testing.T) {
	r := NewRegistry()
	r.Register(stubProvider{id: "a", caps: CapWeb})
	r.Register(stubProvider{id: "b", caps: CapNews})

	p, ok := r.Default()
	if !ok || p.ID() != "a" {
		t.Fatalf("want default 'a', got %v (ok=%v)", p, ok)
	}
}

func TestSelectForFallsBackToDefault(t *testing.T) {
	r := NewRegistry()
	r.Register(stubProvider{id: "web-only", caps: CapWeb})

	p, ok := r.SelectFor(models.SearchAcademic)
	if !ok || p.ID() != "web-only" {
		t.Fatalf("want fallback to default, got %v (ok=%v)", p, ok)
	}
}

func TestSelectForPrefersMatchingCapability(t *testing.T) {
	r := NewRegistry()
	r.Register(stubProvider{id: "web", caps: CapWeb})
	r.Register(stubProvider{id: "news", caps: CapNews})

	p, ok := r.SelectFor(models.SearchNews)
	if !ok || p.ID() != "news" {
		t.Fatalf("want news provider selected, got %v (ok=%v)", p, ok)
	}
}

func TestStatusErrorRetryable(t *testing.T) {
	cases := map[int]bool{429: true, 500: true, 503: true, 404: false, 400: false}
	for status, want := range cases {
		e := &StatusError{Status: status}
		if got := e.Retryable(); got != want {
			t.Errorf("status %d: want retryable=%v, got %v", status, want, got)
		}
	}
}
