package session

import (
	"testing"

	"deepresearch/internal/models"
)

func newTestState() *ResearchState {
	return New(models.Request{Query: "test query", Depth: models.DepthStandard})
}

func TestAddSourceDocumentDedupesCaseInsensitively(t *testing.T) {
	s := newTestState()
	doc1 := models.SourceDocument{ID: "a", Source: models.SearchSource{URL: "https://Example.com/Page"}}
	doc2 := models.SourceDocument{ID: "b", Source: models.SearchSource{URL: "https://example.com/page"}}

	if ok := s.AddSourceDocument(doc1); !ok {
		t.Fatalf("expected first insert to succeed")
	}
	if ok := s.AddSourceDocument(doc2); ok {
		t.Fatalf("expected case-insensitive duplicate to be rejected")
	}
	if len(s.Sources) != 1 {
		t.Fatalf("want 1 source, got %d", len(s.Sources))
	}
}

func TestAddFindingsDropsUnknownSourceID(t *testing.T) {
	s := newTestState()
	s.AddSourceDocument(models.SourceDocument{ID: "known", Source: models.SearchSource{URL: "https://a.test"}})

	s.AddFindings([]models.Finding{
		{ID: "f1", SourceID: "known", Claim: "kept"},
		{ID: "f2", SourceID: "unknown", Claim: "dropped"},
	})

	if len(s.Findings) != 1 || s.Findings[0].ID != "f1" {
		t.Fatalf("expected only the known-source finding to survive, got %+v", s.Findings)
	}
}

func TestAtIterationCeiling(t *testing.T) {
	s := newTestState()
	cap := s.Request.EffectiveMaxIterations()
	for i := 0; i < cap; i++ {
		if s.AtIterationCeiling() {
			t.Fatalf("ceiling reached early at iteration %d (cap %d)", i, cap)
		}
		s.NextIteration()
	}
	if !s.AtIterationCeiling() {
		t.Fatalf("expected ceiling reached after %d iterations", cap)
	}
}

func TestCostBreakdownAdd(t *testing.T) {
	c := NewCostBreakdown()
	c.Add(100, 50, 0.002)
	c.Add(200, 75, 0.004)

	if c.CallCount != 2 {
		t.Fatalf("want 2 calls, got %d", c.CallCount)
	}
	if got := c.Total(); got < 0.0059 || got > 0.0061 {
		t.Fatalf("want total ~0.006, got %v", got)
	}
}
