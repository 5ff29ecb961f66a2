package orchestrator

import (
	"context"
	"errors"
	"testing"

	"deepresearch/internal/agents"
	"deepresearch/internal/config"
	"deepresearch/internal/events"
	"deepresearch/internal/extract"
	"deepresearch/internal/llm"
	"deepresearch/internal/models"
	"deepresearch/internal/providers"
)

// noisyClient always returns unparseable text, exercising every agent's
// deterministic-fallback path instead of depending on a specific JSON shape
// per call site.
type noisyClient struct{ model string }

func (c *noisyClient) Chat(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	resp := &llm.ChatResponse{}
	resp.Choices = []struct {
		Message llm.Message `json:"message"`
	}{{Message: llm.Message{Role: "assistant", Content: "not json"}}}
	resp.Usage.PromptTokens = 10
	resp.Usage.CompletionTokens = 10
	return resp, nil
}

func (c *noisyClient) StreamChat(ctx context.Context, messages []llm.Message, handler func(chunk string) error) error {
	return handler("not json")
}

func (c *noisyClient) SetModel(model string) { c.model = model }
func (c *noisyClient) GetModel() string       { return c.model }

type stubSearchProvider struct{ calls int }

func (p *stubSearchProvider) ID() string                        { return "stub" }
func (p *stubSearchProvider) Capabilities() providers.Capability { return providers.CapWeb }
func (p *stubSearchProvider) EffectiveParallelism() int          { return 4 }
func (p *stubSearchProvider) Search(ctx context.Context, q models.SearchQuery) (models.SearchResult, error) {
	p.calls++
	return models.SearchResult{
		Provider: "stub",
		Query:    q,
		Sources:  []models.SearchSource{{URL: "https://example.test/" + q.Query, Title: q.Query, Rank: 1}},
	}, nil
}

type stubExtractor struct{}

func (stubExtractor) CanHandle(ref string) bool { return true }
func (stubExtractor) Extract(ctx context.Context, ref string) (models.ExtractedContent, error) {
	return models.ExtractedContent{SourceURL: ref, Title: "stub page", Body: "some stub body content about the topic"}, nil
}

// testOrchestrator builds an Orchestrator wired entirely to in-memory fakes
// so the five-phase loop runs with no real network or LLM calls.
func testOrchestrator() *Orchestrator {
	client := &noisyClient{}

	reg := providers.NewRegistry()
	reg.Register(&stubSearchProvider{})

	extractors := extract.NewRegistry()
	extractors.Register(stubExtractor{})

	cfg := &config.Config{
		Model:                        "test-model",
		MaxConcurrentSearches:        4,
		MaxSearchRetriesPerIteration: 1,
		SufficiencyThreshold:         0.99, // unreachable, forces the ceiling to decide
		MaxSourcesToAnalyze:          10,
	}

	return &Orchestrator{
		cfg:         cfg,
		bus:         events.NewBus(32),
		expander:    agents.NewExpander(client, cfg.Model),
		planner:     agents.NewPlanner(agents.NewExpander(client, cfg.Model)),
		coordinator: agents.NewCoordinator(reg, cfg.MaxConcurrentSearches),
		enrichment:  agents.NewEnrichment(extractors, cfg.MaxConcurrentSearches),
		analysis:    agents.NewAnalysis(client, cfg.Model, cfg.MaxFindingsPerSource, cfg.MaxGaps),
		report:      agents.NewReport(client, cfg.Model, models.CitationNumbered),
	}
}

func testRequest() models.Request {
	return models.Request{Query: "what is going on here", Depth: models.DepthQuick}
}

func TestSessionLifecycleHappyPath(t *testing.T) {
	o := testOrchestrator()
	s, err := o.StartInteractive(testRequest(), nil)
	if err != nil {
		t.Fatalf("StartInteractive: %v", err)
	}

	if err := s.AddQuery("a manually added query"); err != nil {
		t.Fatalf("AddQuery: %v", err)
	}

	sufficient, err := s.Continue(context.Background())
	if err != nil {
		t.Fatalf("Continue: %v", err)
	}
	// Depth quick caps at 2 iterations and the threshold is unreachable, so
	// one Continue() should never already report sufficient.
	if sufficient {
		t.Fatalf("want not sufficient after a single iteration with an unreachable threshold")
	}

	result, err := s.Finalize(context.Background())
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if result.CurrentPhase != models.PhaseCompleted {
		t.Fatalf("want PhaseCompleted, got %v", result.CurrentPhase)
	}
	if len(result.ExecutedQueries) == 0 {
		t.Fatalf("want at least one executed query recorded")
	}
}

func TestSessionRejectsMutationsAfterFinalize(t *testing.T) {
	o := testOrchestrator()
	s, err := o.StartInteractive(testRequest(), nil)
	if err != nil {
		t.Fatalf("StartInteractive: %v", err)
	}

	if _, err := s.Finalize(context.Background()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	if err := s.AddQuery("too late"); !isSessionClosed(err) {
		t.Fatalf("want a session-finalized domain error from AddQuery after Finalize, got %v", err)
	}
	if _, err := s.Continue(context.Background()); !isSessionClosed(err) {
		t.Fatalf("want a session-finalized domain error from Continue after Finalize, got %v", err)
	}
	if _, err := s.Finalize(context.Background()); !isSessionClosed(err) {
		t.Fatalf("want a session-finalized domain error from a second Finalize, got %v", err)
	}
}

func TestSessionDisposeIsIdempotent(t *testing.T) {
	o := testOrchestrator()
	s, err := o.StartInteractive(testRequest(), nil)
	if err != nil {
		t.Fatalf("StartInteractive: %v", err)
	}

	s.Dispose()
	s.Dispose() // must not panic or otherwise misbehave

	if err := s.AddQuery("after dispose"); !isSessionClosed(err) {
		t.Fatalf("want a session-finalized domain error after Dispose, got %v", err)
	}
}

func TestSessionCheckpointWithoutStoreFails(t *testing.T) {
	o := testOrchestrator()
	s, err := o.StartInteractive(testRequest(), nil)
	if err != nil {
		t.Fatalf("StartInteractive: %v", err)
	}

	if _, err := s.Checkpoint(); err == nil {
		t.Fatalf("want an error checkpointing a session with no configured store")
	}
}

func isSessionClosed(err error) bool {
	var de *models.DomainError
	if errors.As(err, &de) {
		return de.Kind == models.KindSessionFinalized
	}
	return false
}
