// Package session owns ResearchState, the single mutable struct a research
// session's agents read from and write to, plus its on-disk checkpointing
// (adapted from the earlier internal/session/session.go and store.go).
package session

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"deepresearch/internal/models"
)

// Status is the coarse lifecycle state of a research session
// (SPEC_FULL.md §3, §4.10).
type Status string

const (
	StatusPlanning   Status = "planning"
	StatusSearching  Status = "searching"
	StatusExtracting Status = "extracting"
	StatusAnalyzing  Status = "analyzing"
	StatusSynthesis  Status = "synthesis"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// CostBreakdown accumulates token/dollar spend across every LLM call a
// session makes (adapted verbatim in shape from the earlier
// session.CostBreakdown, used here for the orchestrator's budget check).
type CostBreakdown struct {
	mu         sync.Mutex
	PromptToks int
	OutputToks int
	TotalCost  float64
	CallCount  int
}

// NewCostBreakdown returns a zeroed CostBreakdown.
func NewCostBreakdown() *CostBreakdown {
	return &CostBreakdown{}
}

// Add accumulates one LLM call's usage and its dollar cost.
func (c *CostBreakdown) Add(promptTokens, outputTokens int, cost float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.PromptToks += promptTokens
	c.OutputToks += outputTokens
	c.TotalCost += cost
	c.CallCount++
}

// Total returns the running dollar total, safe for concurrent readers.
func (c *CostBreakdown) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.TotalCost
}

// ResearchState is the mutable, session-scoped state shared by every agent
// in one research run. A single goroutine (the orchestrator) owns the
// write path for Status/Iteration/Phase transitions; Sources/Findings are
// appended to under mu so concurrent Search Coordinator/Enrichment fan-out
// can write safely (SPEC_FULL.md §5).
type ResearchState struct {
	mu sync.RWMutex

	ID        string
	Request   models.Request
	Status    Status
	Iteration int
	CreatedAt time.Time
	UpdatedAt time.Time

	SubQuestions    []models.SubQuestion
	Perspectives    []models.Perspective
	ExpandedQueries []models.ExpandedQuery

	sourcesByURL map[string]*models.SourceDocument
	Sources      []models.SourceDocument
	Findings     []models.Finding
	Gaps         []models.InformationGap

	Sufficiency models.SufficiencyScore
	Cost        *CostBreakdown
	Thinking    []models.ThinkingStep
	Errors      []*models.DomainError

	// LastPlannedQueries and LastSearchSources carry one iteration's
	// intermediate results between runLoop's phase methods; only the
	// orchestrator's single owning goroutine touches them.
	LastPlannedQueries []models.ExpandedQuery
	LastSearchSources  []models.SearchSource
	FinalReport        models.Report
}

// New creates a ResearchState for a validated request.
func New(req models.Request) *ResearchState {
	now := time.Now()
	return &ResearchState{
		ID:           uuid.NewString(),
		Request:      req,
		Status:       StatusPlanning,
		CreatedAt:    now,
		UpdatedAt:    now,
		sourcesByURL: make(map[string]*models.SourceDocument),
		Cost:         NewCostBreakdown(),
	}
}

// SetStatus transitions the session's lifecycle status.
func (s *ResearchState) SetStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Status = status
	s.UpdatedAt = time.Now()
}

// AddSourceDocument inserts a source, deduping by case-insensitive URL
// (SPEC_FULL.md §8 invariant: URL dedup is case-insensitive). Returns false
// if the URL was already present, in which case no write happened.
func (s *ResearchState) AddSourceDocument(doc models.SourceDocument) bool {
	key := strings.ToLower(doc.Source.URL)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sourcesByURL[key]; ok {
		return false
	}
	s.Sources = append(s.Sources, doc)
	s.sourcesByURL[key] = &s.Sources[len(s.Sources)-1]
	s.UpdatedAt = time.Now()
	return true
}

// HasSource reports whether a URL has already been fetched this session.
func (s *ResearchState) HasSource(url string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sourcesByURL[strings.ToLower(url)]
	return ok
}

// AddFindings appends findings, resolving each SourceID against the known
// source set; a finding naming an unknown source is dropped rather than
// corrupting the citation graph (SPEC_FULL.md §8 invariant: every Finding's
// source_id resolves to a fetched SourceDocument).
func (s *ResearchState) AddFindings(findings []models.Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range findings {
		if !s.sourceIDKnownLocked(f.SourceID) {
			continue
		}
		s.Findings = append(s.Findings, f)
	}
	s.UpdatedAt = time.Now()
}

func (s *ResearchState) sourceIDKnownLocked(id string) bool {
	for i := range s.Sources {
		if s.Sources[i].ID == id {
			return true
		}
	}
	return false
}

// SetGaps replaces the current iteration's information gaps.
func (s *ResearchState) SetGaps(gaps []models.InformationGap) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Gaps = gaps
	s.UpdatedAt = time.Now()
}

// RecordThinking appends one transparency-trail entry.
func (s *ResearchState) RecordThinking(step models.ThinkingStep) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Thinking = append(s.Thinking, step)
}

// RecordError appends a non-fatal domain error encountered mid-session.
func (s *ResearchState) RecordError(err *models.DomainError) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Errors = append(s.Errors, err)
}

// normalizeQuery is the case/whitespace-insensitive key used to dedupe
// executed queries across iterations (SPEC_FULL.md §4.2/§4.10).
func normalizeQuery(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// AppendExpandedQueries records queries as executed for this session,
// skipping any whose normalized text has already run.
func (s *ResearchState) AppendExpandedQueries(queries []models.ExpandedQuery) []models.ExpandedQuery {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(s.ExpandedQueries))
	for _, q := range s.ExpandedQueries {
		seen[normalizeQuery(q.Query)] = struct{}{}
	}
	var fresh []models.ExpandedQuery
	for _, q := range queries {
		key := normalizeQuery(q.Query)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		fresh = append(fresh, q)
	}
	s.ExpandedQueries = append(s.ExpandedQueries, fresh...)
	s.UpdatedAt = time.Now()
	return fresh
}

// AtIterationCeiling reports whether the session has reached the request's
// effective iteration cap (SPEC_FULL.md §8 invariant 1).
func (s *ResearchState) AtIterationCeiling() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Iteration >= s.Request.EffectiveMaxIterations()
}

// NextIteration increments and returns the new iteration counter.
func (s *ResearchState) NextIteration() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Iteration++
	return s.Iteration
}

// CurrentIteration safely reads the iteration counter, for callers (like a
// concurrent event-to-progress translator) that aren't the orchestrator's
// owning goroutine.
func (s *ResearchState) CurrentIteration() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Iteration
}

// ExpandedQueriesSnapshot returns a shallow copy of every query executed so
// far this session.
func (s *ResearchState) ExpandedQueriesSnapshot() []models.ExpandedQuery {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.ExpandedQuery, len(s.ExpandedQueries))
	copy(out, s.ExpandedQueries)
	return out
}

// SourcesSnapshot returns a shallow copy of the current source list, safe
// to read without holding the lock afterward.
func (s *ResearchState) SourcesSnapshot() []models.SourceDocument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SourceDocument, len(s.Sources))
	copy(out, s.Sources)
	return out
}

// FindingsSnapshot returns a shallow copy of the current findings list.
func (s *ResearchState) FindingsSnapshot() []models.Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Finding, len(s.Findings))
	copy(out, s.Findings)
	return out
}
