// Package orchestrator drives one research session through the fixed
// five-phase loop SPEC_FULL.md §4.10 specifies: Planning, Searching,
// ContentExtraction, Analysis, SufficiencyEvaluation, repeating until
// sufficient or the iteration/budget ceiling is hit, then ReportGeneration.
// Grounded in orchestrator.DeepOrchestrator (phase sequencing, cost
// accumulation, cancellation checks between phases, one event per phase
// transition) and the simpler orchestrator.Orchestrator.Research (single
// exported entrypoint, options pattern). The DAG-based wave scheduler those
// files used for cross-perspective parallel search lives only inside the
// Search Coordinator's own fan-out now (internal/agents/coordinator.go),
// not as this package's control flow.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"deepresearch/internal/agents"
	"deepresearch/internal/config"
	"deepresearch/internal/events"
	"deepresearch/internal/extract"
	"deepresearch/internal/llm"
	"deepresearch/internal/models"
	"deepresearch/internal/providers"
	"deepresearch/internal/session"
)

// Orchestrator is the Research Orchestrator: it owns no mutable research
// state itself (that lives in session.ResearchState, one per session) and
// instead wires together the six agents and runs them through the phase
// loop.
type Orchestrator struct {
	cfg *config.Config
	bus *events.Bus

	expander    *agents.Expander
	planner     *agents.Planner
	coordinator *agents.Coordinator
	enrichment  *agents.Enrichment
	analysis    *agents.Analysis
	report      *agents.Report
}

// New builds an Orchestrator from cfg, wiring the Brave provider (and a
// DuckDuckGo fallback for when no Brave key is configured) into the Search
// Provider Factory, and HTTP/PDF/DOCX/XLSX extractors into the Content
// Extractor Registry.
func New(cfg *config.Config, bus *events.Bus) *Orchestrator {
	client := llm.NewClient(cfg)

	registry := providers.NewRegistry()
	if cfg.BraveAPIKey != "" {
		registry.Register(providers.NewBrave(cfg.BraveAPIKey))
	}
	registry.Register(providers.NewDuckDuckGo(""))

	extractors := extract.NewRegistry()
	extractors.Register(extract.NewHTTPExtractor())
	extractors.Register(extract.NewPDFExtractor(50))
	extractors.Register(extract.NewDOCXExtractor())
	extractors.Register(extract.NewXLSXExtractor())

	expander := agents.NewExpander(client, cfg.Model)

	return &Orchestrator{
		cfg:         cfg,
		bus:         bus,
		expander:    expander,
		planner:     agents.NewPlanner(expander),
		coordinator: agents.NewCoordinator(registry, cfg.MaxConcurrentSearches),
		enrichment:  agents.NewEnrichment(extractors, cfg.MaxConcurrentSearches),
		analysis:    agents.NewAnalysis(client, cfg.Model, cfg.MaxFindingsPerSource, cfg.MaxGaps),
		report:      agents.NewReport(client, cfg.Model, models.CitationNumbered),
	}
}

// Research runs a complete blocking research session (SPEC_FULL.md §6
// `research(request) → ResearchResult`).
func (o *Orchestrator) Research(ctx context.Context, req models.Request) (models.Result, error) {
	if err := req.Validate(); err != nil {
		return models.Result{
			Request:      req,
			Errors:       []*models.DomainError{models.NewDomainError(models.KindUnknown, "orchestrator.Research", err)},
			CurrentPhase: models.PhaseFailed,
			IsPartial:    true,
		}, nil
	}

	state := session.New(req)
	o.publish(events.EventStarted, events.StartedData{SessionID: state.ID, Query: req.Query})

	o.runLoop(ctx, state)

	result := o.buildResult(state)
	return result, nil
}

// ExecuteStream runs the same session asynchronously, returning a channel
// of ResearchProgress events that closes once the session reaches
// Completed or Failed (SPEC_FULL.md §6 `research_stream`).
func (o *Orchestrator) ExecuteStream(ctx context.Context, req models.Request) (<-chan models.ResearchProgress, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	out := make(chan models.ResearchProgress, 16)
	state := session.New(req)
	sub := o.bus.Subscribe(
		events.EventStarted, events.EventPlanGenerated, events.EventSearchStarted,
		events.EventSearchCompleted, events.EventContentExtractionStarted, events.EventContentExtracted,
		events.EventAnalysisStarted, events.EventAnalysisCompleted, events.EventIterationCompleted,
		events.EventReportGenerationStarted, events.EventReportSection, events.EventCompleted, events.EventFailed,
	)

	go func() {
		defer close(out)
		defer o.bus.Unsubscribe(sub)

		done := make(chan struct{})
		go func() {
			o.runLoop(ctx, state)
			close(done)
		}()

		for {
			select {
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if p, ok := toProgress(ev, state); ok {
					select {
					case out <- p:
					case <-ctx.Done():
						return
					}
				}
			case <-done:
				// Drain any remaining buffered events, then stop.
				for {
					select {
					case ev, ok := <-sub:
						if !ok {
							return
						}
						if p, ok := toProgress(ev, state); ok {
							out <- p
						}
					default:
						return
					}
				}
			}
		}
	}()

	return out, nil
}

// runLoop executes Planning→Searching→ContentExtraction→Analysis→
// SufficiencyEvaluation repeatedly, then ReportGeneration, recovering any
// panic from an agent as a domain error rather than crashing the session
// (SPEC_FULL.md §4.10/§7: "caught at orchestrator entry").
func (o *Orchestrator) runLoop(ctx context.Context, state *session.ResearchState) {
	defer func() {
		if r := recover(); r != nil {
			state.RecordError(models.NewDomainError(models.KindUnknown, "orchestrator.runLoop", fmt.Errorf("panic: %v", r)))
			state.SetStatus(session.StatusFailed)
		}
	}()

	for {
		if ctx.Err() != nil {
			state.RecordError(models.NewDomainError(models.KindUnknown, "orchestrator.runLoop", ctx.Err()))
			state.SetStatus(session.StatusFailed)
			return
		}

		if o.budgetExceeded(state) {
			state.RecordError(models.NewDomainError(models.KindBudgetExceeded, "orchestrator.runLoop", fmt.Errorf("accumulated cost %.4f reached budget %.4f", state.Cost.Total(), state.Request.MaxBudget)))
			break
		}

		iteration := state.NextIteration()

		if err := o.runPlanning(ctx, state, iteration); err != nil {
			state.RecordError(models.NewDomainError(models.KindLLMError, "orchestrator.runPlanning", err))
		}
		if ctx.Err() != nil {
			state.SetStatus(session.StatusFailed)
			return
		}

		o.runSearching(ctx, state, iteration)
		if ctx.Err() != nil {
			state.SetStatus(session.StatusFailed)
			return
		}

		o.runExtraction(ctx, state, iteration)
		if ctx.Err() != nil {
			state.SetStatus(session.StatusFailed)
			return
		}

		sufficiency := o.runAnalysis(ctx, state, iteration)

		o.publish(events.EventIterationCompleted, events.IterationCompletedData{Iteration: iteration, Cost: state.Cost.Total()})

		if !sufficiency.NeedsMoreResearch(o.cfg.SufficiencyThreshold) || state.AtIterationCeiling() {
			break
		}
	}

	o.runReportGeneration(ctx, state)
}

func (o *Orchestrator) budgetExceeded(state *session.ResearchState) bool {
	return state.Request.MaxBudget > 0 && state.Cost.Total() >= state.Request.MaxBudget
}

// budgetPressed reports whether spend is close enough to the request's
// budget ceiling that GenerateFollowUp should start dropping Low-priority
// gaps (SPEC_FULL.md §4.2: "ignoring Low priority when budget-pressed").
func budgetPressed(state *session.ResearchState) bool {
	if state.Request.MaxBudget <= 0 {
		return false
	}
	return state.Cost.Total() >= 0.8*state.Request.MaxBudget
}

// runPlanning implements the Planning phase: the first iteration sequences
// Decompose/DiscoverPerspectives/ExpandQueries via the Query Planner
// Agent's Plan; later iterations turn the prior iteration's gaps into
// follow-up queries (SPEC_FULL.md §4.2).
func (o *Orchestrator) runPlanning(ctx context.Context, state *session.ResearchState, iteration int) error {
	state.SetStatus(session.StatusPlanning)

	var queries []models.ExpandedQuery

	if iteration == 1 {
		plan, cost, err := o.planner.Plan(ctx, state.Request.Query, state.Request.Depth)
		state.Cost.Add(0, 0, cost)
		if err != nil {
			return err
		}

		state.SubQuestions = plan.SubQuestions
		state.Perspectives = plan.Perspectives
		queries = plan.Queries

		o.publish(events.EventPlanGenerated, events.PlanGeneratedData{
			SubQuestionCount: len(plan.SubQuestions),
			PerspectiveCount: len(plan.Perspectives),
			QueryCount:       len(plan.Queries),
		})
	} else {
		followUp, cost, err := o.planner.GenerateFollowUp(ctx, state.Gaps, state.Perspectives, queryTexts(state.ExpandedQueriesSnapshot()), state.Request.Depth, budgetPressed(state))
		state.Cost.Add(0, 0, cost)
		if err != nil {
			return err
		}
		queries = followUp
	}

	fresh := state.AppendExpandedQueries(queries)
	if maxPerIter := state.Request.MaxSourcesPerIter; maxPerIter > 0 && len(fresh) > maxPerIter {
		fresh = fresh[:maxPerIter]
	}
	state.LastPlannedQueries = fresh
	return nil
}

func queryTexts(queries []models.ExpandedQuery) []string {
	out := make([]string, len(queries))
	for i, q := range queries {
		out[i] = q.Query
	}
	return out
}

// runSearching implements the Search phase: run every query appended this
// iteration, retrying up to MaxSearchRetriesPerIteration times if zero
// sources came back.
func (o *Orchestrator) runSearching(ctx context.Context, state *session.ResearchState, iteration int) {
	state.SetStatus(session.StatusSearching)

	queries := state.LastPlannedQueries
	if len(queries) == 0 {
		return
	}

	o.publish(events.EventSearchStarted, events.SearchStartedData{Iteration: iteration, QueryCount: len(queries)})

	var sources []models.SearchSource
	var failed int
	for attempt := 0; ; attempt++ {
		var errs []error
		sources, errs = o.coordinator.ExecuteSearches(ctx, queries)
		failed = len(errs)
		for _, err := range errs {
			state.RecordError(models.NewDomainError(models.KindSearchProviderError, "orchestrator.runSearching", err))
		}
		if len(sources) > 0 || attempt >= o.cfg.MaxSearchRetriesPerIteration {
			break
		}
		state.RecordThinking(models.ThinkingStep{
			Iteration: iteration,
			Type:      models.StepSearching,
			Summary:   fmt.Sprintf("no sources found, retrying (%d/%d)", attempt+1, o.cfg.MaxSearchRetriesPerIteration),
			At:        time.Now(),
		})
		select {
		case <-time.After(o.cfg.RetryDelayOnNoResults):
		case <-ctx.Done():
			return
		}
	}

	if len(sources) == 0 {
		state.RecordThinking(models.ThinkingStep{
			Iteration: iteration,
			Type:      models.StepSearching,
			Summary:   "giving up after exhausting search retries with no results",
			At:        time.Now(),
		})
	}

	o.publish(events.EventSearchCompleted, events.SearchCompletedData{Iteration: iteration, SourceCount: len(sources), Failed: failed})
	state.LastSearchSources = sources
}

// runExtraction implements the Content enrichment phase: fetch and score
// every newly found source not already in state, skipping URLs already
// fetched this session.
func (o *Orchestrator) runExtraction(ctx context.Context, state *session.ResearchState, iteration int) {
	state.SetStatus(session.StatusExtracting)

	sources := state.LastSearchSources
	if len(sources) == 0 {
		return
	}

	o.publish(events.EventContentExtractionStarted, events.ContentExtractionStartedData{Iteration: iteration, URLCount: len(sources)})

	docs := o.enrichment.Enrich(ctx, sources, state.HasSource)
	for _, doc := range docs {
		state.AddSourceDocument(doc)

		errStr := ""
		if doc.FailureKind != "" {
			state.RecordError(models.NewDomainError(doc.FailureKind, "orchestrator.runExtraction", fmt.Errorf("extraction failed for %s", doc.Source.URL)))
			errStr = string(doc.FailureKind)
		}
		o.publish(events.EventContentExtracted, events.ContentExtractedData{
			Iteration:  iteration,
			URL:        doc.Source.URL,
			TrustScore: doc.TrustScore,
			Err:        errStr,
		})
	}
}

// runAnalysis implements the Analysis + SufficiencyEvaluation phases:
// extract findings from every newly added source, then score sufficiency
// against the session's sub-questions.
func (o *Orchestrator) runAnalysis(ctx context.Context, state *session.ResearchState, iteration int) models.SufficiencyScore {
	state.SetStatus(session.StatusAnalyzing)
	o.publish(events.EventAnalysisStarted, events.AnalysisStartedData{Iteration: iteration})

	docs := analyzableDocs(state.SourcesSnapshot(), o.cfg.MaxSourcesToAnalyze)
	var fresh []models.Finding
	for _, doc := range docs {
		findings, cost, err := o.analysis.ExtractFindings(ctx, doc, iteration)
		state.Cost.Add(0, 0, cost)
		if err != nil {
			state.RecordError(models.NewDomainError(models.KindLLMError, "orchestrator.runAnalysis", err))
			continue
		}
		fresh = append(fresh, findings...)
	}
	state.AddFindings(agents.DedupeFindings(fresh))

	gaps, costGaps, err := o.analysis.IdentifyGaps(ctx, state.SubQuestions, state.FindingsSnapshot())
	state.Cost.Add(0, 0, costGaps)
	if err != nil {
		state.RecordError(models.NewDomainError(models.KindLLMError, "orchestrator.runAnalysis", err))
	}

	sufficiency, cost, err := o.analysis.AssessSufficiency(ctx, state.SubQuestions, state.FindingsSnapshot(), docs, gaps, o.cfg.SufficiencyThreshold)
	state.Cost.Add(0, 0, cost)
	if err != nil {
		state.RecordError(models.NewDomainError(models.KindLLMError, "orchestrator.runAnalysis", err))
	}

	state.Sufficiency = sufficiency
	state.SetGaps(sufficiency.Gaps)

	o.publish(events.EventAnalysisCompleted, events.AnalysisCompletedData{
		Iteration:        iteration,
		FindingCount:     len(state.FindingsSnapshot()),
		SufficiencyScore: sufficiency.Score,
		Sufficient:       sufficiency.Sufficient,
		GapCount:         len(sufficiency.Gaps),
	})

	return sufficiency
}

// runReportGeneration implements the ReportGeneration phase: generate an
// outline (STORM two-phase for Comprehensive depth), write every section,
// and assemble the final markdown report.
func (o *Orchestrator) runReportGeneration(ctx context.Context, state *session.ResearchState) {
	state.SetStatus(session.StatusSynthesis)

	findings := state.FindingsSnapshot()
	docs := state.SourcesSnapshot()
	storm := state.Request.Depth == models.DepthComprehensive

	outline, cost1, err := o.report.GenerateOutline(ctx, state.Request.Query, findings, storm)
	state.Cost.Add(0, 0, cost1)
	if err != nil {
		state.RecordError(models.NewDomainError(models.KindLLMError, "orchestrator.runReportGeneration", err))
	}

	o.publish(events.EventReportGenerationStarted, events.ReportGenerationStartedData{SectionCount: len(outline.Sections)})

	rep, cost2 := o.report.Assemble(ctx, state.Request.Query, outline, findings, docs)
	state.Cost.Add(0, 0, cost2)
	rep.ThinkingProcess = state.Thinking
	rep.Format = state.Request.Format
	state.FinalReport = rep

	for i, s := range rep.Sections {
		o.publish(events.EventReportSection, events.ReportSectionData{Index: i, Title: s.Title, Body: s.Body})
	}

	if ctx.Err() != nil {
		state.SetStatus(session.StatusFailed)
		o.publish(events.EventFailed, events.FailedData{SessionID: state.ID, Kind: string(models.KindUnknown), Err: ctx.Err().Error()})
		return
	}

	state.SetStatus(session.StatusCompleted)
	o.publish(events.EventCompleted, events.CompletedData{SessionID: state.ID, TotalCost: state.Cost.Total(), IterationsRun: state.Iteration})
}

func (o *Orchestrator) publish(t events.EventType, data interface{}) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(events.Event{Type: t, Timestamp: time.Now(), Data: data})
}

// analyzableDocs orders docs by (trust desc) and caps at max, matching
// SPEC_FULL.md §4.8's "order by relevance desc, trust desc, take top
// max_sources_to_analyze" (relevance is folded into trust here since
// SourceDocument has no separate post-fetch relevance field).
func analyzableDocs(docs []models.SourceDocument, max int) []models.SourceDocument {
	sorted := make([]models.SourceDocument, len(docs))
	copy(sorted, docs)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && sorted[j].TrustScore > sorted[j-1].TrustScore; j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if len(sorted) > max {
		sorted = sorted[:max]
	}
	return sorted
}

// buildResult converts a finished session into the public Result shape.
func (o *Orchestrator) buildResult(state *session.ResearchState) models.Result {
	isPartial := state.Status == session.StatusFailed

	queries := state.ExpandedQueriesSnapshot()
	executed := make([]string, len(queries))
	for i, q := range queries {
		executed[i] = q.Query
	}

	errs := make([]*models.DomainError, len(state.Errors))
	copy(errs, state.Errors)

	phase := models.PhaseCompleted
	if isPartial {
		phase = models.PhaseFailed
	}

	return models.Result{
		SessionID:        state.ID,
		Request:          state.Request,
		Report:           state.FinalReport,
		Findings:         state.FindingsSnapshot(),
		CollectedSources: state.SourcesSnapshot(),
		ExecutedQueries:  executed,
		Errors:           errs,
		IterationsRun:    state.Iteration,
		TotalCost:        state.Cost.Total(),
		CurrentPhase:     phase,
		IsPartial:        isPartial,
	}
}

func toProgress(ev events.Event, state *session.ResearchState) (models.ResearchProgress, bool) {
	base := models.ResearchProgress{MaxIterations: state.Request.EffectiveMaxIterations(), CurrentIteration: state.CurrentIteration()}

	switch d := ev.Data.(type) {
	case events.StartedData:
		base.Type = models.KindStarted
		base.Started = &models.StartedEvent{SessionID: d.SessionID, Query: d.Query}
	case events.PlanGeneratedData:
		base.Type = models.KindPlanGenerated
		base.PlanGenerated = &models.PlanGeneratedEvent{SubQuestionCount: d.SubQuestionCount, PerspectiveCount: d.PerspectiveCount, QueryCount: d.QueryCount}
	case events.SearchStartedData:
		base.Type = models.KindSearchStarted
		base.SearchStarted = &models.SearchStartedEvent{QueryCount: d.QueryCount}
	case events.SearchCompletedData:
		base.Type = models.KindSearchCompleted
		base.SearchCompleted = &models.SearchCompletedEvent{SourceCount: d.SourceCount, Failed: d.Failed}
	case events.ContentExtractionStartedData:
		base.Type = models.KindExtractionStarted
		base.ExtractionStarted = &models.ExtractionStartedEvent{URLCount: d.URLCount}
	case events.ContentExtractedData:
		base.Type = models.KindContentExtracted
		base.ContentExtracted = &models.ContentExtractedEvent{URL: d.URL, TrustScore: d.TrustScore, Err: d.Err}
	case events.AnalysisStartedData:
		base.Type = models.KindAnalysisStarted
		base.AnalysisStarted = &models.AnalysisStartedEvent{}
	case events.AnalysisCompletedData:
		base.Type = models.KindAnalysisCompleted
		base.AnalysisCompleted = &models.AnalysisCompletedEvent{FindingCount: d.FindingCount, SufficiencyScore: d.SufficiencyScore, Sufficient: d.Sufficient, GapCount: d.GapCount}
	case events.IterationCompletedData:
		base.Type = models.KindIterationCompleted
		base.IterationCompleted = &models.IterationCompletedEvent{Cost: d.Cost}
	case events.ReportGenerationStartedData:
		base.Type = models.KindReportGenerationStarted
		base.ReportGenerationStarted = &models.ReportGenerationStartedEvent{SectionCount: d.SectionCount}
	case events.ReportSectionData:
		base.Type = models.KindReportSection
		base.ReportSection = &models.ReportSectionEvent{Index: d.Index, Title: d.Title}
	case events.CompletedData:
		base.Type = models.KindCompleted
		base.Completed = &models.CompletedEvent{TotalCost: d.TotalCost, IterationsRun: d.IterationsRun}
	case events.FailedData:
		base.Type = models.KindFailed
		base.Failed = &models.FailedEvent{Kind: models.ErrorKind(d.Kind), Err: d.Err}
	default:
		return models.ResearchProgress{}, false
	}

	return base, true
}
