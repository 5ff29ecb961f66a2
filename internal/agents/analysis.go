package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/montanaflynn/stats"

	"deepresearch/internal/llm"
	"deepresearch/internal/models"
)

// Analysis implements the Analysis Agent (SPEC_FULL.md §4.8): extracting
// Findings from each SourceDocument, identifying InformationGaps, and
// scoring the overall SufficiencyScore that decides whether to keep
// iterating. Grounded almost directly on the prior AnalysisAgent.Analyze
// three-phase structure (extract facts, identify gaps, locally scored
// source quality); its assessSourceQuality hand-rolled average is replaced
// with montanaflynn/stats.Mean over the two source-diversity ratios and over
// the per-document freshness scores.
type Analysis struct {
	client               llm.ChatClient
	model                string
	maxFindingsPerSource int
	maxGaps              int
}

// NewAnalysis returns an Analysis Agent, capping per-source findings and
// per-iteration gaps per SPEC_FULL.md §4.8 steps 2 and 4.
func NewAnalysis(client llm.ChatClient, model string, maxFindingsPerSource, maxGaps int) *Analysis {
	if maxFindingsPerSource <= 0 {
		maxFindingsPerSource = 5
	}
	if maxGaps <= 0 {
		maxGaps = 8
	}
	return &Analysis{client: client, model: model, maxFindingsPerSource: maxFindingsPerSource, maxGaps: maxGaps}
}

type findingsResponseJSON struct {
	Findings []findingJSON `json:"findings"`
}

type findingJSON struct {
	Claim              string  `json:"claim"`
	Evidence           string  `json:"evidence"`
	Confidence         float64 `json:"confidence"`
	RelatedSubQuestion string  `json:"relatedSubQuestion"`
}

// ExtractFindings asks the LLM to pull atomic claims out of a document's
// content, assigning each a stable `find_{sourceId}_{k}` id and stamping
// the iteration it was discovered in (SPEC_FULL.md §4.8 step 2). Returns
// nil, 0, nil for documents with no usable content (extraction failures,
// empty body).
func (a *Analysis) ExtractFindings(ctx context.Context, doc models.SourceDocument, iteration int) ([]models.Finding, float64, error) {
	if doc.Content.Body == "" || doc.FailureKind != "" {
		return nil, 0, nil
	}

	system := "You extract atomic, verifiable factual claims from source text."
	user := fmt.Sprintf(`Source: %s (%s)

Content:
%s

Extract up to %d distinct factual claims relevant to research, each as a
standalone statement.

Return JSON: {"findings": [{"claim": "...", "evidence": "...", "confidence": 0.0, "relatedSubQuestion": "..."}]}`,
		doc.Content.Title, doc.Source.URL, truncate(doc.Content.Body, 3000), a.maxFindingsPerSource)

	text, promptTok, compTok, err := llm.Generate(ctx, a.client, system, user)
	if err != nil {
		return nil, 0, models.NewDomainError(models.KindLLMError, "agents.Analysis.ExtractFindings", err)
	}
	cost := llm.CostOf(a.model, promptTok, compTok)

	raw, ok := llm.ExtractJSONObject(text)
	if !ok {
		return nil, cost, nil
	}

	var parsed findingsResponseJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, cost, nil
	}

	now := time.Now()
	out := make([]models.Finding, 0, len(parsed.Findings))
	for i, f := range parsed.Findings {
		if i >= a.maxFindingsPerSource {
			break
		}
		out = append(out, models.Finding{
			ID:                  fmt.Sprintf("find_%s_%d", doc.ID, i+1),
			Claim:               f.Claim,
			SourceID:            doc.ID,
			Evidence:            f.Evidence,
			VerificationScore:   f.Confidence,
			IterationDiscovered: iteration,
			DiscoveredAt:        now,
		})
	}
	return out, cost, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

// DedupeFindings collapses findings whose claim shares the same lowercased
// first 50 characters, keeping whichever has the higher VerificationScore
// (SPEC_FULL.md §4.8 step 3).
func DedupeFindings(findings []models.Finding) []models.Finding {
	best := make(map[string]models.Finding)
	order := make([]string, 0, len(findings))
	for _, f := range findings {
		key := dedupeKey(f.Claim)
		if prior, ok := best[key]; !ok {
			best[key] = f
			order = append(order, key)
		} else if f.VerificationScore > prior.VerificationScore {
			best[key] = f
		}
	}
	out := make([]models.Finding, 0, len(order))
	for _, key := range order {
		out = append(out, best[key])
	}
	return out
}

func dedupeKey(claim string) string {
	lower := strings.ToLower(claim)
	r := []rune(lower)
	if len(r) > 50 {
		r = r[:50]
	}
	return string(r)
}

type gapsResponseJSON struct {
	Gaps             []gapItemJSON `json:"gaps"`
	CoverageEstimate float64       `json:"coverageEstimate"`
	Summary          string        `json:"summary"`
}

type gapItemJSON struct {
	Description    string `json:"description"`
	SuggestedQuery string `json:"suggestedQuery"`
	Priority       string `json:"priority"`
	Reason         string `json:"reason"`
}

// IdentifyGaps asks the LLM which sub-questions remain under-covered by the
// findings gathered so far, parsing each gap's priority case-insensitively
// (unknown defaults to Medium) and capping at maxGaps (SPEC_FULL.md §4.8
// step 4).
func (a *Analysis) IdentifyGaps(ctx context.Context, subQuestions []models.SubQuestion, findings []models.Finding) ([]models.InformationGap, float64, error) {
	system := "You identify gaps in research coverage against a set of sub-questions."
	user := "Sub-questions:\n"
	for _, sq := range subQuestions {
		user += fmt.Sprintf("- [%s] %s\n", sq.ID, sq.Question)
	}
	user += "\nFindings so far:\n"
	for _, f := range findings {
		user += fmt.Sprintf("- %s\n", f.Claim)
	}
	user += `
For each sub-question not yet adequately covered, describe the gap and a
search query that would close it.

Return JSON: {"gaps": [{"description": "...", "suggestedQuery": "...", "priority": "high|medium|low", "reason": "..."}], "coverageEstimate": 0.0, "summary": "..."}`

	text, promptTok, compTok, err := llm.Generate(ctx, a.client, system, user)
	if err != nil {
		return nil, 0, models.NewDomainError(models.KindLLMError, "agents.Analysis.IdentifyGaps", err)
	}
	cost := llm.CostOf(a.model, promptTok, compTok)

	raw, ok := llm.ExtractJSONObject(text)
	if !ok {
		return nil, cost, nil
	}
	var parsed gapsResponseJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, cost, nil
	}

	now := time.Now()
	gaps := make([]models.InformationGap, 0, len(parsed.Gaps))
	for i, g := range parsed.Gaps {
		if i >= a.maxGaps {
			break
		}
		gaps = append(gaps, models.InformationGap{
			Description:    g.Description,
			SuggestedQuery: g.SuggestedQuery,
			Priority:       parseGapPriority(g.Priority),
			Reason:         g.Reason,
			IdentifiedAt:   now,
		})
	}
	return gaps, cost, nil
}

// parseGapPriority parses a priority string case-insensitively, defaulting
// to Medium for anything unrecognized (SPEC_FULL.md §4.8 step 4).
func parseGapPriority(raw string) models.GapPriority {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "high":
		return models.GapPriorityHigh
	case "low":
		return models.GapPriorityLow
	default:
		return models.GapPriorityMedium
	}
}

type sufficiencyResponseJSON struct {
	Coverage float64 `json:"coverage"`
	Quality  float64 `json:"quality"`
}

// AssessSufficiency computes the weighted SufficiencyScore SPEC_FULL.md
// §4.8 step 5 specifies: locally-computed source diversity and freshness,
// an LLM-judged coverage/quality pair (defaulting both to 0.5 on failure),
// combined as `0.35*coverage + 0.30*quality + 0.20*diversity +
// 0.15*freshness - gap_penalty` and clamped to [0,1], where
// `gap_penalty = min(0.2, 0.04*|gaps|)`.
func (a *Analysis) AssessSufficiency(ctx context.Context, subQuestions []models.SubQuestion, findings []models.Finding, docs []models.SourceDocument, gaps []models.InformationGap, threshold float64) (models.SufficiencyScore, float64, error) {
	diversity := sourceDiversity(docs)
	freshness := meanFreshness(docs)

	system := "You judge how well accumulated research findings cover a set of sub-questions."
	user := "Sub-questions:\n"
	for _, sq := range subQuestions {
		user += fmt.Sprintf("- [%s] %s\n", sq.ID, sq.Question)
	}
	user += "\nFindings so far:\n"
	for _, f := range findings {
		user += fmt.Sprintf("- %s\n", f.Claim)
	}
	user += `
Rate overall coverage of the sub-questions and the quality of the evidence
backing the findings.

Return JSON: {"coverage": 0.0, "quality": 0.0}`

	coverage, quality := 0.5, 0.5
	text, promptTok, compTok, err := llm.Generate(ctx, a.client, system, user)
	var genErr error
	cost := 0.0
	if err != nil {
		genErr = models.NewDomainError(models.KindLLMError, "agents.Analysis.AssessSufficiency", err)
	} else {
		cost = llm.CostOf(a.model, promptTok, compTok)
		if raw, ok := llm.ExtractJSONObject(text); ok {
			var parsed sufficiencyResponseJSON
			if json.Unmarshal([]byte(raw), &parsed) == nil {
				coverage, quality = parsed.Coverage, parsed.Quality
			}
		}
	}

	gapPenalty := 0.04 * float64(len(gaps))
	if gapPenalty > 0.2 {
		gapPenalty = 0.2
	}

	overall := 0.35*coverage + 0.30*quality + 0.20*diversity + 0.15*freshness - gapPenalty
	overall = clamp01(overall)

	sufficiency := models.SufficiencyScore{
		Score:       overall,
		Coverage:    coverage,
		Quality:     quality,
		Diversity:   diversity,
		Freshness:   freshness,
		NewFindings: len(findings),
		EvaluatedAt: time.Now(),
		Gaps:        gaps,
	}
	sufficiency.Sufficient = sufficiency.IsSufficientAt(threshold)

	return sufficiency, cost, genErr
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// sourceDiversity averages the distinct-domain and distinct-provider ratios
// across docs (SPEC_FULL.md §4.8 step 5:
// `mean(min(1,distinct_domains/5), min(1,distinct_providers/3))`).
func sourceDiversity(docs []models.SourceDocument) float64 {
	if len(docs) == 0 {
		return 0
	}
	domains := make(map[string]struct{})
	providers := make(map[string]struct{})
	for _, d := range docs {
		if host := domainOf(d.Source.URL); host != "" {
			domains[host] = struct{}{}
		}
		if d.Source.Provider != "" {
			providers[d.Source.Provider] = struct{}{}
		}
	}
	domainRatio := minFloat(1, float64(len(domains))/5)
	providerRatio := minFloat(1, float64(len(providers))/3)
	mean, err := stats.Mean([]float64{domainRatio, providerRatio})
	if err != nil {
		return 0
	}
	return mean
}

func domainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// meanFreshness scores each doc by a piecewise step on its published-date
// age and averages the result (SPEC_FULL.md §4.8 step 5: ≤7d→1.0, ≤30d→0.9,
// ≤90d→0.7, ≤365d→0.5, else 0.3; undated sources score 0.5).
func meanFreshness(docs []models.SourceDocument) float64 {
	if len(docs) == 0 {
		return 0
	}
	scores := make([]float64, len(docs))
	now := time.Now()
	for i, d := range docs {
		scores[i] = freshnessOf(d, now)
	}
	mean, err := stats.Mean(scores)
	if err != nil {
		return 0
	}
	return mean
}

func freshnessOf(d models.SourceDocument, now time.Time) float64 {
	published := d.Content.PublishedAt
	if published.IsZero() {
		return 0.5
	}
	age := now.Sub(published)
	switch {
	case age <= 7*24*time.Hour:
		return 1.0
	case age <= 30*24*time.Hour:
		return 0.9
	case age <= 90*24*time.Hour:
		return 0.7
	case age <= 365*24*time.Hour:
		return 0.5
	default:
		return 0.3
	}
}

