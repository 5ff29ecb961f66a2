// Package agents implements the five collaborator agents the Research
// Orchestrator drives through its phase loop (SPEC_FULL.md §4.1-§4.9):
// Query Expander, Query Planner, Search Coordinator, Content Enrichment,
// Analysis, and Report Generator.
package agents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"deepresearch/internal/llm"
	"deepresearch/internal/models"
)

// Expander implements the Query Expander (SPEC_FULL.md §4.1): decomposing a
// research query into sub-questions, discovering expert perspectives to
// diversify coverage, then crossing the two into concrete ExpandedQueries.
// Grounded on planning.PerspectiveDiscoverer.Discover/parseResponse (the
// find-'['/find-']'-then-unmarshal convention, now shared via
// llm.ExtractJSONArray) and agents.SearchAgent.generateQueries.
type Expander struct {
	client llm.ChatClient
	model  string
}

// NewExpander returns a Query Expander driven by client.
func NewExpander(client llm.ChatClient, model string) *Expander {
	return &Expander{client: client, model: model}
}

type subQuestionJSON struct {
	Question string `json:"question"`
	Purpose  string `json:"purpose"`
	Priority int    `json:"priority"`
}

// Decompose breaks query into SPEC_FULL.md §4.1's sub-questions, capped by
// the request's depth tag.
func (e *Expander) Decompose(ctx context.Context, query string, depth models.Depth) ([]models.SubQuestion, float64, error) {
	maxSubQuestions, _, _ := models.ExpansionLimits(depth)

	system := "You decompose research questions into focused sub-questions."
	user := fmt.Sprintf(`Research query: %q

Break this into at most %d distinct sub-questions that together cover the
query comprehensively, ordered by priority (0 = most important).

Return a JSON array:
[{"question": "...", "purpose": "...", "priority": 0}]`, query, maxSubQuestions)

	text, promptTok, compTok, err := llm.Generate(ctx, e.client, system, user)
	if err != nil {
		return nil, 0, models.NewDomainError(models.KindLLMError, "agents.Expander.Decompose", err)
	}
	cost := llm.CostOf(e.model, promptTok, compTok)

	raw, ok := llm.ExtractJSONArray(text)
	if !ok {
		return e.fallbackSubQuestions(query, maxSubQuestions), cost, nil
	}

	var parsed []subQuestionJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || len(parsed) == 0 {
		return e.fallbackSubQuestions(query, maxSubQuestions), cost, nil
	}

	out := make([]models.SubQuestion, 0, len(parsed))
	for i, p := range parsed {
		if i >= maxSubQuestions {
			break
		}
		out = append(out, models.SubQuestion{
			ID:       uuid.NewString(),
			Question: p.Question,
			Purpose:  p.Purpose,
			Priority: p.Priority,
		})
	}
	return out, cost, nil
}

func (e *Expander) fallbackSubQuestions(query string, max int) []models.SubQuestion {
	if max > 1 {
		max = 1
	}
	return []models.SubQuestion{{ID: uuid.NewString(), Question: query, Purpose: "direct answer", Priority: 0}}
}

type perspectiveJSON struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	KeyTopics   []string `json:"key_topics"`
}

// DiscoverPerspectives identifies distinct expert viewpoints for the query,
// capped by depth (SPEC_FULL.md §4.1, STORM-style perspective discovery).
func (e *Expander) DiscoverPerspectives(ctx context.Context, query string, depth models.Depth) ([]models.Perspective, float64, error) {
	_, maxPerspectives, _ := models.ExpansionLimits(depth)

	system := "You identify distinct expert perspectives for comprehensive research coverage."
	user := fmt.Sprintf(`Research topic: %q

Identify up to %d distinct expert perspectives that would each surface
different, non-overlapping angles on this topic.

Return a JSON array:
[{"name": "...", "description": "...", "key_topics": ["..."]}]`, query, maxPerspectives)

	text, promptTok, compTok, err := llm.Generate(ctx, e.client, system, user)
	if err != nil {
		return nil, 0, models.NewDomainError(models.KindLLMError, "agents.Expander.DiscoverPerspectives", err)
	}
	cost := llm.CostOf(e.model, promptTok, compTok)

	raw, ok := llm.ExtractJSONArray(text)
	if !ok {
		return e.defaultPerspectives(query, maxPerspectives), cost, nil
	}

	var parsed []perspectiveJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || len(parsed) == 0 {
		return e.defaultPerspectives(query, maxPerspectives), cost, nil
	}

	out := make([]models.Perspective, 0, len(parsed))
	for i, p := range parsed {
		if i >= maxPerspectives {
			break
		}
		out = append(out, models.Perspective{
			ID:          uuid.NewString(),
			Name:        p.Name,
			Description: p.Description,
			KeyTopics:   p.KeyTopics,
		})
	}
	return out, cost, nil
}

// defaultPerspectives is the deterministic fallback used whenever the LLM
// response can't be parsed, matching planning.defaultPerspectives's
// always-make-progress contract.
func (e *Expander) defaultPerspectives(query string, max int) []models.Perspective {
	base := []models.Perspective{
		{ID: uuid.NewString(), Name: "General", Description: "Broad overview of " + query},
		{ID: uuid.NewString(), Name: "Technical", Description: "Technical details of " + query},
		{ID: uuid.NewString(), Name: "Practical", Description: "Practical implications of " + query},
	}
	if max > 0 && max < len(base) {
		return base[:max]
	}
	return base
}

// ExpandQueries crosses sub-questions with perspectives into concrete
// ExpandedQueries, deduping identical text and capping at depth's limit
// (SPEC_FULL.md §4.1 step 3).
func (e *Expander) ExpandQueries(subQuestions []models.SubQuestion, perspectives []models.Perspective, depth models.Depth) []models.ExpandedQuery {
	_, _, maxExpanded := models.ExpansionLimits(depth)

	seen := make(map[string]struct{})
	var out []models.ExpandedQuery
	for _, sq := range subQuestions {
		for _, persp := range perspectives {
			if len(out) >= maxExpanded {
				return out
			}
			query := fmt.Sprintf("%s (%s perspective)", sq.Question, persp.Name)
			if _, dup := seen[query]; dup {
				continue
			}
			seen[query] = struct{}{}
			out = append(out, models.ExpandedQuery{
				Query:             query,
				Intent:            sq.Purpose,
				Priority:          sq.Priority,
				Type:              models.SearchWeb,
				SourcePerspective: persp.ID,
				SourceSubQuestion: sq.ID,
			})
		}
		if len(perspectives) == 0 && len(out) < maxExpanded {
			out = append(out, models.ExpandedQuery{
				Query:             sq.Question,
				Intent:            sq.Purpose,
				Priority:          sq.Priority,
				Type:              models.SearchWeb,
				SourceSubQuestion: sq.ID,
			})
		}
	}
	return out
}
