package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"deepresearch/internal/models"
)

// Planner implements the Query Planner Agent (SPEC_FULL.md §4.2):
// sequencing the Query Expander's three capabilities into one
// QueryPlanResult for a fresh session, and turning a later iteration's
// InformationGaps into follow-up ExpandedQueries. Grounded on
// planning.Planner.CreatePlan's sequencing (discover → build → return a
// plan-shaped result carrying cost); the DAG-building half of the teacher's
// planner is retired in favor of this linear pipeline, with the Search
// Coordinator now building its own internal fan-out DAG
// (internal/agents/coordinator.go) independently of this agent.
type Planner struct {
	expander *Expander
}

// NewPlanner returns a Query Planner Agent, composing an Expander to
// fulfill the Decompose/DiscoverPerspectives/ExpandQueries calls SPEC_FULL.md
// §4.2's Plan(state) sequences. The Planner itself makes no direct LLM
// calls; every one of its costs is attributable to the expander.
func NewPlanner(expander *Expander) *Planner {
	return &Planner{expander: expander}
}

// QueryPlanResult is the Query Planner Agent's output for a fresh session:
// the decomposed sub-questions and discovered perspectives alongside the
// deduplicated, priority-sorted ExpandedQueries they produced (SPEC_FULL.md
// §4.2 Plan(state)).
type QueryPlanResult struct {
	SubQuestions []models.SubQuestion
	Perspectives []models.Perspective
	Queries      []models.ExpandedQuery
}

// Plan sequences Decompose, DiscoverPerspectives, and ExpandQueries,
// deduplicates the resulting queries by case-insensitive, whitespace-
// normalized text, and sorts by ascending priority (SPEC_FULL.md §4.2
// Plan(state): "invoke Decompose, DiscoverPerspectives, ExpandQueries in
// sequence; deduplicate expanded queries by case-insensitive,
// whitespace-normalized text; sort by priority").
func (p *Planner) Plan(ctx context.Context, query string, depth models.Depth) (QueryPlanResult, float64, error) {
	subQuestions, cost1, err := p.expander.Decompose(ctx, query, depth)
	if err != nil {
		return QueryPlanResult{}, cost1, err
	}

	perspectives, cost2, err := p.expander.DiscoverPerspectives(ctx, query, depth)
	if err != nil {
		return QueryPlanResult{SubQuestions: subQuestions}, cost1 + cost2, err
	}

	queries := p.expander.ExpandQueries(subQuestions, perspectives, depth)
	queries = dedupeQueriesByText(queries)
	sortQueriesByPriority(queries)

	return QueryPlanResult{SubQuestions: subQuestions, Perspectives: perspectives, Queries: queries}, cost1 + cost2, nil
}

// normalizeQueryText is the case/whitespace-insensitive key used to dedupe
// queries, matching session.ResearchState's own normalization so both
// layers agree on what counts as "the same query".
func normalizeQueryText(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

func dedupeQueriesByText(queries []models.ExpandedQuery) []models.ExpandedQuery {
	seen := make(map[string]struct{}, len(queries))
	out := make([]models.ExpandedQuery, 0, len(queries))
	for _, q := range queries {
		key := normalizeQueryText(q.Query)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, q)
	}
	return out
}

func sortQueriesByPriority(queries []models.ExpandedQuery) {
	sort.SliceStable(queries, func(i, j int) bool { return queries[i].Priority < queries[j].Priority })
}

// priorityRank maps an InformationGap's priority to the follow-up
// SubQuestion priority SPEC_FULL.md §4.2 specifies: High→1, Medium→2,
// Low→3.
func priorityRank(p models.GapPriority) int {
	switch p {
	case models.GapPriorityHigh:
		return 1
	case models.GapPriorityLow:
		return 3
	default:
		return 2
	}
}

// GenerateFollowUp turns unresolved InformationGaps into new ExpandedQueries
// for the next iteration (SPEC_FULL.md §4.2): drops Low-priority gaps when
// budgetPressed, converts each remaining gap's suggested query into a
// SubQuestion whose priority is derived from the gap's priority, reuses the
// session's research angles as perspectives (synthesizing a default one if
// none exist yet), calls ExpandQueries, and filters out anything already
// present in executedQueries (same case/whitespace normalization).
func (p *Planner) GenerateFollowUp(ctx context.Context, gaps []models.InformationGap, perspectives []models.Perspective, executedQueries []string, depth models.Depth, budgetPressed bool) ([]models.ExpandedQuery, float64, error) {
	if len(gaps) == 0 {
		return nil, 0, nil
	}

	actionable := make([]models.InformationGap, 0, len(gaps))
	for _, g := range gaps {
		if budgetPressed && g.Priority == models.GapPriorityLow {
			continue
		}
		actionable = append(actionable, g)
	}
	if len(actionable) == 0 {
		return nil, 0, nil
	}

	if len(perspectives) == 0 {
		perspectives = p.expander.defaultPerspectives("the remaining gaps", 1)
	}

	subQuestions := make([]models.SubQuestion, len(actionable))
	for i, g := range actionable {
		subQuestions[i] = models.SubQuestion{
			ID:       gapSubQuestionID(i),
			Question: g.SuggestedQuery,
			Purpose:  g.Reason,
			Priority: priorityRank(g.Priority),
		}
	}

	queries := p.expander.ExpandQueries(subQuestions, perspectives, depth)
	queries = dedupeQueriesByText(queries)
	sortQueriesByPriority(queries)

	executed := make(map[string]struct{}, len(executedQueries))
	for _, q := range executedQueries {
		executed[normalizeQueryText(q)] = struct{}{}
	}
	out := make([]models.ExpandedQuery, 0, len(queries))
	for _, q := range queries {
		if _, already := executed[normalizeQueryText(q.Query)]; already {
			continue
		}
		out = append(out, q)
	}

	return out, 0, nil
}

func gapSubQuestionID(i int) string {
	return fmt.Sprintf("gap_%d", i)
}
