package agents

import (
	"context"
	"testing"

	"deepresearch/internal/models"
)

func TestPlanSequencesDecomposePerspectivesAndExpandQueries(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`[{"question": "what is X", "purpose": "baseline", "priority": 0}]`,
		`[{"name": "General", "description": "broad overview", "key_topics": ["x"]}]`,
	}}
	p := NewPlanner(NewExpander(client, "test-model"))

	plan, _, err := p.Plan(context.Background(), "what is X", models.DepthStandard)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.SubQuestions) != 1 || plan.SubQuestions[0].Question != "what is X" {
		t.Fatalf("want the decomposed sub-question, got %+v", plan.SubQuestions)
	}
	if len(plan.Perspectives) != 1 || plan.Perspectives[0].Name != "General" {
		t.Fatalf("want the discovered perspective, got %+v", plan.Perspectives)
	}
	if len(plan.Queries) != 1 {
		t.Fatalf("want one expanded query crossing the sub-question with the perspective, got %+v", plan.Queries)
	}
}

func TestPlanDedupesAndSortsQueriesByPriority(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`[{"question": "q1", "purpose": "p1", "priority": 2}, {"question": "q2", "purpose": "p2", "priority": 0}]`,
		`[{"name": "General", "description": "broad", "key_topics": []}]`,
	}}
	p := NewPlanner(NewExpander(client, "test-model"))

	plan, _, err := p.Plan(context.Background(), "topic", models.DepthComprehensive)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if len(plan.Queries) != 2 {
		t.Fatalf("want 2 deduplicated queries, got %+v", plan.Queries)
	}
	if plan.Queries[0].Priority > plan.Queries[1].Priority {
		t.Fatalf("want queries sorted ascending by priority, got %+v", plan.Queries)
	}
}

func TestGenerateFollowUpNoGapsIsANoop(t *testing.T) {
	p := NewPlanner(NewExpander(&scriptedClient{}, "test-model"))
	queries, cost, err := p.GenerateFollowUp(context.Background(), nil, nil, nil, models.DepthStandard, false)
	if err != nil || queries != nil || cost != 0 {
		t.Fatalf("want nil,0,nil for no gaps, got %v %v %v", queries, cost, err)
	}
}

func TestGenerateFollowUpDropsLowPriorityGapsUnderBudgetPressure(t *testing.T) {
	p := NewPlanner(NewExpander(&scriptedClient{}, "test-model"))
	gaps := []models.InformationGap{
		{Description: "low priority gap", SuggestedQuery: "low query", Priority: models.GapPriorityLow},
	}
	queries, _, err := p.GenerateFollowUp(context.Background(), gaps, nil, nil, models.DepthStandard, true)
	if err != nil {
		t.Fatalf("GenerateFollowUp: %v", err)
	}
	if queries != nil {
		t.Fatalf("want every gap dropped under budget pressure, got %+v", queries)
	}
}

func TestGenerateFollowUpBuildsQueriesFromActionableGaps(t *testing.T) {
	p := NewPlanner(NewExpander(&scriptedClient{}, "test-model"))
	gaps := []models.InformationGap{
		{Description: "missing angle", SuggestedQuery: "deep dive into gap one", Priority: models.GapPriorityHigh, Reason: "not enough coverage"},
	}
	perspectives := []models.Perspective{{ID: "persp-1", Name: "Technical"}}

	queries, _, err := p.GenerateFollowUp(context.Background(), gaps, perspectives, nil, models.DepthStandard, false)
	if err != nil {
		t.Fatalf("GenerateFollowUp: %v", err)
	}
	if len(queries) != 1 {
		t.Fatalf("want one query for the single actionable gap, got %+v", queries)
	}
	if queries[0].Intent != "not enough coverage" {
		t.Fatalf("want Intent carried over from the gap's Reason, got %q", queries[0].Intent)
	}
	if queries[0].Priority != 1 {
		t.Fatalf("want High priority gap mapped to SubQuestion priority 1, got %d", queries[0].Priority)
	}
}

func TestGenerateFollowUpFiltersAlreadyExecutedQueries(t *testing.T) {
	p := NewPlanner(NewExpander(&scriptedClient{}, "test-model"))
	gaps := []models.InformationGap{
		{Description: "gap", SuggestedQuery: "gap one", Priority: models.GapPriorityMedium},
	}
	perspectives := []models.Perspective{{ID: "persp-1", Name: "General"}}
	executed := []string{"gap one (General perspective)"}

	queries, _, err := p.GenerateFollowUp(context.Background(), gaps, perspectives, executed, models.DepthStandard, false)
	if err != nil {
		t.Fatalf("GenerateFollowUp: %v", err)
	}
	if len(queries) != 0 {
		t.Fatalf("want the already-executed query filtered out, got %+v", queries)
	}
}
