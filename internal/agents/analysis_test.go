package agents

import (
	"context"
	"math"
	"testing"

	"deepresearch/internal/llm"
	"deepresearch/internal/models"
)

// scriptedClient returns the next reply in replies on each Chat call, so a
// test can feed distinct JSON payloads to successive calls against the same
// agent (e.g. ExtractFindings then AssessSufficiency).
type scriptedClient struct {
	replies []string
	calls   int
}

func (c *scriptedClient) Chat(ctx context.Context, messages []llm.Message) (*llm.ChatResponse, error) {
	reply := "{}"
	if c.calls < len(c.replies) {
		reply = c.replies[c.calls]
	}
	c.calls++
	resp := &llm.ChatResponse{}
	resp.Choices = []struct {
		Message llm.Message `json:"message"`
	}{{Message: llm.Message{Role: "assistant", Content: reply}}}
	resp.Usage.PromptTokens = 5
	resp.Usage.CompletionTokens = 5
	return resp, nil
}

func (c *scriptedClient) StreamChat(ctx context.Context, messages []llm.Message, handler func(chunk string) error) error {
	return handler("")
}
func (c *scriptedClient) SetModel(model string) {}
func (c *scriptedClient) GetModel() string       { return "" }

func TestExtractFindingsSkipsEmptyOrFailedDocuments(t *testing.T) {
	a := NewAnalysis(&scriptedClient{}, "test-model", 5, 8)

	findings, cost, err := a.ExtractFindings(context.Background(), models.SourceDocument{
		ID:          "doc-1",
		FailureKind: models.KindContentExtraction,
	}, 1)
	if err != nil || findings != nil || cost != 0 {
		t.Fatalf("want nil,0,nil for a failed document, got %v %v %v", findings, cost, err)
	}

	findings, cost, err = a.ExtractFindings(context.Background(), models.SourceDocument{ID: "doc-2"}, 1)
	if err != nil || findings != nil || cost != 0 {
		t.Fatalf("want nil,0,nil for an empty-body document, got %v %v %v", findings, cost, err)
	}
}

func TestExtractFindingsParsesClaims(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"findings": [{"claim": "the sky is blue", "evidence": "clear daytime sky", "confidence": 0.9}]}`,
	}}
	a := NewAnalysis(client, "test-model", 5, 8)

	doc := models.SourceDocument{
		ID:      "doc-1",
		Source:  models.SearchSource{URL: "https://a.test"},
		Content: models.ExtractedContent{Title: "Sky facts", Body: "the sky is blue during the day"},
	}

	findings, _, err := a.ExtractFindings(context.Background(), doc, 3)
	if err != nil {
		t.Fatalf("ExtractFindings: %v", err)
	}
	if len(findings) != 1 {
		t.Fatalf("want 1 finding, got %d", len(findings))
	}
	if findings[0].ID != "find_doc-1_1" {
		t.Fatalf("want id find_doc-1_1, got %q", findings[0].ID)
	}
	if findings[0].SourceID != doc.ID {
		t.Fatalf("want SourceID %q, got %q", doc.ID, findings[0].SourceID)
	}
	if findings[0].Claim != "the sky is blue" {
		t.Fatalf("want the parsed claim text, got %q", findings[0].Claim)
	}
	if findings[0].IterationDiscovered != 3 {
		t.Fatalf("want iteration 3 stamped, got %d", findings[0].IterationDiscovered)
	}
	if findings[0].VerificationScore != 0.9 {
		t.Fatalf("want confidence carried into VerificationScore, got %v", findings[0].VerificationScore)
	}
}

func TestDedupeFindingsKeepsHigherVerificationScore(t *testing.T) {
	findings := []models.Finding{
		{ID: "a", Claim: "Water boils at 100 degrees Celsius at sea level on Earth", VerificationScore: 0.4},
		{ID: "b", Claim: "water boils at 100 degrees celsius at sea level on earth, reportedly", VerificationScore: 0.9},
		{ID: "c", Claim: "an entirely unrelated claim about something else"},
	}

	out := DedupeFindings(findings)
	if len(out) != 2 {
		t.Fatalf("want 2 deduped findings, got %d", len(out))
	}
	if out[0].ID != "b" {
		t.Fatalf("want the higher-verification-score duplicate to win, got %q", out[0].ID)
	}
}

func TestIdentifyGapsParsesPriorityCaseInsensitivelyDefaultingToMedium(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"gaps": [{"description": "d1", "suggestedQuery": "q1", "priority": "HIGH"}, {"description": "d2", "suggestedQuery": "q2", "priority": "unknown"}], "coverageEstimate": 0.5}`,
	}}
	a := NewAnalysis(client, "test-model", 5, 8)

	gaps, _, err := a.IdentifyGaps(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("IdentifyGaps: %v", err)
	}
	if len(gaps) != 2 {
		t.Fatalf("want 2 gaps, got %d", len(gaps))
	}
	if gaps[0].Priority != models.GapPriorityHigh {
		t.Fatalf("want High parsed case-insensitively, got %q", gaps[0].Priority)
	}
	if gaps[1].Priority != models.GapPriorityMedium {
		t.Fatalf("want an unrecognized priority to default to Medium, got %q", gaps[1].Priority)
	}
}

func TestIdentifyGapsCapsAtMaxGaps(t *testing.T) {
	client := &scriptedClient{replies: []string{
		`{"gaps": [{"description": "d1"}, {"description": "d2"}, {"description": "d3"}]}`,
	}}
	a := NewAnalysis(client, "test-model", 5, 2)

	gaps, _, err := a.IdentifyGaps(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("IdentifyGaps: %v", err)
	}
	if len(gaps) != 2 {
		t.Fatalf("want gaps capped at 2, got %d", len(gaps))
	}
}

func TestAssessSufficiencyComposesWeightedScore(t *testing.T) {
	client := &scriptedClient{replies: []string{`{"coverage": 0.8, "quality": 0.6}`}}
	a := NewAnalysis(client, "test-model", 5, 8)

	docs := []models.SourceDocument{
		{Source: models.SearchSource{URL: "https://a.test/x", Provider: "brave"}},
		{Source: models.SearchSource{URL: "https://b.test/y", Provider: "duckduckgo"}},
	}
	gaps := []models.InformationGap{{Description: "one remaining gap"}}

	sufficiency, _, err := a.AssessSufficiency(context.Background(), nil, nil, docs, gaps, 0.5)
	if err != nil {
		t.Fatalf("AssessSufficiency: %v", err)
	}
	if sufficiency.Coverage != 0.8 || sufficiency.Quality != 0.6 {
		t.Fatalf("want coverage/quality from the LLM response, got %v/%v", sufficiency.Coverage, sufficiency.Quality)
	}

	wantDiversity := (0.4 + 2.0/3.0) / 2
	if math.Abs(sufficiency.Diversity-wantDiversity) > 1e-9 {
		t.Fatalf("want diversity %v (2 distinct domains/providers), got %v", wantDiversity, sufficiency.Diversity)
	}
	if sufficiency.Freshness != 0.5 {
		t.Fatalf("want undated sources to score 0.5 freshness, got %v", sufficiency.Freshness)
	}

	wantOverall := 0.35*0.8 + 0.30*0.6 + 0.20*wantDiversity + 0.15*0.5 - 0.04
	if math.Abs(sufficiency.Score-wantOverall) > 1e-9 {
		t.Fatalf("want overall %v, got %v", wantOverall, sufficiency.Score)
	}
	if !sufficiency.Sufficient {
		t.Fatalf("want sufficient at threshold 0.5 with score %v", sufficiency.Score)
	}
}

func TestAssessSufficiencyDefaultsCoverageAndQualityOnUnparseableResponse(t *testing.T) {
	client := &scriptedClient{replies: []string{"not json"}}
	a := NewAnalysis(client, "test-model", 5, 8)

	sufficiency, _, err := a.AssessSufficiency(context.Background(), nil, nil, nil, nil, 0.5)
	if err != nil {
		t.Fatalf("AssessSufficiency: %v", err)
	}
	if sufficiency.Coverage != 0.5 || sufficiency.Quality != 0.5 {
		t.Fatalf("want 0.5/0.5 defaults, got %v/%v", sufficiency.Coverage, sufficiency.Quality)
	}
}

func TestSufficiencyScoreNeedsMoreResearchRequiresGaps(t *testing.T) {
	insufficientNoGaps := models.SufficiencyScore{Score: 0.1}
	if insufficientNoGaps.NeedsMoreResearch(0.5) {
		t.Fatalf("want no more research when insufficient but no actionable gap exists")
	}

	insufficientWithGap := models.SufficiencyScore{Score: 0.1, Gaps: []models.InformationGap{{Description: "x"}}}
	if !insufficientWithGap.NeedsMoreResearch(0.5) {
		t.Fatalf("want more research when insufficient and a gap remains")
	}

	sufficientWithGap := models.SufficiencyScore{Score: 0.9, Gaps: []models.InformationGap{{Description: "x"}}}
	if sufficientWithGap.NeedsMoreResearch(0.5) {
		t.Fatalf("want is_sufficient alone to stop iteration even if a gap lingers")
	}
}
