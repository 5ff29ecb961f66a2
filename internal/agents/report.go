package agents

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"deepresearch/internal/llm"
	"deepresearch/internal/models"
)

// Report implements the Report Generator Agent (SPEC_FULL.md §4.9): outline
// generation, per-section writing with keyword-overlap finding selection,
// citation registration/rendering, and final assembly. Grounded on the
// prior SynthesisAgent.Synthesize pipeline (generateOutline/writeSections/
// compileReport), with GenerateOutline's STORM draft-then-refine variant
// adapted from GenerateDraftOutline/RefineOutline for Comprehensive depth.
type Report struct {
	client llm.ChatClient
	model  string
	style  models.CitationStyle
}

// NewReport returns a Report Generator Agent rendering citations in style.
func NewReport(client llm.ChatClient, model string, style models.CitationStyle) *Report {
	if style == "" {
		style = models.CitationNumbered
	}
	return &Report{client: client, model: model, style: style}
}

const maxSections = 6

type outlineJSON struct {
	Title    string `json:"title"`
	Sections []struct {
		Title     string   `json:"title"`
		Purpose   string   `json:"purpose"`
		KeyPoints []string `json:"keyPoints"`
	} `json:"sections"`
}

// GenerateOutline produces a ReportOutline, falling back to a deterministic
// default shape on any LLM or parse failure. When storm is true (the
// orchestrator requests Comprehensive depth), runs a draft-then-refine
// two-phase pass instead of a single call.
func (r *Report) GenerateOutline(ctx context.Context, topic string, findings []models.Finding, storm bool) (models.ReportOutline, float64, error) {
	if storm {
		return r.generateOutlineSTORM(ctx, topic, findings)
	}
	return r.generateOutlineOnce(ctx, topic, findings)
}

func (r *Report) generateOutlineOnce(ctx context.Context, topic string, findings []models.Finding) (models.ReportOutline, float64, error) {
	system := "You plan the structure of a research report. Respond with JSON only."
	user := fmt.Sprintf(`Topic: %s

%d findings gathered so far.

Return JSON: {"title": "...", "sections": [{"title": "...", "purpose": "...", "keyPoints": ["..."]}]}
Use at most %d sections.`, topic, len(findings), maxSections)

	outline, cost, err := r.callForOutline(ctx, system, user)
	if err != nil {
		return defaultOutline(topic, findings), 0, err
	}
	if len(outline.Sections) == 0 {
		return defaultOutline(topic, findings), cost, nil
	}
	return outline, cost, nil
}

// generateOutlineSTORM runs STORM's two-phase outline generation: a draft
// from the topic alone, then a refinement pass conditioned on the findings
// actually gathered.
func (r *Report) generateOutlineSTORM(ctx context.Context, topic string, findings []models.Finding) (models.ReportOutline, float64, error) {
	draftSystem := "You plan the structure of a research report from prior knowledge alone. Respond with JSON only."
	draftUser := fmt.Sprintf(`Topic: %q

Return JSON: {"title": "...", "sections": [{"title": "...", "purpose": "..."}]}
Use at most %d sections. This is a draft to be refined later.`, topic, maxSections)

	draft, cost1, err := r.callForOutline(ctx, draftSystem, draftUser)
	if err != nil || len(draft.Sections) == 0 {
		draft = defaultOutline(topic, findings)
	}

	var claims strings.Builder
	for _, f := range findings {
		claims.WriteString("- " + f.Claim + "\n")
	}

	refineSystem := "You refine a draft report outline using newly gathered research findings. Respond with JSON only."
	refineUser := fmt.Sprintf(`Topic: %q

Draft outline sections: %s

Findings gathered since the draft:
%s

Refine the outline: add sections for significant topics discovered, drop
irrelevant ones, reorder for logical flow. Return the same JSON shape as the
draft, at most %d sections.`, topic, outlineSectionTitles(draft), claims.String(), maxSections)

	refined, cost2, err := r.callForOutline(ctx, refineSystem, refineUser)
	if err != nil || len(refined.Sections) == 0 {
		return draft, cost1, nil
	}
	return refined, cost1 + cost2, nil
}

func outlineSectionTitles(o models.ReportOutline) string {
	titles := make([]string, len(o.Sections))
	for i, s := range o.Sections {
		titles[i] = s.Title
	}
	return strings.Join(titles, ", ")
}

func (r *Report) callForOutline(ctx context.Context, system, user string) (models.ReportOutline, float64, error) {
	text, promptTok, compTok, err := llm.Generate(ctx, r.client, system, user)
	if err != nil {
		return models.ReportOutline{}, 0, models.NewDomainError(models.KindLLMError, "agents.Report.GenerateOutline", err)
	}
	cost := llm.CostOf(r.model, promptTok, compTok)

	raw, ok := llm.ExtractJSONObject(text)
	if !ok {
		return models.ReportOutline{}, cost, nil
	}
	var parsed outlineJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return models.ReportOutline{}, cost, nil
	}

	sections := make([]models.OutlineSection, 0, len(parsed.Sections))
	for _, s := range parsed.Sections {
		if len(sections) >= maxSections {
			break
		}
		sections = append(sections, models.OutlineSection{Title: s.Title, Purpose: s.Purpose})
	}
	return models.ReportOutline{Title: parsed.Title, Sections: sections}, cost, nil
}

// defaultOutline builds the deterministic fallback shape named in
// SPEC_FULL.md §4.9: Overview, Key Findings (seeded with the top five
// finding claims), Analysis, Conclusion.
func defaultOutline(topic string, findings []models.Finding) models.ReportOutline {
	seed := findings
	if len(seed) > 5 {
		seed = seed[:5]
	}
	points := make([]string, len(seed))
	for i, f := range seed {
		points[i] = f.Claim
	}
	return models.ReportOutline{
		Title: "Research Report: " + topic,
		Sections: []models.OutlineSection{
			{Title: "Overview", Purpose: "introduce the topic and scope"},
			{Title: "Key Findings", Purpose: "summarize the most important findings", SubQuestions: points},
			{Title: "Analysis", Purpose: "synthesize and interpret the findings"},
			{Title: "Conclusion", Purpose: "close with takeaways and limitations"},
		},
	}
}

var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "of": {}, "and": {}, "or": {}, "to": {}, "in": {}, "on": {}, "for": {},
	"is": {}, "are": {}, "was": {}, "were": {}, "with": {}, "that": {}, "this": {}, "it": {}, "as": {}, "by": {},
	"그": {}, "이": {}, "의": {}, "을": {}, "를": {}, "은": {}, "는": {}, "에": {}, "와": {}, "과": {},
}

func tokenize(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9' || r > 127)
	})
	out := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if len(f) < 3 {
			continue
		}
		if _, skip := stopwords[f]; skip {
			continue
		}
		out[f] = struct{}{}
	}
	return out
}

func overlaps(a, b map[string]struct{}) bool {
	for k := range a {
		if _, ok := b[k]; ok {
			return true
		}
	}
	return false
}

// relevantFindings selects findings whose claim shares at least one
// keyword with the section's title+purpose, capped at 10 findings drawn
// from at most 5 distinct sources (SPEC_FULL.md §4.9 step 1).
func relevantFindings(section models.OutlineSection, findings []models.Finding) []models.Finding {
	sectionWords := tokenize(section.Title + " " + section.Purpose)

	var matched []models.Finding
	sources := make(map[string]struct{})
	for _, f := range findings {
		if !overlaps(sectionWords, tokenize(f.Claim)) {
			continue
		}
		if len(matched) >= 10 {
			break
		}
		if _, seen := sources[f.SourceID]; !seen && len(sources) >= 5 {
			continue
		}
		sources[f.SourceID] = struct{}{}
		matched = append(matched, f)
	}
	return matched
}

type sectionJSON struct {
	Content      string   `json:"content"`
	UsedFindings []string `json:"usedFindings"`
}

// citationRegistry assigns stable, increasing citation numbers to
// SourceDocuments the first time they're referenced, shared across all
// section-writing calls.
type citationRegistry struct {
	byID    map[string]int
	order   []string
	docByID map[string]models.SourceDocument
}

func newCitationRegistry(docs []models.SourceDocument) *citationRegistry {
	byDoc := make(map[string]models.SourceDocument, len(docs))
	for _, d := range docs {
		byDoc[d.ID] = d
	}
	return &citationRegistry{byID: make(map[string]int), docByID: byDoc}
}

func (c *citationRegistry) numberFor(sourceID string) (int, bool) {
	if _, known := c.docByID[sourceID]; !known {
		return 0, false
	}
	if n, ok := c.byID[sourceID]; ok {
		return n, true
	}
	n := len(c.order) + 1
	c.byID[sourceID] = n
	c.order = append(c.order, sourceID)
	return n, true
}

func (c *citationRegistry) citations() []models.Citation {
	out := make([]models.Citation, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, models.Citation{Number: c.byID[id], Source: c.docByID[id]})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out
}

// GenerateSection writes one section's prose, registering citations for any
// finding's source referenced and replacing inline tokens per the
// configured CitationStyle (SPEC_FULL.md §4.9 step 2-4).
func (r *Report) GenerateSection(ctx context.Context, section models.OutlineSection, findings []models.Finding, reg *citationRegistry) (models.ReportSection, float64) {
	relevant := relevantFindings(section, findings)

	var factsText strings.Builder
	for _, f := range relevant {
		factsText.WriteString(fmt.Sprintf("- [%s] %s\n", f.SourceID, f.Claim))
	}

	system := "You write one section of a research report in clear markdown prose. Respond with JSON only."
	user := fmt.Sprintf(`Section: %q
Purpose: %s

Available findings (tagged with their source id):
%s

Write 2-4 paragraphs. Reference a finding's source by writing its bracketed
source id inline, e.g. [%s].

Return JSON: {"content": "...", "usedFindings": ["<source id>", ...]}`,
		section.Title, section.Purpose, factsText.String(), firstSourceIDOrPlaceholder(relevant))

	text, promptTok, compTok, err := llm.Generate(ctx, r.client, system, user)
	if err != nil {
		return models.ReportSection{Title: section.Title, Body: fmt.Sprintf("[section generation failed: %s]", section.Title)}, 0
	}
	cost := llm.CostOf(r.model, promptTok, compTok)

	raw, ok := llm.ExtractJSONObject(text)
	if !ok {
		return models.ReportSection{Title: section.Title, Body: fmt.Sprintf("[section generation failed: %s]", section.Title)}, cost
	}
	var parsed sectionJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil || parsed.Content == "" {
		return models.ReportSection{Title: section.Title, Body: fmt.Sprintf("[section generation failed: %s]", section.Title)}, cost
	}

	body := parsed.Content
	var refs []int
	for _, sourceID := range parsed.UsedFindings {
		n, ok := reg.numberFor(sourceID)
		if !ok {
			continue
		}
		refs = append(refs, n)
		body = strings.ReplaceAll(body, "["+sourceID+"]", r.renderCitationToken(n, reg.docByID[sourceID]))
	}

	return models.ReportSection{Title: section.Title, Body: body, CitationRefs: refs}, cost
}

func firstSourceIDOrPlaceholder(findings []models.Finding) string {
	if len(findings) == 0 {
		return "source-id"
	}
	return findings[0].SourceID
}

func (r *Report) renderCitationToken(n int, doc models.SourceDocument) string {
	switch r.style {
	case models.CitationAuthorYear:
		author := doc.Content.Author
		if author == "" {
			author = "Unknown"
		}
		year := time.Now().Format("2006")
		if !doc.Content.PublishedAt.IsZero() {
			year = doc.Content.PublishedAt.Format("2006")
		}
		return fmt.Sprintf("(%s, %s)", author, year)
	case models.CitationInlineURL:
		title := doc.Content.Title
		if title == "" {
			title = doc.Source.URL
		}
		return fmt.Sprintf("([%s](%s))", title, doc.Source.URL)
	case models.CitationFootnote:
		return fmt.Sprintf("[^%d]", n)
	default:
		return fmt.Sprintf("[%d]", n)
	}
}

// Assemble generates every section in outline order, registers citations
// across all of them, and renders the final markdown body plus the
// cited/uncited source partition (SPEC_FULL.md §4.9 AssembleReport).
func (r *Report) Assemble(ctx context.Context, topic string, outline models.ReportOutline, findings []models.Finding, docs []models.SourceDocument) (models.Report, float64) {
	reg := newCitationRegistry(docs)

	var totalCost float64
	sections := make([]models.ReportSection, 0, len(outline.Sections))
	var body strings.Builder
	body.WriteString("# " + outline.Title + "\n\n")

	for _, os := range outline.Sections {
		sec, cost := r.GenerateSection(ctx, os, findings, reg)
		totalCost += cost
		sections = append(sections, sec)
		body.WriteString("## " + sec.Title + "\n\n" + sec.Body + "\n\n")
	}

	cited := reg.citations()
	citedIDs := make(map[string]struct{}, len(cited))
	for _, c := range cited {
		citedIDs[c.Source.ID] = struct{}{}
	}
	var uncited []models.SourceDocument
	for _, d := range docs {
		if _, ok := citedIDs[d.ID]; !ok {
			uncited = append(uncited, d)
		}
	}

	return models.Report{
		Title:          outline.Title,
		Outline:        outline,
		Sections:       sections,
		CitedSources:   cited,
		UncitedSources: uncited,
		Rendered:       body.String(),
	}, totalCost
}
