package models

// CitationStyle selects how the Report Generator renders inline citation
// tokens (SPEC_FULL.md §4.9).
type CitationStyle string

const (
	CitationNumbered   CitationStyle = "numbered"   // [1]
	CitationAuthorYear CitationStyle = "authoryear" // (Author, Year)
	CitationInlineURL  CitationStyle = "inlineurl"  // ([title](url))
	CitationFootnote   CitationStyle = "footnote"   // [^1]
)

// OutlineSection is one planned section of the report, before any prose has
// been written for it.
type OutlineSection struct {
	Title        string
	Purpose      string
	SubQuestions []string
	Children     []OutlineSection
}

// ReportOutline is the Report Generator's plan, built before section text is
// generated (STORM-style two-phase generation, SPEC_FULL.md §2.2/§4.9).
type ReportOutline struct {
	Title    string
	Sections []OutlineSection
}

// Citation is one numbered reference into the cited sources list.
type Citation struct {
	Number   int
	Source   SourceDocument
	Findings []Finding
}

// ReportSection is a generated section of prose plus the citation numbers it
// references, so inline tokens can be replaced per CitationStyle.
type ReportSection struct {
	Title        string
	Body         string
	CitationRefs []int
}

// Report is the final synthesized output of a research session
// (SPEC_FULL.md §3, §4.9).
type Report struct {
	Title           string
	Outline         ReportOutline
	Sections        []ReportSection
	CitedSources    []Citation
	UncitedSources  []SourceDocument
	ThinkingProcess []ThinkingStep
	Format          OutputFormat
	Rendered        string
}

// Sources returns the legacy flat view over CitedSources and
// UncitedSources, for callers that don't care about citation status
// (resolved Open Question: ResearchResult keeps the richer shape and derives
// this view rather than replacing it).
func (r Report) Sources() []SourceDocument {
	out := make([]SourceDocument, 0, len(r.CitedSources)+len(r.UncitedSources))
	for _, c := range r.CitedSources {
		out = append(out, c.Source)
	}
	out = append(out, r.UncitedSources...)
	return out
}
