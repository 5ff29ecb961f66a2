package models

import "time"

// GapPriority ranks an InformationGap's urgency for follow-up research
// (SPEC_FULL.md §3, §4.2, §4.8 step 4).
type GapPriority string

const (
	GapPriorityHigh   GapPriority = "high"
	GapPriorityMedium GapPriority = "medium"
	GapPriorityLow    GapPriority = "low"
)

// Finding is one atomic piece of extracted knowledge, traceable back to the
// SourceDocument it was read from (SPEC_FULL.md §3, §4.8).
type Finding struct {
	ID                  string
	Claim               string
	SourceID            string
	Evidence            string
	VerificationScore   float64 // [0,1]
	IterationDiscovered int
	DiscoveredAt        time.Time
}

// Verified reports whether the finding clears the verification threshold
// (SPEC_FULL.md §3: "verified boolean (= score >= 0.7)").
func (f Finding) Verified() bool {
	return f.VerificationScore >= 0.7
}

// InformationGap is a topic the Analysis Agent judged under-covered by the
// current findings, feeding the next iteration's follow-up queries
// (SPEC_FULL.md §3, §4.8 step 4, §4.2).
type InformationGap struct {
	Description    string
	SuggestedQuery string
	Priority       GapPriority
	Reason         string
	IdentifiedAt   time.Time
}

// SufficiencyScore is the Analysis Agent's per-iteration verdict on whether
// research can stop (SPEC_FULL.md §3, §4.8 step 5 / §8 invariant 6).
type SufficiencyScore struct {
	Score       float64 // overall, [0,1]
	Coverage    float64 // [0,1]
	Quality     float64 // [0,1]
	Diversity   float64 // [0,1], source_diversity
	Freshness   float64 // [0,1]
	NewFindings int
	EvaluatedAt time.Time
	Sufficient  bool
	Gaps        []InformationGap
}

// IsSufficientAt reports whether overall clears threshold
// (SPEC_FULL.md §3: `is_sufficient ≡ overall ≥ threshold`).
func (s SufficiencyScore) IsSufficientAt(threshold float64) bool {
	return s.Score >= threshold
}

// NeedsMoreResearch implements the §4.8/§4.10 contract
// `needs_more_research ≡ !is_sufficient ∧ |gaps| > 0`: an insufficient
// score with no actionable gap is not grounds to keep iterating.
func (s SufficiencyScore) NeedsMoreResearch(threshold float64) bool {
	return !s.IsSufficientAt(threshold) && len(s.Gaps) > 0
}
