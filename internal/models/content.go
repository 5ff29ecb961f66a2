package models

import "time"

// ContentChunk is one token-bounded slice of an ExtractedContent's body,
// produced by the Content Chunker (SPEC_FULL.md §4.6).
type ContentChunk struct {
	Index      int
	Text       string
	TokenCount int
	Overlap    bool
}

// ExtractedContent is the normalized result of running a ContentExtractor
// against a SearchSource's URL (SPEC_FULL.md §4.5).
type ExtractedContent struct {
	SourceURL   string
	Title       string
	Author      string
	PublishedAt time.Time
	Body        string
	Links       []string
	Images      []string
	Chunks      []ContentChunk
	Truncated   bool
	Err         error
}

// TrustLevel buckets the Content Enrichment Agent's trust score into the
// three bands used for reporting (SPEC_FULL.md §4.7).
type TrustLevel string

const (
	TrustHigh   TrustLevel = "high"
	TrustMedium TrustLevel = "medium"
	TrustLow    TrustLevel = "low"
)

// TrustLevelFor maps a [0,1] trust score to its band. Boundaries are
// inclusive on the lower bound (>= 0.7 high, >= 0.4 medium, else low).
func TrustLevelFor(score float64) TrustLevel {
	switch {
	case score >= 0.7:
		return TrustHigh
	case score >= 0.4:
		return TrustMedium
	default:
		return TrustLow
	}
}

// SourceDocument is an ExtractedContent plus the scoring the Enrichment
// Agent attached to it; this is the unit Analysis consumes.
type SourceDocument struct {
	ID          string
	Source      SearchSource
	Content     ExtractedContent
	TrustScore  float64
	Trust       TrustLevel
	FailureKind ErrorKind
}
