package models

// SubQuestion is one decomposed piece of the original research query.
type SubQuestion struct {
	ID       string
	Question string
	Purpose  string
	Priority int
}

// Perspective is a distinct expert viewpoint used to diversify research
// (SPEC_FULL.md §4.1, grounded on STORM-style perspective discovery).
type Perspective struct {
	ID          string
	Name        string
	Description string
	KeyTopics   []string
}

// SearchType classifies what kind of search an ExpandedQuery/SearchQuery is.
type SearchType string

const (
	SearchWeb      SearchType = "web"
	SearchNews     SearchType = "news"
	SearchAcademic SearchType = "academic"
)

// ExpandedQuery is a concrete query derived from a sub-question/perspective
// cross-product.
type ExpandedQuery struct {
	Query            string
	Intent           string
	Priority         int
	Type             SearchType
	SourcePerspective string
	SourceSubQuestion string
}

// SearchDepth controls how thorough a single provider search should be.
type SearchDepth string

const (
	SearchDepthBasic SearchDepth = "basic"
	SearchDepthDeep  SearchDepth = "deep"
)

// SearchQuery is the provider-facing form of an ExpandedQuery.
type SearchQuery struct {
	Query          string
	Type           SearchType
	Depth          SearchDepth
	MaxResults     int
	IncludeContent bool
}

// ToSearchQuery converts an ExpandedQuery into a SearchQuery per SPEC_FULL.md
// §4.4 step 1: priority <= 1 maps to SearchDepthDeep, else Basic.
func ToSearchQuery(q ExpandedQuery) SearchQuery {
	depth := SearchDepthBasic
	if q.Priority <= 1 {
		depth = SearchDepthDeep
	}
	return SearchQuery{
		Query:          q.Query,
		Type:           q.Type,
		Depth:          depth,
		MaxResults:     10,
		IncludeContent: true,
	}
}
