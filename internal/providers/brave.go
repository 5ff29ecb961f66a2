package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"deepresearch/internal/models"
)

const braveSearchURL = "https://api.search.brave.com/res/v1/web/search"

// Brave implements SearchProvider against the Brave Search API (adapted
// from the earlier internal/tools.SearchTool, generalized from a
// string-formatting Tool into a typed SearchProvider).
type Brave struct {
	apiKey     string
	httpClient *http.Client
}

// NewBrave returns a Brave-backed SearchProvider.
func NewBrave(apiKey string) *Brave {
	return &Brave{apiKey: apiKey, httpClient: &http.Client{Timeout: 30 * time.Second}}
}

func (b *Brave) ID() string                { return "brave" }
func (b *Brave) Capabilities() Capability  { return CapWeb | CapNews }
func (b *Brave) EffectiveParallelism() int { return 5 }

type braveSearchResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search issues one query against Brave and maps results into
// models.SearchSource, ranked by response order.
func (b *Brave) Search(ctx context.Context, q models.SearchQuery) (models.SearchResult, error) {
	params := url.Values{}
	params.Set("q", q.Query)
	count := q.MaxResults
	if count <= 0 {
		count = 10
	}
	params.Set("count", fmt.Sprintf("%d", count))

	req, err := http.NewRequestWithContext(ctx, "GET", braveSearchURL+"?"+params.Encode(), nil)
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	start := time.Now()
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("brave search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return models.SearchResult{}, httpStatusError(resp.StatusCode, string(body))
	}

	var parsed braveSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return models.SearchResult{}, fmt.Errorf("decode brave response: %w", err)
	}

	sources := make([]models.SearchSource, 0, len(parsed.Web.Results))
	for i, r := range parsed.Web.Results {
		sources = append(sources, models.SearchSource{
			URL:      r.URL,
			Title:    r.Title,
			Snippet:  r.Description,
			Provider: b.ID(),
			Rank:     i + 1,
		})
	}

	return models.SearchResult{
		Query:    q,
		Provider: b.ID(),
		Sources:  sources,
		Duration: time.Since(start),
	}, nil
}
