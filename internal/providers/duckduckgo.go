package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"deepresearch/internal/models"
)

// DuckDuckGo implements SearchProvider against DuckDuckGo's HTML/JSON
// endpoints. It has no official API key, so it is grounded on the clglavan
// example's SearXNGClient: a plain scraping client that needs bot-detection
// header spoofing (User-Agent, X-Real-IP, X-Forwarded-For) to avoid 403s.
// Because it is unofficial, it reports EffectiveParallelism of 1 so the
// Search Coordinator serializes calls to it rather than hammering it.
type DuckDuckGo struct {
	baseURL    string
	httpClient *http.Client
}

// NewDuckDuckGo returns a DuckDuckGo-backed SearchProvider. baseURL lets
// tests point at a local stub server.
func NewDuckDuckGo(baseURL string) *DuckDuckGo {
	if baseURL == "" {
		baseURL = "https://html.duckduckgo.com"
	}
	return &DuckDuckGo{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DuckDuckGo) ID() string                { return "duckduckgo" }
func (d *DuckDuckGo) Capabilities() Capability  { return CapWeb }
func (d *DuckDuckGo) EffectiveParallelism() int { return 1 }

type duckDuckGoResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search performs a single-page lookup against the JSON results endpoint.
func (d *DuckDuckGo) Search(ctx context.Context, q models.SearchQuery) (models.SearchResult, error) {
	params := url.Values{}
	params.Set("q", q.Query)
	params.Set("format", "json")

	u := fmt.Sprintf("%s/search.json?%s", d.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("X-Real-IP", "127.0.0.1")
	req.Header.Set("X-Forwarded-For", "127.0.0.1")

	start := time.Now()
	resp, err := d.httpClient.Do(req)
	if err != nil {
		return models.SearchResult{}, fmt.Errorf("duckduckgo search request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return models.SearchResult{}, httpStatusError(resp.StatusCode, "")
	}

	var parsed duckDuckGoResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return models.SearchResult{}, fmt.Errorf("decode duckduckgo response: %w", err)
	}

	sources := make([]models.SearchSource, 0, len(parsed.Results))
	for i, r := range parsed.Results {
		sources = append(sources, models.SearchSource{
			URL:      r.URL,
			Title:    r.Title,
			Snippet:  r.Content,
			Provider: d.ID(),
			Rank:     i + 1,
		})
	}

	return models.SearchResult{
		Query:    q,
		Provider: d.ID(),
		Sources:  sources,
		Duration: time.Since(start),
	}, nil
}
