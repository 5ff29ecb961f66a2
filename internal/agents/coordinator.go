package agents

import (
	"context"
	"errors"
	"math"
	"strconv"
	"sync"
	"time"

	"deepresearch/internal/models"
	"deepresearch/internal/planning"
	"deepresearch/internal/providers"
)

// maxRetries bounds the Search Coordinator's retry/backoff loop per query
// (SPEC_FULL.md §4.4). Wait time follows the resolved Open Question 2:
// 5s * 2^attempt, attempt starting at 0.
const maxRetries = 3

// Coordinator implements the Search Coordinator Agent (SPEC_FULL.md §4.4):
// fanning ExpandedQueries out to search providers concurrently, bounded by
// a semaphore, retrying retryable failures with exponential backoff, and
// deduping results via models.DedupeSources. Grounded on
// orchestrator.DeepOrchestrator.executeDAG/executeTask's goroutine+
// WaitGroup fan-out over a planning.ResearchDAG's ready-task set, plus the
// clglavan example's parallelSearch.
type Coordinator struct {
	registry    *providers.Registry
	maxParallel int
	sleep       func(time.Duration)
}

// NewCoordinator returns a Search Coordinator bounded to maxParallel
// concurrent provider calls (SPEC_FULL.md §5 resource model).
func NewCoordinator(registry *providers.Registry, maxParallel int) *Coordinator {
	if maxParallel <= 0 {
		maxParallel = 5
	}
	return &Coordinator{registry: registry, maxParallel: maxParallel, sleep: time.Sleep}
}

// ExecuteSearches runs every query against its selected provider, with at
// most min(maxParallel, the lowest EffectiveParallelism among the selected
// providers) calls in flight, and returns deduped SearchSources plus the
// queries that exhausted retries.
func (c *Coordinator) ExecuteSearches(ctx context.Context, queries []models.ExpandedQuery) ([]models.SearchSource, []error) {
	dag := planning.NewDAG()
	root := dag.AddNode("root", planning.TaskAnalyze, "search fan-out root")
	for i, q := range queries {
		id := searchNodeID(i)
		dag.AddNode(id, planning.TaskSearch, q.Query)
		dag.AddDependency(id, root.ID)
	}
	dag.SetStatus(root.ID, planning.StatusComplete)

	parallel := c.maxParallel
	for _, q := range queries {
		if p, ok := c.registry.SelectFor(q.Type); ok {
			if n := p.EffectiveParallelism(); n > 0 && n < parallel {
				parallel = n
			}
		}
	}
	sem := make(chan struct{}, parallel)
	var wg sync.WaitGroup
	var mu sync.Mutex
	var sources []models.SearchSource
	var errs []error

	for i, q := range queries {
		wg.Add(1)
		sem <- struct{}{}
		go func(idx int, query models.ExpandedQuery) {
			defer wg.Done()
			defer func() { <-sem }()

			nodeID := searchNodeID(idx)
			dag.SetStatus(nodeID, planning.StatusRunning)

			result, err := c.executeSingleWithRetry(ctx, query)
			if err != nil {
				dag.SetError(nodeID, err)
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
				return
			}
			dag.SetStatus(nodeID, planning.StatusComplete)
			mu.Lock()
			sources = append(sources, result.Sources...)
			mu.Unlock()
		}(i, q)
	}
	wg.Wait()

	return models.DedupeSources(sources), errs
}

func searchNodeID(i int) string {
	return "search_" + strconv.Itoa(i)
}

// executeSingleWithRetry runs one query with the §4.4 retry taxonomy: 429
// and 5xx are retried with exponential backoff up to maxRetries, any other
// error (4xx, network) fails immediately.
func (c *Coordinator) executeSingleWithRetry(ctx context.Context, q models.ExpandedQuery) (models.SearchResult, error) {
	provider, ok := c.registry.SelectFor(q.Type)
	if !ok {
		return models.SearchResult{}, models.NewDomainError(models.KindSearchProviderError, "agents.Coordinator", errNoProvider)
	}

	searchQuery := models.ToSearchQuery(q)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		result, err := provider.Search(ctx, searchQuery)
		if err == nil {
			result.Attempts = attempt + 1
			return result, nil
		}
		lastErr = err

		var statusErr *providers.StatusError
		if !errors.As(err, &statusErr) || !statusErr.Retryable() {
			break
		}
		if attempt == maxRetries {
			break
		}

		wait := time.Duration(5*math.Pow(2, float64(attempt))) * time.Second
		select {
		case <-ctx.Done():
			return models.SearchResult{}, ctx.Err()
		default:
			c.sleep(wait)
		}
	}

	return models.SearchResult{}, models.NewDomainError(models.KindSearchProviderError, "agents.Coordinator", lastErr)
}

var errNoProvider = errors.New("no search provider registered")
