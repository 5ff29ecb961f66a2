// Package providers implements the Search Provider Factory (SPEC_FULL.md
// §4.3): a capability-bitset registry over pluggable web search backends,
// generalized from the earlier internal/tools.SearchTool/Registry.
package providers

import (
	"context"

	"deepresearch/internal/models"
)

// Capability is a bitflag describing what a SearchProvider supports, so the
// Query Planner can pick a provider per SearchType without a type switch.
type Capability uint8

const (
	CapWeb Capability = 1 << iota
	CapNews
	CapAcademic
)

// Has reports whether other is set in c.
func (c Capability) Has(other Capability) bool {
	return c&other != 0
}

// SearchProvider is the collaborator interface every search backend
// implements (adapted from tools.Tool, narrowed to the search concern).
type SearchProvider interface {
	ID() string
	Capabilities() Capability
	// EffectiveParallelism bounds how many concurrent calls the Search
	// Coordinator may issue to this provider; providers with no official
	// API (e.g. DuckDuckGo scraping) report 1 to stay polite.
	EffectiveParallelism() int
	Search(ctx context.Context, q models.SearchQuery) (models.SearchResult, error)
}

// Registry is the Search Provider Factory: providers register under an ID
// and the orchestrator asks for one "default" or one matching a capability.
type Registry struct {
	providers map[string]SearchProvider
	order     []string
	defaultID string
}

// NewRegistry returns an empty registry; register providers with Register.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]SearchProvider)}
}

// Register adds a provider. The first one registered becomes the default.
func (r *Registry) Register(p SearchProvider) {
	if _, exists := r.providers[p.ID()]; !exists {
		r.order = append(r.order, p.ID())
	}
	r.providers[p.ID()] = p
	if r.defaultID == "" {
		r.defaultID = p.ID()
	}
}

// Get returns a provider by ID.
func (r *Registry) Get(id string) (SearchProvider, bool) {
	p, ok := r.providers[id]
	return p, ok
}

// Default returns the registry's default provider, or false if none
// registered.
func (r *Registry) Default() (SearchProvider, bool) {
	return r.Get(r.defaultID)
}

// SelectFor returns the first registered provider whose capabilities
// include typ's requirement, falling back to the default.
func (r *Registry) SelectFor(typ models.SearchType) (SearchProvider, bool) {
	want := CapWeb
	switch typ {
	case models.SearchNews:
		want = CapNews
	case models.SearchAcademic:
		want = CapAcademic
	}
	for _, id := range r.order {
		if p := r.providers[id]; p.Capabilities().Has(want) {
			return p, true
		}
	}
	return r.Default()
}
