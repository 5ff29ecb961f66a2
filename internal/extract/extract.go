// Package extract implements the ContentExtractor collaborators SPEC_FULL.md
// §4.5 dispatches over: HTTP pages through the Content Processor, and local
// PDF/DOCX/XLSX documents for offline sources, generalizing the prior
// internal/tools read_pdf/read_docx/read_xlsx tools from string-formatting
// Tools into typed ContentExtractors feeding the same models.ExtractedContent
// shape the HTTP path produces.
package extract

import (
	"context"
	"fmt"

	"deepresearch/internal/content"
	"deepresearch/internal/models"
)

// sharedChunker is the Content Chunker every local-document extractor
// (PDF/DOCX/XLSX) runs its extracted text through, same as the HTTP path.
var sharedChunker = content.NewChunker()

// ContentExtractor fetches and normalizes one source's content, given its
// URL or local path.
type ContentExtractor interface {
	// CanHandle reports whether this extractor is appropriate for ref
	// (scheme or file extension sniffing).
	CanHandle(ref string) bool
	Extract(ctx context.Context, ref string) (models.ExtractedContent, error)
}

// Registry dispatches a source reference to the first registered
// ContentExtractor willing to handle it (adapted from the earlier
// internal/tools.Registry Tool dispatch, narrowed to this one concern).
type Registry struct {
	extractors []ContentExtractor
}

// NewRegistry returns an empty extractor registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends e to the dispatch list; earlier registrations win ties.
func (r *Registry) Register(e ContentExtractor) {
	r.extractors = append(r.extractors, e)
}

// For returns the first extractor willing to handle ref.
func (r *Registry) For(ref string) (ContentExtractor, bool) {
	for _, e := range r.extractors {
		if e.CanHandle(ref) {
			return e, true
		}
	}
	return nil, false
}

// Extract dispatches ref to the matching extractor's Extract.
func (r *Registry) Extract(ctx context.Context, ref string) (models.ExtractedContent, error) {
	e, ok := r.For(ref)
	if !ok {
		return models.ExtractedContent{}, models.NewDomainError(models.KindContentExtraction, "extract.Registry", fmt.Errorf("no extractor registered for %q", ref))
	}
	return e.Extract(ctx, ref)
}
