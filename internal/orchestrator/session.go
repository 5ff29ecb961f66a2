package orchestrator

import (
	"context"
	"errors"
	"sync"

	"deepresearch/internal/events"
	"deepresearch/internal/models"
	"deepresearch/internal/session"
)

// errSessionClosed builds the domain error every mutating Session method
// returns once the session is finalized or disposed (SPEC_FULL.md §6/§8:
// "once finalized, all further mutating operations fail with a domain
// error").
func errSessionClosed(stage string) error {
	return models.NewDomainError(models.KindSessionFinalized, stage, errors.New("session is finalized or disposed"))
}

// Session is the interactive handle SPEC_FULL.md §6's
// `start_interactive(request) → Session` returns: one research session the
// caller advances a single iteration at a time, optionally injecting extra
// queries between iterations, until it calls Finalize.
type Session struct {
	mu        sync.Mutex
	o         *Orchestrator
	store     *session.Store
	state     *session.ResearchState
	disposed  bool
	finalized bool
}

// StartInteractive begins a new interactive session for req.
func (o *Orchestrator) StartInteractive(req models.Request, store *session.Store) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	s := session.New(req)
	o.publish(events.EventStarted, events.StartedData{SessionID: s.ID, Query: req.Query})
	return &Session{o: o, store: store, state: s}, nil
}

// AddQuery appends a user-supplied query to the session's executed queries
// before the next Continue(); the next Planning phase then drops any
// generated query with the same normalized text. The added query itself is
// not sent to a search provider.
func (s *Session) AddQuery(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.finalized {
		return errSessionClosed("orchestrator.Session.AddQuery")
	}
	s.state.AppendExpandedQueries([]models.ExpandedQuery{{Query: text, Type: models.SearchWeb, Priority: 0}})
	return nil
}

// Continue runs one more Planning→Searching→ContentExtraction→Analysis→
// SufficiencyEvaluation pass and reports whether the session judged itself
// sufficient (or hit its iteration ceiling) afterward.
func (s *Session) Continue(ctx context.Context) (sufficient bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.finalized {
		return false, errSessionClosed("orchestrator.Session.Continue")
	}
	if s.state.AtIterationCeiling() {
		return true, nil
	}

	iteration := s.state.NextIteration()
	if perr := s.o.runPlanning(ctx, s.state, iteration); perr != nil {
		s.state.RecordError(models.NewDomainError(models.KindLLMError, "orchestrator.Session.Continue", perr))
	}
	s.o.runSearching(ctx, s.state, iteration)
	s.o.runExtraction(ctx, s.state, iteration)
	sufficiency := s.o.runAnalysis(ctx, s.state, iteration)

	stop := !sufficiency.NeedsMoreResearch(s.o.cfg.SufficiencyThreshold) || s.state.AtIterationCeiling()
	return stop, ctx.Err()
}

// Finalize forces report generation and ends the session; any further
// mutating call fails with a domain error.
func (s *Session) Finalize(ctx context.Context) (models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed || s.finalized {
		return models.Result{}, errSessionClosed("orchestrator.Session.Finalize")
	}
	s.finalized = true

	s.o.runReportGeneration(ctx, s.state)
	return s.o.buildResult(s.state), nil
}

// Checkpoint snapshots the session's current state to the configured
// Store, returning the session ID it was saved under.
func (s *Session) Checkpoint() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return "", errSessionClosed("orchestrator.Session.Checkpoint")
	}
	if s.store == nil {
		return "", errors.New("orchestrator: session has no store configured")
	}
	if err := s.store.Save(s.state); err != nil {
		return "", err
	}
	return s.state.ID, nil
}

// Dispose releases the session. Idempotent: calling it twice is a no-op.
func (s *Session) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disposed = true
}
