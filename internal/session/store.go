package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"deepresearch/internal/models"
)

// checkpoint is the on-disk, YAML-serializable snapshot of a ResearchState.
// ResearchState itself is not marshaled directly because its mutex and
// internal sourcesByURL index must not round-trip (adapted from the
// earlier internal/session/store.go, minus the Obsidian VaultWriter path
// dropped per SPEC_FULL.md's "no long-term cross-session memory" non-goal —
// this is a same-run interactive checkpoint, not a vault).
type checkpoint struct {
	ID              string                     `yaml:"id"`
	Request         models.Request             `yaml:"request"`
	Status          Status                     `yaml:"status"`
	Iteration       int                        `yaml:"iteration"`
	CreatedAt       time.Time                  `yaml:"created_at"`
	UpdatedAt       time.Time                  `yaml:"updated_at"`
	SubQuestions    []models.SubQuestion       `yaml:"sub_questions"`
	Perspectives    []models.Perspective       `yaml:"perspectives"`
	ExpandedQueries []models.ExpandedQuery     `yaml:"expanded_queries"`
	Sources         []models.SourceDocument    `yaml:"sources"`
	Findings        []models.Finding           `yaml:"findings"`
	Gaps            []models.InformationGap    `yaml:"gaps"`
	Sufficiency     models.SufficiencyScore    `yaml:"sufficiency"`
	Thinking        []models.ThinkingStep      `yaml:"thinking"`
	TotalCost       float64                    `yaml:"total_cost"`
}

func toCheckpoint(s *ResearchState) checkpoint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return checkpoint{
		ID:              s.ID,
		Request:         s.Request,
		Status:          s.Status,
		Iteration:       s.Iteration,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
		SubQuestions:    s.SubQuestions,
		Perspectives:    s.Perspectives,
		ExpandedQueries: s.ExpandedQueries,
		Sources:         s.Sources,
		Findings:        s.Findings,
		Gaps:            s.Gaps,
		Sufficiency:     s.Sufficiency,
		Thinking:        s.Thinking,
		TotalCost:       s.Cost.Total(),
	}
}

func fromCheckpoint(c checkpoint) *ResearchState {
	s := &ResearchState{
		ID:              c.ID,
		Request:         c.Request,
		Status:          c.Status,
		Iteration:       c.Iteration,
		CreatedAt:       c.CreatedAt,
		UpdatedAt:       c.UpdatedAt,
		SubQuestions:    c.SubQuestions,
		Perspectives:    c.Perspectives,
		ExpandedQueries: c.ExpandedQueries,
		Sources:         c.Sources,
		Findings:        c.Findings,
		Gaps:            c.Gaps,
		Sufficiency:     c.Sufficiency,
		Thinking:        c.Thinking,
		sourcesByURL:    make(map[string]*models.SourceDocument),
		Cost:            NewCostBreakdown(),
	}
	s.Cost.TotalCost = c.TotalCost
	for i := range s.Sources {
		s.sourcesByURL[strings.ToLower(s.Sources[i].Source.URL)] = &s.Sources[i]
	}
	return s
}

// Store persists ResearchState checkpoints to a state directory, one YAML
// file per session ID, so an interactive Session (SPEC_FULL.md §6) can be
// disposed and later resumed by ID.
type Store struct {
	stateDir string
}

// NewStore creates the state directory if needed and returns a Store
// rooted there.
func NewStore(stateDir string) (*Store, error) {
	if err := os.MkdirAll(stateDir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &Store{stateDir: stateDir}, nil
}

// Save writes a checkpoint of state to disk and records it as the last
// session touched.
func (s *Store) Save(state *ResearchState) error {
	data, err := yaml.Marshal(toCheckpoint(state))
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	path := filepath.Join(s.stateDir, state.ID+".yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}

	lastFile := filepath.Join(s.stateDir, ".last")
	_ = os.WriteFile(lastFile, []byte(state.ID), 0o644)

	return nil
}

// Load restores a ResearchState by session ID.
func (s *Store) Load(id string) (*ResearchState, error) {
	path := filepath.Join(s.stateDir, id+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read checkpoint: %w", err)
	}

	var c checkpoint
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("unmarshal checkpoint: %w", err)
	}

	return fromCheckpoint(c), nil
}

// LoadLast returns the most recently saved session, or nil if none exists.
func (s *Store) LoadLast() (*ResearchState, error) {
	lastFile := filepath.Join(s.stateDir, ".last")
	data, err := os.ReadFile(lastFile)
	if err != nil {
		return nil, nil
	}
	return s.Load(strings.TrimSpace(string(data)))
}

// Summary is a lightweight listing entry for populating a picker; List
// builds each one by loading that session's full checkpoint.
type Summary struct {
	ID        string
	Query     string
	Status    Status
	CreatedAt time.Time
	Cost      float64
}

// List returns every saved session's summary, newest first.
func (s *Store) List() ([]Summary, error) {
	files, err := os.ReadDir(s.stateDir)
	if err != nil {
		return nil, fmt.Errorf("read state dir: %w", err)
	}

	var out []Summary
	for _, f := range files {
		if !strings.HasSuffix(f.Name(), ".yaml") {
			continue
		}
		id := strings.TrimSuffix(f.Name(), ".yaml")
		state, err := s.Load(id)
		if err != nil {
			continue
		}
		out = append(out, Summary{
			ID:        state.ID,
			Query:     state.Request.Query,
			Status:    state.Status,
			CreatedAt: state.CreatedAt,
			Cost:      state.Cost.Total(),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a saved checkpoint by ID.
func (s *Store) Delete(id string) error {
	path := filepath.Join(s.stateDir, id+".yaml")
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("delete checkpoint: %w", err)
	}
	return nil
}
