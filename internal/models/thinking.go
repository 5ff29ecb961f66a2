package models

import "time"

// ThinkingStepType tags a ThinkingStep with the orchestrator phase that
// produced it, mirroring ResearchProgress event kinds (SPEC_FULL.md §4.10).
type ThinkingStepType string

const (
	StepPlanning   ThinkingStepType = "planning"
	StepSearching  ThinkingStepType = "searching"
	StepExtracting ThinkingStepType = "extracting"
	StepAnalyzing  ThinkingStepType = "analyzing"
	StepDeciding   ThinkingStepType = "deciding"
)

// ThinkingStep is one entry in the transparency trail surfaced alongside
// the final report (SPEC_FULL.md §3: ThinkingProcess).
type ThinkingStep struct {
	Iteration int
	Type      ThinkingStepType
	Summary   string
	At        time.Time
}
