package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration
type Config struct {
	// API Keys
	OpenRouterAPIKey string
	BraveAPIKey      string

	// Paths
	HistoryFile string
	StateDir    string // checkpoint directory for internal/session.Store

	// Timeouts
	RequestTimeout time.Duration

	// Agent settings
	MaxIterations         int
	MaxTokens             int
	MaxConcurrentSearches int // Search Coordinator fan-out width, SPEC_FULL.md §5

	MaxSearchRetriesPerIteration int
	RetryDelayOnNoResults        time.Duration
	SufficiencyThreshold         float64
	MaxSourcesToAnalyze          int
	MaxFindingsPerSource         int // SPEC_FULL.md §4.8 step 2
	MaxGaps                      int // SPEC_FULL.md §4.8 step 4

	// Model
	Model string

	// Verbose mode
	Verbose bool
}

// Load reads configuration from environment and defaults
func Load() *Config {
	// Load .env file if present (silently ignore if not found)
	_ = godotenv.Load()

	home, _ := os.UserHomeDir()

	return &Config{
		OpenRouterAPIKey: os.Getenv("OPENROUTER_API_KEY"),
		BraveAPIKey:      os.Getenv("BRAVE_API_KEY"),

		HistoryFile: filepath.Join(home, ".research_history"),
		StateDir:    getEnvOrDefault("RESEARCH_STATE_DIR", filepath.Join(home, ".research_state")),

		RequestTimeout: 5 * time.Minute,

		MaxIterations:         20,
		MaxTokens:             50000,
		MaxConcurrentSearches: 5,

		MaxSearchRetriesPerIteration: 2,
		RetryDelayOnNoResults:        2 * time.Second,
		SufficiencyThreshold:         0.7,
		MaxSourcesToAnalyze:          20,
		MaxFindingsPerSource:         5,
		MaxGaps:                      8,

		Model: "alibaba/tongyi-deepresearch-30b-a3b",

		Verbose: os.Getenv("RESEARCH_VERBOSE") == "true",
	}
}

func getEnvOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
