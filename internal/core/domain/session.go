package domain

import "time"

// Exchange is one completed question/answer turn in a session.
// SourceIDs is the diversification record; Results carries the full
// surfaced result list for transcript display and report export.
type Exchange struct {
	Query     string         `json:"query"`
	Answer    string         `json:"answer,omitempty"`
	SourceIDs []string       `json:"source_ids"`
	Results   []SearchResult `json:"results,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// SessionSnapshot is a read-only copy of a session's state, safe to hand
// to presentation and export code.
type SessionSnapshot struct {
	SessionID   string     `json:"session_id"`
	Exchanges   []Exchange `json:"exchanges"`
	UsedSources []string   `json:"used_sources"`
	CreatedAt   time.Time  `json:"created_at"`
}

// SourceAnalysis is one per-result AI note produced by the bounded
// analysis fan-out. Err is set when that result's call failed; the
// surrounding result set is still returned whole.
type SourceAnalysis struct {
	ChunkID  string `json:"chunk_id"`
	Citation string `json:"citation"`
	Analysis string `json:"analysis,omitempty"`
	Err      string `json:"error,omitempty"`
}

// Answer is a synthesized response citing the passages it was built from.
type Answer struct {
	Text    string         `json:"text"`
	Sources []SearchResult `json:"sources"`
}

// UsageSummary reports the quota state exposed to callers.
type UsageSummary struct {
	SearchesToday          int     `json:"searches_today"`
	SearchesRemainingToday int     `json:"searches_remaining_today"`
	SearchesRemainingHour  int     `json:"searches_remaining_hour"`
	ExportsToday           int     `json:"exports_today"`
	ExportsRemaining       int     `json:"exports_remaining"`
	AISummariesToday       int     `json:"ai_summaries_today"`
	EstimatedCostToday     float64 `json:"estimated_cost_today"`
}

// UsageSnapshot is the persisted form of one day's counters.
type UsageSnapshot struct {
	Day           time.Time `json:"day"`
	Searches      int       `json:"searches"`
	Exports       int       `json:"exports"`
	AISummaries   int       `json:"ai_summaries"`
	EstimatedCost float64   `json:"estimated_cost"`
}
