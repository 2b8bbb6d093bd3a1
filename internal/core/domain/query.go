package domain

import (
	"fmt"
	"strings"
	"time"
)

// SearchMode selects which retrieval paths a query runs. The closed set
// of values makes mode dispatch exhaustiveness-checkable, unlike raw
// string comparison.
type SearchMode string

const (
	ModeSemantic SearchMode = "semantic"
	ModeLexical  SearchMode = "lexical"
	ModeHybrid   SearchMode = "hybrid"
)

// ParseSearchMode maps a wire string to a SearchMode. Empty input
// defaults to hybrid.
func ParseSearchMode(s string) (SearchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", string(ModeHybrid):
		return ModeHybrid, nil
	case string(ModeSemantic):
		return ModeSemantic, nil
	case string(ModeLexical), "keyword":
		return ModeLexical, nil
	default:
		return "", WrapError(ErrInvalidQuery, "parse search mode", fmt.Errorf("unknown mode %q", s))
	}
}

// SearchQuery is one search invocation. StartDate/EndDate are inclusive
// calendar bounds; a zero time means unbounded on that side.
type SearchQuery struct {
	QueryText      string     `json:"query_text"`
	StartDate      time.Time  `json:"start_date,omitempty"`
	EndDate        time.Time  `json:"end_date,omitempty"`
	NewspaperNames []string   `json:"newspaper_names,omitempty"`
	MaxResults     int        `json:"max_results"`
	Threshold      float64    `json:"relevance_threshold"`
	Mode           SearchMode `json:"search_mode"`
}

// Validate rejects malformed queries before any index is touched. Each
// failure names the offending field.
func (q SearchQuery) Validate() error {
	if len(Tokenize(q.QueryText)) == 0 {
		return WrapError(ErrInvalidQuery, "validate query", fmt.Errorf("query_text is empty after tokenization"))
	}
	if q.MaxResults <= 0 {
		return WrapError(ErrInvalidQuery, "validate query", fmt.Errorf("max_results must be positive, got %d", q.MaxResults))
	}
	if q.Threshold < 0 || q.Threshold > 1 {
		return WrapError(ErrInvalidQuery, "validate query", fmt.Errorf("relevance_threshold must be in [0,1], got %g", q.Threshold))
	}
	if !q.StartDate.IsZero() && !q.EndDate.IsZero() && q.EndDate.Before(q.StartDate) {
		return WrapError(ErrInvalidQuery, "validate query", fmt.Errorf("end_date %s precedes start_date %s",
			q.EndDate.Format("2006-01-02"), q.StartDate.Format("2006-01-02")))
	}
	switch q.Mode {
	case ModeSemantic, ModeLexical, ModeHybrid:
		return nil
	default:
		return WrapError(ErrInvalidQuery, "validate query", fmt.Errorf("unknown search_mode %q", q.Mode))
	}
}

// MatchesFilters reports whether a chunk passes the query's date range
// and newspaper allow-list.
func (q SearchQuery) MatchesFilters(c Chunk) bool {
	date := c.Metadata.PublicationDate
	if !q.StartDate.IsZero() && date.Before(q.StartDate) {
		return false
	}
	if !q.EndDate.IsZero() && date.After(q.EndDate) {
		return false
	}
	if len(q.NewspaperNames) > 0 {
		found := false
		for _, name := range q.NewspaperNames {
			if name == c.Metadata.NewspaperName {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Tokenize lower-cases and whitespace-splits text, the corpus-wide
// tokenization rule shared by the lexical index and query parsing. No
// stemming, no stopword removal.
func Tokenize(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// SearchResponse is the fusion engine's output: the ranked result list
// plus the degradation state of the search that produced it.
type SearchResponse struct {
	Results []SearchResult `json:"results"`
	// Mode is the mode that actually executed, which may be narrower
	// than the requested one after a sub-search failure.
	Mode           SearchMode `json:"mode"`
	Degraded       bool       `json:"degraded,omitempty"`
	DegradedReason string     `json:"degraded_reason,omitempty"`
}
