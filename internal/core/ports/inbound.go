package ports

import (
	"context"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

// ArchiveSearcher is the inbound contract for running one search:
// validation, sub-search dispatch, fusion, session diversification.
type ArchiveSearcher interface {
	Search(ctx context.Context, query domain.SearchQuery, sessionID string) (*domain.SearchResponse, error)
}

// AnswerService synthesizes an AI answer over a retrieved result set.
type AnswerService interface {
	Answer(ctx context.Context, question string, results []domain.SearchResult) (*domain.Answer, error)
}

// SourceAnalyzer runs the bounded per-result analysis fan-out.
type SourceAnalyzer interface {
	AnalyzeSources(ctx context.Context, question string, results []domain.SearchResult) ([]domain.SourceAnalysis, error)
}

// SessionManager owns conversational session state. RecordExchange
// appends a turn and grows the accumulated surfaced-set; Reset clears
// both with no partial-reset option.
type SessionManager interface {
	Create(ctx context.Context) (domain.SessionSnapshot, error)
	Get(ctx context.Context, sessionID string) (domain.SessionSnapshot, error)
	RecordExchange(ctx context.Context, sessionID string, exchange domain.Exchange) error
	Reset(ctx context.Context, sessionID string) error
}

// UsageMonitor gates and records billable operations.
type UsageMonitor interface {
	CheckSearchAllowed(ctx context.Context) error
	RecordSearch(ctx context.Context, usedAI bool)
	CheckExportAllowed(ctx context.Context) error
	RecordExport(ctx context.Context)
	Summary(ctx context.Context) domain.UsageSummary
}

// IssueIndexer is the inbound contract for the background indexer: load
// one issue's OCR text, chunk, embed, and index it. Returns the number
// of chunks produced.
type IssueIndexer interface {
	IndexIssue(ctx context.Context, issueKey string) (int, error)
}
