package ports

import (
	"context"
	"io"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

// DenseIndex is the external vector-store capability. Scores must be
// cosine-style, roughly bounded in [0,1]; a store with another scale
// breaks the hybrid weighting math and has to be reconciled at
// configuration time, not checked at runtime. The newspaper allow-list
// is pushed down as a metadata filter; date ranges are not (the store's
// range filtering on date strings is not trusted) and are applied by the
// fusion engine.
type DenseIndex interface {
	Query(ctx context.Context, vector []float32, topK int, newspaperNames []string) ([]domain.SearchResult, error)
	Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error
}

// LexicalSearcher scores the whole corpus by BM25 for a tokenized query.
// Scores returned here are already normalized into [0,1] by the index's
// ceiling rule. Ready reports whether an index is built/loaded; callers
// degrade to semantic-only when it is not.
type LexicalSearcher interface {
	Ready() bool
	Search(ctx context.Context, query domain.SearchQuery, limit int) ([]domain.SearchResult, error)
}

// LexicalIndexWriter is the build/persist side of the lexical index.
// Building is proportional to total corpus token count and happens once
// per corpus version, never per query.
type LexicalIndexWriter interface {
	Add(chunks []domain.Chunk)
	Build() error
	Save(path string) error
	Load(path string) error
}

// Embedder builds vectors for chunk batches and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// AnswerGenerator produces user-facing text from retrieved passages.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, results []domain.SearchResult) (string, error)
	GenerateSourceAnalysis(ctx context.Context, question string, result domain.SearchResult) (string, error)
}

// UsageStore persists daily usage snapshots.
type UsageStore interface {
	SaveSnapshot(ctx context.Context, snapshot domain.UsageSnapshot) error
	LoadSnapshot(ctx context.Context, day string) (*domain.UsageSnapshot, error)
}

// IssueQueue publishes/consumes issue-ingested events.
type IssueQueue interface {
	PublishIssueIngested(ctx context.Context, issueKey string) error
	SubscribeIssueIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// IssueStorage stores raw OCR text per issue.
type IssueStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// Chunker splits cleaned OCR text into overlapping word windows.
type Chunker interface {
	Split(meta domain.NewspaperMetadata, text string) []domain.Chunk
}

// IssueMetadataParser derives issue provenance from a storage key.
type IssueMetadataParser interface {
	Parse(issueKey string) (domain.NewspaperMetadata, error)
}

// ReportWriter renders a session transcript as a downloadable report.
// Writers consume the transcript as-is: no re-sorting, no re-filtering,
// no score mutation.
type ReportWriter interface {
	Write(w io.Writer, snapshot domain.SessionSnapshot) error
}
