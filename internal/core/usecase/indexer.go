package usecase

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/archivelab/newspaper-search/internal/core/domain"
	"github.com/archivelab/newspaper-search/internal/core/ports"
)

const embedBatchSize = 64

// IssueIndexerUseCase turns one stored issue into searchable chunks:
// parse provenance from the key, read and chunk the OCR text, embed
// and upsert into the dense store, and queue the chunks for the next
// lexical rebuild. The lexical rebuild itself is deferred to Flush so
// a burst of issues pays the corpus-wide build cost once.
type IssueIndexerUseCase struct {
	storage  ports.IssueStorage
	parser   ports.IssueMetadataParser
	chunker  ports.Chunker
	embedder ports.Embedder
	dense    ports.DenseIndex
	lexical  ports.LexicalIndexWriter
	logger   *slog.Logger

	lexicalPath string

	mu    sync.Mutex
	dirty bool
}

func NewIssueIndexerUseCase(
	storage ports.IssueStorage,
	parser ports.IssueMetadataParser,
	chunker ports.Chunker,
	embedder ports.Embedder,
	dense ports.DenseIndex,
	lexical ports.LexicalIndexWriter,
	lexicalPath string,
	logger *slog.Logger,
) *IssueIndexerUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IssueIndexerUseCase{
		storage:     storage,
		parser:      parser,
		chunker:     chunker,
		embedder:    embedder,
		dense:       dense,
		lexical:     lexical,
		lexicalPath: lexicalPath,
		logger:      logger,
	}
}

func (uc *IssueIndexerUseCase) IndexIssue(ctx context.Context, issueKey string) (int, error) {
	meta, err := uc.parser.Parse(issueKey)
	if err != nil {
		return 0, domain.WrapError(domain.ErrInvalidQuery, "parse issue key", err)
	}

	rc, err := uc.storage.Open(ctx, issueKey)
	if err != nil {
		return 0, domain.WrapError(domain.ErrNotFound, "open issue", err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return 0, fmt.Errorf("read issue %s: %w", issueKey, err)
	}

	chunks := uc.chunker.Split(meta, string(raw))
	if len(chunks) == 0 {
		uc.logger.Warn("issue_produced_no_chunks", "issue_key", issueKey)
		return 0, nil
	}

	vectors, err := uc.embedChunks(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("embed issue %s: %w", issueKey, err)
	}
	if err := uc.dense.Upsert(ctx, chunks, vectors); err != nil {
		return 0, fmt.Errorf("upsert issue %s: %w", issueKey, err)
	}

	uc.mu.Lock()
	uc.lexical.Add(chunks)
	uc.dirty = true
	uc.mu.Unlock()

	uc.logger.Info("issue_indexed",
		"issue_key", issueKey,
		"newspaper", meta.NewspaperName,
		"date", meta.PublicationDate.Format("2006-01-02"),
		"chunks", len(chunks),
	)
	return len(chunks), nil
}

// Flush rebuilds the lexical statistics over everything added so far
// and persists the index. No-op when nothing changed since the last
// flush.
func (uc *IssueIndexerUseCase) Flush(context.Context) error {
	uc.mu.Lock()
	defer uc.mu.Unlock()
	if !uc.dirty {
		return nil
	}
	if err := uc.lexical.Build(); err != nil {
		return fmt.Errorf("build lexical index: %w", err)
	}
	if uc.lexicalPath != "" {
		if err := uc.lexical.Save(uc.lexicalPath); err != nil {
			return fmt.Errorf("save lexical index: %w", err)
		}
	}
	uc.dirty = false
	uc.logger.Info("lexical_index_flushed", "path", uc.lexicalPath)
	return nil
}

func (uc *IssueIndexerUseCase) embedChunks(ctx context.Context, chunks []domain.Chunk) ([][]float32, error) {
	vectors := make([][]float32, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := min(start+embedBatchSize, len(chunks))

		texts := make([]string, 0, end-start)
		for _, chunk := range chunks[start:end] {
			texts = append(texts, chunk.Content)
		}
		batch, err := uc.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(batch) != len(texts) {
			return nil, fmt.Errorf("embedder returned %d vectors for %d texts", len(batch), len(texts))
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}
