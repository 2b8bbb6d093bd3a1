// Package lexical implements the in-process BM25 index over the full
// newspaper corpus, with date/newspaper filtering, fixed-ceiling score
// normalization, and opaque blob persistence so the expensive
// full-corpus build runs once per corpus version rather than per
// process start.
package lexical

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

// DefaultCeiling is the empirical raw-score ceiling used for
// normalization. Raw BM25 scores above it saturate at 1.0 and lose
// ranking discrimination among the very top hits; that is an accepted
// approximation, recalibrate against the corpus score distribution if
// it becomes a problem.
const DefaultCeiling = 10.0

// Index is the corpus-wide lexical index. Read-only after Build/Load
// and safe to share across concurrent queries; Build and Load swap the
// whole state under the write lock.
type Index struct {
	mu        sync.RWMutex
	chunks    []domain.Chunk
	docTokens [][]string
	bm25      *bm25Okapi
	ceiling   float64
}

func NewIndex(ceiling float64) *Index {
	if ceiling <= 0 {
		ceiling = DefaultCeiling
	}
	return &Index{ceiling: ceiling}
}

// Add queues chunks for the next Build. Chunk text is tokenized here,
// once, with the corpus-wide rule (lower-case, whitespace split).
func (idx *Index) Add(chunks []domain.Chunk) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	for _, chunk := range chunks {
		idx.chunks = append(idx.chunks, chunk)
		idx.docTokens = append(idx.docTokens, domain.Tokenize(chunk.Content))
	}
}

// Build computes the BM25 statistics over everything added so far.
// Cost is proportional to total corpus token count.
func (idx *Index) Build() error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if len(idx.chunks) == 0 {
		return fmt.Errorf("lexical index: no chunks to build from")
	}
	idx.bm25 = newBM25Okapi(idx.docTokens)
	return nil
}

// Ready reports whether an index has been built or loaded.
func (idx *Index) Ready() bool {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.bm25 != nil
}

// Len returns the number of indexed chunks.
func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.chunks)
}

// Search scores the whole corpus for the query, walks candidates in
// descending raw-score order applying the query's date and newspaper
// filters, and returns up to limit results with ceiling-normalized
// scores and matched-term highlights. Pure read; no side effects.
func (idx *Index) Search(_ context.Context, query domain.SearchQuery, limit int) ([]domain.SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if idx.bm25 == nil {
		return nil, fmt.Errorf("lexical index not built")
	}
	if limit <= 0 {
		limit = query.MaxResults
	}

	queryTokens := domain.Tokenize(query.QueryText)
	if len(queryTokens) == 0 {
		return nil, nil
	}
	rawScores := idx.bm25.scores(queryTokens)

	order := make([]int, len(rawScores))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if rawScores[order[a]] != rawScores[order[b]] {
			return rawScores[order[a]] > rawScores[order[b]]
		}
		return idx.chunks[order[a]].ChunkID < idx.chunks[order[b]].ChunkID
	})

	out := make([]domain.SearchResult, 0, limit)
	for _, docID := range order {
		if len(out) >= limit {
			break
		}
		raw := rawScores[docID]
		if raw <= 0 {
			break
		}
		chunk := idx.chunks[docID]
		if !query.MatchesFilters(chunk) {
			continue
		}
		normalized := raw / idx.ceiling
		if normalized > 1.0 {
			normalized = 1.0
		}
		out = append(out, domain.SearchResult{
			Chunk:      chunk,
			Score:      normalized,
			Highlights: matchedTerms(queryTokens, idx.docTokens[docID]),
		})
	}
	return out, nil
}

// matchedTerms lists the distinct query tokens present in the document,
// in query order. Cosmetic, used for display highlighting.
func matchedTerms(queryTokens, docTokens []string) []string {
	docSet := make(map[string]struct{}, len(docTokens))
	for _, token := range docTokens {
		docSet[token] = struct{}{}
	}
	var out []string
	seen := make(map[string]struct{}, len(queryTokens))
	for _, token := range queryTokens {
		if _, dup := seen[token]; dup {
			continue
		}
		seen[token] = struct{}{}
		if _, ok := docSet[token]; ok {
			out = append(out, token)
		}
	}
	return out
}
