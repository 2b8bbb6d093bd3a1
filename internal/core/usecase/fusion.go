package usecase

import (
	"sort"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

// hybridCandidateFactor is how many candidates each sub-search is asked
// for relative to the final cap, so fusion has material to work with.
const hybridCandidateFactor = 2

type fusedCandidate struct {
	result   domain.SearchResult
	semantic float64
	lexical  float64
}

// fuseWeighted merges the two sub-searches' normalized results by chunk
// identity. Combined score = dense×(1−w) + lexical×w; a chunk present in
// only one list keeps a valid score with the missing component at zero.
// Output is threshold-filtered, sorted descending, ties broken by chunk
// id ascending, and capped.
func fuseWeighted(semantic, lexical []domain.SearchResult, bm25Weight, threshold float64, limit int) []domain.SearchResult {
	acc := make(map[string]*fusedCandidate, len(semantic)+len(lexical))

	for _, r := range semantic {
		acc[r.Chunk.ChunkID] = &fusedCandidate{
			result:   r,
			semantic: clampUnit(r.Score) * (1 - bm25Weight),
		}
	}
	for _, r := range lexical {
		component := clampUnit(r.Score) * bm25Weight
		if c, ok := acc[r.Chunk.ChunkID]; ok {
			c.lexical = component
			if len(c.result.Highlights) == 0 {
				c.result.Highlights = r.Highlights
			}
			continue
		}
		acc[r.Chunk.ChunkID] = &fusedCandidate{result: r, lexical: component}
	}

	out := make([]domain.SearchResult, 0, len(acc))
	for _, c := range acc {
		combined := clampUnit(c.semantic + c.lexical)
		if combined < threshold {
			continue
		}
		out = append(out, c.result.WithScore(combined))
	}

	sortResults(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// applyThreshold filters a single-mode result list, keeping the
// sub-search's own normalized scores.
func applyThreshold(results []domain.SearchResult, threshold float64, limit int) []domain.SearchResult {
	out := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		score := clampUnit(r.Score)
		if score < threshold {
			continue
		}
		out = append(out, r.WithScore(score))
	}
	sortResults(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// applyDateFilter drops results outside the query's filters. Date ranges
// are always enforced here because the dense store's range filtering on
// date fields is not trusted.
func applyDateFilter(query domain.SearchQuery, results []domain.SearchResult) []domain.SearchResult {
	out := results[:0]
	for _, r := range results {
		if query.MatchesFilters(r.Chunk) {
			out = append(out, r)
		}
	}
	return out
}

// sortResults orders by score descending, then chunk id ascending so
// that equally scored results come out deterministically.
func sortResults(results []domain.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ChunkID < results[j].Chunk.ChunkID
	})
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
