package usecase

import "github.com/archivelab/newspaper-search/internal/core/domain"

// diversityFloor is the minimum score a previously surfaced result can
// be penalized down to. A repeated source stays visible, just
// deprioritized; it may still be the most relevant answer.
const diversityFloor = 0.1

// diversifyResults re-ranks a fresh fused result list against the
// session's surfaced history: repeats are penalized by weight×score
// (floored), unseen chunks outside the most recent exchange get a small
// novelty bonus (capped at 1.0). The adjustment compounds if applied
// twice, so it runs exactly once per displayed result set.
func diversifyResults(
	results []domain.SearchResult,
	used map[string]struct{},
	lastExchange map[string]struct{},
	diversityWeight float64,
	noveltyBonus float64,
) []domain.SearchResult {
	if len(used) == 0 {
		return results
	}

	out := make([]domain.SearchResult, 0, len(results))
	for _, r := range results {
		adjusted := r
		if _, seen := used[r.Chunk.ChunkID]; seen {
			penalized := r.Score - diversityWeight*r.Score
			if penalized < diversityFloor {
				penalized = diversityFloor
			}
			adjusted = r.WithScore(penalized)
		} else if _, recent := lastExchange[r.Chunk.ChunkID]; !recent {
			boosted := r.Score + noveltyBonus
			if boosted > 1.0 {
				boosted = 1.0
			}
			adjusted = r.WithScore(boosted)
		}
		out = append(out, adjusted)
	}

	sortResults(out)
	return out
}
