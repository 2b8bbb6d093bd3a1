package usecase

import (
	"context"
	"math"
	"testing"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

func TestDiversifyNoOpOnEmptySession(t *testing.T) {
	input := []domain.SearchResult{result("a", 0.9), result("b", 0.5)}

	out := diversifyResults(input, nil, nil, 0.3, 0.05)
	if len(out) != 2 {
		t.Fatalf("expected 2 results, got %d", len(out))
	}
	for i := range input {
		if out[i].Chunk.ChunkID != input[i].Chunk.ChunkID || out[i].Score != input[i].Score {
			t.Fatalf("no-op pass changed result %d: %+v vs %+v", i, out[i], input[i])
		}
	}
}

func TestDiversifyPenalizesRepeatsAndFloors(t *testing.T) {
	used := map[string]struct{}{"repeat-high": {}, "repeat-low": {}}
	input := []domain.SearchResult{
		result("repeat-high", 0.9),
		result("repeat-low", 0.12),
	}

	out := diversifyResults(input, used, nil, 0.3, 0.05)

	byID := map[string]float64{}
	for _, r := range out {
		byID[r.Chunk.ChunkID] = r.Score
	}
	// 0.9 - 0.3*0.9 = 0.63
	if math.Abs(byID["repeat-high"]-0.63) > 1e-9 {
		t.Fatalf("expected 0.63 for repeat-high, got %g", byID["repeat-high"])
	}
	// 0.12 - 0.3*0.12 = 0.084, floored at 0.1
	if byID["repeat-low"] != 0.1 {
		t.Fatalf("expected floor 0.1 for repeat-low, got %g", byID["repeat-low"])
	}
}

func TestDiversifyBoostsNovelSourcesCapped(t *testing.T) {
	used := map[string]struct{}{"old": {}}
	lastExchange := map[string]struct{}{"recent": {}}
	input := []domain.SearchResult{
		result("novel", 0.5),
		result("novel-top", 0.98),
		result("recent", 0.5),
	}

	out := diversifyResults(input, used, lastExchange, 0.3, 0.05)

	byID := map[string]float64{}
	for _, r := range out {
		byID[r.Chunk.ChunkID] = r.Score
	}
	if math.Abs(byID["novel"]-0.55) > 1e-9 {
		t.Fatalf("expected novelty bonus 0.55, got %g", byID["novel"])
	}
	if byID["novel-top"] != 1.0 {
		t.Fatalf("expected bonus capped at 1.0, got %g", byID["novel-top"])
	}
	if byID["recent"] != 0.5 {
		t.Fatalf("most recent exchange's sources get no bonus, got %g", byID["recent"])
	}
}

func TestDiversifyResortsAfterAdjustment(t *testing.T) {
	used := map[string]struct{}{"repeat": {}}
	input := []domain.SearchResult{
		result("repeat", 0.9), // drops to 0.63
		result("fresh", 0.7),  // boosts to 0.75
	}

	out := diversifyResults(input, used, nil, 0.3, 0.05)
	if out[0].Chunk.ChunkID != "fresh" {
		t.Fatalf("expected fresh source first after re-sort, got %s", out[0].Chunk.ChunkID)
	}
}

func TestSearchDiversifiesAgainstSessionHistory(t *testing.T) {
	dense := &stubDenseIndex{results: []domain.SearchResult{
		result("seen-before", 0.9),
		result("never-seen", 0.8),
	}}
	sessions := NewSessionRegistry()
	uc := NewSearchUseCase(&stubEmbedder{}, dense, &stubLexicalSearcher{}, sessions, SearchConfig{
		BM25Weight: 0.3, DiversityWeight: 0.3, NoveltyBonus: 0.05, DefaultLimit: 20,
	}, nil)

	snapshot, err := sessions.Create(context.Background())
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := sessions.RecordExchange(context.Background(), snapshot.SessionID, domain.Exchange{
		Query:     "earlier question",
		SourceIDs: []string{"seen-before"},
	}); err != nil {
		t.Fatalf("RecordExchange() error = %v", err)
	}

	resp, err := uc.Search(context.Background(), domain.SearchQuery{
		QueryText: "strike", MaxResults: 5, Threshold: 0.1, Mode: domain.ModeSemantic,
	}, snapshot.SessionID)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if resp.Results[0].Chunk.ChunkID != "never-seen" {
		t.Fatalf("expected unseen source promoted, got %s", resp.Results[0].Chunk.ChunkID)
	}
	if math.Abs(resp.Results[1].Score-0.63) > 1e-9 {
		t.Fatalf("expected penalized repeat at 0.63, got %g", resp.Results[1].Score)
	}
}
