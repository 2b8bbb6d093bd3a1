package lexical

import (
	"context"
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

func testChunk(id, paper, content string, date time.Time) domain.Chunk {
	return domain.Chunk{
		ChunkID: id,
		Content: content,
		Metadata: domain.NewspaperMetadata{
			NewspaperName:   paper,
			PublicationDate: date,
			Language:        "en",
		},
	}
}

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	idx := NewIndex(DefaultCeiling)
	idx.Add([]domain.Chunk{
		testChunk("c-1", "Daily Worker", "steel workers strike in pittsburgh mills today", date(1936, 5, 1)),
		testChunk("c-2", "Daily Worker", "the weather report predicts rain for the weekend", date(1936, 5, 2)),
		testChunk("c-3", "Morning Freiheit", "dock workers strike spreads along the waterfront strike committee formed", date(1947, 8, 12)),
		testChunk("c-4", "Daily Worker", "city council debates new housing program for families", date(1955, 1, 20)),
	})
	if err := idx.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return idx
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func searchQuery(text string) domain.SearchQuery {
	return domain.SearchQuery{QueryText: text, MaxResults: 10, Mode: domain.ModeLexical}
}

func TestIndexRanksOnTopicDocumentsFirst(t *testing.T) {
	idx := buildTestIndex(t)

	results, err := idx.Search(context.Background(), searchQuery("strike workers"), 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) < 2 {
		t.Fatalf("expected at least 2 hits, got %d", len(results))
	}
	for _, r := range results {
		if r.Chunk.ChunkID == "c-2" || r.Chunk.ChunkID == "c-4" {
			t.Fatalf("off-topic chunk %s should score zero and be excluded", r.Chunk.ChunkID)
		}
		if r.Score < 0 || r.Score > 1 {
			t.Fatalf("normalized score out of range: %g", r.Score)
		}
	}
	// c-3 mentions both terms and "strike" twice.
	if results[0].Chunk.ChunkID != "c-3" {
		t.Fatalf("expected c-3 first, got %s", results[0].Chunk.ChunkID)
	}
}

func TestIndexHighlightsMatchedTerms(t *testing.T) {
	idx := buildTestIndex(t)

	results, err := idx.Search(context.Background(), searchQuery("strike chicago workers"), 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	top := results[0]
	if len(top.Highlights) != 2 {
		t.Fatalf("expected 2 matched terms, got %v", top.Highlights)
	}
	if top.Highlights[0] != "strike" || top.Highlights[1] != "workers" {
		t.Fatalf("unexpected highlights %v", top.Highlights)
	}
}

func TestIndexAppliesDateAndNewspaperFilters(t *testing.T) {
	idx := buildTestIndex(t)

	query := searchQuery("strike workers")
	query.NewspaperNames = []string{"Morning Freiheit"}
	results, err := idx.Search(context.Background(), query, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Chunk.ChunkID != "c-3" {
		t.Fatalf("newspaper filter failed: %+v", results)
	}

	query = searchQuery("strike workers")
	query.StartDate = date(1930, 1, 1)
	query.EndDate = date(1940, 12, 31)
	results, err = idx.Search(context.Background(), query, 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Chunk.ChunkID != "c-1" {
		t.Fatalf("date filter failed: %+v", results)
	}
}

func TestIndexCeilingClampsRunawayScores(t *testing.T) {
	idx := NewIndex(0.05) // absurdly low ceiling forces saturation
	idx.Add([]domain.Chunk{
		testChunk("c-1", "Daily Worker", "strike strike strike strike", date(1936, 5, 1)),
		testChunk("c-2", "Daily Worker", "quiet news day without incident", date(1936, 5, 2)),
	})
	if err := idx.Build(); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	results, err := idx.Search(context.Background(), searchQuery("strike"), 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Score != 1.0 {
		t.Fatalf("expected saturated score 1.0, got %+v", results)
	}
}

func TestIndexEmptyQueryTokensMatchesNothing(t *testing.T) {
	idx := buildTestIndex(t)

	results, err := idx.Search(context.Background(), searchQuery("   "), 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("expected no results for empty token list, got %d", len(results))
	}
}

func TestIndexSaveLoadRoundTripScoresIdentically(t *testing.T) {
	idx := buildTestIndex(t)
	path := filepath.Join(t.TempDir(), "bm25.idx")
	if err := idx.Save(path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	loaded := NewIndex(DefaultCeiling)
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !loaded.Ready() || loaded.Len() != idx.Len() {
		t.Fatalf("loaded index incomplete: ready=%v len=%d", loaded.Ready(), loaded.Len())
	}

	probe := searchQuery("strike workers waterfront")
	want, err := idx.Search(context.Background(), probe, 10)
	if err != nil {
		t.Fatalf("Search() on original error = %v", err)
	}
	got, err := loaded.Search(context.Background(), probe, 10)
	if err != nil {
		t.Fatalf("Search() on loaded error = %v", err)
	}
	if len(want) != len(got) {
		t.Fatalf("result count differs: %d vs %d", len(want), len(got))
	}
	for i := range want {
		if want[i].Chunk.ChunkID != got[i].Chunk.ChunkID {
			t.Fatalf("order differs at %d: %s vs %s", i, want[i].Chunk.ChunkID, got[i].Chunk.ChunkID)
		}
		if math.Abs(want[i].Score-got[i].Score) > 1e-12 {
			t.Fatalf("score differs at %d: %g vs %g", i, want[i].Score, got[i].Score)
		}
	}
}

func TestIndexNotReadyBeforeBuild(t *testing.T) {
	idx := NewIndex(DefaultCeiling)
	if idx.Ready() {
		t.Fatalf("empty index must not report ready")
	}
	if _, err := idx.Search(context.Background(), searchQuery("strike"), 10); err == nil {
		t.Fatalf("expected error searching unbuilt index")
	}
}
