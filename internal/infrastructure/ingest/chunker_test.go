package ingest

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

func issueMeta() domain.NewspaperMetadata {
	return domain.NewspaperMetadata{
		NewspaperName:   "Daily Worker",
		PublicationDate: time.Date(1936, 5, 1, 0, 0, 0, 0, time.UTC),
		Language:        "en",
	}
}

func wordsText(n int) string {
	words := make([]string, n)
	for i := range words {
		words[i] = fmt.Sprintf("word%d", i)
	}
	return strings.Join(words, " ")
}

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	chunker := NewChunker(350, 75)

	chunks := chunker.Split(issueMeta(), wordsText(100))
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	chunk := chunks[0]
	if chunk.ChunkIndex != 0 || chunk.StartChar != 0 || chunk.EndChar != len(chunk.Content) {
		t.Fatalf("unexpected offsets %+v", chunk)
	}
	if chunk.ChunkID != "daily_worker_1936-05-01_c0" {
		t.Fatalf("chunk id = %q", chunk.ChunkID)
	}
}

func TestSplitOverlapsAdjacentWindows(t *testing.T) {
	chunker := NewChunker(350, 75)

	chunks := chunker.Split(issueMeta(), wordsText(1000))
	if len(chunks) < 3 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// Step is 275 words, so chunk n starts at word 275n and the last 75
	// words of chunk n reappear at the head of chunk n+1.
	first := strings.Fields(chunks[0].Content)
	second := strings.Fields(chunks[1].Content)
	if len(first) != 350 {
		t.Fatalf("first chunk has %d words", len(first))
	}
	if second[0] != first[275] {
		t.Fatalf("expected overlap: second starts %q, first[275] %q", second[0], first[275])
	}

	for i, chunk := range chunks {
		if chunk.ChunkIndex != i {
			t.Fatalf("chunk %d has index %d", i, chunk.ChunkIndex)
		}
	}
}

func TestSplitOffsetsSliceCleanedText(t *testing.T) {
	chunker := NewChunker(350, 75)
	text := wordsText(800)
	cleaned := CleanOCRText(text)

	for _, chunk := range chunker.Split(issueMeta(), text) {
		if got := cleaned[chunk.StartChar:chunk.EndChar]; got != chunk.Content {
			t.Fatalf("offsets do not slice cleaned text for chunk %d", chunk.ChunkIndex)
		}
	}
}

func TestSplitIsDeterministic(t *testing.T) {
	chunker := NewChunker(350, 75)
	text := wordsText(900)

	a := chunker.Split(issueMeta(), text)
	b := chunker.Split(issueMeta(), text)
	if len(a) != len(b) {
		t.Fatalf("run lengths differ: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i].ChunkID != b[i].ChunkID || a[i].Content != b[i].Content {
			t.Fatalf("chunk %d differs across runs", i)
		}
	}
}

func TestSplitEmptyTextYieldsNothing(t *testing.T) {
	chunker := NewChunker(350, 75)
	if chunks := chunker.Split(issueMeta(), "   \n\n  "); chunks != nil {
		t.Fatalf("expected nil for blank text, got %d chunks", len(chunks))
	}
}

func TestCleanOCRTextNormalizesArtifacts(t *testing.T) {
	got := CleanOCRText("the  strike\n\n\nbegan   when l  arrived")
	want := "the strike began when I arrived"
	if got != want {
		t.Fatalf("CleanOCRText = %q, want %q", got, want)
	}
}
