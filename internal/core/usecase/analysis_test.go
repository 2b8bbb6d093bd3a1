package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/archivelab/newspaper-search/internal/core/domain"
)

type stubGenerator struct {
	mu         sync.Mutex
	inFlight   int32
	maxSeen    int32
	failChunks map[string]bool
}

func (g *stubGenerator) GenerateAnswer(_ context.Context, question string, results []domain.SearchResult) (string, error) {
	return fmt.Sprintf("answer to %q from %d sources", question, len(results)), nil
}

func (g *stubGenerator) GenerateSourceAnalysis(_ context.Context, _ string, result domain.SearchResult) (string, error) {
	current := atomic.AddInt32(&g.inFlight, 1)
	defer atomic.AddInt32(&g.inFlight, -1)
	for {
		seen := atomic.LoadInt32(&g.maxSeen)
		if current <= seen || atomic.CompareAndSwapInt32(&g.maxSeen, seen, current) {
			break
		}
	}

	g.mu.Lock()
	fail := g.failChunks[result.Chunk.ChunkID]
	g.mu.Unlock()
	if fail {
		return "", fmt.Errorf("model overloaded")
	}
	return "analysis of " + result.Chunk.ChunkID, nil
}

func TestAnalyzeSourcesPreservesOrderAndIsolatesFailures(t *testing.T) {
	generator := &stubGenerator{failChunks: map[string]bool{"chunk-1": true}}
	uc := NewSourceAnalysisUseCase(generator, 4)

	results := []domain.SearchResult{result("chunk-0", 0.9), result("chunk-1", 0.8), result("chunk-2", 0.7)}
	analyses, err := uc.AnalyzeSources(context.Background(), "strike", results)
	if err != nil {
		t.Fatalf("AnalyzeSources() error = %v", err)
	}
	if len(analyses) != 3 {
		t.Fatalf("expected 3 analyses, got %d", len(analyses))
	}
	for i, a := range analyses {
		if a.ChunkID != results[i].Chunk.ChunkID {
			t.Fatalf("order not preserved at %d: %s", i, a.ChunkID)
		}
	}
	if analyses[1].Err == "" || analyses[1].Analysis != "" {
		t.Fatalf("expected failure note for chunk-1, got %+v", analyses[1])
	}
	if analyses[0].Analysis == "" || analyses[2].Analysis == "" {
		t.Fatalf("neighbor analyses must survive one failure: %+v", analyses)
	}
}

func TestAnalyzeSourcesRespectsConcurrencyBound(t *testing.T) {
	generator := &stubGenerator{}
	uc := NewSourceAnalysisUseCase(generator, 3)

	results := make([]domain.SearchResult, 20)
	for i := range results {
		results[i] = result(fmt.Sprintf("chunk-%d", i), 0.5)
	}
	if _, err := uc.AnalyzeSources(context.Background(), "strike", results); err != nil {
		t.Fatalf("AnalyzeSources() error = %v", err)
	}
	if seen := atomic.LoadInt32(&generator.maxSeen); seen > 3 {
		t.Fatalf("concurrency bound exceeded: saw %d in flight", seen)
	}
}

func TestAnswerUseCaseEmptyResults(t *testing.T) {
	uc := NewAnswerUseCase(&stubGenerator{})

	answer, err := uc.Answer(context.Background(), "strike", nil)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text != "" || answer.Sources != nil {
		t.Fatalf("expected empty answer for no sources, got %+v", answer)
	}
}

func TestAnswerUseCaseCitesSources(t *testing.T) {
	uc := NewAnswerUseCase(&stubGenerator{})

	results := []domain.SearchResult{result("chunk-0", 0.9)}
	answer, err := uc.Answer(context.Background(), "strike", results)
	if err != nil {
		t.Fatalf("Answer() error = %v", err)
	}
	if answer.Text == "" || len(answer.Sources) != 1 {
		t.Fatalf("expected answer with sources, got %+v", answer)
	}
}
