package usecase

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/archivelab/newspaper-search/internal/core/domain"
	"github.com/archivelab/newspaper-search/internal/core/ports"
)

// SourceAnalysisUseCase fans one LLM call out per result across a
// bounded pool and joins all of them before returning. Tasks share no
// mutable state beyond each writing its own output slot, so the only
// coordination is the join.
type SourceAnalysisUseCase struct {
	generator      ports.AnswerGenerator
	maxConcurrency int
}

func NewSourceAnalysisUseCase(generator ports.AnswerGenerator, maxConcurrency int) *SourceAnalysisUseCase {
	if maxConcurrency <= 0 {
		maxConcurrency = 25
	}
	return &SourceAnalysisUseCase{
		generator:      generator,
		maxConcurrency: maxConcurrency,
	}
}

// AnalyzeSources produces one analysis per result, order-preserving. A
// failed call yields an error note in that result's slot instead of
// failing the batch.
func (uc *SourceAnalysisUseCase) AnalyzeSources(ctx context.Context, question string, results []domain.SearchResult) ([]domain.SourceAnalysis, error) {
	if uc.generator == nil {
		return nil, fmt.Errorf("answer generator not configured")
	}
	if len(results) == 0 {
		return nil, nil
	}

	out := make([]domain.SourceAnalysis, len(results))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(uc.maxConcurrency)

	for i, result := range results {
		group.Go(func() error {
			analysis := domain.SourceAnalysis{
				ChunkID:  result.Chunk.ChunkID,
				Citation: result.Citation(),
			}
			text, err := uc.generator.GenerateSourceAnalysis(groupCtx, question, result)
			if err != nil {
				analysis.Err = err.Error()
			} else {
				analysis.Analysis = text
			}
			out[i] = analysis
			return nil
		})
	}

	// Workers never return errors; Wait is purely the blocking join.
	_ = group.Wait()
	return out, nil
}
