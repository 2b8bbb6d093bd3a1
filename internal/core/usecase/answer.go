package usecase

import (
	"context"
	"fmt"

	"github.com/archivelab/newspaper-search/internal/core/domain"
	"github.com/archivelab/newspaper-search/internal/core/ports"
)

// AnswerUseCase synthesizes an AI answer citing the retrieved passages.
// It consumes the fusion engine's output and never re-orders it.
type AnswerUseCase struct {
	generator ports.AnswerGenerator
}

func NewAnswerUseCase(generator ports.AnswerGenerator) *AnswerUseCase {
	return &AnswerUseCase{generator: generator}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, question string, results []domain.SearchResult) (*domain.Answer, error) {
	if uc.generator == nil {
		return nil, fmt.Errorf("answer generator not configured")
	}
	if len(results) == 0 {
		return &domain.Answer{Text: "", Sources: nil}, nil
	}

	text, err := uc.generator.GenerateAnswer(ctx, question, results)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}
	return &domain.Answer{Text: text, Sources: results}, nil
}
