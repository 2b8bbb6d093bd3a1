package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/archivelab/newspaper-search/internal/core/domain"
	"github.com/archivelab/newspaper-search/internal/core/ports"
)

// SearchConfig carries the fusion and diversification constants. The
// BM25 weight balances lexical against dense components; the ceiling
// used for lexical normalization lives in the lexical index itself.
type SearchConfig struct {
	BM25Weight      float64
	DiversityWeight float64
	NoveltyBonus    float64
	DefaultLimit    int
}

func (c SearchConfig) normalize() SearchConfig {
	out := c
	if out.BM25Weight <= 0 || out.BM25Weight > 1 {
		out.BM25Weight = 0.3
	}
	if out.DiversityWeight <= 0 || out.DiversityWeight > 1 {
		out.DiversityWeight = 0.3
	}
	if out.NoveltyBonus < 0 {
		out.NoveltyBonus = 0.05
	}
	if out.DefaultLimit <= 0 {
		out.DefaultLimit = 20
	}
	return out
}

// SearchUseCase is the hybrid fusion engine: it dispatches the dense and
// lexical sub-searches for a query's mode, normalizes and fuses their
// scores, enforces filters and the relevance threshold, and applies
// session diversification to the fused output.
type SearchUseCase struct {
	embedder ports.Embedder
	dense    ports.DenseIndex
	lexical  ports.LexicalSearcher
	sessions *SessionRegistry
	cfg      SearchConfig
	logger   *slog.Logger
}

func NewSearchUseCase(
	embedder ports.Embedder,
	dense ports.DenseIndex,
	lexical ports.LexicalSearcher,
	sessions *SessionRegistry,
	cfg SearchConfig,
	logger *slog.Logger,
) *SearchUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchUseCase{
		embedder: embedder,
		dense:    dense,
		lexical:  lexical,
		sessions: sessions,
		cfg:      cfg.normalize(),
		logger:   logger,
	}
}

// subSearchOutcome is the typed result of one retrieval path. Failures
// are values inspected by the mode dispatch, never propagated panics.
type subSearchOutcome struct {
	results []domain.SearchResult
	err     error
}

func (o subSearchOutcome) failed() bool { return o.err != nil }

// Search runs one query end to end. Sub-search failures degrade the
// executed mode; only a query with no usable retrieval path at all
// returns ErrSearchUnavailable.
func (uc *SearchUseCase) Search(ctx context.Context, query domain.SearchQuery, sessionID string) (*domain.SearchResponse, error) {
	if query.MaxResults <= 0 {
		query.MaxResults = uc.cfg.DefaultLimit
	}
	if query.Mode == "" {
		query.Mode = domain.ModeHybrid
	}
	if err := query.Validate(); err != nil {
		return nil, err
	}

	resp, err := uc.dispatch(ctx, query)
	if err != nil {
		return nil, err
	}

	resp.Results = uc.diversify(resp.Results, sessionID)
	return resp, nil
}

func (uc *SearchUseCase) dispatch(ctx context.Context, query domain.SearchQuery) (*domain.SearchResponse, error) {
	switch query.Mode {
	case domain.ModeSemantic:
		return uc.semanticSearch(ctx, query)
	case domain.ModeLexical:
		return uc.lexicalSearch(ctx, query)
	case domain.ModeHybrid:
		return uc.hybridSearch(ctx, query)
	default:
		return nil, domain.WrapError(domain.ErrInvalidQuery, "dispatch search", fmt.Errorf("unknown search_mode %q", query.Mode))
	}
}

func (uc *SearchUseCase) semanticSearch(ctx context.Context, query domain.SearchQuery) (*domain.SearchResponse, error) {
	outcome := uc.runDense(ctx, query, query.MaxResults)
	if outcome.failed() {
		// Dense store down: lexical-only is the recovery path, and the
		// caller is told the result set may be narrower than requested.
		if uc.lexical != nil && uc.lexical.Ready() {
			uc.logger.Warn("dense_search_failed_falling_back", "error", outcome.err)
			fallback, err := uc.lexicalSearch(ctx, query)
			if err != nil {
				return nil, err
			}
			fallback.Degraded = true
			fallback.DegradedReason = "semantic search temporarily unavailable; lexical results only"
			return fallback, nil
		}
		return nil, domain.WrapError(domain.ErrSearchUnavailable, "semantic search", outcome.err)
	}

	results := applyDateFilter(query, outcome.results)
	results = applyThreshold(results, query.Threshold, query.MaxResults)
	return &domain.SearchResponse{Results: results, Mode: domain.ModeSemantic}, nil
}

func (uc *SearchUseCase) lexicalSearch(ctx context.Context, query domain.SearchQuery) (*domain.SearchResponse, error) {
	if uc.lexical == nil || !uc.lexical.Ready() {
		// Index not built/loaded: soft-degrade to semantic rather than
		// failing the request.
		uc.logger.Warn("lexical_index_unavailable_falling_back")
		semantic, err := uc.semanticSearch(ctx, query)
		if err != nil {
			return nil, domain.WrapError(domain.ErrSearchUnavailable, "lexical search", fmt.Errorf("lexical index unavailable and semantic fallback failed: %w", err))
		}
		semantic.Degraded = true
		semantic.DegradedReason = "lexical index unavailable; semantic results only"
		return semantic, nil
	}

	results, err := uc.lexical.Search(ctx, query, query.MaxResults)
	if err != nil {
		return nil, domain.WrapError(domain.ErrSearchUnavailable, "lexical search", err)
	}
	results = applyThreshold(results, query.Threshold, query.MaxResults)
	return &domain.SearchResponse{Results: results, Mode: domain.ModeLexical}, nil
}

func (uc *SearchUseCase) hybridSearch(ctx context.Context, query domain.SearchQuery) (*domain.SearchResponse, error) {
	// Both sub-searches run unconditionally and independently, each asked
	// for more candidates than the final cap. The merge blocks on both.
	candidateLimit := query.MaxResults * hybridCandidateFactor

	denseCh := make(chan subSearchOutcome, 1)
	lexicalCh := make(chan subSearchOutcome, 1)
	go func() { denseCh <- uc.runDense(ctx, query, candidateLimit) }()
	go func() { lexicalCh <- uc.runLexical(ctx, query, candidateLimit) }()
	dense := <-denseCh
	lexical := <-lexicalCh

	switch {
	case dense.failed() && lexical.failed():
		return nil, domain.WrapError(domain.ErrSearchUnavailable, "hybrid search",
			fmt.Errorf("dense: %w; lexical: %w", dense.err, lexical.err))
	case dense.failed():
		uc.logger.Warn("hybrid_dense_leg_failed", "error", dense.err)
		results := applyThreshold(lexical.results, query.Threshold, query.MaxResults)
		return &domain.SearchResponse{
			Results:        results,
			Mode:           domain.ModeLexical,
			Degraded:       true,
			DegradedReason: "semantic search temporarily unavailable; lexical results only",
		}, nil
	case lexical.failed():
		uc.logger.Warn("hybrid_lexical_leg_failed", "error", lexical.err)
		results := applyDateFilter(query, dense.results)
		results = applyThreshold(results, query.Threshold, query.MaxResults)
		return &domain.SearchResponse{
			Results:        results,
			Mode:           domain.ModeSemantic,
			Degraded:       true,
			DegradedReason: "lexical index unavailable; semantic results only",
		}, nil
	}

	semanticResults := applyDateFilter(query, dense.results)
	fused := fuseWeighted(semanticResults, lexical.results, uc.cfg.BM25Weight, query.Threshold, query.MaxResults)
	return &domain.SearchResponse{Results: fused, Mode: domain.ModeHybrid}, nil
}

// runDense embeds the query and hits the dense store with the newspaper
// allow-list pushed down. Per-chunk normalization is the store's native
// cosine score.
func (uc *SearchUseCase) runDense(ctx context.Context, query domain.SearchQuery, limit int) subSearchOutcome {
	if uc.dense == nil || uc.embedder == nil {
		return subSearchOutcome{err: fmt.Errorf("dense index not configured")}
	}
	vector, err := uc.embedder.EmbedQuery(ctx, query.QueryText)
	if err != nil {
		return subSearchOutcome{err: fmt.Errorf("embed query: %w", err)}
	}
	results, err := uc.dense.Query(ctx, vector, limit, query.NewspaperNames)
	if err != nil {
		return subSearchOutcome{err: fmt.Errorf("dense query: %w", err)}
	}
	return subSearchOutcome{results: results}
}

func (uc *SearchUseCase) runLexical(ctx context.Context, query domain.SearchQuery, limit int) subSearchOutcome {
	if uc.lexical == nil || !uc.lexical.Ready() {
		return subSearchOutcome{err: fmt.Errorf("lexical index unavailable")}
	}
	results, err := uc.lexical.Search(ctx, query, limit)
	if err != nil {
		return subSearchOutcome{err: fmt.Errorf("lexical query: %w", err)}
	}
	return subSearchOutcome{results: results}
}

func (uc *SearchUseCase) diversify(results []domain.SearchResult, sessionID string) []domain.SearchResult {
	if uc.sessions == nil || sessionID == "" {
		return results
	}
	used, lastExchange, ok := uc.sessions.surfacedSets(sessionID)
	if !ok {
		return results
	}
	return diversifyResults(results, used, lastExchange, uc.cfg.DiversityWeight, uc.cfg.NoveltyBonus)
}
