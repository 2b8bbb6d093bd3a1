// Package bootstrap assembles the service dependency graphs. Both
// binaries start from the same Config; the API builds the retrieval and
// session stack, the indexer builds the ingestion stack.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/archivelab/newspaper-search/internal/config"
	"github.com/archivelab/newspaper-search/internal/core/ports"
	"github.com/archivelab/newspaper-search/internal/core/usecase"
	"github.com/archivelab/newspaper-search/internal/infrastructure/ingest"
	"github.com/archivelab/newspaper-search/internal/infrastructure/lexical"
	"github.com/archivelab/newspaper-search/internal/infrastructure/llm/openai"
	natsqueue "github.com/archivelab/newspaper-search/internal/infrastructure/queue/nats"
	"github.com/archivelab/newspaper-search/internal/infrastructure/repository/postgres"
	"github.com/archivelab/newspaper-search/internal/infrastructure/resilience"
	"github.com/archivelab/newspaper-search/internal/infrastructure/storage/localfs"
	"github.com/archivelab/newspaper-search/internal/infrastructure/vector/pinecone"
	"github.com/archivelab/newspaper-search/internal/observability/logging"
)

// App holds the wired components a binary needs. Fields not built by
// the chosen constructor stay nil.
type App struct {
	Config config.Config
	Logger *slog.Logger

	Sessions *usecase.SessionRegistry
	Search   *usecase.SearchUseCase
	Answers  *usecase.AnswerUseCase
	Analysis *usecase.SourceAnalysisUseCase
	Usage    *usecase.UsageMonitorUseCase

	Indexer *usecase.IssueIndexerUseCase
	Queue   *natsqueue.Queue

	db *sql.DB
}

func (a *App) Close() {
	if a.Queue != nil {
		a.Queue.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}

// NewAPI builds the search service graph. A missing Pinecone or OpenAI
// configuration is tolerated: the fusion engine degrades to the
// retrieval paths that remain. A missing Postgres only disables quota
// persistence across restarts.
func NewAPI(ctx context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger := logging.NewJSONLogger("archive-api", cfg.LogLevel)
	executor := resilience.NewExecutor(resilience.DefaultPolicy())

	lexIndex := lexical.NewIndex(cfg.BM25ScoreCeiling)
	if err := lexIndex.Load(cfg.LexicalIndexPath); err != nil {
		logger.Warn("lexical_index_not_loaded",
			"path", cfg.LexicalIndexPath,
			"error", err,
		)
	} else {
		logger.Info("lexical_index_loaded", "path", cfg.LexicalIndexPath, "chunks", lexIndex.Len())
	}

	embedder, dense, generator := buildExternalClients(cfg, executor)

	sessions := usecase.NewSessionRegistry()
	search := usecase.NewSearchUseCase(embedder, dense, lexIndex, sessions, usecase.SearchConfig{
		BM25Weight:      cfg.BM25Weight,
		DiversityWeight: cfg.DiversityWeight,
		NoveltyBonus:    cfg.NoveltyBonus,
		DefaultLimit:    cfg.MaxSearchResults,
	}, logger)

	var store ports.UsageStore
	var db *sql.DB
	if cfg.PostgresDSN != "" {
		opened, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			logger.Warn("usage_store_unavailable", "error", err)
		} else {
			repo := postgres.NewUsageRepository(opened)
			schemaCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			err = repo.EnsureSchema(schemaCtx)
			cancel()
			if err != nil {
				logger.Warn("usage_schema_setup_failed", "error", err)
				_ = opened.Close()
			} else {
				store = repo
				db = opened
			}
		}
	}
	usage := usecase.NewUsageMonitor(usecase.UsageLimits{
		MaxSearchesPerHour: cfg.MaxSearchesPerHour,
		MaxSearchesPerDay:  cfg.MaxSearchesPerDay,
		MaxExportsPerDay:   cfg.MaxExportsPerDay,
		DailyCostLimit:     cfg.DailyCostLimit,
		CostPerSearch:      cfg.CostPerSearch,
		CostPerSummary:     cfg.CostPerSummary,
		CostPerExport:      cfg.CostPerExport,
	}, store, logger)

	return &App{
		Config:   cfg,
		Logger:   logger,
		Sessions: sessions,
		Search:   search,
		Answers:  usecase.NewAnswerUseCase(generator),
		Analysis: usecase.NewSourceAnalysisUseCase(generator, cfg.AnalysisMaxConcurrency),
		Usage:    usage,
		db:       db,
	}, nil
}

// NewIndexer builds the ingestion worker graph. Unlike the API, the
// indexer has no degraded mode: it needs embeddings and the dense store
// to do its job at all.
func NewIndexer(_ context.Context, cfg config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if cfg.OpenAIAPIKey == "" {
		return nil, fmt.Errorf("indexer needs OPENAI_API_KEY for chunk embeddings")
	}
	if cfg.PineconeHost == "" {
		return nil, fmt.Errorf("indexer needs PINECONE_HOST for dense upserts")
	}
	logger := logging.NewJSONLogger("archive-indexer", cfg.LogLevel)
	executor := resilience.NewExecutor(resilience.DefaultPolicy())

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("issue storage: %w", err)
	}

	lexIndex := lexical.NewIndex(cfg.BM25ScoreCeiling)
	if _, statErr := os.Stat(cfg.LexicalIndexPath); statErr == nil {
		if err := lexIndex.Load(cfg.LexicalIndexPath); err != nil {
			return nil, fmt.Errorf("load lexical index %s: %w", cfg.LexicalIndexPath, err)
		}
		logger.Info("lexical_index_loaded", "path", cfg.LexicalIndexPath, "chunks", lexIndex.Len())
	}

	embedder, dense, _ := buildExternalClients(cfg, executor)

	indexer := usecase.NewIssueIndexerUseCase(
		storage,
		ingest.NewMetadataParser(),
		ingest.NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		embedder,
		dense,
		lexIndex,
		cfg.LexicalIndexPath,
		logger,
	)

	queue, err := natsqueue.New(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
		ResilienceExecutor: executor,
		Logger:             logger,
	})
	if err != nil {
		return nil, fmt.Errorf("nats: %w", err)
	}

	return &App{
		Config:  cfg,
		Logger:  logger,
		Indexer: indexer,
		Queue:   queue,
	}, nil
}

// buildExternalClients returns nil interfaces for anything the config
// leaves unconfigured, so downstream nil checks see real nils rather
// than typed-nil wrappers.
func buildExternalClients(cfg config.Config, executor *resilience.Executor) (ports.Embedder, ports.DenseIndex, ports.AnswerGenerator) {
	var embedder ports.Embedder
	var generator ports.AnswerGenerator
	if cfg.OpenAIAPIKey != "" {
		client := openai.New(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.OpenAIChatModel, cfg.OpenAIEmbedModel, openai.Options{
			Executor: executor,
		})
		embedder = openai.NewEmbedder(client)
		generator = openai.NewGenerator(client)
	}

	var dense ports.DenseIndex
	if cfg.PineconeHost != "" {
		dense = pinecone.New(cfg.PineconeHost, cfg.PineconeAPIKey, pinecone.Options{
			Namespace: cfg.PineconeNamespace,
			Executor:  executor,
		})
	}
	return embedder, dense, generator
}
