package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/archivelab/newspaper-search/internal/bootstrap"
	"github.com/archivelab/newspaper-search/internal/config"
	"github.com/archivelab/newspaper-search/internal/observability/metrics"
)

const (
	issueTimeout  = 5 * time.Minute
	flushInterval = 30 * time.Second
)

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewIndexer(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	indexerMetrics := metrics.NewIndexerMetrics("archive-indexer")
	metricsServer := startMetricsServer(app, indexerMetrics, cfg.IndexerMetricsPort)

	// Lexical rebuilds are deferred; a periodic flush bounds how stale
	// the persisted index can get during a long ingestion run.
	go func() {
		ticker := time.NewTicker(flushInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := app.Indexer.Flush(ctx); err != nil {
					app.Logger.Error("lexical_flush_failed", "error", err)
				}
			}
		}
	}()

	app.Logger.Info("indexer_subscribed", "subject", cfg.NATSSubject)
	err = app.Queue.SubscribeIssueIngested(ctx, func(handlerCtx context.Context, issueKey string) error {
		issueCtx, cancel := context.WithTimeout(handlerCtx, issueTimeout)
		defer cancel()

		indexerMetrics.StartIssue()
		start := time.Now()
		chunks, err := app.Indexer.IndexIssue(issueCtx, issueKey)
		indexerMetrics.FinishIssue("archive-indexer", time.Since(start), err)
		if err != nil {
			return err
		}
		indexerMetrics.AddChunks("archive-indexer", chunks)
		return nil
	})
	if err != nil {
		log.Fatalf("subscribe error: %v", err)
	}

	flushCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Indexer.Flush(flushCtx); err != nil {
		app.Logger.Error("final_lexical_flush_failed", "error", err)
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		app.Logger.Warn("metrics_shutdown_error", "error", err)
	}
}

func startMetricsServer(app *bootstrap.App, m *metrics.IndexerMetrics, port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	server := &http.Server{Addr: ":" + port, Handler: mux}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.Logger.Error("metrics_server_error", "error", err)
		}
	}()
	return server
}
