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

	httpadapter "github.com/archivelab/newspaper-search/internal/adapters/http"
	"github.com/archivelab/newspaper-search/internal/bootstrap"
	"github.com/archivelab/newspaper-search/internal/config"
	"github.com/archivelab/newspaper-search/internal/infrastructure/export"
	"github.com/archivelab/newspaper-search/internal/observability/metrics"
)

const usagePersistInterval = 5 * time.Minute

func main() {
	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.NewAPI(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	app.Usage.Restore(ctx)
	app.Usage.StartPeriodicPersist(ctx, usagePersistInterval)

	apiMetrics := metrics.NewAPIMetrics("archive-api")
	router := httpadapter.NewRouter(httpadapter.RouterOptions{
		Searcher:    app.Search,
		Answers:     app.Answers,
		Analyzer:    app.Analysis,
		Sessions:    app.Sessions,
		Usage:       app.Usage,
		ExcelWriter: export.NewExcelWriter(),
		PDFWriter:   export.NewPDFWriter(),
		Metrics:     apiMetrics,
		Logger:      app.Logger,
		AuthToken:   cfg.AuthToken,

		DefaultThreshold: cfg.RelevanceThreshold,
	})

	server := &http.Server{
		Addr:         ":" + cfg.APIPort,
		Handler:      router.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		app.Logger.Info("api_listening", "port", cfg.APIPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("api server error: %v", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		app.Logger.Error("api_shutdown_error", "error", err)
	}
	if err := app.Usage.Persist(shutdownCtx); err != nil {
		app.Logger.Warn("usage_final_persist_failed", "error", err)
	}
}
