// Command ingest loads a directory of OCR text files into issue
// storage and publishes one issue-ingested event per file for the
// background indexer to pick up.
package main

import (
	"context"
	"flag"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/archivelab/newspaper-search/internal/config"
	"github.com/archivelab/newspaper-search/internal/infrastructure/ingest"
	natsqueue "github.com/archivelab/newspaper-search/internal/infrastructure/queue/nats"
	"github.com/archivelab/newspaper-search/internal/infrastructure/resilience"
	"github.com/archivelab/newspaper-search/internal/infrastructure/storage/localfs"
	"github.com/archivelab/newspaper-search/internal/observability/logging"
)

func main() {
	sourceDir := flag.String("source", "", "directory of OCR .txt files, one per issue")
	dryRun := flag.Bool("dry-run", false, "report what would be ingested without storing or publishing")
	flag.Parse()
	if *sourceDir == "" {
		log.Fatal("missing -source directory")
	}

	cfg := config.Load()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := logging.NewJSONLogger("archive-ingest", cfg.LogLevel)
	parser := ingest.NewMetadataParser()

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		log.Fatalf("issue storage: %v", err)
	}

	var queue *natsqueue.Queue
	if !*dryRun {
		queue, err = natsqueue.New(cfg.NATSURL, cfg.NATSSubject, natsqueue.Options{
			ResilienceExecutor: resilience.NewExecutor(resilience.DefaultPolicy()),
			Logger:             logger,
		})
		if err != nil {
			log.Fatalf("nats: %v", err)
		}
		defer queue.Close()
	}

	var ingested, skipped int
	err = filepath.WalkDir(*sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".txt") {
			return nil
		}

		rel, err := filepath.Rel(*sourceDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)

		meta, err := parser.Parse(key)
		if err != nil {
			logger.Warn("issue_key_unparseable", "key", key, "error", err)
			skipped++
			return nil
		}
		if *dryRun {
			logger.Info("would_ingest",
				"key", key,
				"newspaper", meta.NewspaperName,
				"date", meta.PublicationDate.Format("2006-01-02"),
			)
			ingested++
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		saveErr := storage.Save(ctx, key, f)
		f.Close()
		if saveErr != nil {
			return saveErr
		}
		if err := queue.PublishIssueIngested(ctx, key); err != nil {
			return err
		}
		logger.Info("issue_ingested", "key", key, "newspaper", meta.NewspaperName)
		ingested++
		return nil
	})
	if err != nil {
		log.Fatalf("ingest walk: %v", err)
	}
	logger.Info("ingest_complete", "ingested", ingested, "skipped", skipped)
}
