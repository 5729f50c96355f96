package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/photoclaim/internal/claims"
	"github.com/your-org/photoclaim/internal/config"
	"github.com/your-org/photoclaim/internal/extract"
	"github.com/your-org/photoclaim/internal/match"
	"github.com/your-org/photoclaim/internal/observability"
	"github.com/your-org/photoclaim/internal/pipeline"
	"github.com/your-org/photoclaim/internal/queue"
	"github.com/your-org/photoclaim/internal/storage"
	"github.com/your-org/photoclaim/internal/sweeper"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	logger := slog.Default()

	slog.Info("starting photoclaim worker",
		"workers", cfg.Processing.WorkerCount,
		"max_retries", cfg.Processing.MaxRetries,
	)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		slog.Error("apply migrations", "error", err)
		os.Exit(1)
	}

	// Connect to MinIO
	objects, err := storage.NewObjectStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Nearest-neighbor backend: pgvector in the database, or an in-process
	// HNSW snapshot rebuilt on an interval.
	var searcher match.Searcher = db
	if cfg.Matching.Index == "memory" {
		synced := match.NewSyncedIndex(db, cfg.Matching.IndexRebuildInterval, logger)
		if err := synced.Rebuild(ctx); err != nil {
			slog.Error("build embedding index", "error", err)
			os.Exit(1)
		}
		go synced.Run(ctx)
		searcher = synced
		slog.Info("using in-memory embedding index", "rebuild_interval", cfg.Matching.IndexRebuildInterval)
	}

	extractor := extract.NewHTTPExtractor(cfg.Extractor)
	engine := match.NewEngine(searcher, cfg.Matching)
	resolver := claims.NewResolver(db, cfg.Matching)

	processor := pipeline.NewProcessor(db, objects, extractor, engine, resolver,
		producer, cfg.Processing, logger)

	// Create NATS consumer
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	// Redeliveries stop once the photo itself is out of retries.
	maxDeliver := cfg.Processing.MaxRetries + 1
	err = consumer.ConsumePhotoTasks(ctx, "photo-workers", processor.Handler(),
		cfg.Processing.WorkerCount, maxDeliver, cfg.Processing.BackoffDelay)
	if err != nil {
		slog.Error("start photo task consumer", "error", err)
		os.Exit(1)
	}

	// Table scanner: re-enqueues missed work, rescues orphaned photos
	scanner := pipeline.NewScanner(db, producer, cfg.Processing, logger)
	go scanner.Run(ctx)

	// Retention sweeper
	sw := sweeper.NewSweeper(db, objects, cfg.Retention, logger)
	go sw.Run(ctx)

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}
