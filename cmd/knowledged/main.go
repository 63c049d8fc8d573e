// Copyright 2025 Voxhive Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	knowledged "github.com/voxhive/knowledged"
	"github.com/voxhive/knowledged/ai"
	"github.com/voxhive/knowledged/ai/openai"
	"github.com/voxhive/knowledged/api"
	"github.com/voxhive/knowledged/extract"
	"github.com/voxhive/knowledged/ingestion"
	"github.com/voxhive/knowledged/reembed"
	"github.com/voxhive/knowledged/storage/badger"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "knowledged",
		Usage: "Document knowledge base with semantic search",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file before parsing flags",
				Value: ".env",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the ingestion pipeline and HTTP API",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "db",
						Aliases: []string{"d"},
						Usage:   "Path to BadgerDB database directory",
						Value:   "./knowledged-db",
						EnvVars: []string{"KNOWLEDGED_DB"},
					},
					&cli.StringFlag{
						Name:    "listen",
						Usage:   "HTTP listen address",
						Value:   ":4010",
						EnvVars: []string{"KNOWLEDGED_LISTEN"},
					},
					&cli.StringFlag{
						Name:    "embedding-host",
						Usage:   "Embedding service host URL",
						Value:   "http://localhost:11434/v1",
						EnvVars: []string{"EMBEDDING_HOST"},
					},
					&cli.StringFlag{
						Name:    "embedding-api-key",
						Usage:   "Embedding service API key (empty starts the embedder disabled)",
						EnvVars: []string{"EMBEDDING_API_KEY"},
					},
					&cli.StringFlag{
						Name:    "embedding-model",
						Usage:   "Embedding model name",
						Value:   "text-embedding-3-small",
						EnvVars: []string{"EMBEDDING_MODEL"},
					},
					&cli.IntFlag{
						Name:    "embed-dim",
						Usage:   "Expected embedding dimensionality",
						Value:   1024,
						EnvVars: []string{"EMBED_DIM"},
					},
					&cli.DurationFlag{
						Name:    "embed-timeout",
						Usage:   "Timeout for a single embedding call",
						Value:   30 * time.Second,
						EnvVars: []string{"EMBED_TIMEOUT"},
					},
					&cli.IntFlag{
						Name:    "batch-size-small",
						Usage:   "Embedding batch size for documents at or under the threshold",
						Value:   50,
						EnvVars: []string{"BATCH_SIZE_SMALL"},
					},
					&cli.IntFlag{
						Name:    "batch-size-large",
						Usage:   "Embedding batch size for documents over the threshold",
						Value:   25,
						EnvVars: []string{"BATCH_SIZE_LARGE"},
					},
					&cli.IntFlag{
						Name:    "batch-threshold",
						Usage:   "Chunk count above which a document counts as large",
						Value:   100,
						EnvVars: []string{"BATCH_THRESHOLD"},
					},
					&cli.IntFlag{
						Name:    "max-text-len",
						Usage:   "Maximum extracted text length in bytes",
						Value:   3_000_000,
						EnvVars: []string{"MAX_TEXT_LEN"},
					},
					&cli.IntFlag{
						Name:    "chunk-size",
						Usage:   "Target chunk size in characters",
						Value:   1200,
						EnvVars: []string{"CHUNK_SIZE"},
					},
					&cli.IntFlag{
						Name:    "workers",
						Usage:   "Ingestion worker pool size",
						Value:   4,
						EnvVars: []string{"INGEST_WORKERS"},
					},
					&cli.DurationFlag{
						Name:    "lease",
						Usage:   "Job lease duration",
						Value:   60 * time.Second,
						EnvVars: []string{"JOB_LEASE"},
					},
					&cli.IntFlag{
						Name:    "max-job-attempts",
						Usage:   "Lease attempts before a job's document is marked failed",
						Value:   2,
						EnvVars: []string{"MAX_JOB_ATTEMPTS"},
					},
					&cli.IntFlag{
						Name:    "max-batch-retries",
						Usage:   "Retry attempts per embedding batch",
						Value:   3,
						EnvVars: []string{"MAX_BATCH_RETRIES"},
					},
					&cli.DurationFlag{
						Name:    "cache-ttl",
						Usage:   "Search result cache TTL (0 disables the cache)",
						Value:   30 * time.Second,
						EnvVars: []string{"SEARCH_CACHE_TTL"},
					},
				},
			},
			{
				Name:   "reembed",
				Usage:  "Reembed a company's completed documents with new embeddings",
				Action: reembedCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "db",
						Aliases:  []string{"d"},
						Usage:    "Path to BadgerDB database directory",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "company",
						Usage:    "Company whose documents to reembed",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "embedding-host",
						Usage: "Embedding service host URL",
						Value: "http://localhost:11434/v1",
					},
					&cli.StringFlag{
						Name:    "embedding-api-key",
						Usage:   "Embedding service API key",
						EnvVars: []string{"EMBEDDING_API_KEY"},
					},
					&cli.StringFlag{
						Name:     "embedding-model",
						Usage:    "Embedding model name",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "embed-dim",
						Usage: "Expected embedding dimensionality",
						Value: 1024,
					},
					&cli.IntFlag{
						Name:  "max-text-len",
						Usage: "Maximum extracted text length in bytes",
						Value: 3_000_000,
					},
					&cli.IntFlag{
						Name:  "chunk-size",
						Usage: "Target chunk size in characters",
						Value: 1200,
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed in each batch",
						Value: 50,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N documents",
						Value: 10,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed batches",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
		},
	}
}

func serveCommand(c *cli.Context) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("embedding-host")),
		ai.WithAPIKey(c.String("embedding-api-key")),
		ai.WithModel(c.String("embedding-model")),
		ai.WithDimension(c.Int("embed-dim")),
		ai.WithTimeout(c.Duration("embed-timeout")),
	)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid embedding configuration: %w", err)
	}

	svc, err := knowledged.NewService(c.String("db"),
		knowledged.WithAIConfig(aiConfig),
		knowledged.WithIngestionConfig(ingestion.Config{
			Workers:           c.Int("workers"),
			JobLease:          c.Duration("lease"),
			MaxJobAttempts:    c.Int("max-job-attempts"),
			MaxBatchRetries:   c.Int("max-batch-retries"),
			LargeDocThreshold: c.Int("batch-threshold"),
			SmallDocBatchSize: c.Int("batch-size-small"),
			LargeDocBatchSize: c.Int("batch-size-large"),
		}),
		knowledged.WithChunkSize(c.Int("chunk-size")),
		knowledged.WithMaxTextLen(c.Int("max-text-len")),
		knowledged.WithSearchCache(c.Duration("cache-ttl"), 1024),
	)
	if err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Close()

	svc.Start(ctx)

	server := api.NewServer(c.String("listen"), svc, slog.Default())

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	slog.Info("knowledged started", "listen", c.String("listen"), "db", c.String("db"))

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	ctx := context.Background()

	backend, err := badger.OpenBackend(c.String("db"), false)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer backend.Close()

	documents, err := badger.NewDocumentRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create document repository: %w", err)
	}
	vectors, err := badger.NewVectorRepository(backend)
	if err != nil {
		return fmt.Errorf("failed to create vector repository: %w", err)
	}
	blobs, err := badger.NewBlobStore(backend)
	if err != nil {
		return fmt.Errorf("failed to create blob store: %w", err)
	}

	aiConfig := ai.NewConfig(
		ai.WithHost(c.String("embedding-host")),
		ai.WithAPIKey(c.String("embedding-api-key")),
		ai.WithModel(c.String("embedding-model")),
		ai.WithDimension(c.Int("embed-dim")),
	)
	if err := aiConfig.Validate(); err != nil {
		return fmt.Errorf("invalid embedding configuration: %w", err)
	}

	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	reembedConfig := &reembed.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if reembedConfig.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if reembedConfig.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if reembedConfig.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	reembedder := reembed.NewReembedder(
		documents,
		vectors,
		blobs,
		extract.NewExtractor(c.Int("max-text-len")),
		extract.NewChunker(c.Int("chunk-size")),
		embedder,
		reembedConfig,
		os.Stderr,
	)

	fmt.Fprintf(os.Stderr, "Database: %s\n", c.String("db"))
	fmt.Fprintf(os.Stderr, "Company: %s\n", c.String("company"))
	fmt.Fprintf(os.Stderr, "Embedding host: %s\n", c.String("embedding-host"))
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n", c.String("embedding-model"))
	fmt.Fprintln(os.Stderr)

	if err := reembedder.Run(ctx, c.String("company")); err != nil {
		return fmt.Errorf("reembedding failed: %w", err)
	}

	return nil
}

func setup(c *cli.Context) error {
	// Missing env files are fine; an explicitly named one must exist.
	envFile := c.String("env-file")
	if err := godotenv.Load(envFile); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
		if c.IsSet("env-file") {
			return fmt.Errorf("env file %s not found", envFile)
		}
	}
	return setupLogger(c)
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
