// Copyright 2025 Poiesic Systems
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
	"bufio"
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/poiesic/websage"
	"github.com/poiesic/websage/ai"
	"github.com/poiesic/websage/ai/openai"
	"github.com/poiesic/websage/ingest"
	"github.com/poiesic/websage/lexical"
	"github.com/poiesic/websage/orchestrator"
	"github.com/poiesic/websage/reindex"
	"github.com/poiesic/websage/vectorstore"
)

// memoryTurns bounds the rolling conversation context in ask mode.
const memoryTurns = 4

func main() {
	storeFlag := &cli.StringFlag{
		Name:     "store",
		Aliases:  []string{"s"},
		Usage:    "Path to the vector store directory",
		Required: true,
	}
	aiFlags := []cli.Flag{
		&cli.StringFlag{
			Name:  "host",
			Usage: "OpenAI-compatible service host URL (embedding and chat)",
			Value: "http://localhost:11434/v1",
		},
		&cli.StringFlag{
			Name:  "embedding-model",
			Usage: "Embedding model name",
			Value: "embeddinggemma",
		},
		&cli.StringFlag{
			Name:  "chat-model",
			Usage: "Chat model name for planning and answering",
			Value: "qwen2.5:3b",
		},
		&cli.StringFlag{
			Name:  "api-key",
			Usage: "API key for hosted services",
		},
		&cli.IntFlag{
			Name:  "context-window",
			Usage: "Chat model context window in tokens (0 = unknown)",
		},
	}

	app := &cli.App{
		Name:  "websage",
		Usage: "Question answering over a single website's content",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:      "ingest",
				Usage:     "Ingest chunk records (JSONL) into the store",
				ArgsUsage: "FILE",
				Action:    ingestCommand,
				Flags: append([]cli.Flag{
					storeFlag,
					&cli.IntFlag{
						Name:  "dim",
						Usage: "Embedding dimension (required for a new store)",
					},
					&cli.StringFlag{
						Name:  "index",
						Usage: "Index kind for a new store (flat, hnsw, ivf_flat, ivf_pq)",
						Value: "flat",
					},
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to embed per request",
						Value: 32,
					},
					&cli.IntFlag{
						Name:  "pool-size",
						Usage: "Concurrent embedding workers",
						Value: 4,
					},
				}, aiFlags...),
			},
			{
				Name:      "ask",
				Usage:     "Ask a question, or start an interactive session",
				ArgsUsage: "[QUESTION]",
				Action:    askCommand,
				Flags: append([]cli.Flag{
					storeFlag,
					&cli.IntFlag{
						Name:  "top-k",
						Usage: "Base result count per search pass",
						Value: 8,
					},
					&cli.BoolFlag{
						Name:  "classic",
						Usage: "Use the rewrite-hop strategy instead of the planner",
					},
				}, aiFlags...),
			},
			{
				Name:      "search",
				Usage:     "Debug search: show dense and lexical hits for a query",
				ArgsUsage: "QUERY",
				Action:    searchCommand,
				Flags: append([]cli.Flag{
					storeFlag,
					&cli.IntFlag{
						Name:    "top-k",
						Aliases: []string{"k"},
						Usage:   "Number of hits per pass",
						Value:   8,
					},
				}, aiFlags...),
			},
			{
				Name:   "reembed",
				Usage:  "Re-embed all stored chunks with the configured model",
				Action: reembedCommand,
				Flags: append([]cli.Flag{
					storeFlag,
					&cli.IntFlag{
						Name:  "batch-size",
						Usage: "Number of chunks to process in each batch",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "report-interval",
						Usage: "Report progress every N chunks",
						Value: 100,
					},
					&cli.IntFlag{
						Name:  "max-retries",
						Usage: "Maximum retry attempts for failed operations",
						Value: 3,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				}, aiFlags...),
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func aiConfigFromFlags(c *cli.Context) *ai.Config {
	return ai.NewConfig(
		ai.WithHost(c.String("host")),
		ai.WithEmbeddingModel(c.String("embedding-model")),
		ai.WithChatModel(c.String("chat-model")),
		ai.WithAPIKey(c.String("api-key")),
		ai.WithContextWindow(c.Int("context-window")),
	)
}

func ingestCommand(c *cli.Context) error {
	path := c.Args().First()
	if path == "" {
		return fmt.Errorf("chunk record file is required (use - for stdin)")
	}

	input := os.Stdin
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open input: %w", err)
		}
		defer f.Close()
		input = f
	}

	engine, err := websage.Open(c.String("store"),
		websage.WithAIConfig(aiConfigFromFlags(c)),
		websage.WithIndex(c.Int("dim"), vectorstore.IndexKind(c.String("index"))))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer engine.Close()

	pipeline, err := engine.NewIngestPipeline(
		ingest.WithBatchSize(c.Int("batch-size")),
		ingest.WithPoolSize(c.Int("pool-size")))
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	defer pipeline.Release()

	stats, err := pipeline.Run(c.Context, ingest.JSONLSource(input))
	if err != nil {
		return fmt.Errorf("ingestion failed: %w", err)
	}

	engine.Refresh()
	if err := engine.Save(); err != nil {
		return fmt.Errorf("failed to save store: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Ingested %d chunks (%d skipped) in %d batches; store saved to %s\n",
		stats.Added, stats.Skipped, stats.Batches, c.String("store"))
	return nil
}

func askCommand(c *cli.Context) error {
	orchOpts := []orchestrator.Option{
		orchestrator.WithTopK(c.Int("top-k")),
		orchestrator.WithContextWindow(c.Int("context-window")),
	}
	if c.Bool("classic") {
		orchOpts = append(orchOpts, orchestrator.WithStrategy(orchestrator.StrategyClassic))
	}

	engine, err := websage.Open(c.String("store"),
		websage.WithAIConfig(aiConfigFromFlags(c)),
		websage.WithOrchestratorOptions(orchOpts...))
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer engine.Close()

	if question := strings.TrimSpace(strings.Join(c.Args().Slice(), " ")); question != "" {
		fmt.Println(engine.Query(c.Context, question, true, ""))
		return nil
	}

	return interactiveAsk(c.Context, engine)
}

// interactiveAsk runs a read-answer loop with a rolling memory of recent
// turns, so follow-up questions can reference earlier answers.
func interactiveAsk(ctx context.Context, engine *websage.Engine) error {
	fmt.Fprintln(os.Stderr, "Ask about the site (empty line to exit).")

	var turns []string
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Fprint(os.Stderr, "> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			break
		}

		answer := engine.Query(ctx, question, true, strings.Join(turns, "\n\n"))
		fmt.Println(answer)
		fmt.Println()

		turns = append(turns, fmt.Sprintf("Q: %s\nA: %s", question, answer))
		if len(turns) > memoryTurns {
			turns = turns[len(turns)-memoryTurns:]
		}
	}
	return scanner.Err()
}

func searchCommand(c *cli.Context) error {
	query := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if query == "" {
		return fmt.Errorf("query is required")
	}
	k := c.Int("top-k")

	store := vectorstore.New()
	if err := store.Load(c.String("store")); err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}

	aiConfig := aiConfigFromFlags(c)
	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	vector, err := embedder.EmbedText(c.Context, query)
	if err != nil {
		return fmt.Errorf("failed to embed query: %w", err)
	}

	dense, err := store.Search(vector, k)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}
	fmt.Printf("Dense hits (%d):\n", len(dense))
	for i, hit := range dense {
		fmt.Printf("%2d. %.4f  %s  [%s]\n", i+1, hit.Score, hit.Record.Url, hit.Record.TopHeading())
	}

	index := lexical.NewIndex(store.Records(), slog.Default())
	sparse := index.Search(query, k)
	fmt.Printf("\nBM25 hits (%d):\n", len(sparse))
	for i, hit := range sparse {
		fmt.Printf("%2d. %.4f  %s  [%s]\n", i+1, hit.Score, hit.Record.Url, hit.Record.TopHeading())
	}
	return nil
}

func reembedCommand(c *cli.Context) error {
	storePath := c.String("store")

	store := vectorstore.New()
	if err := store.Load(storePath); err != nil {
		return fmt.Errorf("failed to load store: %w", err)
	}

	aiConfig := aiConfigFromFlags(c)
	embedder, err := openai.NewEmbedder(aiConfig)
	if err != nil {
		return fmt.Errorf("failed to create embedder: %w", err)
	}

	config := &reindex.Config{
		BatchSize:      c.Int("batch-size"),
		ReportInterval: c.Int("report-interval"),
		MaxRetries:     c.Int("max-retries"),
		RetryDelay:     c.Duration("retry-delay"),
	}
	if config.BatchSize <= 0 {
		return fmt.Errorf("batch-size must be greater than 0")
	}
	if config.ReportInterval <= 0 {
		return fmt.Errorf("report-interval must be greater than 0")
	}
	if config.MaxRetries <= 0 {
		return fmt.Errorf("max-retries must be greater than 0")
	}

	reindexer, err := reindex.NewReindexer(store, embedder, config, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create reindexer: %w", err)
	}

	fmt.Fprintf(os.Stderr, "Store: %s\n", storePath)
	fmt.Fprintf(os.Stderr, "Embedding model: %s\n\n", aiConfig.EmbeddingModel)

	if err := reindexer.Run(c.Context); err != nil {
		return fmt.Errorf("reindexing failed: %w", err)
	}

	if err := store.Save(storePath); err != nil {
		return fmt.Errorf("failed to save store: %w", err)
	}
	return nil
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
