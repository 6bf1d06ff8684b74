package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/HelloJC24/BNGCIA/api"
	"github.com/HelloJC24/BNGCIA/chat"
	"github.com/HelloJC24/BNGCIA/config"
	"github.com/HelloJC24/BNGCIA/corpus"
	"github.com/HelloJC24/BNGCIA/crawler"
	"github.com/HelloJC24/BNGCIA/database"
	"github.com/HelloJC24/BNGCIA/embeddings"
	"github.com/HelloJC24/BNGCIA/llm"
	"github.com/HelloJC24/BNGCIA/logger"
	"github.com/HelloJC24/BNGCIA/retrieval"
	"github.com/HelloJC24/BNGCIA/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cfg := config.Load()
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger setup: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	switch os.Args[1] {
	case "build":
		buildCmd(cfg, log, os.Args[2:])
	case "ask":
		askCmd(cfg, log, os.Args[2:])
	case "interactive":
		interactiveCmd(cfg, log, os.Args[2:])
	case "search":
		searchCmd(cfg, log, os.Args[2:])
	case "stats":
		statsCmd(cfg, log)
	case "clear":
		clearCmd(cfg, log, os.Args[2:])
	case "migrate":
		migrateCmd(cfg, log, os.Args[2:])
	case "serve":
		serveCmd(cfg, log, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

// components bundles the pipeline pieces that every command shares. They are
// constructed once per process and passed by handle, never held in globals.
type components struct {
	corpusStore   corpus.Store
	conversations chat.ConversationStore
	builder       *corpus.Builder
	svc           *chat.Service
	close         func()
}

func newComponents(ctx context.Context, cfg config.Config, log *logger.Logger) (*components, error) {
	var (
		corpusStore   corpus.Store
		conversations chat.ConversationStore
		closers       []func()
	)

	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres connection: %w", err)
		}
		closers = append(closers, pool.Close)

		if err := database.EnsureCorpusSchema(ctx, pool, cfg.Embeddings.Dimension); err != nil {
			pool.Close()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		corpusStore = store.NewPostgresStore(pool, log)

		// Conversations live in Redis regardless of the corpus backend;
		// without Redis, history is simply disabled.
		if rdb, err := database.NewRedisClient(ctx, cfg.RedisURL); err != nil {
			log.Warn("redis unavailable, conversation history disabled", "error", err)
		} else {
			closers = append(closers, func() { _ = rdb.Close() })
			conversations = store.NewRedisStore(rdb, log)
		}
	case config.StoreRedis:
		rdb, err := database.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis connection: %w", err)
		}
		closers = append(closers, func() { _ = rdb.Close() })

		redisStore := store.NewRedisStore(rdb, log)
		corpusStore = redisStore
		conversations = redisStore
	case config.StoreFile:
		// Single-machine mode: corpus on local disk, no history backend.
		corpusStore = store.NewFileStore(cfg.CorpusFile, log)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", cfg.StoreBackend)
	}

	embedder, err := embeddings.NewEmbedder(cfg)
	if err != nil {
		return nil, fmt.Errorf("embedder setup: %w", err)
	}
	batch := embeddings.NewBatchEmbedder(embedder, cfg.Embeddings.BatchSize, cfg.Embeddings.Dimension, log)

	llmClient, err := llm.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("llm setup: %w", err)
	}

	fetcher := crawler.NewHTTPFetcher(cfg.RequestTimeout, cfg.UserAgent)
	pageSource := crawler.New(fetcher, log)

	builder := corpus.NewBuilder(pageSource, batch, corpusStore, log, corpus.BuilderConfig{
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
		MinChunkLen:  cfg.MinChunkLen,
	})

	retriever := retrieval.New(batch, cfg.SimilarityThreshold, log)
	svc := chat.NewService(corpusStore, conversations, retriever, llmClient, log, chat.Defaults{
		TopK:            cfg.TopK,
		MaxContextChars: cfg.MaxContextChars,
	})

	return &components{
		corpusStore:   corpusStore,
		conversations: conversations,
		builder:       builder,
		svc:           svc,
		close: func() {
			for _, closer := range closers {
				closer()
			}
		},
	}, nil
}

func buildCmd(cfg config.Config, log *logger.Logger, args []string) {
	flags := flag.NewFlagSet("build", flag.ExitOnError)
	urls := flags.String("urls", "", "comma-separated seed URLs (defaults to configured seeds)")
	force := flags.Bool("force", false, "rebuild even when a corpus already exists")
	if err := flags.Parse(args); err != nil {
		log.Fatal("parse build flags", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	comps, err := newComponents(ctx, cfg, log)
	if err != nil {
		log.Fatal("setup failed", "error", err)
	}
	defer comps.close()

	seeds := cfg.SeedURLs
	if strings.TrimSpace(*urls) != "" {
		seeds = splitList(*urls)
	}

	if !*force {
		existing, err := comps.corpusStore.Load(ctx)
		if err != nil {
			log.Fatal("check existing corpus", "error", err)
		}
		if len(existing) > 0 {
			fmt.Printf("Corpus already has %d chunks. Re-run with -force to rebuild.\n", len(existing))
			return
		}
	}

	chunks, err := comps.builder.Build(ctx, seeds, crawler.Options{
		SameHostOnly: cfg.SameHostOnly,
		MaxPages:     cfg.MaxPages,
	})
	if err != nil {
		log.Fatal("corpus build failed", "error", err)
	}

	stats := corpus.ComputeStats(chunks)
	color.Green("Corpus built: %d chunks from %d URLs (%d characters)", stats.TotalChunks, stats.UniqueURLs, stats.TotalCharacters)
}

func askCmd(cfg config.Config, log *logger.Logger, args []string) {
	flags := flag.NewFlagSet("ask", flag.ExitOnError)
	question := flags.String("question", "", "question to ask")
	userID := flags.String("user", "cli", "user id for conversation history")
	topK := flags.Int("top-k", 0, "number of chunks to retrieve (defaults to configured top-k)")
	if err := flags.Parse(args); err != nil {
		log.Fatal("parse ask flags", "error", err)
	}

	if strings.TrimSpace(*question) == "" {
		fmt.Print("Enter your question: ")
		scanner := bufio.NewScanner(os.Stdin)
		if scanner.Scan() {
			*question = scanner.Text()
		}
		if err := scanner.Err(); err != nil {
			log.Fatal("read question", "error", err)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	comps, err := newComponents(ctx, cfg, log)
	if err != nil {
		log.Fatal("setup failed", "error", err)
	}
	defer comps.close()

	resp, err := comps.svc.Ask(ctx, *question, *userID, chat.AskOptions{TopK: *topK})
	if err != nil {
		if errors.Is(err, chat.ErrNoCorpus) {
			log.Fatal("no corpus found, run 'build' first")
		}
		log.Fatal("ask failed", "error", err)
	}

	printAnswer(resp)
}

func interactiveCmd(cfg config.Config, log *logger.Logger, args []string) {
	flags := flag.NewFlagSet("interactive", flag.ExitOnError)
	userID := flags.String("user", "cli", "user id for conversation history")
	if err := flags.Parse(args); err != nil {
		log.Fatal("parse interactive flags", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	comps, err := newComponents(ctx, cfg, log)
	if err != nil {
		log.Fatal("setup failed", "error", err)
	}
	defer comps.close()

	color.Cyan("Interactive mode. Type 'quit' to exit, 'stats' for corpus info, or ask a question.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nQuestion: ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())

		switch strings.ToLower(question) {
		case "":
			continue
		case "quit", "exit", "q":
			return
		case "stats":
			chunks, err := comps.corpusStore.Load(ctx)
			if err != nil {
				color.Red("stats unavailable: %v", err)
				continue
			}
			stats := corpus.ComputeStats(chunks)
			fmt.Printf("Corpus has %d chunks from %d URLs\n", stats.TotalChunks, stats.UniqueURLs)
			continue
		}

		resp, err := comps.svc.Ask(ctx, question, *userID, chat.AskOptions{})
		if err != nil {
			if errors.Is(err, chat.ErrNoCorpus) {
				color.Red("No corpus found. Run 'build' first.")
				continue
			}
			color.Red("error: %v", err)
			continue
		}

		printAnswer(resp)
	}
}

func searchCmd(cfg config.Config, log *logger.Logger, args []string) {
	flags := flag.NewFlagSet("search", flag.ExitOnError)
	term := flags.String("term", "", "substring to look for in stored chunks")
	maxResults := flags.Int("max", 10, "maximum results to print")
	if err := flags.Parse(args); err != nil {
		log.Fatal("parse search flags", "error", err)
	}
	if strings.TrimSpace(*term) == "" {
		log.Fatal("search term is required")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	comps, err := newComponents(ctx, cfg, log)
	if err != nil {
		log.Fatal("setup failed", "error", err)
	}
	defer comps.close()

	chunks, err := comps.corpusStore.Load(ctx)
	if err != nil {
		log.Fatal("load corpus", "error", err)
	}

	needle := strings.ToLower(*term)
	found := 0
	for _, chunk := range chunks {
		if !strings.Contains(strings.ToLower(chunk.Text), needle) {
			continue
		}
		found++
		preview := chunk.Text
		if runes := []rune(preview); len(runes) > 200 {
			preview = string(runes[:200]) + "..."
		}
		fmt.Printf("%d. %s\n   %s\n", found, chunk.URL, preview)
		if found >= *maxResults {
			break
		}
	}
	if found == 0 {
		fmt.Printf("No chunks contain %q\n", *term)
	}
}

func statsCmd(cfg config.Config, log *logger.Logger) {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	comps, err := newComponents(ctx, cfg, log)
	if err != nil {
		log.Fatal("setup failed", "error", err)
	}
	defer comps.close()

	chunks, err := comps.corpusStore.Load(ctx)
	if err != nil {
		log.Fatal("load corpus", "error", err)
	}

	stats := corpus.ComputeStats(chunks)
	fmt.Println("--- CORPUS STATISTICS ---")
	fmt.Printf("Total chunks: %d\n", stats.TotalChunks)
	fmt.Printf("Unique URLs: %d\n", stats.UniqueURLs)
	fmt.Printf("Average chunk size: %d characters\n", stats.AverageChunkSize)
	fmt.Printf("Total characters: %d\n", stats.TotalCharacters)
	if len(stats.URLs) > 0 {
		fmt.Println("URLs in corpus:")
		for _, url := range stats.URLs {
			fmt.Printf("  - %s\n", url)
		}
	}
}

func clearCmd(cfg config.Config, log *logger.Logger, args []string) {
	flags := flag.NewFlagSet("clear", flag.ExitOnError)
	confirmed := flags.Bool("confirm", false, "skip confirmation prompt")
	if err := flags.Parse(args); err != nil {
		log.Fatal("parse clear flags", "error", err)
	}

	if !*confirmed {
		fmt.Print("This will permanently delete the stored corpus. Continue? [y/N]: ")
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			fmt.Println("clear aborted")
			return
		}
		answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
		if answer != "y" && answer != "yes" {
			fmt.Println("clear aborted")
			return
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	comps, err := newComponents(ctx, cfg, log)
	if err != nil {
		log.Fatal("setup failed", "error", err)
	}
	defer comps.close()

	if err := comps.corpusStore.Clear(ctx); err != nil {
		log.Fatal("clear corpus", "error", err)
	}
	fmt.Println("corpus cleared")
}

// migrateCmd copies a locally built corpus file into the configured server
// backend, for deployments that built offline before Redis or Postgres was
// available.
func migrateCmd(cfg config.Config, log *logger.Logger, args []string) {
	flags := flag.NewFlagSet("migrate", flag.ExitOnError)
	file := flags.String("file", cfg.CorpusFile, "local corpus file to migrate from")
	if err := flags.Parse(args); err != nil {
		log.Fatal("parse migrate flags", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	comps, err := newComponents(ctx, cfg, log)
	if err != nil {
		log.Fatal("setup failed", "error", err)
	}
	defer comps.close()

	local := store.NewFileStore(*file, log)
	chunks, err := local.Load(ctx)
	if err != nil {
		log.Fatal("load local corpus", "error", err)
	}
	if len(chunks) == 0 {
		log.Fatal("no local corpus found to migrate", "file", *file)
	}

	if err := comps.corpusStore.ReplaceAll(ctx, chunks); err != nil {
		log.Fatal("migrate corpus", "error", err)
	}
	color.Green("Migrated %d chunks from %s", len(chunks), *file)
}

func serveCmd(cfg config.Config, log *logger.Logger, args []string) {
	flags := flag.NewFlagSet("serve", flag.ExitOnError)
	addr := flags.String("addr", cfg.HTTPAddr, "listen address")
	if err := flags.Parse(args); err != nil {
		log.Fatal("parse serve flags", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	comps, err := newComponents(ctx, cfg, log)
	if err != nil {
		log.Fatal("setup failed", "error", err)
	}
	defer comps.close()

	local := store.NewFileStore(cfg.CorpusFile, log)
	server := &http.Server{
		Addr:              *addr,
		Handler:           api.New(cfg, log, comps.builder, comps.svc, comps.corpusStore, local),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn("server shutdown", "error", err)
		}
	}()

	log.Info("listening", "addr", *addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("server failed", "error", err)
	}
}

func printAnswer(resp chat.Response) {
	fmt.Println()
	color.Green("%s", resp.Answer)
	if len(resp.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for idx, source := range resp.Sources {
			fmt.Printf("%d. [%.3f] %s\n", idx+1, source.Score, source.URL)
		}
	}
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func printUsage() {
	fmt.Println("Usage: bngc-rag <command> [options]")
	fmt.Println("Commands:")
	fmt.Println("  build        Crawl the configured sites and build the retrieval corpus")
	fmt.Println("  ask          Ask a single question against the stored corpus")
	fmt.Println("  interactive  Ask questions in a loop")
	fmt.Println("  search       Substring search over stored chunks")
	fmt.Println("  stats        Show corpus statistics")
	fmt.Println("  clear        Delete the stored corpus")
	fmt.Println("  migrate      Copy a local corpus file into the configured backend")
	fmt.Println("  serve        Run the HTTP API")
}
