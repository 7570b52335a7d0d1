// Package main is the tanya CLI entry point.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/warunglabs/tanya/internal/config"
	"github.com/warunglabs/tanya/internal/embedding"
	"github.com/warunglabs/tanya/internal/faqindex"
	"github.com/warunglabs/tanya/internal/jobs"
	"github.com/warunglabs/tanya/internal/keyword"
	"github.com/warunglabs/tanya/internal/models"
	"github.com/warunglabs/tanya/internal/reconcile"
	"github.com/warunglabs/tanya/internal/server"
	"github.com/warunglabs/tanya/internal/storage"
	"github.com/warunglabs/tanya/internal/vector"
	"github.com/warunglabs/tanya/internal/watch"
	"github.com/warunglabs/tanya/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tanya/config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	switch os.Args[1] {
	case "server":
		runServer()
	case "query":
		runQuery()
	case "stats":
		runStats()
	case "reconcile":
		runReconcile()
	case "version":
		fmt.Printf("tanya %s\n", version)
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Usage: tanya <command> [flags]

Commands:
  server      run the FAQ API server
  query       ask a question against a running server
  stats       show index statistics from a running server
  reconcile   trigger reconciliation against the authoritative source
  version     print version`)
}

// loadConfig loads config from path. When path is the default, config.yaml
// in the current directory wins if it exists, so running from the project
// dir uses the project's config.
func loadConfig(path string) (*config.Config, error) {
	if path == defaultConfigPath {
		if cwd, err := os.Getwd(); err == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				return config.Load(fallback)
			}
		}
	}
	return config.Load(path)
}

func newEmbedder(cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	var (
		embedder embedding.Embedder
		err      error
	)
	switch cfg.Provider {
	case "openai":
		embedder, err = embedding.NewOpenAIEmbedder(
			os.Getenv(cfg.APIKeyEnv), cfg.BaseURL, cfg.Model, cfg.Dimensions)
	case "onnx":
		embedder, err = embedding.NewONNXEmbedder(cfg.ModelPath, cfg.Dimensions, cfg.MaxTokens)
	case "mock":
		embedder = embedding.NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return embedding.WithCache(embedder, cfg.CacheSize), nil
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "path to config file")
	_ = fs.Parse(os.Args[2:])

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	embedder, err := newEmbedder(&cfg.Embedding)
	if err != nil {
		logger.Fatal("init embedder", zap.Error(err))
	}
	defer embedder.Close()

	index, err := vector.NewFlatIndex(cfg.Embedding.Dimensions)
	if err != nil {
		logger.Fatal("init vector index", zap.Error(err))
	}
	store, err := storage.NewSQLiteStore(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Fatal("init snapshot store", zap.Error(err))
	}
	defer store.Close()

	keywords, err := keyword.NewBleveIndex(cfg.Storage.KeywordIndexPath)
	if err != nil {
		logger.Fatal("init keyword index", zap.Error(err))
	}
	defer keywords.Close()

	manager := faqindex.NewManager(embedder, index, &cfg.Query,
		faqindex.WithLogger(logger),
		faqindex.WithSnapshotStore(store, cfg.Storage.VectorIndexPath),
		faqindex.WithKeywordIndex(keywords),
	)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := manager.Restore(ctx); err != nil {
		logger.Warn("restore snapshot failed, starting empty", zap.Error(err))
	} else if manager.Size() > 0 {
		logger.Info("restored index snapshot", zap.Int("faqs", manager.Size()))
	}

	runner := jobs.NewRunner(jobs.WithLogger(logger))

	source := reconcile.NewHTTPSource(
		cfg.Source.URL,
		os.Getenv(cfg.Source.TokenEnv),
		time.Duration(cfg.Source.TimeoutSeconds)*time.Second,
	)
	reconciler := reconcile.NewReconciler(manager, source,
		reconcile.WithLogger(logger),
		reconcile.WithReportStore(store),
	)

	if cfg.Import.Directory != "" {
		watcher := watch.NewWatcher(cfg.Import.Directory, manager, watch.WithLogger(logger))
		if err := watcher.Start(ctx); err != nil {
			logger.Error("start import watcher", zap.Error(err))
		} else {
			defer watcher.Stop()
			logger.Info("watching import directory", zap.String("dir", cfg.Import.Directory))
		}
	}

	srv := server.NewServer(manager, reconciler, keywords, runner, cfg, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", zap.Error(err))
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Stop(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
	}
	runner.Wait()
	if err := manager.Snapshot(shutdownCtx); err != nil {
		logger.Error("final snapshot failed", zap.Error(err))
	}
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "server address")
	topK := fs.Int("top-k", 0, "number of candidates (0 = server default)")
	threshold := fs.Float64("threshold", 0, "similarity threshold (0 = server default)")
	_ = fs.Parse(os.Args[2:])
	if fs.NArg() < 1 {
		fmt.Fprintln(os.Stderr, "usage: tanya query [flags] <question>")
		os.Exit(1)
	}

	body, err := json.Marshal(models.QueryInput{
		Query:     fs.Arg(0),
		TopK:      *topK,
		Threshold: *threshold,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode request: %v\n", err)
		os.Exit(1)
	}
	printResponse(http.Post(*addr+"/api/v1/query", "application/json", bytes.NewReader(body)))
}

func runStats() {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "server address")
	_ = fs.Parse(os.Args[2:])
	printResponse(http.Get(*addr + "/api/v1/index/stats"))
}

func runReconcile() {
	fs := flag.NewFlagSet("reconcile", flag.ExitOnError)
	addr := fs.String("addr", "http://localhost:8080", "server address")
	status := fs.Bool("status", false, "show last report instead of triggering a run")
	_ = fs.Parse(os.Args[2:])
	if *status {
		printResponse(http.Get(*addr + "/api/v1/reconcile/status"))
		return
	}
	printResponse(http.Post(*addr+"/api/v1/reconcile", "application/json", nil))
}

// printResponse pretty-prints a JSON API response and exits non-zero on
// transport errors or non-2xx statuses.
func printResponse(resp *http.Response, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read response: %v\n", err)
		os.Exit(1)
	}
	var pretty bytes.Buffer
	if json.Indent(&pretty, data, "", "  ") == nil {
		fmt.Println(pretty.String())
	} else {
		fmt.Println(string(data))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		os.Exit(1)
	}
}
