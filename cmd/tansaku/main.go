// Package main is the Tansaku CLI entry point.
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
	"strings"
	"syscall"
	"time"

	"github.com/hyperjump/tansaku/internal/cli"
	"github.com/hyperjump/tansaku/internal/cluster"
	"github.com/hyperjump/tansaku/internal/config"
	"github.com/hyperjump/tansaku/internal/embedding"
	"github.com/hyperjump/tansaku/internal/models"
	"github.com/hyperjump/tansaku/internal/plan"
	"github.com/hyperjump/tansaku/internal/schema"
	"github.com/hyperjump/tansaku/internal/search"
	"github.com/hyperjump/tansaku/internal/server"
	"github.com/hyperjump/tansaku/internal/solr"
	"github.com/hyperjump/tansaku/pkg/utils"
	"go.uber.org/zap"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/tansaku/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks
// for config.yaml in the current directory (for development); if that exists
// it is used, so that "tansaku server" from the project dir uses the project's
// config (including debug).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	switch command {
	case "server":
		runServer()
	case "query":
		runQuery()
	case "collections":
		runCollections()
	case "version", "--version", "-v":
		fmt.Printf("tansaku version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

func runServer() {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging (membership changes, compiled plans, etc.)")
	_ = fs.Parse(os.Args[2:])

	cfg, resolvedConfigPath, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	debugMode := cfg.Debug || *debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("config loaded",
		zap.String("config_path", resolvedConfigPath),
		zap.Bool("debug", debugMode),
	)

	sch, err := schema.Load(cfg.Schema.Path)
	if err != nil {
		logger.Fatal("Failed to load schema", zap.Error(err))
	}
	logger.Info("schema loaded",
		zap.String("path", cfg.Schema.Path),
		zap.String("collection", sch.Collection()),
		zap.Int("fields", len(sch.Fields())),
	)

	httpClient := &http.Client{Timeout: cfg.Solr.ConnectTimeout()}

	coord, err := newCoordinator(cfg, httpClient, logger)
	if err != nil {
		logger.Fatal("Failed to create cluster coordinator", zap.Error(err))
	}
	resolver := cluster.NewResolver(coord, cfg.Query.UnhealthyCoolDown(), logger)
	startCtx, startCancel := context.WithTimeout(context.Background(), cfg.Solr.ConnectTimeout())
	err = resolver.Start(startCtx)
	startCancel()
	if err != nil {
		logger.Fatal("Failed to start cluster resolver", zap.Error(err))
	}
	defer resolver.Close()

	watchCtx, watchCancel := context.WithCancel(context.Background())
	defer watchCancel()
	if err := schema.WatchFile(watchCtx, cfg.Schema.Path, logger); err != nil {
		logger.Warn("schema file watch unavailable", zap.Error(err))
	}

	client := solr.NewClient(resolver, httpClient, cfg.Solr.MaxRetries, logger)

	embedder, err := newEmbedder(cfg, httpClient)
	if err != nil {
		logger.Fatal("Failed to create embedder", zap.Error(err))
	}
	defer embedder.Close()

	engine := search.NewEngine(sch, client, embedder, queryLimits(cfg), logger)

	srv := server.NewServer(engine, sch, resolver, &cfg.Server, logger)
	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("Shutting down...")
	watchCancel()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Stop(ctx)
}

// newCoordinator picks ZooKeeper membership when hosts are configured,
// otherwise the static endpoint list.
func newCoordinator(cfg *config.Config, httpClient *http.Client, logger *zap.Logger) (cluster.Coordinator, error) {
	if len(cfg.ZooKeeper.Hosts) > 0 {
		return cluster.NewZKCoordinator(
			cfg.ZooKeeper.Hosts,
			cfg.ZooKeeper.LiveNodesPath,
			cfg.ZooKeeper.CollectionsPath,
			cfg.ZooKeeper.SessionTimeout(),
			cfg.ZooKeeper.MaxBackoff(),
			logger,
		)
	}
	logger.Info("no zookeeper hosts configured; using static cluster membership",
		zap.Strings("endpoints", cfg.Solr.StaticEndpoints),
	)
	return cluster.NewStaticCoordinator(cfg.Solr.StaticEndpoints, httpClient)
}

func newEmbedder(cfg *config.Config, httpClient *http.Client) (embedding.Embedder, error) {
	inner, err := embedding.NewOllamaEmbedder(cfg.Embedding.URL, cfg.Embedding.Model, cfg.Embedding.Dimensions, httpClient)
	if err != nil {
		return nil, err
	}
	return embedding.NewCachedEmbedder(inner, cfg.Embedding.CacheSize), nil
}

func queryLimits(cfg *config.Config) plan.Limits {
	return plan.Limits{
		DefaultRows:          cfg.Query.DefaultRows,
		MaxRows:              cfg.Query.MaxRows,
		MaxOffset:            cfg.Query.MaxOffset,
		InExpansionThreshold: cfg.Query.InExpansionThreshold,
	}
}

func printQueryUsage(fs *flag.FlagSet) {
	fmt.Fprintf(fs.Output(), "Usage: tansaku query [flags] <sql>\n\n")
	fmt.Fprintf(fs.Output(), "The SQL statement is all remaining arguments joined by spaces, so multi-word statements work with or without quotes.\n\n")
	fs.PrintDefaults()
	fmt.Fprintf(fs.Output(), `
A vector clause turns the query hybrid: the WHERE clause pre-filters the
candidate set and results are ordered by the fused score.
  • --vector-text embeds free text server-side; --alpha weights vector vs keyword.
  • Without SQL, pass --collection for a pure vector search.

Examples:
  tansaku query SELECT id, title FROM docs WHERE section = 'intro' LIMIT 10
  tansaku query --vector-field embedding --vector-text "database indexing" --top-k 50 --alpha 0.7 SELECT id FROM docs WHERE views > 100
  tansaku query --collection docs --vector-field embedding --vector-text "database indexing" --top-k 10 --alpha 1
`)
}

// buildStatement joins all positional args with spaces so multi-word SQL works
// the same with or without shell quoting.
func buildStatement(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// queryArgsReorder moves any flags (and their values) that appear after the
// SQL to the front of the slice so that flag.Parse() sees them. Go's flag
// package stops at the first non-flag argument, so
// "tansaku query SELECT ... --alpha 0.7" would otherwise leave --alpha unparsed.
func queryArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func runQuery() {
	fs := flag.NewFlagSet("query", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "gateway URL")
	collection := fs.String("collection", "", "collection for vector-only queries (SQL queries name it in FROM)")
	vectorField := fs.String("vector-field", "", "dense-vector field for similarity search")
	vectorText := fs.String("vector-text", "", "free text to embed as the query vector")
	topK := fs.Int("top-k", 0, "number of nearest candidates to rank")
	alpha := fs.Float64("alpha", 0, "fusion weight in [0,1]: 0 = keyword only, 1 = vector only")
	limit := fs.Int("limit", 0, "page size for vector-only queries")
	offset := fs.Int("offset", 0, "page offset for vector-only queries")
	outputFormat := fs.String("output", "text", "output format: text, compact, or json")
	fs.Usage = func() { printQueryUsage(fs) }
	_ = fs.Parse(queryArgsReorder(os.Args[2:]))

	sql := buildStatement(fs.Args())
	if sql == "" && *vectorField == "" {
		printQueryUsage(fs)
		os.Exit(1)
	}

	format, err := cli.ParseOutputFormat(*outputFormat)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}

	req := &models.Request{
		SQL:        sql,
		Collection: *collection,
		Limit:      *limit,
		Offset:     *offset,
	}
	if *vectorField != "" {
		req.Vector = &models.VectorSpec{
			Field: *vectorField,
			Text:  *vectorText,
			TopK:  *topK,
			Alpha: *alpha,
		}
	}

	page, err := queryViaHTTP(*serverURL, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Query failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteResultPage(os.Stdout, page, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func queryViaHTTP(serverURL string, req *models.Request) (*models.ResultPage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	resp, err := http.Post(serverURL+"/api/v1/query", "application/json", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	var page models.ResultPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &page, nil
}

func runCollections() {
	fs := flag.NewFlagSet("collections", flag.ExitOnError)
	serverURL := fs.String("server", "http://localhost:8080", "gateway URL")
	_ = fs.Parse(os.Args[2:])

	resp, err := http.Get(*serverURL + "/api/v1/collections")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Request failed: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		fmt.Fprintf(os.Stderr, "Gateway returned %d: %s\n", resp.StatusCode, strings.TrimSpace(string(b)))
		os.Exit(1)
	}
	var out struct {
		Collections []string `json:"collections"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		fmt.Fprintf(os.Stderr, "Decode failed: %v\n", err)
		os.Exit(1)
	}
	for _, name := range out.Collections {
		fmt.Println(name)
	}
}

func printUsage() {
	fmt.Println(`Tansaku - SQL-to-Solr hybrid query gateway

Usage:
  tansaku <command> [flags]

Commands:
  server        Start the query gateway server
  query         Run a query against a running gateway
  collections   List collections known to the cluster
  version       Show version
  help          Show this help

Run "tansaku <command> -h" for command flags.`)
}
