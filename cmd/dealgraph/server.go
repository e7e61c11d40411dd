package dealgraph

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dealgraph/dealgraph"
	"github.com/dealgraph/dealgraph/pkg/checkpoint"
	"github.com/dealgraph/dealgraph/pkg/config"
	"github.com/dealgraph/dealgraph/pkg/crossencoder"
	"github.com/dealgraph/dealgraph/pkg/driver"
	"github.com/dealgraph/dealgraph/pkg/embedder"
	"github.com/dealgraph/dealgraph/pkg/logger"
	"github.com/dealgraph/dealgraph/pkg/nlp"
	"github.com/dealgraph/dealgraph/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the DealGraph HTTP server",
	Long: `Start the DealGraph HTTP server to provide REST API access to the
intelligence layer.

The server provides endpoints for:
- Ingesting episodes (documents, Q&A responses, analyst notes)
- Hybrid retrieval with citations
- Contradiction sweeps and resolution
- Entity merge and split overrides
- Current truth and finding history

Configuration can be provided through config files, environment variables, or
command-line flags.`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(serverCmd)

	serverCmd.Flags().String("host", "localhost", "Server host")
	serverCmd.Flags().Int("port", 8080, "Server port")
	serverCmd.Flags().String("mode", "release", "Server mode (debug, release, test)")

	serverCmd.Flags().String("db-driver", "neo4j", "Database driver (neo4j, memory)")
	serverCmd.Flags().String("db-uri", "bolt://localhost:7687", "Database URI")
	serverCmd.Flags().String("db-username", "neo4j", "Database username")
	serverCmd.Flags().String("db-password", "", "Database password")
	serverCmd.Flags().String("db-database", "neo4j", "Database name")

	serverCmd.Flags().String("nlp-model", "", "Language model")
	serverCmd.Flags().String("nlp-api-key", "", "Language model API key")
	serverCmd.Flags().String("nlp-base-url", "", "Language model base URL")

	serverCmd.Flags().String("embedding-model", "", "Embedding model")
	serverCmd.Flags().String("embedding-api-key", "", "Embedding API key")

	serverCmd.Flags().String("reranker-provider", "", "Reranker provider (openai, local)")

	serverCmd.Flags().String("checkpoint-dir", "", "Directory for sweep checkpoints")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	overrideConfigWithFlags(cmd, cfg)

	if err := validateServerConfig(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)

	graph, err := initializeGraph(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize DealGraph: %w", err)
	}
	defer graph.Close(context.Background())

	srv := server.New(cfg, graph, log)
	srv.Setup()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		log.Info("received signal", "signal", sig.String())

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		log.Info("server stopped gracefully")
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode, _ = cmd.Flags().GetString("mode")
	}

	if cmd.Flags().Changed("db-driver") {
		cfg.Database.Driver, _ = cmd.Flags().GetString("db-driver")
	}
	if cmd.Flags().Changed("db-uri") {
		cfg.Database.URI, _ = cmd.Flags().GetString("db-uri")
	}
	if cmd.Flags().Changed("db-username") {
		cfg.Database.Username, _ = cmd.Flags().GetString("db-username")
	}
	if cmd.Flags().Changed("db-password") {
		cfg.Database.Password, _ = cmd.Flags().GetString("db-password")
	}
	if cmd.Flags().Changed("db-database") {
		cfg.Database.Database, _ = cmd.Flags().GetString("db-database")
	}

	if cmd.Flags().Changed("nlp-model") {
		cfg.NLP.Model, _ = cmd.Flags().GetString("nlp-model")
	}
	if cmd.Flags().Changed("nlp-api-key") {
		cfg.NLP.APIKey, _ = cmd.Flags().GetString("nlp-api-key")
	}
	if cmd.Flags().Changed("nlp-base-url") {
		cfg.NLP.BaseURL, _ = cmd.Flags().GetString("nlp-base-url")
	}

	if cmd.Flags().Changed("embedding-model") {
		cfg.Embedding.Model, _ = cmd.Flags().GetString("embedding-model")
	}
	if cmd.Flags().Changed("embedding-api-key") {
		cfg.Embedding.APIKey, _ = cmd.Flags().GetString("embedding-api-key")
	}

	if cmd.Flags().Changed("reranker-provider") {
		cfg.Reranker.Provider, _ = cmd.Flags().GetString("reranker-provider")
	}

	if cmd.Flags().Changed("checkpoint-dir") {
		cfg.Checkpoint.Dir, _ = cmd.Flags().GetString("checkpoint-dir")
	}
}

func validateServerConfig(cfg *config.Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}
	if cfg.Database.Driver == "neo4j" && cfg.Database.URI == "" {
		return fmt.Errorf("database URI is required")
	}
	return nil
}

// initializeGraph constructs the full client: graph driver, language model
// with retry and circuit breaking, cached embedder, and reranker.
func initializeGraph(cfg *config.Config) (*dealgraph.Client, error) {
	log := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)

	var graphDriver driver.GraphDriver
	switch cfg.Database.Driver {
	case "neo4j":
		d, err := driver.NewNeo4jDriver(cfg.Database.URI, cfg.Database.Username, cfg.Database.Password, cfg.Database.Database)
		if err != nil {
			return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
		}
		graphDriver = d
	case "memory":
		graphDriver = driver.NewMemoryDriver()
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	var nlpClient nlp.Client
	if cfg.NLP.APIKey != "" {
		base := nlp.NewOpenAIClient(cfg.NLP.APIKey, nlp.Config{
			Model:       cfg.NLP.Model,
			Temperature: &cfg.NLP.Temperature,
			MaxTokens:   &cfg.NLP.MaxTokens,
			BaseURL:     cfg.NLP.BaseURL,
		})
		nlpClient = nlp.NewRetryClient(base, nlp.DefaultRetryConfig())
		if cfg.CircuitBreaker.Enabled {
			nlpClient = nlp.NewCircuitBreakerClient(nlpClient, nlp.CircuitBreakerConfig{
				Enabled:          cfg.CircuitBreaker.Enabled,
				MaxRequests:      cfg.CircuitBreaker.MaxRequests,
				Interval:         cfg.CircuitBreaker.Interval,
				Timeout:          cfg.CircuitBreaker.Timeout,
				ReadyToTripRatio: cfg.CircuitBreaker.ReadyToTripRatio,
			}, log, "nlp")
		}
	}

	var embedderClient embedder.Client
	if cfg.Embedding.APIKey != "" {
		base := embedder.NewOpenAIClient(cfg.Embedding.APIKey, embedder.Config{
			Model:      cfg.Embedding.Model,
			BaseURL:    cfg.Embedding.BaseURL,
			Dimensions: cfg.Embedding.Dimensions,
		})
		cached, err := embedder.NewCachedClient(base, cfg.Embedding.CacheSize)
		if err != nil {
			return nil, fmt.Errorf("failed to create embedding cache: %w", err)
		}
		embedderClient = cached
	}

	var reranker crossencoder.Client
	if cfg.Reranker.Provider != "" {
		provider := crossencoder.Provider(cfg.Reranker.Provider)
		rerankerConfig := crossencoder.Config{
			Model:          cfg.Reranker.Model,
			MaxConcurrency: cfg.Reranker.MaxConcurrency,
		}
		// The openai reranker needs a model client; fall back to the local
		// one when no API key is configured.
		if provider == crossencoder.ProviderOpenAI && nlpClient == nil {
			provider = crossencoder.ProviderLocal
		}
		r, err := crossencoder.NewClient(provider, rerankerConfig, nlpClient)
		if err != nil {
			return nil, fmt.Errorf("failed to create reranker: %w", err)
		}
		reranker = r
	}

	checkpoints, err := checkpoint.NewManager(cfg.Checkpoint.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkpoint manager: %w", err)
	}

	client, err := dealgraph.NewClient(graphDriver, nlpClient, embedderClient, &dealgraph.Options{
		Reranker:     reranker,
		Checkpoints:  checkpoints,
		SweepConfig:  cfg.Sweep,
		SearchConfig: cfg.Retrieval,
		Logger:       log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create DealGraph client: %w", err)
	}

	log.Info("DealGraph initialized", "driver", cfg.Database.Driver)
	if nlpClient != nil {
		log.Info("language model configured", "model", cfg.NLP.Model)
	}
	if embedderClient != nil {
		log.Info("embedding provider configured", "model", cfg.Embedding.Model)
	}
	return client, nil
}
