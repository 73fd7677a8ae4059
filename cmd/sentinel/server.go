package sentinel

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soundprediction/sentinel/pkg/config"
	"github.com/soundprediction/sentinel/pkg/queue"
	"github.com/soundprediction/sentinel/pkg/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the sentinel HTTP server and healing agent",
	Long: `Start the sentinel HTTP server and the background healing agent.

The server provides endpoints for:
- Ingesting source URLs (synchronous or queued)
- Querying the graph in natural language
- Time-travel snapshots of the graph
- Health checks, status and statistics

The healing agent periodically re-verifies stale sources in the background.
Configuration can be provided through config files, environment variables, or command-line flags.`,
	RunE: runServer,
}

var (
	serverHost string
	serverPort int
	serverMode string
)

func init() {
	rootCmd.AddCommand(serverCmd)

	// Server-specific flags
	serverCmd.Flags().StringVar(&serverHost, "host", "localhost", "Server host")
	serverCmd.Flags().IntVar(&serverPort, "port", 8080, "Server port")
	serverCmd.Flags().StringVar(&serverMode, "mode", "debug", "Server mode (debug, release, test)")

	// Graph store flags
	serverCmd.Flags().String("graph-uri", "", "Graph store bolt URI")
	serverCmd.Flags().String("graph-username", "", "Graph store username")
	serverCmd.Flags().String("graph-password", "", "Graph store password")
	serverCmd.Flags().String("graph-database", "", "Graph store database name")

	// Model flags
	serverCmd.Flags().String("model-name", "llama3", "Extractor LLM model")
	serverCmd.Flags().String("model-base-url", "", "Extractor LLM base URL")
	serverCmd.Flags().String("model-api-key", "", "Extractor LLM API key")

	// Scraper flags
	serverCmd.Flags().String("scraper-api-key", "", "Premium scrape vendor API key (empty uses the local scraper)")

	// Healing flags
	serverCmd.Flags().Int("heal-days", 7, "Staleness threshold in days")
	serverCmd.Flags().Int("heal-interval", 6, "Hours between healing passes")
	serverCmd.Flags().Int("heal-parallelism", 1, "Concurrent URL reprocessing during healing")

	// Queue flags
	serverCmd.Flags().String("broker-url", "", "Redis broker URL for queued ingestion (empty runs jobs in process)")

	// Telemetry flags
	serverCmd.Flags().String("telemetry-parquet-path", "", "Path to directory for telemetry (errors and processing outcomes)")
}

func runServer(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Override config with command-line flags
	overrideConfigWithFlags(cmd, cfg)

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", cfg.Server.Port)
	}

	// Build the component stack
	fmt.Println("Initializing sentinel...")
	rt, err := buildRuntime(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize sentinel: %w", err)
	}

	jobs, err := queue.New(cfg.Queue.BrokerURL, rt.client.Agent(), rt.logger)
	if err != nil {
		rt.close(context.Background())
		return fmt.Errorf("failed to connect job queue: %w", err)
	}

	srv := server.New(cfg, rt.client.Store(), rt.client.Agent(), rt.client.Engine(), jobs, rt.registry, rt.logger)
	srv.Setup()

	// Background work runs until shutdown.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go rt.client.RunHealingLoop(ctx)
	go func() {
		if err := jobs.Run(ctx); err != nil {
			rt.logger.Error("job queue stopped", "error", err)
		}
	}()

	fmt.Printf("Sentinel initialized, graph at %s\n", cfg.Graph.URI)

	// Handle signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	serverErrChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			serverErrChan <- err
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrChan:
		cancel()
		rt.close(context.Background())
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		fmt.Printf("\nReceived signal: %v\n", sig)

		// Stop the healing loop and queue consumer first.
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := srv.Stop(shutdownCtx); err != nil {
			rt.close(shutdownCtx)
			return fmt.Errorf("server shutdown error: %w", err)
		}

		if err := jobs.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: queue close failed: %v\n", err)
		}
		rt.close(shutdownCtx)

		fmt.Println("Server stopped gracefully")
		return nil
	}
}

func overrideConfigWithFlags(cmd *cobra.Command, cfg *config.Config) {
	// Server flags
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serverHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = serverPort
	}
	if cmd.Flags().Changed("mode") {
		cfg.Server.Mode = serverMode
	}

	// Graph store flags
	if cmd.Flags().Changed("graph-uri") {
		cfg.Graph.URI, _ = cmd.Flags().GetString("graph-uri")
	}
	if cmd.Flags().Changed("graph-username") {
		cfg.Graph.Username, _ = cmd.Flags().GetString("graph-username")
	}
	if cmd.Flags().Changed("graph-password") {
		cfg.Graph.Password, _ = cmd.Flags().GetString("graph-password")
	}
	if cmd.Flags().Changed("graph-database") {
		cfg.Graph.Database, _ = cmd.Flags().GetString("graph-database")
	}

	// Model flags
	if cmd.Flags().Changed("model-name") {
		cfg.Model.Name, _ = cmd.Flags().GetString("model-name")
	}
	if cmd.Flags().Changed("model-base-url") {
		cfg.Model.BaseURL, _ = cmd.Flags().GetString("model-base-url")
	}
	if cmd.Flags().Changed("model-api-key") {
		cfg.Model.APIKey, _ = cmd.Flags().GetString("model-api-key")
	}

	// Scraper flags
	if cmd.Flags().Changed("scraper-api-key") {
		cfg.Scraper.APIKey, _ = cmd.Flags().GetString("scraper-api-key")
	}

	// Healing flags
	if cmd.Flags().Changed("heal-days") {
		cfg.Heal.DaysThreshold, _ = cmd.Flags().GetInt("heal-days")
	}
	if cmd.Flags().Changed("heal-interval") {
		cfg.Heal.IntervalHours, _ = cmd.Flags().GetInt("heal-interval")
	}
	if cmd.Flags().Changed("heal-parallelism") {
		cfg.Heal.Parallelism, _ = cmd.Flags().GetInt("heal-parallelism")
	}

	// Queue flags
	if cmd.Flags().Changed("broker-url") {
		cfg.Queue.BrokerURL, _ = cmd.Flags().GetString("broker-url")
	}

	// Telemetry flags
	if cmd.Flags().Changed("telemetry-parquet-path") {
		cfg.Telemetry.ParquetPath, _ = cmd.Flags().GetString("telemetry-parquet-path")
	}
}
