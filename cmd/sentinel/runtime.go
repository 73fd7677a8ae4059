package sentinel

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/soundprediction/sentinel"
	"github.com/soundprediction/sentinel/pkg/alert"
	"github.com/soundprediction/sentinel/pkg/config"
	"github.com/soundprediction/sentinel/pkg/extract"
	"github.com/soundprediction/sentinel/pkg/logger"
	"github.com/soundprediction/sentinel/pkg/metrics"
	"github.com/soundprediction/sentinel/pkg/scrape"
	"github.com/soundprediction/sentinel/pkg/store"
	"github.com/soundprediction/sentinel/pkg/telemetry"
)

// runtime bundles the wired client and its observability pieces so every
// subcommand builds them the same way.
type runtime struct {
	cfg       *config.Config
	logger    *slog.Logger
	telemetry *telemetry.ParquetHandler
	client    *sentinel.Client
	registry  *prometheus.Registry
}

// buildRuntime constructs and connects the full component stack: logger,
// graph store (connectivity verified, indices ensured), scraper, extractor,
// metrics and the sentinel client over them.
func buildRuntime(cfg *config.Config) (*runtime, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, parquetHandler, err := buildLogger(cfg)
	if err != nil {
		return nil, err
	}

	st, err := store.New(cfg.Graph.URI, cfg.Graph.Username, cfg.Graph.Password, cfg.Graph.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to create graph store: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := st.VerifyConnectivity(ctx); err != nil {
		st.Close(context.Background())
		return nil, fmt.Errorf("graph store unreachable: %w", err)
	}

	alerter := alert.New(cfg.Alert)
	scraper := scrape.New(cfg.Scraper, cfg.CircuitBreaker, alerter, log)

	extractor, err := extract.NewLLMExtractor(cfg.Model, log)
	if err != nil {
		st.Close(context.Background())
		return nil, fmt.Errorf("failed to create extractor: %w", err)
	}

	registry := prometheus.NewRegistry()
	m := metrics.NewMetrics(registry)

	client, err := sentinel.NewClient(st, scraper, extractor, cfg.Heal, alerter, m, log)
	if err != nil {
		st.Close(context.Background())
		return nil, fmt.Errorf("failed to create client: %w", err)
	}

	if err := client.CreateIndices(ctx); err != nil {
		client.Close(context.Background())
		return nil, fmt.Errorf("failed to create indices: %w", err)
	}

	return &runtime{
		cfg:       cfg,
		logger:    log,
		telemetry: parquetHandler,
		client:    client,
		registry:  registry,
	}, nil
}

// buildLogger constructs the colored stderr logger, wrapped in the Parquet
// telemetry handler when a path is configured.
func buildLogger(cfg *config.Config) (*slog.Logger, *telemetry.ParquetHandler, error) {
	colorHandler := logger.NewColorHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Log.Level),
	})

	if cfg.Telemetry.ParquetPath == "" {
		return slog.New(colorHandler), nil, nil
	}

	if err := os.MkdirAll(cfg.Telemetry.ParquetPath, 0755); err != nil {
		return nil, nil, fmt.Errorf("failed to create telemetry directory: %w", err)
	}
	parquetHandler, err := telemetry.NewParquetHandler(colorHandler, cfg.Telemetry.ParquetPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	fmt.Printf("Telemetry enabled at: %s\n", cfg.Telemetry.ParquetPath)
	return slog.New(parquetHandler), parquetHandler, nil
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// close flushes telemetry and releases the store connection.
func (r *runtime) close(ctx context.Context) {
	if r.telemetry != nil {
		if err := r.telemetry.Flush(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: telemetry flush failed: %v\n", err)
		}
	}
	if err := r.client.Close(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: store close failed: %v\n", err)
	}
}
