// Package scrape fetches web documents and normalizes them to plain text.
//
// Two providers exist: a premium vendor API used when an API key is
// configured, and a plain HTTP fallback that strips HTML locally. Both
// return a Document whose ContentHash is the SHA-256 of the extracted text,
// which the orchestrator compares against stored document state to skip
// re-extraction of unchanged pages.
package scrape

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"

	"github.com/soundprediction/sentinel/pkg/alert"
	"github.com/soundprediction/sentinel/pkg/config"
	"github.com/soundprediction/sentinel/pkg/types"
)

// Scraper fetches one URL and returns its normalized text content.
type Scraper interface {
	// Scrape fetches url and returns the document with its content hash set.
	Scrape(ctx context.Context, url string) (*types.Document, error)
	// Name identifies the provider for logs and status reporting.
	Name() string
}

// New builds the scraper stack for the given configuration: the premium
// vendor when an API key is set, the local fallback otherwise. The premium
// provider runs behind a circuit breaker; both run behind retries.
func New(cfg config.ScraperConfig, breaker config.CircuitBreakerConfig, alerter alert.Alerter, logger *slog.Logger) Scraper {
	var scraper Scraper
	if cfg.APIKey != "" {
		scraper = NewFirecrawlScraper(cfg)
		if breaker.Enabled {
			scraper = NewCircuitBreakerScraper(scraper, breaker, alerter)
		}
	} else {
		scraper = NewLocalScraper(cfg)
	}

	if logger != nil {
		logger.Info("scraper selected", "provider", scraper.Name())
	}

	return NewRetryScraper(scraper, RetryConfigFrom(cfg))
}

// ScrapeAndHash fetches url and returns just the text and its hash, for
// callers that only need a change check.
func ScrapeAndHash(ctx context.Context, scraper Scraper, url string) (string, string, error) {
	doc, err := scraper.Scrape(ctx, url)
	if err != nil {
		return "", "", err
	}
	return doc.Content, doc.ContentHash, nil
}

// HashContent returns the hex SHA-256 of the given text.
func HashContent(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
