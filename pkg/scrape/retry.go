package scrape

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/soundprediction/sentinel/pkg/config"
	"github.com/soundprediction/sentinel/pkg/types"
)

// RetryConfig holds configuration for retry behavior
type RetryConfig struct {
	// MaxRetries is the maximum number of retry attempts (default: 3)
	MaxRetries int
	// InitialDelay is the initial delay before the first retry (default: 1 second)
	InitialDelay time.Duration
	// MaxDelay is the maximum delay between retries (default: 30 seconds)
	MaxDelay time.Duration
	// BackoffMultiplier is the multiplier for exponential backoff (default: 2.0)
	BackoffMultiplier float64
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      1 * time.Second,
		MaxDelay:          30 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

// RetryConfigFrom maps the scraper section of the service config onto a
// retry policy.
func RetryConfigFrom(cfg config.ScraperConfig) *RetryConfig {
	return &RetryConfig{
		MaxRetries:        cfg.MaxRetries,
		InitialDelay:      time.Duration(cfg.RetryBaseSeconds) * time.Second,
		MaxDelay:          time.Duration(cfg.RetryCapSeconds) * time.Second,
		BackoffMultiplier: cfg.RetryFactor,
	}
}

// RetryScraper wraps a Scraper and adds retry logic with exponential backoff
type RetryScraper struct {
	scraper Scraper
	config  *RetryConfig
}

// NewRetryScraper creates a new retry scraper wrapper
func NewRetryScraper(scraper Scraper, config *RetryConfig) *RetryScraper {
	if config == nil {
		config = DefaultRetryConfig()
	}
	// Ensure sensible defaults
	if config.MaxRetries < 0 {
		config.MaxRetries = 3
	}
	if config.InitialDelay <= 0 {
		config.InitialDelay = 1 * time.Second
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 30 * time.Second
	}
	if config.BackoffMultiplier <= 0 {
		config.BackoffMultiplier = 2.0
	}

	return &RetryScraper{
		scraper: scraper,
		config:  config,
	}
}

// Name implements Scraper.
func (r *RetryScraper) Name() string {
	return r.scraper.Name()
}

// Scrape implements Scraper with retry logic
func (r *RetryScraper) Scrape(ctx context.Context, url string) (*types.Document, error) {
	var lastErr error

	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
			}
		}

		doc, err := r.scraper.Scrape(ctx, url)
		if err == nil {
			return doc, nil
		}

		lastErr = err

		if !isRetryableError(err) {
			return nil, err
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", r.config.MaxRetries, lastErr)
}

// calculateDelay calculates the delay for a given retry attempt using exponential backoff
func (r *RetryScraper) calculateDelay(attempt int) time.Duration {
	delay := float64(r.config.InitialDelay) * math.Pow(r.config.BackoffMultiplier, float64(attempt-1))

	if delay > float64(r.config.MaxDelay) {
		delay = float64(r.config.MaxDelay)
	}

	return time.Duration(delay)
}

// isRetryableError determines if an error is retryable. Empty pages are
// final: fetching the same URL again returns the same nothing. Everything
// that is not a classified scrape error fails immediately, which lets an
// open circuit breaker short-circuit the whole retry loop.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var scrapeErr *ScrapeError
	if !errors.As(err, &scrapeErr) {
		return false
	}

	switch scrapeErr.Kind {
	case KindNetwork, KindRateLimited, KindVendorError:
		return true
	}
	return false
}
