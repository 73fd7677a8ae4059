package scrape

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"

	"github.com/soundprediction/sentinel/pkg/alert"
	"github.com/soundprediction/sentinel/pkg/config"
	"github.com/soundprediction/sentinel/pkg/types"
)

// CircuitBreakerScraper wraps a Scraper with circuit breaking logic so a
// dead vendor fails fast instead of stalling every healing cycle on
// timeouts.
type CircuitBreakerScraper struct {
	scraper Scraper
	cb      *gobreaker.CircuitBreaker
	alerter alert.Alerter
}

// NewCircuitBreakerScraper creates a new circuit breaker wrapper around the
// given scraper. When the breaker opens, the alerter is notified once per
// trip.
func NewCircuitBreakerScraper(scraper Scraper, cfg config.CircuitBreakerConfig, alerter alert.Alerter) *CircuitBreakerScraper {
	st := gobreaker.Settings{
		Name:        scraper.Name(),
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			if to == gobreaker.StateOpen && alerter != nil {
				msg := fmt.Sprintf("Circuit Breaker '%s' changed status from %s to %s. Too many failures detected.", name, from, to)
				_ = alerter.Alert(fmt.Sprintf("URGENT: Circuit Breaker Tripped - %s", name), msg)
			}
		},
	}

	return &CircuitBreakerScraper{
		scraper: scraper,
		cb:      gobreaker.NewCircuitBreaker(st),
		alerter: alerter,
	}
}

// Name implements Scraper.
func (c *CircuitBreakerScraper) Name() string {
	return c.scraper.Name()
}

// Scrape implements Scraper.
func (c *CircuitBreakerScraper) Scrape(ctx context.Context, url string) (*types.Document, error) {
	resp, err := c.cb.Execute(func() (interface{}, error) {
		return c.scraper.Scrape(ctx, url)
	})

	if err != nil {
		return nil, err
	}
	return resp.(*types.Document), nil
}
