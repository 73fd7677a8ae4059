package scrape

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/soundprediction/sentinel/pkg/types"
)

// mockScraper is a scripted scraper for testing the wrappers
type mockScraper struct {
	callCount     int
	failUntilCall int
	errorToReturn error
	docToReturn   *types.Document
}

func (m *mockScraper) Scrape(ctx context.Context, url string) (*types.Document, error) {
	m.callCount++
	if m.callCount <= m.failUntilCall {
		return nil, m.errorToReturn
	}
	if m.docToReturn != nil {
		return m.docToReturn, nil
	}
	content := "scraped content"
	return &types.Document{URL: url, Content: content, ContentHash: HashContent(content)}, nil
}

func (m *mockScraper) Name() string {
	return "mock"
}

func fastRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Millisecond,
		MaxDelay:          10 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func TestRetryScraper_SuccessOnFirstAttempt(t *testing.T) {
	mock := &mockScraper{failUntilCall: 0}
	retryScraper := NewRetryScraper(mock, fastRetryConfig())

	doc, err := retryScraper.Scrape(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("expected success, got error: %v", err)
	}
	if doc.Content != "scraped content" {
		t.Errorf("expected scraped content, got %q", doc.Content)
	}
	if mock.callCount != 1 {
		t.Errorf("expected 1 call, got %d", mock.callCount)
	}
}

func TestRetryScraper_RetriesOnNetworkError(t *testing.T) {
	mock := &mockScraper{
		failUntilCall: 2,
		errorToReturn: NewScrapeError(KindNetwork, "https://example.com", "connection reset"),
	}
	retryScraper := NewRetryScraper(mock, fastRetryConfig())

	_, err := retryScraper.Scrape(context.Background(), "https://example.com")
	if err != nil {
		t.Fatalf("expected eventual success, got error: %v", err)
	}
	if mock.callCount != 3 {
		t.Errorf("expected 3 calls (2 failures + 1 success), got %d", mock.callCount)
	}
}

func TestRetryScraper_EmptyPageFailsImmediately(t *testing.T) {
	mock := &mockScraper{
		failUntilCall: 10,
		errorToReturn: NewScrapeError(KindEmpty, "https://example.com", "no text"),
	}
	retryScraper := NewRetryScraper(mock, fastRetryConfig())

	_, err := retryScraper.Scrape(context.Background(), "https://example.com")
	if err == nil {
		t.Fatal("expected error")
	}
	if mock.callCount != 1 {
		t.Errorf("empty pages should not be retried, got %d calls", mock.callCount)
	}
}

func TestRetryScraper_UnclassifiedErrorFailsImmediately(t *testing.T) {
	mock := &mockScraper{
		failUntilCall: 10,
		errorToReturn: errors.New("circuit breaker is open"),
	}
	retryScraper := NewRetryScraper(mock, fastRetryConfig())

	_, err := retryScraper.Scrape(context.Background(), "https://example.com")
	if err == nil {
		t.Fatal("expected error")
	}
	if mock.callCount != 1 {
		t.Errorf("unclassified errors should not be retried, got %d calls", mock.callCount)
	}
}

func TestRetryScraper_ExhaustsRetries(t *testing.T) {
	mock := &mockScraper{
		failUntilCall: 10,
		errorToReturn: NewScrapeError(KindVendorError, "https://example.com", "HTTP 503"),
	}
	retryScraper := NewRetryScraper(mock, fastRetryConfig())

	_, err := retryScraper.Scrape(context.Background(), "https://example.com")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if mock.callCount != 4 {
		t.Errorf("expected 4 calls (initial + 3 retries), got %d", mock.callCount)
	}

	var scrapeErr *ScrapeError
	if !errors.As(err, &scrapeErr) {
		t.Fatalf("exhaustion error should wrap the last ScrapeError, got %T", err)
	}
	if scrapeErr.Kind != KindVendorError {
		t.Errorf("expected vendor_error kind, got %s", scrapeErr.Kind)
	}
}

func TestRetryScraper_ContextCancelDuringBackoff(t *testing.T) {
	mock := &mockScraper{
		failUntilCall: 10,
		errorToReturn: NewScrapeError(KindNetwork, "https://example.com", "timeout"),
	}
	retryScraper := NewRetryScraper(mock, &RetryConfig{
		MaxRetries:        3,
		InitialDelay:      time.Second,
		MaxDelay:          time.Second,
		BackoffMultiplier: 1.0,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := retryScraper.Scrape(ctx, "https://example.com")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}
}

func TestCalculateDelayCapped(t *testing.T) {
	retryScraper := NewRetryScraper(&mockScraper{}, &RetryConfig{
		MaxRetries:        5,
		InitialDelay:      time.Second,
		MaxDelay:          4 * time.Second,
		BackoffMultiplier: 2.0,
	})

	if d := retryScraper.calculateDelay(1); d != time.Second {
		t.Errorf("attempt 1 delay = %v, expected 1s", d)
	}
	if d := retryScraper.calculateDelay(2); d != 2*time.Second {
		t.Errorf("attempt 2 delay = %v, expected 2s", d)
	}
	if d := retryScraper.calculateDelay(5); d != 4*time.Second {
		t.Errorf("attempt 5 delay = %v, expected cap of 4s", d)
	}
}
