package scrape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/soundprediction/sentinel/pkg/config"
	"github.com/soundprediction/sentinel/pkg/types"
)

const defaultFirecrawlBaseURL = "https://api.firecrawl.dev"

// FirecrawlScraper fetches pages through the Firecrawl scrape API, which
// returns rendered pages as markdown and handles JS-heavy sites.
type FirecrawlScraper struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

type firecrawlRequest struct {
	URL     string   `json:"url"`
	Formats []string `json:"formats"`
}

type firecrawlResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	Data    struct {
		Markdown string                 `json:"markdown"`
		Metadata map[string]interface{} `json:"metadata"`
	} `json:"data"`
}

// NewFirecrawlScraper creates a premium scraper from configuration. The
// base URL defaults to the hosted API.
func NewFirecrawlScraper(cfg config.ScraperConfig) *FirecrawlScraper {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultFirecrawlBaseURL
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &FirecrawlScraper{
		apiKey:  cfg.APIKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Name implements Scraper.
func (f *FirecrawlScraper) Name() string {
	return "firecrawl"
}

// Scrape implements Scraper.
func (f *FirecrawlScraper) Scrape(ctx context.Context, url string) (*types.Document, error) {
	if url == "" {
		return nil, NewScrapeError(KindEmpty, url, types.ErrEmptyURL.Error())
	}

	body, err := json.Marshal(firecrawlRequest{URL: url, Formats: []string{"markdown"}})
	if err != nil {
		return nil, WrapScrapeError(KindVendorError, url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/v1/scrape", bytes.NewReader(body))
	if err != nil {
		return nil, WrapScrapeError(KindVendorError, url, err)
	}
	req.Header.Set("Authorization", "Bearer "+f.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, WrapScrapeError(KindNetwork, url, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, WrapScrapeError(KindNetwork, url, err)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewScrapeError(KindRateLimited, url, "vendor rate limit")
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, NewScrapeError(KindVendorError, url,
			fmt.Sprintf("vendor returned HTTP %d: %s", resp.StatusCode, snippet(raw)))
	}

	var decoded firecrawlResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, WrapScrapeError(KindVendorError, url, err)
	}
	if !decoded.Success {
		return nil, NewScrapeError(KindVendorError, url, decoded.Error)
	}

	content := strings.TrimSpace(decoded.Data.Markdown)
	if content == "" {
		return nil, NewScrapeError(KindEmpty, url, "vendor returned no content")
	}

	doc := &types.Document{
		URL:         url,
		Content:     content,
		ContentHash: HashContent(content),
		Metadata:    decoded.Data.Metadata,
	}
	if title, ok := decoded.Data.Metadata["title"].(string); ok {
		doc.Title = title
	}

	return doc, nil
}

func snippet(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 200 {
		return s[:200]
	}
	return s
}
