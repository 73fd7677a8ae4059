package scrape

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/soundprediction/sentinel/pkg/config"
	"github.com/soundprediction/sentinel/pkg/types"
)

// LocalScraper is the no-API-key fallback: a plain GET with HTML stripped
// to text locally. It cannot render JavaScript, so dynamic pages come back
// thinner than through the premium provider.
type LocalScraper struct {
	client *http.Client
}

// NewLocalScraper creates the fallback scraper.
func NewLocalScraper(cfg config.ScraperConfig) *LocalScraper {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &LocalScraper{
		client: &http.Client{Timeout: timeout},
	}
}

// Name implements Scraper.
func (l *LocalScraper) Name() string {
	return "local"
}

// Scrape implements Scraper.
func (l *LocalScraper) Scrape(ctx context.Context, url string) (*types.Document, error) {
	if url == "" {
		return nil, NewScrapeError(KindEmpty, url, types.ErrEmptyURL.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, WrapScrapeError(KindNetwork, url, err)
	}
	req.Header.Set("User-Agent", "sentinel/1.0 (+knowledge-graph-agent)")

	resp, err := l.client.Do(req)
	if err != nil {
		return nil, WrapScrapeError(KindNetwork, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, NewScrapeError(KindRateLimited, url, "server rate limit")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewScrapeError(KindNetwork, url, fmt.Sprintf("HTTP %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return nil, WrapScrapeError(KindNetwork, url, err)
	}

	title, content := extractText(string(raw))
	if content == "" {
		return nil, NewScrapeError(KindEmpty, url, "page yielded no text")
	}

	return &types.Document{
		URL:         url,
		Content:     content,
		ContentHash: HashContent(content),
		Title:       title,
	}, nil
}

// extractText walks the HTML tree collecting visible text, skipping script,
// style and head noise, and returns the page title separately.
func extractText(rawHTML string) (title, content string) {
	doc, err := html.Parse(strings.NewReader(rawHTML))
	if err != nil {
		// Not parseable as HTML; treat the payload as plain text.
		return "", collapseWhitespace(rawHTML)
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "template", "iframe":
				return
			case "title":
				if n.FirstChild != nil && title == "" {
					title = strings.TrimSpace(n.FirstChild.Data)
				}
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				b.WriteString(text)
				b.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return title, collapseWhitespace(b.String())
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
