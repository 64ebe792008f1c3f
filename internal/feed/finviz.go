package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

const finvizBaseURL = "https://finviz.com"

// FinvizSource scrapes the news table from a Finviz quote page.
type FinvizSource struct {
	baseURL    string
	httpClient *http.Client
}

// NewFinvizSource creates a FinvizSource.
func NewFinvizSource() *FinvizSource {
	return &FinvizSource{
		baseURL:    finvizBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewFinvizSourceWithBaseURL creates a source pointing at a custom base URL (for testing).
func NewFinvizSourceWithBaseURL(baseURL string) *FinvizSource {
	s := NewFinvizSource()
	s.baseURL = baseURL
	return s
}

func (s *FinvizSource) Name() string { return "finviz" }

// Fetch scrapes the quote page's news table. Finviz links its own stories
// with relative /news/ paths; those are rewritten to absolute URLs.
func (s *FinvizSource) Fetch(ctx context.Context, ticker string) ([]Article, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/quote.ashx?t="+ticker, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", scrapeUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching finviz quote page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing finviz page: %w", err)
	}

	var articles []Article
	doc.Find("#news-table tr").Each(func(_ int, row *goquery.Selection) {
		link := row.Find("a").First()
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		if strings.HasPrefix(href, "/news/") {
			href = s.baseURL + href
		}
		articles = append(articles, Article{
			Title: strings.TrimSpace(link.Text()),
			URL:   href,
		})
	})
	return articles, nil
}
