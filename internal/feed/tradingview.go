package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/net/html"
)

const (
	tradingViewBaseURL  = "https://www.tradingview.com"
	tradingViewMaxItems = 10

	scrapeUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// TradingViewSource scrapes the news feed on a TradingView symbol page.
// A ticker's exchange isn't known up front, so it tries the major exchanges
// in order and stops at the first one that yields news.
type TradingViewSource struct {
	baseURL    string
	exchanges  []string
	httpClient *http.Client
}

// NewTradingViewSource creates a TradingViewSource covering NASDAQ and NYSE.
func NewTradingViewSource() *TradingViewSource {
	return &TradingViewSource{
		baseURL:    tradingViewBaseURL,
		exchanges:  []string{"NASDAQ", "NYSE"},
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// NewTradingViewSourceWithBaseURL creates a source pointing at a custom base URL (for testing).
func NewTradingViewSourceWithBaseURL(baseURL string) *TradingViewSource {
	s := NewTradingViewSource()
	s.baseURL = baseURL
	return s
}

func (s *TradingViewSource) Name() string { return "tradingview" }

func (s *TradingViewSource) Fetch(ctx context.Context, ticker string) ([]Article, error) {
	var lastErr error
	for _, exchange := range s.exchanges {
		articles, err := s.fetchExchange(ctx, exchange, ticker)
		if err != nil {
			lastErr = err
			continue
		}
		if len(articles) > 0 {
			return articles, nil
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, nil
}

func (s *TradingViewSource) fetchExchange(ctx context.Context, exchange, ticker string) ([]Article, error) {
	pageURL := fmt.Sprintf("%s/symbols/%s-%s/news/", s.baseURL, exchange, ticker)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", scrapeUserAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching tradingview page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	root, err := html.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parsing tradingview page: %w", err)
	}

	var articles []Article
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(articles) >= tradingViewMaxItems {
			return
		}
		if n.Type == html.ElementNode && n.Data == "a" && attrVal(n, "data-widget-name") == "news-item-card-header" {
			href := attrVal(n, "href")
			title := strings.TrimSpace(nodeText(n))
			if href != "" && title != "" {
				if !strings.HasPrefix(href, "http") {
					href = s.baseURL + href
				}
				articles = append(articles, Article{Title: title, URL: href})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(root)
	return articles, nil
}

func attrVal(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}
