package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

const (
	polygonBaseURL    = "https://api.polygon.io"
	polygonWindowDays = 3
	polygonPageLimit  = 20
)

// PolygonSource fetches ticker news from the Polygon.io reference API.
type PolygonSource struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	now        func() time.Time
}

// NewPolygonSource creates a PolygonSource with the given API key.
func NewPolygonSource(apiKey string) *PolygonSource {
	return &PolygonSource{
		apiKey:     apiKey,
		baseURL:    polygonBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
}

// NewPolygonSourceWithBaseURL creates a source pointing at a custom base URL (for testing).
func NewPolygonSourceWithBaseURL(apiKey, baseURL string) *PolygonSource {
	s := NewPolygonSource(apiKey)
	s.baseURL = baseURL
	return s
}

func (s *PolygonSource) Name() string { return "polygon" }

type polygonNewsResponse struct {
	Results []struct {
		Title      string `json:"title"`
		ArticleURL string `json:"article_url"`
	} `json:"results"`
}

// Fetch returns news published within the last few days for the ticker.
func (s *PolygonSource) Fetch(ctx context.Context, ticker string) ([]Article, error) {
	since := s.now().AddDate(0, 0, -polygonWindowDays).Format("2006-01-02")

	q := url.Values{}
	q.Set("ticker", ticker)
	q.Set("published_utc.gte", since)
	q.Set("limit", fmt.Sprintf("%d", polygonPageLimit))
	q.Set("apiKey", s.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v2/reference/news?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching polygon news: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var payload polygonNewsResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding polygon response: %w", err)
	}

	articles := make([]Article, 0, len(payload.Results))
	for _, item := range payload.Results {
		articles = append(articles, Article{Title: item.Title, URL: item.ArticleURL})
	}
	return articles, nil
}
