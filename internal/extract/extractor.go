package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	readability "github.com/go-shiori/go-readability"
)

const (
	fetchTimeout = 20 * time.Second
	maxBodySize  = 5 << 20 // 5MB

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
)

// ErrNoContent is returned when a page yields no usable article body.
var ErrNoContent = errors.New("no extractable article body")

// Extractor fetches an article page and distills its main body text.
type Extractor struct {
	httpClient *http.Client
}

// New creates an Extractor with a bounded per-fetch timeout.
func New() *Extractor {
	return &Extractor{
		httpClient: &http.Client{Timeout: fetchTimeout},
	}
}

// Text downloads rawURL and returns the readable body text.
func (e *Extractor) Text(ctx context.Context, rawURL string) (string, error) {
	pageURL, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parsing url: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching article: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return "", fmt.Errorf("reading article body: %w", err)
	}

	parser := readability.NewParser()
	article, err := parser.Parse(strings.NewReader(string(body)), pageURL)
	if err != nil {
		return "", fmt.Errorf("distilling article: %w", err)
	}

	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", ErrNoContent
	}
	return text, nil
}
