package feed

import "context"

// Article is a candidate news item. Text is empty until extraction.
type Article struct {
	Title string
	URL   string
	Text  string
}

// Source is one upstream news provider for a ticker.
type Source interface {
	Fetch(ctx context.Context, ticker string) ([]Article, error)
	Name() string
}

// Dedupe collapses articles sharing a URL to a single entry. The URL is the
// article's identity; the first-seen title wins. Entries without a URL are
// dropped.
func Dedupe(articles []Article) []Article {
	seen := make(map[string]struct{}, len(articles))
	unique := make([]Article, 0, len(articles))
	for _, a := range articles {
		if a.URL == "" {
			continue
		}
		if _, ok := seen[a.URL]; ok {
			continue
		}
		seen[a.URL] = struct{}{}
		unique = append(unique, a)
	}
	return unique
}
