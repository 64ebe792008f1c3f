package feed

import (
	"context"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Collector aggregates candidate articles from all configured sources and
// de-duplicates them by URL.
type Collector struct {
	sources []Source
	logger  *slog.Logger
}

// NewCollector creates a Collector over the given sources. Source order is
// significant: it decides which duplicate of a URL wins the title.
func NewCollector(sources ...Source) *Collector {
	return &Collector{
		sources: sources,
		logger:  slog.Default(),
	}
}

// Collect queries every source concurrently and returns the de-duplicated
// union in source order. A source that errors contributes nothing; one flaky
// provider must not cost the job the others' articles.
func (c *Collector) Collect(ctx context.Context, ticker string) ([]Article, error) {
	results := make([][]Article, len(c.sources))

	g, gCtx := errgroup.WithContext(ctx)
	for i, src := range c.sources {
		i, src := i, src
		g.Go(func() error {
			articles, err := src.Fetch(gCtx, ticker)
			if err != nil {
				c.logger.Warn("news source failed", "source", src.Name(), "ticker", ticker, "error", err)
				return nil
			}
			results[i] = articles
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []Article
	for _, articles := range results {
		all = append(all, articles...)
	}
	return Dedupe(all), nil
}
