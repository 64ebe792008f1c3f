package llm

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"tickerbrief/internal/feed"
)

// fallbackSelectionSize is the deterministic prefix returned when the model
// cannot produce a usable selection.
const fallbackSelectionSize = 5

const selectPromptTemplate = `You are a financial news analyst. From the following list of headlines, select the top 5 to 7 most significant and impactful articles for an investor researching the stock %s. Prioritize articles with specific financial data, company announcements, or in-depth market analysis. Avoid generic market commentary. Return your answer as a comma-separated list of numbers corresponding to the headlines (e.g., '1, 3, 5, 8, 12').

Headlines:
%s`

// Select asks the model which candidates matter most for the ticker. On any
// internal failure (call error, unparseable reply) it falls back to the first
// few candidates in collector order rather than surfacing the error, so the
// pipeline always has a selection to proceed with. A well-formed reply naming
// no valid candidates is returned as-is; judging it is the caller's business.
func (c *Client) Select(ctx context.Context, articles []feed.Article, ticker string) []feed.Article {
	if len(articles) == 0 {
		return nil
	}

	headlines := make([]string, len(articles))
	for i, a := range articles {
		headlines[i] = fmt.Sprintf("%d. %s", i+1, a.Title)
	}
	prompt := fmt.Sprintf(selectPromptTemplate, ticker, strings.Join(headlines, "\n"))

	reply, ok := c.generateOnce(ctx, prompt)
	if !ok {
		return fallbackSelection(articles)
	}

	indices, err := parseIndexList(reply)
	if err != nil {
		c.logger.Warn("unparseable selection reply, using fallback", "ticker", ticker, "reply", reply, "error", err)
		return fallbackSelection(articles)
	}

	var selected []feed.Article
	for _, idx := range indices {
		if idx >= 1 && idx <= len(articles) {
			selected = append(selected, articles[idx-1])
		}
	}
	return selected
}

// generateOnce is a single, unretried model call. Selection has a local
// fallback, so spending the retry budget here buys nothing.
func (c *Client) generateOnce(ctx context.Context, prompt string) (string, bool) {
	out := c.generate(ctx, prompt)
	if out.kind != failureNone {
		c.logger.Warn("selection call failed", "error", out.err)
		return "", false
	}
	return out.text, true
}

func fallbackSelection(articles []feed.Article) []feed.Article {
	if len(articles) <= fallbackSelectionSize {
		return articles
	}
	return articles[:fallbackSelectionSize]
}

// parseIndexList parses a "1, 3, 5" style reply into 1-based indices.
func parseIndexList(reply string) ([]int, error) {
	var indices []int
	for _, part := range strings.Split(reply, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("parsing index %q: %w", part, err)
		}
		indices = append(indices, n)
	}
	return indices, nil
}
