package llm

import (
	"context"
	"fmt"
	"strings"

	"tickerbrief/internal/feed"
)

// ContextEntry is one prior day's summary, supplied to frame "what changed".
type ContextEntry struct {
	Date string
	Text string
}

const summarizePromptTemplate = `You are an expert financial analyst. Your task is to provide a concise, insightful summary of the latest news for the stock %s. The summary must be under 500 words and written in a professional, objective tone.

Based on the following articles, generate a summary that includes a section titled 'What changed today'.

For context, here are the summaries from the past few days:
%s

Here is the full text of today's most important articles:
%s`

// Summarize generates the day's summary from the extracted articles and the
// prior days' context. The call is retried on transient upstream failures;
// on permanent failure or exhausted retries it returns ok=false, never an
// error and never placeholder text.
func (c *Client) Summarize(ctx context.Context, articles []feed.Article, ticker string, history []ContextEntry) (string, bool) {
	bodies := make([]string, len(articles))
	for i, a := range articles {
		text := a.Text
		if text == "" {
			text = "Content not available."
		}
		bodies[i] = fmt.Sprintf("Article Title: %s\n\n%s", a.Title, text)
	}

	var contextLines []string
	for _, entry := range history {
		contextLines = append(contextLines, fmt.Sprintf("Summary from %s:\n%s\n", entry.Date, entry.Text))
	}

	prompt := fmt.Sprintf(summarizePromptTemplate,
		ticker,
		strings.Join(contextLines, "\n"),
		strings.Join(bodies, "\n\n---\n\n"),
	)

	return callWithRetry(ctx, func(ctx context.Context) outcome {
		return c.generate(ctx, prompt)
	}, c.maxAttempts, c.backoffBase, c.logger)
}
