package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when config doesn't name one.
const DefaultModel = "gemini-pro-latest"

const callTimeout = 60 * time.Second

// Client selects and summarizes articles through the Gemini API. The API key
// is supplied at construction; nothing is read from process state at call time.
type Client struct {
	model       string
	maxAttempts int
	backoffBase time.Duration
	logger      *slog.Logger

	// generate performs one model call; swapped out in tests.
	generate func(ctx context.Context, prompt string) outcome
}

// NewClient creates a Gemini-backed Client.
func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	g, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}

	c := &Client{
		model:       model,
		maxAttempts: defaultMaxAttempts,
		backoffBase: defaultBackoffBase,
		logger:      slog.Default(),
	}
	c.generate = func(ctx context.Context, prompt string) outcome {
		return generateContent(ctx, g, c.model, prompt)
	}
	return c, nil
}

func generateContent(ctx context.Context, g *genai.Client, model, prompt string) outcome {
	callCtx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	contents := []*genai.Content{{
		Parts: []*genai.Part{{Text: prompt}},
		Role:  "user",
	}}

	resp, err := g.Models.GenerateContent(callCtx, model, contents, nil)
	if err != nil {
		return classify(err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return transient(errors.New("empty model response"))
	}
	return success(text)
}

// classify sorts an upstream error into the retry taxonomy. Rate and quota
// exhaustion is permanent here: the poller will be back tomorrow anyway.
func classify(err error) outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return transient(err)
	}
	if errors.Is(err, context.Canceled) {
		return permanent(err)
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"),
		strings.Contains(msg, "quota"),
		strings.Contains(msg, "rate limit"),
		strings.Contains(msg, "resource_exhausted"),
		strings.Contains(msg, "resource exhausted"):
		return permanent(err)
	case strings.Contains(msg, "500"),
		strings.Contains(msg, "502"),
		strings.Contains(msg, "503"),
		strings.Contains(msg, "unavailable"),
		strings.Contains(msg, "internal"),
		strings.Contains(msg, "overloaded"),
		strings.Contains(msg, "timeout"),
		strings.Contains(msg, "deadline"):
		return transient(err)
	}
	return permanent(err)
}
