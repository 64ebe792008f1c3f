package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tickerbrief/internal/feed"
	"tickerbrief/internal/llm"
	"tickerbrief/internal/storage"
)

// Terminal failure signals. Each names the stage that aborted the pipeline;
// all collapse to the job's failed status, with the signal kept in last_error
// for diagnosis.
var (
	ErrNoArticlesFound     = errors.New("no articles found")
	ErrSelectionFailed     = errors.New("selection produced no articles")
	ErrNoExtractableText   = errors.New("no extractable text in any selected article")
	ErrSummarizationFailed = errors.New("summarization failed")
)

// Collector aggregates de-duplicated candidate articles for a ticker.
type Collector interface {
	Collect(ctx context.Context, ticker string) ([]feed.Article, error)
}

// Selector picks the candidates worth reading in full. It never fails: on
// internal error it falls back to a deterministic subset.
type Selector interface {
	Select(ctx context.Context, articles []feed.Article, ticker string) []feed.Article
}

// Extractor fetches the full body text for one article URL.
type Extractor interface {
	Text(ctx context.Context, url string) (string, error)
}

// Summarizer produces the day's summary text, or ok=false when it cannot.
type Summarizer interface {
	Summarize(ctx context.Context, articles []feed.Article, ticker string, history []llm.ContextEntry) (string, bool)
}

// RunnerStore abstracts the job and summary store operations for the Runner.
type RunnerStore interface {
	ClaimNextJob() (*storage.Job, error)
	CompleteJob(id int64) error
	FailJob(id int64, reason string) error
	FailStaleJobs(maxAge time.Duration) (int64, error)
	RecentSummaries(ticker string, limit int) ([]storage.Summary, error)
	SaveSummary(sum storage.Summary) error
}

// RunnerDeps wires the pipeline collaborators into the Runner.
type RunnerDeps struct {
	Store      RunnerStore
	Collector  Collector
	Selector   Selector
	Extractor  Extractor
	Summarizer Summarizer

	// StaleAfter and HistoryDays fall back to package defaults when zero.
	StaleAfter  time.Duration
	HistoryDays int
}

const (
	defaultPollInterval = 15 * time.Second
	defaultStaleAfter   = 30 * time.Minute
	// defaultHistoryDays is how many prior days of summaries frame the prompt.
	defaultHistoryDays = 7
)

// Runner is the job state machine: it claims at most one pending job at a
// time and always drives it to a terminal state.
type Runner struct {
	store       RunnerStore
	collector   Collector
	selector    Selector
	extractor   Extractor
	summarizer  Summarizer
	poll        time.Duration
	staleAfter  time.Duration
	historyDays int
	now         func() time.Time
	logger      *slog.Logger
}

// NewRunner creates a Runner. If pollInterval is <= 0, it defaults to 15s.
func NewRunner(deps RunnerDeps, pollInterval time.Duration) *Runner {
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	staleAfter := deps.StaleAfter
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	historyDays := deps.HistoryDays
	if historyDays <= 0 {
		historyDays = defaultHistoryDays
	}
	return &Runner{
		store:       deps.Store,
		collector:   deps.Collector,
		selector:    deps.Selector,
		extractor:   deps.Extractor,
		summarizer:  deps.Summarizer,
		poll:        pollInterval,
		staleAfter:  staleAfter,
		historyDays: historyDays,
		now:         time.Now,
		logger:      slog.Default(),
	}
}

// Run polls for jobs until ctx is cancelled, sleeping between empty polls.
func (r *Runner) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := r.RunOnce(ctx)
		if err != nil {
			r.logger.Error("runner iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.poll):
		}
	}
}

// RunOnce claims and fully resolves at most one job. It returns true if a job
// was claimed, regardless of whether it completed or failed. An empty queue is
// not an error; only store faults are.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	if n, err := r.store.FailStaleJobs(r.staleAfter); err != nil {
		r.logger.Error("stale job sweep failed", "error", err)
	} else if n > 0 {
		r.logger.Warn("failed orphaned jobs", "count", n)
	}

	job, err := r.store.ClaimNextJob()
	if err != nil {
		return false, fmt.Errorf("claiming job: %w", err)
	}
	if job == nil {
		return false, nil
	}

	r.logger.Info("processing job", "job_id", job.ID, "ticker", job.Ticker)

	if err := r.processJob(ctx, job); err != nil {
		r.logger.Warn("job failed", "job_id", job.ID, "ticker", job.Ticker, "error", err)
		if failErr := r.store.FailJob(job.ID, err.Error()); failErr != nil {
			r.logger.Error("failed to mark job as failed", "job_id", job.ID, "error", failErr)
		}
		return true, nil
	}

	if err := r.store.CompleteJob(job.ID); err != nil {
		return true, fmt.Errorf("completing job %d: %w", job.ID, err)
	}
	r.logger.Info("job complete", "job_id", job.ID, "ticker", job.Ticker)
	return true, nil
}

// processJob drives the pipeline stages in order. Any returned error becomes
// the job's terminal failure; the caller owns the single terminal status
// write either way.
func (r *Runner) processJob(ctx context.Context, job *storage.Job) (err error) {
	// The collaborators wrap scraping and third-party SDKs; a panic there
	// must still resolve this job rather than take the runner down.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("pipeline panic: %v", rec)
		}
	}()

	ticker := job.Ticker
	today := r.now().UTC().Format("2006-01-02")

	history, err := r.priorContext(ticker, today)
	if err != nil {
		return fmt.Errorf("loading prior summaries: %w", err)
	}

	candidates, err := r.collector.Collect(ctx, ticker)
	if err != nil {
		return fmt.Errorf("collecting articles: %w", err)
	}
	if len(candidates) == 0 {
		return ErrNoArticlesFound
	}

	selected := r.selector.Select(ctx, candidates, ticker)
	if len(selected) == 0 {
		return ErrSelectionFailed
	}

	var survivors []feed.Article
	for _, article := range selected {
		text, extractErr := r.extractor.Text(ctx, article.URL)
		if extractErr != nil {
			r.logger.Warn("dropping article, extraction failed", "url", article.URL, "error", extractErr)
			continue
		}
		article.Text = text
		survivors = append(survivors, article)
	}
	if len(survivors) == 0 {
		return ErrNoExtractableText
	}

	text, ok := r.summarizer.Summarize(ctx, survivors, ticker, history)
	if !ok {
		return ErrSummarizationFailed
	}

	sources := make([]storage.Source, len(survivors))
	for i, a := range survivors {
		sources[i] = storage.Source{Title: a.Title, URL: a.URL}
	}

	if err := r.store.SaveSummary(storage.Summary{
		Ticker:  ticker,
		Date:    today,
		Text:    text,
		Sources: sources,
	}); err != nil {
		return fmt.Errorf("saving summary: %w", err)
	}
	return nil
}

// priorContext returns up to historyDays of summaries strictly before today,
// oldest first. Absence yields an empty slice, not an error.
func (r *Runner) priorContext(ticker, today string) ([]llm.ContextEntry, error) {
	recent, err := r.store.RecentSummaries(ticker, r.historyDays+1)
	if err != nil {
		return nil, err
	}

	var entries []llm.ContextEntry
	for _, sum := range recent {
		if sum.Date >= today {
			continue
		}
		entries = append(entries, llm.ContextEntry{Date: sum.Date, Text: sum.Text})
		if len(entries) == r.historyDays {
			break
		}
	}

	// RecentSummaries is newest-first; the prompt wants oldest-first.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}
