package pipeline

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"tickerbrief/internal/storage"
)

// ErrInvalidTicker rejects empty symbols at the intake boundary.
var ErrInvalidTicker = errors.New("invalid ticker symbol")

// ErrUnknownTicker rejects refresh requests for unregistered symbols.
var ErrUnknownTicker = errors.New("unknown ticker")

// Client-facing status values. Failed jobs deliberately read as "complete":
// the status poll answers "should the client keep polling", nothing more.
const (
	StatusProcessing = "processing"
	StatusComplete   = "complete"
)

// NormalizeTicker upper-cases and trims a user-supplied symbol.
func NormalizeTicker(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}

// DispatchStore abstracts the store operations the Dispatcher needs.
type DispatchStore interface {
	HasTicker(symbol string) (bool, error)
	ListTickers() ([]string, error)
	DeleteFailedJobs(ticker string) error
	HasSummary(ticker, date string) (bool, error)
	HasActiveJob(ticker string) (bool, error)
	CreateJob(ticker string) (int64, error)
	LatestJob(ticker string) (storage.Job, error)
}

// Dispatcher turns refresh requests into pending jobs, subject to the
// de-duplication rules: no new job while today's summary exists or another
// job for the ticker is still in flight.
type Dispatcher struct {
	store  DispatchStore
	logger *slog.Logger
	now    func() time.Time
}

// NewDispatcher creates a Dispatcher over the given store.
func NewDispatcher(store DispatchStore) *Dispatcher {
	return &Dispatcher{
		store:  store,
		logger: slog.Default(),
		now:    time.Now,
	}
}

// RequestRefresh ensures today's summary for the ticker exists or is in
// flight. It is idempotent: if either already holds, nothing happens. Stale
// failed rows are swept first so the ticker gets a fresh attempt.
func (d *Dispatcher) RequestRefresh(symbol string) error {
	ticker := NormalizeTicker(symbol)
	if ticker == "" {
		return ErrInvalidTicker
	}

	known, err := d.store.HasTicker(ticker)
	if err != nil {
		return fmt.Errorf("checking ticker: %w", err)
	}
	if !known {
		return fmt.Errorf("%w: %s", ErrUnknownTicker, ticker)
	}

	if err := d.store.DeleteFailedJobs(ticker); err != nil {
		return fmt.Errorf("cleaning failed jobs: %w", err)
	}

	today := d.now().UTC().Format("2006-01-02")
	have, err := d.store.HasSummary(ticker, today)
	if err != nil {
		return fmt.Errorf("checking summary: %w", err)
	}
	if have {
		d.logger.Debug("summary already exists, skipping refresh", "ticker", ticker, "date", today)
		return nil
	}

	active, err := d.store.HasActiveJob(ticker)
	if err != nil {
		return fmt.Errorf("checking active jobs: %w", err)
	}
	if active {
		d.logger.Debug("job already in flight, skipping refresh", "ticker", ticker)
		return nil
	}

	id, err := d.store.CreateJob(ticker)
	if err != nil {
		return fmt.Errorf("creating job: %w", err)
	}
	d.logger.Info("refresh job enqueued", "ticker", ticker, "job_id", id)
	return nil
}

// RefreshAll requests a refresh for every registered ticker. One ticker's
// failure doesn't block the rest; per-ticker errors are logged and skipped.
func (d *Dispatcher) RefreshAll() error {
	tickers, err := d.store.ListTickers()
	if err != nil {
		return fmt.Errorf("listing tickers: %w", err)
	}
	for _, ticker := range tickers {
		if err := d.RequestRefresh(ticker); err != nil {
			d.logger.Warn("refresh request failed", "ticker", ticker, "error", err)
		}
	}
	return nil
}

// Status reports whether the client should keep polling for the ticker:
// "processing" while the most recent job is pending or processing,
// "complete" otherwise — including when that job failed or none exists.
func (d *Dispatcher) Status(symbol string) (string, error) {
	ticker := NormalizeTicker(symbol)
	if ticker == "" {
		return "", ErrInvalidTicker
	}

	job, err := d.store.LatestJob(ticker)
	if errors.Is(err, storage.ErrNotFound) {
		return StatusComplete, nil
	}
	if err != nil {
		return "", fmt.Errorf("loading latest job: %w", err)
	}

	switch job.Status {
	case storage.JobPending, storage.JobProcessing:
		return StatusProcessing, nil
	default:
		return StatusComplete, nil
	}
}
