package storage

import (
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database with methods for tickers, summaries, and jobs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending migrations.
// Pass ":memory:" as dataDir for an in-memory database (used by tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "tickerbrief.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing immediately.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for tests and tooling.
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort by filename to guarantee ascending order.
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// AppliedMigrations returns the list of applied migration versions in ascending order.
func (s *Store) AppliedMigrations() ([]int, error) {
	rows, err := s.db.Query("SELECT version FROM schema_version ORDER BY version ASC")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var versions []int
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

// --- Tickers ---

// AddTicker registers a symbol. Adding a symbol that already exists is a no-op.
func (s *Store) AddTicker(symbol string) error {
	_, err := s.db.Exec(`INSERT INTO tickers (symbol) VALUES (?) ON CONFLICT(symbol) DO NOTHING`, symbol)
	return err
}

// HasTicker reports whether the symbol is registered.
func (s *Store) HasTicker(symbol string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM tickers WHERE symbol = ?`, symbol).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListTickers returns all registered symbols in alphabetical order.
func (s *Store) ListTickers() ([]string, error) {
	rows, err := s.db.Query(`SELECT symbol FROM tickers ORDER BY symbol ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var symbols []string
	for rows.Next() {
		var sym string
		if err := rows.Scan(&sym); err != nil {
			return nil, err
		}
		symbols = append(symbols, sym)
	}
	return symbols, rows.Err()
}

// RemoveTicker deletes a symbol. Removing an absent symbol is a no-op.
func (s *Store) RemoveTicker(symbol string) error {
	_, err := s.db.Exec(`DELETE FROM tickers WHERE symbol = ?`, symbol)
	return err
}

// --- Summaries ---

// SaveSummary inserts or overwrites the summary for (ticker, date).
func (s *Store) SaveSummary(sum Summary) error {
	sourcesJSON := "[]"
	if sum.Sources != nil {
		b, err := json.Marshal(sum.Sources)
		if err != nil {
			return fmt.Errorf("marshaling sources: %w", err)
		}
		sourcesJSON = string(b)
	}
	createdAt := sum.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO summaries (ticker_symbol, summary_date, summary_text, sources_json, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(ticker_symbol, summary_date) DO UPDATE SET
			summary_text = excluded.summary_text,
			sources_json = excluded.sources_json,
			created_at = excluded.created_at`,
		sum.Ticker, sum.Date, sum.Text, sourcesJSON, createdAt.Format(time.RFC3339),
	)
	return err
}

// GetSummary returns the summary for (ticker, date), or ErrNotFound.
func (s *Store) GetSummary(ticker, date string) (Summary, error) {
	var sum Summary
	var sourcesJSON, createdAt string
	err := s.db.QueryRow(`
		SELECT ticker_symbol, summary_date, summary_text, sources_json, created_at
		FROM summaries WHERE ticker_symbol = ? AND summary_date = ?`,
		ticker, date,
	).Scan(&sum.Ticker, &sum.Date, &sum.Text, &sourcesJSON, &createdAt)
	if err == sql.ErrNoRows {
		return Summary{}, ErrNotFound
	}
	if err != nil {
		return Summary{}, err
	}
	sum.Sources = parseSources(sourcesJSON)
	if sum.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Summary{}, fmt.Errorf("parsing created_at: %w", err)
	}
	return sum, nil
}

// HasSummary reports whether a summary exists for (ticker, date).
func (s *Store) HasSummary(ticker, date string) (bool, error) {
	var one int
	err := s.db.QueryRow(`SELECT 1 FROM summaries WHERE ticker_symbol = ? AND summary_date = ?`, ticker, date).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// RecentSummaries returns up to limit summaries for the ticker, newest first.
func (s *Store) RecentSummaries(ticker string, limit int) ([]Summary, error) {
	rows, err := s.db.Query(`
		SELECT ticker_symbol, summary_date, summary_text, sources_json, created_at
		FROM summaries WHERE ticker_symbol = ?
		ORDER BY summary_date DESC LIMIT ?`,
		ticker, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Summary
	for rows.Next() {
		var sum Summary
		var sourcesJSON, createdAt string
		if err := rows.Scan(&sum.Ticker, &sum.Date, &sum.Text, &sourcesJSON, &createdAt); err != nil {
			return nil, err
		}
		sum.Sources = parseSources(sourcesJSON)
		if sum.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, sum)
	}
	return results, rows.Err()
}

// parseSources degrades unreadable attribution to an empty list; it is
// display metadata, not something worth failing a read over.
func parseSources(raw string) []Source {
	var sources []Source
	if err := json.Unmarshal([]byte(raw), &sources); err != nil {
		return []Source{}
	}
	if sources == nil {
		return []Source{}
	}
	return sources
}

// --- Jobs ---

// CreateJob inserts a pending job for the ticker and returns its ID.
func (s *Store) CreateJob(ticker string) (int64, error) {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`
		INSERT INTO jobs (ticker_symbol, status, created_at, updated_at)
		VALUES (?, 'pending', ?, ?)`,
		ticker, now, now,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ClaimNextJob atomically transitions the oldest pending job to processing
// and returns it. Returns nil when no pending job exists. The conditional
// update guards against a concurrent runner claiming the same row.
func (s *Store) ClaimNextJob() (*Job, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}

	var j Job
	var createdAt, updatedAt string
	err = tx.QueryRow(`
		SELECT id, ticker_symbol, status, last_error, created_at, updated_at
		FROM jobs WHERE status = 'pending'
		ORDER BY created_at ASC, id ASC
		LIMIT 1`,
	).Scan(&j.ID, &j.Ticker, &j.Status, &j.LastError, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, nil
	}
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("selecting next job: %w", err)
	}

	res, err := tx.Exec(`UPDATE jobs SET status = 'processing', updated_at = ? WHERE id = ? AND status = 'pending'`, now, j.ID)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("updating job status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("checking updated job rows: %w", err)
	}
	if n != 1 {
		tx.Rollback()
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	j.Status = JobProcessing
	if j.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for job %d: %w", j.ID, err)
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339, now); err != nil {
		return nil, fmt.Errorf("parsing updated_at for job %d: %w", j.ID, err)
	}
	return &j, nil
}

// CompleteJob marks the job complete.
func (s *Store) CompleteJob(id int64) error {
	return s.resolveJob(id, JobComplete, "")
}

// FailJob marks the job failed with the terminal failure reason. Failed is
// terminal: retries go through a fresh dispatch, never back to pending.
func (s *Store) FailJob(id int64, reason string) error {
	return s.resolveJob(id, JobFailed, reason)
}

func (s *Store) resolveJob(id int64, status, lastError string) error {
	now := time.Now().UTC().Format(time.RFC3339)
	res, err := s.db.Exec(`UPDATE jobs SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		status, lastError, now, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// HasActiveJob reports whether the ticker has a job in pending or processing.
func (s *Store) HasActiveJob(ticker string) (bool, error) {
	var one int
	err := s.db.QueryRow(`
		SELECT 1 FROM jobs WHERE ticker_symbol = ? AND status IN ('pending', 'processing') LIMIT 1`,
		ticker,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteFailedJobs removes failed rows for the ticker. Best-effort housekeeping
// before a new job is dispatched; losing these rows is acceptable.
func (s *Store) DeleteFailedJobs(ticker string) error {
	_, err := s.db.Exec(`DELETE FROM jobs WHERE ticker_symbol = ? AND status = 'failed'`, ticker)
	return err
}

// LatestJob returns the most recently created job for the ticker, or ErrNotFound.
func (s *Store) LatestJob(ticker string) (Job, error) {
	var j Job
	var createdAt, updatedAt string
	err := s.db.QueryRow(`
		SELECT id, ticker_symbol, status, last_error, created_at, updated_at
		FROM jobs WHERE ticker_symbol = ?
		ORDER BY created_at DESC, id DESC LIMIT 1`,
		ticker,
	).Scan(&j.ID, &j.Ticker, &j.Status, &j.LastError, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return Job{}, ErrNotFound
	}
	if err != nil {
		return Job{}, err
	}
	if j.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return Job{}, fmt.Errorf("parsing created_at for job %d: %w", j.ID, err)
	}
	if j.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return Job{}, fmt.Errorf("parsing updated_at for job %d: %w", j.ID, err)
	}
	return j, nil
}

// FailStaleJobs marks processing jobs last touched before maxAge ago as
// failed. A killed runner leaves its claimed job stuck in processing; this
// moves such orphans forward to a terminal state so a later refresh can
// dispatch a fresh attempt.
func (s *Store) FailStaleJobs(maxAge time.Duration) (int64, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-maxAge).Format(time.RFC3339)
	res, err := s.db.Exec(`
		UPDATE jobs SET status = 'failed', last_error = 'orphaned: processing exceeded staleness limit', updated_at = ?
		WHERE status = 'processing' AND updated_at < ?`,
		now.Format(time.RFC3339), cutoff,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
