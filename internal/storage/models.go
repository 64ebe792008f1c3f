package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Job statuses. Transitions are one-directional:
// pending -> processing -> complete or failed.
const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobComplete   = "complete"
	JobFailed     = "failed"
)

// Job is one attempt to produce today's summary for one ticker.
type Job struct {
	ID        int64
	Ticker    string
	Status    string
	LastError string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Source attributes a summary to one of the articles it was built from.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Summary is the durable artifact of a successful job: one per ticker per
// calendar day. Date uses the ISO "2006-01-02" form.
type Summary struct {
	Ticker    string    `json:"ticker"`
	Date      string    `json:"date"`
	Text      string    `json:"text"`
	Sources   []Source  `json:"sources"`
	CreatedAt time.Time `json:"created_at"`
}
