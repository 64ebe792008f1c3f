package llm

import (
	"context"
	"log/slog"
	"time"
)

// failureKind classifies one upstream model call attempt.
type failureKind int

const (
	failureNone failureKind = iota
	// failureTransient covers server unavailability and timeouts; worth retrying.
	failureTransient
	// failurePermanent covers auth, malformed-request, not-found, and
	// rate/quota exhaustion. Quota is deliberately non-retryable here:
	// hammering an exhausted key only digs the hole deeper.
	failurePermanent
)

// outcome is the tagged result of one model call. The retry loop operates on
// this value alone; errors never drive control flow past classification.
type outcome struct {
	text string
	kind failureKind
	err  error
}

func success(text string) outcome { return outcome{text: text, kind: failureNone} }
func transient(err error) outcome { return outcome{kind: failureTransient, err: err} }
func permanent(err error) outcome { return outcome{kind: failurePermanent, err: err} }

const (
	defaultMaxAttempts = 3
	defaultBackoffBase = 2 * time.Second
)

// callWithRetry runs op up to maxAttempts times, doubling the backoff between
// attempts, retrying only transient failures. It returns the text and true on
// success, or "" and false once retries are exhausted, a permanent failure is
// seen, or ctx expires. Callers check the bool, never an error.
func callWithRetry(ctx context.Context, op func(context.Context) outcome, maxAttempts int, backoff time.Duration, logger *slog.Logger) (string, bool) {
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		out := op(ctx)
		switch out.kind {
		case failureNone:
			return out.text, true
		case failurePermanent:
			logger.Warn("model call failed permanently", "attempt", attempt, "error", out.err)
			return "", false
		}

		logger.Warn("model call failed, will retry", "attempt", attempt, "error", out.err)
		if attempt == maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(backoff):
		}
		backoff *= 2
	}
	return "", false
}
