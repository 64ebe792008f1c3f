package llm

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestCallWithRetrySuccessFirstAttempt(t *testing.T) {
	calls := 0
	text, ok := callWithRetry(context.Background(), func(context.Context) outcome {
		calls++
		return success("hello")
	}, 3, time.Millisecond, slog.Default())

	if !ok || text != "hello" {
		t.Fatalf("got (%q, %v), want (hello, true)", text, ok)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestCallWithRetryRetriesTransient(t *testing.T) {
	calls := 0
	text, ok := callWithRetry(context.Background(), func(context.Context) outcome {
		calls++
		if calls < 3 {
			return transient(errors.New("503 unavailable"))
		}
		return success("finally")
	}, 3, time.Millisecond, slog.Default())

	if !ok || text != "finally" {
		t.Fatalf("got (%q, %v), want (finally, true)", text, ok)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestCallWithRetryExhaustsTransient(t *testing.T) {
	calls := 0
	_, ok := callWithRetry(context.Background(), func(context.Context) outcome {
		calls++
		return transient(errors.New("timeout"))
	}, 3, time.Millisecond, slog.Default())

	if ok {
		t.Fatal("ok = true after exhausting retries")
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

// TestCallWithRetryStopsOnPermanent: auth/quota style failures get no second
// attempt.
func TestCallWithRetryStopsOnPermanent(t *testing.T) {
	calls := 0
	_, ok := callWithRetry(context.Background(), func(context.Context) outcome {
		calls++
		return permanent(errors.New("401 unauthorized"))
	}, 3, time.Millisecond, slog.Default())

	if ok {
		t.Fatal("ok = true on permanent failure")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestCallWithRetryHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, ok := callWithRetry(ctx, func(context.Context) outcome {
		calls++
		cancel()
		return transient(errors.New("unavailable"))
	}, 3, time.Hour, slog.Default())

	if ok {
		t.Fatal("ok = true after context cancellation")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry after cancel)", calls)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want failureKind
	}{
		{errors.New("googleapi: Error 429: quota exceeded"), failurePermanent},
		{errors.New("rate limit reached"), failurePermanent},
		{errors.New("RESOURCE_EXHAUSTED"), failurePermanent},
		{errors.New("googleapi: Error 503: service unavailable"), failureTransient},
		{errors.New("500 internal server error"), failureTransient},
		{errors.New("the model is overloaded"), failureTransient},
		{context.DeadlineExceeded, failureTransient},
		{context.Canceled, failurePermanent},
		{errors.New("googleapi: Error 400: invalid argument"), failurePermanent},
		{errors.New("401 API key not valid"), failurePermanent},
		{errors.New("404 model not found"), failurePermanent},
	}

	for _, tc := range cases {
		if got := classify(tc.err); got.kind != tc.want {
			t.Errorf("classify(%v) = %d, want %d", tc.err, got.kind, tc.want)
		}
	}
}
