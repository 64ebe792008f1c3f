package api

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tickerbrief/internal/pipeline"
	"tickerbrief/internal/storage"
)

func setupHandler(t *testing.T) (http.Handler, *storage.Store) {
	t.Helper()
	store, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	handler := NewHandler(Deps{
		Store:      store,
		Dispatcher: pipeline.NewDispatcher(store),
	})
	return handler, store
}

func doRequest(t *testing.T, h http.Handler, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, into any) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), into); err != nil {
		t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	h, _ := setupHandler(t)
	rec := doRequest(t, h, http.MethodGet, "/health", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"ok"`) {
		t.Errorf("body = %q, want ok status", rec.Body.String())
	}
}

func TestAddTicker(t *testing.T) {
	h, store := setupHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/tickers", `{"symbol":" acme "}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["symbol"] != "ACME" {
		t.Errorf("symbol = %q, want ACME", resp["symbol"])
	}

	ok, err := store.HasTicker("ACME")
	if err != nil || !ok {
		t.Errorf("HasTicker(ACME) = %v, %v, want true", ok, err)
	}
}

func TestAddTickerDuplicate(t *testing.T) {
	h, _ := setupHandler(t)

	doRequest(t, h, http.MethodPost, "/tickers", `{"symbol":"ACME"}`)
	rec := doRequest(t, h, http.MethodPost, "/tickers", `{"symbol":"ACME"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("duplicate add status = %d, want 201", rec.Code)
	}
}

func TestAddTickerRejectsEmpty(t *testing.T) {
	h, _ := setupHandler(t)

	for _, body := range []string{`{"symbol":""}`, `{"symbol":"   "}`, `{}`, `not json`} {
		rec := doRequest(t, h, http.MethodPost, "/tickers", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("body %q: status = %d, want 400", body, rec.Code)
		}
	}
}

func TestListTickers(t *testing.T) {
	h, store := setupHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/tickers", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Tickers []string `json:"tickers"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Tickers) != 0 {
		t.Errorf("tickers = %v, want empty", resp.Tickers)
	}

	if err := store.AddTicker("ACME"); err != nil {
		t.Fatal(err)
	}
	if err := store.AddTicker("GLOBO"); err != nil {
		t.Fatal(err)
	}

	rec = doRequest(t, h, http.MethodGet, "/tickers", "")
	decodeBody(t, rec, &resp)
	if len(resp.Tickers) != 2 {
		t.Errorf("tickers = %v, want 2 entries", resp.Tickers)
	}
}

func TestRemoveTicker(t *testing.T) {
	h, store := setupHandler(t)
	if err := store.AddTicker("ACME"); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, h, http.MethodDelete, "/tickers/acme", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}

	ok, err := store.HasTicker("ACME")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("ticker still present after delete")
	}
}

func TestRefreshEnqueuesJob(t *testing.T) {
	h, store := setupHandler(t)
	if err := store.AddTicker("ACME"); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, h, http.MethodPost, "/tickers/ACME/refresh", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	job, err := store.LatestJob("ACME")
	if err != nil {
		t.Fatalf("LatestJob: %v", err)
	}
	if job.Status != storage.JobPending {
		t.Errorf("job status = %q, want pending", job.Status)
	}
}

func TestRefreshUnknownTicker(t *testing.T) {
	h, _ := setupHandler(t)

	rec := doRequest(t, h, http.MethodPost, "/tickers/NOPE/refresh", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}

func TestRefreshAll(t *testing.T) {
	h, store := setupHandler(t)
	for _, sym := range []string{"ACME", "GLOBO"} {
		if err := store.AddTicker(sym); err != nil {
			t.Fatal(err)
		}
	}

	rec := doRequest(t, h, http.MethodPost, "/refresh", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want 202: %s", rec.Code, rec.Body.String())
	}

	for _, sym := range []string{"ACME", "GLOBO"} {
		if _, err := store.LatestJob(sym); err != nil {
			t.Errorf("no job enqueued for %s: %v", sym, err)
		}
	}
}

func TestStatus(t *testing.T) {
	h, store := setupHandler(t)
	if err := store.AddTicker("ACME"); err != nil {
		t.Fatal(err)
	}

	rec := doRequest(t, h, http.MethodGet, "/tickers/ACME/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp map[string]string
	decodeBody(t, rec, &resp)
	if resp["status"] != "complete" {
		t.Errorf("status = %q, want complete with no jobs", resp["status"])
	}

	if _, err := store.CreateJob("ACME"); err != nil {
		t.Fatal(err)
	}
	rec = doRequest(t, h, http.MethodGet, "/tickers/ACME/status", "")
	decodeBody(t, rec, &resp)
	if resp["status"] != "processing" {
		t.Errorf("status = %q, want processing with a pending job", resp["status"])
	}
}

func TestSummaries(t *testing.T) {
	h, store := setupHandler(t)
	if err := store.AddTicker("ACME"); err != nil {
		t.Fatal(err)
	}

	for _, date := range []string{"2026-08-27", "2026-08-28", "2026-08-29"} {
		err := store.SaveSummary(storage.Summary{
			Ticker:    "ACME",
			Date:      date,
			Text:      "summary for " + date,
			Sources:   []storage.Source{{Title: "t", URL: "https://example.com/" + date}},
			CreatedAt: time.Now().UTC(),
		})
		if err != nil {
			t.Fatal(err)
		}
	}

	rec := doRequest(t, h, http.MethodGet, "/tickers/acme/summaries", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Summaries []storage.Summary `json:"summaries"`
	}
	decodeBody(t, rec, &resp)
	if len(resp.Summaries) != 3 {
		t.Fatalf("got %d summaries, want 3", len(resp.Summaries))
	}
	if resp.Summaries[0].Date != "2026-08-29" {
		t.Errorf("first summary date = %q, want newest first", resp.Summaries[0].Date)
	}

	rec = doRequest(t, h, http.MethodGet, "/tickers/ACME/summaries?days=1", "")
	decodeBody(t, rec, &resp)
	if len(resp.Summaries) != 1 {
		t.Errorf("days=1: got %d summaries, want 1", len(resp.Summaries))
	}
}

func TestSummariesRejectsBadDays(t *testing.T) {
	h, _ := setupHandler(t)
	for _, q := range []string{"days=0", "days=-2", "days=soon"} {
		rec := doRequest(t, h, http.MethodGet, "/tickers/ACME/summaries?"+q, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, rec.Code)
		}
	}
}

func TestRequestIDEchoed(t *testing.T) {
	h, _ := setupHandler(t)

	rec := doRequest(t, h, http.MethodGet, "/health", "")
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("response missing generated X-Request-Id")
	}

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "fixed-id")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-Id"); got != "fixed-id" {
		t.Errorf("X-Request-Id = %q, want fixed-id preserved", got)
	}
}
