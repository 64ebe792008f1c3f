package extract

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const articlePage = `<!DOCTYPE html>
<html>
<head><title>ACME posts record quarter</title></head>
<body>
<nav><a href="/">Home</a><a href="/markets">Markets</a></nav>
<article>
<h1>ACME posts record quarter</h1>
<p>ACME Corporation reported quarterly revenue of $4.2 billion on Thursday,
comfortably ahead of analyst expectations, driven by strong demand for its
rocket-powered product line across North America and Europe.</p>
<p>Management raised full-year guidance and announced a further $500 million
buyback, citing durable order momentum heading into the fourth quarter.</p>
<p>Shares rose six percent in after-hours trading following the release, and
several analysts lifted their price targets in response to the report.</p>
</article>
<footer>Copyright</footer>
</body>
</html>`

func TestTextExtractsBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(articlePage))
	}))
	defer srv.Close()

	text, err := New().Text(context.Background(), srv.URL+"/story")
	if err != nil {
		t.Fatalf("Text: %v", err)
	}
	if !strings.Contains(text, "quarterly revenue of $4.2 billion") {
		t.Errorf("extracted text missing article body, got: %.120q", text)
	}
	if strings.Contains(text, "Copyright") {
		t.Errorf("extracted text includes page chrome: %.120q", text)
	}
}

func TestTextErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	if _, err := New().Text(context.Background(), srv.URL+"/gone"); err == nil {
		t.Error("Text on 404 succeeded, want error")
	}
}

func TestTextUnreachableHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	srv.Close() // immediately, so the address refuses connections

	if _, err := New().Text(context.Background(), srv.URL); err == nil {
		t.Error("Text against closed server succeeded, want error")
	}
}
