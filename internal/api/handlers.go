package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tickerbrief/internal/pipeline"
	"tickerbrief/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

const defaultSummaryDays = 8

type AddTickerRequest struct {
	Symbol string `json:"symbol"`
}

type Deps struct {
	Store      *storage.Store
	Dispatcher *pipeline.Dispatcher
}

// NewHandler returns an http.Handler implementing the ticker REST API.
func NewHandler(deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)

	r.Get("/health", handleHealth)
	r.Post("/tickers", handleAddTicker(deps))
	r.Get("/tickers", handleListTickers(deps))
	r.Delete("/tickers/{symbol}", handleRemoveTicker(deps))
	r.Post("/tickers/{symbol}/refresh", handleRefresh(deps))
	r.Post("/refresh", handleRefreshAll(deps))
	r.Get("/tickers/{symbol}/status", handleStatus(deps))
	r.Get("/tickers/{symbol}/summaries", handleSummaries(deps))

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}

func handleAddTicker(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req AddTickerRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		symbol := pipeline.NormalizeTicker(req.Symbol)
		if symbol == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "symbol is required")
			return
		}

		// Re-adding a known ticker is a no-op, not a conflict.
		if err := deps.Store.AddTicker(symbol); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "adding ticker: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(map[string]string{"symbol": symbol})
	}
}

func handleListTickers(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tickers, err := deps.Store.ListTickers()
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "listing tickers: %v", err)
			return
		}
		if tickers == nil {
			tickers = []string{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"tickers": tickers})
	}
}

func handleRemoveTicker(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := pipeline.NormalizeTicker(chi.URLParam(r, "symbol"))
		if symbol == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "symbol is required")
			return
		}

		if err := deps.Store.RemoveTicker(symbol); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "removing ticker: %v", err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleRefresh(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := chi.URLParam(r, "symbol")
		if err := deps.Dispatcher.RequestRefresh(symbol); err != nil {
			writeDispatchError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
	}
}

func handleRefreshAll(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := deps.Dispatcher.RefreshAll(); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "refreshing all tickers: %v", err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(map[string]string{"status": "accepted"})
	}
}

func handleStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status, err := deps.Dispatcher.Status(chi.URLParam(r, "symbol"))
		if err != nil {
			writeDispatchError(w, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	}
}

func handleSummaries(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		symbol := pipeline.NormalizeTicker(chi.URLParam(r, "symbol"))
		if symbol == "" {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "symbol is required")
			return
		}

		days := defaultSummaryDays
		if raw := r.URL.Query().Get("days"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 {
				httpError(w, http.StatusBadRequest, "invalid_request_error", "days must be a positive integer")
				return
			}
			days = n
		}

		summaries, err := deps.Store.RecentSummaries(symbol, days)
		if err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "loading summaries: %v", err)
			return
		}
		if summaries == nil {
			summaries = []storage.Summary{}
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"summaries": summaries})
	}
}

func writeDispatchError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, pipeline.ErrInvalidTicker):
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid ticker symbol")
	case errors.Is(err, pipeline.ErrUnknownTicker):
		httpError(w, http.StatusNotFound, "not_found_error", "unknown ticker")
	default:
		httpError(w, http.StatusInternalServerError, "api_error", "%v", err)
	}
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
