package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"tickerbrief/internal/api"
	"tickerbrief/internal/config"
	"tickerbrief/internal/extract"
	"tickerbrief/internal/feed"
	"tickerbrief/internal/llm"
	"tickerbrief/internal/pipeline"
	"tickerbrief/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the tickerbrief API server and background worker (foreground)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer()
	},
}

func setupLogging(cfg config.Config) {
	logLevel := slog.LevelInfo
	if strings.EqualFold(cfg.Log.Level, "debug") {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))
}

// buildRunner assembles the summarization pipeline from config: news
// sources, article extractor, and the Gemini client for both the
// selection and summarization stages.
func buildRunner(ctx context.Context, cfg config.Config, store *storage.Store) (*pipeline.Runner, error) {
	var sources []feed.Source
	if cfg.Polygon.APIKey != "" {
		sources = append(sources, feed.NewPolygonSource(cfg.Polygon.APIKey))
	} else {
		slog.Warn("POLYGON_API_KEY not set, polygon news source disabled")
	}
	sources = append(sources, feed.NewFinvizSource(), feed.NewTradingViewSource())

	llmClient, err := llm.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}

	deps := pipeline.RunnerDeps{
		Store:       store,
		Collector:   feed.NewCollector(sources...),
		Selector:    llmClient,
		Extractor:   extract.New(),
		Summarizer:  llmClient,
		StaleAfter:  cfg.Worker.StaleAfter,
		HistoryDays: cfg.Worker.HistoryDays,
	}
	return pipeline.NewRunner(deps, cfg.Worker.PollInterval), nil
}

func runServer() error {
	fmt.Fprintf(os.Stderr, "tickerbrief version %s\n", version)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return fmt.Errorf("opening storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "warning: closing storage: %v\n", err)
		}
	}()

	runner, err := buildRunner(ctx, cfg, store)
	if err != nil {
		return err
	}
	go runner.Run(ctx)

	handler := api.NewHandler(api.Deps{
		Store:      store,
		Dispatcher: pipeline.NewDispatcher(store),
	})

	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(os.Stderr, "tickerbrief listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
