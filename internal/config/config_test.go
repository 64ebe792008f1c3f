package config

import (
	"strings"
	"testing"
	"time"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg, err := loadWith(envMap(map[string]string{
		"GEMINI_API_KEY": "test-key",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4600 {
		t.Errorf("Server.Port = %d, want 4600", cfg.Server.Port)
	}
	if cfg.Gemini.Model != "gemini-pro-latest" {
		t.Errorf("Gemini.Model = %q, want %q", cfg.Gemini.Model, "gemini-pro-latest")
	}
	if cfg.Worker.PollInterval != 15*time.Second {
		t.Errorf("Worker.PollInterval = %v, want 15s", cfg.Worker.PollInterval)
	}
	if cfg.Worker.StaleAfter != 30*time.Minute {
		t.Errorf("Worker.StaleAfter = %v, want 30m", cfg.Worker.StaleAfter)
	}
	if cfg.Worker.HistoryDays != 7 {
		t.Errorf("Worker.HistoryDays = %d, want 7", cfg.Worker.HistoryDays)
	}
	if cfg.Storage.DataDir == "" {
		t.Error("Storage.DataDir is empty")
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
}

func TestEnvOverrides(t *testing.T) {
	cfg, err := loadWith(envMap(map[string]string{
		"GEMINI_API_KEY":            "test-key",
		"POLYGON_API_KEY":           "poly-key",
		"TICKERBRIEF_SERVER_PORT":   "9999",
		"TICKERBRIEF_DATA_DIR":      "/tmp/tb",
		"TICKERBRIEF_GEMINI_MODEL":  "gemini-flash-latest",
		"TICKERBRIEF_POLL_INTERVAL": "5s",
		"TICKERBRIEF_STALE_AFTER":   "1h",
		"TICKERBRIEF_HISTORY_DAYS":  "3",
		"TICKERBRIEF_LOG_LEVEL":     "debug",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999", cfg.Server.Port)
	}
	if cfg.Storage.DataDir != "/tmp/tb" {
		t.Errorf("Storage.DataDir = %q, want /tmp/tb", cfg.Storage.DataDir)
	}
	if cfg.Gemini.APIKey != "test-key" {
		t.Errorf("Gemini.APIKey = %q, want test-key", cfg.Gemini.APIKey)
	}
	if cfg.Gemini.Model != "gemini-flash-latest" {
		t.Errorf("Gemini.Model = %q, want gemini-flash-latest", cfg.Gemini.Model)
	}
	if cfg.Polygon.APIKey != "poly-key" {
		t.Errorf("Polygon.APIKey = %q, want poly-key", cfg.Polygon.APIKey)
	}
	if cfg.Worker.PollInterval != 5*time.Second {
		t.Errorf("Worker.PollInterval = %v, want 5s", cfg.Worker.PollInterval)
	}
	if cfg.Worker.StaleAfter != time.Hour {
		t.Errorf("Worker.StaleAfter = %v, want 1h", cfg.Worker.StaleAfter)
	}
	if cfg.Worker.HistoryDays != 3 {
		t.Errorf("Worker.HistoryDays = %d, want 3", cfg.Worker.HistoryDays)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want debug", cfg.Log.Level)
	}
}

func TestMissingAPIKey(t *testing.T) {
	_, err := loadWith(envMap(nil))
	if err == nil {
		t.Fatal("expected error for missing Gemini API key")
	}
	if !strings.Contains(err.Error(), "GEMINI_API_KEY") {
		t.Errorf("error %q does not name GEMINI_API_KEY", err)
	}
}

func TestInvalidDuration(t *testing.T) {
	_, err := loadWith(envMap(map[string]string{
		"GEMINI_API_KEY":            "test-key",
		"TICKERBRIEF_POLL_INTERVAL": "soon",
	}))
	if err == nil {
		t.Fatal("expected error for bad duration")
	}
	if !strings.Contains(err.Error(), "TICKERBRIEF_POLL_INTERVAL") {
		t.Errorf("error %q does not name the offending variable", err)
	}
}

func TestInvalidInt(t *testing.T) {
	_, err := loadWith(envMap(map[string]string{
		"GEMINI_API_KEY":          "test-key",
		"TICKERBRIEF_SERVER_PORT": "eighty",
	}))
	if err == nil {
		t.Fatal("expected error for bad integer")
	}
}
