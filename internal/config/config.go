package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Gemini  GeminiConfig
	Polygon PolygonConfig
	Worker  WorkerConfig
	Log     LogConfig
}

type ServerConfig struct {
	Port int
}

type StorageConfig struct {
	DataDir string
}

type GeminiConfig struct {
	APIKey string
	Model  string
}

type PolygonConfig struct {
	APIKey string
}

type WorkerConfig struct {
	PollInterval time.Duration
	StaleAfter   time.Duration
	HistoryDays  int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
		},
		Gemini: GeminiConfig{
			Model: "gemini-pro-latest",
		},
		Worker: WorkerConfig{
			PollInterval: 15 * time.Second,
			StaleAfter:   30 * time.Minute,
			HistoryDays:  7,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "tickerbrief-data"
		}
	}
	return filepath.Join(dir, "tickerbrief")
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first, if present; real environment
// variables take precedence over it.
//
// GEMINI_API_KEY is required. Everything else has a default.
func Load() (Config, error) {
	_ = godotenv.Load()
	return loadWith(os.Getenv)
}

func loadWith(getenv func(string) string) (Config, error) {
	cfg := defaults()

	if err := applyEnvOverrides(&cfg, getenv); err != nil {
		return Config{}, err
	}

	if cfg.Gemini.APIKey == "" {
		return Config{}, fmt.Errorf("missing required config: Gemini API key. Set it via environment variable GEMINI_API_KEY")
	}

	return cfg, nil
}
