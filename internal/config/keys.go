package config

import (
	"fmt"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
)

type keySpec struct {
	env   string
	typ   keyType
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		env: "TICKERBRIEF_SERVER_PORT", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		env: "TICKERBRIEF_DATA_DIR", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		env: "GEMINI_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Gemini.APIKey = v.(string) },
	},
	{
		env: "TICKERBRIEF_GEMINI_MODEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Gemini.Model = v.(string) },
	},
	{
		env: "POLYGON_API_KEY", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Polygon.APIKey = v.(string) },
	},
	{
		env: "TICKERBRIEF_POLL_INTERVAL", typ: kDuration,
		apply: func(cfg *Config, v any) { cfg.Worker.PollInterval = v.(time.Duration) },
	},
	{
		env: "TICKERBRIEF_STALE_AFTER", typ: kDuration,
		apply: func(cfg *Config, v any) { cfg.Worker.StaleAfter = v.(time.Duration) },
	},
	{
		env: "TICKERBRIEF_HISTORY_DAYS", typ: kInt,
		apply: func(cfg *Config, v any) { cfg.Worker.HistoryDays = v.(int) },
	},
	{
		env: "TICKERBRIEF_LOG_LEVEL", typ: kString,
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyEnvOverrides(cfg *Config, getenv func(string) string) error {
	for _, s := range specs {
		raw := getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			i, err := strconv.Atoi(raw)
			if err != nil {
				return fmt.Errorf("invalid integer in env var %s=%q: %w", s.env, raw, err)
			}
			s.apply(cfg, i)
		case kDuration:
			d, err := time.ParseDuration(raw)
			if err != nil {
				return fmt.Errorf("invalid duration in env var %s=%q: %w", s.env, raw, err)
			}
			s.apply(cfg, d)
		}
	}
	return nil
}
