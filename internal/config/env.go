package config

import (
	"fmt"
	"os"
	"strings"
)

// Environment variables that override file values. These match the
// secret names the deployment injects, so the config file never has to
// contain credentials.
const (
	EnvSupabaseURL = "SUPABASE_URL"
	EnvSupabaseKey = "SUPABASE_KEY"
	EnvBotToken    = "BOT_TOKEN"
)

// ApplyEnv overlays secrets from the process environment onto cfg.
// A set (non-empty) environment variable always wins over the file.
func ApplyEnv(cfg *Config) {
	if cfg == nil {
		return
	}
	if v := strings.TrimSpace(os.Getenv(EnvSupabaseURL)); v != "" {
		cfg.Supabase.URL = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvSupabaseKey)); v != "" {
		cfg.Supabase.Key = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBotToken)); v != "" {
		cfg.Telegram.Token = v
	}
}

// Validate checks that all secrets and duration fields are usable.
// It is called after ApplyEnv, so a missing secret means it was set
// neither in the file nor in the environment.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if strings.TrimSpace(cfg.Telegram.Token) == "" {
		return fmt.Errorf("telegram.token is required (set %s)", EnvBotToken)
	}
	if strings.TrimSpace(cfg.Supabase.URL) == "" {
		return fmt.Errorf("supabase.url is required (set %s)", EnvSupabaseURL)
	}
	if strings.TrimSpace(cfg.Supabase.Key) == "" {
		return fmt.Errorf("supabase.key is required (set %s)", EnvSupabaseKey)
	}

	durations := []struct {
		path string
		raw  string
	}{
		{"telegram.poll_timeout", cfg.Telegram.PollTimeout},
		{"supabase.timeout", cfg.Supabase.Timeout},
		{"scrape.request_timeout", cfg.Scrape.RequestTimeout},
		{"scheduler.run_timeout", cfg.Scheduler.RunTimeout},
	}
	if cfg.Storage != nil {
		durations = append(durations, struct {
			path string
			raw  string
		}{"storage.busy_timeout", cfg.Storage.BusyTimeout})
	}
	for _, d := range durations {
		if _, err := ParseDuration(d.path, d.raw); err != nil {
			return err
		}
	}

	for i, c := range cfg.Scrape.Collections {
		if strings.TrimSpace(c.Href) == "" {
			return fmt.Errorf("scrape.collections[%d]: href is required", i)
		}
	}
	return nil
}
