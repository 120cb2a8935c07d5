package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	path := writeConfig(t, "config.yaml", `
telegram:
  token: file-token
  rate_per_sec: 10
supabase:
  url: https://example.supabase.co
  key: file-key
  timeout: 5s
scrape:
  base_url: https://shopdunssweden.se/
  concurrency: 3
  collections:
    - { name: Radish, href: /collections/radish/radish }
scheduler:
  enabled: true
  spec: "*/5 * * * *"
logging:
  level: debug
  console: true
`)

	m := NewManager(path)
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "file-token" {
		t.Fatalf("token = %q", cfg.Telegram.Token)
	}
	if cfg.Scrape.Concurrency != 3 {
		t.Fatalf("concurrency = %d", cfg.Scrape.Concurrency)
	}
	if len(cfg.Scrape.Collections) != 1 || cfg.Scrape.Collections[0].Href != "/collections/radish/radish" {
		t.Fatalf("collections = %+v", cfg.Scrape.Collections)
	}
	if cfg.Scheduler.Spec != "*/5 * * * *" {
		t.Fatalf("spec = %q", cfg.Scheduler.Spec)
	}
	if got := m.Get(); got != cfg {
		t.Fatal("Get did not return committed config")
	}
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	path := writeConfig(t, "config.json", `{"telegram":{"token":"x","legacy_owner":1}}`)
	m := NewManager(path)
	if _, err := m.Load(); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv(EnvBotToken, "env-token")
	t.Setenv(EnvSupabaseURL, "https://env.supabase.co")
	t.Setenv(EnvSupabaseKey, "env-key")

	path := writeConfig(t, "config.yaml", `
telegram:
  token: file-token
supabase:
  url: https://file.supabase.co
  key: file-key
`)
	cfg, err := NewManager(path).Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "env-token" {
		t.Fatalf("token = %q, want env override", cfg.Telegram.Token)
	}
	if cfg.Supabase.URL != "https://env.supabase.co" || cfg.Supabase.Key != "env-key" {
		t.Fatalf("supabase = %+v, want env override", cfg.Supabase)
	}
}

func TestValidateMissingSecrets(t *testing.T) {
	cfg := &Config{}
	cfg.Telegram.Token = "t"
	cfg.Supabase.URL = "https://example.supabase.co"

	err := Validate(cfg)
	if err == nil || !strings.Contains(err.Error(), EnvSupabaseKey) {
		t.Fatalf("expected missing key error, got %v", err)
	}

	cfg.Supabase.Key = "k"
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateBadDuration(t *testing.T) {
	cfg := &Config{}
	cfg.Telegram.Token = "t"
	cfg.Supabase.URL = "u"
	cfg.Supabase.Key = "k"
	cfg.Scrape.RequestTimeout = "soon"

	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestValidateCollectionHref(t *testing.T) {
	cfg := &Config{}
	cfg.Telegram.Token = "t"
	cfg.Supabase.URL = "u"
	cfg.Supabase.Key = "k"
	cfg.Scrape.Collections = []Collection{{Name: "Radish"}}

	if err := Validate(cfg); err == nil {
		t.Fatal("expected error for collection without href")
	}
}

func TestParseDuration(t *testing.T) {
	t.Parallel()
	if d, err := ParseDuration("x", "  "); err != nil || d != 0 {
		t.Fatalf("blank = %v, %v", d, err)
	}
	if _, err := ParseDuration("x", "-5s"); err == nil {
		t.Fatal("negative duration accepted")
	}
	if _, err := ParseDuration("x", "soon"); err == nil {
		t.Fatal("junk accepted")
	}
	d, err := ParseDurationOr("x", "", 10*time.Second)
	if err != nil || d != 10*time.Second {
		t.Fatalf("default = %v, %v", d, err)
	}
}
