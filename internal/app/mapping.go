package app

import (
	"time"

	"dunswatch/internal/config"
	"dunswatch/internal/notify"
	"dunswatch/internal/scheduler"
	"dunswatch/internal/scrape"
	"dunswatch/internal/storage"
	"dunswatch/internal/store/supabase"
	logx "dunswatch/pkg/logx"
)

const (
	defaultScheduleSpec = "*/5 * * * *"
	defaultRunTimeout   = 2 * time.Minute
)

func mapLoggingConfig(cfg *config.Config) logx.Config {
	return logx.Config{
		Level:   cfg.Logging.Level,
		Console: cfg.Logging.Console,
		File: logx.FileConfig{
			Enabled: cfg.Logging.File.Enabled,
			Path:    cfg.Logging.File.Path,
		},
	}
}

func mapScrapeConfig(cfg *config.Config) (scrape.Config, error) {
	timeout, err := config.ParseDuration("scrape.request_timeout", cfg.Scrape.RequestTimeout)
	if err != nil {
		return scrape.Config{}, err
	}
	var cols []scrape.Collection
	for _, c := range cfg.Scrape.Collections {
		cols = append(cols, scrape.Collection{Name: c.Name, Href: c.Href})
	}
	return scrape.Config{
		BaseURL:        cfg.Scrape.BaseURL,
		Collections:    cols,
		Concurrency:    cfg.Scrape.Concurrency,
		RatePerSec:     cfg.Scrape.RatePerSec,
		RequestTimeout: timeout,
		UserAgent:      cfg.Scrape.UserAgent,
	}, nil
}

func mapSupabaseConfig(cfg *config.Config) (supabase.Config, error) {
	timeout, err := config.ParseDuration("supabase.timeout", cfg.Supabase.Timeout)
	if err != nil {
		return supabase.Config{}, err
	}
	return supabase.Config{
		URL:           cfg.Supabase.URL,
		Key:           cfg.Supabase.Key,
		ProductsTable: cfg.Supabase.ProductsTable,
		ChatsTable:    cfg.Supabase.ChatsTable,
		Timeout:       timeout,
	}, nil
}

func mapBotConfig(cfg *config.Config) (notify.BotConfig, error) {
	pollTimeout, err := config.ParseDurationOr("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return notify.BotConfig{}, err
	}
	return notify.BotConfig{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, nil
}

func mapNotifyConfig(cfg *config.Config) notify.Config {
	return notify.Config{
		RatePerSec: cfg.Telegram.RatePerSec,
		RetryMax:   cfg.Telegram.RetryMax,
	}
}

func mapSchedulerConfig(cfg *config.Config) scheduler.Config {
	return scheduler.Config{
		Enabled:     cfg.Scheduler.Enabled,
		Workers:     1,
		HistorySize: cfg.Scheduler.HistorySize,
		Timezone:    cfg.Scheduler.Timezone,
	}
}

// mapSchedule resolves the trigger spec and per-run timeout, applying
// the every-five-minutes default.
func mapSchedule(cfg *config.Config) (spec string, timeout time.Duration, err error) {
	spec = cfg.Scheduler.Spec
	if spec == "" {
		spec = defaultScheduleSpec
	}
	timeout, err = config.ParseDurationOr("scheduler.run_timeout", cfg.Scheduler.RunTimeout, defaultRunTimeout)
	if err != nil {
		return "", 0, err
	}
	return spec, timeout, nil
}

func mapStorageConfig(cfg *config.Config) (storage.Config, error) {
	if cfg.Storage == nil {
		return storage.Config{}, nil
	}
	busy, err := config.ParseDurationOr("storage.busy_timeout", cfg.Storage.BusyTimeout, 0)
	if err != nil {
		return storage.Config{}, err
	}
	return storage.Config{
		Driver:      cfg.Storage.Driver,
		Path:        cfg.Storage.Path,
		BusyTimeout: busy,
	}, nil
}
