package config

type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Supabase SupabaseConfig `json:"supabase"`
	Scrape   ScrapeConfig   `json:"scrape"`
	Logging  LoggingConfig  `json:"logging"`

	// Scheduler controls when scrape runs fire (cron spec or interval).
	Scheduler SchedulerConfig `json:"scheduler"`

	// Storage controls the optional local seen-id cache and run audit log.
	Storage *StorageConfig `json:"storage,omitempty"`
}

// TelegramConfig controls the alert bot.
//
// Token is normally left empty in the file and supplied via the
// BOT_TOKEN environment variable (see ApplyEnv).
type TelegramConfig struct {
	Token string `json:"token,omitempty"`

	// RatePerSec caps outgoing sendMessage calls during a broadcast.
	RatePerSec int `json:"rate_per_sec,omitempty"`
	RetryMax   int `json:"retry_max,omitempty"`

	// PollTimeout is a Go duration string (e.g. "10s").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

// SupabaseConfig controls the hosted PostgREST backend.
//
// URL and Key are normally supplied via the SUPABASE_URL and
// SUPABASE_KEY environment variables (see ApplyEnv).
type SupabaseConfig struct {
	URL string `json:"url,omitempty"`
	Key string `json:"key,omitempty"`

	ProductsTable string `json:"products_table,omitempty"` // default: "products"
	ChatsTable    string `json:"chats_table,omitempty"`    // default: "chats"

	// Timeout is a Go duration string applied per request.
	Timeout string `json:"timeout,omitempty"`
}

// ScrapeConfig controls storefront fetching.
//
// Collections left empty means the built-in shopdunssweden.se menu.
type ScrapeConfig struct {
	BaseURL     string       `json:"base_url,omitempty"`
	Collections []Collection `json:"collections,omitempty"`

	// Concurrency bounds parallel collection fetches.
	Concurrency int `json:"concurrency,omitempty"`
	// RatePerSec caps outgoing page fetches across all workers.
	RatePerSec int `json:"rate_per_sec,omitempty"`

	// RequestTimeout is a Go duration string applied per page fetch.
	RequestTimeout string `json:"request_timeout,omitempty"`
	UserAgent      string `json:"user_agent,omitempty"`
}

type Collection struct {
	Name string `json:"name"`
	Href string `json:"href"`
}

// SchedulerConfig controls the trigger service.
type SchedulerConfig struct {
	Enabled bool `json:"enabled"`

	// Spec accepts a cron expression ("*/5 * * * *"), a Go duration
	// ("5m") or HH:MM ("00:05"). Empty means every 5 minutes.
	Spec string `json:"spec,omitempty"`

	// Trigger timezone (IANA name). Empty means the host's local zone.
	Timezone string `json:"timezone,omitempty"`

	// RunTimeout is a Go duration string bounding one scrape cycle.
	RunTimeout string `json:"run_timeout,omitempty"`

	HistorySize int `json:"history_size,omitempty"`
}

// StorageConfig controls the optional persistence layer.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./dunswatch_store" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // Go duration string (sqlite)
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}
