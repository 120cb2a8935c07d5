package scheduler

import (
	"testing"
	"time"
)

func TestParseSchedule(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name  string
		raw   string
		cron  string
		every time.Duration
	}{
		{name: "five minute cron", raw: "*/5 * * * *", cron: "*/5 * * * *"},
		{name: "top of hour", raw: "0 * * * *", cron: "0 * * * *"},
		{name: "descriptor", raw: "@hourly", cron: "@hourly"},
		{name: "duration", raw: "5m", every: 5 * time.Minute},
		{name: "compound duration", raw: "2h30m", every: 2*time.Hour + 30*time.Minute},
		{name: "clock minutes", raw: "00:05", every: 5 * time.Minute},
		{name: "clock hours", raw: "02:30", every: 2*time.Hour + 30*time.Minute},
		{name: "clock above a day", raw: "48:00", every: 48 * time.Hour},
		{name: "padded", raw: "  10m  ", every: 10 * time.Minute},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ParseSchedule(tt.raw)
			if err != nil {
				t.Fatalf("ParseSchedule(%q): %v", tt.raw, err)
			}
			if got.Cron != tt.cron || got.Every != tt.every {
				t.Fatalf("ParseSchedule(%q) = %+v, want cron=%q every=%v", tt.raw, got, tt.cron, tt.every)
			}
			if got.IsInterval() == (tt.cron != "") {
				t.Fatalf("IsInterval() = %v for %q", got.IsInterval(), tt.raw)
			}
		})
	}
}

func TestParseScheduleRejects(t *testing.T) {
	t.Parallel()
	for _, raw := range []string{
		"",
		"   ",
		"soon",
		"-5m",
		"0s",
		"00:00",
		"02:60",
		"02:5",
	} {
		if _, err := ParseSchedule(raw); err == nil {
			t.Errorf("ParseSchedule(%q): expected error", raw)
		}
	}
}
