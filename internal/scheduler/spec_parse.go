package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule is a normalized trigger spec: either a cron expression for
// robfig/cron or a fixed interval. Exactly one of the fields is set.
type Schedule struct {
	Cron  string
	Every time.Duration
}

func (s Schedule) IsInterval() bool { return s.Every > 0 }

// ParseSchedule accepts the three spec forms the config documents:
//
//	"*/5 * * * *"  cron expression (also @hourly etc.)
//	"5m"           Go duration interval
//	"00:05"        HH:MM interval, here five minutes
//
// Cron validity itself is checked later when the expression is handed
// to the cron parser; this only decides which form the string is.
func ParseSchedule(raw string) (Schedule, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Schedule{}, fmt.Errorf("schedule is empty")
	}

	// Cron expressions have fields; descriptors start with '@'.
	if strings.ContainsAny(s, " \t") || strings.HasPrefix(s, "@") {
		return Schedule{Cron: s}, nil
	}

	if d, ok := parseClock(s); ok {
		if d == 0 {
			return Schedule{}, fmt.Errorf("schedule %q: interval must be > 0", raw)
		}
		return Schedule{Every: d}, nil
	}

	if d, err := time.ParseDuration(s); err == nil {
		if d <= 0 {
			return Schedule{}, fmt.Errorf("schedule %q: interval must be > 0", raw)
		}
		return Schedule{Every: d}, nil
	}

	return Schedule{}, fmt.Errorf("schedule %q: want cron (\"*/5 * * * *\"), duration (\"5m\") or HH:MM (\"00:05\")", raw)
}

// parseClock reads an HH:MM interval. Hours are unbounded ("48:00" is
// two days); minutes must be a two-digit value below 60.
func parseClock(s string) (time.Duration, bool) {
	hh, mm, found := strings.Cut(s, ":")
	if !found || hh == "" || len(mm) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 {
		return 0, false
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, true
}
