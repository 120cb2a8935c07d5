package notify

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "dunswatch/pkg/logx"
)

type Config struct {
	// RatePerSec caps outgoing sends across a broadcast (Telegram
	// throttles bots around 30 msg/s globally).
	RatePerSec int
	RetryMax   int
}

const (
	defaultRatePerSec = 20
	defaultRetryMax   = 2
)

// Service fans an alert out to all subscriber chats.
type Service struct {
	sender TextSender
	log    logx.Logger

	mu       sync.Mutex
	limiter  *rate.Limiter
	retryMax int
}

func NewService(cfg Config, sender TextSender, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{sender: sender, log: log}
	s.Apply(cfg)
	return s
}

// Apply updates rate/retry settings at runtime.
func (s *Service) Apply(cfg Config) {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = defaultRatePerSec
	}
	retry := cfg.RetryMax
	if retry < 0 {
		retry = defaultRetryMax
	}

	s.mu.Lock()
	s.limiter = rate.NewLimiter(rate.Limit(rps), rps)
	s.retryMax = retry
	s.mu.Unlock()
}

// Broadcast sends text to every chat id. Per-chat failures are logged
// and counted; they never abort the rest of the fan-out.
func (s *Service) Broadcast(ctx context.Context, chatIDs []int64, text string) (sent, failed int) {
	for _, chatID := range chatIDs {
		if ctx.Err() != nil {
			failed += len(chatIDs) - sent - failed
			break
		}
		if err := s.sendOne(ctx, chatID, text); err != nil {
			failed++
			continue
		}
		sent++
	}
	return sent, failed
}

func (s *Service) sendOne(ctx context.Context, chatID int64, text string) error {
	// Snapshot mutable dependencies to avoid races with Apply().
	s.mu.Lock()
	lim := s.limiter
	retry := s.retryMax
	s.mu.Unlock()

	if lim != nil {
		if err := lim.Wait(ctx); err != nil {
			return err
		}
	}

	var last error
	for i := 0; i <= retry; i++ {
		err := s.sender.SendText(ctx, chatID, text)
		if err == nil {
			return nil
		}
		last = err
		if i == retry {
			break
		}
		delay := time.Duration(200+100*i) * time.Millisecond
		s.log.Debug("alert send retry scheduled", logx.Int64("chat_id", chatID), logx.Int("attempt", i+2), logx.Duration("delay", delay), logx.Err(err))
		tmr := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			if !tmr.Stop() {
				<-tmr.C
			}
			return ctx.Err()
		case <-tmr.C:
		}
	}
	s.log.Warn("alert send failed", logx.Int64("chat_id", chatID), logx.Err(last))
	return last
}
