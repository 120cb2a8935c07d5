package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "dunswatch/pkg/logx"
)

// TextSender is the outbound messaging port. The production
// implementation is telebot; tests substitute a recorder.
type TextSender interface {
	SendText(ctx context.Context, chatID int64, text string) error
}

// BotConfig configures the Telegram bot transport.
type BotConfig struct {
	Token       string
	PollTimeout time.Duration // long-poll timeout; default 10s
}

// Bot sends alert messages through the Telegram Bot API.
//
// The bot never registers update handlers; this daemon only talks, it
// doesn't listen. Long-polling settings exist because telebot requires
// a poller to construct the client.
type Bot struct {
	bot *tele.Bot
	log logx.Logger
}

func NewBot(cfg BotConfig, log logx.Logger) (*Bot, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
		// Sends are synchronous; we don't consume updates.
		Synchronous: true,
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Bot{bot: b, log: log}, nil
}

// SendText delivers text to one chat, splitting into multiple messages
// when it exceeds Telegram's length limit. All alert text is built with
// pkg/tghtml, so ParseMode is always HTML.
func (b *Bot) SendText(ctx context.Context, chatID int64, text string) error {
	chunks := splitTelegramText(text, telegramTextLimit)
	if len(chunks) == 0 {
		chunks = []string{""}
	}

	chat := &tele.Chat{ID: chatID}
	for _, chunk := range chunks {
		if ctx != nil {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		opt := &tele.SendOptions{
			ParseMode:             tele.ModeHTML,
			DisableWebPagePreview: true,
		}
		if _, err := b.bot.Send(chat, chunk, opt); err != nil {
			return err
		}
	}
	return nil
}
