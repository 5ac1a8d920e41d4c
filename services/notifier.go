package services

import (
	"context"
	"log"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// notifyTimeout bounds every side-channel delivery attempt. Past it the
// message degrades to "best effort, not delivered".
const notifyTimeout = 5 * time.Second

// Notifier is the best-effort side channel for messaging guests and
// admins. Callers invoke it after the core transaction commits; a
// failed delivery is logged, never surfaced.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, text string) error
}

// BotNotifier delivers via the Telegram Bot API.
type BotNotifier struct {
	bot *tgbotapi.BotAPI
}

func NewBotNotifier(botToken string) (*BotNotifier, error) {
	client := &http.Client{Timeout: notifyTimeout}
	bot, err := tgbotapi.NewBotAPIWithClient(botToken, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, err
	}
	return &BotNotifier{bot: bot}, nil
}

func (n *BotNotifier) Notify(ctx context.Context, chatID int64, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.DisableWebPagePreview = true
	_, err := n.bot.Send(msg)
	return err
}

// NopNotifier drops every message. Used in tests and when no bot token
// is configured.
type NopNotifier struct{}

func (NopNotifier) Notify(ctx context.Context, chatID int64, text string) error { return nil }

// NotifyAdmins fans a message out to every admin chat, swallowing
// per-admin failures.
func NotifyAdmins(n Notifier, adminIDs []int64, text string) {
	if n == nil {
		return
	}
	for _, id := range adminIDs {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		if err := n.Notify(ctx, id, text); err != nil {
			log.Printf("[Notify] admin %d unreachable: %v", id, err)
		}
		cancel()
	}
}
