package notify

import (
	"context"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// botAPI is the part of *tgbotapi.BotAPI used for delivery.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender delivers notifications to a chat via the Telegram Bot API.
type TelegramSender struct {
	bot        botAPI
	chatID     int64
	maxRetries int
	retryDelay time.Duration
}

// NewTelegramSender authenticates the bot token and creates a sender for
// chatID.
func NewTelegramSender(token, chatID string) (*TelegramSender, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram: create bot: %w", err)
	}
	return newTelegramSender(bot, chatID)
}

func newTelegramSender(bot botAPI, chatID string) (*TelegramSender, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("telegram: invalid chat id %q: %w", chatID, err)
	}
	return &TelegramSender{
		bot:        bot,
		chatID:     id,
		maxRetries: 3,
		retryDelay: time.Second,
	}, nil
}

// Send posts the message with a bold title, retrying with linear backoff.
func (t *TelegramSender) Send(ctx context.Context, title, message string) error {
	msg := tgbotapi.NewMessage(t.chatID, formatTelegram(title, message))
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true

	var lastErr error
	for i := 0; i < t.maxRetries; i++ {
		_, err := t.bot.Send(msg)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == t.maxRetries-1 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("telegram: send: %w", ctx.Err())
		case <-time.After(t.retryDelay * time.Duration(i+1)):
		}
	}
	return fmt.Errorf("telegram: send failed after %d attempts: %w", t.maxRetries, lastErr)
}

// formatTelegram escapes both parts for MarkdownV2 and bolds the title.
func formatTelegram(title, message string) string {
	return "*" + tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, title) + "*\n" +
		tgbotapi.EscapeText(tgbotapi.ModeMarkdownV2, message)
}

// Name returns the sender identifier.
func (t *TelegramSender) Name() string {
	return "telegram"
}
