package alert

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier delivers drowsy alerts to a Telegram chat, for students
// who keep the meeting tab muted.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram creates a Telegram notifier.
func NewTelegram(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

// Notify sends the alert message.
func (t *TelegramNotifier) Notify(_ context.Context, state string, score float64) error {
	msg := tgbotapi.NewMessage(t.chatID, fmt.Sprintf("You look %s (%.0f%% confidence). Time to stretch?", state, score*100))
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("send alert: %w", err)
	}
	return nil
}
