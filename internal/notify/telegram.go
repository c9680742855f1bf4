package notify

import (
	"fmt"
	"html"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramSender abstracts the bot API call used for delivery.
type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier sends events as HTML messages to one chat.
type TelegramNotifier struct {
	sender TelegramSender
	chatID int64
}

// NewTelegramNotifier connects to the bot API with token.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting telegram bot: %w", err)
	}
	slog.Info("telegram notifier ready", "bot", bot.Self.UserName)
	return NewTelegramNotifierWithSender(bot, chatID), nil
}

// NewTelegramNotifierWithSender builds a notifier around an existing sender.
func NewTelegramNotifierWithSender(sender TelegramSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{sender: sender, chatID: chatID}
}

func (n *TelegramNotifier) Notify(event Event) {
	msg := tgbotapi.NewMessage(n.chatID, formatTelegram(event))
	msg.ParseMode = tgbotapi.ModeHTML

	if _, err := n.sender.Send(msg); err != nil {
		slog.Debug("telegram notification failed", "type", event.Type, "error", err)
	}
}

func formatTelegram(event Event) string {
	if event.Title == "" {
		return html.EscapeString(event.Message)
	}
	return fmt.Sprintf("<b>%s</b>\n%s", html.EscapeString(event.Title), html.EscapeString(event.Message))
}
