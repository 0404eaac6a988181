package push

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mood-coach-backend/internal/domain"
	"mood-coach-backend/internal/infra/metrics"
)

// Telegram доставляет уведомления сообщением бота.
// Непрозрачный адрес доставки здесь — десятичный ID чата.
type Telegram struct {
	bot *tgbotapi.BotAPI
}

var _ domain.Pusher = (*Telegram)(nil)

// NewTelegram создаёт транспорт на основе Bot API.
func NewTelegram(bot *tgbotapi.BotAPI) *Telegram {
	return &Telegram{bot: bot}
}

// Send отправляет уведомление в чат.
func (t *Telegram) Send(ctx context.Context, token string, n domain.Notification) error {
	if token == "" {
		return errors.New("telegram: chat id is empty")
	}
	chatID, err := strconv.ParseInt(token, 10, 64)
	if err != nil {
		return fmt.Errorf("telegram: bad chat id %q: %w", token, err)
	}
	msg := tgbotapi.NewMessage(chatID, n.Title+"\n\n"+n.Body)
	start := time.Now()
	_, err = t.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram", "send_message", "bot", start, err)
	if err != nil {
		return fmt.Errorf("telegram: send message: %w", err)
	}
	return nil
}
