package notify

import (
	"context"
	"fmt"
	"net/http"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSink posts each event to one chat.
type TelegramSink struct {
	api    telegramSender
	chatID int64
}

// NewTelegramSink builds a bot whose HTTP calls never outlive
// DefaultDeliveryTimeout.
func NewTelegramSink(token string, chatID int64) (*TelegramSink, error) {
	client := &http.Client{Timeout: DefaultDeliveryTimeout}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	return &TelegramSink{api: api, chatID: chatID}, nil
}

func (s *TelegramSink) Name() string { return "telegram" }

// Deliver returns ctx's error as soon as ctx ends. The bot API takes no
// context, so a send still in flight then finishes in the background,
// bounded by the client timeout.
func (s *TelegramSink) Deliver(ctx context.Context, ev Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text := fmt.Sprintf("%s\n%s\n%s", ev.Name, ev.When.Format("Mon Jan 2 15:04"), ev.Body())
	msg := tgbotapi.NewMessage(s.chatID, text)

	errc := make(chan error, 1)
	go func() {
		_, err := s.api.Send(msg)
		errc <- err
	}()
	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("telegram send: %w", ctx.Err())
	}
}
