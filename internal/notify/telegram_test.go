package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeTelegram struct {
	sent []tgbotapi.MessageConfig
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, nil
}

func TestTelegramSink_Deliver(t *testing.T) {
	ft := &fakeTelegram{}
	s := &TelegramSink{api: ft, chatID: 42}
	if err := s.Deliver(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Deliver: %v", err)
	}
	if len(ft.sent) != 1 || ft.sent[0].ChatID != 42 {
		t.Fatalf("sent = %+v", ft.sent)
	}
	text := ft.sent[0].Text
	if !strings.HasPrefix(text, "Carbone\n") || !strings.HasSuffix(text, "Party size : 2-4") {
		t.Fatalf("text = %q", text)
	}
}

type stuckTelegram struct {
	release chan struct{}
}

func (s *stuckTelegram) Send(tgbotapi.Chattable) (tgbotapi.Message, error) {
	<-s.release
	return tgbotapi.Message{}, nil
}

func TestTelegramSink_DeliverHonorsDeadline(t *testing.T) {
	st := &stuckTelegram{release: make(chan struct{})}
	defer close(st.release)
	s := &TelegramSink{api: st, chatID: 42}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := s.Deliver(ctx, sampleEvent())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v; want deadline exceeded", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("Deliver did not return at the deadline")
	}
}

func TestTelegramSink_CanceledBeforeSend(t *testing.T) {
	ft := &fakeTelegram{}
	s := &TelegramSink{api: ft, chatID: 42}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := s.Deliver(ctx, sampleEvent()); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v; want canceled", err)
	}
	if len(ft.sent) != 0 {
		t.Fatal("message sent on canceled context")
	}
}
