package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recordAlerter struct {
	mu    sync.Mutex
	names []string
}

func (a *recordAlerter) Alert(_ context.Context, title string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.names = append(a.names, title)
	return nil
}

func (a *recordAlerter) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.names)
}

func TestDesktopSink_DropsWhenFull(t *testing.T) {
	q := NewQueue(1)
	s := NewDesktopSink(q)
	if err := s.Deliver(context.Background(), Event{Name: "a"}); err != nil {
		t.Fatalf("first Deliver: %v", err)
	}
	err := s.Deliver(context.Background(), Event{Name: "b"})
	if !errors.Is(err, ErrDropped) {
		t.Fatalf("second Deliver = %v; want ErrDropped", err)
	}
	if q.Len() != 1 {
		t.Fatalf("queue len = %d", q.Len())
	}
}

func TestQueue_ConsumeInOrder(t *testing.T) {
	q := NewQueue(4)
	q.Offer("first")
	q.Offer("second")

	a := &recordAlerter{}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		q.Consume(ctx, a, zerolog.Nop())
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for a.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	<-done

	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.names) != 2 || a.names[0] != "first" || a.names[1] != "second" {
		t.Fatalf("alerts = %v", a.names)
	}
}

func TestCommandAlerter_Command(t *testing.T) {
	name, args := CommandAlerter{GOOS: "darwin"}.command(`Joe's "Pub"`)
	if name != "osascript" || len(args) != 2 || args[0] != "-e" {
		t.Fatalf("darwin command = %s %v", name, args)
	}
	want := `display notification "Joe's \"Pub\"" with title "resywatch" sound name "Glass"`
	if args[1] != want {
		t.Fatalf("script = %s", args[1])
	}

	name, args = CommandAlerter{GOOS: "linux"}.command("Carbone")
	if name != "notify-send" || args[len(args)-1] != "Carbone" {
		t.Fatalf("linux command = %s %v", name, args)
	}
}
