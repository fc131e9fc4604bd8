package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"

	"github.com/rs/zerolog"
)

const DefaultQueueSize = 64

// Queue is the bounded hand-off between the pipeline and the single desktop
// alert consumer. Producers never block.
type Queue struct {
	ch chan string
}

func NewQueue(size int) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &Queue{ch: make(chan string, size)}
}

// Offer enqueues name, reporting false when the queue is full.
func (q *Queue) Offer(name string) bool {
	select {
	case q.ch <- name:
		return true
	default:
		return false
	}
}

func (q *Queue) Len() int { return len(q.ch) }

type Alerter interface {
	Alert(ctx context.Context, title string) error
}

// Consume renders queued names until ctx is done. Alert failures are logged
// and do not stop the consumer.
func (q *Queue) Consume(ctx context.Context, a Alerter, log zerolog.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case name := <-q.ch:
			if err := a.Alert(ctx, name); err != nil {
				log.Warn().Err(err).Str("name", name).Msg("desktop alert failed")
			}
		}
	}
}

// DesktopSink puts event names on a Queue.
type DesktopSink struct {
	q *Queue
}

func NewDesktopSink(q *Queue) *DesktopSink { return &DesktopSink{q: q} }

func (s *DesktopSink) Name() string { return "desktop" }

func (s *DesktopSink) Deliver(_ context.Context, ev Event) error {
	if !s.q.Offer(ev.Name) {
		return fmt.Errorf("desktop queue full: %w", ErrDropped)
	}
	return nil
}

// CommandAlerter shows a native notification through the platform's CLI tool.
type CommandAlerter struct {
	GOOS string
}

func NewCommandAlerter() CommandAlerter { return CommandAlerter{GOOS: runtime.GOOS} }

func (a CommandAlerter) Alert(ctx context.Context, title string) error {
	name, args := a.command(title)
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, out)
	}
	return nil
}

func (a CommandAlerter) command(title string) (string, []string) {
	if a.GOOS == "darwin" {
		script := fmt.Sprintf("display notification %s with title %s sound name \"Glass\"", strconv.Quote(title), strconv.Quote("resywatch"))
		return "osascript", []string{"-e", script}
	}
	return "notify-send", []string{"--app-name=resywatch", "resywatch", title}
}

// LogAlerter writes alerts to the log, for headless hosts.
type LogAlerter struct {
	Log zerolog.Logger
}

func (a LogAlerter) Alert(_ context.Context, title string) error {
	a.Log.Info().Str("name", title).Msg("reservation alert")
	return nil
}
