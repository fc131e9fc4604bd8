// Package notify fans accepted reservations out to alert sinks.
package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/resywatch/internal/metrics"
)

// DefaultDeliveryTimeout bounds a single sink delivery.
const DefaultDeliveryTimeout = 30 * time.Second

// ErrDropped is returned by sinks that discarded an event instead of delivering it.
var ErrDropped = errors.New("notification dropped")

type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev Event) error
}

// Publisher is what the pipeline hands accepted events to.
type Publisher interface {
	Publish(ctx context.Context, ev Event)
}

// Fanout delivers every event to every sink, each on its own goroutine.
// A failing or panicking sink is logged and counted and never affects the
// caller or the other sinks.
type Fanout struct {
	sinks   []Sink
	log     zerolog.Logger
	timeout time.Duration
	wg      sync.WaitGroup
}

func NewFanout(log zerolog.Logger, sinks ...Sink) *Fanout {
	return &Fanout{
		sinks:   sinks,
		log:     log.With().Str("component", "notify").Logger(),
		timeout: DefaultDeliveryTimeout,
	}
}

// Publish returns immediately. Deliveries outlive ctx's cancellation but keep
// its values.
func (f *Fanout) Publish(ctx context.Context, ev Event) {
	base := context.WithoutCancel(ctx)
	for _, s := range f.sinks {
		f.wg.Add(1)
		go f.deliver(base, s, ev)
	}
}

func (f *Fanout) deliver(ctx context.Context, s Sink, ev Event) {
	defer f.wg.Done()
	log := f.log.With().Str("sink", s.Name()).Str("event", ev.ID).Str("name", ev.Name).Logger()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("sink panic: %v", r)
			}
		}()
		ctx, cancel := context.WithTimeout(ctx, f.timeout)
		defer cancel()
		return s.Deliver(ctx, ev)
	}()

	switch {
	case err == nil:
		metrics.Deliveries.WithLabelValues(s.Name(), "ok").Inc()
		log.Debug().Msg("notification delivered")
	case errors.Is(err, ErrDropped):
		metrics.Deliveries.WithLabelValues(s.Name(), "dropped").Inc()
		log.Warn().Err(err).Msg("notification dropped")
	default:
		metrics.Deliveries.WithLabelValues(s.Name(), "error").Inc()
		log.Error().Err(err).Msg("notification failed")
	}
}

// Close waits for in-flight deliveries.
func (f *Fanout) Close() {
	f.wg.Wait()
}
