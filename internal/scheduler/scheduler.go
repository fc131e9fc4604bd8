// Package scheduler drives each source's poll cycle on its own interval.
package scheduler

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/example/resywatch/internal/pipeline"
)

// Runner is one source's poll cycle.
type Runner interface {
	Name() string
	Interval() time.Duration
	Cycle(ctx context.Context) pipeline.Report
}

// Scheduler runs every Runner on a fixed interval. First runs are spread
// evenly over one interval so sources do not hit providers at the same time.
// A Runner is never re-entered, and a panicking Runner is recovered.
type Scheduler struct {
	runners []Runner
	log     zerolog.Logger
	now     func() time.Time
}

func New(log zerolog.Logger, runners ...Runner) *Scheduler {
	return &Scheduler{
		runners: runners,
		log:     log.With().Str("component", "scheduler").Logger(),
		now:     time.Now,
	}
}

// Run blocks until ctx is done, then stops scheduling and waits for
// in-flight cycles.
func (s *Scheduler) Run(ctx context.Context) error {
	cl := cronLogger{s.log}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)), cron.WithLogger(cl))

	start := s.now()
	n := len(s.runners)
	for i, r := range s.runners {
		r := r
		sched := staggered(r.Interval(), start, i, n)
		id := c.Schedule(sched, cron.FuncJob(func() {
			rep := r.Cycle(ctx)
			s.log.Debug().
				Str("source", r.Name()).
				Uint64("try", rep.Try).
				Int("fetched", rep.Fetched).
				Int("accepted", rep.Accepted).
				Msg("cycle done")
		}))
		s.log.Info().Str("source", r.Name()).Dur("interval", r.Interval()).Int("entry", int(id)).Msg("source scheduled")
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	s.log.Info().Msg("scheduler stopped")
	return nil
}

// staggerSchedule overrides only the first run time of a base schedule.
type staggerSchedule struct {
	base  cron.Schedule
	first time.Time
	used  atomic.Bool
}

func (s *staggerSchedule) Next(t time.Time) time.Time {
	if s.used.CompareAndSwap(false, true) {
		return s.first
	}
	return s.base.Next(t)
}

// staggered returns a schedule whose first run is at start + i*every/n.
func staggered(every time.Duration, start time.Time, i, n int) cron.Schedule {
	offset := time.Duration(0)
	if n > 0 {
		offset = every * time.Duration(i) / time.Duration(n)
	}
	return &staggerSchedule{base: cron.Every(every), first: start.Add(offset)}
}

// cronLogger routes cron's internal logging to zerolog. Routine messages go
// to debug; cron reports recovered panics through Error.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
