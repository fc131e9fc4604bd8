// Package pipeline runs one poll cycle for a source: fetch, filter, gate and
// publish.
package pipeline

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/example/resywatch/internal/filter"
	"github.com/example/resywatch/internal/gate"
	"github.com/example/resywatch/internal/metrics"
	"github.com/example/resywatch/internal/notify"
	"github.com/example/resywatch/internal/reservation"
)

// progressEvery is how often the try counter is logged.
const progressEvery = 50

type Verdict string

const (
	VerdictInvalid  Verdict = "invalid"
	VerdictSkip     Verdict = "skip"
	VerdictAccept   Verdict = "accept"
	VerdictSuppress Verdict = "suppress"
)

// Outcome is what happened to one candidate.
type Outcome struct {
	Candidate reservation.Candidate
	Verdict   Verdict
	Reason    filter.Reason
}

// Report summarizes one cycle.
type Report struct {
	Try        uint64
	Fetched    int
	Invalid    int
	Skipped    int
	Accepted   int
	Suppressed int
	Outcomes   []Outcome
	Err        error
}

// Runner owns everything one source needs between cycles.
type Runner struct {
	cfg    reservation.Config
	src    reservation.Source
	filter *filter.Filter
	gate   *gate.Gate
	pub    notify.Publisher
	log    zerolog.Logger
	tries  atomic.Uint64
}

func NewRunner(cfg reservation.Config, src reservation.Source, g *gate.Gate, pub notify.Publisher, log zerolog.Logger) *Runner {
	if g == nil {
		g = gate.New()
	}
	return &Runner{
		cfg:    cfg,
		src:    src,
		filter: filter.New(cfg),
		gate:   g,
		pub:    pub,
		log:    log.With().Str("source", cfg.Name).Logger(),
	}
}

func (r *Runner) Name() string { return r.cfg.Name }

func (r *Runner) Interval() time.Duration { return r.cfg.Interval }

// Cycle never returns an error: fetch failures are logged, counted and
// reported, and the next cycle proceeds normally.
func (r *Runner) Cycle(ctx context.Context) Report {
	rep := Report{Try: r.tries.Add(1)}
	if rep.Try%progressEvery == 1 {
		r.log.Info().Uint64("try", rep.Try).Msg("polling")
	}
	metrics.Cycles.WithLabelValues(r.cfg.Name).Inc()

	start := time.Now()
	cands, err := r.src.Fetch(ctx, r.cfg)
	metrics.FetchDuration.WithLabelValues(r.cfg.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		rep.Err = err
		if ctx.Err() != nil {
			// Shutting down; not a provider failure.
			r.log.Debug().Err(err).Msg("fetch canceled")
			return rep
		}
		r.logFetchError(err)
		return rep
	}
	rep.Fetched = len(cands)
	metrics.Candidates.WithLabelValues(r.cfg.Name).Add(float64(len(cands)))

	for _, c := range cands {
		o := r.decide(ctx, c)
		switch o.Verdict {
		case VerdictInvalid:
			rep.Invalid++
		case VerdictSkip:
			rep.Skipped++
		case VerdictAccept:
			rep.Accepted++
		case VerdictSuppress:
			rep.Suppressed++
		}
		metrics.Decisions.WithLabelValues(r.cfg.Name, string(o.Verdict)).Inc()
		rep.Outcomes = append(rep.Outcomes, o)
	}
	return rep
}

func (r *Runner) decide(ctx context.Context, c reservation.Candidate) Outcome {
	if err := c.Validate(); err != nil {
		r.log.Warn().Err(err).Msg("invalid candidate")
		return Outcome{Candidate: c, Verdict: VerdictInvalid}
	}
	if skip, reason := r.filter.ShouldSkip(c); skip {
		if r.gate.FirstSkip(c) {
			r.log.Info().Str("name", c.Name).Time("when", c.When).Str("reason", string(reason)).Msg("skipped")
		}
		return Outcome{Candidate: c, Verdict: VerdictSkip, Reason: reason}
	}
	if r.gate.Admit(c) != gate.Accept {
		return Outcome{Candidate: c, Verdict: VerdictSuppress}
	}
	r.log.Info().
		Str("name", c.Name).
		Time("when", c.When).
		Int("party_min", c.PartyMin).
		Int("party_max", c.PartyMax).
		Msg("found reservation")
	if r.pub != nil {
		r.pub.Publish(ctx, notify.NewEvent(r.cfg.Name, c, r.cfg.MailTo))
	}
	return Outcome{Candidate: c, Verdict: VerdictAccept}
}

func (r *Runner) logFetchError(err error) {
	ev := r.log.Error().Err(err).Str("provider", string(r.cfg.Type)).Str("venue", r.cfg.Venue)
	kind := "other"

	var pe *reservation.ProviderError
	var te *reservation.TransientFetchError
	switch {
	case errors.As(err, &pe):
		kind = "provider"
		ev = ev.Int("status", pe.Status).Str("body", pe.Body)
	case errors.As(err, &te):
		kind = "transient"
		ev = ev.Int("status", te.Status)
	}
	metrics.FetchErrors.WithLabelValues(r.cfg.Name, kind).Inc()
	ev.Msg("fetch failed")
}
