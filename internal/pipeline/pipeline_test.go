package pipeline

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"github.com/example/resywatch/internal/gate"
	"github.com/example/resywatch/internal/metrics"
	"github.com/example/resywatch/internal/notify"
	"github.com/example/resywatch/internal/reservation"
)

type fakeSource struct {
	cands []reservation.Candidate
	err   error
}

func (f *fakeSource) Name() string { return "fake" }

func (f *fakeSource) Fetch(context.Context, reservation.Config) ([]reservation.Candidate, error) {
	return f.cands, f.err
}

type recordPublisher struct {
	mu     sync.Mutex
	events []notify.Event
}

func (p *recordPublisher) Publish(_ context.Context, ev notify.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func testConfig(name string) reservation.Config {
	return reservation.Config{
		Name:      name,
		Type:      reservation.ProviderResy,
		Venue:     "6194",
		HourStart: 19,
		HourEnd:   21,
		MailTo:    []string{"me@example.com"},
		Location:  time.UTC,
	}.WithDefaults()
}

var carbone = reservation.Candidate{
	Name:     "Carbone (Dining Room)",
	When:     time.Date(2024, 7, 2, 19, 30, 0, 0, time.UTC),
	PartyMin: 2,
	PartyMax: 4,
	Kind:     "Dining Room",
}

func TestCycle_ExampleScenario(t *testing.T) {
	src := &fakeSource{cands: []reservation.Candidate{carbone}}
	pub := &recordPublisher{}
	r := NewRunner(testConfig("carbone"), src, nil, pub, zerolog.Nop())

	rep := r.Cycle(context.Background())
	if rep.Err != nil || rep.Fetched != 1 || rep.Accepted != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if len(pub.events) != 1 {
		t.Fatalf("published %d events; want 1", len(pub.events))
	}
	ev := pub.events[0]
	if ev.Name != "Carbone (Dining Room)" || ev.Body() != "Party size : 2-4" || ev.Recipients[0] != "me@example.com" {
		t.Fatalf("event = %+v", ev)
	}
}

func TestCycle_CooldownAcrossCycles(t *testing.T) {
	clk := &fakeClock{t: time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)}
	src := &fakeSource{cands: []reservation.Candidate{carbone}}
	pub := &recordPublisher{}
	r := NewRunner(testConfig("cooldown"), src, gate.New(gate.WithClock(clk.now)), pub, zerolog.Nop())

	r.Cycle(context.Background())
	clk.advance(time.Minute)
	if rep := r.Cycle(context.Background()); rep.Suppressed != 1 || rep.Accepted != 0 {
		t.Fatalf("second cycle = %+v; want suppressed", rep)
	}
	clk.advance(5 * time.Minute)
	if rep := r.Cycle(context.Background()); rep.Accepted != 1 {
		t.Fatalf("third cycle = %+v; want accepted after cooldown", rep)
	}
	if len(pub.events) != 2 {
		t.Fatalf("published %d events; want 2", len(pub.events))
	}
}

func TestCycle_FilterAndValidation(t *testing.T) {
	patio := carbone
	patio.Kind = "Outdoor Patio"
	late := carbone
	late.When = time.Date(2024, 7, 2, 22, 0, 0, 0, time.UTC)
	broken := carbone
	broken.PartyMin = 6

	src := &fakeSource{cands: []reservation.Candidate{patio, late, broken, carbone}}
	pub := &recordPublisher{}
	r := NewRunner(testConfig("filters"), src, nil, pub, zerolog.Nop())

	rep := r.Cycle(context.Background())
	if rep.Skipped != 2 || rep.Invalid != 1 || rep.Accepted != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if rep.Outcomes[0].Reason != "type" || rep.Outcomes[1].Reason != "hours" {
		t.Fatalf("outcomes = %+v", rep.Outcomes)
	}
	if len(pub.events) != 1 {
		t.Fatalf("published %d; want 1", len(pub.events))
	}
}

func TestCycle_SkipLoggedOnce(t *testing.T) {
	late := carbone
	late.When = time.Date(2024, 7, 2, 23, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	r := NewRunner(testConfig("skiplog"), &fakeSource{cands: []reservation.Candidate{late}}, nil, nil, zerolog.New(&buf))

	for i := 0; i < 3; i++ {
		r.Cycle(context.Background())
	}
	if n := strings.Count(buf.String(), `"message":"skipped"`); n != 1 {
		t.Fatalf("skip logged %d times; want 1\n%s", n, buf.String())
	}
}

func TestCycle_FetchErrorIsolated(t *testing.T) {
	var buf bytes.Buffer
	perr := &reservation.ProviderError{Provider: reservation.ProviderResy, Venue: "6194", Status: 200, Body: `{"results":{}}`, Err: errors.New(`missing field "venues"`)}
	failing := NewRunner(testConfig("broken"), &fakeSource{err: perr}, nil, nil, zerolog.New(&buf))
	pub := &recordPublisher{}
	healthy := NewRunner(testConfig("healthy"), &fakeSource{cands: []reservation.Candidate{carbone}}, nil, pub, zerolog.Nop())

	before := testutil.ToFloat64(metrics.FetchErrors.WithLabelValues("broken", "provider"))
	rep := failing.Cycle(context.Background())
	if !errors.Is(rep.Err, perr) || rep.Fetched != 0 {
		t.Fatalf("report = %+v", rep)
	}
	if d := testutil.ToFloat64(metrics.FetchErrors.WithLabelValues("broken", "provider")) - before; d != 1 {
		t.Fatalf("fetch error delta = %v", d)
	}
	out := buf.String()
	for _, want := range []string{`"provider":"resy"`, `"venue":"6194"`, `"status":200`, `"body":"{\"results\":{}}"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log missing %s: %s", want, out)
		}
	}

	if rep := healthy.Cycle(context.Background()); rep.Accepted != 1 || len(pub.events) != 1 {
		t.Fatalf("healthy source affected: %+v", rep)
	}
}

func TestCycle_CanceledFetchNotCounted(t *testing.T) {
	var buf bytes.Buffer
	terr := &reservation.TransientFetchError{Provider: reservation.ProviderResy, Venue: "6194", Err: context.Canceled}
	r := NewRunner(testConfig("shutdown"), &fakeSource{err: terr}, nil, nil, zerolog.New(&buf).Level(zerolog.InfoLevel))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	before := testutil.ToFloat64(metrics.FetchErrors.WithLabelValues("shutdown", "transient"))
	rep := r.Cycle(ctx)
	if !errors.Is(rep.Err, context.Canceled) {
		t.Fatalf("report err = %v", rep.Err)
	}
	if d := testutil.ToFloat64(metrics.FetchErrors.WithLabelValues("shutdown", "transient")) - before; d != 0 {
		t.Fatalf("fetch error delta = %v; want 0", d)
	}
	if out := buf.String(); strings.Contains(out, `"level":"error"`) || strings.Contains(out, "fetch failed") {
		t.Fatalf("canceled fetch logged as failure: %s", out)
	}
}

func TestCycle_ProgressLog(t *testing.T) {
	var buf bytes.Buffer
	r := NewRunner(testConfig("progress"), &fakeSource{}, nil, nil, zerolog.New(&buf))
	for i := 0; i < 51; i++ {
		r.Cycle(context.Background())
	}
	out := buf.String()
	if strings.Count(out, `"message":"polling"`) != 2 || !strings.Contains(out, `"try":51`) {
		t.Fatalf("progress log:\n%s", out)
	}
}
