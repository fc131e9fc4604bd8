package resy

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/example/resywatch/internal/logging"
	"github.com/example/resywatch/internal/providers/httpx"
	"github.com/example/resywatch/internal/reservation"
)

type fakeResy struct {
	mu        sync.Mutex
	calendar  string
	find      map[string]string
	findCalls []string
	auth      string
}

func (f *fakeResy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.auth = r.Header.Get("authorization")
	switch r.URL.Path {
	case "/4/venue/calendar":
		_, _ = w.Write([]byte(f.calendar))
	case "/4/find":
		day := r.URL.Query().Get("day")
		f.findCalls = append(f.findCalls, day)
		body, ok := f.find[day]
		if !ok {
			body = `{"results":{"venues":[]}}`
		}
		_, _ = w.Write([]byte(body))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeResy) calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.findCalls...)
}

var loc = time.FixedZone("EST", -5*3600)

func fixedNow() time.Time { return time.Date(2024, 7, 1, 10, 0, 0, 0, loc) }

func newAdapter(t *testing.T, f *fakeResy, detail time.Duration, now func() time.Time) *Adapter {
	t.Helper()
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)
	hc := httpx.New(httpx.WithMaxTries(1))
	return New(hc, Credentials{APIKey: "k"}, detail, logging.Discard(), WithBaseURL(srv.URL), WithClock(now))
}

func config(daysRange int) reservation.Config {
	return reservation.Config{Name: "carbone", Type: reservation.ProviderResy, Venue: "6194", DaysRange: daysRange, Location: loc}.WithDefaults()
}

func calendar(entries ...string) string {
	out := `{"scheduled":[`
	for i, e := range entries {
		if i > 0 {
			out += ","
		}
		out += e
	}
	return out + `]}`
}

func day(date, status string) string {
	return fmt.Sprintf(`{"date":%q,"inventory":{"reservation":%q}}`, date, status)
}

const carboneFind = `{"results":{"venues":[{"venue":{"name":"Carbone"},"slots":[
 {"date":{"start":"2024-07-02 19:30:00"},"size":{"min":2,"max":4},"config":{"type":"Dining Room"}},
 {"date":{"start":"2024-07-02 22:00:00"},"size":{"min":2,"max":2},"config":{"type":"Outdoor Patio"}}
]}]}}`

func TestFetch_QueriesOnlyIntersectionOfRequestedAndAvailableDays(t *testing.T) {
	f := &fakeResy{
		calendar: calendar(
			day("2024-07-01", "sold-out"),
			day("2024-07-02", "available"),
			day("2024-07-09", "available"), // outside the requested range
		),
		find: map[string]string{"2024-07-02": carboneFind},
	}
	a := newAdapter(t, f, time.Second, fixedNow)

	got, err := a.Fetch(context.Background(), config(3))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if calls := f.calls(); len(calls) != 1 || calls[0] != "2024-07-02" {
		t.Fatalf("find calls = %v; want [2024-07-02]", calls)
	}
	if len(got) != 2 {
		t.Fatalf("candidates = %d; want 2", len(got))
	}
	c := got[0]
	if c.Name != "Carbone (Dining Room)" || c.Kind != "Dining Room" || c.PartyMin != 2 || c.PartyMax != 4 {
		t.Fatalf("unexpected candidate: %+v", c)
	}
	if !c.When.Equal(time.Date(2024, 7, 2, 19, 30, 0, 0, loc)) || c.When.Hour() != 19 {
		t.Fatalf("unexpected time: %v", c.When)
	}
	if f.auth != `ResyAPI api_key="k"` {
		t.Fatalf("authorization header = %q", f.auth)
	}
}

func TestFetch_SkipsFindWhenNoEligibleDays(t *testing.T) {
	f := &fakeResy{calendar: calendar(day("2024-07-01", "sold-out"))}
	a := newAdapter(t, f, time.Second, fixedNow)

	got, err := a.Fetch(context.Background(), config(3))
	if err != nil || len(got) != 0 {
		t.Fatalf("Fetch = %v, %v; want empty", got, err)
	}
	if calls := f.calls(); len(calls) != 0 {
		t.Fatalf("find must not be called, got %v", calls)
	}
}

func TestFetch_MissingScheduledIsEmpty(t *testing.T) {
	f := &fakeResy{calendar: `{}`}
	a := newAdapter(t, f, time.Second, fixedNow)
	got, err := a.Fetch(context.Background(), config(3))
	if err != nil || len(got) != 0 {
		t.Fatalf("Fetch = %v, %v; want empty", got, err)
	}
}

func TestFetch_DetailThrottle(t *testing.T) {
	f := &fakeResy{
		calendar: calendar(day("2024-07-02", "available")),
		find:     map[string]string{"2024-07-02": carboneFind},
	}
	now := fixedNow()
	a := newAdapter(t, f, 5*time.Second, func() time.Time { return now })

	if _, err := a.Fetch(context.Background(), config(3)); err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	now = now.Add(2 * time.Second)
	got, err := a.Fetch(context.Background(), config(3))
	if err != nil || len(got) != 0 {
		t.Fatalf("throttled Fetch = %v, %v; want empty", got, err)
	}
	if n := len(f.calls()); n != 1 {
		t.Fatalf("find calls = %d; want 1 while throttled", n)
	}
	now = now.Add(5 * time.Second)
	if got, _ := a.Fetch(context.Background(), config(3)); len(got) != 2 {
		t.Fatalf("after throttle window got %d candidates; want 2", len(got))
	}
}

func TestFetch_MissingFieldIsProviderError(t *testing.T) {
	cases := map[string]string{
		"calendar inventory": "",
		"slot size":          `{"results":{"venues":[{"venue":{"name":"Carbone"},"slots":[{"date":{"start":"2024-07-02 19:30:00"},"config":{"type":"Dining Room"}}]}]}}`,
		"venue name":         `{"results":{"venues":[{"slots":[]}]}}`,
		"slot config":        `{"results":{"venues":[{"venue":{"name":"Carbone"},"slots":[{"date":{"start":"2024-07-02 19:30:00"},"size":{"min":2,"max":2}}]}]}}`,
		"bad time":           `{"results":{"venues":[{"venue":{"name":"Carbone"},"slots":[{"date":{"start":"tonight"},"size":{"min":2,"max":2},"config":{"type":"Bar"}}]}]}}`,
		"not json":           `<html>maintenance</html>`,
	}
	for name, findBody := range cases {
		f := &fakeResy{
			calendar: calendar(day("2024-07-02", "available")),
			find:     map[string]string{"2024-07-02": findBody},
		}
		if name == "calendar inventory" {
			f.calendar = `{"scheduled":[{"date":"2024-07-02"}]}`
		}
		a := newAdapter(t, f, time.Second, fixedNow)
		got, err := a.Fetch(context.Background(), config(3))
		if !reservation.IsProviderError(err) {
			t.Fatalf("%s: want ProviderError, got %v", name, err)
		}
		if got != nil {
			t.Fatalf("%s: want no candidates, got %v", name, got)
		}
	}
}
