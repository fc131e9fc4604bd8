package filter

import (
	"testing"
	"time"

	"github.com/example/resywatch/internal/reservation"
)

func newFilter(t *testing.T, start, end int, pattern string) *Filter {
	t.Helper()
	re, err := reservation.CompileIgnoreType(pattern)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return New(reservation.Config{HourStart: start, HourEnd: end, IgnoreType: re})
}

func at(hour, min int) time.Time {
	return time.Date(2024, 7, 2, hour, min, 0, 0, time.UTC)
}

func TestShouldSkip_HourWindowBoundaries(t *testing.T) {
	f := newFilter(t, 19, 21, "")
	cases := []struct {
		hour, min int
		skip      bool
	}{
		{18, 59, true},
		{19, 0, false},
		{19, 30, false},
		{21, 0, false},
		{21, 45, false},
		{22, 0, true},
		{0, 0, true},
	}
	for _, tc := range cases {
		got, reason := f.ShouldSkip(reservation.Candidate{Name: "x", When: at(tc.hour, tc.min)})
		if got != tc.skip {
			t.Fatalf("%02d:%02d skip=%v; want %v", tc.hour, tc.min, got, tc.skip)
		}
		if got && reason != ReasonHours {
			t.Fatalf("%02d:%02d reason=%q; want hours", tc.hour, tc.min, reason)
		}
	}
}

func TestShouldSkip_TypeCaseInsensitive(t *testing.T) {
	f := newFilter(t, 19, 21, "")
	for _, kind := range []string{"Outdoor Patio", "outdoor patio", "OUTDOOR PATIO", "Covered PATIO"} {
		skip, reason := f.ShouldSkip(reservation.Candidate{Name: "x", When: at(19, 30), Kind: kind})
		if !skip || reason != ReasonType {
			t.Fatalf("kind %q: skip=%v reason=%q; want type skip", kind, skip, reason)
		}
	}
	if skip, _ := f.ShouldSkip(reservation.Candidate{Name: "x", When: at(19, 30), Kind: "Dining Room"}); skip {
		t.Fatalf("Dining Room should pass")
	}
	if skip, _ := f.ShouldSkip(reservation.Candidate{Name: "x", When: at(19, 30)}); skip {
		t.Fatalf("empty kind should never match the type pattern")
	}
}

func TestShouldSkip_CustomPattern(t *testing.T) {
	f := newFilter(t, 0, 23, "^bar$")
	if skip, _ := f.ShouldSkip(reservation.Candidate{Name: "x", When: at(12, 0), Kind: "BAR"}); !skip {
		t.Fatalf("BAR should match ^bar$ case-insensitively")
	}
	if skip, _ := f.ShouldSkip(reservation.Candidate{Name: "x", When: at(12, 0), Kind: "Outdoor"}); skip {
		t.Fatalf("custom pattern replaces the default")
	}
}

func TestShouldSkip_ExampleScenario(t *testing.T) {
	f := newFilter(t, 19, 21, ".*(outdoor|patio).*")
	c := reservation.Candidate{
		Name:     "Carbone (Dining Room)",
		When:     at(19, 30),
		PartyMin: 2,
		PartyMax: 4,
		Kind:     "Dining Room",
	}
	if skip, reason := f.ShouldSkip(c); skip {
		t.Fatalf("example candidate skipped: %q", reason)
	}
}
