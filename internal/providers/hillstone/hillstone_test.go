package hillstone

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/example/resywatch/internal/providers/httpx"
	"github.com/example/resywatch/internal/reservation"
)

var loc = time.FixedZone("EST", -5*3600)

func setup(t *testing.T, handler http.HandlerFunc) (*Adapter, reservation.Config) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg := reservation.Config{
		Name:      "houstons",
		Label:     "Houston's Pasadena",
		Type:      reservation.ProviderHillstone,
		Venue:     "278258",
		PartySize: 4,
		HourStart: 18,
		HourEnd:   21,
		Days:      []time.Time{time.Date(2024, 7, 2, 0, 0, 0, 0, loc)},
		Location:  loc,
	}.WithDefaults()
	return New(httpx.New(httpx.WithMaxTries(1)), WithBaseURL(srv.URL)), cfg
}

func TestFetch_SearchTimestampAndMapping(t *testing.T) {
	slot := time.Date(2024, 7, 2, 19, 15, 0, 0, loc)
	var gotTS, gotMerchant string
	a, cfg := setup(t, func(w http.ResponseWriter, r *http.Request) {
		gotTS = r.URL.Query().Get("search_ts")
		gotMerchant = r.URL.Query().Get("merchant_id")
		fmt.Fprintf(w, `{"types":[{"name":"Dining Room","times":[{"reserved_ts":%d,"min_party_size":2,"max_party_size":4}]}]}`, slot.UnixMilli())
	})

	cs, err := a.Fetch(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	want := time.Date(2024, 7, 2, 18, 0, 0, 0, loc).UnixMilli()
	if gotTS != strconv.FormatInt(want, 10) {
		t.Fatalf("search_ts = %s; want %d", gotTS, want)
	}
	if gotMerchant != "278258" {
		t.Fatalf("merchant_id = %s", gotMerchant)
	}
	if len(cs) != 1 {
		t.Fatalf("candidates = %d; want 1", len(cs))
	}
	c := cs[0]
	if c.Name != "Houston's Pasadena" || c.Kind != "Dining Room" || c.PartyMin != 2 || c.PartyMax != 4 {
		t.Fatalf("unexpected candidate %+v", c)
	}
	if !c.When.Equal(slot) || c.When.Hour() != 19 {
		t.Fatalf("When = %v; want %v", c.When, slot)
	}
}

func TestFetch_NoTypesIsEmpty(t *testing.T) {
	a, cfg := setup(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"types":[]}`))
	})
	cs, err := a.Fetch(context.Background(), cfg)
	if err != nil || len(cs) != 0 {
		t.Fatalf("Fetch = %v, %v; want empty", cs, err)
	}
}

func TestFetch_MissingPartySize(t *testing.T) {
	a, cfg := setup(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"types":[{"name":"Bar","times":[{"reserved_ts":1719961200000,"min_party_size":2}]}]}`))
	})
	_, err := a.Fetch(context.Background(), cfg)
	if !reservation.IsProviderError(err) {
		t.Fatalf("want ProviderError, got %v", err)
	}
}

func TestFetch_ClientErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()
	cfg := reservation.Config{Name: "h", Type: reservation.ProviderHillstone, Venue: "1", Location: loc}.WithDefaults()
	a := New(httpx.New(httpx.WithMaxTries(3), httpx.WithBackoff(time.Millisecond, time.Millisecond)), WithBaseURL(srv.URL))

	_, err := a.Fetch(context.Background(), cfg)
	var pe *reservation.ProviderError
	if !errors.As(err, &pe) || pe.Status != http.StatusForbidden {
		t.Fatalf("want 403 ProviderError, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d; want 1", calls)
	}
}
