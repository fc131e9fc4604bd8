// Package hillstone polls the Wisely loyalty inventory API used by Hillstone
// restaurants.
package hillstone

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/example/resywatch/internal/providers/httpx"
	"github.com/example/resywatch/internal/reservation"
)

const defaultBaseURL = "https://loyaltyapi.wisely.io"

type Adapter struct {
	hc   *httpx.Client
	base string
	now  func() time.Time
}

type Option func(*Adapter)

func WithBaseURL(u string) Option { return func(a *Adapter) { a.base = u } }

func WithClock(now func() time.Time) Option { return func(a *Adapter) { a.now = now } }

func New(hc *httpx.Client, opts ...Option) *Adapter {
	a := &Adapter{hc: hc, base: defaultBaseURL, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Adapter) Name() string { return string(reservation.ProviderHillstone) }

type inventory struct {
	Types []struct {
		Name  string `json:"name"`
		Times []struct {
			ReservedTS   *int64 `json:"reserved_ts"`
			MinPartySize *int   `json:"min_party_size"`
			MaxPartySize *int   `json:"max_party_size"`
		} `json:"times"`
	} `json:"types"`
}

func (a *Adapter) Fetch(ctx context.Context, cfg reservation.Config) ([]reservation.Candidate, error) {
	var out []reservation.Candidate
	for _, day := range cfg.TargetDays(a.now()) {
		cs, err := a.fetchDay(ctx, cfg, day)
		if err != nil {
			return nil, err
		}
		out = append(out, cs...)
	}
	return out, nil
}

func (a *Adapter) fetchDay(ctx context.Context, cfg reservation.Config, day time.Time) ([]reservation.Candidate, error) {
	search := time.Date(day.Year(), day.Month(), day.Day(), cfg.HourStart, 0, 0, 0, cfg.Location)
	req := httpx.Request{
		Provider: reservation.ProviderHillstone,
		Venue:    cfg.Venue,
		Method:   http.MethodGet,
		URL:      a.base + "/v2/web/reservations/inventory",
		Header: httpx.With(httpx.BrowserHeaders(), map[string]string{
			"accept":         "application/json, text/plain, */*",
			"origin":         "https://reservations.getwisely.com",
			"referer":        "https://reservations.getwisely.com/",
			"sec-fetch-site": "cross-site",
		}),
		Query: url.Values{
			"merchant_id":            {cfg.Venue},
			"party_size":             {strconv.Itoa(cfg.PartySize)},
			"search_ts":              {strconv.FormatInt(search.UnixMilli(), 10)},
			"show_reservation_types": {"1"},
			"limit":                  {"5"},
		},
	}
	resp, err := a.hc.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var inv inventory
	if err := httpx.DecodeJSON(req, resp, &inv); err != nil {
		return nil, err
	}

	missing := func(field string) error {
		return reservation.MissingField(reservation.ProviderHillstone, cfg.Venue, field, resp.Status, resp.Body)
	}
	var out []reservation.Candidate
	for _, typ := range inv.Types {
		for _, t := range typ.Times {
			switch {
			case t.ReservedTS == nil:
				return nil, missing("reserved_ts")
			case t.MinPartySize == nil:
				return nil, missing("min_party_size")
			case t.MaxPartySize == nil:
				return nil, missing("max_party_size")
			}
			out = append(out, reservation.Candidate{
				Name:     cfg.Label,
				When:     time.UnixMilli(*t.ReservedTS).In(cfg.Location),
				PartyMin: *t.MinPartySize,
				PartyMax: *t.MaxPartySize,
				Kind:     typ.Name,
			})
		}
	}
	return out, nil
}
