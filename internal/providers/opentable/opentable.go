// Package opentable polls OpenTable's availability GraphQL endpoint.
package opentable

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/example/resywatch/internal/providers/httpx"
	"github.com/example/resywatch/internal/reservation"
)

const (
	defaultBaseURL = "https://www.opentable.com/dapi"
	// DefaultQueryHash is the persisted RestaurantsAvailability query.
	DefaultQueryHash = "e6b87083b2dfc66e11d26f9bd6e98b8f6a9f4a3b7d0e9a2f33c9f1f6a0b9f2a1"
)

type Adapter struct {
	hc    *httpx.Client
	token string
	hash  string
	base  string
	now   func() time.Time
}

type Option func(*Adapter)

func WithBaseURL(u string) Option { return func(a *Adapter) { a.base = strings.TrimRight(u, "/") } }

func WithClock(now func() time.Time) Option { return func(a *Adapter) { a.now = now } }

// WithQueryHash overrides the persisted query hash when OpenTable rotates it.
func WithQueryHash(h string) Option {
	return func(a *Adapter) {
		if strings.TrimSpace(h) != "" {
			a.hash = h
		}
	}
}

// New requires the CSRF token OpenTable expects on GraphQL calls.
func New(hc *httpx.Client, token string, opts ...Option) *Adapter {
	a := &Adapter{hc: hc, token: token, hash: DefaultQueryHash, base: defaultBaseURL, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Adapter) Name() string { return string(reservation.ProviderOpenTable) }

type availability struct {
	Data *struct {
		Availability []struct {
			RestaurantName   string `json:"restaurantName"`
			AvailabilityDays []struct {
				Slots []struct {
					IsAvailable         bool   `json:"isAvailable"`
					ReservationDateTime string `json:"reservationDateTime"`
					Type                string `json:"type"`
				} `json:"slots"`
			} `json:"availabilityDays"`
		} `json:"availability"`
	} `json:"data"`
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
	payload := map[string]any{
		"operationName": "RestaurantsAvailability",
		"variables": map[string]any{
			"restaurantIds": []string{cfg.Venue},
			"partySize":     cfg.PartySize,
			"dateTime":      fmt.Sprintf("%sT%02d:00:00.000", day.Format("2006-01-02"), cfg.HourStart),
			"forwardDays":   0,
			"includeOffers": false,
		},
		"extensions": map[string]any{
			"persistedQuery": map[string]any{
				"version":    1,
				"sha256Hash": a.hash,
			},
		},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("opentable: encode query: %w", err)
	}

	req := httpx.Request{
		Provider:    reservation.ProviderOpenTable,
		Venue:       cfg.Venue,
		Method:      http.MethodPost,
		URL:         a.base + "/fe/gql?optype=query&opname=RestaurantsAvailability",
		ContentType: "application/json",
		Header: httpx.With(httpx.BrowserHeaders(), map[string]string{
			"accept":         "*/*",
			"origin":         "https://www.opentable.com",
			"sec-fetch-site": "same-origin",
			"x-csrf-token":   a.token,
		}),
		Body: b,
	}
	resp, err := a.hc.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var parsed availability
	if err := httpx.DecodeJSON(req, resp, &parsed); err != nil {
		return nil, err
	}
	if parsed.Data == nil {
		return nil, reservation.MissingField(reservation.ProviderOpenTable, cfg.Venue, "data", resp.Status, resp.Body)
	}

	var out []reservation.Candidate
	for _, r := range parsed.Data.Availability {
		name := r.RestaurantName
		if name == "" {
			name = cfg.Label
		}
		for _, d := range r.AvailabilityDays {
			for _, s := range d.Slots {
				if !s.IsAvailable {
					continue
				}
				when, err := parseSlot(s.ReservationDateTime, cfg.Location)
				if err != nil {
					return nil, &reservation.ProviderError{
						Provider: reservation.ProviderOpenTable,
						Venue:    cfg.Venue,
						Status:   resp.Status,
						Body:     reservation.Truncate(string(resp.Body), 512),
						Err:      err,
					}
				}
				out = append(out, reservation.Candidate{
					Name:     name,
					When:     when,
					PartyMin: cfg.PartySize,
					PartyMax: cfg.PartySize,
					Kind:     s.Type,
				})
			}
		}
	}
	return out, nil
}

// parseSlot accepts offset timestamps and OpenTable's zone-less local form.
func parseSlot(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing field %q", "reservationDateTime")
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.In(loc), nil
		}
	}
	for _, layout := range []string{"2006-01-02T15:04:05", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid reservationDateTime %q", s)
}
