// Package resy polls Resy venues with the calendar + find flow used by the
// Resy web client.
package resy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/example/resywatch/internal/providers/httpx"
	"github.com/example/resywatch/internal/reservation"
)

const defaultBaseURL = "https://api.resy.com"

type Credentials struct {
	APIKey    string
	AuthToken string
}

// Adapter is a two-step source: the calendar endpoint says which days have
// inventory, then /4/find is queried only for requested days that do. The
// find step is throttled by the source's DetailInterval.
type Adapter struct {
	hc    *httpx.Client
	creds Credentials
	base  string
	log   zerolog.Logger
	now   func() time.Time

	detail *rate.Limiter
}

type Option func(*Adapter)

func WithBaseURL(u string) Option { return func(a *Adapter) { a.base = u } }

func WithClock(now func() time.Time) Option { return func(a *Adapter) { a.now = now } }

func New(hc *httpx.Client, creds Credentials, detailInterval time.Duration, log zerolog.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		hc:     hc,
		creds:  creds,
		base:   defaultBaseURL,
		log:    log,
		now:    time.Now,
		detail: rate.NewLimiter(rate.Every(detailInterval), 1),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Adapter) Name() string { return string(reservation.ProviderResy) }

type calendarResponse struct {
	Scheduled []struct {
		Date      string `json:"date"`
		Inventory *struct {
			Reservation string `json:"reservation"`
		} `json:"inventory"`
	} `json:"scheduled"`
}

type findResponse struct {
	Results struct {
		Venues []struct {
			Venue *struct {
				Name string `json:"name"`
			} `json:"venue"`
			Slots []struct {
				Date struct {
					Start string `json:"start"`
				} `json:"date"`
				Size *struct {
					Min int `json:"min"`
					Max int `json:"max"`
				} `json:"size"`
				Config *struct {
					Type string `json:"type"`
				} `json:"config"`
			} `json:"slots"`
		} `json:"venues"`
	} `json:"results"`
}

func (a *Adapter) Fetch(ctx context.Context, cfg reservation.Config) ([]reservation.Candidate, error) {
	now := a.now()
	days := cfg.TargetDays(now)
	if len(days) == 0 {
		return nil, nil
	}

	available, err := a.availableDays(ctx, cfg, days)
	if err != nil {
		return nil, err
	}
	var eligible []time.Time
	for _, d := range days {
		if available[d.Format("2006-01-02")] {
			eligible = append(eligible, d)
		}
	}
	if len(eligible) == 0 {
		return nil, nil
	}
	if !a.detail.AllowN(now, 1) {
		a.log.Debug().Str("venue", cfg.Venue).Msg("find throttled")
		return nil, nil
	}

	var out []reservation.Candidate
	for _, day := range eligible {
		a.log.Info().Str("day", day.Format("2006-01-02")).Str("venue", cfg.Venue).Msg("checking day")
		cs, err := a.find(ctx, cfg, day)
		if err != nil {
			return nil, err
		}
		out = append(out, cs...)
	}
	return out, nil
}

func (a *Adapter) availableDays(ctx context.Context, cfg reservation.Config, days []time.Time) (map[string]bool, error) {
	last := days[0]
	for _, d := range days[1:] {
		if d.After(last) {
			last = d
		}
	}
	today := a.now().In(cfg.Location)
	req := a.request(cfg, "/4/venue/calendar", url.Values{
		"venue_id":   {cfg.Venue},
		"num_seats":  {strconv.Itoa(cfg.PartySize)},
		"start_date": {today.Format("2006-01-02")},
		"end_date":   {last.Format("2006-01-02")},
	})
	resp, err := a.hc.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var cal calendarResponse
	if err := httpx.DecodeJSON(req, resp, &cal); err != nil {
		return nil, err
	}

	out := make(map[string]bool, len(cal.Scheduled))
	for _, s := range cal.Scheduled {
		if s.Date == "" {
			return nil, reservation.MissingField(reservation.ProviderResy, cfg.Venue, "scheduled.date", resp.Status, resp.Body)
		}
		if s.Inventory == nil {
			return nil, reservation.MissingField(reservation.ProviderResy, cfg.Venue, "scheduled.inventory", resp.Status, resp.Body)
		}
		if s.Inventory.Reservation == "available" {
			out[s.Date] = true
		}
	}
	return out, nil
}

func (a *Adapter) find(ctx context.Context, cfg reservation.Config, day time.Time) ([]reservation.Candidate, error) {
	req := a.request(cfg, "/4/find", url.Values{
		// deprecated but still required
		"lat":        {"0"},
		"long":       {"0"},
		"day":        {day.Format("2006-01-02")},
		"party_size": {strconv.Itoa(cfg.PartySize)},
		"venue_id":   {cfg.Venue},
	})
	resp, err := a.hc.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var res findResponse
	if err := httpx.DecodeJSON(req, resp, &res); err != nil {
		return nil, err
	}

	missing := func(field string) error {
		return reservation.MissingField(reservation.ProviderResy, cfg.Venue, field, resp.Status, resp.Body)
	}
	var out []reservation.Candidate
	for _, v := range res.Results.Venues {
		if v.Venue == nil || v.Venue.Name == "" {
			return nil, missing("venue.name")
		}
		for _, s := range v.Slots {
			if s.Date.Start == "" {
				return nil, missing("slot.date.start")
			}
			if s.Size == nil {
				return nil, missing("slot.size")
			}
			if s.Config == nil || s.Config.Type == "" {
				return nil, missing("slot.config.type")
			}
			when, err := parseStart(s.Date.Start, cfg.Location)
			if err != nil {
				return nil, &reservation.ProviderError{
					Provider: reservation.ProviderResy,
					Venue:    cfg.Venue,
					Status:   resp.Status,
					Body:     reservation.Truncate(string(resp.Body), 512),
					Err:      err,
				}
			}
			out = append(out, reservation.Candidate{
				Name:     fmt.Sprintf("%s (%s)", v.Venue.Name, s.Config.Type),
				When:     when,
				PartyMin: s.Size.Min,
				PartyMax: s.Size.Max,
				Kind:     s.Config.Type,
			})
		}
	}
	return out, nil
}

func (a *Adapter) request(cfg reservation.Config, path string, q url.Values) httpx.Request {
	h := httpx.With(httpx.BrowserHeaders(), map[string]string{
		"accept":         "application/json, text/plain, */*",
		"authorization":  fmt.Sprintf(`ResyAPI api_key="%s"`, a.creds.APIKey),
		"sec-fetch-site": "same-site",
		"x-origin":       "https://resy.com",
		"referer":        "https://resy.com/",
		"origin":         "https://resy.com",
	})
	if a.creds.AuthToken != "" {
		h.Set("x-resy-auth-token", a.creds.AuthToken)
		h.Set("x-resy-universal-auth", a.creds.AuthToken)
	}
	return httpx.Request{
		Provider: reservation.ProviderResy,
		Venue:    cfg.Venue,
		Method:   http.MethodGet,
		URL:      a.base + path,
		Query:    q,
		Header:   h,
	}
}

func parseStart(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid slot start %q", s)
}
