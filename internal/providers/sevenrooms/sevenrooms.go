// Package sevenrooms polls the SevenRooms reservation widget.
package sevenrooms

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/example/resywatch/internal/providers/httpx"
	"github.com/example/resywatch/internal/reservation"
)

const (
	defaultBaseURL = "https://www.sevenrooms.com"
	dayLayout      = "01-02-2006"
)

type Adapter struct {
	hc     *httpx.Client
	cookie string
	base   string
	now    func() time.Time
}

type Option func(*Adapter)

func WithBaseURL(u string) Option { return func(a *Adapter) { a.base = u } }

func WithClock(now func() time.Time) Option { return func(a *Adapter) { a.now = now } }

// New takes the widget cookie captured from a browser session; it may be empty.
func New(hc *httpx.Client, cookie string, opts ...Option) *Adapter {
	a := &Adapter{hc: hc, cookie: cookie, base: defaultBaseURL, now: time.Now}
	for _, o := range opts {
		o(a)
	}
	return a
}

func (a *Adapter) Name() string { return string(reservation.ProviderSevenRooms) }

type rangeResponse struct {
	Data struct {
		Availability map[string][]struct {
			ShiftCategory string `json:"shift_category"`
			Times         []struct {
				Cost        json.RawMessage `json:"cost"`
				RealTime    string          `json:"real_datetime_of_slot"`
				Description *string         `json:"public_time_slot_description"`
			} `json:"times"`
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
	dayStr := day.Format(dayLayout)
	h := httpx.With(httpx.BrowserHeaders(), map[string]string{
		"authority":      "www.sevenrooms.com",
		"accept":         "*/*",
		"sec-fetch-site": "same-site",
		"referer":        "https://www.sevenrooms.com/reservations/" + cfg.Venue,
	})
	if a.cookie != "" {
		h.Set("cookie", a.cookie)
	}
	req := httpx.Request{
		Provider: reservation.ProviderSevenRooms,
		Venue:    cfg.Venue,
		Method:   http.MethodGet,
		URL:      a.base + "/api-yoa/availability/widget/range",
		Header:   h,
		Query: url.Values{
			"venue":              {cfg.Venue},
			"time_slot":          {fmt.Sprintf("%d:00", cfg.HourStart)},
			"party_size":         {strconv.Itoa(cfg.PartySize)},
			"halo_size_interval": {"16"},
			"start_date":         {dayStr},
			"num_days":           {"1"},
			"channel":            {"SEVENROOMS_WIDGET"},
			"selected_lang_code": {"en"},
		},
	}
	resp, err := a.hc.Do(ctx, req)
	if err != nil {
		return nil, err
	}
	var res rangeResponse
	if err := httpx.DecodeJSON(req, resp, &res); err != nil {
		return nil, err
	}

	var out []reservation.Candidate
	for _, shift := range res.Data.Availability[dayStr] {
		if cfg.Shift != "" && !strings.EqualFold(shift.ShiftCategory, cfg.Shift) {
			continue
		}
		for _, slot := range shift.Times {
			// slots without a cost entry are not bookable
			if len(slot.Cost) == 0 {
				continue
			}
			if slot.Description == nil {
				return nil, reservation.MissingField(reservation.ProviderSevenRooms, cfg.Venue, "public_time_slot_description", resp.Status, resp.Body)
			}
			when, err := parseSlotTime(slot.RealTime, cfg.Location)
			if err != nil {
				return nil, &reservation.ProviderError{
					Provider: reservation.ProviderSevenRooms,
					Venue:    cfg.Venue,
					Status:   resp.Status,
					Body:     reservation.Truncate(string(resp.Body), 512),
					Err:      err,
				}
			}
			out = append(out, reservation.Candidate{
				Name:     *slot.Description,
				When:     when,
				PartyMin: cfg.PartySize,
				PartyMax: cfg.PartySize,
				Kind:     shift.ShiftCategory,
			})
		}
	}
	return out, nil
}

func parseSlotTime(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, fmt.Errorf("missing field %q", "real_datetime_of_slot")
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02 15:04"} {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid real_datetime_of_slot %q", s)
}
