// Package teetime scrapes IBS club tee-sheet pages.
package teetime

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"github.com/example/resywatch/internal/providers/httpx"
	"github.com/example/resywatch/internal/reservation"
)

const (
	defaultBaseURL = "https://www.goibsvision.com"
	timeLayout     = "3:04 PM"
	nameLayout     = "2006-01-02 15:04:05"
)

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

func (a *Adapter) Name() string { return string(reservation.ProviderTeeTime) }

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
	dayStr := day.Format("01/02/2006")
	criteria := time.Date(2000, 1, 1, cfg.HourStart, 0, 0, 0, time.UTC).Format(timeLayout)
	form := url.Values{
		"CriteriaDate":     {dayStr},
		"date":             {dayStr},
		"CriteriaTime":     {criteria},
		"NumberOfPlayers":  {strconv.Itoa(cfg.PartySize)},
		"Holes":            {"18"},
		"X-Requested-With": {"XMLHttpRequest"},
	}
	req := httpx.Request{
		Provider:    reservation.ProviderTeeTime,
		Venue:       cfg.Venue,
		Method:      http.MethodPost,
		URL:         fmt.Sprintf("%s/WebRes/Club/%s/BrowseTeeTimes", a.base, url.PathEscape(cfg.Venue)),
		ContentType: "application/x-www-form-urlencoded",
		Header:      httpx.BrowserHeaders(),
		Body:        []byte(form.Encode()),
	}
	resp, err := a.hc.Do(ctx, req)
	if err != nil {
		return nil, err
	}

	cells, err := timeCells(resp.Body)
	if err != nil {
		return nil, &reservation.ProviderError{
			Provider: reservation.ProviderTeeTime,
			Venue:    cfg.Venue,
			Status:   resp.Status,
			Body:     reservation.Truncate(string(resp.Body), 512),
			Err:      fmt.Errorf("parse html: %w", err),
		}
	}

	out := make([]reservation.Candidate, 0, len(cells))
	for _, text := range cells {
		clock, err := time.Parse(timeLayout, text)
		if err != nil {
			return nil, &reservation.ProviderError{
				Provider: reservation.ProviderTeeTime,
				Venue:    cfg.Venue,
				Status:   resp.Status,
				Body:     reservation.Truncate(string(resp.Body), 512),
				Err:      fmt.Errorf("tee time %q: %w", text, err),
			}
		}
		when := time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, cfg.Location)
		out = append(out, reservation.Candidate{
			Name:     fmt.Sprintf("%s for %d+ : %s", cfg.Label, cfg.PartySize, when.Format(nameLayout)),
			When:     when,
			PartyMin: cfg.PartySize,
			PartyMax: cfg.PartySize,
		})
	}
	return out, nil
}

// timeCells returns the trimmed text of every <td class="time"> in document order.
func timeCells(body []byte) ([]string, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	var out []string
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "td" && hasClass(n, "time") {
			if s := strings.TrimSpace(text(n)); s != "" {
				out = append(out, s)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return out, nil
}

func hasClass(n *html.Node, class string) bool {
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, f := range strings.Fields(a.Val) {
			if f == class {
				return true
			}
		}
	}
	return false
}

func text(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		sb.WriteString(text(c))
	}
	return sb.String()
}
