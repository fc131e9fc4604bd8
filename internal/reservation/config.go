package reservation

import (
	"regexp"
	"strings"
	"time"
)

const (
	DefaultIgnoreType     = ".*(outdoor|patio).*"
	DefaultPartySize      = 2
	DefaultHourStart      = 19
	DefaultHourEnd        = 21
	DefaultInterval       = 15 * time.Second
	DefaultDetailInterval = 5 * time.Second
	DefaultTimezone       = "America/New_York"
)

// Config is one polled source: a provider, a venue and what to look for.
// It is built once at startup and never mutated afterwards.
type Config struct {
	Name  string
	Type  Provider
	Venue string
	// Label is used for provider responses that carry no venue name.
	Label string

	PartySize int
	HourStart int
	HourEnd   int
	// HoursSet marks HourStart/HourEnd as explicit, so a midnight-only
	// window (0-0) survives WithDefaults.
	HoursSet bool

	// Either an explicit list of dates or a rolling range starting today.
	Days      []time.Time
	DaysRange int

	IgnoreType *regexp.Regexp
	MailTo     []string
	Location   *time.Location

	Interval       time.Duration
	DetailInterval time.Duration

	// Shift restricts SevenRooms slots to one shift category (e.g. BRUNCH).
	Shift string
}

// CompileIgnoreType compiles a type-skip pattern, always case-insensitive.
// An empty pattern selects DefaultIgnoreType.
func CompileIgnoreType(pattern string) (*regexp.Regexp, error) {
	pattern = strings.TrimSpace(pattern)
	if pattern == "" {
		pattern = DefaultIgnoreType
	}
	return regexp.Compile("(?i)" + pattern)
}

// WithDefaults fills zero values: party of 2, New York time, 15s polling,
// and 19-21h unless HoursSet.
func (c Config) WithDefaults() Config {
	if c.PartySize == 0 {
		c.PartySize = DefaultPartySize
	}
	if !c.HoursSet && c.HourStart == 0 && c.HourEnd == 0 {
		c.HourStart, c.HourEnd = DefaultHourStart, DefaultHourEnd
	}
	if c.Location == nil {
		if loc, err := time.LoadLocation(DefaultTimezone); err == nil {
			c.Location = loc
		} else {
			c.Location = time.Local
		}
	}
	if c.IgnoreType == nil {
		c.IgnoreType, _ = CompileIgnoreType("")
	}
	if c.Interval <= 0 {
		c.Interval = DefaultInterval
	}
	if c.DetailInterval <= 0 {
		c.DetailInterval = DefaultDetailInterval
	}
	if c.Label == "" {
		c.Label = c.Name
	}
	return c
}

func (c Config) Validate() error {
	bad := func(field, reason string) error {
		return &ConfigurationError{Source: c.Name, Field: field, Reason: reason}
	}
	if c.Name == "" {
		return bad("name", "required")
	}
	switch c.Type {
	case ProviderResy, ProviderSevenRooms, ProviderHillstone, ProviderOpenTable, ProviderTeeTime:
	case "":
		return bad("type", "required")
	default:
		return bad("type", "unsupported provider "+string(c.Type))
	}
	if c.Venue == "" {
		return bad("venue", "required")
	}
	if c.PartySize < 1 {
		return bad("party_size", "must be >= 1")
	}
	if c.HourStart < 0 || c.HourStart > 23 || c.HourEnd < 0 || c.HourEnd > 23 {
		return bad("hours", "must be within 0-23")
	}
	if c.HourEnd < c.HourStart {
		return bad("hours", "hour_end must be >= hour_start")
	}
	if c.DaysRange < 0 {
		return bad("days_range", "must be >= 0")
	}
	if c.DaysRange > 0 && len(c.Days) > 0 {
		return bad("days", "set either days or days_range, not both")
	}
	if c.Location == nil {
		return bad("timezone", "required")
	}
	if c.Interval < time.Second {
		return bad("interval", "must be >= 1s")
	}
	return nil
}

// TargetDays returns the dates to query, as local midnights. Without days or a
// range it falls back to today.
func (c Config) TargetDays(now time.Time) []time.Time {
	loc := c.Location
	if loc == nil {
		loc = time.Local
	}
	n := now.In(loc)
	today := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	if c.DaysRange > 0 {
		out := make([]time.Time, 0, c.DaysRange)
		for i := 0; i < c.DaysRange; i++ {
			out = append(out, today.AddDate(0, 0, i))
		}
		return out
	}
	if len(c.Days) == 0 {
		return []time.Time{today}
	}
	out := make([]time.Time, 0, len(c.Days))
	for _, d := range c.Days {
		d = d.In(loc)
		out = append(out, time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, loc))
	}
	return out
}
