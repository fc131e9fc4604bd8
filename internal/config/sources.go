package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/example/resywatch/internal/reservation"
)

const dateLayout = "2006-01-02"

// File is the YAML sources document.
type File struct {
	Timezone string       `yaml:"timezone"`
	Interval string       `yaml:"interval"`
	MailTo   []string     `yaml:"mail_to"`
	Sources  []SourceSpec `yaml:"sources"`
}

// SourceSpec is the serialized form of a source, shared by the YAML file and
// the database registry. Nil hours fall back to the 19-21 default; an
// explicit 0 is kept.
type SourceSpec struct {
	Name           string   `yaml:"name" json:"name"`
	Type           string   `yaml:"type" json:"type"`
	Venue          string   `yaml:"venue" json:"venue"`
	Label          string   `yaml:"label,omitempty" json:"label,omitempty"`
	PartySize      int      `yaml:"party_size,omitempty" json:"party_size,omitempty"`
	HourStart      *int     `yaml:"hour_start,omitempty" json:"hour_start,omitempty"`
	HourEnd        *int     `yaml:"hour_end,omitempty" json:"hour_end,omitempty"`
	Days           []string `yaml:"days,omitempty" json:"days,omitempty"`
	DaysRange      int      `yaml:"days_range,omitempty" json:"days_range,omitempty"`
	IgnoreType     string   `yaml:"ignore_type,omitempty" json:"ignore_type,omitempty"`
	MailTo         []string `yaml:"mail_to,omitempty" json:"mail_to,omitempty"`
	Timezone       string   `yaml:"timezone,omitempty" json:"timezone,omitempty"`
	Interval       string   `yaml:"interval,omitempty" json:"interval,omitempty"`
	DetailInterval string   `yaml:"detail_interval,omitempty" json:"detail_interval,omitempty"`
	Shift          string   `yaml:"shift,omitempty" json:"shift,omitempty"`
}

// Defaults fill fields a SourceSpec leaves empty.
type Defaults struct {
	Timezone string
	Interval time.Duration
	MailTo   []string
}

// ToConfig builds and validates the immutable runtime config.
func (s SourceSpec) ToConfig(def Defaults) (reservation.Config, error) {
	bad := func(field string, err error) error {
		return &reservation.ConfigurationError{Source: s.Name, Field: field, Reason: err.Error()}
	}

	tz := firstNonEmpty(s.Timezone, def.Timezone, reservation.DefaultTimezone)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return reservation.Config{}, bad("timezone", err)
	}
	ignore, err := reservation.CompileIgnoreType(s.IgnoreType)
	if err != nil {
		return reservation.Config{}, bad("ignore_type", err)
	}
	interval, err := ParseDurationOrDefault("interval", s.Interval, def.Interval)
	if err != nil {
		return reservation.Config{}, bad("interval", err)
	}
	detail, err := ParseDurationOrDefault("detail_interval", s.DetailInterval, reservation.DefaultDetailInterval)
	if err != nil {
		return reservation.Config{}, bad("detail_interval", err)
	}

	days := make([]time.Time, 0, len(s.Days))
	for _, d := range s.Days {
		t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(d), loc)
		if err != nil {
			return reservation.Config{}, bad("days", fmt.Errorf("invalid date %q", d))
		}
		days = append(days, t)
	}

	mailTo := s.MailTo
	if len(mailTo) == 0 {
		mailTo = def.MailTo
	}

	cfg := reservation.Config{
		Name:           strings.TrimSpace(s.Name),
		Type:           reservation.Provider(strings.ToLower(strings.TrimSpace(s.Type))),
		Venue:          strings.TrimSpace(s.Venue),
		Label:          s.Label,
		PartySize:      s.PartySize,
		HourStart:      hourOr(s.HourStart, reservation.DefaultHourStart),
		HourEnd:        hourOr(s.HourEnd, reservation.DefaultHourEnd),
		HoursSet:       true,
		Days:           days,
		DaysRange:      s.DaysRange,
		IgnoreType:     ignore,
		MailTo:         append([]string(nil), mailTo...),
		Location:       loc,
		Interval:       interval,
		DetailInterval: detail,
		Shift:          strings.TrimSpace(s.Shift),
	}.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return reservation.Config{}, err
	}
	return cfg, nil
}

// ReadFile parses a sources file without validating it.
func ReadFile(path string) (File, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("read sources: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(b, &f); err != nil {
		return File{}, fmt.Errorf("parse sources: %w", err)
	}
	return f, nil
}

// LoadSources reads and validates a sources file.
func LoadSources(path string, def Defaults) ([]reservation.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources: %w", err)
	}
	return ParseSources(b, def)
}

// ParseSources validates every source; names must be unique. File-level
// timezone, interval and mail_to override def.
func ParseSources(data []byte, def Defaults) ([]reservation.Config, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse sources: %w", err)
	}
	if f.Timezone != "" {
		def.Timezone = f.Timezone
	}
	if len(f.MailTo) > 0 {
		def.MailTo = f.MailTo
	}
	iv, err := ParseDurationOrDefault("interval", f.Interval, def.Interval)
	if err != nil {
		return nil, err
	}
	def.Interval = iv

	if len(f.Sources) == 0 {
		return nil, fmt.Errorf("no sources defined")
	}
	return BuildConfigs(f.Sources, def)
}

// BuildConfigs converts specs, rejecting duplicate names.
func BuildConfigs(specs []SourceSpec, def Defaults) ([]reservation.Config, error) {
	seen := make(map[string]struct{}, len(specs))
	out := make([]reservation.Config, 0, len(specs))
	for _, s := range specs {
		cfg, err := s.ToConfig(def)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[cfg.Name]; dup {
			return nil, &reservation.ConfigurationError{Source: cfg.Name, Field: "name", Reason: "duplicate source name"}
		}
		seen[cfg.Name] = struct{}{}
		out = append(out, cfg)
	}
	return out, nil
}

func firstNonEmpty(vs ...string) string {
	for _, v := range vs {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// Hours renders the effective window, e.g. "19-21".
func (s SourceSpec) Hours() string {
	return fmt.Sprintf("%d-%d", hourOr(s.HourStart, reservation.DefaultHourStart), hourOr(s.HourEnd, reservation.DefaultHourEnd))
}

// Hour returns a pointer for SourceSpec.HourStart/HourEnd.
func Hour(h int) *int { return &h }

func hourOr(h *int, def int) int {
	if h == nil {
		return def
	}
	return *h
}
