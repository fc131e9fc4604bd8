package filter

import (
	"regexp"

	"github.com/example/resywatch/internal/reservation"
)

type Reason string

const (
	ReasonNone  Reason = ""
	ReasonHours Reason = "hours"
	ReasonType  Reason = "type"
)

// Filter applies a source's skip rules. It holds no mutable state.
type Filter struct {
	hourStart  int
	hourEnd    int
	ignoreType *regexp.Regexp
}

func New(cfg reservation.Config) *Filter {
	return &Filter{
		hourStart:  cfg.HourStart,
		hourEnd:    cfg.HourEnd,
		ignoreType: cfg.IgnoreType,
	}
}

// ShouldSkip compares only the hour of the candidate's wall clock; minutes and
// the date are irrelevant, so 21:45 passes a window ending at 21.
func (f *Filter) ShouldSkip(c reservation.Candidate) (bool, Reason) {
	h := c.When.Hour()
	if h < f.hourStart || h > f.hourEnd {
		return true, ReasonHours
	}
	if c.Kind != "" && f.ignoreType != nil && f.ignoreType.MatchString(c.Kind) {
		return true, ReasonType
	}
	return false, ReasonNone
}
