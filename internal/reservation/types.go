package reservation

import (
	"fmt"
	"strconv"
	"time"
)

// Candidate is one discovered slot, normalized from a provider response.
// It only lives for the duration of a poll cycle.
type Candidate struct {
	Name     string
	When     time.Time
	PartyMin int
	PartyMax int

	// Kind is the provider's seating/shift category, used only for filtering.
	Kind string
}

// Key identifies the same real-world slot across polls.
type Key string

const keyTimeLayout = "2006-01-02T15:04:05"

// Key is Name, local wall-clock When and PartyMin joined with '|'.
// Matching is exact; no normalization is applied to Name.
func (c Candidate) Key() Key {
	return Key(c.Name + "|" + c.When.Format(keyTimeLayout) + "|" + strconv.Itoa(c.PartyMin))
}

func (c Candidate) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("candidate name required")
	}
	if c.When.IsZero() {
		return fmt.Errorf("candidate %q: time required", c.Name)
	}
	if c.PartyMin > c.PartyMax {
		return fmt.Errorf("candidate %q: party_size_min %d > party_size_max %d", c.Name, c.PartyMin, c.PartyMax)
	}
	return nil
}
