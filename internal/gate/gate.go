package gate

import (
	"sync"
	"time"

	"github.com/example/resywatch/internal/reservation"
)

// Cooldown is the minimum time between two notifications for the same key.
const Cooldown = 5 * time.Minute

type Decision int

const (
	Suppress Decision = iota
	Accept
)

func (d Decision) String() string {
	if d == Accept {
		return "accept"
	}
	return "suppress"
}

// Gate decides whether a candidate fires a notification. Each source owns
// its own Gate; state lives for the process lifetime only.
//
// It is safe for concurrent use: the check and the mark happen under one lock,
// so overlapping cycles cannot both accept the same key.
type Gate struct {
	now func() time.Time

	mu             sync.Mutex
	lastNotifiedAt map[reservation.Key]time.Time
	seenSkipped    map[reservation.Key]struct{}
}

type Option func(*Gate)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

func New(opts ...Option) *Gate {
	g := &Gate{
		now:            time.Now,
		lastNotifiedAt: map[reservation.Key]time.Time{},
		seenSkipped:    map[reservation.Key]struct{}{},
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

func (g *Gate) Admit(c reservation.Candidate) Decision {
	k := c.Key()
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()
	if last, ok := g.lastNotifiedAt[k]; ok && now.Sub(last) <= Cooldown {
		return Suppress
	}
	g.lastNotifiedAt[k] = now
	return Accept
}

// FirstSkip records a filtered candidate and reports whether this is the
// first time its key was skipped.
func (g *Gate) FirstSkip(c reservation.Candidate) bool {
	k := c.Key()

	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.seenSkipped[k]; ok {
		return false
	}
	g.seenSkipped[k] = struct{}{}
	return true
}

// LastNotified returns when key last fired.
func (g *Gate) LastNotified(k reservation.Key) (time.Time, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, ok := g.lastNotifiedAt[k]
	return t, ok
}

// Size reports the number of notified and skipped keys.
func (g *Gate) Size() (notified, skipped int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.lastNotifiedAt), len(g.seenSkipped)
}
