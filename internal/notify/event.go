package notify

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/resywatch/internal/reservation"
)

// Event is one accepted candidate on its way to the sinks.
type Event struct {
	ID         string
	Source     string
	Name       string
	When       time.Time
	PartyMin   int
	PartyMax   int
	Kind       string
	Recipients []string
}

func NewEvent(source string, c reservation.Candidate, recipients []string) Event {
	return Event{
		ID:         uuid.NewString(),
		Source:     source,
		Name:       c.Name,
		When:       c.When,
		PartyMin:   c.PartyMin,
		PartyMax:   c.PartyMax,
		Kind:       c.Kind,
		Recipients: recipients,
	}
}

// Body is the notification text; the event name serves as the title.
func (e Event) Body() string {
	return fmt.Sprintf("Party size : %d-%d", e.PartyMin, e.PartyMax)
}
