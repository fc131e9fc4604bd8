package reservation

import "context"

type Provider string

const (
	ProviderResy       Provider = "resy"
	ProviderSevenRooms Provider = "sevenrooms"
	ProviderHillstone  Provider = "hillstone"
	ProviderOpenTable  Provider = "opentable"
	ProviderTeeTime    Provider = "teetime"
)

// Source fetches availability for one configured venue and maps it into
// candidates. A provider that legitimately has no slots returns an empty
// slice and a nil error.
type Source interface {
	Name() string
	Fetch(ctx context.Context, cfg Config) ([]Candidate, error)
}
