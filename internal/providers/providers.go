// Package providers builds the Source adapter for a configured provider type.
package providers

import (
	"github.com/rs/zerolog"

	"github.com/example/resywatch/internal/providers/hillstone"
	"github.com/example/resywatch/internal/providers/httpx"
	"github.com/example/resywatch/internal/providers/opentable"
	"github.com/example/resywatch/internal/providers/resy"
	"github.com/example/resywatch/internal/providers/sevenrooms"
	"github.com/example/resywatch/internal/providers/teetime"
	"github.com/example/resywatch/internal/reservation"
)

// Credentials are the per-provider secrets read from the environment.
type Credentials struct {
	ResyAPIKey       string
	ResyAuthToken    string
	OpenTableToken   string
	OpenTableHash    string
	SevenRoomsCookie string
}

// New returns the adapter for cfg.Type. Unknown types and missing
// credentials are configuration errors.
func New(cfg reservation.Config, creds Credentials, hc *httpx.Client, log zerolog.Logger) (reservation.Source, error) {
	log = log.With().Str("provider", string(cfg.Type)).Logger()
	missing := func(field string) error {
		return &reservation.ConfigurationError{Source: cfg.Name, Field: field, Reason: "required for " + string(cfg.Type) + " sources"}
	}

	switch cfg.Type {
	case reservation.ProviderResy:
		if creds.ResyAPIKey == "" {
			return nil, missing("RESY_API_KEY")
		}
		return resy.New(hc, resy.Credentials{APIKey: creds.ResyAPIKey, AuthToken: creds.ResyAuthToken}, cfg.DetailInterval, log), nil
	case reservation.ProviderSevenRooms:
		return sevenrooms.New(hc, creds.SevenRoomsCookie), nil
	case reservation.ProviderHillstone:
		return hillstone.New(hc), nil
	case reservation.ProviderOpenTable:
		if creds.OpenTableToken == "" {
			return nil, missing("OPENTABLE_TOKEN")
		}
		return opentable.New(hc, creds.OpenTableToken, opentable.WithQueryHash(creds.OpenTableHash)), nil
	case reservation.ProviderTeeTime:
		return teetime.New(hc), nil
	}
	return nil, &reservation.ConfigurationError{Source: cfg.Name, Field: "type", Reason: "unsupported provider " + string(cfg.Type)}
}
