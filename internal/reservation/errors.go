package reservation

import (
	"errors"
	"fmt"
)

// TransientFetchError is a network failure, timeout or 5xx that survived the
// transport's retries. The cycle yields zero candidates.
type TransientFetchError struct {
	Provider Provider
	Venue    string
	Status   int
	Err      error
}

func (e *TransientFetchError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s venue %s: transient fetch failure (status=%d): %v", e.Provider, e.Venue, e.Status, e.Err)
	}
	return fmt.Sprintf("%s venue %s: transient fetch failure: %v", e.Provider, e.Venue, e.Err)
}

func (e *TransientFetchError) Unwrap() error { return e.Err }

// ProviderError is a response the adapter cannot interpret: a missing field,
// an undecodable body or a non-retryable status.
type ProviderError struct {
	Provider Provider
	Venue    string
	Status   int
	Body     string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s venue %s: unexpected response (status=%d): %v", e.Provider, e.Venue, e.Status, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// ConfigurationError rejects a source before scheduling begins.
type ConfigurationError struct {
	Source string
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("source %q: %s", e.Source, e.Reason)
	}
	return fmt.Sprintf("source %q: %s: %s", e.Source, e.Field, e.Reason)
}

func IsTransient(err error) bool {
	var t *TransientFetchError
	return errors.As(err, &t)
}

func IsProviderError(err error) bool {
	var p *ProviderError
	return errors.As(err, &p)
}

func IsConfigurationError(err error) bool {
	var c *ConfigurationError
	return errors.As(err, &c)
}

// MissingField builds the ProviderError used when a required field is absent.
func MissingField(p Provider, venue, field string, status int, body []byte) *ProviderError {
	return &ProviderError{
		Provider: p,
		Venue:    venue,
		Status:   status,
		Body:     Truncate(string(body), 512),
		Err:      fmt.Errorf("missing field %q", field),
	}
}

// Truncate keeps log lines bounded when echoing provider bodies.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
