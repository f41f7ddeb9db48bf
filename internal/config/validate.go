package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrMissingCredential is matched by every *MissingCredentialError.
var ErrMissingCredential = errors.New("missing credential")

// MissingCredentialError reports a provider selected without its API key.
type MissingCredentialError struct {
	Provider string
	Env      string
}

func (e *MissingCredentialError) Error() string {
	return fmt.Sprintf("%s api key is not configured (set %s)", e.Provider, e.Env)
}

func (e *MissingCredentialError) Is(target error) bool { return target == ErrMissingCredential }

// Public is the message safe to return to clients.
func (e *MissingCredentialError) Public() string {
	return DisplayName(e.Provider) + " API key is not configured."
}

// DisplayName is the human-facing provider name.
func DisplayName(provider string) string {
	switch provider {
	case ProviderFinnhub:
		return "Finnhub"
	case ProviderAlphaVantage:
		return "Alpha Vantage"
	case ProviderYahoo:
		return "Yahoo Finance"
	case ProviderScrape:
		return "Yahoo Finance (scrape)"
	default:
		return provider
	}
}

// Credential returns the API key for the selected provider and the env
// variable that provisions it. Keyless providers return an empty env name.
func (q Quotes) Credential() (key string, env string) {
	switch q.Provider {
	case ProviderFinnhub:
		return q.Finnhub.APIKey, "FINNHUB_API_KEY"
	case ProviderAlphaVantage:
		return q.AlphaVantage.APIKey, "ALPHAVANTAGE_API_KEY"
	default:
		return "", ""
	}
}

// Validate checks the quote settings. A missing API key is reported as a
// *MissingCredentialError so callers can treat it as fatal.
func (q Quotes) Validate() error {
	switch q.Provider {
	case ProviderFinnhub, ProviderAlphaVantage, ProviderYahoo, ProviderScrape:
	default:
		return fmt.Errorf("unknown quotes provider %q", q.Provider)
	}
	if key, env := q.Credential(); env != "" && strings.TrimSpace(key) == "" {
		return &MissingCredentialError{Provider: q.Provider, Env: env}
	}
	if len(q.Symbols) == 0 {
		return errors.New("quotes.symbols is empty")
	}
	switch q.CachePolicy {
	case CachePublic, CacheNoStore:
	default:
		return fmt.Errorf("unknown cache policy %q", q.CachePolicy)
	}
	if _, err := q.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves TimeZone, defaulting to the process local zone.
func (q Quotes) Location() (*time.Location, error) {
	if q.TimeZone == "" || strings.EqualFold(q.TimeZone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(q.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("quotes.time_zone: %w", err)
	}
	return loc, nil
}

// UpstreamTimeout is the deadline applied to each upstream call.
func (q Quotes) UpstreamTimeout() time.Duration {
	if q.UpstreamTimeoutSec <= 0 {
		return 8 * time.Second
	}
	return time.Duration(q.UpstreamTimeoutSec) * time.Second
}

// Validate checks the shell cache settings when the shell front is enabled.
func (s Shell) Validate() error {
	if !s.Enabled {
		return nil
	}
	u, err := url.Parse(s.Origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("shell.origin must be an absolute URL, got %q", s.Origin)
	}
	if strings.TrimSpace(s.Version) == "" {
		return errors.New("shell.version is empty")
	}
	switch s.APIPolicy {
	case APINetworkOnly, APICacheBust:
	default:
		return fmt.Errorf("unknown shell api policy %q", s.APIPolicy)
	}
	switch s.Storage {
	case StorageMemory, StorageLevelDB:
	default:
		return fmt.Errorf("unknown shell storage %q", s.Storage)
	}
	return nil
}

// RequestTimeout is the deadline for one whole quotes request.
func (s Server) RequestTimeout() time.Duration {
	if s.RequestTimeoutSec <= 0 {
		return 15 * time.Second
	}
	return time.Duration(s.RequestTimeoutSec) * time.Second
}
