package printful

import (
	"errors"
	"time"
)

const (
	// DefaultAPIBaseURL is the production Printful API endpoint.
	DefaultAPIBaseURL = "https://api.printful.com"

	// defaultTimeoutSeconds bounds every vendor round trip. A hung vendor
	// call must surface as ErrVendorUnavailable, never block a run forever.
	defaultTimeoutSeconds = 15

	// maxResponseSize limits response bodies to prevent memory exhaustion
	// on a misbehaving vendor.
	maxResponseSize = 4 * 1024 * 1024
)

// Config holds the Printful API credentials and client tuning.
type Config struct {
	// APIBaseURL is the API root. Override it in tests and staging.
	APIBaseURL string

	// Token is the private API token sent as a Bearer credential.
	Token string

	// TimeoutSeconds bounds each HTTP round trip. Zero selects the default.
	TimeoutSeconds int
}

// Validate checks the config is usable.
func (c *Config) Validate() error {
	if c.Token == "" {
		return errors.New("printful: API token is required")
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	return nil
}

func (c *Config) timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
