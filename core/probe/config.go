package probe

import (
	"time"

	"catalog-sync/core/ratelimit"
	"catalog-sync/core/retry"
)

// Config holds the remote endpoint and probing policy.
type Config struct {
	// LookupURL is queried as LookupURL?id=N.
	LookupURL string `mapstructure:"lookup_url" default:"https://api.uexcorp.space/2.0/marketplace_listings"`
	// ItemURLBase is joined with a listing slug to build its page URL.
	ItemURLBase string `mapstructure:"item_url_base" default:"https://uexcorp.space/marketplace/item/info/"`
	// Timeout bounds one lookup attempt.
	Timeout time.Duration `mapstructure:"timeout" default:"10s"`
	// UserAgent is sent with every lookup.
	UserAgent string `mapstructure:"user_agent" default:"catalog-sync/1.0"`
	// RatePerSecond caps lookups started in any trailing second.
	RatePerSecond int `mapstructure:"rate_per_second" default:"10"`
	// MinSpacing is the minimum delay between two lookups.
	MinSpacing time.Duration `mapstructure:"min_spacing" default:"100ms"`
	// MaxAttempts bounds tries per identifier.
	MaxAttempts int `mapstructure:"max_attempts" default:"3"`
	// RetryBackoff is the fixed delay between tries.
	RetryBackoff time.Duration `mapstructure:"retry_backoff" default:"500ms"`
}

// Limiter returns the rate limiter settings.
func (c Config) Limiter() ratelimit.Config {
	return ratelimit.Config{PerSecond: c.RatePerSecond, MinSpacing: c.MinSpacing}
}

// Policy returns the retry policy.
func (c Config) Policy() retry.Policy {
	attempts := c.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return retry.Policy{MaxAttempts: uint(attempts), Backoff: c.RetryBackoff}
}
