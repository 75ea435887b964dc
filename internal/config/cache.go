package config

import "time"

// CacheConfig controls the Redis copy of the active spot catalogue.
// When Enabled is false or no Redis client is configured, every read
// goes to MySQL.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
	Prefix  string
}

// LoadCacheConfig reads SPOT_CACHE_* variables.
func LoadCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: envBool("SPOT_CACHE_ENABLED", true),
		TTL:     envDur("SPOT_CACHE_TTL", time.Minute),
		Prefix:  envStr("SPOT_CACHE_PREFIX", "parking"),
	}
}
