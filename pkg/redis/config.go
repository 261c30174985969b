package redis

import "time"

// Config holds the Redis connection settings.
// Redis is optional for the billing service: an empty REDIS_URL keeps the
// entitlement cache in process memory.
type Config struct {
	ConnectionURL  string        `env:"REDIS_URL"`                              // redis://:password@localhost:6379/0
	RetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`    // connection attempts before giving up
	RetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"2s"`   // pause between attempts
	ConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"15s"` // bound for the whole connect
	KeyPrefix      string        `env:"REDIS_KEY_PREFIX" envDefault:"vowbill:"` // namespace for Storage keys
}

// Enabled reports whether a connection URL is configured.
func (c Config) Enabled() bool {
	return c.ConnectionURL != ""
}
