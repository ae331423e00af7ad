package config

import "time"

// Default values for optional configuration fields.
//
// Freshness policy: the snapshot path serves cached ticks up to CacheTTL
// old; stream ticks bypass the cache and are generated per connection every
// TickMin..TickMax; the client-side fallback poll runs every RefreshInterval
// (kept equal to CacheTTL so polling is never fresher than the cache allows).
const (
	DefaultServerPort       = 8080
	DefaultShutdownTimeout  = 10 * time.Second
	DefaultCoinrateURL      = "https://api.coinrate.io"
	DefaultQuoteboardURL    = "https://api.quoteboard.dev"
	DefaultProviderTimeout  = 8 * time.Second
	DefaultCacheTTL         = 5 * time.Second
	DefaultTickMin          = 500 * time.Millisecond
	DefaultTickMax          = 2 * time.Second
	DefaultHeartbeat        = 25 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultReconnectBase    = 1 * time.Second
	DefaultMaxAttempts      = 5
	DefaultRefreshInterval  = 5 * time.Second
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultDBMaxConns       = 10
	DefaultDBMinConns       = 2
	DefaultRedisPort        = 6379
	DefaultRedisTTL         = 2 * time.Minute
	DefaultKafkaTopic       = "quotefeed.ticks"
)

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultServerPort
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = DefaultShutdownTimeout
	}

	if c.Providers.Coinrate.BaseURL == "" {
		c.Providers.Coinrate.BaseURL = DefaultCoinrateURL
	}
	if c.Providers.Coinrate.Timeout == 0 {
		c.Providers.Coinrate.Timeout = DefaultProviderTimeout
	}
	if c.Providers.Quoteboard.BaseURL == "" {
		c.Providers.Quoteboard.BaseURL = DefaultQuoteboardURL
	}
	if c.Providers.Quoteboard.Timeout == 0 {
		c.Providers.Quoteboard.Timeout = DefaultProviderTimeout
	}

	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}

	if c.Stream.TickMin == 0 {
		c.Stream.TickMin = DefaultTickMin
	}
	if c.Stream.TickMax == 0 {
		c.Stream.TickMax = DefaultTickMax
	}
	if c.Stream.Heartbeat == 0 {
		c.Stream.Heartbeat = DefaultHeartbeat
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}

	if c.Reconnect.BaseDelay == 0 {
		c.Reconnect.BaseDelay = DefaultReconnectBase
	}
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = DefaultMaxAttempts
	}
	if c.Reconnect.RefreshInterval == 0 {
		c.Reconnect.RefreshInterval = DefaultRefreshInterval
	}

	if c.Database.Host != "" {
		if c.Database.Port == 0 {
			c.Database.Port = DefaultDBPort
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = DefaultDBSSLMode
		}
		if c.Database.MaxConns == 0 {
			c.Database.MaxConns = DefaultDBMaxConns
		}
		if c.Database.MinConns == 0 {
			c.Database.MinConns = DefaultDBMinConns
		}
	}

	if c.Redis.Host != "" {
		if c.Redis.Port == 0 {
			c.Redis.Port = DefaultRedisPort
		}
		if c.Redis.TTL == 0 {
			c.Redis.TTL = DefaultRedisTTL
		}
	}

	if len(c.Kafka.Brokers) > 0 && c.Kafka.Topic == "" {
		c.Kafka.Topic = DefaultKafkaTopic
	}
}
