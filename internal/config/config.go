package config

import "time"

// Config is the root configuration for a quotefeed instance.
type Config struct {
	Server      ServerConfig       `yaml:"server"`
	Providers   ProvidersConfig    `yaml:"providers"`
	Cache       CacheConfig        `yaml:"cache"`
	Stream      StreamConfig       `yaml:"stream"`
	Reconnect   ReconnectConfig    `yaml:"reconnect"`
	Database    DBConfig           `yaml:"database"`
	Redis       RedisConfig        `yaml:"redis"`
	Kafka       KafkaConfig        `yaml:"kafka"`
	Instruments []InstrumentConfig `yaml:"instruments"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// ProvidersConfig holds per-upstream API settings.
type ProvidersConfig struct {
	Coinrate   ProviderConfig `yaml:"coinrate"`
	Quoteboard ProviderConfig `yaml:"quoteboard"`
}

// ProviderConfig holds one upstream API's connection settings.
type ProviderConfig struct {
	BaseURL string        `yaml:"base_url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

// CacheConfig holds freshness cache settings for the snapshot path.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// StreamConfig holds tick stream engine settings. Stream ticks bypass the
// freshness cache; TickMin/TickMax bound the randomized emission interval.
type StreamConfig struct {
	TickMin      time.Duration `yaml:"tick_min"`
	TickMax      time.Duration `yaml:"tick_max"`
	Heartbeat    time.Duration `yaml:"heartbeat"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// ReconnectConfig holds stream client reconnection settings.
type ReconnectConfig struct {
	BaseDelay       time.Duration `yaml:"base_delay"`
	MaxAttempts     int           `yaml:"max_attempts"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
}

// DBConfig holds the Postgres connection for persisted snapshots.
// Leave Host empty to run without durable persistence.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RedisConfig holds the latest-tick hot cache settings.
// Leave Host empty to run without Redis.
type RedisConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

// KafkaConfig holds the tick publication settings for the sync path.
// Leave Brokers empty to run without Kafka.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// InstrumentConfig declares one instrument and its provider priority order.
type InstrumentConfig struct {
	ID         string   `yaml:"id"`
	Name       string   `yaml:"name"`
	AssetClass string   `yaml:"asset_class"`
	Exchange   string   `yaml:"exchange"`
	Currency   string   `yaml:"currency"`
	Timezone   string   `yaml:"timezone"`
	Providers  []string `yaml:"providers"`
}
