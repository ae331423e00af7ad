package config

import (
	"errors"
	"fmt"

	"github.com/tomszi/quotefeed/internal/model"
)

// Known provider names usable in instrument priority lists. The simulated
// provider serves every asset class and needs no upstream credentials.
var knownProviders = map[string]struct{}{
	"coinrate":   {},
	"quoteboard": {},
	"simulated":  {},
}

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Stream.TickMin <= 0 {
		return errors.New("stream.tick_min must be > 0")
	}
	if c.Stream.TickMax < c.Stream.TickMin {
		return fmt.Errorf("stream.tick_max (%s) must be >= stream.tick_min (%s)",
			c.Stream.TickMax, c.Stream.TickMin)
	}
	if c.Stream.Heartbeat <= 0 {
		return errors.New("stream.heartbeat must be > 0")
	}

	if c.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be > 0")
	}

	if c.Reconnect.MaxAttempts < 1 {
		return errors.New("reconnect.max_attempts must be >= 1")
	}
	if c.Reconnect.BaseDelay <= 0 {
		return errors.New("reconnect.base_delay must be > 0")
	}

	if c.Database.Host != "" {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
	}

	if len(c.Instruments) == 0 {
		return errors.New("at least one instrument must be configured")
	}

	seen := make(map[string]struct{}, len(c.Instruments))
	for i, inst := range c.Instruments {
		if inst.ID == "" {
			return fmt.Errorf("instruments[%d].id is required", i)
		}
		if _, dup := seen[inst.ID]; dup {
			return fmt.Errorf("duplicate instrument id %q", inst.ID)
		}
		seen[inst.ID] = struct{}{}

		if _, err := model.ParseAssetClass(inst.AssetClass); err != nil {
			return fmt.Errorf("instruments[%d] (%s): %w", i, inst.ID, err)
		}
		if len(inst.Providers) == 0 {
			return fmt.Errorf("instruments[%d] (%s): at least one provider is required", i, inst.ID)
		}
		for _, p := range inst.Providers {
			if _, ok := knownProviders[p]; !ok {
				return fmt.Errorf("instruments[%d] (%s): unknown provider %q", i, inst.ID, p)
			}
		}
	}

	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
