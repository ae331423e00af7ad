// Package router implements the source router: for each instrument it tries
// the configured providers in priority order and falls back on failure.
//
// The sequential fallback trades worst-case latency (sum of adapter
// timeouts) for guaranteed best-effort coverage without speculative
// parallel fan-out.
package router

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tomszi/quotefeed/internal/model"
	"github.com/tomszi/quotefeed/internal/provider"
	"github.com/tomszi/quotefeed/internal/registry"
)

// ErrNotAvailable is returned when every candidate provider failed.
var ErrNotAvailable = errors.New("instrument not available from any provider")

// Router resolves instrument ids to ticks through prioritized adapters.
// Stateless across calls apart from the static priority table.
type Router struct {
	registry *registry.Registry
	adapters map[string]provider.Adapter
	logger   *slog.Logger
}

// New creates a Router over the given adapters, keyed by adapter name.
func New(reg *registry.Registry, adapters []provider.Adapter, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}

	byName := make(map[string]provider.Adapter, len(adapters))
	for _, a := range adapters {
		byName[a.Name()] = a
	}

	return &Router{
		registry: reg,
		adapters: byName,
		logger:   logger,
	}
}

// Resolve tries the instrument's providers in priority order and returns
// the first successful tick, stamped with the provider identity and its
// priority position (1 = primary). All candidates failing yields
// ErrNotAvailable; an unregistered id does too.
func (r *Router) Resolve(ctx context.Context, id string) (model.MarketTick, error) {
	inst, ok := r.registry.Get(id)
	if !ok {
		return model.MarketTick{}, fmt.Errorf("%w: %s", ErrNotAvailable, id)
	}

	names := r.registry.Providers(id)
	for i, name := range names {
		adapter, ok := r.adapters[name]
		if !ok {
			r.logger.Warn("no adapter registered for provider",
				"provider", name,
				"instrument", id,
			)
			continue
		}

		res := adapter.Fetch(ctx, inst)
		if !res.OK() {
			r.logger.Warn("provider fetch failed, trying next",
				"provider", name,
				"instrument", id,
				"kind", res.Failure.Kind,
				"error", res.Failure.Err,
			)
			continue
		}

		tick := res.Tick
		tick.Source = name
		tick.SourcePriority = i + 1
		return tick, nil
	}

	return model.MarketTick{}, fmt.Errorf("%w: %s", ErrNotAvailable, id)
}
