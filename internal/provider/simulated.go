package provider

import (
	"context"
	"sync"
	"time"

	"github.com/tomszi/quotefeed/internal/evolve"
	"github.com/tomszi/quotefeed/internal/model"
)

// Simulated is a local adapter that evolves a synthetic price series per
// instrument. It serves two roles: a last-resort fallback source in
// instrument priority lists, and a zero-credential provider for dev setups.
type Simulated struct {
	strategy evolve.Strategy

	mu   sync.Mutex
	last map[string]model.MarketTick
}

// NewSimulated creates the simulated adapter.
func NewSimulated(strategy evolve.Strategy) *Simulated {
	return &Simulated{
		strategy: strategy,
		last:     make(map[string]model.MarketTick),
	}
}

func (a *Simulated) Name() string { return "simulated" }

// Fetch implements Adapter. It never fails.
func (a *Simulated) Fetch(ctx context.Context, inst model.Instrument) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	prev, ok := a.last[inst.ID]
	if !ok {
		prev = evolve.Seed(inst, time.Now())
		a.last[inst.ID] = prev
		return success(a.Name(), prev)
	}

	next := a.strategy.Next(inst, prev)
	next.Source = a.Name()
	a.last[inst.ID] = next
	return success(a.Name(), next)
}
