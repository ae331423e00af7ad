package store

import (
	"context"

	"github.com/tomszi/quotefeed/internal/model"
)

// LastKnown serves the most recent stored tick for an instrument, trying
// the Redis hot cache first and the Postgres archive second. Either
// backend may be nil.
type LastKnown struct {
	latest *LatestCache
	ticks  *TickStore
}

// NewLastKnown creates a last-known-tick source over the configured
// backends.
func NewLastKnown(latest *LatestCache, ticks *TickStore) *LastKnown {
	return &LastKnown{latest: latest, ticks: ticks}
}

// Latest returns the freshest stored tick for id, or ErrNoTick when
// neither backend has one.
func (l *LastKnown) Latest(ctx context.Context, id string) (model.MarketTick, error) {
	if l.latest != nil {
		tick, err := l.latest.Get(ctx, id)
		if err == nil {
			return tick, nil
		}
	}

	if l.ticks != nil {
		ticks, err := l.ticks.LatestTicks(ctx, []string{id})
		if err == nil && len(ticks) > 0 {
			return ticks[0], nil
		}
	}

	return model.MarketTick{}, ErrNoTick
}
