// Package syncer refreshes whole instrument families on demand and fans
// the resolved ticks out to the configured sinks: the PostgreSQL tick
// archive, the Redis latest-tick cache, and the Kafka topic. All sinks
// are optional; a syncer with none configured still resolves the family
// and reports the outcome.
package syncer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tomszi/quotefeed/internal/model"
	"github.com/tomszi/quotefeed/internal/registry"
)

// Resolver produces a current tick for one instrument.
type Resolver interface {
	Resolve(ctx context.Context, id string) (model.MarketTick, error)
}

// TickSink archives resolved ticks durably.
type TickSink interface {
	InsertTicks(ctx context.Context, ticks []model.MarketTick) (conflicts int, err error)
}

// LatestSink keeps the most recent tick per instrument.
type LatestSink interface {
	Set(ctx context.Context, tick model.MarketTick) error
}

// Publisher announces resolved ticks to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, ticks []model.MarketTick) error
}

// Config holds sync settings.
type Config struct {
	// Concurrency bounds parallel provider fetches per sync.
	Concurrency int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{Concurrency: 8}
}

// Result summarizes one family sync.
type Result struct {
	Family    string        `json:"family"`
	Requested int           `json:"requested"`
	Resolved  int           `json:"resolved"`
	Failed    int           `json:"failed"`
	Conflicts int           `json:"conflicts"`
	Duration  time.Duration `json:"duration"`
}

// Syncer resolves instrument families and pushes the results to sinks.
type Syncer struct {
	cfg      Config
	reg      *registry.Registry
	resolver Resolver
	ticks    TickSink
	latest   LatestSink
	pub      Publisher
	logger   *slog.Logger
}

// New creates a Syncer. ticks, latest and pub may each be nil.
func New(
	cfg Config,
	reg *registry.Registry,
	resolver Resolver,
	ticks TickSink,
	latest LatestSink,
	pub Publisher,
	logger *slog.Logger,
) *Syncer {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Syncer{
		cfg:      cfg,
		reg:      reg,
		resolver: resolver,
		ticks:    ticks,
		latest:   latest,
		pub:      pub,
		logger:   logger,
	}
}

// Sync refreshes every instrument in the named family. Unknown families
// return registry.ErrUnknownFamily. Individual instrument failures are
// counted, not fatal; sink failures are logged and do not undo the sync.
func (s *Syncer) Sync(ctx context.Context, family string) (Result, error) {
	insts, err := s.reg.Family(family)
	if err != nil {
		return Result{}, err
	}

	start := time.Now()
	s.logger.Info("syncing family", "family", family, "instruments", len(insts))

	resolved := make([]model.MarketTick, len(insts))
	ok := make([]bool, len(insts))

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup
	for i, inst := range insts {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			tick, err := s.resolver.Resolve(ctx, id)
			if err != nil {
				s.logger.Warn("sync resolve failed", "instrument", id, "error", err)
				return
			}
			resolved[i] = tick
			ok[i] = true
		}(i, inst.ID)
	}
	wg.Wait()

	ticks := make([]model.MarketTick, 0, len(insts))
	for i := range insts {
		if ok[i] {
			ticks = append(ticks, resolved[i])
		}
	}

	res := Result{
		Family:    family,
		Requested: len(insts),
		Resolved:  len(ticks),
		Failed:    len(insts) - len(ticks),
	}

	if s.ticks != nil && len(ticks) > 0 {
		conflicts, err := s.ticks.InsertTicks(ctx, ticks)
		if err != nil {
			s.logger.Error("sync archive write failed", "family", family, "error", err)
		}
		res.Conflicts = conflicts
	}

	if s.latest != nil {
		for _, tick := range ticks {
			if err := s.latest.Set(ctx, tick); err != nil {
				s.logger.Warn("sync latest-cache write failed",
					"instrument", tick.InstrumentID, "error", err)
			}
		}
	}

	if s.pub != nil && len(ticks) > 0 {
		if err := s.pub.Publish(ctx, ticks); err != nil {
			s.logger.Error("sync publish failed", "family", family, "error", err)
		}
	}

	res.Duration = time.Since(start)
	s.logger.Info("family synced",
		"family", family,
		"resolved", res.Resolved,
		"failed", res.Failed,
		"duration", res.Duration,
	)
	return res, nil
}
