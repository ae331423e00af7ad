// Package snapshot implements the synchronous request/response path: given
// instrument ids, return the freshest available tick per id, cache first,
// router on miss.
package snapshot

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tomszi/quotefeed/internal/cache"
	"github.com/tomszi/quotefeed/internal/model"
)

// Resolver resolves a single instrument through the source router.
type Resolver interface {
	Resolve(ctx context.Context, id string) (model.MarketTick, error)
}

// Fallback serves a last-known tick when every live provider fails. The
// persistence layer's hot cache and archive back this in production.
type Fallback interface {
	Latest(ctx context.Context, id string) (model.MarketTick, error)
}

// Config holds snapshot service settings.
type Config struct {
	Concurrency int           // max parallel resolutions per batch
	Timeout     time.Duration // per-instrument resolution budget
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Concurrency: 16,
		Timeout:     10 * time.Second,
	}
}

// Service serves consistent, freshness-bounded snapshots.
type Service struct {
	cfg      Config
	cache    *cache.Cache
	resolver Resolver
	fallback Fallback
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithFallback sets a last-known-tick source consulted only after the
// resolver has exhausted every provider.
func WithFallback(f Fallback) Option {
	return func(s *Service) {
		s.fallback = f
	}
}

// New creates a snapshot Service.
func New(cfg Config, c *cache.Cache, resolver Resolver, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency < 1 {
		cfg.Concurrency = DefaultConfig().Concurrency
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	s := &Service{
		cfg:      cfg,
		cache:    c,
		resolver: resolver,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot resolves each id concurrently and returns one tick per
// resolvable id, in request order. Unresolvable ids are omitted; a single
// instrument's failure never aborts the batch. Batch latency is bounded by
// the slowest single instrument, not the sum.
func (s *Service) Snapshot(ctx context.Context, ids []string) []model.MarketTick {
	if len(ids) == 0 {
		return nil
	}

	results := make([]*model.MarketTick, len(ids))

	sem := make(chan struct{}, s.cfg.Concurrency)
	var wg sync.WaitGroup

	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			tick, err := s.resolve(ctx, id)
			if err != nil {
				s.logger.Debug("instrument omitted from snapshot",
					"instrument", id,
					"error", err,
				)
				return
			}
			results[i] = &tick
		}(i, id)
	}

	wg.Wait()

	out := make([]model.MarketTick, 0, len(ids))
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}
	return out
}

// resolve serves one id through the freshness cache, falling through to the
// router on miss or staleness. When every provider fails a last-known tick
// from the fallback still counts as a result; fallback ticks are not
// cached so a recovered provider takes over on the next request.
func (s *Service) resolve(ctx context.Context, id string) (model.MarketTick, error) {
	tick, err := s.cache.GetOrFetch(ctx, id, func(ctx context.Context) (model.MarketTick, error) {
		fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
		return s.resolver.Resolve(fetchCtx, id)
	})
	if err == nil || s.fallback == nil {
		return tick, err
	}

	last, lastErr := s.fallback.Latest(ctx, id)
	if lastErr != nil {
		return model.MarketTick{}, err
	}
	s.logger.Debug("serving last-known tick",
		"instrument", id,
		"error", err,
	)
	return last, nil
}
