package stream

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tomszi/quotefeed/internal/model"
	"github.com/tomszi/quotefeed/internal/registry"
)

// Seeder provides the initial tick set for a new connection. The snapshot
// service satisfies this in production.
type Seeder interface {
	Snapshot(ctx context.Context, ids []string) []model.MarketTick
}

// Strategy produces the next tick from the previous one. Matches
// evolve.Strategy; redeclared here so the engine's contract is identical
// whether ticks come from a synthetic generator or a live feed.
type Strategy interface {
	Next(inst model.Instrument, prev model.MarketTick) model.MarketTick
}

// Config holds tick stream engine settings.
type Config struct {
	TickMin      time.Duration // lower bound of the randomized tick interval
	TickMax      time.Duration // upper bound
	Heartbeat    time.Duration // fixed heartbeat period
	WriteTimeout time.Duration // per-frame write deadline
	SeedTimeout  time.Duration // budget for the initial snapshot burst
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		TickMin:      500 * time.Millisecond,
		TickMax:      2 * time.Second,
		Heartbeat:    25 * time.Second,
		WriteTimeout: 5 * time.Second,
		SeedTimeout:  5 * time.Second,
	}
}

// Engine maintains a long-lived push channel per client connection. Each
// connection gets an initial full tick for every subscribed instrument,
// then incremental ticks at a randomized interval for a randomly chosen
// instrument, plus periodic heartbeats.
type Engine struct {
	cfg      Config
	registry *registry.Registry
	seeder   Seeder
	strategy Strategy
	upgrader websocket.Upgrader
	logger   *slog.Logger

	active atomic.Int32
}

// NewEngine creates a tick stream engine.
func NewEngine(cfg Config, reg *registry.Registry, seeder Seeder, strategy Strategy, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.TickMin <= 0 {
		cfg.TickMin = def.TickMin
	}
	if cfg.TickMax < cfg.TickMin {
		cfg.TickMax = def.TickMax
	}
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = def.Heartbeat
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.SeedTimeout <= 0 {
		cfg.SeedTimeout = def.SeedTimeout
	}

	return &Engine{
		cfg:      cfg,
		registry: reg,
		seeder:   seeder,
		strategy: strategy,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger,
	}
}

// ActiveConns returns the number of open stream connections.
func (e *Engine) ActiveConns() int {
	return int(e.active.Load())
}

// Handle upgrades an HTTP request to a stream connection and serves it
// until the client disconnects. Subscriptions are validated strictly
// before the upgrade: any unknown id fails the whole connection attempt.
func (e *Engine) Handle(c *gin.Context) {
	ids, err := parseIDs(c.Query("ids"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	if err := e.registry.Validate(ids); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
		return
	}

	ws, err := e.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		e.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	conn := e.newConn(ws, ids)

	e.active.Add(1)
	defer e.active.Add(-1)

	conn.run(c.Request.Context())
}

// parseIDs splits and trims a comma-separated id list.
func parseIDs(raw string) ([]string, error) {
	ids := splitIDs(raw)
	if len(ids) == 0 {
		return nil, errors.New("ids is required")
	}
	return ids, nil
}
