package stream

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/tomszi/quotefeed/internal/evolve"
	"github.com/tomszi/quotefeed/internal/model"
)

// conn holds one subscription's state: the instrument set, the last tick
// per instrument (the base for the next evolution step), and lifecycle
// coordination. Created on stream open, destroyed on disconnect.
type conn struct {
	engine *Engine

	id       uuid.UUID
	ws       *websocket.Conn
	insts    []model.Instrument
	last     map[string]model.MarketTick
	openedAt time.Time

	state atomic.Int32

	writeMu   sync.Mutex
	done      chan struct{}
	closeOnce sync.Once
}

func (e *Engine) newConn(ws *websocket.Conn, ids []string) *conn {
	insts := make([]model.Instrument, 0, len(ids))
	for _, id := range ids {
		inst, _ := e.registry.Get(id) // ids validated before upgrade
		insts = append(insts, inst)
	}

	return &conn{
		engine:   e,
		id:       uuid.New(),
		ws:       ws,
		insts:    insts,
		last:     make(map[string]model.MarketTick, len(insts)),
		openedAt: time.Now(),
		done:     make(chan struct{}),
	}
}

// run drives the connection state machine: Connecting → Open on the initial
// burst, Open → Open on tick/heartbeat emission, Open → Closed on client
// disconnect or write failure. Closed is terminal; every timer tied to the
// connection is cancelled before run returns.
func (c *conn) run(ctx context.Context) {
	logger := c.engine.logger.With("conn_id", c.id)
	logger.Debug("stream connection opened", "instruments", len(c.insts))

	// Detect client disconnect. The read loop also drains control frames.
	go c.readLoop()

	c.state.Store(int32(stateConnecting))

	if !c.initialBurst(ctx) {
		c.close()
		logger.Debug("stream connection closed during initial burst")
		return
	}
	c.state.Store(int32(stateOpen))

	rng := rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	tickTimer := time.NewTimer(c.nextInterval(rng))
	heartbeat := time.NewTicker(c.engine.cfg.Heartbeat)
	defer func() {
		tickTimer.Stop()
		heartbeat.Stop()
		c.close()
		c.state.Store(int32(stateClosed))
		logger.Debug("stream connection closed",
			"duration", time.Since(c.openedAt),
		)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-tickTimer.C:
			if !c.emitRandomTick(rng) {
				return
			}
			tickTimer.Reset(c.nextInterval(rng))
		case <-heartbeat.C:
			if !c.send(Event{Event: EventHeartbeat, Data: Heartbeat{TS: time.Now().UnixMilli()}}) {
				return
			}
		}
	}
}

// initialBurst emits one complete tick for every subscribed instrument
// before any randomized tick. Instruments the seeder cannot resolve fall
// back to a synthetic seed so the burst is always complete.
func (c *conn) initialBurst(ctx context.Context) bool {
	seedCtx, cancel := context.WithTimeout(ctx, c.engine.cfg.SeedTimeout)
	defer cancel()

	ids := make([]string, 0, len(c.insts))
	for _, inst := range c.insts {
		ids = append(ids, inst.ID)
	}

	seeded := make(map[string]model.MarketTick)
	if c.engine.seeder != nil {
		for _, tick := range c.engine.seeder.Snapshot(seedCtx, ids) {
			seeded[tick.InstrumentID] = tick
		}
	}

	for _, inst := range c.insts {
		tick, ok := seeded[inst.ID]
		if !ok {
			tick = evolve.Seed(inst, time.Now())
		}
		if !c.send(Event{Event: EventTick, Data: tick}) {
			return false
		}
		c.last[inst.ID] = tick
	}
	return true
}

// emitRandomTick evolves and emits a tick for one randomly chosen
// subscribed instrument.
func (c *conn) emitRandomTick(rng *rand.Rand) bool {
	inst := c.insts[rng.IntN(len(c.insts))]

	next := c.engine.strategy.Next(inst, c.last[inst.ID])
	if !c.send(Event{Event: EventTick, Data: next}) {
		return false
	}
	c.last[inst.ID] = next
	return true
}

// nextInterval draws a randomized delay within [TickMin, TickMax].
func (c *conn) nextInterval(rng *rand.Rand) time.Duration {
	span := c.engine.cfg.TickMax - c.engine.cfg.TickMin
	if span <= 0 {
		return c.engine.cfg.TickMin
	}
	return c.engine.cfg.TickMin + time.Duration(rng.Int64N(int64(span)))
}

// send writes one event frame. Returns false once the connection is dead.
func (c *conn) send(ev Event) bool {
	select {
	case <-c.done:
		return false
	default:
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.ws.SetWriteDeadline(time.Now().Add(c.engine.cfg.WriteTimeout))
	if err := c.ws.WriteJSON(ev); err != nil {
		c.close()
		return false
	}
	return true
}

// readLoop consumes inbound frames until the client disconnects, then
// signals teardown. The stream is server-push only; client payloads are
// discarded.
func (c *conn) readLoop() {
	for {
		if _, _, err := c.ws.ReadMessage(); err != nil {
			c.close()
			return
		}
	}
}

// close tears the connection down exactly once, synchronously with the
// disconnect signal.
func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.ws.Close()
	})
}

// splitIDs splits a comma-separated id list, trimming whitespace and
// dropping empties.
func splitIDs(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
