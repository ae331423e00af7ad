// Package streamclient implements the consumer-side reconnection
// controller for tick streams.
//
// On transport failure it schedules reconnect attempts with exponential
// backoff (delay = base * 2^(attempt-1)) up to a capped attempt count,
// fully tearing down the prior transport before each new dial. A fallback
// poll against the snapshot service runs whenever the stream is not open,
// so data never fully stops flowing. Exhausting the retries is terminal:
// the client enters Degraded and surfaces ErrDegraded, leaving only the
// fallback poll running.
package streamclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomszi/quotefeed/internal/model"
)

// ErrDegraded signals that reconnect attempts are exhausted and only the
// fallback poll remains.
var ErrDegraded = errors.New("stream degraded: reconnect attempts exhausted")

// State is the controller's connection state.
type State int32

const (
	StateConnecting State = iota
	StateOpen
	StateReconnecting
	StateDegraded
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateDegraded:
		return "degraded"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Poller is the snapshot fallback used while the stream is down.
type Poller interface {
	Snapshot(ctx context.Context, ids []string) []model.MarketTick
}

// Callbacks receive stream events. Nil callbacks are skipped.
type Callbacks struct {
	OnTick      func(model.MarketTick)
	OnHeartbeat func(ts int64)
	OnError     func(error)
	OnReconnect func(attempt int)
}

// Config holds reconnection controller settings.
type Config struct {
	URL              string        // stream endpoint, e.g. ws://host/api/v1/stream
	BaseDelay        time.Duration // first backoff delay
	MaxAttempts      int           // reconnect attempts before Degraded
	RefreshInterval  time.Duration // fallback poll period
	HandshakeTimeout time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url string) Config {
	return Config{
		URL:              url,
		BaseDelay:        time.Second,
		MaxAttempts:      5,
		RefreshInterval:  5 * time.Second,
		HandshakeTimeout: 10 * time.Second,
	}
}

// transport is the minimal connection surface, injectable for tests.
type transport interface {
	ReadJSON(v any) error
	Close() error
}

type dialFunc func(ctx context.Context, url string) (transport, error)

// Client is a reconnecting tick stream consumer.
type Client struct {
	cfg    Config
	cb     Callbacks
	poller Poller
	logger *slog.Logger

	// Injectable for tests.
	dial  dialFunc
	sleep func(ctx context.Context, d time.Duration) error

	state atomic.Int32

	mu      sync.Mutex
	current transport

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New creates a reconnection controller. poller may be nil to disable the
// fallback poll.
func New(cfg Config, cb Callbacks, poller Poller, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig(cfg.URL)
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = def.BaseDelay
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = def.RefreshInterval
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = def.HandshakeTimeout
	}

	c := &Client{
		cfg:    cfg,
		cb:     cb,
		poller: poller,
		logger: logger,
		sleep:  sleepCtx,
	}
	c.dial = c.dialWebsocket
	return c
}

// State returns the current connection state.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Connect starts the stream for the given instrument ids. It returns
// immediately; events arrive via callbacks. The client keeps running until
// Close or context cancellation.
func (c *Client) Connect(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return errors.New("at least one instrument id is required")
	}

	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	url := c.cfg.URL + "?ids=" + strings.Join(ids, ",")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.run(runCtx, url)
	}()

	if c.poller != nil {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			c.pollLoop(runCtx, ids)
		}()
	}

	return nil
}

// Close tears the client down. Terminal.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		if c.cancel != nil {
			c.cancel()
		}
		c.closeTransport()
		c.wg.Wait()
		c.state.Store(int32(StateClosed))
	})
	return nil
}

// run drives the connect/read/reconnect cycle.
func (c *Client) run(ctx context.Context, url string) {
	attempt := 0

	for {
		if ctx.Err() != nil {
			return
		}

		c.state.Store(int32(StateConnecting))

		ws, err := c.dial(ctx, url)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.emitError(fmt.Errorf("stream dial: %w", err))
			if !c.scheduleRetry(ctx, &attempt) {
				return
			}
			continue
		}

		c.setTransport(ws)
		c.state.Store(int32(StateOpen))
		attempt = 0 // successful connect resets the counter
		c.logger.Debug("stream connected", "url", c.cfg.URL)

		readErr := c.readLoop(ctx, ws)

		// Full teardown before any new transport is created.
		c.closeTransport()

		if ctx.Err() != nil {
			return
		}
		if readErr != nil {
			c.emitError(fmt.Errorf("stream read: %w", readErr))
		}

		// A dropped transport is paced the same as a failed dial.
		if !c.scheduleRetry(ctx, &attempt) {
			return
		}
	}
}

// scheduleRetry counts one transport failure and sleeps for the backoff
// delay. It reports false when the client should stop: either retries are
// exhausted (terminal Degraded) or the context is done.
func (c *Client) scheduleRetry(ctx context.Context, attempt *int) bool {
	*attempt++
	if *attempt >= c.cfg.MaxAttempts {
		c.degrade()
		return false
	}

	delay := c.backoff(*attempt)
	c.state.Store(int32(StateReconnecting))
	c.logger.Debug("scheduling stream reconnect",
		"attempt", *attempt+1,
		"delay", delay,
	)
	if c.cb.OnReconnect != nil {
		c.cb.OnReconnect(*attempt + 1)
	}
	return c.sleep(ctx, delay) == nil
}

// backoff returns base * 2^(attempt-1).
func (c *Client) backoff(attempt int) time.Duration {
	return c.cfg.BaseDelay << (attempt - 1)
}

// readLoop dispatches events until the transport fails.
func (c *Client) readLoop(ctx context.Context, ws transport) error {
	for {
		var ev wireEvent
		if err := ws.ReadJSON(&ev); err != nil {
			return err
		}

		switch ev.Event {
		case "tick":
			var tick model.MarketTick
			if err := json.Unmarshal(ev.Data, &tick); err != nil {
				c.logger.Warn("malformed tick event", "error", err)
				continue
			}
			if c.cb.OnTick != nil {
				c.cb.OnTick(tick)
			}
		case "heartbeat":
			var hb struct {
				TS int64 `json:"ts"`
			}
			if err := json.Unmarshal(ev.Data, &hb); err != nil {
				continue
			}
			if c.cb.OnHeartbeat != nil {
				c.cb.OnHeartbeat(hb.TS)
			}
		default:
			c.logger.Debug("skipping event type", "type", ev.Event)
		}

		if ctx.Err() != nil {
			return nil
		}
	}
}

// pollLoop runs the snapshot fallback whenever the stream is not open,
// including the terminal Degraded state.
func (c *Client) pollLoop(ctx context.Context, ids []string) {
	ticker := time.NewTicker(c.cfg.RefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.State() == StateOpen {
				continue
			}
			for _, tick := range c.poller.Snapshot(ctx, ids) {
				if c.cb.OnTick != nil {
					c.cb.OnTick(tick)
				}
			}
		}
	}
}

// degrade enters the terminal degraded state and surfaces it.
func (c *Client) degrade() {
	c.state.Store(int32(StateDegraded))
	c.logger.Warn("stream degraded, falling back to snapshot polling",
		"attempts", c.cfg.MaxAttempts,
	)
	c.emitError(ErrDegraded)
}

func (c *Client) emitError(err error) {
	if c.cb.OnError != nil {
		c.cb.OnError(err)
	}
}

func (c *Client) setTransport(ws transport) {
	c.mu.Lock()
	c.current = ws
	c.mu.Unlock()
}

func (c *Client) closeTransport() {
	c.mu.Lock()
	ws := c.current
	c.current = nil
	c.mu.Unlock()

	if ws != nil {
		ws.Close()
	}
}

// dialWebsocket is the production dialer.
func (c *Client) dialWebsocket(ctx context.Context, url string) (transport, error) {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.HandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	return ws, nil
}

// sleepCtx sleeps for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// wireEvent is the stream envelope.
type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
