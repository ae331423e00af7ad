package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tomszi/quotefeed/internal/config"
	"github.com/tomszi/quotefeed/internal/evolve"
	"github.com/tomszi/quotefeed/internal/model"
	"github.com/tomszi/quotefeed/internal/registry"
)

// fakeSeeder serves fixed base ticks.
type fakeSeeder struct {
	ticks map[string]model.MarketTick
}

func (f *fakeSeeder) Snapshot(ctx context.Context, ids []string) []model.MarketTick {
	out := make([]model.MarketTick, 0, len(ids))
	for _, id := range ids {
		if tick, ok := f.ticks[id]; ok {
			out = append(out, tick)
		}
	}
	return out
}

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New([]config.InstrumentConfig{
		{ID: "BTC", AssetClass: "crypto", Currency: "USD", Providers: []string{"simulated"}},
		{ID: "AAPL", AssetClass: "equity", Currency: "USD", Providers: []string{"simulated"}},
	})
	if err != nil {
		t.Fatalf("registry.New failed: %v", err)
	}
	return reg
}

func newTestServer(t *testing.T, cfg Config) (*Engine, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	seeder := &fakeSeeder{ticks: map[string]model.MarketTick{
		"BTC":  seedTick("BTC", 43000),
		"AAPL": seedTick("AAPL", 189),
	}}

	e := NewEngine(cfg, testRegistry(t), seeder, evolve.NewRandomWalk(evolve.WithSeed(5)), nil)

	r := gin.New()
	r.GET("/stream", e.Handle)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return e, srv
}

func seedTick(id string, price float64) model.MarketTick {
	spark := make([]float64, model.SparklineLen)
	for i := range spark {
		spark[i] = price
	}
	return model.MarketTick{
		InstrumentID: id,
		Last:         price,
		DayHigh:      price,
		DayLow:       price,
		Sparkline:    spark,
		OHLC:         model.OHLC{Open: price, High: price, Low: price, Close: price},
		TS:           time.Now().UnixMilli(),
	}
}

func wsURL(srv *httptest.Server, ids string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream?ids=" + ids
}

type wireEvent struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func readEvent(t *testing.T, ws *websocket.Conn) wireEvent {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	var ev wireEvent
	if err := ws.ReadJSON(&ev); err != nil {
		t.Fatalf("ReadJSON failed: %v", err)
	}
	return ev
}

func readTick(t *testing.T, ws *websocket.Conn) model.MarketTick {
	t.Helper()
	for {
		ev := readEvent(t, ws)
		if ev.Event == EventHeartbeat {
			continue
		}
		if ev.Event != EventTick {
			t.Fatalf("event = %q, want tick", ev.Event)
		}
		var tick model.MarketTick
		if err := json.Unmarshal(ev.Data, &tick); err != nil {
			t.Fatalf("unmarshal tick: %v", err)
		}
		return tick
	}
}

func TestRejectsUnknownID(t *testing.T) {
	_, srv := newTestServer(t, DefaultConfig())

	resp, err := http.Get(srv.URL + "/stream?ids=BTC,DOGE")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	// One bad id fails the whole connection attempt.
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRejectsEmptyIDs(t *testing.T) {
	_, srv := newTestServer(t, DefaultConfig())

	resp, err := http.Get(srv.URL + "/stream?ids=")
	if err != nil {
		t.Fatalf("GET failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestInitialBurstBeforeRandomTicks(t *testing.T) {
	_, srv := newTestServer(t, DefaultConfig())

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "BTC,AAPL"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer ws.Close()

	// The first two ticks cover both subscribed instruments, before any
	// randomized single-instrument tick.
	seen := map[string]bool{}
	for i := 0; i < 2; i++ {
		tick := readTick(t, ws)
		if seen[tick.InstrumentID] {
			t.Fatalf("instrument %s repeated within initial burst", tick.InstrumentID)
		}
		seen[tick.InstrumentID] = true
	}
	if !seen["BTC"] || !seen["AAPL"] {
		t.Errorf("initial burst covered %v, want BTC and AAPL", seen)
	}
}

func TestHeartbeat(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Heartbeat = 50 * time.Millisecond
	cfg.TickMin = 10 * time.Second // keep random ticks out of the way
	cfg.TickMax = 20 * time.Second
	_, srv := newTestServer(t, cfg)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "BTC"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer ws.Close()

	readEvent(t, ws) // initial tick

	ev := readEvent(t, ws)
	if ev.Event != EventHeartbeat {
		t.Fatalf("event = %q, want heartbeat", ev.Event)
	}
	var hb Heartbeat
	if err := json.Unmarshal(ev.Data, &hb); err != nil {
		t.Fatalf("unmarshal heartbeat: %v", err)
	}
	if hb.TS == 0 {
		t.Error("heartbeat TS = 0")
	}
}

func TestRandomTicksAreCompleteAndMonotonic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickMin = 5 * time.Millisecond
	cfg.TickMax = 15 * time.Millisecond
	_, srv := newTestServer(t, cfg)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "BTC,AAPL"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer ws.Close()

	lastTS := map[string]int64{}
	for i := 0; i < 20; i++ {
		tick := readTick(t, ws)

		if tick.InstrumentID != "BTC" && tick.InstrumentID != "AAPL" {
			t.Fatalf("unexpected instrument %q", tick.InstrumentID)
		}
		// Every emission is a complete record, not a delta.
		if tick.Last <= 0 {
			t.Errorf("tick %d: Last = %f", i, tick.Last)
		}
		if len(tick.Sparkline) != model.SparklineLen {
			t.Errorf("tick %d: len(Sparkline) = %d, want %d", i, len(tick.Sparkline), model.SparklineLen)
		}
		if tick.OHLC.Close != tick.Last {
			t.Errorf("tick %d: OHLC.Close = %f, want %f", i, tick.OHLC.Close, tick.Last)
		}
		if prev, ok := lastTS[tick.InstrumentID]; ok && tick.TS < prev {
			t.Errorf("tick %d: %s TS regressed %d -> %d", i, tick.InstrumentID, prev, tick.TS)
		}
		lastTS[tick.InstrumentID] = tick.TS
	}
}

func TestDisconnectTearsDownConnection(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickMin = 5 * time.Millisecond
	cfg.TickMax = 15 * time.Millisecond
	cfg.Heartbeat = 20 * time.Millisecond
	e, srv := newTestServer(t, cfg)

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "BTC"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	readEvent(t, ws) // initial tick

	if got := e.ActiveConns(); got != 1 {
		t.Fatalf("ActiveConns = %d, want 1", got)
	}

	ws.Close()

	// Teardown must cancel all per-connection timers; the connection count
	// drains well within 2x the heartbeat interval.
	deadline := time.Now().Add(2 * time.Second)
	for e.ActiveConns() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection did not tear down after client close")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestConnectionsAreIsolated(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TickMin = 5 * time.Millisecond
	cfg.TickMax = 15 * time.Millisecond
	_, srv := newTestServer(t, cfg)

	first, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "BTC"), nil)
	if err != nil {
		t.Fatalf("Dial first failed: %v", err)
	}
	second, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "AAPL"), nil)
	if err != nil {
		t.Fatalf("Dial second failed: %v", err)
	}
	defer second.Close()

	readEvent(t, first)
	readEvent(t, second)

	// Killing one connection must not disturb the other.
	first.Close()

	for i := 0; i < 5; i++ {
		tick := readTick(t, second)
		if tick.InstrumentID != "AAPL" {
			t.Fatalf("second conn got tick for %q", tick.InstrumentID)
		}
	}
}
