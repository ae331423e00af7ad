package evolve

import (
	"hash/fnv"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/tomszi/quotefeed/internal/model"
)

// Strategy produces the next complete tick for an instrument from the
// previous one. The stream engine treats a real upstream push and a
// synthetic generator identically, so a live feed can be substituted
// without touching the engine.
type Strategy interface {
	Next(inst model.Instrument, prev model.MarketTick) model.MarketTick
}

// Volatility bounds for the random walk, as a fraction of the last price
// per step. Crypto moves wider than equities.
var defaultVolatility = map[model.AssetClass]float64{
	model.Crypto:     0.018,
	model.Equity:     0.006,
	model.Index:      0.004,
	model.Commodity:  0.008,
	model.FX:         0.002,
	model.RealEstate: 0.003,
	model.Bond:       0.0015,
}

// Base prices used when seeding a tick with no upstream data available.
var seedBase = map[model.AssetClass]float64{
	model.Crypto:     40000,
	model.Equity:     180,
	model.Index:      4800,
	model.Commodity:  75,
	model.FX:         1.08,
	model.RealEstate: 95,
	model.Bond:       98.5,
}

// RandomWalk perturbs the previous price by a bounded uniform step and
// recomputes every derived field, so each emitted tick is self-consistent.
type RandomWalk struct {
	volatility map[model.AssetClass]float64

	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// Option configures a RandomWalk.
type Option func(*RandomWalk)

// WithSeed makes the walk deterministic.
func WithSeed(seed uint64) Option {
	return func(w *RandomWalk) {
		w.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(w *RandomWalk) {
		w.now = now
	}
}

// NewRandomWalk creates a walk with the default per-class volatility table.
func NewRandomWalk(opts ...Option) *RandomWalk {
	w := &RandomWalk{
		volatility: defaultVolatility,
		rng:        rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Next implements Strategy.
func (w *RandomWalk) Next(inst model.Instrument, prev model.MarketTick) model.MarketTick {
	vol, ok := w.volatility[inst.AssetClass]
	if !ok {
		vol = 0.005
	}

	w.mu.Lock()
	step := (w.rng.Float64()*2 - 1) * vol
	volumeAdd := w.rng.Float64() * prev.Last * 10
	now := w.now()
	w.mu.Unlock()

	last := prev.Last * (1 + step)
	if last <= 0 {
		last = prev.Last
	}

	open := prev.OHLC.Open
	if open == 0 {
		open = prev.Last
	}

	tick := model.MarketTick{
		InstrumentID: inst.ID,
		Last:         last,
		ChangeAbs:    last - open,
		DayHigh:      max(prev.DayHigh, last),
		DayLow:       prev.DayLow,
		Volume:       prev.Volume + volumeAdd,
		MarketCap:    prev.MarketCap,
		Session:      prev.Session,
		OHLC: model.OHLC{
			Open:  open,
			High:  max(prev.OHLC.High, last),
			Low:   prev.OHLC.Low,
			Close: last,
		},
		Source:         prev.Source,
		SourcePriority: prev.SourcePriority,
		TS:             now.UnixMilli(),
	}
	if tick.DayLow == 0 || last < tick.DayLow {
		tick.DayLow = last
	}
	if tick.OHLC.Low == 0 || last < tick.OHLC.Low {
		tick.OHLC.Low = last
	}
	if open != 0 {
		tick.ChangePct = tick.ChangeAbs / open * 100
	}
	if prev.MarketCap != 0 && prev.Last != 0 {
		tick.MarketCap = prev.MarketCap * last / prev.Last
	}

	tick.Sparkline = appendSparkline(prev.Sparkline, last)

	// Per-instrument timestamps never go backwards.
	if tick.TS <= prev.TS {
		tick.TS = prev.TS + 1
	}

	return tick
}

// Seed produces an initial tick for an instrument when no upstream value is
// available. The base price is jittered from a per-class default so distinct
// instruments do not start identically.
func Seed(inst model.Instrument, now time.Time) model.MarketTick {
	base, ok := seedBase[inst.AssetClass]
	if !ok {
		base = 100
	}

	h := fnv.New64a()
	h.Write([]byte(inst.ID))
	jitter := 0.8 + float64(h.Sum64()%4000)/10000 // 0.8 .. 1.2

	price := base * jitter
	spark := make([]float64, model.SparklineLen)
	for i := range spark {
		spark[i] = price
	}

	return model.MarketTick{
		InstrumentID: inst.ID,
		Last:         price,
		DayHigh:      price,
		DayLow:       price,
		Session:      "regular",
		Sparkline:    spark,
		OHLC:         model.OHLC{Open: price, High: price, Low: price, Close: price},
		Source:       "simulated",
		TS:           now.UnixMilli(),
	}
}

// appendSparkline shifts the window left and appends the newest price,
// keeping the fixed length with most-recent-last ordering.
func appendSparkline(prev []float64, last float64) []float64 {
	out := make([]float64, 0, model.SparklineLen)
	if len(prev) >= model.SparklineLen {
		out = append(out, prev[len(prev)-model.SparklineLen+1:]...)
	} else {
		out = append(out, prev...)
	}
	out = append(out, last)
	for len(out) < model.SparklineLen {
		out = append([]float64{out[0]}, out...)
	}
	return out
}
