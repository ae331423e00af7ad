package model

import "fmt"

// SparklineLen is the fixed number of recent prices carried on every tick,
// most-recent-last.
const SparklineLen = 20

// AssetClass identifies the namespace an instrument trades in.
type AssetClass string

const (
	Equity     AssetClass = "equity"
	Index      AssetClass = "index"
	Crypto     AssetClass = "crypto"
	Commodity  AssetClass = "commodity"
	FX         AssetClass = "fx"
	RealEstate AssetClass = "real_estate"
	Bond       AssetClass = "bond"
)

// ParseAssetClass converts a config string into an AssetClass.
func ParseAssetClass(s string) (AssetClass, error) {
	switch AssetClass(s) {
	case Equity, Index, Crypto, Commodity, FX, RealEstate, Bond:
		return AssetClass(s), nil
	}
	return "", fmt.Errorf("unknown asset class %q", s)
}

// Instrument is the immutable reference data for one tradable asset.
// Instruments are declared in configuration and never mutated at runtime.
type Instrument struct {
	ID         string     `json:"id" yaml:"id"`
	Name       string     `json:"name" yaml:"name"`
	AssetClass AssetClass `json:"assetClass" yaml:"asset_class"`
	Exchange   string     `json:"exchange" yaml:"exchange"`
	Currency   string     `json:"currency" yaml:"currency"`
	Timezone   string     `json:"timezone" yaml:"timezone"`
}

// OHLC holds the session open/high/low/close for an instrument.
type OHLC struct {
	Open  float64 `json:"open"`
	High  float64 `json:"high"`
	Low   float64 `json:"low"`
	Close float64 `json:"close"`
}

// MarketTick is one point-in-time valuation of an instrument. Every tick is
// a complete, self-consistent record; a new tick replaces the prior one for
// the same instrument, it is never merged into it.
type MarketTick struct {
	InstrumentID string    `json:"id"`
	Last         float64   `json:"last"`
	ChangeAbs    float64   `json:"changeAbs"`
	ChangePct    float64   `json:"changePct"`
	DayHigh      float64   `json:"dayHigh"`
	DayLow       float64   `json:"dayLow"`
	Volume       float64   `json:"volume"`
	MarketCap    float64   `json:"marketCap,omitempty"`
	Session      string    `json:"session"`
	Sparkline    []float64 `json:"sparkline"`
	OHLC         OHLC      `json:"ohlc"`

	// Source identifies the provider that produced the tick and its
	// position in the instrument's priority list (1 = primary).
	Source         string `json:"source,omitempty"`
	SourcePriority int    `json:"sourcePriority,omitempty"`

	// TS is the capture timestamp in epoch milliseconds. Within one
	// process's cache entry it is monotonically non-decreasing.
	TS int64 `json:"ts"`
}
