// Package model defines the canonical data types shared across the engine.
//
// Type categories:
//   - Reference data: Instrument, AssetClass (config-time, immutable)
//   - Market data: MarketTick, OHLC (produced per fetch or stream tick)
package model
