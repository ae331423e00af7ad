// Package provider implements the upstream data source adapters.
//
// Each adapter owns exactly one upstream API's request shape, auth and
// response parsing, and normalizes the response into a model.MarketTick.
// Expected failures (non-2xx, empty payload, missing field) become typed
// Failure results; adapters never crash the caller.
//
// Adapters:
//   - coinrate: crypto prices
//   - quoteboard: equities, indices, FX, commodities
//   - simulated: local synthetic series, no upstream
package provider
