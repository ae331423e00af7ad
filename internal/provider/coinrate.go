package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/tomszi/quotefeed/internal/config"
	"github.com/tomszi/quotefeed/internal/model"
)

// Coinrate fetches crypto valuations from the Coinrate REST API.
//
// Endpoint: GET {base}/v1/markets/{id}?convert={currency}
type Coinrate struct {
	http *httpClient
}

// NewCoinrate creates the crypto adapter.
func NewCoinrate(cfg config.ProviderConfig) *Coinrate {
	return &Coinrate{
		http: newHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout),
	}
}

func (a *Coinrate) Name() string { return "coinrate" }

// coinrateWire is the upstream response shape.
type coinrateWire struct {
	Symbol string `json:"symbol"`
	Quote  struct {
		Price            float64   `json:"price"`
		Change24h        float64   `json:"change_24h"`
		ChangePct24h     float64   `json:"change_pct_24h"`
		High24h          float64   `json:"high_24h"`
		Low24h           float64   `json:"low_24h"`
		Volume24h        float64   `json:"volume_24h"`
		MarketCap        float64   `json:"market_cap"`
		RecentPrices     []float64 `json:"recent_prices"`
		LastUpdatedEpoch int64     `json:"last_updated"`
	} `json:"quote"`
}

// Fetch implements Adapter.
func (a *Coinrate) Fetch(ctx context.Context, inst model.Instrument) Result {
	path := fmt.Sprintf("%s/v1/markets/%s?convert=%s",
		a.http.baseURL, url.PathEscape(inst.ID), url.QueryEscape(inst.Currency))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return failure(a.Name(), KindNetwork, err)
	}

	var wire coinrateWire
	if err := a.http.getJSON(req, &wire); err != nil {
		return classify(a.Name(), err)
	}

	if wire.Quote.Price <= 0 {
		return failure(a.Name(), KindMalformed,
			fmt.Errorf("missing or invalid price for %s", inst.ID))
	}

	ts := wire.Quote.LastUpdatedEpoch * 1000
	if ts <= 0 {
		ts = time.Now().UnixMilli()
	}

	open := wire.Quote.Price - wire.Quote.Change24h

	return success(a.Name(), model.MarketTick{
		InstrumentID: inst.ID,
		Last:         wire.Quote.Price,
		ChangeAbs:    wire.Quote.Change24h,
		ChangePct:    wire.Quote.ChangePct24h,
		DayHigh:      wire.Quote.High24h,
		DayLow:       wire.Quote.Low24h,
		Volume:       wire.Quote.Volume24h,
		MarketCap:    wire.Quote.MarketCap,
		Session:      "24h",
		Sparkline:    normalizeSparkline(wire.Quote.RecentPrices, wire.Quote.Price),
		OHLC: model.OHLC{
			Open:  open,
			High:  wire.Quote.High24h,
			Low:   wire.Quote.Low24h,
			Close: wire.Quote.Price,
		},
		TS: ts,
	})
}

// normalizeSparkline pads or trims upstream price history to the fixed
// sparkline length, most-recent-last.
func normalizeSparkline(prices []float64, last float64) []float64 {
	out := make([]float64, 0, model.SparklineLen)
	if len(prices) > model.SparklineLen {
		prices = prices[len(prices)-model.SparklineLen:]
	}
	out = append(out, prices...)
	if len(out) == 0 {
		out = append(out, last)
	}
	for len(out) < model.SparklineLen {
		out = append([]float64{out[0]}, out...)
	}
	return out
}
