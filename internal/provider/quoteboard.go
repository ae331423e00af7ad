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

// Quoteboard fetches equity, index, FX and commodity quotes from the
// Quoteboard REST API. Its schema differs from Coinrate: prices come as a
// flat quote object keyed by symbol, change is derived from previous close.
//
// Endpoint: GET {base}/v2/quote?symbol={id}
type Quoteboard struct {
	http *httpClient
}

// NewQuoteboard creates the equities/FX adapter.
func NewQuoteboard(cfg config.ProviderConfig) *Quoteboard {
	return &Quoteboard{
		http: newHTTPClient(cfg.BaseURL, cfg.APIKey, cfg.Timeout),
	}
}

func (a *Quoteboard) Name() string { return "quoteboard" }

// quoteboardWire is the upstream response shape.
type quoteboardWire struct {
	Symbol        string    `json:"symbol"`
	Last          float64   `json:"last"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	PreviousClose float64   `json:"previous_close"`
	Volume        float64   `json:"volume"`
	Session       string    `json:"session"`
	Intraday      []float64 `json:"intraday"`
	TimestampMS   int64     `json:"timestamp_ms"`
}

// Fetch implements Adapter.
func (a *Quoteboard) Fetch(ctx context.Context, inst model.Instrument) Result {
	path := fmt.Sprintf("%s/v2/quote?symbol=%s", a.http.baseURL, url.QueryEscape(inst.ID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return failure(a.Name(), KindNetwork, err)
	}

	var wire quoteboardWire
	if err := a.http.getJSON(req, &wire); err != nil {
		return classify(a.Name(), err)
	}

	if wire.Last <= 0 {
		return failure(a.Name(), KindMalformed,
			fmt.Errorf("missing or invalid last price for %s", inst.ID))
	}

	ts := wire.TimestampMS
	if ts <= 0 {
		ts = time.Now().UnixMilli()
	}

	session := wire.Session
	if session == "" {
		session = "regular"
	}

	prevClose := wire.PreviousClose
	changeAbs := 0.0
	changePct := 0.0
	if prevClose > 0 {
		changeAbs = wire.Last - prevClose
		changePct = changeAbs / prevClose * 100
	}

	return success(a.Name(), model.MarketTick{
		InstrumentID: inst.ID,
		Last:         wire.Last,
		ChangeAbs:    changeAbs,
		ChangePct:    changePct,
		DayHigh:      wire.High,
		DayLow:       wire.Low,
		Volume:       wire.Volume,
		Session:      session,
		Sparkline:    normalizeSparkline(wire.Intraday, wire.Last),
		OHLC: model.OHLC{
			Open:  wire.Open,
			High:  wire.High,
			Low:   wire.Low,
			Close: wire.Last,
		},
		TS: ts,
	})
}
