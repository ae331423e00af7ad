package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tomszi/quotefeed/internal/config"
	"github.com/tomszi/quotefeed/internal/evolve"
	"github.com/tomszi/quotefeed/internal/model"
)

var btc = model.Instrument{ID: "BTC", Name: "Bitcoin", AssetClass: model.Crypto, Currency: "USD"}
var aapl = model.Instrument{ID: "AAPL", Name: "Apple Inc.", AssetClass: model.Equity, Currency: "USD"}

func coinrateCfg(url string) config.ProviderConfig {
	return config.ProviderConfig{BaseURL: url, APIKey: "test-key", Timeout: 5 * time.Second}
}

func TestCoinrateFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q, want Bearer test-key", got)
		}
		if r.URL.Path != "/v1/markets/BTC" {
			t.Errorf("path = %q, want /v1/markets/BTC", r.URL.Path)
		}
		resp := map[string]any{
			"symbol": "BTC",
			"quote": map[string]any{
				"price":          43250.5,
				"change_24h":     1250.5,
				"change_pct_24h": 2.98,
				"high_24h":       43500.0,
				"low_24h":        41800.0,
				"volume_24h":     28500000000.0,
				"market_cap":     845000000000.0,
				"recent_prices":  []float64{42000, 42500, 43250.5},
				"last_updated":   1717243200,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	a := NewCoinrate(coinrateCfg(server.URL))
	res := a.Fetch(context.Background(), btc)

	if !res.OK() {
		t.Fatalf("Fetch failed: %v", res.Failure)
	}
	if res.Tick.Last != 43250.5 {
		t.Errorf("Last = %f, want 43250.5", res.Tick.Last)
	}
	if res.Tick.TS != 1717243200000 {
		t.Errorf("TS = %d, want 1717243200000 (epoch ms)", res.Tick.TS)
	}
	if len(res.Tick.Sparkline) != model.SparklineLen {
		t.Errorf("len(Sparkline) = %d, want %d", len(res.Tick.Sparkline), model.SparklineLen)
	}
	if got := res.Tick.Sparkline[model.SparklineLen-1]; got != 43250.5 {
		t.Errorf("Sparkline tail = %f, want 43250.5", got)
	}
	if res.Tick.OHLC.Close != 43250.5 {
		t.Errorf("OHLC.Close = %f, want 43250.5", res.Tick.OHLC.Close)
	}
}

func TestCoinrateFailureKinds(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind FailureKind
	}{
		{"rate limited", http.StatusTooManyRequests, `{}`, KindRateLimited},
		{"not found", http.StatusNotFound, `{}`, KindNotFound},
		{"server error", http.StatusInternalServerError, `{}`, KindNetwork},
		{"malformed json", http.StatusOK, `{"quote": nonsense`, KindMalformed},
		{"missing price", http.StatusOK, `{"symbol":"BTC","quote":{}}`, KindMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			a := NewCoinrate(coinrateCfg(server.URL))
			res := a.Fetch(context.Background(), btc)

			if res.OK() {
				t.Fatal("Fetch succeeded, want failure")
			}
			if res.Failure.Kind != tt.wantKind {
				t.Errorf("Kind = %q, want %q", res.Failure.Kind, tt.wantKind)
			}
			if res.Failure.Provider != "coinrate" {
				t.Errorf("Provider = %q, want coinrate", res.Failure.Provider)
			}
		})
	}
}

func TestCoinrateNetworkError(t *testing.T) {
	// Closed server: connection refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	a := NewCoinrate(coinrateCfg(server.URL))
	res := a.Fetch(context.Background(), btc)

	if res.OK() {
		t.Fatal("Fetch succeeded against closed server")
	}
	if res.Failure.Kind != KindNetwork {
		t.Errorf("Kind = %q, want network", res.Failure.Kind)
	}
}

func TestQuoteboardFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "AAPL" {
			t.Errorf("symbol = %q, want AAPL", got)
		}
		resp := quoteboardWire{
			Symbol:        "AAPL",
			Last:          189.3,
			Open:          187.0,
			High:          190.1,
			Low:           186.2,
			PreviousClose: 188.0,
			Volume:        51200000,
			Session:       "regular",
			Intraday:      []float64{187.0, 188.4, 189.3},
			TimestampMS:   1717243200123,
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	a := NewQuoteboard(config.ProviderConfig{BaseURL: server.URL, Timeout: 5 * time.Second})
	res := a.Fetch(context.Background(), aapl)

	if !res.OK() {
		t.Fatalf("Fetch failed: %v", res.Failure)
	}
	if res.Tick.Last != 189.3 {
		t.Errorf("Last = %f, want 189.3", res.Tick.Last)
	}
	// Change derives from previous close: 189.3 - 188.0
	if diff := res.Tick.ChangeAbs - 1.3; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("ChangeAbs = %f, want 1.3", res.Tick.ChangeAbs)
	}
	if res.Tick.Session != "regular" {
		t.Errorf("Session = %q, want regular", res.Tick.Session)
	}
	if res.Tick.TS != 1717243200123 {
		t.Errorf("TS = %d, want 1717243200123", res.Tick.TS)
	}
}

func TestQuoteboardEmptyPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	a := NewQuoteboard(config.ProviderConfig{BaseURL: server.URL, Timeout: 5 * time.Second})
	res := a.Fetch(context.Background(), aapl)

	if res.OK() {
		t.Fatal("Fetch succeeded on empty payload")
	}
	if res.Failure.Kind != KindMalformed {
		t.Errorf("Kind = %q, want malformed", res.Failure.Kind)
	}
}

func TestSimulatedFetch(t *testing.T) {
	a := NewSimulated(evolve.NewRandomWalk(evolve.WithSeed(99)))

	first := a.Fetch(context.Background(), btc)
	if !first.OK() {
		t.Fatalf("first Fetch failed: %v", first.Failure)
	}

	second := a.Fetch(context.Background(), btc)
	if !second.OK() {
		t.Fatalf("second Fetch failed: %v", second.Failure)
	}

	if second.Tick.TS <= first.Tick.TS {
		t.Errorf("TS not increasing: %d -> %d", first.Tick.TS, second.Tick.TS)
	}
	if second.Tick.Source != "simulated" {
		t.Errorf("Source = %q, want simulated", second.Tick.Source)
	}
}
