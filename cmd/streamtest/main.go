// streamtest connects to a quotefeed tick stream and prints events to the
// console. It exercises the reconnection controller end to end, including
// the snapshot fallback poll while the stream is down.
//
// Usage: go run ./cmd/streamtest -url ws://localhost:8080/api/v1/stream -ids BTC,AAPL
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tomszi/quotefeed/internal/model"
	"github.com/tomszi/quotefeed/internal/streamclient"
)

func main() {
	streamURL := flag.String("url", "ws://localhost:8080/api/v1/stream", "stream endpoint")
	snapshotURL := flag.String("snapshot-url", "http://localhost:8080/api/v1/snapshot", "snapshot endpoint for the fallback poll")
	idList := flag.String("ids", "BTC,ETH,AAPL", "comma-separated instrument ids")
	verbose := flag.Bool("verbose", false, "print full tick JSON")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ids := strings.Split(*idList, ",")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	printTick := func(tick model.MarketTick) {
		if *verbose {
			data, _ := json.Marshal(tick)
			fmt.Println(string(data))
			return
		}
		fmt.Printf("%s %s last=%.4f chg=%+.2f%% src=%s ts=%d\n",
			time.Now().Format("15:04:05.000"),
			tick.InstrumentID,
			tick.Last,
			tick.ChangePct,
			tick.Source,
			tick.TS,
		)
	}

	client := streamclient.New(
		streamclient.DefaultConfig(*streamURL),
		streamclient.Callbacks{
			OnTick: printTick,
			OnHeartbeat: func(ts int64) {
				logger.Debug("heartbeat", "ts", ts)
			},
			OnError: func(err error) {
				logger.Warn("stream error", "error", err)
			},
			OnReconnect: func(attempt int) {
				logger.Info("reconnecting", "attempt", attempt)
			},
		},
		&httpPoller{url: *snapshotURL},
		logger,
	)

	if err := client.Connect(ctx, ids); err != nil {
		logger.Error("failed to start stream client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	logger.Info("streaming", "url", *streamURL, "ids", ids)
	<-ctx.Done()
}

// httpPoller is the fallback poll against the snapshot endpoint.
type httpPoller struct {
	url string
}

func (p *httpPoller) Snapshot(ctx context.Context, ids []string) []model.MarketTick {
	url := p.url + "?ids=" + strings.Join(ids, ",")
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}

	var body struct {
		Data []model.MarketTick `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil
	}
	return body.Data
}
