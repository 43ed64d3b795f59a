// streamtest connects to a running relay as a downstream client and prints
// every event it receives.
// Usage: go run ./cmd/streamtest --url ws://localhost:8080/ws --symbols btcusdt,ethusdt --user 42
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/ticker-relay/internal/hub"
	"github.com/rickgao/ticker-relay/internal/relay"
)

func main() {
	rawURL := flag.String("url", "ws://localhost:8080/ws", "relay socket URL")
	symbols := flag.String("symbols", "btcusdt", "comma-separated symbols to subscribe to")
	user := flag.String("user", "", "user id whose order/balance room to join")
	verbose := flag.Bool("verbose", false, "print full event JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	target, err := socketURL(*rawURL, *user)
	if err != nil {
		logger.Error("invalid url", "url", *rawURL, "error", err)
		os.Exit(1)
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, target, nil)
	if err != nil {
		logger.Error("failed to connect", "url", target, "error", err)
		os.Exit(1)
	}
	defer conn.Close()
	logger.Info("connected", "url", target)

	want := splitSymbols(*symbols)
	if len(want) > 0 {
		frame, _ := json.Marshal(map[string]any{"event": hub.EventSubscribe, "data": want})
		if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
			logger.Error("failed to subscribe", "error", err)
			os.Exit(1)
		}
		logger.Info("subscribed", "symbols", want)
	}

	counts := newCounter()
	go printStats(ctx, counts, logger)

	// Close the socket on shutdown so ReadMessage returns.
	go func() {
		<-ctx.Done()
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		conn.Close()
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				logger.Error("connection lost", "error", err)
			}
			break
		}

		var f hub.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			logger.Warn("unparseable frame", "error", err)
			continue
		}
		counts.add(f.Event)
		printEvent(f, want, *verbose)
	}

	logger.Info("shutdown complete", "events", counts.snapshot())
}

func socketURL(raw, user string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if user != "" {
		q := u.Query()
		q.Set(hub.UserQueryParam, user)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

func splitSymbols(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// printEvent prints one event. Price updates are broadcast to every client,
// so only the requested symbols are shown.
func printEvent(f hub.Frame, symbols []string, verbose bool) {
	if f.Event == relay.EventPriceUpdate {
		var p relay.PriceUpdate
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return
		}
		if !wanted(p.Symbol, symbols) {
			return
		}
		if verbose {
			fmt.Printf("[PRICE] %s\n", f.Data)
			return
		}
		fmt.Printf("[PRICE] %s price=%.8g change=%.2f%% volume=%.8g\n", p.Symbol, p.Price, p.Change, p.Volume)
		return
	}

	tag := strings.ToUpper(strings.TrimSuffix(f.Event, "_update"))
	if verbose {
		var pretty json.RawMessage = f.Data
		out, _ := json.MarshalIndent(pretty, "", "  ")
		fmt.Printf("[%s]\n%s\n", tag, out)
		return
	}
	fmt.Printf("[%s] %s\n", tag, f.Data)
}

func wanted(symbol string, symbols []string) bool {
	for _, s := range symbols {
		if relay.NormalizeSymbol(s) == symbol {
			return true
		}
	}
	return false
}

type counter struct {
	mu     sync.Mutex
	events map[string]int
}

func newCounter() *counter {
	return &counter{events: make(map[string]int)}
}

func (c *counter) add(event string) {
	c.mu.Lock()
	c.events[event]++
	c.mu.Unlock()
}

func (c *counter) snapshot() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]int, len(c.events))
	for k, v := range c.events {
		out[k] = v
	}
	return out
}

func printStats(ctx context.Context, c *counter, logger *slog.Logger) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logger.Info("stats", "events", c.snapshot())
		}
	}
}
