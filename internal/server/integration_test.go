package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rickgao/ticker-relay/internal/config"
	"github.com/rickgao/ticker-relay/internal/connection"
	"github.com/rickgao/ticker-relay/internal/hub"
	"github.com/rickgao/ticker-relay/internal/relay"
)

// mockExchange acks every SUBSCRIBE and answers with one ticker frame per stream.
func mockExchange(t *testing.T) (*httptest.Server, <-chan connection.ControlFrame) {
	t.Helper()
	frames := make(chan connection.ControlFrame, 16)
	upgrader := websocket.Upgrader{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var f connection.ControlFrame
			if json.Unmarshal(data, &f) != nil {
				continue
			}
			frames <- f

			conn.WriteMessage(websocket.TextMessage, []byte(fmt.Sprintf(`{"result":null,"id":%d}`, f.ID)))
			for _, stream := range f.Params {
				tick := fmt.Sprintf(`{"stream":%q,"data":{"e":"24hrTicker","c":"100.50","P":"1.25","v":"42.0"}}`, stream)
				conn.WriteMessage(websocket.TextMessage, []byte(tick))
			}
		}
	}))
	t.Cleanup(server.Close)
	return server, frames
}

func readEvent(t *testing.T, ws *websocket.Conn, event string) json.RawMessage {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(3 * time.Second))
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		var f hub.Frame
		if json.Unmarshal(data, &f) == nil && f.Event == event {
			return f.Data
		}
	}
}

func TestEndToEnd(t *testing.T) {
	exchange, frames := mockExchange(t)

	rcfg := relay.DefaultConfig()
	rcfg.URL = "ws" + strings.TrimPrefix(exchange.URL, "http")
	rcfg.ReconnectDelay = 100 * time.Millisecond
	r := relay.New(rcfg, nil)

	h := hub.New(hub.DefaultConfig(), nil)
	if err := r.Initialize(context.Background(), h); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	s := New(config.ServerConfig{WSPath: "/ws"}, r, h, nil, nil)
	front := httptest.NewServer(s.Handler())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		h.Close(ctx)
		r.Stop(ctx)
		front.Close()
	})

	deadline := time.Now().Add(2 * time.Second)
	for r.State() != relay.StateConnected {
		if time.Now().After(deadline) {
			t.Fatalf("upstream never connected, state %s", r.State())
		}
		time.Sleep(10 * time.Millisecond)
	}

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(front.URL, "http")+"/ws?user_id=alice", nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer ws.Close()

	ws.WriteMessage(websocket.TextMessage, []byte(`{"event":"subscribe","data":["btcusdt"]}`))

	select {
	case f := <-frames:
		if f.Method != connection.MethodSubscribe || len(f.Params) != 1 || f.Params[0] != "btcusdt@ticker" {
			t.Errorf("upstream frame = %+v", f)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no SUBSCRIBE reached the exchange")
	}

	var update relay.PriceUpdate
	if err := json.Unmarshal(readEvent(t, ws, relay.EventPriceUpdate), &update); err != nil {
		t.Fatalf("bad price_update: %v", err)
	}
	want := relay.PriceUpdate{Symbol: "BTCUSDT", Price: 100.5, Change: 1.25, Volume: 42}
	if update != want {
		t.Errorf("price_update = %+v, want %+v", update, want)
	}

	resp, err := http.Post(front.URL+"/internal/users/alice/orders", "application/json",
		strings.NewReader(`{"id":"o-1","status":"filled"}`))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("POST status = %d, want 202", resp.StatusCode)
	}

	order := readEvent(t, ws, relay.EventOrderUpdate)
	if string(order) != `{"id":"o-1","status":"filled"}` {
		t.Errorf("order_update data = %s", order)
	}
}
