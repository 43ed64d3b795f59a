package relay

import (
	"encoding/json"
	"strconv"

	"github.com/rickgao/ticker-relay/internal/connection"
)

// run drives the upstream state machine until the relay is stopped:
// CONNECTING -> CONNECTED -> CLOSED -> (fixed delay) -> CONNECTING ...
func (r *Relay) run() {
	defer r.wg.Done()

	first := true
	for {
		if !first {
			r.reconnects.Add(1)
		}
		first = false

		client, err := r.connect()
		kicked := false
		if err != nil {
			r.logger.Warn("upstream connect failed",
				"url", r.cfg.URL,
				"error", err,
			)
		} else {
			kicked = r.serve(client)
		}

		if r.ctx.Err() != nil {
			return
		}

		r.setState(StateClosed)
		if kicked {
			r.logger.Info("upstream connection replaced")
			continue
		}

		r.logger.Info("upstream closed, reconnecting",
			"delay", r.cfg.ReconnectDelay,
		)
		if !r.sleep(r.cfg.ReconnectDelay) {
			return
		}
	}
}

// connect closes any existing upstream client, then dials a new one.
func (r *Relay) connect() (connection.Client, error) {
	r.drainKick()

	r.mu.Lock()
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
	r.state = StateConnecting
	r.mu.Unlock()

	client := r.newClient(r.cfg.clientConfig(), r.logger.With("component", "upstream"))
	if err := client.Connect(r.ctx); err != nil {
		client.Close()
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx.Err() != nil {
		client.Close()
		return nil, r.ctx.Err()
	}

	r.drainKick()
	r.client = client
	r.state = StateConnected

	r.logger.Info("upstream connected",
		"url", r.cfg.URL,
		"symbols", r.registry.Len(),
	)

	if r.cfg.ReplayOnReconnect {
		r.resubscribeLocked()
	}

	return client, nil
}

// serve pumps frames from client until it fails, the relay stops, or a
// reconnect is requested. Returns true for a requested reconnect.
func (r *Relay) serve(client connection.Client) bool {
	for {
		select {
		case <-r.ctx.Done():
			return false

		case <-r.kick:
			return true

		case err := <-client.Errors():
			r.logger.Warn("upstream connection error", "error", err)
			return false

		case msg := <-client.Messages():
			r.handleFrame(msg.Data)
		}
	}
}

// handleFrame converts one upstream frame into a price_update broadcast.
// Anything that is not a ticker frame for a wanted symbol is dropped.
func (r *Relay) handleFrame(data []byte) {
	r.framesReceived.Add(1)

	var env connection.StreamEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		r.framesDiscarded.Add(1)
		r.logger.Debug("discarding malformed upstream frame", "error", err)
		return
	}
	if env.Stream == "" || len(env.Data) == 0 || string(env.Data) == "null" {
		// Control acks like {"result":null,"id":3} land here.
		r.framesDiscarded.Add(1)
		return
	}

	symbol, ok := connection.SymbolFromStream(env.Stream, r.cfg.StreamSuffix)
	if !ok {
		r.framesDiscarded.Add(1)
		r.logger.Debug("discarding frame for unknown stream", "stream", env.Stream)
		return
	}

	r.mu.Lock()
	wanted := r.registry.Has(symbol)
	hub := r.hub
	r.mu.Unlock()

	if !wanted || hub == nil {
		r.updatesFiltered.Add(1)
		return
	}

	var tick connection.TickerData
	if err := json.Unmarshal(env.Data, &tick); err != nil {
		r.framesDiscarded.Add(1)
		r.logger.Debug("discarding malformed ticker payload",
			"symbol", symbol,
			"error", err,
		)
		return
	}

	update := PriceUpdate{
		Symbol: symbol,
		Price:  r.parseFloat(symbol, "c", tick.LastPrice),
		Change: r.parseFloat(symbol, "P", tick.PercentChange),
		Volume: r.parseFloat(symbol, "v", tick.Volume),
	}

	// Broadcast to everyone; clients filter by symbol themselves.
	hub.Broadcast(EventPriceUpdate, update)
	r.pricesForwarded.Add(1)
}

// parseFloat coerces a numeric string, yielding 0 for unparseable input.
func (r *Relay) parseFloat(symbol, field, s string) float64 {
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.logger.Debug("non-numeric ticker field",
			"symbol", symbol,
			"field", field,
			"value", s,
		)
		return 0
	}
	return v
}
