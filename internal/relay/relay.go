package relay

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rickgao/ticker-relay/internal/connection"
)

// ClientFactory creates upstream clients. Overridable for tests.
type ClientFactory func(cfg connection.ClientConfig, logger *slog.Logger) connection.Client

// Option configures a Relay.
type Option func(*Relay)

// WithClientFactory replaces the upstream client constructor.
func WithClientFactory(f ClientFactory) Option {
	return func(r *Relay) {
		r.newClient = f
	}
}

// Relay bridges the upstream ticker stream to the downstream hub.
type Relay struct {
	cfg       Config
	logger    *slog.Logger
	newClient ClientFactory

	// mu guards the registry, hub, client and the recompute+send sequence.
	mu       sync.Mutex
	registry *Registry
	hub      Hub
	client   connection.Client
	state    State
	stopped  bool

	nextID atomic.Int64
	kick   chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	framesReceived  atomic.Int64
	framesDiscarded atomic.Int64
	updatesFiltered atomic.Int64
	pricesForwarded atomic.Int64
	subscribeFrames atomic.Int64
	reconnects      atomic.Int64
}

// New creates a Feed Relay. It does nothing until Initialize is called.
func New(cfg Config, logger *slog.Logger, opts ...Option) *Relay {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.StreamSuffix == "" {
		cfg.StreamSuffix = DefaultConfig().StreamSuffix
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = DefaultConfig().ReconnectDelay
	}

	r := &Relay{
		cfg:       cfg,
		logger:    logger,
		newClient: connection.NewClient,
		registry:  NewRegistry(),
		state:     StateDisconnected,
		kick:      make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Initialize attaches the downstream hub and starts the upstream connection.
// Calling it again with the same hub replaces the upstream connection.
// A stopped relay cannot be initialized again.
func (r *Relay) Initialize(ctx context.Context, hub Hub) error {
	if hub == nil {
		return ErrNilHub
	}

	r.mu.Lock()
	if r.stopped {
		r.mu.Unlock()
		return ErrStopped
	}
	if r.hub != nil {
		same := r.hub == hub
		r.mu.Unlock()
		if !same {
			return ErrAlreadyInitialized
		}
		r.Reconnect()
		return nil
	}
	r.hub = hub
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.mu.Unlock()

	hub.SetHandler(r)

	r.wg.Add(1)
	go r.run()

	r.logger.Info("feed relay initialized",
		"url", r.cfg.URL,
		"reconnect_delay", r.cfg.ReconnectDelay,
		"replay_on_reconnect", r.cfg.ReplayOnReconnect,
	)
	return nil
}

// Reconnect closes the current upstream connection and dials a new one
// immediately, cutting any pending reconnect delay short.
func (r *Relay) Reconnect() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Stop closes the upstream connection and waits for background work to finish.
func (r *Relay) Stop(ctx context.Context) error {
	r.logger.Info("stopping feed relay")

	r.mu.Lock()
	r.stopped = true
	cancel := r.cancel
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("feed relay stop timed out")
	}

	r.mu.Lock()
	if r.client != nil {
		r.client.Close()
		r.client = nil
	}
	r.state = StateDisconnected
	r.mu.Unlock()

	r.logger.Info("feed relay stopped")
	return nil
}

// OnClientSubscribe adds connID to each symbol's interest set and re-issues
// the upstream subscription if the symbol set grew.
func (r *Relay) OnClientSubscribe(connID string, symbols []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registry.Add(connID, symbols) {
		r.resubscribeLocked()
	}

	r.logger.Debug("client subscribed",
		"conn", connID,
		"symbols", symbols,
		"active_symbols", r.registry.Len(),
	)
}

// OnClientUnsubscribe removes connID from each symbol's interest set and
// re-issues the upstream subscription if any symbol was pruned.
func (r *Relay) OnClientUnsubscribe(connID string, symbols []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registry.Remove(connID, symbols) {
		r.resubscribeLocked()
	}

	r.logger.Debug("client unsubscribed",
		"conn", connID,
		"symbols", symbols,
		"active_symbols", r.registry.Len(),
	)
}

// OnClientDisconnect removes connID from every symbol.
func (r *Relay) OnClientDisconnect(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.registry.RemoveConn(connID) {
		r.resubscribeLocked()
	}

	r.logger.Debug("client disconnected",
		"conn", connID,
		"active_symbols", r.registry.Len(),
	)
}

// PushOrderUpdate sends payload to every connection of userID. Fire-and-forget.
func (r *Relay) PushOrderUpdate(userID string, payload any) {
	r.push(userID, EventOrderUpdate, payload)
}

// PushBalanceUpdate sends payload to every connection of userID. Fire-and-forget.
func (r *Relay) PushBalanceUpdate(userID string, payload any) {
	r.push(userID, EventBalanceUpdate, payload)
}

func (r *Relay) push(userID, event string, payload any) {
	if userID == "" {
		return
	}

	r.mu.Lock()
	hub := r.hub
	r.mu.Unlock()

	if hub == nil {
		r.logger.Debug("push before initialize, dropping", "event", event, "user", userID)
		return
	}
	hub.EmitToRoom(userID, event, payload)
}

// State returns the current upstream connection state.
func (r *Relay) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Symbols returns the symbols currently requested upstream.
func (r *Relay) Symbols() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.Symbols()
}

// Subscriptions returns a copy of the interest registry.
func (r *Relay) Subscriptions() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.registry.Snapshot()
}

// Stats returns current statistics.
func (r *Relay) Stats() Stats {
	r.mu.Lock()
	state := r.state
	symbols := r.registry.Len()
	pairs := r.registry.Pairs()
	r.mu.Unlock()

	return Stats{
		State:           state.String(),
		Symbols:         symbols,
		Subscriptions:   pairs,
		FramesReceived:  r.framesReceived.Load(),
		FramesDiscarded: r.framesDiscarded.Load(),
		UpdatesFiltered: r.updatesFiltered.Load(),
		PricesForwarded: r.pricesForwarded.Load(),
		SubscribeFrames: r.subscribeFrames.Load(),
		Reconnects:      r.reconnects.Load(),
	}
}

// resubscribeLocked sends one SUBSCRIBE frame covering the full key set.
// Callers must hold r.mu.
func (r *Relay) resubscribeLocked() {
	if r.client == nil || !r.client.IsConnected() {
		r.logger.Debug("upstream not connected, skipping subscription")
		return
	}

	symbols := r.registry.Symbols()
	if len(symbols) == 0 {
		return
	}

	frame := connection.NewSubscribeFrame(r.nextID.Add(1), symbols, r.cfg.StreamSuffix)
	if err := r.client.SendJSON(frame); err != nil {
		r.logger.Warn("failed to send upstream subscription",
			"id", frame.ID,
			"symbols", len(symbols),
			"error", err,
		)
		return
	}
	r.subscribeFrames.Add(1)

	r.logger.Debug("upstream subscription sent",
		"id", frame.ID,
		"params", frame.Params,
	)
}

func (r *Relay) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// sleep waits for d, a reconnect request, or the relay stopping.
// Returns false if stopped.
func (r *Relay) sleep(d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-r.ctx.Done():
		return false
	case <-r.kick:
		r.logger.Info("reconnect requested, skipping delay")
		return true
	case <-t.C:
		return true
	}
}

// drainKick discards a pending reconnect request. A dial that is about to
// start, or has just finished, already satisfies it.
func (r *Relay) drainKick() {
	select {
	case <-r.kick:
	default:
	}
}
