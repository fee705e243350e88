// Package engine orchestrates strategy evaluation, risk filtering and
// signal execution. It is driven by an external tick loop: one Evaluate
// call per tick, it never schedules itself.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/polystrat/internal/domain"
	"github.com/alejandrodnm/polystrat/internal/ports"
	"github.com/alejandrodnm/polystrat/internal/risk"
	"github.com/alejandrodnm/polystrat/internal/strategy"
)

// Status is the lifecycle state of a registered strategy.
type Status string

const (
	StatusStopped Status = "stopped"
	StatusRunning Status = "running"
	StatusPaused  Status = "paused"
	// StatusError is entered after too many consecutive evaluation
	// failures. There is no automatic recovery: the strategy has to be
	// restarted explicitly.
	StatusError Status = "error"
)

// Config tunes the engine itself; risk limits live in risk.Config.
type Config struct {
	// MaxStrategyErrors is the number of consecutive evaluation
	// failures that flips a strategy to StatusError.
	MaxStrategyErrors int
	// MaxSignalHistory bounds the audit history; the oldest record is
	// evicted first.
	MaxSignalHistory int
}

// DefaultConfig returns the stock engine tuning.
func DefaultConfig() Config {
	return Config{
		MaxStrategyErrors: 5,
		MaxSignalHistory:  1000,
	}
}

// handle pairs a strategy instance with its runtime state. The mutex
// guarantees evaluation and hook delivery for the same strategy never
// interleave; different strategies are independent.
type handle struct {
	mu sync.RWMutex

	strategy strategy.Strategy
	cfg      strategy.Config
	status   Status

	lastEvaluated    time.Time
	hasEvaluated     bool
	signalsGenerated int
	signalsExecuted  int
	errors           int // consecutive evaluation failures
}

// due reports whether the strategy should be evaluated this tick.
// Caller holds h.mu.
func (h *handle) due(now time.Time) bool {
	if h.status != StatusRunning || !h.cfg.Enabled {
		return false
	}
	if !h.hasEvaluated {
		return true
	}
	interval := time.Duration(h.cfg.MinSignalIntervalSecs) * time.Second
	return now.Sub(h.lastEvaluated) >= interval
}

// Engine manages registered strategies, filters their signals through
// the risk guard and queues approved signals for execution.
type Engine struct {
	mu sync.RWMutex // guards registry, pending, history, running

	strategies map[string]*handle
	pending    []domain.Signal
	history    []domain.SignalRecord
	running    bool

	guard *risk.Guard
	sink  ports.ActionSink
	cfg   Config
}

// New creates an engine dispatching approved signals to sink.
func New(sink ports.ActionSink, guard *risk.Guard, cfg Config) *Engine {
	if cfg.MaxStrategyErrors <= 0 {
		cfg.MaxStrategyErrors = DefaultConfig().MaxStrategyErrors
	}
	if cfg.MaxSignalHistory <= 0 {
		cfg.MaxSignalHistory = DefaultConfig().MaxSignalHistory
	}
	return &Engine{
		strategies: make(map[string]*handle),
		guard:      guard,
		sink:       sink,
		cfg:        cfg,
	}
}

// Register adds a strategy under its own name and initializes it. The
// strategy starts in StatusStopped.
func (e *Engine) Register(s strategy.Strategy, cfg strategy.Config) error {
	name := s.Name()

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.strategies[name]; exists {
		return fmt.Errorf("engine.Register: strategy %q already registered: %w",
			name, domain.ErrInvalidInput)
	}

	if err := s.Initialize(cfg); err != nil {
		return fmt.Errorf("engine.Register: initialize %q: %w", name, err)
	}

	e.strategies[name] = &handle{
		strategy: s,
		cfg:      cfg,
		status:   StatusStopped,
	}
	slog.Info("engine: registered strategy", "strategy", name)
	return nil
}

// Unregister removes a strategy. Removing an unknown name is a no-op.
func (e *Engine) Unregister(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.strategies[name]; exists {
		delete(e.strategies, name)
		slog.Info("engine: unregistered strategy", "strategy", name)
	}
}

func (e *Engine) setStatus(name string, status Status) error {
	e.mu.RLock()
	h, exists := e.strategies[name]
	e.mu.RUnlock()
	if !exists {
		return fmt.Errorf("engine: strategy %q not found: %w", name, domain.ErrInvalidInput)
	}

	h.mu.Lock()
	h.status = status
	if status == StatusRunning {
		h.errors = 0
	}
	h.mu.Unlock()

	slog.Info("engine: strategy status changed", "strategy", name, "status", status)
	return nil
}

// StartStrategy moves a strategy to StatusRunning and resets its error
// counter. This is also the recovery path out of StatusError.
func (e *Engine) StartStrategy(name string) error { return e.setStatus(name, StatusRunning) }

// StopStrategy moves a strategy to StatusStopped.
func (e *Engine) StopStrategy(name string) error { return e.setStatus(name, StatusStopped) }

// PauseStrategy moves a strategy to StatusPaused.
func (e *Engine) PauseStrategy(name string) error { return e.setStatus(name, StatusPaused) }

// Start enables evaluation.
func (e *Engine) Start() {
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()
	slog.Info("engine: started")
}

// Stop disables evaluation. Already-queued signals stay pending.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.running = false
	e.mu.Unlock()
	slog.Info("engine: stopped")
}

// Running reports whether the engine gate is open.
func (e *Engine) Running() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.running
}

// Evaluate runs every due strategy against the context, filters the
// emitted signals through the risk guard and queues the approved ones.
// Returns the approved batch. While the engine is stopped it returns
// nil with no side effects.
//
// Strategies run sequentially in sorted-name order so cross-strategy
// signal order is deterministic.
func (e *Engine) Evaluate(ctx *strategy.Context) []domain.Signal {
	e.mu.RLock()
	if !e.running {
		e.mu.RUnlock()
		return nil
	}
	names := make([]string, 0, len(e.strategies))
	for name := range e.strategies {
		names = append(names, name)
	}
	e.mu.RUnlock()
	sort.Strings(names)

	now := time.Now()
	var all []domain.Signal

	for _, name := range names {
		e.mu.RLock()
		h, exists := e.strategies[name]
		e.mu.RUnlock()
		if !exists {
			continue
		}

		h.mu.Lock()
		if !h.due(now) {
			h.mu.Unlock()
			continue
		}

		filtered := ctx.FilterFor(h.cfg)
		signals, err := evaluateStrategy(h.strategy, filtered)
		if err != nil {
			h.errors++
			slog.Error("engine: strategy evaluation failed",
				"strategy", name, "consecutive_errors", h.errors, "err", err)
			if h.errors >= e.cfg.MaxStrategyErrors {
				h.status = StatusError
				slog.Warn("engine: strategy disabled after repeated errors",
					"strategy", name, "errors", h.errors)
			}
			h.mu.Unlock()
			continue
		}

		h.errors = 0
		h.lastEvaluated = now
		h.hasEvaluated = true
		h.signalsGenerated += len(signals)
		h.mu.Unlock()

		for i := range signals {
			signals[i].StrategyName = name
		}
		all = append(all, signals...)
	}

	approved := e.applyRiskChecks(all, ctx)

	e.mu.Lock()
	e.pending = append(e.pending, approved...)
	e.mu.Unlock()

	return approved
}

// evaluateStrategy calls Evaluate converting a panic into an error so a
// broken strategy cannot take down the whole batch.
func evaluateStrategy(s strategy.Strategy, ctx *strategy.Context) (signals []domain.Signal, err error) {
	defer func() {
		if r := recover(); r != nil {
			signals = nil
			err = fmt.Errorf("engine: strategy %q panicked: %v", s.Name(), r)
		}
	}()
	return s.Evaluate(ctx), nil
}

func (e *Engine) applyRiskChecks(signals []domain.Signal, ctx *strategy.Context) []domain.Signal {
	approved := make([]domain.Signal, 0, len(signals))
	for _, sig := range signals {
		if v := e.guard.CheckSignal(sig, ctx); v != nil {
			slog.Warn("engine: signal rejected by risk guard",
				"signal", sig.ID, "strategy", sig.StrategyName,
				"code", v.Code, "reason", v.Message)
			continue
		}
		approved = append(approved, sig)
	}
	return approved
}

// ExecutePendingSignals drains the pending queue in FIFO order. Expired
// signals and signals from strategies without auto-execute are dropped.
// Returns the IDs of the executed signals. A dispatch failure aborts
// the drain; signals not yet reached are lost with the rest of the
// batch, matching the drain-once contract.
func (e *Engine) ExecutePendingSignals(ctx context.Context) ([]string, error) {
	e.mu.Lock()
	signals := e.pending
	e.pending = nil
	e.mu.Unlock()

	now := time.Now()
	var executed []string

	for _, sig := range signals {
		if sig.Expired(now) {
			slog.Debug("engine: signal expired, dropping", "signal", sig.ID)
			continue
		}

		e.mu.RLock()
		h, known := e.strategies[sig.StrategyName]
		e.mu.RUnlock()
		if known {
			h.mu.RLock()
			autoExecute := h.cfg.AutoExecute
			h.mu.RUnlock()
			if !autoExecute {
				slog.Debug("engine: auto-execute disabled, dropping", "signal", sig.ID)
				continue
			}
		}

		if err := e.dispatch(ctx, sig); err != nil {
			return executed, err
		}
		executed = append(executed, sig.ID)
	}

	return executed, nil
}

// ExecuteSignal executes one pending signal by ID, regardless of the
// strategy's auto-execute setting. The signal leaves the queue only
// after a successful dispatch, so a failed manual execution can be
// retried.
func (e *Engine) ExecuteSignal(ctx context.Context, signalID string) error {
	e.mu.RLock()
	var sig domain.Signal
	found := false
	for _, s := range e.pending {
		if s.ID == signalID {
			sig = s
			found = true
			break
		}
	}
	e.mu.RUnlock()
	if !found {
		return fmt.Errorf("engine.ExecuteSignal: signal %q not found: %w",
			signalID, domain.ErrInvalidInput)
	}

	if err := e.dispatch(ctx, sig); err != nil {
		return err
	}

	e.mu.Lock()
	for i, s := range e.pending {
		if s.ID == signalID {
			e.pending = append(e.pending[:i], e.pending[i+1:]...)
			break
		}
	}
	e.mu.Unlock()
	return nil
}

// dispatch converts the signal to an order, sends it to the sink,
// records it and delivers the execution hook.
func (e *Engine) dispatch(ctx context.Context, sig domain.Signal) error {
	req, err := signalToOrder(sig)
	if err != nil {
		return err
	}

	if err := e.sink.PlaceOrder(ctx, req); err != nil {
		return fmt.Errorf("engine: dispatch signal %s: %w: %w",
			sig.ID, domain.ErrChannel, err)
	}

	e.recordSignal(sig, true)

	e.mu.RLock()
	h, known := e.strategies[sig.StrategyName]
	e.mu.RUnlock()
	if known {
		h.mu.Lock()
		h.signalsExecuted++
		h.strategy.OnSignalExecuted(sig, true)
		h.mu.Unlock()
	}

	slog.Info("engine: signal executed",
		"signal", sig.ID, "strategy", sig.StrategyName,
		"market", sig.MarketID, "side", sig.Side, "size", sig.Size)
	return nil
}

// signalToOrder builds the limit order request for a signal. Limit
// orders need a price.
func signalToOrder(sig domain.Signal) (domain.OrderRequest, error) {
	if !sig.HasPrice {
		return domain.OrderRequest{}, fmt.Errorf(
			"engine: signal %s has no price for limit order: %w",
			sig.ID, domain.ErrInvalidInput)
	}
	return domain.OrderRequest{
		MarketID:  sig.MarketID,
		TokenID:   sig.TokenID,
		Side:      sig.Side,
		Price:     sig.Price,
		Size:      sig.Size,
		OrderType: domain.OrderLimit,
	}, nil
}

func (e *Engine) recordSignal(sig domain.Signal, executed bool) {
	rec := domain.SignalRecord{Signal: sig, Executed: executed}
	if executed {
		now := time.Now()
		rec.ExecutedAt = &now
	}

	e.mu.Lock()
	e.history = append(e.history, rec)
	if over := len(e.history) - e.cfg.MaxSignalHistory; over > 0 {
		e.history = append([]domain.SignalRecord(nil), e.history[over:]...)
	}
	e.mu.Unlock()
}

// ClearSignal discards one pending signal without executing it.
func (e *Engine) ClearSignal(signalID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	kept := e.pending[:0]
	for _, sig := range e.pending {
		if sig.ID != signalID {
			kept = append(kept, sig)
		}
	}
	e.pending = kept
}

// ClearAllSignals discards every pending signal.
func (e *Engine) ClearAllSignals() {
	e.mu.Lock()
	e.pending = nil
	e.mu.Unlock()
}

// PendingSignals returns a copy of the queue in FIFO order.
func (e *Engine) PendingSignals() []domain.Signal {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]domain.Signal(nil), e.pending...)
}

// History returns a copy of the audit history, oldest first.
func (e *Engine) History() []domain.SignalRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]domain.SignalRecord(nil), e.history...)
}

// UpdateConfig replaces a strategy's configuration.
func (e *Engine) UpdateConfig(name string, cfg strategy.Config) error {
	e.mu.RLock()
	h, exists := e.strategies[name]
	e.mu.RUnlock()
	if !exists {
		return fmt.Errorf("engine.UpdateConfig: strategy %q not found: %w",
			name, domain.ErrInvalidInput)
	}

	h.mu.Lock()
	h.cfg = cfg
	h.mu.Unlock()
	return nil
}

// UpdateRiskConfig hot-swaps the risk guard limits.
func (e *Engine) UpdateRiskConfig(cfg risk.Config) {
	e.guard.UpdateConfig(cfg)
}

// OnMarketUpdate fans the context out to every running strategy.
func (e *Engine) OnMarketUpdate(ctx *strategy.Context) {
	for _, h := range e.handles() {
		h.mu.Lock()
		if h.status == StatusRunning {
			h.strategy.OnMarketUpdate(ctx)
		}
		h.mu.Unlock()
	}
}

// OnOrderFilled delivers a fill to the strategy that owns the order.
func (e *Engine) OnOrderFilled(strategyName, orderID string, filledPrice, filledSize float64) {
	e.mu.RLock()
	h, exists := e.strategies[strategyName]
	e.mu.RUnlock()
	if !exists {
		return
	}

	h.mu.Lock()
	h.strategy.OnOrderFilled(orderID, filledPrice, filledSize)
	h.mu.Unlock()
}

// OnOrderCancelled delivers a cancellation to the strategy that owns
// the order.
func (e *Engine) OnOrderCancelled(strategyName, orderID string) {
	e.mu.RLock()
	h, exists := e.strategies[strategyName]
	e.mu.RUnlock()
	if !exists {
		return
	}

	h.mu.Lock()
	h.strategy.OnOrderCancelled(orderID)
	h.mu.Unlock()
}

// handles snapshots the registered handles in sorted-name order.
func (e *Engine) handles() []*handle {
	e.mu.RLock()
	names := make([]string, 0, len(e.strategies))
	for name := range e.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]*handle, 0, len(names))
	for _, name := range names {
		out = append(out, e.strategies[name])
	}
	e.mu.RUnlock()
	return out
}

// Stats returns per-strategy counters sorted by name.
func (e *Engine) Stats() []domain.StrategyStats {
	e.mu.RLock()
	names := make([]string, 0, len(e.strategies))
	for name := range e.strategies {
		names = append(names, name)
	}
	e.mu.RUnlock()
	sort.Strings(names)

	out := make([]domain.StrategyStats, 0, len(names))
	for _, name := range names {
		e.mu.RLock()
		h, exists := e.strategies[name]
		e.mu.RUnlock()
		if !exists {
			continue
		}

		h.mu.RLock()
		stats := domain.StrategyStats{
			Name:             name,
			Status:           string(h.status),
			SignalsGenerated: h.signalsGenerated,
			SignalsExecuted:  h.signalsExecuted,
			Errors:           h.errors,
		}
		if h.hasEvaluated {
			last := h.lastEvaluated
			stats.LastEvaluated = &last
		}
		h.mu.RUnlock()
		out = append(out, stats)
	}
	return out
}

// Report assembles the tick summary for the notifier.
func (e *Engine) Report(executed []domain.Signal) domain.Report {
	e.mu.RLock()
	pending := len(e.pending)
	e.mu.RUnlock()

	return domain.Report{
		GeneratedAt: time.Now(),
		Strategies:  e.Stats(),
		Executed:    executed,
		Pending:     pending,
	}
}
