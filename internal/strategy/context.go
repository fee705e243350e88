package strategy

import (
	"slices"
	"time"

	"github.com/alejandrodnm/polystrat/internal/domain"
)

// Context is the immutable per-tick view of markets, positions, orders
// and balances that strategies evaluate against. The engine owns the
// canonical context for one pass; strategies receive a filtered copy and
// must treat everything in it as read-only.
type Context struct {
	Timestamp        time.Time
	Markets          map[string]domain.MarketSnapshot   // by condition ID
	Positions        map[string]domain.PositionSnapshot // by token ID
	Orders           map[string]domain.OrderSnapshot    // by order ID
	AvailableBalance float64
	TotalValue       float64
	PriceHistory     map[string][]domain.PricePoint // by condition ID, chronological
}

// NewContext creates an empty context stamped now.
func NewContext() *Context {
	return &Context{
		Timestamp:    time.Now(),
		Markets:      make(map[string]domain.MarketSnapshot),
		Positions:    make(map[string]domain.PositionSnapshot),
		Orders:       make(map[string]domain.OrderSnapshot),
		PriceHistory: make(map[string][]domain.PricePoint),
	}
}

// FromState builds a context from the aggregates supplied by the external
// state aggregator: one call per tick.
func FromState(
	markets []domain.MarketSnapshot,
	positions []domain.PositionSnapshot,
	orders []domain.OrderSnapshot,
	balance float64,
) *Context {
	ctx := NewContext()
	ctx.AvailableBalance = balance

	for _, m := range markets {
		ctx.Markets[m.ConditionID] = m
	}
	for _, p := range positions {
		ctx.TotalValue += p.CurrentValue
		ctx.Positions[p.TokenID] = p
	}
	ctx.TotalValue += balance

	for _, o := range orders {
		ctx.Orders[o.OrderID] = o
	}

	return ctx
}

// WithPriceHistory attaches price-history series and returns the context.
func (c *Context) WithPriceHistory(history map[string][]domain.PricePoint) *Context {
	c.PriceHistory = history
	return c
}

// ActiveMarkets returns the markets with status active.
func (c *Context) ActiveMarkets() []domain.MarketSnapshot {
	out := make([]domain.MarketSnapshot, 0, len(c.Markets))
	for _, m := range c.Markets {
		if m.Status == domain.MarketActive {
			out = append(out, m)
		}
	}
	return out
}

// Market looks up a market snapshot by condition ID.
func (c *Context) Market(conditionID string) (domain.MarketSnapshot, bool) {
	m, ok := c.Markets[conditionID]
	return m, ok
}

// Position looks up a position snapshot by token ID.
func (c *Context) Position(tokenID string) (domain.PositionSnapshot, bool) {
	p, ok := c.Positions[tokenID]
	return p, ok
}

// HasPositionInMarket reports whether any position with size > 0 exists
// in the given market.
func (c *Context) HasPositionInMarket(conditionID string) bool {
	for _, p := range c.Positions {
		if p.MarketID == conditionID && p.Size > 0 {
			return true
		}
	}
	return false
}

// TotalExposure sums the current value of all positions.
func (c *Context) TotalExposure() float64 {
	var total float64
	for _, p := range c.Positions {
		total += p.CurrentValue
	}
	return total
}

// OpenOrders returns the orders still live in the book.
func (c *Context) OpenOrders() []domain.OrderSnapshot {
	out := make([]domain.OrderSnapshot, 0, len(c.Orders))
	for _, o := range c.Orders {
		if o.IsOpen() {
			out = append(out, o)
		}
	}
	return out
}

// OrdersForMarket returns all orders in a market.
func (c *Context) OrdersForMarket(conditionID string) []domain.OrderSnapshot {
	var out []domain.OrderSnapshot
	for _, o := range c.Orders {
		if o.MarketID == conditionID {
			out = append(out, o)
		}
	}
	return out
}

// History returns the price series for a market.
func (c *Context) History(conditionID string) ([]domain.PricePoint, bool) {
	h, ok := c.PriceHistory[conditionID]
	return h, ok
}

// LatestPrice returns the current price of a market token by index.
func (c *Context) LatestPrice(conditionID string, tokenIndex int) (float64, bool) {
	m, ok := c.Markets[conditionID]
	if !ok || tokenIndex >= len(m.TokenPrices) {
		return 0, false
	}
	return m.TokenPrices[tokenIndex], true
}

// SMA returns the mean of the most recent periods points of a market's
// price history. ok=false when the history is shorter than periods.
func (c *Context) SMA(conditionID string, periods int) (float64, bool) {
	history := c.PriceHistory[conditionID]
	if periods <= 0 || len(history) < periods {
		return 0, false
	}

	var sum float64
	for _, p := range history[len(history)-periods:] {
		sum += p.Price
	}
	return sum / float64(periods), true
}

// EMA returns the exponential moving average of a market's price history.
// The seed is the SMA of the FIRST periods points (the oldest), and the
// smoothing factor 2/(periods+1) is applied forward over the remaining
// chronological points. This seeding is load-bearing for parity with
// recorded runs; do not switch to a most-recent seed.
func (c *Context) EMA(conditionID string, periods int) (float64, bool) {
	history := c.PriceHistory[conditionID]
	if periods <= 0 || len(history) < periods {
		return 0, false
	}

	var seed float64
	for _, p := range history[:periods] {
		seed += p.Price
	}
	ema := seed / float64(periods)

	multiplier := 2.0 / float64(periods+1)
	for _, p := range history[periods:] {
		ema = (p.Price-ema)*multiplier + ema
	}
	return ema, true
}

// PriceChange returns (latest - past)/past where past is the price
// periods points back. ok=false when the history is too short or the
// base price is zero.
func (c *Context) PriceChange(conditionID string, periods int) (float64, bool) {
	history := c.PriceHistory[conditionID]
	if periods <= 0 || len(history) <= periods {
		return 0, false
	}

	current := history[len(history)-1].Price
	past := history[len(history)-periods].Price
	if past == 0 {
		return 0, false
	}
	return (current - past) / past, true
}

// FilterFor returns a copy of the context restricted by the config's
// include/exclude market lists. The canonical context is never mutated;
// positions, orders and history are shared read-only.
func (c *Context) FilterFor(cfg Config) *Context {
	filtered := &Context{
		Timestamp:        c.Timestamp,
		Markets:          c.Markets,
		Positions:        c.Positions,
		Orders:           c.Orders,
		AvailableBalance: c.AvailableBalance,
		TotalValue:       c.TotalValue,
		PriceHistory:     c.PriceHistory,
	}

	if len(cfg.IncludeMarkets) == 0 && len(cfg.ExcludeMarkets) == 0 {
		return filtered
	}

	markets := make(map[string]domain.MarketSnapshot, len(c.Markets))
	for id, m := range c.Markets {
		if len(cfg.IncludeMarkets) > 0 && !slices.Contains(cfg.IncludeMarkets, id) {
			continue
		}
		if slices.Contains(cfg.ExcludeMarkets, id) {
			continue
		}
		markets[id] = m
	}
	filtered.Markets = markets
	return filtered
}
