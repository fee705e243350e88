package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polystrat/internal/domain"
)

func newTestSpread(t *testing.T) *Spread {
	t.Helper()
	s := NewSpread()
	require.NoError(t, s.Initialize(DefaultConfig()))
	return s
}

func quotedMarket(id string, mid, spread float64) domain.MarketSnapshot {
	m := activeMarket(id, mid)
	m.Spread = spread
	m.HasSpread = true
	return m
}

func TestSpread_QuotesBothSides(t *testing.T) {
	s := newTestSpread(t)

	ctx := marketCtx(quotedMarket("0xa", 0.5, 0.05))

	signals := s.Evaluate(ctx)
	require.Len(t, signals, 2)

	var bid, ask domain.Signal
	for _, sig := range signals {
		if sig.Side == domain.SideBuy {
			bid = sig
		} else {
			ask = sig
		}
	}

	assert.InDelta(t, 0.49, bid.Price, 1e-9)
	assert.InDelta(t, 0.51, ask.Price, 1e-9)
	for _, sig := range []domain.Signal{bid, ask} {
		assert.Equal(t, domain.SignalEntry, sig.Type)
		assert.Equal(t, domain.StrengthWeak, sig.Strength)
		assert.Equal(t, 5*time.Minute, sig.TTL)
		assert.InDelta(t, 5.0, sig.Size, 1e-9)
		assert.True(t, sig.HasPrice)
	}
}

func TestSpread_ImpliedSpreadWhenNotQuoted(t *testing.T) {
	s := newTestSpread(t)

	// Without a quoted spread the estimate at mid 0.5 is exactly the
	// 0.02 minimum, so quoting proceeds.
	ctx := marketCtx(activeMarket("0xa", 0.5))
	assert.Len(t, s.Evaluate(ctx), 2)
}

func TestSpread_SkipsTightSpread(t *testing.T) {
	s := newTestSpread(t)

	ctx := marketCtx(quotedMarket("0xa", 0.5, 0.01))
	assert.Empty(t, s.Evaluate(ctx))
}

func TestSpread_SkipsExtremePrices(t *testing.T) {
	s := newTestSpread(t)

	// bid would cross zero
	ctx := marketCtx(quotedMarket("0xa", 0.005, 0.05))
	assert.Empty(t, s.Evaluate(ctx))

	// ask would cross one
	ctx = marketCtx(quotedMarket("0xa", 0.995, 0.05))
	assert.Empty(t, s.Evaluate(ctx))
}

func TestSpread_SkipsIlliquidMarkets(t *testing.T) {
	s := newTestSpread(t)

	thin := quotedMarket("0xa", 0.5, 0.05)
	thin.Liquidity = 100
	assert.Empty(t, s.Evaluate(marketCtx(thin)))
}

func TestSpread_InventoryDampsBidSide(t *testing.T) {
	s := newTestSpread(t)
	ctx := marketCtx(quotedMarket("0xa", 0.5, 0.05))

	// Accumulate +25 inventory, half the 50 cap. The bid would grow
	// the imbalance so its size halves; the ask keeps full size.
	fill := domain.NewBuySignal("0xa", "0xa-yes", 25)
	s.OnSignalExecuted(fill, true)
	require.InDelta(t, 25.0, s.Inventory("0xa"), 1e-9)

	signals := s.Evaluate(ctx)
	require.Len(t, signals, 2)
	for _, sig := range signals {
		if sig.Side == domain.SideBuy {
			assert.InDelta(t, 2.5, sig.Size, 1e-9)
		} else {
			assert.InDelta(t, 5.0, sig.Size, 1e-9)
		}
	}
}

func TestSpread_HaltsAtImbalanceCap(t *testing.T) {
	s := newTestSpread(t)
	ctx := marketCtx(quotedMarket("0xa", 0.5, 0.05))

	s.OnSignalExecuted(domain.NewBuySignal("0xa", "0xa-yes", 50), true)
	assert.Empty(t, s.Evaluate(ctx))
}

func TestSpread_SuppressesDustQuotes(t *testing.T) {
	s := newTestSpread(t)
	require.NoError(t, s.SetParameter("order_size", FloatValue(0.12)))

	// With +25 inventory the bid damps to 0.06, below the dust floor,
	// while the undamped ask still quotes.
	s.OnSignalExecuted(domain.NewBuySignal("0xa", "0xa-yes", 25), true)

	signals := s.Evaluate(marketCtx(quotedMarket("0xa", 0.5, 0.05)))
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SideSell, signals[0].Side)
}

func TestSpread_FailedFillLeavesInventory(t *testing.T) {
	s := newTestSpread(t)

	s.OnSignalExecuted(domain.NewBuySignal("0xa", "0xa-yes", 25), false)
	assert.InDelta(t, 0.0, s.Inventory("0xa"), 1e-9)
}

func TestSpread_SellsReduceInventory(t *testing.T) {
	s := newTestSpread(t)

	s.OnSignalExecuted(domain.NewBuySignal("0xa", "0xa-yes", 25), true)
	s.OnSignalExecuted(domain.NewSellSignal("0xa", "0xa-yes", 10), true)
	assert.InDelta(t, 15.0, s.Inventory("0xa"), 1e-9)
}

func TestSpread_InitializeRejectsNonPositiveCap(t *testing.T) {
	s := NewSpread()
	cfg := DefaultConfig()
	cfg.Parameters = map[string]any{"max_inventory_imbalance": 0.0}

	err := s.Initialize(cfg)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
