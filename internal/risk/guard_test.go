package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polystrat/internal/domain"
	"github.com/alejandrodnm/polystrat/internal/strategy"
)

func buySignal(marketID, tokenID string, size, price float64) domain.Signal {
	return domain.NewBuySignal(marketID, tokenID, size).WithPrice(price)
}

func emptyCtx() *strategy.Context {
	return strategy.NewContext()
}

func ctxWithPositions(positions ...domain.PositionSnapshot) *strategy.Context {
	ctx := strategy.NewContext()
	for _, p := range positions {
		ctx.Positions[p.TokenID] = p
	}
	return ctx
}

func TestCheckSignal_PassesDefaults(t *testing.T) {
	g := NewGuard(DefaultConfig())

	v := g.CheckSignal(buySignal("0xa", "tok", 10, 0.5), emptyCtx())
	assert.Nil(t, v)
}

func TestCheckSignal_TradingDisabled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Enabled = false
	g := NewGuard(cfg)

	v := g.CheckSignal(buySignal("0xa", "tok", 10, 0.5), emptyCtx())
	require.NotNil(t, v)
	assert.Equal(t, CodeTradingDisabled, v.Code)
}

func TestCheckSignal_BlacklistBeatsWhitelist(t *testing.T) {
	cfg := DefaultConfig()
	cfg.BlacklistedMarkets = []string{"0xbad"}
	cfg.WhitelistedMarkets = []string{"0xbad", "0xgood"}
	g := NewGuard(cfg)

	v := g.CheckSignal(buySignal("0xbad", "tok", 10, 0.5), emptyCtx())
	require.NotNil(t, v)
	assert.Equal(t, CodeMarketBlacklisted, v.Code)

	assert.Nil(t, g.CheckSignal(buySignal("0xgood", "tok", 10, 0.5), emptyCtx()))
}

func TestCheckSignal_WhitelistOnlyWhenNonEmpty(t *testing.T) {
	cfg := DefaultConfig()
	cfg.WhitelistedMarkets = []string{"0xgood"}
	g := NewGuard(cfg)

	v := g.CheckSignal(buySignal("0xother", "tok", 10, 0.5), emptyCtx())
	require.NotNil(t, v)
	assert.Equal(t, CodeMarketNotWhitelisted, v.Code)
}

func TestCheckSignal_SizeBounds(t *testing.T) {
	g := NewGuard(DefaultConfig())

	v := g.CheckSignal(buySignal("0xa", "tok", 150, 0.5), emptyCtx())
	require.NotNil(t, v)
	assert.Equal(t, CodePositionSizeExceeded, v.Code)

	v = g.CheckSignal(buySignal("0xa", "tok", 0.5, 0.5), emptyCtx())
	require.NotNil(t, v)
	assert.Equal(t, CodePositionSizeTooSmall, v.Code)
}

func TestCheckSignal_NilLimitsAreUnlimited(t *testing.T) {
	g := NewGuard(Config{Enabled: true})

	v := g.CheckSignal(buySignal("0xa", "tok", 1e6, 0.5), emptyCtx())
	assert.Nil(t, v)
}

func TestCheckSignal_TotalExposureOnlyCapsBuys(t *testing.T) {
	cfg := Config{Enabled: true, MaxTotalExposure: Float(100)}
	g := NewGuard(cfg)

	ctx := ctxWithPositions(domain.PositionSnapshot{
		MarketID: "0xa", TokenID: "tok-a", Size: 100, CurrentValue: 90,
	})

	// 90 existing + 20*0.6 projected breaches the 100 cap.
	v := g.CheckSignal(buySignal("0xb", "tok-b", 20, 0.6), ctx)
	require.NotNil(t, v)
	assert.Equal(t, CodeTotalExposure, v.Code)

	// The same notional as a sell is assumed to reduce exposure.
	sell := domain.NewSellSignal("0xb", "tok-b", 20).WithPrice(0.6)
	assert.Nil(t, g.CheckSignal(sell, ctx))
}

func TestCheckSignal_MissingPriceAssumesWorstCase(t *testing.T) {
	cfg := Config{Enabled: true, MaxTotalExposure: Float(100)}
	g := NewGuard(cfg)

	// No price: value = size * 1.
	v := g.CheckSignal(domain.NewBuySignal("0xa", "tok", 150), emptyCtx())
	require.NotNil(t, v)
	assert.Equal(t, CodeTotalExposure, v.Code)
}

func TestCheckSignal_MaxPositionsOnlyForNewTokens(t *testing.T) {
	cfg := Config{Enabled: true, MaxPositions: Int(2)}
	g := NewGuard(cfg)

	ctx := ctxWithPositions(
		domain.PositionSnapshot{MarketID: "0xa", TokenID: "tok-a", Size: 10, CurrentValue: 5},
		domain.PositionSnapshot{MarketID: "0xb", TokenID: "tok-b", Size: 10, CurrentValue: 5},
	)

	// A new token would be position number three.
	v := g.CheckSignal(buySignal("0xc", "tok-c", 10, 0.5), ctx)
	require.NotNil(t, v)
	assert.Equal(t, CodeMaxPositions, v.Code)

	// Adding to an existing token passes.
	assert.Nil(t, g.CheckSignal(buySignal("0xa", "tok-a", 10, 0.5), ctx))

	// Sells are never capped by position count.
	sell := domain.NewSellSignal("0xc", "tok-c", 10).WithPrice(0.5)
	assert.Nil(t, g.CheckSignal(sell, ctx))
}

func TestCheckSignal_MarketExposure(t *testing.T) {
	cfg := Config{Enabled: true, MaxExposurePerMarket: Float(50)}
	g := NewGuard(cfg)

	ctx := ctxWithPositions(
		domain.PositionSnapshot{MarketID: "0xa", TokenID: "tok-a", Size: 100, CurrentValue: 45},
		domain.PositionSnapshot{MarketID: "0xb", TokenID: "tok-b", Size: 100, CurrentValue: 45},
	)

	// 45 in-market + 10*0.6 breaches the per-market cap of 50. The
	// 45 held in the other market is not counted.
	v := g.CheckSignal(buySignal("0xa", "tok-a2", 10, 0.6), ctx)
	require.NotNil(t, v)
	assert.Equal(t, CodeMarketExposure, v.Code)

	assert.Nil(t, g.CheckSignal(buySignal("0xc", "tok-c", 10, 0.6), ctx))
}

func TestCheckSignal_PriceBounds(t *testing.T) {
	g := NewGuard(Config{Enabled: true})

	v := g.CheckSignal(buySignal("0xa", "tok", 10, 1.2), emptyCtx())
	require.NotNil(t, v)
	assert.Equal(t, CodeInvalidPrice, v.Code)

	v = g.CheckSignal(buySignal("0xa", "tok", 10, -0.1), emptyCtx())
	require.NotNil(t, v)
	assert.Equal(t, CodeInvalidPrice, v.Code)

	// Bounds are inclusive.
	assert.Nil(t, g.CheckSignal(buySignal("0xa", "tok", 10, 0), emptyCtx()))
	assert.Nil(t, g.CheckSignal(buySignal("0xa", "tok", 10, 1), emptyCtx()))
}

func TestCheckSignal_OrderShortCircuits(t *testing.T) {
	// A blacklisted signal with an invalid price reports the blacklist:
	// the earlier check wins.
	cfg := Config{Enabled: true, BlacklistedMarkets: []string{"0xbad"}}
	g := NewGuard(cfg)

	v := g.CheckSignal(buySignal("0xbad", "tok", 10, 2.0), emptyCtx())
	require.NotNil(t, v)
	assert.Equal(t, CodeMarketBlacklisted, v.Code)
}

func TestUpdateConfig_HotSwap(t *testing.T) {
	g := NewGuard(Config{Enabled: true})
	sig := buySignal("0xa", "tok", 10, 0.5)

	assert.Nil(t, g.CheckSignal(sig, emptyCtx()))

	cfg := g.Config()
	cfg.Enabled = false
	g.UpdateConfig(cfg)

	v := g.CheckSignal(sig, emptyCtx())
	require.NotNil(t, v)
	assert.Equal(t, CodeTradingDisabled, v.Code)
}

func TestViolation_String(t *testing.T) {
	v := violation(CodeInvalidPrice, "Invalid price: %.4f", 1.5)
	assert.Equal(t, "Invalid price: 1.5000", v.String())
}
