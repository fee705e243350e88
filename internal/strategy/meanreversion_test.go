package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polystrat/internal/domain"
)

func newTestMeanReversion(t *testing.T) *MeanReversion {
	t.Helper()
	s := NewMeanReversion()
	cfg := DefaultConfig()
	cfg.Parameters = map[string]any{
		"ma_periods":      3,
		"entry_threshold": 0.10,
		"exit_threshold":  0.02,
		"position_size":   10.0,
		"min_liquidity":   1000.0,
	}
	require.NoError(t, s.Initialize(cfg))
	return s
}

func TestMeanReversion_NoEntryWithinThreshold(t *testing.T) {
	s := newTestMeanReversion(t)

	// MA of the last 3 points is 0.50; price 0.54 deviates 8%, below
	// the 10% entry threshold.
	ctx := marketCtx(activeMarket("0xa", 0.54), 0.48, 0.50, 0.52)
	assert.Empty(t, s.Evaluate(ctx))

	// Exactly at the threshold is still no entry. Exact binary values
	// keep the comparison free of rounding noise: MA 0.5, price 9/16,
	// threshold 1/8.
	require.NoError(t, s.SetParameter("entry_threshold", FloatValue(0.125)))
	ctx = marketCtx(activeMarket("0xa", 0.5625), 0.25, 0.50, 0.75)
	assert.Empty(t, s.Evaluate(ctx))
}

func TestMeanReversion_BuyBelowMA(t *testing.T) {
	s := newTestMeanReversion(t)

	// MA 0.50, price 0.44: 12% below, expect reversion up.
	ctx := marketCtx(activeMarket("0xa", 0.44), 0.48, 0.50, 0.52)

	signals := s.Evaluate(ctx)
	require.Len(t, signals, 1)

	sig := signals[0]
	assert.Equal(t, domain.SideBuy, sig.Side)
	assert.Equal(t, domain.SignalEntry, sig.Type)
	assert.Equal(t, domain.StrengthMedium, sig.Strength)
	assert.Equal(t, "0xa-yes", sig.TokenID)
	assert.True(t, sig.HasPrice)
	assert.InDelta(t, 0.44, sig.Price, 1e-9)

	ma, ok := sig.Indicator("ma_at_entry")
	require.True(t, ok)
	assert.InDelta(t, 0.50, ma, 1e-9)
}

func TestMeanReversion_SellAboveMA_Strong(t *testing.T) {
	s := newTestMeanReversion(t)

	// MA 0.50, price 0.61: 22% above, beyond twice the threshold.
	ctx := marketCtx(activeMarket("0xa", 0.61), 0.48, 0.50, 0.52)

	signals := s.Evaluate(ctx)
	require.Len(t, signals, 1)
	assert.Equal(t, domain.SideSell, signals[0].Side)
	assert.Equal(t, domain.StrengthStrong, signals[0].Strength)
}

func TestMeanReversion_SkipsIlliquidMarkets(t *testing.T) {
	s := newTestMeanReversion(t)

	thin := activeMarket("0xa", 0.44)
	thin.Liquidity = 500
	ctx := marketCtx(thin, 0.48, 0.50, 0.52)

	assert.Empty(t, s.Evaluate(ctx))
}

func TestMeanReversion_ExitOnceAndIdempotent(t *testing.T) {
	s := newTestMeanReversion(t)

	// Enter on a 12% downward deviation, then execute the entry so the
	// market becomes tracked.
	entryCtx := marketCtx(activeMarket("0xa", 0.44), 0.48, 0.50, 0.52)
	entries := s.Evaluate(entryCtx)
	require.Len(t, entries, 1)
	s.OnSignalExecuted(entries[0], true)

	// While price stays far from the entry MA there is no exit and no
	// re-entry for the tracked market.
	farCtx := marketCtx(activeMarket("0xa", 0.40), 0.48, 0.50, 0.52)
	assert.Empty(t, s.Evaluate(farCtx))

	// Price reverts to within 2% of the entry MA: exactly one exit on
	// the opposite side.
	revertCtx := marketCtx(activeMarket("0xa", 0.505), 0.48, 0.50, 0.52)
	exits := s.Evaluate(revertCtx)
	require.Len(t, exits, 1)
	assert.Equal(t, domain.SignalExit, exits[0].Type)
	assert.Equal(t, domain.SideSell, exits[0].Side)

	// Tracking already cleared at emission: re-evaluating the same
	// context emits nothing new for the old entry.
	again := s.Evaluate(revertCtx)
	for _, sig := range again {
		assert.NotEqual(t, domain.SignalExit, sig.Type)
	}
}

func TestMeanReversion_FailedExecutionKeepsUntracked(t *testing.T) {
	s := newTestMeanReversion(t)

	ctx := marketCtx(activeMarket("0xa", 0.44), 0.48, 0.50, 0.52)
	entries := s.Evaluate(ctx)
	require.Len(t, entries, 1)
	s.OnSignalExecuted(entries[0], false)

	// The entry never executed, so the same deviation triggers again.
	assert.Len(t, s.Evaluate(ctx), 1)
}

func TestMeanReversion_InitializeRejectsBadThreshold(t *testing.T) {
	s := NewMeanReversion()
	cfg := DefaultConfig()
	cfg.Parameters = map[string]any{"entry_threshold": -0.1}

	err := s.Initialize(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestMeanReversion_SetParameter(t *testing.T) {
	s := NewMeanReversion()

	require.NoError(t, s.SetParameter("entry_threshold", FloatValue(0.15)))
	assert.InDelta(t, 0.15, s.entryThreshold, 1e-9)

	err := s.SetParameter("entry_threshold", StringValue("nope"))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = s.SetParameter("does_not_exist", FloatValue(1))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
