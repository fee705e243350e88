// Package risk validates signals against configurable exposure limits.
// A rejection is an expected domain outcome, not an error: CheckSignal
// returns *Violation, nil when the signal passes every check.
package risk

import (
	"fmt"
	"slices"
	"sync"

	"github.com/alejandrodnm/polystrat/internal/domain"
	"github.com/alejandrodnm/polystrat/internal/strategy"
)

// ViolationCode identifies the rule that rejected a signal.
type ViolationCode string

const (
	CodeTradingDisabled      ViolationCode = "trading_disabled"
	CodePositionSizeExceeded ViolationCode = "position_size_exceeded"
	CodePositionSizeTooSmall ViolationCode = "position_size_too_small"
	CodeTotalExposure        ViolationCode = "total_exposure_exceeded"
	CodeMaxPositions         ViolationCode = "max_positions_reached"
	CodeMarketExposure       ViolationCode = "market_exposure_exceeded"
	CodeMarketBlacklisted    ViolationCode = "market_blacklisted"
	CodeMarketNotWhitelisted ViolationCode = "market_not_whitelisted"
	CodeInvalidPrice         ViolationCode = "invalid_price"
)

// Violation describes why a signal was rejected.
type Violation struct {
	Code    ViolationCode
	Message string
}

func (v Violation) String() string { return v.Message }

func violation(code ViolationCode, format string, args ...any) *Violation {
	return &Violation{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Config holds the guard limits. A nil pointer means unlimited.
type Config struct {
	// Enabled gates trading as a whole; false rejects every signal.
	Enabled bool

	MaxPositionSize      *float64
	MinPositionSize      *float64
	MaxTotalExposure     *float64
	MaxPositions         *int
	MaxExposurePerMarket *float64

	// Daily limits are declared but not enforced yet; counting them
	// needs per-day persistent state.
	MaxDailyVolume *float64
	MaxDailyTrades *int
	MaxDailyLoss   *float64

	BlacklistedMarkets []string
	WhitelistedMarkets []string
}

// DefaultConfig returns the conservative stock limits.
func DefaultConfig() Config {
	return Config{
		Enabled:              true,
		MaxPositionSize:      Float(100),
		MinPositionSize:      Float(1),
		MaxTotalExposure:     Float(1000),
		MaxPositions:         Int(10),
		MaxExposurePerMarket: Float(200),
	}
}

// Float returns a pointer to v, for building configs inline.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }

// Guard runs the risk checks in a fixed order, short-circuiting on the
// first failure. It keeps no state between calls and its config can be
// swapped at runtime.
type Guard struct {
	mu  sync.RWMutex
	cfg Config
}

// NewGuard creates a guard with the given configuration.
func NewGuard(cfg Config) *Guard {
	return &Guard{cfg: cfg}
}

// UpdateConfig replaces the configuration. In-flight checks finish with
// the config they started with.
func (g *Guard) UpdateConfig(cfg Config) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.cfg = cfg
}

// Config returns a copy of the current configuration.
func (g *Guard) Config() Config {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.cfg
}

// CheckSignal runs the ordered checks over a signal. It returns nil when
// all pass, or the first violation found.
func (g *Guard) CheckSignal(sig domain.Signal, ctx *strategy.Context) *Violation {
	g.mu.RLock()
	cfg := g.cfg
	g.mu.RUnlock()

	if !cfg.Enabled {
		return violation(CodeTradingDisabled, "Trading is disabled")
	}
	if v := cfg.checkMarketAllowed(sig); v != nil {
		return v
	}
	if v := cfg.checkPositionSize(sig); v != nil {
		return v
	}
	if v := cfg.checkTotalExposure(sig, ctx); v != nil {
		return v
	}
	if v := cfg.checkMaxPositions(sig, ctx); v != nil {
		return v
	}
	if v := cfg.checkMarketExposure(sig, ctx); v != nil {
		return v
	}
	if v := cfg.checkDailyLimits(); v != nil {
		return v
	}
	return cfg.checkPriceBounds(sig)
}

func (c Config) checkMarketAllowed(sig domain.Signal) *Violation {
	if slices.Contains(c.BlacklistedMarkets, sig.MarketID) {
		return violation(CodeMarketBlacklisted, "Market %s is blacklisted", sig.MarketID)
	}
	if len(c.WhitelistedMarkets) > 0 && !slices.Contains(c.WhitelistedMarkets, sig.MarketID) {
		return violation(CodeMarketNotWhitelisted, "Market %s is not whitelisted", sig.MarketID)
	}
	return nil
}

func (c Config) checkPositionSize(sig domain.Signal) *Violation {
	if c.MaxPositionSize != nil && sig.Size > *c.MaxPositionSize {
		return violation(CodePositionSizeExceeded,
			"Position size %.2f exceeds max %.2f", sig.Size, *c.MaxPositionSize)
	}
	if c.MinPositionSize != nil && sig.Size < *c.MinPositionSize {
		return violation(CodePositionSizeTooSmall,
			"Position size %.2f below min %.2f", sig.Size, *c.MinPositionSize)
	}
	return nil
}

// signalValue is the notional value of the signal. Without a price it
// assumes 1, the worst case in a binary market.
func signalValue(sig domain.Signal) float64 {
	price := 1.0
	if sig.HasPrice {
		price = sig.Price
	}
	return sig.Size * price
}

// checkTotalExposure projects total exposure after the signal. Only buys
// are capped; sells are assumed to reduce exposure.
func (c Config) checkTotalExposure(sig domain.Signal, ctx *strategy.Context) *Violation {
	if c.MaxTotalExposure == nil || sig.Side != domain.SideBuy {
		return nil
	}

	current := ctx.TotalExposure()
	value := signalValue(sig)
	if current+value > *c.MaxTotalExposure {
		return violation(CodeTotalExposure,
			"Total exposure %.2f + %.2f would exceed max %.2f",
			current, value, *c.MaxTotalExposure)
	}
	return nil
}

// checkMaxPositions only applies to buys that would open a position in a
// new token; adding to an existing position does not count.
func (c Config) checkMaxPositions(sig domain.Signal, ctx *strategy.Context) *Violation {
	if c.MaxPositions == nil || sig.Side != domain.SideBuy {
		return nil
	}
	if _, exists := ctx.Position(sig.TokenID); exists {
		return nil
	}
	if current := len(ctx.Positions); current >= *c.MaxPositions {
		return violation(CodeMaxPositions,
			"Max positions %d reached (current: %d)", *c.MaxPositions, current)
	}
	return nil
}

func (c Config) checkMarketExposure(sig domain.Signal, ctx *strategy.Context) *Violation {
	if c.MaxExposurePerMarket == nil {
		return nil
	}

	var marketExposure float64
	for _, pos := range ctx.Positions {
		if pos.MarketID == sig.MarketID {
			marketExposure += pos.CurrentValue
		}
	}

	value := signalValue(sig)
	if marketExposure+value > *c.MaxExposurePerMarket {
		return violation(CodeMarketExposure,
			"Market %s exposure %.2f + %.2f would exceed max %.2f",
			sig.MarketID, marketExposure, value, *c.MaxExposurePerMarket)
	}
	return nil
}

// checkDailyLimits always passes. NOTE: daily counters need persistent
// state the guard does not have yet; the Config fields exist so configs
// do not break once they are enforced.
func (c Config) checkDailyLimits() *Violation {
	return nil
}

// checkPriceBounds rejects prices outside [0, 1]. In a binary market the
// price is a probability.
func (c Config) checkPriceBounds(sig domain.Signal) *Violation {
	if sig.HasPrice && (sig.Price < 0 || sig.Price > 1) {
		return violation(CodeInvalidPrice, "Invalid price: %.4f", sig.Price)
	}
	return nil
}
