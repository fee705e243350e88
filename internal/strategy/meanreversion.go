package strategy

import (
	"fmt"

	"github.com/alejandrodnm/polystrat/internal/domain"
)

// MeanReversion trades deviations of a market's price from its moving
// average, betting on reversion to the mean. It tracks one entry per
// market and emits a single exit once price reverts within the exit
// threshold of the average observed at entry.
type MeanReversion struct {
	Base

	maPeriods      int
	entryThreshold float64
	exitThreshold  float64
	positionSize   float64
	minLiquidity   float64

	entered map[string]reversionEntry // by market ID
}

type reversionEntry struct {
	entryPrice float64
	side       domain.OrderSide
	maAtEntry  float64
}

// NewMeanReversion creates the strategy with its default tunables.
func NewMeanReversion() *MeanReversion {
	return &MeanReversion{
		maPeriods:      20,
		entryThreshold: 0.10,
		exitThreshold:  0.02,
		positionSize:   10,
		minLiquidity:   1000,
		entered:        make(map[string]reversionEntry),
	}
}

func (s *MeanReversion) Name() string { return "mean_reversion" }

// Initialize reads the declared parameters from the config, keeping
// defaults for absent keys.
func (s *MeanReversion) Initialize(cfg Config) error {
	if err := intParam(cfg.Parameters, "ma_periods", &s.maPeriods); err != nil {
		return err
	}
	if err := floatParam(cfg.Parameters, "entry_threshold", &s.entryThreshold); err != nil {
		return err
	}
	if err := floatParam(cfg.Parameters, "exit_threshold", &s.exitThreshold); err != nil {
		return err
	}
	if err := floatParam(cfg.Parameters, "position_size", &s.positionSize); err != nil {
		return err
	}
	if err := floatParam(cfg.Parameters, "min_liquidity", &s.minLiquidity); err != nil {
		return err
	}
	if s.entryThreshold <= 0 || s.exitThreshold <= 0 {
		return fmt.Errorf("mean_reversion: thresholds must be positive: %w", domain.ErrInvalidInput)
	}
	return nil
}

func deviation(current, ma float64) float64 {
	if ma == 0 {
		return 0
	}
	return (current - ma) / ma
}

// Evaluate scans active markets for entries and tracked markets for
// exits. Exits clear the tracked entry immediately so each entry yields
// exactly one exit signal.
func (s *MeanReversion) Evaluate(ctx *Context) []domain.Signal {
	var signals []domain.Signal

	for _, market := range ctx.ActiveMarkets() {
		if market.Liquidity < s.minLiquidity {
			continue
		}

		price, ok := market.YesPrice()
		if !ok {
			continue
		}
		tokenID := market.YesTokenID()

		if entry, tracked := s.entered[market.ConditionID]; tracked {
			exitDev := deviation(price, entry.maAtEntry)
			if abs(exitDev) < s.exitThreshold {
				sig := s.exitSignal(market.ConditionID, tokenID, entry.side.Opposite()).
					WithPrice(price).
					WithReason(fmt.Sprintf(
						"Mean reversion exit: deviation %.2f%% (threshold %.2f%%)",
						exitDev*100, s.exitThreshold*100))
				signals = append(signals, sig)
				delete(s.entered, market.ConditionID)
			}
			continue
		}

		ma, ok := ctx.SMA(market.ConditionID, s.maPeriods)
		if !ok {
			continue
		}

		dev := deviation(price, ma)
		if abs(dev) <= s.entryThreshold {
			continue
		}

		side := domain.SideSell
		reason := fmt.Sprintf("Mean reversion entry: price %.2f%% above MA", dev*100)
		if dev < 0 {
			// price below MA: expect reversion up
			side = domain.SideBuy
			reason = fmt.Sprintf("Mean reversion entry: price %.2f%% below MA", abs(dev)*100)
		}

		strength := domain.StrengthMedium
		if abs(dev) > 2*s.entryThreshold {
			strength = domain.StrengthStrong
		}

		sig := s.entrySignal(market.ConditionID, tokenID, side).
			WithStrength(strength).
			WithPrice(price).
			WithReason(reason).
			WithIndicator("ma_at_entry", ma)
		signals = append(signals, sig)
	}

	return signals
}

func (s *MeanReversion) entrySignal(marketID, tokenID string, side domain.OrderSide) domain.Signal {
	sig := domain.NewSellSignal(marketID, tokenID, s.positionSize)
	if side == domain.SideBuy {
		sig = domain.NewBuySignal(marketID, tokenID, s.positionSize)
	}
	return sig.WithType(domain.SignalEntry)
}

func (s *MeanReversion) exitSignal(marketID, tokenID string, side domain.OrderSide) domain.Signal {
	sig := domain.NewSellSignal(marketID, tokenID, s.positionSize)
	if side == domain.SideBuy {
		sig = domain.NewBuySignal(marketID, tokenID, s.positionSize)
	}
	return sig.WithType(domain.SignalExit).WithStrength(domain.StrengthMedium)
}

// OnSignalExecuted starts tracking an entry once it actually executed.
func (s *MeanReversion) OnSignalExecuted(sig domain.Signal, success bool) {
	if !success {
		return
	}

	switch sig.Type {
	case domain.SignalEntry:
		ma, ok := sig.Indicator("ma_at_entry")
		if !ok {
			ma = sig.Price
		}
		s.entered[sig.MarketID] = reversionEntry{
			entryPrice: sig.Price,
			side:       sig.Side,
			maAtEntry:  ma,
		}
	case domain.SignalExit:
		delete(s.entered, sig.MarketID)
	}
}

func (s *MeanReversion) Parameters() map[string]ParamDef {
	return map[string]ParamDef{
		"ma_periods": {
			Name:        "ma_periods",
			Description: "Number of periods for moving average",
			Type:        ParamInteger,
			Default:     IntValue(20),
			Min:         ptr(IntValue(5)),
			Max:         ptr(IntValue(100)),
		},
		"entry_threshold": {
			Name:        "entry_threshold",
			Description: "Deviation from MA required for entry (as decimal)",
			Type:        ParamFloat,
			Default:     FloatValue(0.10),
			Min:         ptr(FloatValue(0.01)),
			Max:         ptr(FloatValue(0.50)),
		},
		"exit_threshold": {
			Name:        "exit_threshold",
			Description: "Deviation from MA for exit (as decimal)",
			Type:        ParamFloat,
			Default:     FloatValue(0.02),
			Min:         ptr(FloatValue(0.005)),
			Max:         ptr(FloatValue(0.10)),
		},
		"position_size": {
			Name:        "position_size",
			Description: "Default position size in USDC",
			Type:        ParamDecimal,
			Default:     DecimalValue(10),
			Min:         ptr(DecimalValue(1)),
			Max:         ptr(DecimalValue(1000)),
		},
		"min_liquidity": {
			Name:        "min_liquidity",
			Description: "Minimum market liquidity required for trading",
			Type:        ParamDecimal,
			Default:     DecimalValue(1000),
			Min:         ptr(DecimalValue(0)),
			Max:         ptr(DecimalValue(1_000_000)),
		},
	}
}

func (s *MeanReversion) SetParameter(name string, value ParamValue) error {
	switch name {
	case "ma_periods":
		n, ok := value.AsInt()
		if !ok {
			return expectedType("mean_reversion", name, ParamInteger)
		}
		s.maPeriods = int(n)
	case "entry_threshold":
		f, ok := value.AsFloat()
		if !ok {
			return expectedType("mean_reversion", name, ParamFloat)
		}
		s.entryThreshold = f
	case "exit_threshold":
		f, ok := value.AsFloat()
		if !ok {
			return expectedType("mean_reversion", name, ParamFloat)
		}
		s.exitThreshold = f
	case "position_size":
		f, ok := value.AsFloat()
		if !ok {
			return expectedType("mean_reversion", name, ParamDecimal)
		}
		s.positionSize = f
	case "min_liquidity":
		f, ok := value.AsFloat()
		if !ok {
			return expectedType("mean_reversion", name, ParamDecimal)
		}
		s.minLiquidity = f
	default:
		return unknownParam("mean_reversion", name)
	}
	return nil
}

func expectedType(strat, name string, want ParamType) error {
	return fmt.Errorf("%s: parameter %q: expected %s: %w", strat, name, want, domain.ErrInvalidInput)
}

func unknownParam(strat, name string) error {
	return fmt.Errorf("%s: unknown parameter %q: %w", strat, name, domain.ErrInvalidInput)
}

func ptr(v ParamValue) *ParamValue { return &v }

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
