package strategy

import (
	"fmt"

	"github.com/alejandrodnm/polystrat/internal/domain"
)

// Momentum is a trend-following strategy driven by the crossover of a
// short and a long EMA. Entries carry stop-loss and take-profit levels;
// tracked positions are checked for breaches before any new-entry logic
// each tick. Bearish momentum never opens a short: it only exits an
// existing position.
type Momentum struct {
	Base

	shortEMAPeriods   int
	longEMAPeriods    int
	momentumThreshold float64
	positionSize      float64
	minVolume         float64
	stopLossPct       float64
	takeProfitPct     float64

	positions map[string]momentumPosition // by market ID
}

type momentumPosition struct {
	entryPrice float64
	side       domain.OrderSide
	stopLoss   float64
	takeProfit float64
}

// NewMomentum creates the strategy with its default tunables.
func NewMomentum() *Momentum {
	return &Momentum{
		shortEMAPeriods:   9,
		longEMAPeriods:    21,
		momentumThreshold: 0.05,
		positionSize:      10,
		minVolume:         500,
		stopLossPct:       0.10,
		takeProfitPct:     0.20,
		positions:         make(map[string]momentumPosition),
	}
}

func (s *Momentum) Name() string { return "momentum" }

func (s *Momentum) Initialize(cfg Config) error {
	if err := intParam(cfg.Parameters, "short_ema_periods", &s.shortEMAPeriods); err != nil {
		return err
	}
	if err := intParam(cfg.Parameters, "long_ema_periods", &s.longEMAPeriods); err != nil {
		return err
	}
	if err := floatParam(cfg.Parameters, "momentum_threshold", &s.momentumThreshold); err != nil {
		return err
	}
	if err := floatParam(cfg.Parameters, "position_size", &s.positionSize); err != nil {
		return err
	}
	if err := floatParam(cfg.Parameters, "stop_loss_pct", &s.stopLossPct); err != nil {
		return err
	}
	if err := floatParam(cfg.Parameters, "take_profit_pct", &s.takeProfitPct); err != nil {
		return err
	}
	if err := floatParam(cfg.Parameters, "min_volume", &s.minVolume); err != nil {
		return err
	}
	if s.shortEMAPeriods >= s.longEMAPeriods {
		return fmt.Errorf("momentum: short EMA period %d must be below long %d: %w",
			s.shortEMAPeriods, s.longEMAPeriods, domain.ErrInvalidInput)
	}
	return nil
}

func (s *Momentum) momentum(ctx *Context, conditionID string) (float64, bool) {
	short, ok := ctx.EMA(conditionID, s.shortEMAPeriods)
	if !ok {
		return 0, false
	}
	long, ok := ctx.EMA(conditionID, s.longEMAPeriods)
	if !ok || long == 0 {
		return 0, false
	}
	return (short - long) / long, true
}

// breachType returns the exit type if the current price crosses the
// position's stop or target. Buy positions stop below and profit above;
// sell positions are mirrored.
func (s *Momentum) breachType(pos momentumPosition, price float64) (domain.SignalType, bool) {
	switch pos.side {
	case domain.SideBuy:
		if price <= pos.stopLoss {
			return domain.SignalStopLoss, true
		}
		if price >= pos.takeProfit {
			return domain.SignalTakeProfit, true
		}
	case domain.SideSell:
		if price >= pos.stopLoss {
			return domain.SignalStopLoss, true
		}
		if price <= pos.takeProfit {
			return domain.SignalTakeProfit, true
		}
	}
	return "", false
}

func (s *Momentum) Evaluate(ctx *Context) []domain.Signal {
	var signals []domain.Signal

	for _, market := range ctx.ActiveMarkets() {
		if market.Volume24h < s.minVolume {
			continue
		}

		price, ok := market.YesPrice()
		if !ok {
			continue
		}
		tokenID := market.YesTokenID()

		// Stop/target check runs before any new-entry logic and
		// consumes the market for this tick on a breach.
		if pos, tracked := s.positions[market.ConditionID]; tracked {
			if exitType, breached := s.breachType(pos, price); breached {
				strength := domain.StrengthStrong
				reason := fmt.Sprintf("Take profit triggered at %.4f (entry: %.4f)", price, pos.entryPrice)
				if exitType == domain.SignalStopLoss {
					strength = domain.StrengthVeryStrong
					reason = fmt.Sprintf("Stop loss triggered at %.4f (entry: %.4f)", price, pos.entryPrice)
				}

				sig := s.sideSignal(pos.side.Opposite(), market.ConditionID, tokenID).
					WithType(exitType).
					WithStrength(strength).
					WithPrice(price).
					WithReason(reason)
				signals = append(signals, sig)
				continue
			}
		}

		mom, ok := s.momentum(ctx, market.ConditionID)
		if !ok {
			continue
		}

		if _, tracked := s.positions[market.ConditionID]; tracked {
			continue
		}

		switch {
		case mom > s.momentumThreshold:
			stopLoss := price * (1 - s.stopLossPct)
			takeProfit := price * (1 + s.takeProfitPct)

			strength := domain.StrengthMedium
			if mom > 2*s.momentumThreshold {
				strength = domain.StrengthStrong
			}

			sig := domain.NewBuySignal(market.ConditionID, tokenID, s.positionSize).
				WithType(domain.SignalEntry).
				WithStrength(strength).
				WithPrice(price).
				WithStopLoss(stopLoss).
				WithTakeProfit(takeProfit).
				WithReason(fmt.Sprintf("Bullish momentum: %.2f%% (threshold: %.2f%%)",
					mom*100, s.momentumThreshold*100))
			signals = append(signals, sig)

		case mom < -s.momentumThreshold:
			// Never open a short; only exit an existing position.
			if !ctx.HasPositionInMarket(market.ConditionID) {
				continue
			}

			strength := domain.StrengthMedium
			if mom < -2*s.momentumThreshold {
				strength = domain.StrengthStrong
			}

			sig := domain.NewSellSignal(market.ConditionID, tokenID, s.positionSize).
				WithType(domain.SignalExit).
				WithStrength(strength).
				WithPrice(price).
				WithReason(fmt.Sprintf("Bearish momentum: %.2f%%", mom*100))
			signals = append(signals, sig)
		}
	}

	return signals
}

func (s *Momentum) sideSignal(side domain.OrderSide, marketID, tokenID string) domain.Signal {
	if side == domain.SideBuy {
		return domain.NewBuySignal(marketID, tokenID, s.positionSize)
	}
	return domain.NewSellSignal(marketID, tokenID, s.positionSize)
}

// OnSignalExecuted tracks executed entries with their stop/target and
// clears tracking when any exit executes.
func (s *Momentum) OnSignalExecuted(sig domain.Signal, success bool) {
	if !success {
		return
	}

	switch sig.Type {
	case domain.SignalEntry:
		entryPrice := sig.Price
		stopLoss := entryPrice * (1 - s.stopLossPct)
		takeProfit := entryPrice * (1 + s.takeProfitPct)
		if sig.Side == domain.SideSell {
			stopLoss = entryPrice * (1 + s.stopLossPct)
			takeProfit = entryPrice * (1 - s.takeProfitPct)
		}
		if sig.HasStopLoss {
			stopLoss = sig.StopLoss
		}
		if sig.HasTakeProfit {
			takeProfit = sig.TakeProfit
		}

		s.positions[sig.MarketID] = momentumPosition{
			entryPrice: entryPrice,
			side:       sig.Side,
			stopLoss:   stopLoss,
			takeProfit: takeProfit,
		}
	case domain.SignalExit, domain.SignalStopLoss, domain.SignalTakeProfit:
		delete(s.positions, sig.MarketID)
	}
}

func (s *Momentum) Parameters() map[string]ParamDef {
	return map[string]ParamDef{
		"short_ema_periods": {
			Name:        "short_ema_periods",
			Description: "Periods for short-term EMA",
			Type:        ParamInteger,
			Default:     IntValue(9),
			Min:         ptr(IntValue(3)),
			Max:         ptr(IntValue(50)),
		},
		"long_ema_periods": {
			Name:        "long_ema_periods",
			Description: "Periods for long-term EMA",
			Type:        ParamInteger,
			Default:     IntValue(21),
			Min:         ptr(IntValue(10)),
			Max:         ptr(IntValue(100)),
		},
		"momentum_threshold": {
			Name:        "momentum_threshold",
			Description: "Minimum momentum for entry signal",
			Type:        ParamFloat,
			Default:     FloatValue(0.05),
			Min:         ptr(FloatValue(0.01)),
			Max:         ptr(FloatValue(0.30)),
		},
		"stop_loss_pct": {
			Name:        "stop_loss_pct",
			Description: "Stop loss percentage",
			Type:        ParamFloat,
			Default:     FloatValue(0.10),
			Min:         ptr(FloatValue(0.02)),
			Max:         ptr(FloatValue(0.50)),
		},
		"take_profit_pct": {
			Name:        "take_profit_pct",
			Description: "Take profit percentage",
			Type:        ParamFloat,
			Default:     FloatValue(0.20),
			Min:         ptr(FloatValue(0.05)),
			Max:         ptr(FloatValue(1.0)),
		},
		"position_size": {
			Name:        "position_size",
			Description: "Default position size in USDC",
			Type:        ParamDecimal,
			Default:     DecimalValue(10),
			Min:         ptr(DecimalValue(1)),
			Max:         ptr(DecimalValue(1000)),
		},
		"min_volume": {
			Name:        "min_volume",
			Description: "Minimum market volume required for trading",
			Type:        ParamDecimal,
			Default:     DecimalValue(500),
			Min:         ptr(DecimalValue(0)),
			Max:         ptr(DecimalValue(100_000)),
		},
	}
}

func (s *Momentum) SetParameter(name string, value ParamValue) error {
	switch name {
	case "short_ema_periods":
		n, ok := value.AsInt()
		if !ok {
			return expectedType("momentum", name, ParamInteger)
		}
		s.shortEMAPeriods = int(n)
	case "long_ema_periods":
		n, ok := value.AsInt()
		if !ok {
			return expectedType("momentum", name, ParamInteger)
		}
		s.longEMAPeriods = int(n)
	case "momentum_threshold":
		f, ok := value.AsFloat()
		if !ok {
			return expectedType("momentum", name, ParamFloat)
		}
		s.momentumThreshold = f
	case "stop_loss_pct":
		f, ok := value.AsFloat()
		if !ok {
			return expectedType("momentum", name, ParamFloat)
		}
		s.stopLossPct = f
	case "take_profit_pct":
		f, ok := value.AsFloat()
		if !ok {
			return expectedType("momentum", name, ParamFloat)
		}
		s.takeProfitPct = f
	case "position_size":
		f, ok := value.AsFloat()
		if !ok {
			return expectedType("momentum", name, ParamDecimal)
		}
		s.positionSize = f
	case "min_volume":
		f, ok := value.AsFloat()
		if !ok {
			return expectedType("momentum", name, ParamDecimal)
		}
		s.minVolume = f
	default:
		return unknownParam("momentum", name)
	}
	return nil
}
