package strategy

import (
	"fmt"
	"time"

	"github.com/alejandrodnm/polystrat/internal/domain"
)

// quoteTTL expires unfilled quotes so stale prices leave the queue.
const quoteTTL = 5 * time.Minute

// minQuoteSize suppresses dust quotes after inventory damping.
const minQuoteSize = 0.1

// Spread is a market-making strategy: it quotes both sides around the
// mid price of each eligible market and earns the bid-ask spread.
// Inventory per market damps the side that would grow the imbalance and
// halts quoting entirely at the imbalance cap.
type Spread struct {
	Base

	minSpread    float64
	bidOffset    float64
	askOffset    float64
	orderSize    float64
	minLiquidity float64
	maxImbalance float64

	inventory map[string]float64 // net signed inventory by market ID
}

// NewSpread creates the strategy with its default tunables.
func NewSpread() *Spread {
	return &Spread{
		minSpread:    0.02,
		bidOffset:    0.01,
		askOffset:    0.01,
		orderSize:    5,
		minLiquidity: 1000,
		maxImbalance: 50,
		inventory:    make(map[string]float64),
	}
}

func (s *Spread) Name() string { return "spread" }

func (s *Spread) Initialize(cfg Config) error {
	if err := floatParam(cfg.Parameters, "min_spread", &s.minSpread); err != nil {
		return err
	}
	if err := floatParam(cfg.Parameters, "bid_offset", &s.bidOffset); err != nil {
		return err
	}
	if err := floatParam(cfg.Parameters, "ask_offset", &s.askOffset); err != nil {
		return err
	}
	if err := floatParam(cfg.Parameters, "order_size", &s.orderSize); err != nil {
		return err
	}
	if err := floatParam(cfg.Parameters, "min_liquidity", &s.minLiquidity); err != nil {
		return err
	}
	if err := floatParam(cfg.Parameters, "max_inventory_imbalance", &s.maxImbalance); err != nil {
		return err
	}
	if s.maxImbalance <= 0 {
		return fmt.Errorf("spread: max_inventory_imbalance must be positive: %w", domain.ErrInvalidInput)
	}
	return nil
}

// impliedSpread uses the feed's quoted spread when present, otherwise
// estimates one that widens near the price extremes.
func impliedSpread(market domain.MarketSnapshot, mid float64) float64 {
	if market.HasSpread {
		return market.Spread
	}
	return 0.02 + abs(mid-0.5)*0.1
}

// dampedSize reduces the quote size on the side that would increase the
// current imbalance, by min(|inventory|/cap, 0.8).
func (s *Spread) dampedSize(inventory float64, side domain.OrderSide) float64 {
	ratio := min(abs(inventory)/s.maxImbalance, 0.8)
	switch {
	case side == domain.SideBuy && inventory > 0:
		return s.orderSize * (1 - ratio)
	case side == domain.SideSell && inventory < 0:
		return s.orderSize * (1 - ratio)
	default:
		return s.orderSize
	}
}

func (s *Spread) Evaluate(ctx *Context) []domain.Signal {
	var signals []domain.Signal

	for _, market := range ctx.ActiveMarkets() {
		if market.Liquidity < s.minLiquidity {
			continue
		}

		mid, ok := market.YesPrice()
		if !ok {
			continue
		}
		tokenID := market.YesTokenID()

		if impliedSpread(market, mid) < s.minSpread {
			continue
		}

		bidPrice := mid - s.bidOffset
		askPrice := mid + s.askOffset
		if bidPrice <= 0 || askPrice >= 1 {
			continue
		}

		inventory := s.inventory[market.ConditionID]
		if abs(inventory) >= s.maxImbalance {
			continue
		}

		spreadPct := impliedSpread(market, mid) * 100

		if bidSize := s.dampedSize(inventory, domain.SideBuy); bidSize > minQuoteSize {
			sig := domain.NewBuySignal(market.ConditionID, tokenID, bidSize).
				WithStrength(domain.StrengthWeak).
				WithPrice(bidPrice).
				WithTTL(quoteTTL).
				WithReason(fmt.Sprintf("Spread bid: %.4f (mid: %.4f, spread: %.2f%%)",
					bidPrice, mid, spreadPct))
			signals = append(signals, sig)
		}

		if askSize := s.dampedSize(inventory, domain.SideSell); askSize > minQuoteSize {
			sig := domain.NewSellSignal(market.ConditionID, tokenID, askSize).
				WithStrength(domain.StrengthWeak).
				WithPrice(askPrice).
				WithTTL(quoteTTL).
				WithReason(fmt.Sprintf("Spread ask: %.4f (mid: %.4f, spread: %.2f%%)",
					askPrice, mid, spreadPct))
			signals = append(signals, sig)
		}
	}

	return signals
}

// OnSignalExecuted keeps the per-market net inventory in sync with the
// quotes that actually executed.
func (s *Spread) OnSignalExecuted(sig domain.Signal, success bool) {
	if !success {
		return
	}

	delta := sig.Size
	if sig.Side == domain.SideSell {
		delta = -sig.Size
	}
	s.inventory[sig.MarketID] += delta
}

// Inventory returns the current net inventory in a market. Mainly useful
// for tests and reporting.
func (s *Spread) Inventory(marketID string) float64 {
	return s.inventory[marketID]
}

func (s *Spread) Parameters() map[string]ParamDef {
	return map[string]ParamDef{
		"min_spread": {
			Name:        "min_spread",
			Description: "Minimum spread required to place orders",
			Type:        ParamFloat,
			Default:     FloatValue(0.02),
			Min:         ptr(FloatValue(0.005)),
			Max:         ptr(FloatValue(0.20)),
		},
		"bid_offset": {
			Name:        "bid_offset",
			Description: "Offset below mid-price for bid orders",
			Type:        ParamFloat,
			Default:     FloatValue(0.01),
			Min:         ptr(FloatValue(0.001)),
			Max:         ptr(FloatValue(0.10)),
		},
		"ask_offset": {
			Name:        "ask_offset",
			Description: "Offset above mid-price for ask orders",
			Type:        ParamFloat,
			Default:     FloatValue(0.01),
			Min:         ptr(FloatValue(0.001)),
			Max:         ptr(FloatValue(0.10)),
		},
		"order_size": {
			Name:        "order_size",
			Description: "Size per order in USDC",
			Type:        ParamFloat,
			Default:     FloatValue(5.0),
			Min:         ptr(FloatValue(1.0)),
			Max:         ptr(FloatValue(100.0)),
		},
		"max_inventory_imbalance": {
			Name:        "max_inventory_imbalance",
			Description: "Maximum inventory imbalance allowed",
			Type:        ParamFloat,
			Default:     FloatValue(50.0),
			Min:         ptr(FloatValue(10.0)),
			Max:         ptr(FloatValue(500.0)),
		},
		"min_liquidity": {
			Name:        "min_liquidity",
			Description: "Minimum market liquidity required for quoting",
			Type:        ParamDecimal,
			Default:     DecimalValue(1000),
			Min:         ptr(DecimalValue(0)),
			Max:         ptr(DecimalValue(1_000_000)),
		},
	}
}

func (s *Spread) SetParameter(name string, value ParamValue) error {
	switch name {
	case "min_spread":
		f, ok := value.AsFloat()
		if !ok {
			return expectedType("spread", name, ParamFloat)
		}
		s.minSpread = f
	case "bid_offset":
		f, ok := value.AsFloat()
		if !ok {
			return expectedType("spread", name, ParamFloat)
		}
		s.bidOffset = f
	case "ask_offset":
		f, ok := value.AsFloat()
		if !ok {
			return expectedType("spread", name, ParamFloat)
		}
		s.askOffset = f
	case "order_size":
		f, ok := value.AsFloat()
		if !ok {
			return expectedType("spread", name, ParamFloat)
		}
		s.orderSize = f
	case "max_inventory_imbalance":
		f, ok := value.AsFloat()
		if !ok {
			return expectedType("spread", name, ParamFloat)
		}
		s.maxImbalance = f
	case "min_liquidity":
		f, ok := value.AsFloat()
		if !ok {
			return expectedType("spread", name, ParamDecimal)
		}
		s.minLiquidity = f
	default:
		return unknownParam("spread", name)
	}
	return nil
}
