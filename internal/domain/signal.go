package domain

import (
	"time"

	"github.com/google/uuid"
)

// SignalType clasifica la intención de una señal.
type SignalType string

const (
	SignalEntry      SignalType = "entry"
	SignalExit       SignalType = "exit"
	SignalStopLoss   SignalType = "stop_loss"
	SignalTakeProfit SignalType = "take_profit"
	SignalRebalance  SignalType = "rebalance"
)

// SignalStrength es la convicción de la estrategia en la señal.
type SignalStrength string

const (
	StrengthWeak       SignalStrength = "weak"
	StrengthMedium     SignalStrength = "medium"
	StrengthStrong     SignalStrength = "strong"
	StrengthVeryStrong SignalStrength = "very_strong"
)

// SignalMetadata lleva contexto auxiliar de la señal: indicadores en el
// momento de emisión y notas libres.
type SignalMetadata struct {
	Indicators map[string]float64
	Notes      []string
}

// Signal es la propuesta de trade de una estrategia, pendiente de
// aprobación de riesgo y ejecución. Inmutable tras su creación salvo
// StrategyName, que asigna el engine al recolectarla.
//
// Ciclo de vida: creada en Evaluate → rechazada por el RiskGuard
// (descartada) o encolada en pending → consumida exactamente una vez
// por ejecución, o descartada por expiración/clear.
type Signal struct {
	ID            string
	StrategyName  string
	MarketID      string
	TokenID       string
	Side          OrderSide
	Type          SignalType
	Strength      SignalStrength
	Price         float64
	HasPrice      bool
	Size          float64
	StopLoss      float64
	HasStopLoss   bool
	TakeProfit    float64
	HasTakeProfit bool
	TTL           time.Duration // 0 = sin expiración
	CreatedAt     time.Time
	Reason        string
	Metadata      SignalMetadata
}

// NewBuySignal crea una señal de compra con defaults: tipo entry,
// fuerza medium, sin precio ni TTL.
func NewBuySignal(marketID, tokenID string, size float64) Signal {
	return newSignal(marketID, tokenID, SideBuy, size)
}

// NewSellSignal crea una señal de venta.
func NewSellSignal(marketID, tokenID string, size float64) Signal {
	return newSignal(marketID, tokenID, SideSell, size)
}

func newSignal(marketID, tokenID string, side OrderSide, size float64) Signal {
	return Signal{
		ID:        uuid.New().String(),
		MarketID:  marketID,
		TokenID:   tokenID,
		Side:      side,
		Type:      SignalEntry,
		Strength:  StrengthMedium,
		Size:      size,
		CreatedAt: time.Now(),
		Metadata:  SignalMetadata{Indicators: make(map[string]float64)},
	}
}

// WithType fija el tipo de señal.
func (s Signal) WithType(t SignalType) Signal {
	s.Type = t
	return s
}

// WithStrength fija la fuerza de la señal.
func (s Signal) WithStrength(st SignalStrength) Signal {
	s.Strength = st
	return s
}

// WithPrice fija el precio límite de la señal.
func (s Signal) WithPrice(price float64) Signal {
	s.Price = price
	s.HasPrice = true
	return s
}

// WithStopLoss fija el stop loss sugerido.
func (s Signal) WithStopLoss(price float64) Signal {
	s.StopLoss = price
	s.HasStopLoss = true
	return s
}

// WithTakeProfit fija el take profit sugerido.
func (s Signal) WithTakeProfit(price float64) Signal {
	s.TakeProfit = price
	s.HasTakeProfit = true
	return s
}

// WithTTL fija la ventana de validez de la señal.
func (s Signal) WithTTL(ttl time.Duration) Signal {
	s.TTL = ttl
	return s
}

// WithReason fija la explicación legible de la señal.
func (s Signal) WithReason(reason string) Signal {
	s.Reason = reason
	return s
}

// WithIndicator registra el valor de un indicador en el momento de
// emitir la señal. Las estrategias lo recuperan en OnSignalExecuted.
func (s Signal) WithIndicator(name string, value float64) Signal {
	// copia para no compartir el mapa entre señales derivadas
	indicators := make(map[string]float64, len(s.Metadata.Indicators)+1)
	for k, v := range s.Metadata.Indicators {
		indicators[k] = v
	}
	indicators[name] = value
	s.Metadata.Indicators = indicators
	return s
}

// Indicator devuelve el valor registrado de un indicador.
func (s Signal) Indicator(name string) (float64, bool) {
	v, ok := s.Metadata.Indicators[name]
	return v, ok
}

// Expired devuelve true si la señal superó su TTL en el instante now.
// La expiración se evalúa lazy en el drain, no hay eviction activa.
func (s Signal) Expired(now time.Time) bool {
	if s.TTL <= 0 {
		return false
	}
	return now.Sub(s.CreatedAt) >= s.TTL
}
