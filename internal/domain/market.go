package domain

import "time"

// MarketStatus es el estado de un mercado de predicción.
type MarketStatus string

const (
	MarketActive   MarketStatus = "active"
	MarketClosed   MarketStatus = "closed"
	MarketResolved MarketStatus = "resolved"
	MarketPaused   MarketStatus = "paused"
)

// OrderSide indica el lado de una orden o señal.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// Opposite devuelve el lado contrario.
func (s OrderSide) Opposite() OrderSide {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderType es el tipo de orden soportado por el sink de ejecución.
type OrderType string

const (
	OrderLimit  OrderType = "LIMIT"
	OrderMarket OrderType = "MARKET"
)

// OrderStatus es el estado de una orden abierta.
type OrderStatus string

const (
	OrderOpen            OrderStatus = "OPEN"
	OrderPartiallyFilled OrderStatus = "PARTIAL"
	OrderFilled          OrderStatus = "FILLED"
	OrderCancelled       OrderStatus = "CANCELLED"
)

// OrderRequest es la petición de orden que el engine despacha al sink
// externo. Price es obligatorio para órdenes limit.
type OrderRequest struct {
	MarketID  string
	TokenID   string
	Side      OrderSide
	Price     float64
	Size      float64
	OrderType OrderType
}

// MarketSnapshot es la proyección inmutable de un mercado para un tick.
type MarketSnapshot struct {
	ConditionID string
	Question    string
	Status      MarketStatus
	TokenIDs    []string
	TokenNames  []string
	TokenPrices []float64 // mid price por outcome, mismo orden que TokenIDs
	Volume24h   float64
	Liquidity   float64
	Spread      float64 // 0 si el feed no lo publica
	HasSpread   bool
	EndDate     time.Time
}

// YesPrice devuelve el precio del primer outcome (convención: YES).
func (m MarketSnapshot) YesPrice() (float64, bool) {
	if len(m.TokenPrices) == 0 {
		return 0, false
	}
	return m.TokenPrices[0], true
}

// NoPrice devuelve el precio del segundo outcome.
func (m MarketSnapshot) NoPrice() (float64, bool) {
	if len(m.TokenPrices) < 2 {
		return 0, false
	}
	return m.TokenPrices[1], true
}

// YesTokenID devuelve el token ID del primer outcome, o "" si no hay.
func (m MarketSnapshot) YesTokenID() string {
	if len(m.TokenIDs) == 0 {
		return ""
	}
	return m.TokenIDs[0]
}

// IsTradeable devuelve true si el mercado acepta órdenes.
func (m MarketSnapshot) IsTradeable() bool {
	return m.Status == MarketActive
}

// PositionSnapshot es la proyección inmutable de una posición abierta.
type PositionSnapshot struct {
	MarketID      string
	TokenID       string
	Size          float64
	AvgPrice      float64
	CurrentPrice  float64
	CurrentValue  float64
	UnrealizedPnL float64
	PnLPercent    float64
}

// IsProfitable devuelve true si la posición va en beneficio.
func (p PositionSnapshot) IsProfitable() bool {
	return p.UnrealizedPnL > 0
}

// OrderSnapshot es la proyección inmutable de una orden.
type OrderSnapshot struct {
	OrderID       string
	MarketID      string
	TokenID       string
	Side          OrderSide
	Price         float64
	OriginalSize  float64
	RemainingSize float64
	FilledSize    float64
	Status        OrderStatus
	CreatedAt     time.Time
}

// IsOpen devuelve true si la orden sigue viva en el book.
func (o OrderSnapshot) IsOpen() bool {
	return o.Status == OrderOpen || o.Status == OrderPartiallyFilled
}

// FillPercent devuelve el porcentaje llenado de la orden.
func (o OrderSnapshot) FillPercent() float64 {
	if o.OriginalSize == 0 {
		return 0
	}
	return o.FilledSize / o.OriginalSize * 100
}

// PricePoint es un punto de la serie histórica de precios de un mercado.
// Las series son append-only y cronológicas.
type PricePoint struct {
	Timestamp time.Time
	Price     float64
	Volume    float64
}
