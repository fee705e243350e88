package domain

import "time"

// PriceLevel es un nivel de precio del orderbook.
// Para mercados binarios el precio está siempre en [0,1].
type PriceLevel struct {
	Price float64
	Size  float64
}

// Value devuelve el valor total del nivel (price × size).
func (l PriceLevel) Value() float64 {
	return l.Price * l.Size
}

// OrderBookDepth representa la profundidad del libro de órdenes de un token.
// El feed upstream garantiza el orden de los niveles: bids de mayor a menor
// precio, asks de menor a mayor. Aquí no se reordena nada.
type OrderBookDepth struct {
	MarketID  string
	TokenID   string
	Hash      string // hash del book para sincronización con el feed
	Timestamp time.Time
	LastTrade float64 // último precio cruzado, 0 si no hay
	Bids      []PriceLevel
	Asks      []PriceLevel
}

// NewOrderBookDepth crea un book vacío para un token.
func NewOrderBookDepth(marketID, tokenID string) OrderBookDepth {
	return OrderBookDepth{
		MarketID:  marketID,
		TokenID:   tokenID,
		Timestamp: time.Now(),
	}
}

// BestBid devuelve el mejor bid (mayor precio de compra).
func (b OrderBookDepth) BestBid() (PriceLevel, bool) {
	if len(b.Bids) == 0 {
		return PriceLevel{}, false
	}
	return b.Bids[0], true
}

// BestAsk devuelve el mejor ask (menor precio de venta).
func (b OrderBookDepth) BestAsk() (PriceLevel, bool) {
	if len(b.Asks) == 0 {
		return PriceLevel{}, false
	}
	return b.Asks[0], true
}

// BestBidPrice devuelve el precio del mejor bid.
func (b OrderBookDepth) BestBidPrice() (float64, bool) {
	lvl, ok := b.BestBid()
	return lvl.Price, ok
}

// BestAskPrice devuelve el precio del mejor ask.
func (b OrderBookDepth) BestAskPrice() (float64, bool) {
	lvl, ok := b.BestAsk()
	return lvl.Price, ok
}

// MidPrice devuelve el punto medio entre best bid y best ask.
// Con un solo lado disponible usa ese lado; sin ninguno, cae al último
// precio cruzado. Devuelve ok=false si no hay ninguna referencia.
func (b OrderBookDepth) MidPrice() (float64, bool) {
	bid, hasBid := b.BestBidPrice()
	ask, hasAsk := b.BestAskPrice()

	switch {
	case hasBid && hasAsk:
		return (bid + ask) / 2, true
	case hasBid:
		return bid, true
	case hasAsk:
		return ask, true
	case b.LastTrade > 0:
		return b.LastTrade, true
	default:
		return 0, false
	}
}

// Spread devuelve ask - bid. Necesita ambos lados.
func (b OrderBookDepth) Spread() (float64, bool) {
	bid, hasBid := b.BestBidPrice()
	ask, hasAsk := b.BestAskPrice()
	if !hasBid || !hasAsk {
		return 0, false
	}
	return ask - bid, true
}

// SpreadPercent devuelve el spread como porcentaje del mid price.
func (b OrderBookDepth) SpreadPercent() (float64, bool) {
	spread, ok := b.Spread()
	if !ok {
		return 0, false
	}
	mid, ok := b.MidPrice()
	if !ok || mid == 0 {
		return 0, false
	}
	return spread / mid * 100, true
}

// BidVolume suma el size de los primeros depth niveles del lado bid.
func (b OrderBookDepth) BidVolume(depth int) float64 {
	return sumVolume(b.Bids, depth)
}

// AskVolume suma el size de los primeros depth niveles del lado ask.
func (b OrderBookDepth) AskVolume(depth int) float64 {
	return sumVolume(b.Asks, depth)
}

// BidLiquidity suma el valor (price × size) de los primeros depth niveles bid.
func (b OrderBookDepth) BidLiquidity(depth int) float64 {
	return sumValue(b.Bids, depth)
}

// AskLiquidity suma el valor (price × size) de los primeros depth niveles ask.
func (b OrderBookDepth) AskLiquidity(depth int) float64 {
	return sumValue(b.Asks, depth)
}

// TotalLiquidity devuelve la liquidez bid + ask hasta depth niveles.
func (b OrderBookDepth) TotalLiquidity(depth int) float64 {
	return b.BidLiquidity(depth) + b.AskLiquidity(depth)
}

// Imbalance devuelve (bidVol - askVol) / (bidVol + askVol) sobre los
// primeros depth niveles por lado. Rango [-1, 1]: positivo indica presión
// compradora. ok=false si el volumen total es cero.
func (b OrderBookDepth) Imbalance(depth int) (float64, bool) {
	bidVol := b.BidVolume(depth)
	askVol := b.AskVolume(depth)
	total := bidVol + askVol
	if total == 0 {
		return 0, false
	}
	return (bidVol - askVol) / total, true
}

// VWAPBuy devuelve el precio medio ponderado para comprar size shares
// caminando el lado ask. Si no hay liquidez suficiente devuelve el VWAP
// del fill parcial.
func (b OrderBookDepth) VWAPBuy(size float64) (float64, bool) {
	return vwap(b.Asks, size)
}

// VWAPSell devuelve el precio medio ponderado para vender size shares
// caminando el lado bid.
func (b OrderBookDepth) VWAPSell(size float64) (float64, bool) {
	return vwap(b.Bids, size)
}

// SlippageBuy estima el slippage porcentual de una compra de size shares
// respecto al mejor ask. Positivo = peor que el mejor precio.
func (b OrderBookDepth) SlippageBuy(size float64) (float64, bool) {
	vw, ok := b.VWAPBuy(size)
	if !ok {
		return 0, false
	}
	best, ok := b.BestAskPrice()
	if !ok || best == 0 {
		return 0, false
	}
	return (vw - best) / best * 100, true
}

// SlippageSell estima el slippage porcentual de una venta de size shares
// respecto al mejor bid. La fórmula está invertida respecto a la de compra;
// no son transformaciones simétricas.
func (b OrderBookDepth) SlippageSell(size float64) (float64, bool) {
	vw, ok := b.VWAPSell(size)
	if !ok {
		return 0, false
	}
	best, ok := b.BestBidPrice()
	if !ok || best == 0 {
		return 0, false
	}
	return (best - vw) / best * 100, true
}

// CumulativeBids devuelve pares (precio, size acumulado) por nivel bid.
func (b OrderBookDepth) CumulativeBids() []PriceLevel {
	return cumulative(b.Bids)
}

// CumulativeAsks devuelve pares (precio, size acumulado) por nivel ask.
func (b OrderBookDepth) CumulativeAsks() []PriceLevel {
	return cumulative(b.Asks)
}

// BidDepth devuelve el número de niveles del lado bid.
func (b OrderBookDepth) BidDepth() int {
	return len(b.Bids)
}

// AskDepth devuelve el número de niveles del lado ask.
func (b OrderBookDepth) AskDepth() int {
	return len(b.Asks)
}

// IsEmpty devuelve true si el book no tiene niveles en ningún lado.
func (b OrderBookDepth) IsEmpty() bool {
	return len(b.Bids) == 0 && len(b.Asks) == 0
}

// BookStats es el resumen estadístico de un book a una profundidad dada.
type BookStats struct {
	BestBid       float64
	BestAsk       float64
	MidPrice      float64
	Spread        float64
	SpreadPercent float64
	BidLiquidity  float64
	AskLiquidity  float64
	Imbalance     float64
	HasImbalance  bool
	BidDepth      int
	AskDepth      int
}

// Stats calcula el resumen del book sobre los primeros depth niveles.
// Los campos opcionales quedan a cero cuando no hay referencia.
func (b OrderBookDepth) Stats(depth int) BookStats {
	s := BookStats{
		BidLiquidity: b.BidLiquidity(depth),
		AskLiquidity: b.AskLiquidity(depth),
		BidDepth:     b.BidDepth(),
		AskDepth:     b.AskDepth(),
	}
	s.BestBid, _ = b.BestBidPrice()
	s.BestAsk, _ = b.BestAskPrice()
	s.MidPrice, _ = b.MidPrice()
	s.Spread, _ = b.Spread()
	s.SpreadPercent, _ = b.SpreadPercent()
	s.Imbalance, s.HasImbalance = b.Imbalance(depth)
	return s
}

// vwap camina los niveles en el orden dado llenando min(remaining, size)
// por nivel. Para por agotamiento o al completar el target; el resultado
// es la media ponderada sobre lo efectivamente llenado.
func vwap(levels []PriceLevel, targetSize float64) (float64, bool) {
	if len(levels) == 0 || targetSize == 0 {
		return 0, false
	}

	remaining := targetSize
	totalValue := 0.0
	totalSize := 0.0

	for _, lvl := range levels {
		fill := min(remaining, lvl.Size)
		totalValue += lvl.Price * fill
		totalSize += fill
		remaining -= fill
		if remaining == 0 {
			break
		}
	}

	if totalSize == 0 {
		return 0, false
	}
	return totalValue / totalSize, true
}

func sumVolume(levels []PriceLevel, depth int) float64 {
	var total float64
	for i, lvl := range levels {
		if i >= depth {
			break
		}
		total += lvl.Size
	}
	return total
}

func sumValue(levels []PriceLevel, depth int) float64 {
	var total float64
	for i, lvl := range levels {
		if i >= depth {
			break
		}
		total += lvl.Value()
	}
	return total
}

func cumulative(levels []PriceLevel) []PriceLevel {
	out := make([]PriceLevel, 0, len(levels))
	var running float64
	for _, lvl := range levels {
		running += lvl.Size
		out = append(out, PriceLevel{Price: lvl.Price, Size: running})
	}
	return out
}
