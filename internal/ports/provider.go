package ports

import (
	"context"

	"github.com/alejandrodnm/polystrat/internal/domain"
)

// SnapshotProvider agrega el estado de mercado que alimenta cada tick.
type SnapshotProvider interface {
	// Snapshot devuelve los mercados, posiciones y órdenes actuales más
	// el balance disponible. Se llama una vez por tick.
	Snapshot(ctx context.Context) (
		markets []domain.MarketSnapshot,
		positions []domain.PositionSnapshot,
		orders []domain.OrderSnapshot,
		balance float64,
		err error,
	)

	// PriceHistory devuelve las series de precios por condition ID para
	// calcular indicadores. Puede devolver series vacías si el provider
	// no mantiene histórico.
	PriceHistory(ctx context.Context) (map[string][]domain.PricePoint, error)
}
