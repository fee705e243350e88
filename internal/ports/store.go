package ports

import (
	"context"

	"github.com/alejandrodnm/polystrat/internal/domain"
)

// SignalStore persiste el historial de señales para auditoría.
type SignalStore interface {
	// SaveRecords guarda un lote de registros. Upsert por ID de señal:
	// reescribir un registro ya guardado es idempotente.
	SaveRecords(ctx context.Context, records []domain.SignalRecord) error

	// History devuelve los últimos registros guardados, los más
	// recientes primero.
	History(ctx context.Context, limit int) ([]domain.SignalRecord, error)

	Close() error
}
