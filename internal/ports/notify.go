package ports

import (
	"context"

	"github.com/alejandrodnm/polystrat/internal/domain"
)

// Notifier presenta el resultado de un tick al usuario.
type Notifier interface {
	// Notify muestra el estado de las estrategias y las señales
	// ejecutadas. En la implementación de consola imprime una tabla.
	Notify(ctx context.Context, report domain.Report) error
}
