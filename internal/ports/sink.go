package ports

import (
	"context"

	"github.com/alejandrodnm/polystrat/internal/domain"
)

// ActionSink despacha las órdenes aprobadas hacia el ejecutor externo.
// El engine no sabe si detrás hay un exchange real o un simulador.
type ActionSink interface {
	// PlaceOrder envía una orden limit al ejecutor. Un error aquí es de
	// canal: el engine lo propaga al llamador sin reintentar.
	PlaceOrder(ctx context.Context, req domain.OrderRequest) error
}
