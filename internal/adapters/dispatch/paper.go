package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/alejandrodnm/polystrat/internal/domain"
)

// Paper is a dry-run sink: it accepts every valid order, logs it and
// keeps it in memory so the session can be inspected afterwards.
type Paper struct {
	mu     sync.Mutex
	orders []domain.OrderRequest
}

// NewPaper creates an empty paper sink.
func NewPaper() *Paper {
	return &Paper{}
}

func (p *Paper) PlaceOrder(_ context.Context, req domain.OrderRequest) error {
	if req.Size <= 0 {
		return fmt.Errorf("dispatch.PlaceOrder: size must be positive, got %.4f: %w",
			req.Size, domain.ErrInvalidInput)
	}

	p.mu.Lock()
	p.orders = append(p.orders, req)
	total := len(p.orders)
	p.mu.Unlock()

	slog.Info("paper: order placed",
		"market", req.MarketID, "token", req.TokenID,
		"side", req.Side, "price", req.Price, "size", req.Size,
		"session_orders", total)
	return nil
}

// Orders returns a copy of every order placed this session.
func (p *Paper) Orders() []domain.OrderRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.OrderRequest(nil), p.orders...)
}
