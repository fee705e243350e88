package dispatch

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polystrat/internal/domain"
)

type stubSink struct {
	calls int
	err   error
}

func (s *stubSink) PlaceOrder(context.Context, domain.OrderRequest) error {
	s.calls++
	return s.err
}

func order() domain.OrderRequest {
	return domain.OrderRequest{
		MarketID:  "0xa",
		TokenID:   "tok",
		Side:      domain.SideBuy,
		Price:     0.5,
		Size:      10,
		OrderType: domain.OrderLimit,
	}
}

func TestRateLimited_Delegates(t *testing.T) {
	inner := &stubSink{}
	sink := RateLimited(inner, 1000, 10)

	require.NoError(t, sink.PlaceOrder(context.Background(), order()))
	assert.Equal(t, 1, inner.calls)
}

func TestRateLimited_PropagatesSinkError(t *testing.T) {
	inner := &stubSink{err: errors.New("wire down")}
	sink := RateLimited(inner, 1000, 10)

	err := sink.PlaceOrder(context.Background(), order())
	assert.ErrorIs(t, err, inner.err)
}

func TestRateLimited_ZeroRateIsPassthrough(t *testing.T) {
	inner := &stubSink{}
	assert.Same(t, inner, RateLimited(inner, 0, 5))
}

func TestRateLimited_CancelledContext(t *testing.T) {
	inner := &stubSink{}
	// Rate 1/s with burst 1: the second order has to wait ~1s, so a
	// cancelled context fails it without reaching the inner sink.
	sink := RateLimited(inner, 1, 1)

	require.NoError(t, sink.PlaceOrder(context.Background(), order()))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	err := sink.PlaceOrder(ctx, order())
	require.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

func TestPaper_RecordsOrders(t *testing.T) {
	p := NewPaper()

	require.NoError(t, p.PlaceOrder(context.Background(), order()))
	require.NoError(t, p.PlaceOrder(context.Background(), order()))

	orders := p.Orders()
	require.Len(t, orders, 2)
	assert.Equal(t, "0xa", orders[0].MarketID)
}

func TestPaper_RejectsNonPositiveSize(t *testing.T) {
	p := NewPaper()

	bad := order()
	bad.Size = 0
	err := p.PlaceOrder(context.Background(), bad)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Empty(t, p.Orders())
}
