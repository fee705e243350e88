package storage_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polystrat/internal/adapters/storage"
	"github.com/alejandrodnm/polystrat/internal/domain"
)

func makeRecord(marketID string, executed bool) domain.SignalRecord {
	sig := domain.NewBuySignal(marketID, marketID+"-yes", 10).
		WithPrice(0.55).
		WithStopLoss(0.45).
		WithReason("test entry")

	rec := domain.SignalRecord{Signal: sig, Executed: executed}
	if executed {
		now := time.Now().UTC().Truncate(time.Second)
		rec.ExecutedAt = &now
	}
	return rec
}

func TestStore_SaveAndHistory(t *testing.T) {
	db, err := storage.NewStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	records := []domain.SignalRecord{
		makeRecord("0xaaa", true),
		makeRecord("0xbbb", false),
	}
	require.NoError(t, db.SaveRecords(context.Background(), records))

	history, err := db.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 2)

	byMarket := make(map[string]domain.SignalRecord, len(history))
	for _, rec := range history {
		byMarket[rec.Signal.MarketID] = rec
	}

	exec := byMarket["0xaaa"]
	assert.True(t, exec.Executed)
	require.NotNil(t, exec.ExecutedAt)
	assert.Equal(t, domain.SideBuy, exec.Signal.Side)
	require.True(t, exec.Signal.HasPrice)
	assert.InDelta(t, 0.55, exec.Signal.Price, 1e-9)
	require.True(t, exec.Signal.HasStopLoss)
	assert.InDelta(t, 0.45, exec.Signal.StopLoss, 1e-9)
	assert.False(t, exec.Signal.HasTakeProfit)
	assert.Equal(t, "test entry", exec.Signal.Reason)

	skipped := byMarket["0xbbb"]
	assert.False(t, skipped.Executed)
	assert.Nil(t, skipped.ExecutedAt)
	assert.Nil(t, skipped.Result)
}

func TestStore_UpsertByID(t *testing.T) {
	db, err := storage.NewStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	rec := makeRecord("0xaaa", false)
	require.NoError(t, db.SaveRecords(context.Background(), []domain.SignalRecord{rec}))

	// La misma señal, ahora ejecutada: actualiza la fila, no duplica.
	rec.Executed = true
	now := time.Now().UTC().Truncate(time.Second)
	rec.ExecutedAt = &now
	require.NoError(t, db.SaveRecords(context.Background(), []domain.SignalRecord{rec}))

	history, err := db.History(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.True(t, history[0].Executed)
}

func TestStore_HistoryLimit(t *testing.T) {
	db, err := storage.NewStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	records := []domain.SignalRecord{
		makeRecord("0xaaa", false),
		makeRecord("0xbbb", false),
		makeRecord("0xccc", false),
	}
	require.NoError(t, db.SaveRecords(context.Background(), records))

	history, err := db.History(context.Background(), 2)
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestStore_SaveEmptyBatch(t *testing.T) {
	db, err := storage.NewStore(":memory:")
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, db.SaveRecords(context.Background(), nil))

	history, err := db.History(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}
