// Package feed provides snapshot providers for the engine loop.
package feed

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/alejandrodnm/polystrat/internal/domain"
)

const (
	// Prices stay inside (0,1); clamping at the edges keeps the walk
	// from getting stuck on a resolved-looking market.
	minWalkPrice = 0.02
	maxWalkPrice = 0.98

	maxHistoryPoints = 200
	stepStdDev       = 0.01
)

// RandomWalk is a dry-run SnapshotProvider. Each Snapshot call advances
// every market's YES price by a gaussian step, so strategies can be
// exercised end to end without touching an exchange.
type RandomWalk struct {
	mu      sync.Mutex
	rng     *rand.Rand
	markets []domain.MarketSnapshot
	history map[string][]domain.PricePoint
	balance float64
}

// NewRandomWalk creates a provider with n synthetic active markets.
// The same seed always produces the same price path.
func NewRandomWalk(n int, seed int64, balance float64) *RandomWalk {
	if n <= 0 {
		n = 1
	}
	rng := rand.New(rand.NewSource(seed))

	rw := &RandomWalk{
		rng:     rng,
		history: make(map[string][]domain.PricePoint, n),
		balance: balance,
	}

	now := time.Now()
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("0xsim%03d", i)
		price := clampPrice(0.2 + rng.Float64()*0.6)
		market := domain.MarketSnapshot{
			ConditionID: id,
			Question:    fmt.Sprintf("Simulated market %d resolves YES?", i),
			Status:      domain.MarketActive,
			TokenIDs:    []string{id + "-yes", id + "-no"},
			TokenNames:  []string{"Yes", "No"},
			TokenPrices: []float64{price, 1 - price},
			Volume24h:   2000 + rng.Float64()*8000,
			Liquidity:   5000 + rng.Float64()*20000,
			EndDate:     now.AddDate(0, 1, 0),
		}
		rw.markets = append(rw.markets, market)
		rw.history[id] = []domain.PricePoint{{Timestamp: now, Price: price}}
	}
	return rw
}

// Snapshot advances the walk one step and returns copies of the state.
func (rw *RandomWalk) Snapshot(_ context.Context) ([]domain.MarketSnapshot, []domain.PositionSnapshot, []domain.OrderSnapshot, float64, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	now := time.Now()
	for i := range rw.markets {
		m := &rw.markets[i]
		price := clampPrice(m.TokenPrices[0] + rw.rng.NormFloat64()*stepStdDev)
		m.TokenPrices = []float64{price, 1 - price}

		points := append(rw.history[m.ConditionID], domain.PricePoint{Timestamp: now, Price: price})
		if len(points) > maxHistoryPoints {
			points = points[len(points)-maxHistoryPoints:]
		}
		rw.history[m.ConditionID] = points
	}

	markets := make([]domain.MarketSnapshot, len(rw.markets))
	copy(markets, rw.markets)
	return markets, nil, nil, rw.balance, nil
}

// PriceHistory returns a copy of the rolling history per market.
func (rw *RandomWalk) PriceHistory(_ context.Context) (map[string][]domain.PricePoint, error) {
	rw.mu.Lock()
	defer rw.mu.Unlock()

	out := make(map[string][]domain.PricePoint, len(rw.history))
	for id, points := range rw.history {
		cp := make([]domain.PricePoint, len(points))
		copy(cp, points)
		out[id] = cp
	}
	return out, nil
}

func clampPrice(p float64) float64 {
	if p < minWalkPrice {
		return minWalkPrice
	}
	if p > maxWalkPrice {
		return maxWalkPrice
	}
	return p
}
