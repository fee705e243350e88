package notify

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alejandrodnm/polystrat/internal/domain"
)

func sampleReport() domain.Report {
	evalAt := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	sig := domain.NewBuySignal("0xmercado", "0xmercado-yes", 10).
		WithPrice(0.45).
		WithReason("Price 0.4500 below MA 0.5000")
	sig.StrategyName = "mean_reversion"

	return domain.Report{
		GeneratedAt: time.Date(2026, 3, 14, 9, 30, 5, 0, time.UTC),
		Strategies: []domain.StrategyStats{
			{Name: "mean_reversion", Status: "running", LastEvaluated: &evalAt, SignalsGenerated: 3, SignalsExecuted: 1},
			{Name: "momentum", Status: "paused", Errors: 2},
		},
		Executed: []domain.Signal{sig},
		Pending:  2,
	}
}

func TestNotify_CompactLine(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, false)

	require.NoError(t, c.Notify(context.Background(), sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "[09:30:05] 2 strategies | executed:1 pending:2")
	assert.Contains(t, out, "mean_reversion ▶ g:3 e:1")
	assert.Contains(t, out, "momentum ⏸ g:0 e:0")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestNotify_TableMode(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, true)

	require.NoError(t, c.Notify(context.Background(), sampleReport()))

	out := buf.String()
	assert.Contains(t, out, "mean_reversion")
	assert.Contains(t, out, "09:30:00")
	assert.Contains(t, out, "never")
	assert.Contains(t, out, "Executed signals:")
	assert.Contains(t, out, "0.4500")
	assert.Contains(t, out, "Price 0.4500 below MA 0.5000")
}

func TestNotify_TableModeNoExecuted(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleWriter(&buf, true)

	report := sampleReport()
	report.Executed = nil
	require.NoError(t, c.Notify(context.Background(), report))

	assert.NotContains(t, buf.String(), "Executed signals:")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "a long ...", truncate("a long string indeed", 10))
}
