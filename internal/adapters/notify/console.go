// Package notify presenta los resultados de cada tick al usuario.
package notify

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/alejandrodnm/polystrat/internal/domain"
)

// Console implementa ports.Notifier escribiendo a un io.Writer.
type Console struct {
	out   io.Writer
	table bool
}

// NewConsole crea un notificador que escribe a stdout.
func NewConsole(table bool) *Console {
	return &Console{out: os.Stdout, table: table}
}

// NewConsoleWriter crea un notificador para tests.
func NewConsoleWriter(w io.Writer, table bool) *Console {
	return &Console{out: w, table: table}
}

// Notify imprime el resumen del tick en el modo configurado.
func (c *Console) Notify(_ context.Context, report domain.Report) error {
	if c.table {
		c.printFull(report)
	} else {
		c.printCompact(report)
	}
	return nil
}

// printCompact imprime lo esencial en una línea.
func (c *Console) printCompact(report domain.Report) {
	now := report.GeneratedAt.Format("15:04:05")

	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] %d strategies | executed:%d pending:%d",
		now, len(report.Strategies), len(report.Executed), report.Pending)

	for _, s := range report.Strategies {
		fmt.Fprintf(&sb, " | %s %s g:%d e:%d",
			s.Name, statusIcon(s.Status), s.SignalsGenerated, s.SignalsExecuted)
	}

	fmt.Fprintln(c.out, sb.String())
}

// printFull imprime las tablas de estrategias y señales ejecutadas.
func (c *Console) printFull(report domain.Report) {
	now := report.GeneratedAt.Format("15:04:05")
	fmt.Fprintf(c.out, "\n[%s] %d strategies | executed:%d pending:%d\n",
		now, len(report.Strategies), len(report.Executed), report.Pending)

	table := tablewriter.NewWriter(c.out)
	table.Header("Strategy", "Status", "Last Eval", "Generated", "Executed", "Errors")
	for _, s := range report.Strategies {
		lastEval := "never"
		if s.LastEvaluated != nil {
			lastEval = s.LastEvaluated.Format("15:04:05")
		}
		table.Append(
			s.Name,
			fmt.Sprintf("%s %s", statusIcon(s.Status), s.Status),
			lastEval,
			fmt.Sprintf("%d", s.SignalsGenerated),
			fmt.Sprintf("%d", s.SignalsExecuted),
			fmt.Sprintf("%d", s.Errors),
		)
	}
	table.Render()

	if len(report.Executed) == 0 {
		return
	}

	fmt.Fprintln(c.out, "\nExecuted signals:")
	signals := tablewriter.NewWriter(c.out)
	signals.Header("Strategy", "Market", "Side", "Type", "Price", "Size", "Reason")
	for _, sig := range report.Executed {
		price := "-"
		if sig.HasPrice {
			price = fmt.Sprintf("%.4f", sig.Price)
		}
		signals.Append(
			sig.StrategyName,
			truncate(sig.MarketID, 14),
			string(sig.Side),
			string(sig.Type),
			price,
			fmt.Sprintf("%.2f", sig.Size),
			truncate(sig.Reason, 40),
		)
	}
	signals.Render()
}

func statusIcon(status string) string {
	switch status {
	case "running":
		return "▶"
	case "paused":
		return "⏸"
	case "error":
		return "⚠"
	default:
		return "⏹"
	}
}

// truncate corta un string a maxLen caracteres añadiendo "..." si hace falta.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
