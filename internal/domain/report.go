package domain

import "time"

// SignalRecord es la entrada de auditoría de una señal que pasó por el
// engine. ExecutedAt y Result son nil si la señal no llegó a ejecutarse.
type SignalRecord struct {
	Signal     Signal
	Executed   bool
	ExecutedAt *time.Time
	// Result es el detalle de ejecución reportado por el sink. Ningún
	// sink lo rellena todavía; queda nil hasta que el feedback de
	// ejecución lo alimente.
	Result *SignalResult
}

// SignalResult es el resultado de ejecutar una señal contra el sink.
type SignalResult struct {
	OrderID     string
	FilledPrice float64
	FilledSize  float64
	Error       string
}

// StrategyStats son los contadores de una estrategia registrada.
type StrategyStats struct {
	Name             string
	Status           string
	LastEvaluated    *time.Time
	SignalsGenerated int
	SignalsExecuted  int
	Errors           int
}

// Report es el resumen de un tick para el notifier.
type Report struct {
	GeneratedAt time.Time
	Strategies  []StrategyStats
	Executed    []Signal
	Pending     int
}
