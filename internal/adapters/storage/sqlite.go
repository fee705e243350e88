// Package storage persiste el historial de señales en SQLite.
package storage

// sqlite.go — auditoría de señales sin ruido.
//
// Estrategia:
//   - `runs`: una fila ligera por lote guardado (timestamp + contador).
//   - `signals`: UNA fila por señal (UPSERT por ID). Reejecutar un tick
//     no duplica filas, solo actualiza executed/executed_at.
//   - Prune automático al arrancar: señales con más de 30 días.

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/alejandrodnm/polystrat/internal/domain"
	_ "modernc.org/sqlite"
)

const schema = `
-- Una fila por lote guardado
CREATE TABLE IF NOT EXISTS runs (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    saved_at DATETIME NOT NULL,
    records  INTEGER  NOT NULL DEFAULT 0
);

-- Una fila por señal, sin duplicados
CREATE TABLE IF NOT EXISTS signals (
    id          TEXT PRIMARY KEY,
    strategy    TEXT NOT NULL,
    market_id   TEXT NOT NULL,
    token_id    TEXT NOT NULL,
    side        TEXT NOT NULL,
    signal_type TEXT NOT NULL,
    strength    TEXT NOT NULL,
    price       REAL,
    size        REAL NOT NULL DEFAULT 0,
    stop_loss   REAL,
    take_profit REAL,
    ttl_secs    REAL NOT NULL DEFAULT 0,
    reason      TEXT,
    created_at  DATETIME NOT NULL,
    executed    INTEGER  NOT NULL DEFAULT 0,
    executed_at DATETIME
);

CREATE INDEX IF NOT EXISTS idx_runs_at       ON runs(saved_at DESC);
CREATE INDEX IF NOT EXISTS idx_signals_at    ON signals(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_signals_strat ON signals(strategy);
`

const retentionSignals = 30 * 24 * time.Hour

// Store implementa ports.SignalStore sobre SQLite (pure Go, sin CGo).
type Store struct {
	db *sql.DB
}

// NewStore abre (o crea) la base de datos en la ruta dada. Aplica el
// schema y limpia señales antiguas.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewStore: apply schema: %w", err)
	}

	s := &Store{db: db}
	s.pruneOld(context.Background())
	return s, nil
}

// SaveRecords guarda un lote de registros con upsert por ID de señal.
func (s *Store) SaveRecords(ctx context.Context, records []domain.SignalRecord) error {
	if len(records) == 0 {
		return nil
	}

	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (saved_at, records) VALUES (?, ?)`,
		now, len(records),
	); err != nil {
		return fmt.Errorf("storage.SaveRecords: insert run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.SaveRecords: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO signals
			(id, strategy, market_id, token_id, side, signal_type, strength,
			 price, size, stop_loss, take_profit, ttl_secs, reason,
			 created_at, executed, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			executed    = excluded.executed,
			executed_at = excluded.executed_at
	`)
	if err != nil {
		return fmt.Errorf("storage.SaveRecords: prepare: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		sig := rec.Signal

		executed := 0
		if rec.Executed {
			executed = 1
		}

		if _, err := stmt.ExecContext(ctx,
			sig.ID,
			sig.StrategyName,
			sig.MarketID,
			sig.TokenID,
			string(sig.Side),
			string(sig.Type),
			string(sig.Strength),
			nullableFloat(sig.Price, sig.HasPrice),
			sig.Size,
			nullableFloat(sig.StopLoss, sig.HasStopLoss),
			nullableFloat(sig.TakeProfit, sig.HasTakeProfit),
			sig.TTL.Seconds(),
			sig.Reason,
			sig.CreatedAt.UTC(),
			executed,
			nullableTime(rec.ExecutedAt),
		); err != nil {
			return fmt.Errorf("storage.SaveRecords: upsert signal %s: %w", sig.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.SaveRecords: commit: %w", err)
	}
	return nil
}

// History devuelve los últimos limit registros, los más recientes primero.
func (s *Store) History(ctx context.Context, limit int) ([]domain.SignalRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, strategy, market_id, token_id, side, signal_type, strength,
		       price, size, stop_loss, take_profit, ttl_secs, reason,
		       created_at, executed, executed_at
		FROM signals
		ORDER BY created_at DESC, id
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("storage.History: query: %w", err)
	}
	defer rows.Close()

	var out []domain.SignalRecord
	for rows.Next() {
		var (
			sig        domain.Signal
			side       string
			sigType    string
			strength   string
			price      sql.NullFloat64
			stopLoss   sql.NullFloat64
			takeProfit sql.NullFloat64
			ttlSecs    float64
			executed   int
			executedAt sql.NullTime
		)

		if err := rows.Scan(
			&sig.ID, &sig.StrategyName, &sig.MarketID, &sig.TokenID,
			&side, &sigType, &strength,
			&price, &sig.Size, &stopLoss, &takeProfit, &ttlSecs,
			&sig.Reason, &sig.CreatedAt, &executed, &executedAt,
		); err != nil {
			return nil, fmt.Errorf("storage.History: scan: %w", err)
		}

		sig.Side = domain.OrderSide(side)
		sig.Type = domain.SignalType(sigType)
		sig.Strength = domain.SignalStrength(strength)
		sig.Price, sig.HasPrice = price.Float64, price.Valid
		sig.StopLoss, sig.HasStopLoss = stopLoss.Float64, stopLoss.Valid
		sig.TakeProfit, sig.HasTakeProfit = takeProfit.Float64, takeProfit.Valid
		sig.TTL = time.Duration(ttlSecs * float64(time.Second))

		rec := domain.SignalRecord{Signal: sig, Executed: executed != 0}
		if executedAt.Valid {
			t := executedAt.Time
			rec.ExecutedAt = &t
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.History: rows: %w", err)
	}
	return out, nil
}

// Close cierra la base de datos.
func (s *Store) Close() error {
	return s.db.Close()
}

// pruneOld borra señales y runs viejos. Un fallo aquí no es fatal.
func (s *Store) pruneOld(ctx context.Context) {
	cutoff := time.Now().UTC().Add(-retentionSignals)

	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM signals WHERE created_at < ?`, cutoff); err != nil {
		slog.Warn("storage: prune signals failed", "err", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM runs WHERE saved_at < ?`, cutoff); err != nil {
		slog.Warn("storage: prune runs failed", "err", err)
	}
}

func nullableFloat(v float64, ok bool) any {
	if !ok {
		return nil
	}
	return v
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
