// Package trades persists completed trade records per run in SQLite
// (pure Go driver, no CGo). Discarded orders are stored alongside so
// fill-rate can be audited after the fact.
package trades

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/davidhsu/execsim/internal/core"
	"github.com/davidhsu/execsim/internal/engine"
	"github.com/davidhsu/execsim/internal/report"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id         TEXT PRIMARY KEY,
    started_at DATETIME NOT NULL,
    strategy   TEXT     NOT NULL,
    staged     INTEGER  NOT NULL,
    filled     INTEGER  NOT NULL,
    discarded  INTEGER  NOT NULL,
    fill_rate  REAL     NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
    run_id           TEXT NOT NULL,
    id               TEXT NOT NULL,
    symbol           TEXT NOT NULL,
    side             TEXT NOT NULL,
    status           TEXT NOT NULL,
    entry_time       DATETIME,
    actual_entry     REAL,
    stop_loss        REAL,
    take_profit      REAL,
    bars_since_entry INTEGER NOT NULL DEFAULT 0,
    exit_time        DATETIME,
    actual_exit      REAL,
    exit_reason      TEXT,
    gross_pnl        TEXT,
    net_pnl          TEXT,
    commission       TEXT,
    PRIMARY KEY (run_id, id)
);

CREATE TABLE IF NOT EXISTS discarded_orders (
    run_id          TEXT NOT NULL,
    id              TEXT NOT NULL,
    symbol          TEXT NOT NULL,
    side            TEXT NOT NULL,
    reference_price REAL NOT NULL,
    signal_time     DATETIME,
    bars_waited     INTEGER NOT NULL,
    discarded_at    DATETIME,
    PRIMARY KEY (run_id, id)
);

CREATE INDEX IF NOT EXISTS idx_trades_run  ON trades(run_id);
CREATE INDEX IF NOT EXISTS idx_trades_exit ON trades(exit_reason);
CREATE INDEX IF NOT EXISTS idx_disc_run    ON discarded_orders(run_id);
`

// Store is a SQLite-backed sink for run output.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at the given path and applies
// the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("open %q: %w", path, err))
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("apply schema: %w", err))
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveRun writes a run summary plus all of its trade and discarded
// order records in one transaction.
func (s *Store) SaveRun(ctx context.Context, runID, strategy string, startedAt time.Time, res *engine.Result) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	defer tx.Rollback()

	filled := len(res.Trades) + len(res.Open)
	staged := filled + len(res.Discarded)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, strategy, staged, filled, discarded, fill_rate)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, startedAt.UTC(), strategy, staged, filled, len(res.Discarded), res.FillRate(),
	); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("insert run: %w", err))
	}

	all := make([]*engine.Trade, 0, len(res.Trades)+len(res.Open))
	all = append(all, res.Trades...)
	all = append(all, res.Open...)
	for _, t := range all {
		r := report.NewTradeRecord(t)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO trades (run_id, id, symbol, side, status, entry_time, actual_entry,
			                     stop_loss, take_profit, bars_since_entry, exit_time,
			                     actual_exit, exit_reason, gross_pnl, net_pnl, commission)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, r.ID, r.Symbol, r.Side, r.Status, r.EntryTime, r.ActualEntry,
			r.StopLoss, r.TakeProfit, r.BarsSinceEntry, r.ExitTime,
			r.ActualExit, r.ExitReason, r.GrossPnL, r.NetPnL, r.Commission,
		); err != nil {
			return core.WrapError(core.ErrStorageFailed, fmt.Errorf("insert trade %s: %w", r.ID, err))
		}
	}

	for _, d := range res.Discarded {
		r := report.NewDiscardedRecord(d)
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO discarded_orders (run_id, id, symbol, side, reference_price,
			                               signal_time, bars_waited, discarded_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, r.ID, r.Symbol, r.Side, r.Reference, r.SignalTime, r.BarsWaited, r.DiscardedAt,
		); err != nil {
			return core.WrapError(core.ErrStorageFailed, fmt.Errorf("insert discarded %s: %w", r.ID, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return core.WrapError(core.ErrStorageFailed, err)
	}
	return nil
}

// FillRate returns the stored fill rate for a run.
func (s *Store) FillRate(ctx context.Context, runID string) (float64, error) {
	var rate float64
	err := s.db.QueryRowContext(ctx, `SELECT fill_rate FROM runs WHERE id = ?`, runID).Scan(&rate)
	if err == sql.ErrNoRows {
		return 0, core.WrapError(core.ErrNoData, fmt.Errorf("run %s not found", runID))
	}
	if err != nil {
		return 0, core.WrapError(core.ErrStorageFailed, err)
	}
	return rate, nil
}

// CountByReason returns completed-trade counts grouped by exit reason
// for one run.
func (s *Store) CountByReason(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT exit_reason, COUNT(*) FROM trades
		 WHERE run_id = ? AND status = 'completed' GROUP BY exit_reason`, runID)
	if err != nil {
		return nil, core.WrapError(core.ErrStorageFailed, err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var reason string
		var n int
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, core.WrapError(core.ErrStorageFailed, err)
		}
		out[reason] = n
	}
	return out, rows.Err()
}
