package results

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "github.com/mattn/go-sqlite3"

	"backtest_engine/internal/core"
	"backtest_engine/pkg/concurrency"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	name       TEXT NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS fills (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id    TEXT NOT NULL REFERENCES runs(id),
	order_id  INTEGER NOT NULL,
	symbol    TEXT NOT NULL,
	status    TEXT NOT NULL,
	direction INTEGER NOT NULL,
	price     TEXT NOT NULL,
	quantity  TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL REFERENCES runs(id),
	ts     INTEGER NOT NULL,
	value  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_fills_run ON fills(run_id);
CREATE INDEX IF NOT EXISTS idx_equity_run ON equity(run_id, ts);
`

// SQLiteJournal persists fills and equity samples to a SQLite database.
// Writes go through a worker pool so the algorithm thread never waits on
// disk; Close drains the pool before closing the database.
type SQLiteJournal struct {
	db     *sql.DB
	pool   *concurrency.WorkerPool
	logger core.ILogger
	runID  string
}

// NewSQLiteJournal opens (or creates) the journal at path and registers a
// run row. An empty runID gets a fresh UUID.
func NewSQLiteJournal(path, runID, name string, poolCfg concurrency.PoolConfig, logger core.ILogger) (*SQLiteJournal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	// WAL lets readers inspect a run while it is still writing
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create journal schema: %w", err)
	}

	if runID == "" {
		runID = uuid.NewString()
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO runs (id, name, created_at) VALUES (?, ?, ?)`,
		runID, name, time.Now().UnixNano()); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to register run: %w", err)
	}

	if poolCfg.Name == "" {
		poolCfg.Name = "results_journal"
	}
	// A single writer keeps the journal append-ordered
	poolCfg.MaxWorkers = 1

	return &SQLiteJournal{
		db:     db,
		pool:   concurrency.NewWorkerPool(poolCfg, logger),
		logger: logger,
		runID:  runID,
	}, nil
}

// RunID returns the id of the run this journal writes under
func (j *SQLiteJournal) RunID() string {
	return j.runID
}

// OnFill journals a fill asynchronously
func (j *SQLiteJournal) OnFill(event core.OrderEvent) {
	if err := j.pool.Submit(func() {
		_, err := j.db.Exec(
			`INSERT INTO fills (run_id, order_id, symbol, status, direction, price, quantity) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			j.runID, event.OrderID, event.Symbol, string(event.Status), int(event.Direction),
			event.FillPrice.String(), event.FillQuantity.String())
		if err != nil {
			j.logger.Error("failed to journal fill", "symbol", event.Symbol, "error", err)
		}
	}); err != nil {
		j.logger.Error("journal pool rejected fill", "symbol", event.Symbol, "error", err)
	}
}

// OnEquity journals an equity sample asynchronously
func (j *SQLiteJournal) OnEquity(t time.Time, equity decimal.Decimal) {
	if err := j.pool.Submit(func() {
		_, err := j.db.Exec(`INSERT INTO equity (run_id, ts, value) VALUES (?, ?, ?)`,
			j.runID, t.UnixNano(), equity.String())
		if err != nil {
			j.logger.Error("failed to journal equity", "error", err)
		}
	}); err != nil {
		j.logger.Error("journal pool rejected equity sample", "error", err)
	}
}

// Close drains pending writes and closes the database
func (j *SQLiteJournal) Close() error {
	j.pool.Stop()
	return j.db.Close()
}

var _ core.IResultHandler = (*SQLiteJournal)(nil)
