// Package database persists completed backtest runs to Postgres so reporting
// collaborators can read them later. The core pipeline works without it; the
// store is only wired in when a DSN is configured.
package database

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"github.com/Alias1177/Foresight/models"
)

// DB represents a database connection
type DB struct {
	*sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// New creates a new database connection
func New(params ConnectionParams) (*DB, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		params.Host, params.Port, params.User, params.Password, params.DBName, params.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, err
	}

	if err := createTables(db); err != nil {
		return nil, err
	}

	return &DB{db}, nil
}

// createTables creates the necessary tables if they don't exist
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS backtest_runs (
			id SERIAL PRIMARY KEY,
			symbol TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT now(),
			days INT NOT NULL,
			trades INT NOT NULL,
			cumulative_return DOUBLE PRECISION NOT NULL,
			max_drawdown DOUBLE PRECISION NOT NULL,
			hit_rate DOUBLE PRECISION NOT NULL,
			sharpe_ratio DOUBLE PRECISION NOT NULL,
			transaction_costs DOUBLE PRECISION NOT NULL,
			buy_hold_return DOUBLE PRECISION NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS run_signals (
			run_id INT NOT NULL REFERENCES backtest_runs(id),
			ts TIMESTAMP NOT NULL,
			direction TEXT NOT NULL,
			confidence DOUBLE PRECISION NOT NULL,
			position TEXT NOT NULL,
			PRIMARY KEY (run_id, ts)
		)
	`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS run_ledger (
			run_id INT NOT NULL REFERENCES backtest_runs(id),
			ts TIMESTAMP NOT NULL,
			position_before TEXT NOT NULL,
			position_after TEXT NOT NULL,
			pnl_delta DOUBLE PRECISION NOT NULL,
			cumulative_pnl DOUBLE PRECISION NOT NULL,
			PRIMARY KEY (run_id, ts)
		)
	`)
	return err
}

// SaveRun stores a completed run with its signals and ledger in one
// transaction and returns the run id.
func (db *DB) SaveRun(
	symbol string,
	metrics models.SummaryMetrics,
	signals []models.Signal,
	ledger []models.TradeLedgerEntry,
) (int64, error) {
	tx, err := db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var runID int64
	err = tx.QueryRow(`
		INSERT INTO backtest_runs
			(symbol, days, trades, cumulative_return, max_drawdown, hit_rate,
			 sharpe_ratio, transaction_costs, buy_hold_return)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		symbol, metrics.Days, metrics.Trades, metrics.CumulativeReturn,
		metrics.MaxDrawdown, metrics.HitRate, metrics.SharpeRatio,
		metrics.TransactionCosts, metrics.BuyHoldReturn,
	).Scan(&runID)
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}

	sigStmt, err := tx.Prepare(`
		INSERT INTO run_signals (run_id, ts, direction, confidence, position)
		VALUES ($1, $2, $3, $4, $5)`)
	if err != nil {
		return 0, err
	}
	defer sigStmt.Close()
	for _, s := range signals {
		if _, err := sigStmt.Exec(runID, s.Timestamp, string(s.Direction), s.Confidence, string(s.Position)); err != nil {
			return 0, fmt.Errorf("insert signal %s: %w", s.Timestamp.Format("2006-01-02"), err)
		}
	}

	ledStmt, err := tx.Prepare(`
		INSERT INTO run_ledger (run_id, ts, position_before, position_after, pnl_delta, cumulative_pnl)
		VALUES ($1, $2, $3, $4, $5, $6)`)
	if err != nil {
		return 0, err
	}
	defer ledStmt.Close()
	for _, e := range ledger {
		if _, err := ledStmt.Exec(runID, e.Timestamp, string(e.PositionBefore), string(e.PositionAfter), e.PnLDelta, e.CumulativePnL); err != nil {
			return 0, fmt.Errorf("insert ledger entry %s: %w", e.Timestamp.Format("2006-01-02"), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return runID, nil
}
