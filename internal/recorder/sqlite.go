package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"

	"PortfolioSentinel/internal/model"
)

// SQLiteRecorder persists history to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger zerolog.Logger
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger zerolog.Logger) (*SQLiteRecorder, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while cycles write.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger.With().Str("component", "sqlite_recorder").Logger()}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	r.logger.Info().Str("path", dbPath).Msg("sqlite recorder opened")
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS recommendations (
			id               INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp        INTEGER NOT NULL,
			symbol           TEXT NOT NULL,
			name             TEXT,
			success          INTEGER,
			stage_reached    INTEGER,
			signal           TEXT,
			confidence       REAL,
			current_price    REAL,
			stop_loss        REAL,
			take_profit_1    REAL,
			take_profit_2    REAL,
			risk_reward_1    REAL,
			risk_reward_2    REAL,
			risk_fallback    INTEGER,
			technical_source TEXT,
			sentiment_score  REAL,
			degraded         INTEGER,
			abort_reason     TEXT,
			payload          TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rec_symbol_ts ON recommendations(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS cycles (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			cycle_id    TEXT NOT NULL,
			started_at  INTEGER NOT NULL,
			finished_at INTEGER,
			total       INTEGER,
			succeeded   INTEGER,
			buy_count   INTEGER,
			sell_count  INTEGER,
			hold_count  INTEGER,
			skipped     INTEGER,
			cancelled   INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_cycles_ts ON cycles(started_at)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *SQLiteRecorder) RecordResult(ctx context.Context, res *model.PipelineResult) error {
	row, err := newResultRow(res)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	_, err = r.db.ExecContext(ctx, `INSERT INTO recommendations
		(timestamp, symbol, name, success, stage_reached, signal, confidence,
		 current_price, stop_loss, take_profit_1, take_profit_2,
		 risk_reward_1, risk_reward_2, risk_fallback,
		 technical_source, sentiment_score, degraded, abort_reason, payload)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		row.FinishedAt, row.Symbol, row.Name, row.Success, row.StageReached, row.Signal, row.Confidence,
		row.Price, row.StopLoss, row.TakeProfit1, row.TakeProfit2,
		row.RiskReward1, row.RiskReward2, row.RiskFallback,
		row.TechnicalSource, row.SentimentScore, row.Degraded, row.AbortReason, string(row.Payload),
	)
	if err != nil {
		return fmt.Errorf("insert recommendation %s: %w", row.Symbol, err)
	}
	return nil
}

func (r *SQLiteRecorder) RecordCycle(ctx context.Context, s *model.BatchSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.ExecContext(ctx, `INSERT INTO cycles
		(cycle_id, started_at, finished_at, total, succeeded, buy_count, sell_count, hold_count, skipped, cancelled)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		s.CycleID, s.StartedAt.Unix(), s.FinishedAt.Unix(), s.Total, s.Succeeded,
		s.Counts[model.SignalBuy], s.Counts[model.SignalSell], s.Counts[model.SignalHold],
		len(s.Skipped), s.Cancelled,
	)
	if err != nil {
		return fmt.Errorf("insert cycle %s: %w", s.CycleID, err)
	}
	return nil
}

// CountResults returns how many results were stored for symbol.
func (r *SQLiteRecorder) CountResults(ctx context.Context, symbol string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM recommendations WHERE symbol = ?`, symbol).Scan(&n)
	return n, err
}

func (r *SQLiteRecorder) History(ctx context.Context, symbol string, since time.Time) ([]*model.PipelineResult, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT payload FROM recommendations
		WHERE symbol = ? AND success = 1 AND timestamp >= ?
		ORDER BY timestamp, id`, symbol, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("query history %s: %w", symbol, err)
	}
	defer rows.Close()

	var payloads [][]byte
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("scan history %s: %w", symbol, err)
		}
		payloads = append(payloads, []byte(p))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history %s: %w", symbol, err)
	}
	return decodePayloads(payloads)
}

func (r *SQLiteRecorder) Latest(ctx context.Context, symbol string) (*model.PipelineResult, bool, error) {
	var p string
	err := r.db.QueryRowContext(ctx, `SELECT payload FROM recommendations
		WHERE symbol = ? AND success = 1
		ORDER BY timestamp DESC, id DESC LIMIT 1`, symbol).Scan(&p)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query latest %s: %w", symbol, err)
	}
	res, err := decodePayloads([][]byte{[]byte(p)})
	if err != nil {
		return nil, false, err
	}
	return res[0], true, nil
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info().Msg("closing sqlite recorder")
	return r.db.Close()
}
