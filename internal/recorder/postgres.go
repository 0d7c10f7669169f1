package recorder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"PortfolioSentinel/internal/model"
)

// PostgresRecorder persists history to PostgreSQL through a pgx pool.
type PostgresRecorder struct {
	pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewPostgresRecorder connects to dsn, verifies the connection and runs migrations.
func NewPostgresRecorder(ctx context.Context, dsn string, logger zerolog.Logger) (*PostgresRecorder, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	r := &PostgresRecorder{pool: pool, logger: logger.With().Str("component", "postgres_recorder").Logger()}
	if err := r.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	r.logger.Info().Msg("postgres recorder opened")
	return r, nil
}

func (r *PostgresRecorder) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS recommendations (
			id               BIGSERIAL PRIMARY KEY,
			recorded_at      TIMESTAMPTZ NOT NULL,
			symbol           TEXT NOT NULL,
			name             TEXT,
			success          BOOLEAN,
			stage_reached    SMALLINT,
			signal           TEXT,
			confidence       DOUBLE PRECISION,
			current_price    DOUBLE PRECISION,
			stop_loss        DOUBLE PRECISION,
			take_profit_1    DOUBLE PRECISION,
			take_profit_2    DOUBLE PRECISION,
			risk_reward_1    DOUBLE PRECISION,
			risk_reward_2    DOUBLE PRECISION,
			risk_fallback    BOOLEAN,
			technical_source TEXT,
			sentiment_score  DOUBLE PRECISION,
			degraded         BOOLEAN,
			abort_reason     TEXT,
			payload          JSONB
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rec_symbol_ts ON recommendations(symbol, recorded_at)`,

		`CREATE TABLE IF NOT EXISTS cycles (
			cycle_id    UUID PRIMARY KEY,
			started_at  TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ,
			total       INTEGER,
			succeeded   INTEGER,
			buy_count   INTEGER,
			sell_count  INTEGER,
			hold_count  INTEGER,
			skipped     INTEGER,
			cancelled   BOOLEAN
		)`,
	}
	for _, s := range stmts {
		if _, err := r.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("exec %q: %w", s[:40], err)
		}
	}
	return nil
}

func (r *PostgresRecorder) RecordResult(ctx context.Context, res *model.PipelineResult) error {
	row, err := newResultRow(res)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `INSERT INTO recommendations
		(recorded_at, symbol, name, success, stage_reached, signal, confidence,
		 current_price, stop_loss, take_profit_1, take_profit_2,
		 risk_reward_1, risk_reward_2, risk_fallback,
		 technical_source, sentiment_score, degraded, abort_reason, payload)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`,
		time.Unix(row.FinishedAt, 0).UTC(), row.Symbol, row.Name, row.Success, row.StageReached, row.Signal, row.Confidence,
		row.Price, row.StopLoss, row.TakeProfit1, row.TakeProfit2,
		row.RiskReward1, row.RiskReward2, row.RiskFallback,
		row.TechnicalSource, row.SentimentScore, row.Degraded, row.AbortReason, string(row.Payload),
	)
	if err != nil {
		return fmt.Errorf("insert recommendation %s: %w", row.Symbol, err)
	}
	return nil
}

func (r *PostgresRecorder) RecordCycle(ctx context.Context, s *model.BatchSummary) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO cycles
		(cycle_id, started_at, finished_at, total, succeeded, buy_count, sell_count, hold_count, skipped, cancelled)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (cycle_id) DO NOTHING`,
		s.CycleID, s.StartedAt, s.FinishedAt, s.Total, s.Succeeded,
		s.Counts[model.SignalBuy], s.Counts[model.SignalSell], s.Counts[model.SignalHold],
		len(s.Skipped), s.Cancelled,
	)
	if err != nil {
		return fmt.Errorf("insert cycle %s: %w", s.CycleID, err)
	}
	return nil
}

func (r *PostgresRecorder) History(ctx context.Context, symbol string, since time.Time) ([]*model.PipelineResult, error) {
	rows, err := r.pool.Query(ctx, `SELECT payload::text FROM recommendations
		WHERE symbol = $1 AND success AND recorded_at >= $2
		ORDER BY recorded_at, id`, symbol, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("query history %s: %w", symbol, err)
	}
	payloads, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) ([]byte, error) {
		var p string
		err := row.Scan(&p)
		return []byte(p), err
	})
	if err != nil {
		return nil, fmt.Errorf("scan history %s: %w", symbol, err)
	}
	return decodePayloads(payloads)
}

func (r *PostgresRecorder) Latest(ctx context.Context, symbol string) (*model.PipelineResult, bool, error) {
	var p string
	err := r.pool.QueryRow(ctx, `SELECT payload::text FROM recommendations
		WHERE symbol = $1 AND success
		ORDER BY recorded_at DESC, id DESC LIMIT 1`, symbol).Scan(&p)
	if errors.Is(err, pgx.ErrNoRows) {
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

func (r *PostgresRecorder) Close() error {
	r.logger.Info().Msg("closing postgres recorder")
	r.pool.Close()
	return nil
}
