package history

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/tao-sentinel/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS dividend_history (
    id TEXT PRIMARY KEY,
    topic_id INTEGER NOT NULL,
    account_key TEXT NOT NULL,
    value NUMERIC NOT NULL,
    source TEXT NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_dividend_history_topic ON dividend_history(topic_id, recorded_at DESC);

CREATE TABLE IF NOT EXISTS stake_transactions (
    id TEXT PRIMARY KEY,
    workflow_id TEXT,
    topic_id INTEGER NOT NULL,
    account_key TEXT NOT NULL,
    amount NUMERIC NOT NULL,
    kind TEXT NOT NULL,
    tx_ref TEXT,
    status TEXT NOT NULL,
    error TEXT,
    note TEXT,
    sentiment_score INTEGER,
    recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stake_transactions_topic ON stake_transactions(topic_id, recorded_at DESC);

CREATE TABLE IF NOT EXISTS sentiment_analyses (
    id TEXT PRIMARY KEY,
    workflow_id TEXT,
    topic_id INTEGER NOT NULL,
    score INTEGER NOT NULL,
    sample_size INTEGER NOT NULL,
    decision TEXT NOT NULL,
    suggested_amount NUMERIC NOT NULL,
    recorded_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sentiment_analyses_topic ON sentiment_analyses(topic_id, recorded_at DESC);
`

// PostgresRepository stores history in Postgres.
type PostgresRepository struct {
	pool *pgxpool.Pool
	now  func() time.Time
	log  zerolog.Logger
}

// ConnectPostgres creates a pool, verifies it and applies the history schema.
func ConnectPostgres(ctx context.Context, dsn string, log zerolog.Logger) (*PostgresRepository, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply history schema: %w", err)
	}

	return NewPostgresRepository(pool, log), nil
}

// NewPostgresRepository wraps an existing pool.
func NewPostgresRepository(pool *pgxpool.Pool, log zerolog.Logger) *PostgresRepository {
	return &PostgresRepository{
		pool: pool,
		now:  time.Now,
		log:  log.With().Str("repo", "history_pg").Logger(),
	}
}

// RecordDividend appends one dividend observation.
func (r *PostgresRepository) RecordDividend(ctx context.Context, obs domain.DividendObservation) error {
	stamp(&obs.ID, &obs.Timestamp, r.now)

	_, err := r.pool.Exec(ctx,
		`INSERT INTO dividend_history (`+dividendColumns+`) VALUES ($1, $2, $3, $4::numeric, $5, $6)`,
		obs.ID, obs.TopicID, obs.AccountKey, obs.Value.String(), string(obs.Source), obs.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert dividend: %w", err)
	}
	return nil
}

// RecordTrade appends one trade attempt.
func (r *PostgresRepository) RecordTrade(ctx context.Context, rec domain.TradeRecord) error {
	stamp(&rec.ID, &rec.Timestamp, r.now)

	var workflowID *string
	if rec.WorkflowID != "" {
		workflowID = &rec.WorkflowID
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO stake_transactions (`+tradeColumns+`)
		 VALUES ($1, $2, $3, $4, $5::numeric, $6, $7, $8, $9, $10, $11, $12)`,
		rec.ID, workflowID, rec.TopicID, rec.AccountKey, rec.Amount.String(), string(rec.Kind),
		rec.TxRef, string(rec.Status), rec.Error, rec.Note, rec.SentimentScore, rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}

	r.log.Info().
		Str("kind", string(rec.Kind)).
		Str("status", string(rec.Status)).
		Msg("Trade attempt recorded")
	return nil
}

// RecordSentiment appends one sentiment analysis.
func (r *PostgresRepository) RecordSentiment(ctx context.Context, rec domain.SentimentRecord) error {
	stamp(&rec.ID, &rec.Timestamp, r.now)

	var workflowID *string
	if rec.WorkflowID != "" {
		workflowID = &rec.WorkflowID
	}

	_, err := r.pool.Exec(ctx,
		`INSERT INTO sentiment_analyses (`+sentimentColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8)`,
		rec.ID, workflowID, rec.TopicID, rec.Score, rec.SampleSize, string(rec.Decision),
		rec.SuggestedAmount.String(), rec.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("insert sentiment: %w", err)
	}
	return nil
}

// ListDividends returns observations newest first.
func (r *PostgresRepository) ListDividends(ctx context.Context, filter domain.HistoryFilter) ([]domain.DividendObservation, error) {
	filter = filter.Normalize()
	where, args := buildWhere(filter, postgresPlaceholder, false)
	page, args := pageClause(filter, postgresPlaceholder, args)

	rows, err := r.pool.Query(ctx,
		`SELECT id, topic_id, account_key, value::text, source, recorded_at
		 FROM dividend_history`+where+` ORDER BY recorded_at DESC`+page,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query dividends: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.DividendObservation, error) {
		var obs domain.DividendObservation
		var value, source string
		if err := row.Scan(&obs.ID, &obs.TopicID, &obs.AccountKey, &value, &source, &obs.Timestamp); err != nil {
			return obs, err
		}
		v, err := decimal.NewFromString(value)
		if err != nil {
			return obs, fmt.Errorf("invalid dividend value %q: %w", value, err)
		}
		obs.Value = v
		obs.Source = domain.HistorySource(source)
		return obs, nil
	})
}

// ListTrades returns trade attempts newest first.
func (r *PostgresRepository) ListTrades(ctx context.Context, filter domain.HistoryFilter) ([]domain.TradeRecord, error) {
	filter = filter.Normalize()
	where, args := buildWhere(filter, postgresPlaceholder, true)
	page, args := pageClause(filter, postgresPlaceholder, args)

	rows, err := r.pool.Query(ctx,
		`SELECT id, COALESCE(workflow_id, ''), topic_id, account_key, amount::text, kind,
		        tx_ref, status, error, note, sentiment_score, recorded_at
		 FROM stake_transactions`+where+` ORDER BY recorded_at DESC`+page,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.TradeRecord, error) {
		var rec domain.TradeRecord
		var amount, kind, status string
		if err := row.Scan(&rec.ID, &rec.WorkflowID, &rec.TopicID, &rec.AccountKey, &amount, &kind,
			&rec.TxRef, &status, &rec.Error, &rec.Note, &rec.SentimentScore, &rec.Timestamp); err != nil {
			return rec, err
		}
		v, err := decimal.NewFromString(amount)
		if err != nil {
			return rec, fmt.Errorf("invalid trade amount %q: %w", amount, err)
		}
		rec.Amount = v
		rec.Kind = domain.TradeKind(kind)
		rec.Status = domain.TradeStatus(status)
		return rec, nil
	})
}

// ListSentiments returns sentiment analyses newest first.
func (r *PostgresRepository) ListSentiments(ctx context.Context, filter domain.HistoryFilter) ([]domain.SentimentRecord, error) {
	filter = filter.Normalize()
	filter.AccountKey = ""
	where, args := buildWhere(filter, postgresPlaceholder, false)
	page, args := pageClause(filter, postgresPlaceholder, args)

	rows, err := r.pool.Query(ctx,
		`SELECT id, COALESCE(workflow_id, ''), topic_id, score, sample_size, decision,
		        suggested_amount::text, recorded_at
		 FROM sentiment_analyses`+where+` ORDER BY recorded_at DESC`+page,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("query sentiment analyses: %w", err)
	}

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.SentimentRecord, error) {
		var rec domain.SentimentRecord
		var decision, suggested string
		if err := row.Scan(&rec.ID, &rec.WorkflowID, &rec.TopicID, &rec.Score, &rec.SampleSize,
			&decision, &suggested, &rec.Timestamp); err != nil {
			return rec, err
		}
		v, err := decimal.NewFromString(suggested)
		if err != nil {
			return rec, fmt.Errorf("invalid suggested amount %q: %w", suggested, err)
		}
		rec.SuggestedAmount = v
		rec.Decision = domain.Decision(decision)
		return rec, nil
	})
}

// Close releases the pool.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
