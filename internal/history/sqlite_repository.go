package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/aristath/tao-sentinel/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const (
	dividendColumns  = `id, topic_id, account_key, value, source, recorded_at`
	tradeColumns     = `id, workflow_id, topic_id, account_key, amount, kind, tx_ref, status, error, note, sentiment_score, recorded_at`
	sentimentColumns = `id, workflow_id, topic_id, score, sample_size, decision, suggested_amount, recorded_at`
)

// SQLiteRepository stores history in the history.db sqlite database.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
	log zerolog.Logger
}

// NewSQLiteRepository creates a repository on a database migrated with the history schema.
func NewSQLiteRepository(db *sql.DB, log zerolog.Logger) *SQLiteRepository {
	return &SQLiteRepository{
		db:  db,
		now: time.Now,
		log: log.With().Str("repo", "history").Logger(),
	}
}

// stamp fills ID and Timestamp when unset.
func stamp(id *string, ts *time.Time, now func() time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if ts.IsZero() {
		*ts = now().UTC()
	}
}

// RecordDividend appends one dividend observation.
func (r *SQLiteRepository) RecordDividend(ctx context.Context, obs domain.DividendObservation) error {
	stamp(&obs.ID, &obs.Timestamp, r.now)

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO dividend_history ("+dividendColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		obs.ID, obs.TopicID, obs.AccountKey, obs.Value.String(), string(obs.Source), obs.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record dividend: %w", err)
	}

	r.log.Debug().
		Int("topic_id", obs.TopicID).
		Str("account_key", obs.AccountKey).
		Str("value", obs.Value.String()).
		Msg("Dividend observation recorded")
	return nil
}

// RecordTrade appends one trade attempt.
func (r *SQLiteRepository) RecordTrade(ctx context.Context, rec domain.TradeRecord) error {
	stamp(&rec.ID, &rec.Timestamp, r.now)

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO stake_transactions ("+tradeColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID,
		nullString(rec.WorkflowID),
		rec.TopicID,
		rec.AccountKey,
		rec.Amount.String(),
		string(rec.Kind),
		rec.TxRef,
		string(rec.Status),
		rec.Error,
		rec.Note,
		rec.SentimentScore,
		rec.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record trade: %w", err)
	}

	r.log.Info().
		Str("kind", string(rec.Kind)).
		Str("status", string(rec.Status)).
		Str("amount", rec.Amount.String()).
		Msg("Trade attempt recorded")
	return nil
}

// RecordSentiment appends one sentiment analysis.
func (r *SQLiteRepository) RecordSentiment(ctx context.Context, rec domain.SentimentRecord) error {
	stamp(&rec.ID, &rec.Timestamp, r.now)

	_, err := r.db.ExecContext(ctx,
		"INSERT INTO sentiment_analyses ("+sentimentColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		rec.ID,
		nullString(rec.WorkflowID),
		rec.TopicID,
		rec.Score,
		rec.SampleSize,
		string(rec.Decision),
		rec.SuggestedAmount.String(),
		rec.Timestamp.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record sentiment: %w", err)
	}
	return nil
}

// ListDividends returns observations newest first.
func (r *SQLiteRepository) ListDividends(ctx context.Context, filter domain.HistoryFilter) ([]domain.DividendObservation, error) {
	filter = filter.Normalize()
	where, args := buildWhere(filter, sqlitePlaceholder, false)
	page, args := pageClause(filter, sqlitePlaceholder, args)

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+dividendColumns+" FROM dividend_history"+where+" ORDER BY recorded_at DESC, rowid DESC"+page,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list dividends: %w", err)
	}
	defer rows.Close()

	out := []domain.DividendObservation{}
	for rows.Next() {
		var obs domain.DividendObservation
		var value, source string
		var recordedAt int64
		if err := rows.Scan(&obs.ID, &obs.TopicID, &obs.AccountKey, &value, &source, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan dividend: %w", err)
		}
		if obs.Value, err = decimal.NewFromString(value); err != nil {
			return nil, fmt.Errorf("invalid dividend value %q: %w", value, err)
		}
		obs.Source = domain.HistorySource(source)
		obs.Timestamp = time.UnixMilli(recordedAt).UTC()
		out = append(out, obs)
	}
	return out, rows.Err()
}

// ListTrades returns trade attempts newest first.
func (r *SQLiteRepository) ListTrades(ctx context.Context, filter domain.HistoryFilter) ([]domain.TradeRecord, error) {
	filter = filter.Normalize()
	where, args := buildWhere(filter, sqlitePlaceholder, true)
	page, args := pageClause(filter, sqlitePlaceholder, args)

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+tradeColumns+" FROM stake_transactions"+where+" ORDER BY recorded_at DESC, rowid DESC"+page,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades: %w", err)
	}
	defer rows.Close()

	out := []domain.TradeRecord{}
	for rows.Next() {
		rec, err := scanTrade(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func scanTrade(rows *sql.Rows) (domain.TradeRecord, error) {
	var rec domain.TradeRecord
	var workflowID, txRef, errText, note sql.NullString
	var score sql.NullInt64
	var amount, kind, status string
	var recordedAt int64

	err := rows.Scan(&rec.ID, &workflowID, &rec.TopicID, &rec.AccountKey, &amount, &kind,
		&txRef, &status, &errText, &note, &score, &recordedAt)
	if err != nil {
		return rec, fmt.Errorf("failed to scan trade: %w", err)
	}

	if rec.Amount, err = decimal.NewFromString(amount); err != nil {
		return rec, fmt.Errorf("invalid trade amount %q: %w", amount, err)
	}
	rec.WorkflowID = workflowID.String
	rec.Kind = domain.TradeKind(kind)
	rec.Status = domain.TradeStatus(status)
	rec.TxRef = stringPtr(txRef)
	rec.Error = stringPtr(errText)
	rec.Note = stringPtr(note)
	if score.Valid {
		s := int(score.Int64)
		rec.SentimentScore = &s
	}
	rec.Timestamp = time.UnixMilli(recordedAt).UTC()
	return rec, nil
}

// ListSentiments returns sentiment analyses newest first.
func (r *SQLiteRepository) ListSentiments(ctx context.Context, filter domain.HistoryFilter) ([]domain.SentimentRecord, error) {
	filter = filter.Normalize()
	filter.AccountKey = "" // sentiment rows are per topic
	where, args := buildWhere(filter, sqlitePlaceholder, false)
	page, args := pageClause(filter, sqlitePlaceholder, args)

	rows, err := r.db.QueryContext(ctx,
		"SELECT "+sentimentColumns+" FROM sentiment_analyses"+where+" ORDER BY recorded_at DESC, rowid DESC"+page,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list sentiment analyses: %w", err)
	}
	defer rows.Close()

	out := []domain.SentimentRecord{}
	for rows.Next() {
		var rec domain.SentimentRecord
		var workflowID sql.NullString
		var decision, suggested string
		var recordedAt int64
		if err := rows.Scan(&rec.ID, &workflowID, &rec.TopicID, &rec.Score, &rec.SampleSize,
			&decision, &suggested, &recordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sentiment analysis: %w", err)
		}
		if rec.SuggestedAmount, err = decimal.NewFromString(suggested); err != nil {
			return nil, fmt.Errorf("invalid suggested amount %q: %w", suggested, err)
		}
		rec.WorkflowID = workflowID.String
		rec.Decision = domain.Decision(decision)
		rec.Timestamp = time.UnixMilli(recordedAt).UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Close is a no-op; the database handle is owned by the container.
func (r *SQLiteRepository) Close() error { return nil }

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
