package domain

import (
	"context"

	"github.com/shopspring/decimal"
)

// DividendSource reads dividend values from the ledger.
type DividendSource interface {
	// FetchDividends returns every (topic, account, amount) row for the given topics,
	// narrowed to accountKey when it is non-nil.
	FetchDividends(ctx context.Context, topicIDs []int, accountKey *string) ([]DividendEntry, error)
}

// TradeExecutor submits stake and unstake operations to the ledger.
type TradeExecutor interface {
	Stake(ctx context.Context, accountKey string, amount decimal.Decimal, topicID int) (StakeResult, error)
	Unstake(ctx context.Context, accountKey string, amount decimal.Decimal, topicID int) (StakeResult, error)
}

// Ledger is the full source adapter.
type Ledger interface {
	DividendSource
	TradeExecutor
}

// SignalSource fetches and scores social posts about a topic.
type SignalSource interface {
	FetchPosts(ctx context.Context, topicID int, maxResults int) ([]Post, error)
	// Score returns the raw aggregate score; callers clamp it.
	Score(ctx context.Context, posts []Post, topicID int) (int, error)
}

// HistoryRecorder is the append-only audit contract used by the core.
type HistoryRecorder interface {
	RecordDividend(ctx context.Context, obs DividendObservation) error
	RecordTrade(ctx context.Context, rec TradeRecord) error
	RecordSentiment(ctx context.Context, rec SentimentRecord) error
}

// HistoryReader is the query side of the audit trail.
type HistoryReader interface {
	ListDividends(ctx context.Context, filter HistoryFilter) ([]DividendObservation, error)
	ListTrades(ctx context.Context, filter HistoryFilter) ([]TradeRecord, error)
	ListSentiments(ctx context.Context, filter HistoryFilter) ([]SentimentRecord, error)
}

// HistoryStore is a recorder that can also be queried.
type HistoryStore interface {
	HistoryRecorder
	HistoryReader
	Close() error
}
