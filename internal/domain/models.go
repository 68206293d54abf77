// Package domain provides core domain models and types.
package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DividendRecord is one observation of a dividend value for a (topic, account) pair.
// Values are immutable; the With* helpers return modified copies.
type DividendRecord struct {
	TopicID        int             `json:"topic_id"`
	AccountKey     string          `json:"account_key"`
	Dividend       decimal.Decimal `json:"dividend"`
	Cached         bool            `json:"cached"`
	TradeTriggered bool            `json:"trade_triggered"`
	TxRef          *string         `json:"tx_ref"`
}

// NewDividendRecord validates and builds a record.
func NewDividendRecord(topicID int, accountKey string, dividend decimal.Decimal) (DividendRecord, error) {
	if dividend.IsNegative() {
		return DividendRecord{}, fmt.Errorf("dividend for %s on topic %d is negative: %s", accountKey, topicID, dividend)
	}
	return DividendRecord{TopicID: topicID, AccountKey: accountKey, Dividend: dividend}, nil
}

// ZeroDividend is the value returned for an account the source has no data for.
func ZeroDividend(topicID int, accountKey string) DividendRecord {
	return DividendRecord{TopicID: topicID, AccountKey: accountKey, Dividend: decimal.Zero}
}

func (DividendRecord) isDividendResult() {}

// Records returns the record as a one-element slice.
func (r DividendRecord) Records() []DividendRecord { return []DividendRecord{r} }

// WithCached returns a copy carrying the given cache provenance.
func (r DividendRecord) WithCached(cached bool) DividendResult {
	r.Cached = cached
	return r
}

// WithTradeTriggered returns a copy with the trade flag set.
func (r DividendRecord) WithTradeTriggered(triggered bool) DividendResult {
	r.TradeTriggered = triggered
	return r
}

// DividendBatch is the ordered result for "all accounts" (or multi-topic) queries.
type DividendBatch struct {
	Dividends      []DividendRecord `json:"dividends"`
	Cached         bool             `json:"cached"`
	TradeTriggered bool             `json:"trade_triggered"`
}

func (DividendBatch) isDividendResult() {}

// Records returns a copy of the batch elements.
func (b DividendBatch) Records() []DividendRecord {
	out := make([]DividendRecord, len(b.Dividends))
	copy(out, b.Dividends)
	return out
}

// WithCached returns a copy of the batch with the flag applied to every element.
func (b DividendBatch) WithCached(cached bool) DividendResult {
	b.Dividends = b.Records()
	for i := range b.Dividends {
		b.Dividends[i].Cached = cached
	}
	b.Cached = cached
	return b
}

// WithTradeTriggered returns a copy of the batch with the flag applied to every element.
func (b DividendBatch) WithTradeTriggered(triggered bool) DividendResult {
	b.Dividends = b.Records()
	for i := range b.Dividends {
		b.Dividends[i].TradeTriggered = triggered
	}
	b.TradeTriggered = triggered
	return b
}

// TotalDividend sums the batch.
func (b DividendBatch) TotalDividend() decimal.Decimal {
	total := decimal.Zero
	for _, d := range b.Dividends {
		total = total.Add(d.Dividend)
	}
	return total
}

// DividendResult is either a DividendRecord or a DividendBatch.
type DividendResult interface {
	isDividendResult()
	Records() []DividendRecord
	WithCached(cached bool) DividendResult
	WithTradeTriggered(triggered bool) DividendResult
}

// DecodeDividendResult decodes a cached payload. Objects carrying a "dividends"
// field decode as a batch, anything else as a single record.
func DecodeDividendResult(data []byte) (DividendResult, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("failed to decode dividend payload: %w", err)
	}

	if _, ok := probe["dividends"]; ok {
		var batch DividendBatch
		if err := json.Unmarshal(data, &batch); err != nil {
			return nil, fmt.Errorf("failed to decode dividend batch: %w", err)
		}
		for _, d := range batch.Dividends {
			if d.Dividend.IsNegative() {
				return nil, fmt.Errorf("cached dividend for %s is negative", d.AccountKey)
			}
		}
		if batch.Dividends == nil {
			batch.Dividends = []DividendRecord{}
		}
		return batch, nil
	}

	if _, ok := probe["account_key"]; !ok {
		return nil, fmt.Errorf("dividend payload has neither dividends nor account_key")
	}
	var record DividendRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to decode dividend record: %w", err)
	}
	if record.Dividend.IsNegative() {
		return nil, fmt.Errorf("cached dividend for %s is negative", record.AccountKey)
	}
	return record, nil
}

// DividendEntry is the normalized row the ledger returns.
type DividendEntry struct {
	TopicID    int
	AccountKey string
	Amount     decimal.Decimal
}

// TradeKind is the direction of a ledger trade.
type TradeKind string

const (
	TradeKindStake   TradeKind = "stake"
	TradeKindUnstake TradeKind = "unstake"
)

// Decision is the outcome of sentiment scoring.
type Decision string

const (
	DecisionStake   Decision = "stake"
	DecisionUnstake Decision = "unstake"
	DecisionNone    Decision = "none"
)

// TradeKind maps a decision to its trade kind. The bool is false for DecisionNone.
func (d Decision) TradeKind() (TradeKind, bool) {
	switch d {
	case DecisionStake:
		return TradeKindStake, true
	case DecisionUnstake:
		return TradeKindUnstake, true
	default:
		return "", false
	}
}

// StakeResult is the normalized outcome of a stake or unstake submission.
type StakeResult struct {
	Succeeded bool   `json:"succeeded"`
	TxRef     string `json:"tx_ref,omitempty"`
}

// TradeOperation is a resolved stake/unstake attempt. It is only built through
// CompleteTrade or FailTrade.
type TradeOperation struct {
	AccountKey string          `json:"account_key"`
	Amount     decimal.Decimal `json:"amount"`
	Kind       TradeKind       `json:"kind"`
	TopicID    int             `json:"topic_id"`
	TxRef      *string         `json:"tx_ref"`
	Succeeded  bool            `json:"succeeded"`
	Error      *string         `json:"error"`
	Note       *string         `json:"note,omitempty"`
}

// CompleteTrade builds a succeeded operation. An empty note is omitted.
func CompleteTrade(topicID int, accountKey string, amount decimal.Decimal, kind TradeKind, txRef string, note string) TradeOperation {
	op := TradeOperation{
		AccountKey: accountKey,
		Amount:     amount,
		Kind:       kind,
		TopicID:    topicID,
		Succeeded:  true,
	}
	if txRef != "" {
		op.TxRef = &txRef
	}
	if note != "" {
		op.Note = &note
	}
	return op
}

// FailTrade builds a failed operation carrying the error text.
func FailTrade(topicID int, accountKey string, amount decimal.Decimal, kind TradeKind, err error) TradeOperation {
	msg := "trade failed"
	if err != nil {
		msg = err.Error()
	}
	return TradeOperation{
		AccountKey: accountKey,
		Amount:     amount,
		Kind:       kind,
		TopicID:    topicID,
		Error:      &msg,
	}
}

// SentimentScore is the per-run scoring result feeding a trade decision.
type SentimentScore struct {
	TopicID         int             `json:"topic_id"`
	Score           int             `json:"score"`
	SampleSize      int             `json:"sample_size"`
	Decision        Decision        `json:"decision"`
	SuggestedAmount decimal.Decimal `json:"suggested_amount"`
}

// NeutralSentiment is the fail-safe score used when signal is missing.
func NeutralSentiment(topicID, sampleSize int) SentimentScore {
	return SentimentScore{
		TopicID:         topicID,
		SampleSize:      sampleSize,
		Decision:        DecisionNone,
		SuggestedAmount: decimal.Zero,
	}
}

// Post is one social post with its engagement metrics.
type Post struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Author    string    `json:"author"`
	Followers int       `json:"followers"`
	Verified  bool      `json:"verified"`
	Likes     int       `json:"likes"`
	Reposts   int       `json:"reposts"`
	Replies   int       `json:"replies"`
	Quotes    int       `json:"quotes"`
	Bookmarks int       `json:"bookmarks"`
	CreatedAt time.Time `json:"created_at"`
}

// Engagement is the combined interaction count of a post.
func (p Post) Engagement() int {
	return p.Likes + p.Reposts + p.Replies + p.Quotes + p.Bookmarks
}

// HistorySource tags where a dividend observation came from.
type HistorySource string

const (
	HistorySourceCache  HistorySource = "cache"
	HistorySourceLedger HistorySource = "source"
)

// TradeStatus is the persisted outcome of a trade attempt.
type TradeStatus string

const (
	TradeStatusSucceeded TradeStatus = "succeeded"
	TradeStatusFailed    TradeStatus = "failed"
)

// DividendObservation is one audit row for a dividend read from the ledger.
type DividendObservation struct {
	ID         string          `json:"id"`
	TopicID    int             `json:"topic_id"`
	AccountKey string          `json:"account_key"`
	Value      decimal.Decimal `json:"value"`
	Source     HistorySource   `json:"source"`
	Timestamp  time.Time       `json:"timestamp"`
}

// TradeRecord is one audit row for a stake/unstake attempt.
type TradeRecord struct {
	ID             string          `json:"id"`
	WorkflowID     string          `json:"workflow_id,omitempty"`
	TopicID        int             `json:"topic_id"`
	AccountKey     string          `json:"account_key"`
	Amount         decimal.Decimal `json:"amount"`
	Kind           TradeKind       `json:"kind"`
	TxRef          *string         `json:"tx_ref"`
	Status         TradeStatus     `json:"status"`
	Error          *string         `json:"error"`
	Note           *string         `json:"note"`
	SentimentScore *int            `json:"sentiment_score"`
	Timestamp      time.Time       `json:"timestamp"`
}

// NewTradeRecord converts a resolved operation into its audit row.
func NewTradeRecord(workflowID string, op TradeOperation, score *int) TradeRecord {
	status := TradeStatusFailed
	if op.Succeeded {
		status = TradeStatusSucceeded
	}
	return TradeRecord{
		WorkflowID:     workflowID,
		TopicID:        op.TopicID,
		AccountKey:     op.AccountKey,
		Amount:         op.Amount,
		Kind:           op.Kind,
		TxRef:          op.TxRef,
		Status:         status,
		Error:          op.Error,
		Note:           op.Note,
		SentimentScore: score,
	}
}

// SentimentRecord is one audit row per scored workflow run.
type SentimentRecord struct {
	ID              string          `json:"id"`
	WorkflowID      string          `json:"workflow_id,omitempty"`
	TopicID         int             `json:"topic_id"`
	Score           int             `json:"score"`
	SampleSize      int             `json:"sample_size"`
	Decision        Decision        `json:"decision"`
	SuggestedAmount decimal.Decimal `json:"suggested_amount"`
	Timestamp       time.Time       `json:"timestamp"`
}

// NewSentimentRecord converts a score into its audit row.
func NewSentimentRecord(workflowID string, s SentimentScore) SentimentRecord {
	return SentimentRecord{
		WorkflowID:      workflowID,
		TopicID:         s.TopicID,
		Score:           s.Score,
		SampleSize:      s.SampleSize,
		Decision:        s.Decision,
		SuggestedAmount: s.SuggestedAmount,
	}
}

// HistoryFilter narrows history queries. Zero values mean "no filter".
type HistoryFilter struct {
	TopicID    *int
	AccountKey string
	Kind       TradeKind
	Limit      int
	Offset     int
}

const (
	DefaultHistoryLimit = 100
	MaxHistoryLimit     = 1000
)

// Normalize clamps the paging fields into their accepted range.
func (f HistoryFilter) Normalize() HistoryFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultHistoryLimit
	}
	if f.Limit > MaxHistoryLimit {
		f.Limit = MaxHistoryLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
