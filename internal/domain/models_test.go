package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDividendRecord_RejectsNegative(t *testing.T) {
	_, err := NewDividendRecord(18, "ACCT_A", decimal.NewFromInt(-1))
	assert.Error(t, err)

	rec, err := NewDividendRecord(18, "ACCT_A", decimal.NewFromInt(1000))
	require.NoError(t, err)
	assert.Equal(t, 18, rec.TopicID)
	assert.True(t, rec.Dividend.Equal(decimal.NewFromInt(1000)))
}

func TestDecodeDividendResult_Record(t *testing.T) {
	payload, err := json.Marshal(DividendRecord{TopicID: 18, AccountKey: "ACCT_A", Dividend: decimal.NewFromInt(1000)})
	require.NoError(t, err)

	result, err := DecodeDividendResult(payload)
	require.NoError(t, err)

	rec, ok := result.(DividendRecord)
	require.True(t, ok)
	assert.Equal(t, "ACCT_A", rec.AccountKey)
	assert.True(t, rec.Dividend.Equal(decimal.NewFromInt(1000)))
}

func TestDecodeDividendResult_Batch(t *testing.T) {
	payload := []byte(`{"dividends":[{"topic_id":1,"account_key":"A","dividend":"2.5"},{"topic_id":1,"account_key":"B","dividend":3}],"cached":false,"trade_triggered":false}`)

	result, err := DecodeDividendResult(payload)
	require.NoError(t, err)

	batch, ok := result.(DividendBatch)
	require.True(t, ok)
	require.Len(t, batch.Dividends, 2)
	assert.True(t, batch.TotalDividend().Equal(decimal.RequireFromString("5.5")))
}

func TestDecodeDividendResult_EmptyBatch(t *testing.T) {
	result, err := DecodeDividendResult([]byte(`{"dividends":null}`))
	require.NoError(t, err)

	batch := result.(DividendBatch)
	assert.NotNil(t, batch.Dividends)
	assert.Empty(t, batch.Dividends)
}

func TestDecodeDividendResult_Corrupt(t *testing.T) {
	cases := map[string]string{
		"not json":          "not json{",
		"array":             "[1,2,3]",
		"unknown shape":     `{"foo":"bar"}`,
		"negative":          `{"topic_id":1,"account_key":"A","dividend":"-1"}`,
		"bad batch":         `{"dividends":"nope"}`,
		"negative in batch": `{"dividends":[{"topic_id":1,"account_key":"A","dividend":"-1"}]}`,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeDividendResult([]byte(payload))
			assert.Error(t, err)
		})
	}
}

func TestDividendBatch_WithCachedDoesNotMutateOriginal(t *testing.T) {
	original := DividendBatch{Dividends: []DividendRecord{{TopicID: 1, AccountKey: "A"}}}

	marked := original.WithCached(true).(DividendBatch)

	assert.True(t, marked.Cached)
	assert.True(t, marked.Dividends[0].Cached)
	assert.False(t, original.Dividends[0].Cached)
}

func TestDecision_TradeKind(t *testing.T) {
	kind, ok := DecisionStake.TradeKind()
	assert.True(t, ok)
	assert.Equal(t, TradeKindStake, kind)

	kind, ok = DecisionUnstake.TradeKind()
	assert.True(t, ok)
	assert.Equal(t, TradeKindUnstake, kind)

	_, ok = DecisionNone.TradeKind()
	assert.False(t, ok)
}

func TestCompleteAndFailTrade(t *testing.T) {
	amount := decimal.RequireFromString("0.5")

	ok := CompleteTrade(18, "ACCT_A", amount, TradeKindStake, "0xabc", "")
	assert.True(t, ok.Succeeded)
	require.NotNil(t, ok.TxRef)
	assert.Equal(t, "0xabc", *ok.TxRef)
	assert.Nil(t, ok.Note)
	assert.Nil(t, ok.Error)

	failed := FailTrade(18, "ACCT_A", amount, TradeKindUnstake, errors.New("boom"))
	assert.False(t, failed.Succeeded)
	require.NotNil(t, failed.Error)
	assert.Equal(t, "boom", *failed.Error)

	rec := NewTradeRecord("wf-1", failed, nil)
	assert.Equal(t, TradeStatusFailed, rec.Status)
	assert.Equal(t, "wf-1", rec.WorkflowID)
}

func TestHistoryFilter_Normalize(t *testing.T) {
	assert.Equal(t, DefaultHistoryLimit, HistoryFilter{}.Normalize().Limit)
	assert.Equal(t, MaxHistoryLimit, HistoryFilter{Limit: 5000}.Normalize().Limit)
	assert.Equal(t, 0, HistoryFilter{Offset: -3}.Normalize().Offset)
	assert.Equal(t, 50, HistoryFilter{Limit: 50}.Normalize().Limit)
}

func TestErrorTaxonomy_Unwraps(t *testing.T) {
	root := errors.New("connection refused")
	err := fmt.Errorf("query: %w", &SourceError{Op: "fetch_dividends", Err: root})

	assert.True(t, IsSourceError(err))
	assert.ErrorIs(t, err, root)

	var tf *TradeFault
	assert.ErrorAs(t, fmt.Errorf("x: %w", &TradeFault{Kind: TradeKindStake, Err: root}), &tf)
	assert.Equal(t, TradeKindStake, tf.Kind)
}
