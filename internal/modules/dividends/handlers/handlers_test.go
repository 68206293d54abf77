package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aristath/tao-sentinel/internal/domain"
	"github.com/aristath/tao-sentinel/internal/modules/dividends"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQuerier struct {
	result    dividends.QueryResult
	err       error
	lastQuery dividends.Query
	cleared   bool
}

func (f *fakeQuerier) Query(ctx context.Context, q dividends.Query) (dividends.QueryResult, error) {
	f.lastQuery = q
	return f.result, f.err
}

func (f *fakeQuerier) ClearCache(ctx context.Context, topicID *int, accountKey *string) (bool, error) {
	return f.cleared, nil
}

type fakeReader struct {
	filter domain.HistoryFilter
	rows   []domain.DividendObservation
}

func (f *fakeReader) ListDividends(ctx context.Context, filter domain.HistoryFilter) ([]domain.DividendObservation, error) {
	f.filter = filter
	return f.rows, nil
}

func (f *fakeReader) ListTrades(ctx context.Context, filter domain.HistoryFilter) ([]domain.TradeRecord, error) {
	return nil, nil
}

func (f *fakeReader) ListSentiments(ctx context.Context, filter domain.HistoryFilter) ([]domain.SentimentRecord, error) {
	return nil, nil
}

func newRouter(q *fakeQuerier, reader *fakeReader) http.Handler {
	r := chi.NewRouter()
	NewHandler(q, reader, zerolog.Nop()).RegisterRoutes(r)
	return r
}

func TestHandleGetDividends_Record(t *testing.T) {
	q := &fakeQuerier{result: dividends.QueryResult{
		Result: domain.DividendRecord{TopicID: 18, AccountKey: "ACCT_A", Dividend: decimal.NewFromInt(1000)},
	}}
	rec := httptest.NewRecorder()
	newRouter(q, &fakeReader{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tao_dividends?netuid=18&hotkey=ACCT_A", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ACCT_A", body["account_key"])
	assert.Equal(t, "1000", body["dividend"])
	assert.Equal(t, false, body["cached"])

	require.NotNil(t, q.lastQuery.TopicID)
	assert.Equal(t, 18, *q.lastQuery.TopicID)
	assert.Equal(t, "ACCT_A", *q.lastQuery.AccountKey)
	assert.False(t, q.lastQuery.Trade)
	assert.Empty(t, rec.Header().Get(WorkflowIDHeader))
}

func TestHandleGetDividends_TradeSetsWorkflowHeader(t *testing.T) {
	q := &fakeQuerier{result: dividends.QueryResult{
		Result:   domain.DividendBatch{Dividends: []domain.DividendRecord{}, TradeTriggered: true},
		Workflow: &dividends.ScheduleOutcome{WorkflowID: "wf-9", Scheduled: true},
	}}
	rec := httptest.NewRecorder()
	newRouter(q, &fakeReader{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tao_dividends?trade=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "wf-9", rec.Header().Get(WorkflowIDHeader))
	assert.True(t, q.lastQuery.Trade)
	assert.Nil(t, q.lastQuery.TopicID)
	assert.Nil(t, q.lastQuery.AccountKey)
}

func TestHandleGetDividends_SourceError(t *testing.T) {
	q := &fakeQuerier{err: &domain.SourceError{Op: "fetch_dividends", Err: errors.New("unreachable")}}
	rec := httptest.NewRecorder()
	newRouter(q, &fakeReader{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tao_dividends?netuid=1", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "blockchain_error", body["code"])
	assert.Equal(t, float64(500), body["status_code"])
	assert.Contains(t, body["message"], "unreachable")
}

func TestHandleGetDividends_Validation(t *testing.T) {
	for _, target := range []string{"/tao_dividends?netuid=abc", "/tao_dividends?netuid=-2", "/tao_dividends?trade=maybe"} {
		rec := httptest.NewRecorder()
		newRouter(&fakeQuerier{}, &fakeReader{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestHandleClearCache(t *testing.T) {
	rec := httptest.NewRecorder()
	newRouter(&fakeQuerier{cleared: true}, &fakeReader{}).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/tao_dividends/cache?netuid=0", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "dividends:0:all", body["key"])
	assert.Equal(t, true, body["cleared"])
}

func TestHandleGetHistory(t *testing.T) {
	reader := &fakeReader{}
	rec := httptest.NewRecorder()
	newRouter(&fakeQuerier{}, reader).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dividend-history?netuid=18&limit=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
	require.NotNil(t, reader.filter.TopicID)
	assert.Equal(t, 18, *reader.filter.TopicID)
	assert.Equal(t, 5, reader.filter.Limit)
}
