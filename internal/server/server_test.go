package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aristath/tao-sentinel/internal/database"
	"github.com/aristath/tao-sentinel/internal/domain"
	"github.com/aristath/tao-sentinel/internal/events"
	"github.com/aristath/tao-sentinel/internal/modules/dividends"
	"github.com/aristath/tao-sentinel/internal/modules/trading"
	testhelpers "github.com/aristath/tao-sentinel/internal/testing"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testToken = "secret-token"

type stubDividends struct{}

func (stubDividends) Query(ctx context.Context, q dividends.Query) (dividends.QueryResult, error) {
	return dividends.QueryResult{Result: domain.ZeroDividend(18, "ACCT_A")}, nil
}

func (stubDividends) ClearCache(ctx context.Context, topicID *int, accountKey *string) (bool, error) {
	return false, nil
}

type stubTrader struct{}

func (stubTrader) Stake(ctx context.Context, req trading.ManualTrade) (domain.TradeOperation, error) {
	return domain.CompleteTrade(18, "A", req.Amount, domain.TradeKindStake, "0x1", ""), nil
}

func (stubTrader) Unstake(ctx context.Context, req trading.ManualTrade) (domain.TradeOperation, error) {
	return domain.CompleteTrade(18, "A", req.Amount, domain.TradeKindUnstake, "0x2", ""), nil
}

type stubHistory struct{}

func (stubHistory) ListDividends(ctx context.Context, f domain.HistoryFilter) ([]domain.DividendObservation, error) {
	return nil, nil
}

func (stubHistory) ListTrades(ctx context.Context, f domain.HistoryFilter) ([]domain.TradeRecord, error) {
	return nil, nil
}

func (stubHistory) ListSentiments(ctx context.Context, f domain.HistoryFilter) ([]domain.SentimentRecord, error) {
	return nil, nil
}

type stubMonitor int

func (m stubMonitor) InFlight() int { return int(m) }

func newTestServer(t *testing.T, bus *events.Bus, dbs ...*database.DB) *Server {
	t.Helper()
	return New(Config{
		Log:       zerolog.Nop(),
		Port:      0,
		DevMode:   true,
		AuthToken: testToken,
		Dividends: stubDividends{},
		Trader:    stubTrader{},
		History:   stubHistory{},
		EventBus:  bus,
		Workflows: stubMonitor(3),
		Databases: dbs,
	})
}

func do(s *Server, method, target, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealthNeedsNoAuth(t *testing.T) {
	s := newTestServer(t, events.NewBus(zerolog.Nop()))

	rec := do(s, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestAuthMiddleware(t *testing.T) {
	s := newTestServer(t, events.NewBus(zerolog.Nop()))

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing", header: "", want: http.StatusUnauthorized},
		{name: "wrong", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "bearer", header: "Bearer " + testToken, want: http.StatusOK},
		{name: "raw", header: testToken, want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodGet, "/api/v1/tao_dividends?netuid=18&hotkey=ACCT_A", tt.header)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusUnauthorized {
				var body map[string]interface{}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				assert.Equal(t, "authentication_error", body["code"])
				assert.Equal(t, float64(401), body["status_code"])
			}
		})
	}
}

func TestRoutesAreMounted(t *testing.T) {
	s := newTestServer(t, events.NewBus(zerolog.Nop()))
	auth := "Bearer " + testToken

	assert.Equal(t, http.StatusOK, do(s, http.MethodDelete, "/api/v1/tao_dividends/cache", auth).Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/api/v1/dividend-history", auth).Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/api/v1/stake-transaction-history", auth).Code)
	assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/api/v1/sentiment-history", auth).Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/stake", strings.NewReader(`{"amount": 0.25}`))
	req.Header.Set("Authorization", auth)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var op domain.TradeOperation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &op))
	assert.True(t, op.Amount.Equal(decimal.RequireFromString("0.25")))
}

func TestSystemStatus(t *testing.T) {
	db := testhelpers.NewTestDB(t, "history")
	s := newTestServer(t, events.NewBus(zerolog.Nop()), db)

	rec := do(s, http.MethodGet, "/api/system/status", testToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp SystemStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 3, resp.WorkflowsInFlight)
	assert.Positive(t, resp.Goroutines)
	require.Len(t, resp.Databases, 1)
	assert.Equal(t, "history", resp.Databases[0].Name)
	assert.True(t, resp.Databases[0].Healthy)
}

func TestEventsStream(t *testing.T) {
	bus := events.NewBus(zerolog.Nop())
	s := newTestServer(t, bus)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/events/stream?types=TRADE_EXECUTED", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", testToken)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() map[string]interface{} {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if strings.HasPrefix(line, "data: ") {
				var payload map[string]interface{}
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(line), "data: ")), &payload))
				return payload
			}
		}
	}

	assert.Equal(t, "connected", readEvent()["type"])
	require.Equal(t, 1, bus.SubscriberCount(events.TradeExecuted))

	bus.Emit("trading", &events.CacheClearedData{CacheKey: "ignored"})
	bus.Emit("trading", &events.TradeExecutedData{TopicID: 18, AccountKey: "ACCT_A", Kind: "stake", Amount: "0.1", Succeeded: true})

	payload := readEvent()
	assert.Equal(t, "TRADE_EXECUTED", payload["type"])
	assert.Equal(t, "trading", payload["module"])
	data, ok := payload["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "ACCT_A", data["account_key"])

	cancel()
	assert.Eventually(t, func() bool {
		return bus.SubscriberCount(events.TradeExecuted) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
