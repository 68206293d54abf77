package di

import (
	"context"
	"testing"
	"time"

	"github.com/aristath/tao-sentinel/internal/domain"
	"github.com/aristath/tao-sentinel/internal/modules/trading"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingSignal struct {
	release chan struct{}
}

func (s *blockingSignal) FetchPosts(ctx context.Context, _ int, _ int) ([]domain.Post, error) {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return nil, nil
}

func (s *blockingSignal) Score(context.Context, []domain.Post, int) (int, error) { return 0, nil }

type noopTrader struct{}

func (noopTrader) Stake(context.Context, string, decimal.Decimal, int) (domain.StakeResult, error) {
	return domain.StakeResult{}, nil
}

func (noopTrader) Unstake(context.Context, string, decimal.Decimal, int) (domain.StakeResult, error) {
	return domain.StakeResult{}, nil
}

func TestWorkflowScheduler(t *testing.T) {
	signal := &blockingSignal{release: make(chan struct{})}
	wf := trading.NewWorkflow(signal, noopTrader{}, nil, nil, nil, trading.Config{
		MaxConcurrent:  1,
		DefaultAccount: "5Default",
	}, zerolog.Nop())
	adapter := &workflowScheduler{workflow: wf}

	first := adapter.Schedule(18, "")
	require.True(t, first.Scheduled)
	assert.NotEmpty(t, first.WorkflowID)
	assert.NoError(t, first.Reason)

	second := adapter.Schedule(18, "")
	assert.False(t, second.Scheduled)
	assert.Empty(t, second.WorkflowID)
	assert.ErrorIs(t, second.Reason, domain.ErrAdmissionRejected)

	close(signal.release)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, wf.Shutdown(ctx))
}
