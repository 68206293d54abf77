package dividends

import (
	"context"

	"github.com/aristath/tao-sentinel/internal/domain"
)

// TradeScheduler starts a background trading workflow without waiting for it.
type TradeScheduler interface {
	Schedule(topicID int, accountKey string) ScheduleOutcome
}

// ScheduleOutcome reports whether a workflow was admitted.
type ScheduleOutcome struct {
	WorkflowID string
	Scheduled  bool
	Reason     error
}

// Query is a dividend read that may also trigger trading.
type Query struct {
	TopicID    *int
	AccountKey *string
	Trade      bool
}

// QueryResult is the read result plus the outcome of any trade trigger.
type QueryResult struct {
	Result   domain.DividendResult
	Workflow *ScheduleOutcome
}

// WithScheduler attaches the trade scheduler used by Query.
func (s *Service) WithScheduler(scheduler TradeScheduler, defaultAccount string) *Service {
	s.scheduler = scheduler
	s.defaultAccount = defaultAccount
	return s
}

// Query runs GetDividends and, when requested, schedules a workflow for the topic.
// A rejected admission leaves the read successful with trade_triggered=false.
func (s *Service) Query(ctx context.Context, q Query) (QueryResult, error) {
	result, err := s.GetDividends(ctx, q.TopicID, q.AccountKey)
	if err != nil {
		return QueryResult{}, err
	}

	out := QueryResult{Result: result}
	if !q.Trade || s.scheduler == nil {
		return out, nil
	}

	topic := s.policy.DefaultTopicID
	if q.TopicID != nil {
		topic = *q.TopicID
	}
	account := s.defaultAccount
	if q.AccountKey != nil {
		account = *q.AccountKey
	}

	outcome := s.scheduler.Schedule(topic, account)
	out.Workflow = &outcome
	if outcome.Scheduled {
		out.Result = result.WithTradeTriggered(true)
		s.log.Info().
			Str("workflow_id", outcome.WorkflowID).
			Int("topic_id", topic).
			Msg("Trading workflow scheduled")
	} else {
		s.log.Warn().
			Err(outcome.Reason).
			Int("topic_id", topic).
			Msg("Trading workflow not scheduled")
	}
	return out, nil
}
