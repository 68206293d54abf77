package di

import (
	"github.com/aristath/tao-sentinel/internal/modules/dividends"
	"github.com/aristath/tao-sentinel/internal/modules/trading"
)

// workflowScheduler adapts trading.Workflow to dividends.TradeScheduler
type workflowScheduler struct {
	workflow *trading.Workflow
}

func (a *workflowScheduler) Schedule(topicID int, accountKey string) dividends.ScheduleOutcome {
	h := a.workflow.Trigger(trading.TriggerRequest{TopicID: topicID, AccountKey: accountKey})
	return dividends.ScheduleOutcome{
		WorkflowID: h.ID,
		Scheduled:  h.Scheduled,
		Reason:     h.Reason,
	}
}
