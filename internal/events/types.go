// Package events provides the in-process event bus used to publish workflow and dividend activity.
package events

import "time"

// EventType represents different event types
type EventType string

const (
	DividendsFetched  EventType = "DIVIDENDS_FETCHED"
	WorkflowStarted   EventType = "WORKFLOW_STARTED"
	WorkflowCompleted EventType = "WORKFLOW_COMPLETED"
	WorkflowRejected  EventType = "WORKFLOW_REJECTED"
	TradeExecuted     EventType = "TRADE_EXECUTED"
	CacheCleared      EventType = "CACHE_CLEARED"
	BackupCompleted   EventType = "BACKUP_COMPLETED"
	ErrorOccurred     EventType = "ERROR_OCCURRED"
)

// AllTypes lists every event type the bus can carry.
var AllTypes = []EventType{
	DividendsFetched,
	WorkflowStarted,
	WorkflowCompleted,
	WorkflowRejected,
	TradeExecuted,
	CacheCleared,
	BackupCompleted,
	ErrorOccurred,
}

// Event represents a system event
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Module    string    `json:"module"`
	Data      EventData `json:"data"`
}

// EventData is implemented by every typed payload.
type EventData interface {
	EventType() EventType
}

// DividendsFetchedData contains data for DividendsFetched events
type DividendsFetchedData struct {
	CacheKey string `json:"cache_key"`
	Records  int    `json:"records"`
	Cached   bool   `json:"cached"`
}

func (d *DividendsFetchedData) EventType() EventType { return DividendsFetched }

// WorkflowData is shared by the workflow lifecycle events.
type WorkflowData struct {
	WorkflowID string `json:"workflow_id"`
	TopicID    int    `json:"topic_id"`
	AccountKey string `json:"account_key"`
	State      string `json:"state,omitempty"`
	Score      *int   `json:"score,omitempty"`
	Decision   string `json:"decision,omitempty"`
	Reason     string `json:"reason,omitempty"`

	Type EventType `json:"-"`
}

func (d *WorkflowData) EventType() EventType { return d.Type }

// TradeExecutedData contains data for TradeExecuted events
type TradeExecutedData struct {
	WorkflowID string `json:"workflow_id,omitempty"`
	TopicID    int    `json:"topic_id"`
	AccountKey string `json:"account_key"`
	Kind       string `json:"kind"`
	Amount     string `json:"amount"`
	Succeeded  bool   `json:"succeeded"`
	TxRef      string `json:"tx_ref,omitempty"`
	Error      string `json:"error,omitempty"`
}

func (d *TradeExecutedData) EventType() EventType { return TradeExecuted }

// CacheClearedData contains data for CacheCleared events
type CacheClearedData struct {
	CacheKey string `json:"cache_key"`
	Existed  bool   `json:"existed"`
}

func (d *CacheClearedData) EventType() EventType { return CacheCleared }

// BackupCompletedData contains data for BackupCompleted events
type BackupCompletedData struct {
	Key       string `json:"key"`
	SizeBytes int64  `json:"size_bytes"`
}

func (d *BackupCompletedData) EventType() EventType { return BackupCompleted }

// ErrorEventData contains data for ErrorOccurred events
type ErrorEventData struct {
	Error   string         `json:"error"`
	Context map[string]any `json:"context,omitempty"`
}

func (d *ErrorEventData) EventType() EventType { return ErrorOccurred }
