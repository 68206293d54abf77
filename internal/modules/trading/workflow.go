// Package trading runs the sentiment-triggered stake/unstake workflow.
package trading

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/tao-sentinel/internal/cache"
	"github.com/aristath/tao-sentinel/internal/domain"
	"github.com/aristath/tao-sentinel/internal/events"
	"github.com/aristath/tao-sentinel/internal/modules/sentiment"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// State is a workflow step.
type State string

const (
	StateQueued         State = "queued"
	StateFetchingSignal State = "fetching_signal"
	StateScoring        State = "scoring"
	StateSkipped        State = "skipped"
	StateExecutingTrade State = "executing_trade"
	StateRecording      State = "recording"
	StateCompleted      State = "completed"
	StateFailed         State = "failed"
)

// DuplicateNote is attached to trades the ledger had already applied.
const DuplicateNote = "duplicate submission: the ledger already applied this operation"

// Config holds workflow settings.
type Config struct {
	MaxConcurrent     int
	Timeout           time.Duration
	MaxPosts          int
	SentimentCacheTTL time.Duration // 0 disables the sentiment cache
	DefaultTopicID    int
	DefaultAccount    string
	Sizing            sentiment.Policy
}

// TriggerRequest selects the topic and account a workflow trades on.
// An empty AccountKey uses the configured default.
type TriggerRequest struct {
	TopicID    int
	AccountKey string
}

// WorkflowResult is the terminal outcome of one run.
type WorkflowResult struct {
	WorkflowID string                 `json:"workflow_id"`
	TopicID    int                    `json:"topic_id"`
	AccountKey string                 `json:"account_key"`
	State      State                  `json:"state"`
	Path       []State                `json:"path"`
	Sentiment  domain.SentimentScore  `json:"sentiment"`
	Trade      *domain.TradeOperation `json:"trade,omitempty"`
	Error      string                 `json:"error,omitempty"`
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
}

// Handle identifies a triggered workflow. Scheduled is false when admission was refused.
type Handle struct {
	ID        string
	TopicID   int
	Scheduled bool
	Reason    error

	done   chan struct{}
	result WorkflowResult
}

// Wait blocks until the workflow finishes or ctx is done.
func (h *Handle) Wait(ctx context.Context) (WorkflowResult, error) {
	if !h.Scheduled {
		return WorkflowResult{}, h.Reason
	}
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return WorkflowResult{}, ctx.Err()
	}
}

// Workflow runs sentiment-triggered trades with bounded concurrency.
type Workflow struct {
	signal  domain.SignalSource
	trader  domain.TradeExecutor
	history domain.HistoryRecorder
	cache   cache.Store
	bus     *events.Bus
	cfg     Config
	log     zerolog.Logger

	sem      *semaphore.Weighted
	inFlight atomic.Int64
	wg       sync.WaitGroup
}

// NewWorkflow creates the workflow runner. store, history and bus may be nil.
func NewWorkflow(
	signal domain.SignalSource,
	trader domain.TradeExecutor,
	history domain.HistoryRecorder,
	store cache.Store,
	bus *events.Bus,
	cfg Config,
	log zerolog.Logger,
) *Workflow {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.MaxPosts <= 0 {
		cfg.MaxPosts = 10
	}
	if cfg.Sizing.Unit.IsZero() {
		cfg.Sizing = sentiment.DefaultPolicy()
	}
	return &Workflow{
		signal:  signal,
		trader:  trader,
		history: history,
		cache:   store,
		bus:     bus,
		cfg:     cfg,
		log:     log.With().Str("service", "trading_workflow").Logger(),
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// Trigger schedules a workflow in the background without waiting for it.
// When MaxConcurrent runs are in flight the request is dropped, not queued.
func (w *Workflow) Trigger(req TriggerRequest) *Handle {
	req = w.withDefaults(req)

	if !w.sem.TryAcquire(1) {
		w.log.Warn().
			Int("topic_id", req.TopicID).
			Int64("in_flight", w.inFlight.Load()).
			Msg("Workflow admission rejected")
		w.bus.Emit("trading", &events.WorkflowData{
			Type:       events.WorkflowRejected,
			TopicID:    req.TopicID,
			AccountKey: req.AccountKey,
			Reason:     domain.ErrAdmissionRejected.Error(),
		})
		return &Handle{TopicID: req.TopicID, Reason: domain.ErrAdmissionRejected}
	}

	h := &Handle{
		ID:        uuid.NewString(),
		TopicID:   req.TopicID,
		Scheduled: true,
		done:      make(chan struct{}),
	}

	w.inFlight.Add(1)
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer close(h.done)
		defer w.sem.Release(1)
		defer w.inFlight.Add(-1)

		ctx, cancel := context.WithTimeout(context.Background(), w.cfg.Timeout)
		defer cancel()

		h.result = w.run(ctx, h.ID, req)
	}()

	return h
}

// Run executes one workflow synchronously under a fresh ID.
func (w *Workflow) Run(ctx context.Context, req TriggerRequest) WorkflowResult {
	return w.run(ctx, uuid.NewString(), w.withDefaults(req))
}

// InFlight returns the number of running workflows.
func (w *Workflow) InFlight() int {
	return int(w.inFlight.Load())
}

// Shutdown waits for in-flight workflows until ctx is done.
func (w *Workflow) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("abandoning %d in-flight workflows: %w", w.InFlight(), ctx.Err())
	}
}

func (w *Workflow) withDefaults(req TriggerRequest) TriggerRequest {
	if req.AccountKey == "" {
		req.AccountKey = w.cfg.DefaultAccount
	}
	return req
}

func (w *Workflow) run(ctx context.Context, id string, req TriggerRequest) (result WorkflowResult) {
	result = WorkflowResult{
		WorkflowID: id,
		TopicID:    req.TopicID,
		AccountKey: req.AccountKey,
		Sentiment:  domain.NeutralSentiment(req.TopicID, 0),
		StartedAt:  time.Now().UTC(),
	}
	log := w.log.With().Str("workflow_id", id).Int("topic_id", req.TopicID).Logger()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Msg("Workflow panicked")
			result.Error = fmt.Sprintf("panic: %v", r)
			w.transition(&result, StateFailed, log)
		}
		result.FinishedAt = time.Now().UTC()
		w.emitCompleted(result)
	}()

	w.transition(&result, StateQueued, log)

	score := w.assess(ctx, &result, log)
	result.Sentiment = score

	var op *domain.TradeOperation
	if kind, ok := score.Decision.TradeKind(); ok {
		w.transition(&result, StateExecutingTrade, log)
		executed := w.execute(ctx, kind, req.AccountKey, score.SuggestedAmount, req.TopicID)
		op = &executed
		result.Trade = op
	} else {
		w.transition(&result, StateSkipped, log)
	}

	w.transition(&result, StateRecording, log)
	w.record(ctx, id, score, op, log)

	if op != nil {
		w.emitTrade(id, *op)
		if !op.Succeeded {
			if op.Error != nil {
				result.Error = *op.Error
			}
			w.transition(&result, StateFailed, log)
			return result
		}
	}

	w.transition(&result, StateCompleted, log)
	return result
}

// assess produces the sentiment score, degrading to neutral on any signal fault.
func (w *Workflow) assess(ctx context.Context, result *WorkflowResult, log zerolog.Logger) domain.SentimentScore {
	topic := result.TopicID

	w.transition(result, StateFetchingSignal, log)
	if cached, ok := w.cachedSentiment(ctx, topic, log); ok {
		w.transition(result, StateScoring, log)
		return cached
	}

	posts, err := w.signal.FetchPosts(ctx, topic, w.cfg.MaxPosts)
	if err != nil {
		log.Warn().Err(&domain.SignalFault{Stage: "fetch_posts", Err: err}).Msg("Signal unavailable, using neutral sentiment")
		w.transition(result, StateScoring, log)
		return domain.NeutralSentiment(topic, 0)
	}

	w.transition(result, StateScoring, log)
	if len(posts) == 0 {
		log.Info().Msg("No posts found, using neutral sentiment")
		return domain.NeutralSentiment(topic, 0)
	}

	raw, err := w.signal.Score(ctx, posts, topic)
	if err != nil {
		log.Warn().Err(&domain.SignalFault{Stage: "score", Err: err}).Msg("Scoring failed, using neutral sentiment")
		return domain.NeutralSentiment(topic, len(posts))
	}

	score := sentiment.Decide(topic, raw, len(posts), w.cfg.Sizing)
	log.Info().
		Int("raw_score", raw).
		Int("score", score.Score).
		Int("posts", len(posts)).
		Str("decision", string(score.Decision)).
		Str("amount", score.SuggestedAmount.String()).
		Msg("Sentiment scored")

	w.storeSentiment(ctx, score, log)
	return score
}

func sentimentKey(topicID int) string {
	return "sentiment:" + strconv.Itoa(topicID)
}

func (w *Workflow) cachedSentiment(ctx context.Context, topicID int, log zerolog.Logger) (domain.SentimentScore, bool) {
	if w.cache == nil || w.cfg.SentimentCacheTTL <= 0 {
		return domain.SentimentScore{}, false
	}
	key := sentimentKey(topicID)
	data, ok, err := w.cache.Get(ctx, key)
	if err != nil {
		log.Warn().Err(&domain.CacheFault{Op: "get", Key: key, Err: err}).Msg("Sentiment cache read failed")
		return domain.SentimentScore{}, false
	}
	if !ok {
		return domain.SentimentScore{}, false
	}
	var score domain.SentimentScore
	if err := json.Unmarshal(data, &score); err != nil || score.TopicID != topicID {
		log.Warn().Str("key", key).Msg("Corrupt sentiment cache entry ignored")
		return domain.SentimentScore{}, false
	}
	log.Debug().Int("score", score.Score).Msg("Using cached sentiment")
	return score, true
}

func (w *Workflow) storeSentiment(ctx context.Context, score domain.SentimentScore, log zerolog.Logger) {
	if w.cache == nil || w.cfg.SentimentCacheTTL <= 0 {
		return
	}
	key := sentimentKey(score.TopicID)
	data, err := json.Marshal(score)
	if err != nil {
		return
	}
	if err := w.cache.Set(ctx, key, data, w.cfg.SentimentCacheTTL); err != nil {
		log.Warn().Err(&domain.CacheFault{Op: "set", Key: key, Err: err}).Msg("Sentiment cache write failed")
	}
}

// record persists the sentiment analysis and the trade attempt. Failures are only logged.
func (w *Workflow) record(ctx context.Context, id string, score domain.SentimentScore, op *domain.TradeOperation, log zerolog.Logger) {
	if w.history == nil {
		return
	}
	if err := w.history.RecordSentiment(ctx, domain.NewSentimentRecord(id, score)); err != nil {
		log.Warn().Err(err).Msg("Failed to record sentiment analysis")
	}
	if op == nil {
		return
	}
	s := score.Score
	if err := w.history.RecordTrade(ctx, domain.NewTradeRecord(id, *op, &s)); err != nil {
		log.Warn().Err(err).Msg("Failed to record trade")
	}
}

func (w *Workflow) transition(result *WorkflowResult, state State, log zerolog.Logger) {
	result.State = state
	result.Path = append(result.Path, state)
	log.Debug().Str("state", string(state)).Msg("Workflow transition")
}

func (w *Workflow) emitCompleted(result WorkflowResult) {
	score := result.Sentiment.Score
	w.bus.Emit("trading", &events.WorkflowData{
		Type:       events.WorkflowCompleted,
		WorkflowID: result.WorkflowID,
		TopicID:    result.TopicID,
		AccountKey: result.AccountKey,
		State:      string(result.State),
		Score:      &score,
		Decision:   string(result.Sentiment.Decision),
		Reason:     result.Error,
	})
}

func (w *Workflow) emitTrade(workflowID string, op domain.TradeOperation) {
	data := &events.TradeExecutedData{
		WorkflowID: workflowID,
		TopicID:    op.TopicID,
		AccountKey: op.AccountKey,
		Kind:       string(op.Kind),
		Amount:     op.Amount.String(),
		Succeeded:  op.Succeeded,
	}
	if op.TxRef != nil {
		data.TxRef = *op.TxRef
	}
	if op.Error != nil {
		data.Error = *op.Error
	}
	w.bus.Emit("trading", data)
}

// isDuplicate reports whether the ledger rejected a resubmission of an applied trade.
func isDuplicate(err error) bool {
	return errors.Is(err, domain.ErrDuplicateSubmission)
}
