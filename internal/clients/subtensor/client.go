// Package subtensor is the ledger adapter: JSON-RPC 2.0 over a websocket to a
// subtensor gateway for dividend reads and stake submissions.
package subtensor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aristath/tao-sentinel/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"nhooyr.io/websocket"
)

const (
	writeWait   = 10 * time.Second
	dialTimeout = 15 * time.Second

	defaultMaxAttempts = 3
	defaultBaseDelay   = 500 * time.Millisecond
	defaultMaxDelay    = 5 * time.Second

	methodDividends = "subtensor_taoDividendsPerSubnet"
	methodAddStake  = "subtensor_addStake"
	methodRemove    = "subtensor_removeStake"
)

var errConnectionLost = errors.New("ledger connection lost")

// Option customizes a Client.
type Option func(*Client)

// WithRetry overrides the attempt count and backoff bounds.
func WithRetry(attempts int, base, max time.Duration) Option {
	return func(c *Client) {
		c.maxAttempts = attempts
		c.baseDelay = base
		c.maxDelay = max
	}
}

// session is one live websocket plus its in-flight calls.
type session struct {
	conn    *websocket.Conn
	ctx     context.Context // cancelled when the read loop exits
	cancel  context.CancelFunc
	mu      sync.Mutex
	pending map[uint64]chan rpcResponse
}

// Client talks to the ledger gateway. The connection is opened on first use
// and reopened after it dies.
type Client struct {
	url string
	log zerolog.Logger

	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration

	mu      sync.Mutex
	current *session
	dialing chan struct{} // non-nil while a dial is in progress
	dialErr error
	closed  bool

	nextID atomic.Uint64
}

// NewClient creates a ledger client. No connection is made until the first call.
func NewClient(url string, log zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		url:         url,
		log:         log.With().Str("client", "subtensor").Logger(),
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		maxDelay:    defaultMaxDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	return c
}

// FetchDividends queries each topic and keeps the rows for accountKey (all rows
// when nil). In a multi-topic scan a failing topic is skipped; the scan fails
// only when every topic failed.
func (c *Client) FetchDividends(ctx context.Context, topicIDs []int, accountKey *string) ([]domain.DividendEntry, error) {
	var entries []domain.DividendEntry
	var lastErr error
	failed := 0

	for _, topicID := range topicIDs {
		var rows []dividendRow
		if err := c.call(ctx, methodDividends, []interface{}{topicID}, &rows); err != nil {
			if len(topicIDs) == 1 || ctx.Err() != nil {
				return nil, err
			}
			c.log.Warn().Err(err).Int("topic_id", topicID).Msg("Skipping topic after fetch failure")
			lastErr = err
			failed++
			continue
		}

		for _, row := range rows {
			if accountKey != nil && row.Hotkey != *accountKey {
				continue
			}
			if row.Dividend.IsNegative() {
				c.log.Warn().Int("topic_id", topicID).Str("account_key", row.Hotkey).Msg("Dropping negative dividend row")
				continue
			}
			entries = append(entries, domain.DividendEntry{
				TopicID:    topicID,
				AccountKey: row.Hotkey,
				Amount:     row.Dividend,
			})
		}
	}

	if len(topicIDs) > 0 && failed == len(topicIDs) {
		return nil, fmt.Errorf("all %d topics failed: %w", failed, lastErr)
	}

	c.log.Debug().Int("topics", len(topicIDs)).Int("rows", len(entries)).Msg("Fetched dividends")
	return entries, nil
}

// Stake adds stake to accountKey on topicID.
func (c *Client) Stake(ctx context.Context, accountKey string, amount decimal.Decimal, topicID int) (domain.StakeResult, error) {
	return c.submit(ctx, methodAddStake, accountKey, amount, topicID)
}

// Unstake removes stake from accountKey on topicID.
func (c *Client) Unstake(ctx context.Context, accountKey string, amount decimal.Decimal, topicID int) (domain.StakeResult, error) {
	return c.submit(ctx, methodRemove, accountKey, amount, topicID)
}

func (c *Client) submit(ctx context.Context, method, accountKey string, amount decimal.Decimal, topicID int) (domain.StakeResult, error) {
	var raw json.RawMessage
	params := stakeParams{Hotkey: accountKey, Netuid: topicID, Amount: amount.String()}

	if err := c.call(ctx, method, params, &raw); err != nil {
		if IsDuplicateSubmission(err) {
			return domain.StakeResult{}, fmt.Errorf("%w: %v", domain.ErrDuplicateSubmission, err)
		}
		return domain.StakeResult{}, err
	}

	result, err := normalizeStakeResult(raw)
	if err != nil {
		return domain.StakeResult{}, err
	}

	c.log.Info().
		Str("method", method).
		Str("account_key", accountKey).
		Int("topic_id", topicID).
		Str("amount", amount.String()).
		Bool("succeeded", result.Succeeded).
		Str("tx_ref", result.TxRef).
		Msg("Submission completed")
	return result, nil
}

// call performs one RPC with up to maxAttempts tries. Only transport faults are
// retried; an error object from the gateway is returned as is.
func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	var lastErr error

	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		sess, err := c.session(ctx)
		if err == nil {
			var resp rpcResponse
			resp, err = c.roundTrip(ctx, sess, method, params)
			if err == nil {
				if resp.Error != nil {
					return resp.Error
				}
				if result != nil {
					if err := json.Unmarshal(resp.Result, result); err != nil {
						return fmt.Errorf("decode %s result: %w", method, err)
					}
				}
				return nil
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.drop(sess)
		}

		lastErr = err
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == c.maxAttempts {
			break
		}

		delay := c.backoff(attempt)
		c.log.Warn().Err(err).Str("method", method).Int("attempt", attempt).Dur("delay", delay).Msg("Ledger call failed, retrying")

		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", method, c.maxAttempts, lastErr)
}

// backoff returns base * 2^(attempt-1), capped at maxDelay.
func (c *Client) backoff(attempt int) time.Duration {
	delay := float64(c.baseDelay) * math.Pow(2, float64(attempt-1))
	if delay > float64(c.maxDelay) {
		delay = float64(c.maxDelay)
	}
	return time.Duration(delay)
}

// session returns the live connection, dialing once if there is none. Concurrent
// callers wait for the in-flight dial instead of dialing again. The lock is never
// held across network I/O.
func (c *Client) session(ctx context.Context) (*session, error) {
	for {
		c.mu.Lock()
		if c.closed {
			c.mu.Unlock()
			return nil, errors.New("ledger client closed")
		}
		if c.current != nil {
			sess := c.current
			c.mu.Unlock()
			return sess, nil
		}
		if c.dialing != nil {
			wait := c.dialing
			c.mu.Unlock()
			select {
			case <-wait:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			c.mu.Lock()
			err := c.dialErr
			c.mu.Unlock()
			if err != nil {
				return nil, err
			}
			continue
		}
		done := make(chan struct{})
		c.dialing = done
		c.mu.Unlock()

		sess, err := c.dial(ctx)

		c.mu.Lock()
		c.dialing = nil
		c.dialErr = err
		if err == nil {
			if c.closed {
				sess.cancel()
				_ = sess.conn.Close(websocket.StatusNormalClosure, "client closed")
				err = errors.New("ledger client closed")
			} else {
				c.current = sess
			}
		}
		c.mu.Unlock()
		close(done)

		if err != nil {
			return nil, err
		}
		return sess, nil
	}
}

func (c *Client) dial(ctx context.Context) (*session, error) {
	dialCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	c.log.Info().Str("url", c.url).Msg("Connecting to ledger gateway")

	conn, _, err := websocket.Dial(dialCtx, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial ledger gateway: %w", err)
	}
	conn.SetReadLimit(8 << 20)

	sessCtx, sessCancel := context.WithCancel(context.Background())
	sess := &session{
		conn:    conn,
		ctx:     sessCtx,
		cancel:  sessCancel,
		pending: make(map[uint64]chan rpcResponse),
	}
	go c.readLoop(sess)

	return sess, nil
}

// readLoop dispatches responses to waiting calls until the connection dies.
func (c *Client) readLoop(sess *session) {
	defer func() {
		sess.cancel()
		c.drop(sess)
	}()

	for {
		_, data, err := sess.conn.Read(sess.ctx)
		if err != nil {
			if sess.ctx.Err() == nil {
				c.log.Warn().Err(err).Msg("Ledger connection read failed")
			}
			return
		}

		var resp rpcResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			c.log.Warn().Err(err).Msg("Ignoring malformed ledger message")
			continue
		}

		sess.mu.Lock()
		ch, ok := sess.pending[resp.ID]
		delete(sess.pending, resp.ID)
		sess.mu.Unlock()

		if ok {
			ch <- resp
		}
	}
}

func (c *Client) roundTrip(ctx context.Context, sess *session, method string, params interface{}) (rpcResponse, error) {
	id := c.nextID.Add(1)
	data, err := json.Marshal(rpcRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return rpcResponse{}, fmt.Errorf("encode %s request: %w", method, err)
	}

	ch := make(chan rpcResponse, 1)
	sess.mu.Lock()
	sess.pending[id] = ch
	sess.mu.Unlock()

	defer func() {
		sess.mu.Lock()
		delete(sess.pending, id)
		sess.mu.Unlock()
	}()

	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	err = sess.conn.Write(writeCtx, websocket.MessageText, data)
	cancel()
	if err != nil {
		return rpcResponse{}, fmt.Errorf("send %s: %w", method, err)
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-sess.ctx.Done():
		return rpcResponse{}, errConnectionLost
	case <-ctx.Done():
		return rpcResponse{}, ctx.Err()
	}
}

// drop forgets sess if it is still the current connection and closes it.
func (c *Client) drop(sess *session) {
	c.mu.Lock()
	if c.current == sess {
		c.current = nil
	}
	c.mu.Unlock()

	sess.cancel()
	_ = sess.conn.Close(websocket.StatusGoingAway, "")
}

// Connected reports whether a live connection exists.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// Close shuts the connection down. Later calls fail.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	sess := c.current
	c.current = nil
	c.mu.Unlock()

	if sess == nil {
		return nil
	}
	sess.cancel()
	return sess.conn.Close(websocket.StatusNormalClosure, "")
}
