package trading

import (
	"context"
	"errors"
	"fmt"

	"github.com/aristath/tao-sentinel/internal/domain"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for manual trades with a non-positive amount.
var ErrInvalidAmount = errors.New("amount must be greater than zero")

// ManualTrade is an explicit stake or unstake request. Nil or empty fields use the defaults.
type ManualTrade struct {
	TopicID    *int
	AccountKey string
	Amount     decimal.Decimal
}

// execute submits one trade and resolves it into an operation. It never returns an error:
// faults are captured on the operation.
func (w *Workflow) execute(ctx context.Context, kind domain.TradeKind, account string, amount decimal.Decimal, topicID int) domain.TradeOperation {
	var (
		res domain.StakeResult
		err error
	)
	switch kind {
	case domain.TradeKindStake:
		res, err = w.trader.Stake(ctx, account, amount, topicID)
	case domain.TradeKindUnstake:
		res, err = w.trader.Unstake(ctx, account, amount, topicID)
	default:
		err = fmt.Errorf("unknown trade kind %q", kind)
	}

	log := w.log.With().
		Str("kind", string(kind)).
		Str("account_key", account).
		Str("amount", amount.String()).
		Int("topic_id", topicID).
		Logger()

	switch {
	case err != nil && isDuplicate(err):
		log.Warn().Err(err).Msg("Trade already applied by the ledger")
		return domain.CompleteTrade(topicID, account, amount, kind, res.TxRef, DuplicateNote)
	case err != nil:
		fault := &domain.TradeFault{Kind: kind, Err: err}
		log.Error().Err(fault).Msg("Trade failed")
		return domain.FailTrade(topicID, account, amount, kind, fault)
	case !res.Succeeded:
		fault := &domain.TradeFault{Kind: kind, Err: errors.New("ledger reported the extrinsic as unsuccessful")}
		log.Error().Err(fault).Str("tx_ref", res.TxRef).Msg("Trade rejected")
		return domain.FailTrade(topicID, account, amount, kind, fault)
	}

	log.Info().Str("tx_ref", res.TxRef).Msg("Trade executed")
	return domain.CompleteTrade(topicID, account, amount, kind, res.TxRef, "")
}

// Stake adds stake outside the sentiment workflow.
func (w *Workflow) Stake(ctx context.Context, req ManualTrade) (domain.TradeOperation, error) {
	return w.manual(ctx, domain.TradeKindStake, req)
}

// Unstake removes stake outside the sentiment workflow.
func (w *Workflow) Unstake(ctx context.Context, req ManualTrade) (domain.TradeOperation, error) {
	return w.manual(ctx, domain.TradeKindUnstake, req)
}

func (w *Workflow) manual(ctx context.Context, kind domain.TradeKind, req ManualTrade) (domain.TradeOperation, error) {
	if !req.Amount.IsPositive() {
		return domain.TradeOperation{}, ErrInvalidAmount
	}
	topic := w.cfg.DefaultTopicID
	if req.TopicID != nil {
		topic = *req.TopicID
	}
	account := req.AccountKey
	if account == "" {
		account = w.cfg.DefaultAccount
	}
	if account == "" {
		return domain.TradeOperation{}, errors.New("no account key given and no default configured")
	}

	op := w.execute(ctx, kind, account, req.Amount, topic)

	if w.history != nil {
		if err := w.history.RecordTrade(ctx, domain.NewTradeRecord("", op, nil)); err != nil {
			w.log.Warn().Err(err).Msg("Failed to record manual trade")
		}
	}
	w.emitTrade("", op)
	return op, nil
}
