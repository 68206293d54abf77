package subtensor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aristath/tao-sentinel/internal/domain"
	"github.com/shopspring/decimal"
)

// Substrate's pool error code for an extrinsic that is already in the pool.
const codeAlreadyImported = 1013

type rpcRequest struct {
	JSONRPC string      `json:"jsonrpc"`
	ID      uint64      `json:"id"`
	Method  string      `json:"method"`
	Params  interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// RPCError is an error object returned by the gateway.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	if len(e.Data) > 0 {
		return fmt.Sprintf("rpc error %d: %s (%s)", e.Code, e.Message, string(e.Data))
	}
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IsDuplicateSubmission reports whether err is the ledger saying the same
// extrinsic was already submitted.
func IsDuplicateSubmission(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, domain.ErrDuplicateSubmission) {
		return true
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == codeAlreadyImported {
		return true
	}
	return strings.Contains(strings.ToLower(err.Error()), "already imported")
}

// dividendRow is one element of a taoDividendsPerSubnet result.
type dividendRow struct {
	Hotkey   string          `json:"hotkey"`
	Dividend decimal.Decimal `json:"dividend"`
}

type stakeParams struct {
	Hotkey string `json:"hotkey"`
	Netuid int    `json:"netuid"`
	Amount string `json:"amount"`
}

// normalizeStakeResult collapses the shapes the gateway may return for a
// submission into a StakeResult:
//
//	{"success": true, "tx_hash": "0x.."}   object
//	true                                    bare bool
//	"0x.."                                  bare hash (implies success)
//	[true, "0x.."]                          tuple
func normalizeStakeResult(raw json.RawMessage) (domain.StakeResult, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return domain.StakeResult{}, fmt.Errorf("empty submission result")
	}

	switch trimmed[0] {
	case '{':
		var obj struct {
			Success       *bool  `json:"success"`
			TxHash        string `json:"tx_hash"`
			ExtrinsicHash string `json:"extrinsic_hash"`
		}
		if err := json.Unmarshal(raw, &obj); err != nil {
			return domain.StakeResult{}, fmt.Errorf("decode submission result: %w", err)
		}
		hash := obj.TxHash
		if hash == "" {
			hash = obj.ExtrinsicHash
		}
		succeeded := hash != ""
		if obj.Success != nil {
			succeeded = *obj.Success
		}
		return domain.StakeResult{Succeeded: succeeded, TxRef: hash}, nil

	case '[':
		var tuple []json.RawMessage
		if err := json.Unmarshal(raw, &tuple); err != nil || len(tuple) == 0 {
			return domain.StakeResult{}, fmt.Errorf("decode submission tuple: %s", trimmed)
		}
		var succeeded bool
		if err := json.Unmarshal(tuple[0], &succeeded); err != nil {
			return domain.StakeResult{}, fmt.Errorf("decode submission tuple flag: %w", err)
		}
		var hash string
		if len(tuple) > 1 {
			_ = json.Unmarshal(tuple[1], &hash)
		}
		return domain.StakeResult{Succeeded: succeeded, TxRef: hash}, nil

	case '"':
		var hash string
		if err := json.Unmarshal(raw, &hash); err != nil {
			return domain.StakeResult{}, fmt.Errorf("decode submission hash: %w", err)
		}
		return domain.StakeResult{Succeeded: hash != "", TxRef: hash}, nil

	case 't', 'f':
		var succeeded bool
		if err := json.Unmarshal(raw, &succeeded); err != nil {
			return domain.StakeResult{}, fmt.Errorf("decode submission flag: %w", err)
		}
		return domain.StakeResult{Succeeded: succeeded}, nil
	}

	return domain.StakeResult{}, fmt.Errorf("unrecognized submission result: %s", trimmed)
}
