// Package sentiment turns social posts about a topic into a bounded score and a trade decision.
package sentiment

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/aristath/tao-sentinel/internal/domain"
	"github.com/shopspring/decimal"
)

const (
	MinScore = -100
	MaxScore = 100
)

// ErrMalformedScore is returned when a completion is not a bare integer.
var ErrMalformedScore = errors.New("malformed sentiment score")

// Policy sizes trades from scores.
type Policy struct {
	Unit decimal.Decimal // amount per score point
	Max  decimal.Decimal // cap on a single trade
}

// DefaultPolicy is 0.01 per point, capped at 1.0.
func DefaultPolicy() Policy {
	return Policy{
		Unit: decimal.RequireFromString("0.01"),
		Max:  decimal.NewFromInt(1),
	}
}

// Clamp bounds a raw score to [MinScore, MaxScore].
func Clamp(score int) int {
	if score < MinScore {
		return MinScore
	}
	if score > MaxScore {
		return MaxScore
	}
	return score
}

// ParseScore reads a completion such as " 42\n" or "-87".
func ParseScore(completion string) (int, error) {
	text := strings.TrimSpace(completion)
	if text == "" {
		return 0, fmt.Errorf("%w: empty completion", ErrMalformedScore)
	}
	score, err := strconv.Atoi(text)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrMalformedScore, text)
	}
	return score, nil
}

// Decide clamps the score and derives the decision and suggested amount.
func Decide(topicID, score, sampleSize int, policy Policy) domain.SentimentScore {
	score = Clamp(score)

	result := domain.SentimentScore{
		TopicID:         topicID,
		Score:           score,
		SampleSize:      sampleSize,
		Decision:        domain.DecisionNone,
		SuggestedAmount: decimal.Zero,
	}

	switch {
	case score > 0:
		result.Decision = domain.DecisionStake
	case score < 0:
		result.Decision = domain.DecisionUnstake
	default:
		return result
	}

	abs := score
	if abs < 0 {
		abs = -abs
	}
	amount := policy.Unit.Mul(decimal.NewFromInt(int64(abs)))
	if policy.Max.IsPositive() && amount.GreaterThan(policy.Max) {
		amount = policy.Max
	}
	result.SuggestedAmount = amount
	return result
}
