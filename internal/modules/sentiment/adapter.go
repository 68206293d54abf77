package sentiment

import (
	"context"
	"fmt"

	"github.com/aristath/tao-sentinel/internal/domain"
	"github.com/rs/zerolog"
)

// PostSearcher finds recent posts about a topic.
type PostSearcher interface {
	SearchPosts(ctx context.Context, topicID int, maxResults int) ([]domain.Post, error)
}

// Completer runs a single chat completion.
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// SignalAdapter combines a post search API and an LLM scorer into a domain.SignalSource.
type SignalAdapter struct {
	searcher  PostSearcher
	completer Completer
	log       zerolog.Logger
}

var _ domain.SignalSource = (*SignalAdapter)(nil)

// NewSignalAdapter creates a signal adapter
func NewSignalAdapter(searcher PostSearcher, completer Completer, log zerolog.Logger) *SignalAdapter {
	return &SignalAdapter{
		searcher:  searcher,
		completer: completer,
		log:       log.With().Str("component", "signal_adapter").Logger(),
	}
}

// FetchPosts returns at most maxResults posts.
func (a *SignalAdapter) FetchPosts(ctx context.Context, topicID int, maxResults int) ([]domain.Post, error) {
	posts, err := a.searcher.SearchPosts(ctx, topicID, maxResults)
	if err != nil {
		return nil, fmt.Errorf("post search for topic %d: %w", topicID, err)
	}
	if maxResults > 0 && len(posts) > maxResults {
		posts = posts[:maxResults]
	}
	return posts, nil
}

// Score asks the model for an aggregate score. An empty post list scores 0 without a call.
// The returned score is not clamped.
func (a *SignalAdapter) Score(ctx context.Context, posts []domain.Post, topicID int) (int, error) {
	if len(posts) == 0 {
		return 0, nil
	}

	completion, err := a.completer.Complete(ctx, SystemPrompt(topicID), BuildPrompt(posts))
	if err != nil {
		return 0, fmt.Errorf("scoring topic %d: %w", topicID, err)
	}

	score, err := ParseScore(completion)
	if err != nil {
		return 0, err
	}

	a.log.Debug().Int("topic_id", topicID).Int("posts", len(posts)).Int("score", score).Msg("Scored posts")
	return score, nil
}
