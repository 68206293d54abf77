package sentiment

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/aristath/tao-sentinel/internal/domain"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSearcher struct {
	posts []domain.Post
	err   error
}

func (f *fakeSearcher) SearchPosts(ctx context.Context, topicID int, maxResults int) ([]domain.Post, error) {
	return f.posts, f.err
}

type fakeCompleter struct {
	mu     sync.Mutex
	reply  string
	err    error
	calls  int
	system string
	user   string
}

func (f *fakeCompleter) Complete(ctx context.Context, system, user string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.system = system
	f.user = user
	return f.reply, f.err
}

func TestSignalAdapter_FetchPostsTruncates(t *testing.T) {
	searcher := &fakeSearcher{posts: make([]domain.Post, 15)}
	adapter := NewSignalAdapter(searcher, &fakeCompleter{}, zerolog.Nop())

	posts, err := adapter.FetchPosts(context.Background(), 18, 10)
	require.NoError(t, err)
	assert.Len(t, posts, 10)
}

func TestSignalAdapter_FetchPostsError(t *testing.T) {
	adapter := NewSignalAdapter(&fakeSearcher{err: errors.New("boom")}, &fakeCompleter{}, zerolog.Nop())

	_, err := adapter.FetchPosts(context.Background(), 18, 10)
	assert.ErrorContains(t, err, "boom")
}

func TestSignalAdapter_ScoreEmptySkipsModel(t *testing.T) {
	completer := &fakeCompleter{reply: "99"}
	adapter := NewSignalAdapter(&fakeSearcher{}, completer, zerolog.Nop())

	score, err := adapter.Score(context.Background(), nil, 18)
	require.NoError(t, err)
	assert.Equal(t, 0, score)
	assert.Equal(t, 0, completer.calls)
}

func TestSignalAdapter_Score(t *testing.T) {
	completer := &fakeCompleter{reply: "-12"}
	adapter := NewSignalAdapter(&fakeSearcher{}, completer, zerolog.Nop())

	posts := []domain.Post{{Author: "alice", Text: "dumping", Verified: true, Followers: 50, Likes: 3}}
	score, err := adapter.Score(context.Background(), posts, 7)
	require.NoError(t, err)
	assert.Equal(t, -12, score)
	assert.Contains(t, completer.system, "subnet 7")
	assert.Contains(t, completer.user, "Tweet by @alice (verified) (50 followers):\ndumping")
}

func TestSignalAdapter_ScoreMalformed(t *testing.T) {
	adapter := NewSignalAdapter(&fakeSearcher{}, &fakeCompleter{reply: "bullish!"}, zerolog.Nop())

	_, err := adapter.Score(context.Background(), []domain.Post{{Text: "x"}}, 7)
	assert.ErrorIs(t, err, ErrMalformedScore)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt([]domain.Post{
		{Author: "a", Text: "one", Likes: 1, Reposts: 2, Replies: 3, Quotes: 4, Bookmarks: 5},
		{Author: "b", Text: "two"},
	})

	assert.Equal(t, "Tweet by @a (0 followers):\none\n"+
		"[Engagement: 1 likes, 2 retweets, 3 replies, 4 quotes, 5 bookmarks]\n\n"+
		"Tweet by @b (0 followers):\ntwo\n"+
		"[Engagement: 0 likes, 0 retweets, 0 replies, 0 quotes, 0 bookmarks]", prompt)
}
