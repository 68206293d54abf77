package sentiment

import (
	"fmt"
	"strings"

	"github.com/aristath/tao-sentinel/internal/domain"
)

// SystemPrompt instructs the model to reply with a single bounded integer for the topic.
func SystemPrompt(topicID int) string {
	return fmt.Sprintf(`Analyze the sentiment of these tweets about Bittensor subnet %d.
Rate the overall sentiment on a scale from %d (extremely negative) to +%d (extremely positive).
Consider both the content of the tweets and their engagement metrics.
Tweets with higher engagement (likes, retweets) should be weighted more heavily.
IMPORTANT: Your response must be ONLY a single integer number between %d and +%d,
with no explanations, calculations, or additional text of any kind. Just the number.
For example: 42 or -87`, topicID, MinScore, MaxScore, MinScore, MaxScore)
}

// BuildPrompt renders posts with author and engagement details, one block per post.
func BuildPrompt(posts []domain.Post) string {
	blocks := make([]string, 0, len(posts))
	for _, p := range posts {
		var b strings.Builder
		b.WriteString("Tweet by @")
		b.WriteString(p.Author)
		if p.Verified {
			b.WriteString(" (verified)")
		}
		fmt.Fprintf(&b, " (%d followers):\n", p.Followers)
		b.WriteString(p.Text)
		fmt.Fprintf(&b, "\n[Engagement: %d likes, %d retweets, %d replies, %d quotes, %d bookmarks]",
			p.Likes, p.Reposts, p.Replies, p.Quotes, p.Bookmarks)
		blocks = append(blocks, b.String())
	}
	return strings.Join(blocks, "\n\n")
}
