// Package datura provides a client for the Datura social search API.
package datura

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aristath/tao-sentinel/internal/domain"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// SearchRequest is the body of a /twitter search.
type SearchRequest struct {
	Query        string `json:"query"`
	BlueVerified bool   `json:"blue_verified"`
	Lang         string `json:"lang"`
	Sort         string `json:"sort"`
	Count        int    `json:"count"`
}

// User is the author block of a tweet.
type User struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	FollowersCount int    `json:"followers_count"`
	Verified       bool   `json:"verified"`
	IsBlueVerified bool   `json:"is_blue_verified"`
}

// Tweet is one search hit.
type Tweet struct {
	ID            string `json:"id"`
	Text          string `json:"text"`
	URL           string `json:"url"`
	CreatedAt     string `json:"created_at"`
	User          User   `json:"user"`
	ReplyCount    int    `json:"reply_count"`
	RetweetCount  int    `json:"retweet_count"`
	LikeCount     int    `json:"like_count"`
	QuoteCount    int    `json:"quote_count"`
	BookmarkCount int    `json:"bookmark_count"`
	IsQuoteTweet  bool   `json:"is_quote_tweet"`
	IsRetweet     bool   `json:"is_retweet"`
	Lang          string `json:"lang"`
}

// Client for apis.datura.ai
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
}

// NewClient creates a Datura client limited to ratePerSecond requests.
func NewClient(baseURL, apiKey string, ratePerSecond float64, log zerolog.Logger) *Client {
	limit := rate.Inf
	if ratePerSecond > 0 {
		limit = rate.Limit(ratePerSecond)
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: 20 * time.Second},
		limiter: rate.NewLimiter(limit, 1),
		log:     log.With().Str("client", "datura").Logger(),
	}
}

// Search runs one tweet search.
func (c *Client) Search(ctx context.Context, req SearchRequest) ([]Tweet, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/twitter", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	httpReq.Header.Set("Authorization", c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	c.log.Debug().Str("query", req.Query).Int("count", req.Count).Msg("Searching tweets")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search returned status %d: %s", resp.StatusCode, string(text))
	}

	var tweets []Tweet
	if err := json.NewDecoder(resp.Body).Decode(&tweets); err != nil {
		return nil, fmt.Errorf("failed to parse search response: %w", err)
	}

	c.log.Info().Str("query", req.Query).Int("tweets", len(tweets)).Msg("Search completed")
	return tweets, nil
}

// SearchPosts returns up to maxResults recent English posts mentioning the topic.
func (c *Client) SearchPosts(ctx context.Context, topicID int, maxResults int) ([]domain.Post, error) {
	tweets, err := c.Search(ctx, SearchRequest{
		Query: fmt.Sprintf("Bittensor netuid %d", topicID),
		Lang:  "en",
		Sort:  "Latest",
		Count: maxResults,
	})
	if err != nil {
		return nil, err
	}

	posts := make([]domain.Post, 0, len(tweets))
	for _, t := range tweets {
		if maxResults > 0 && len(posts) >= maxResults {
			break
		}
		posts = append(posts, t.Post())
	}
	return posts, nil
}

// Post maps the tweet onto the domain post.
func (t Tweet) Post() domain.Post {
	post := domain.Post{
		ID:        t.ID,
		Text:      t.Text,
		Author:    t.User.Username,
		Followers: t.User.FollowersCount,
		Verified:  t.User.Verified || t.User.IsBlueVerified,
		Likes:     t.LikeCount,
		Reposts:   t.RetweetCount,
		Replies:   t.ReplyCount,
		Quotes:    t.QuoteCount,
		Bookmarks: t.BookmarkCount,
	}
	for _, layout := range []string{time.RubyDate, time.RFC3339, "Mon Jan 02 15:04:05 -0700 2006"} {
		if ts, err := time.Parse(layout, t.CreatedAt); err == nil {
			post.CreatedAt = ts
			break
		}
	}
	return post
}
