// Package twitter is the client for the social platform's v2 API,
// signing every request with OAuth 1.0a.
package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/clonedigital/postpilot/internal/apperr"
)

const defaultBaseURL = "https://api.twitter.com"

// Client issues signed requests against the platform API.
type Client struct {
	creds   Credentials
	client  *resty.Client
	baseURL string
}

// NewClient creates a platform client with the given credentials.
func NewClient(creds Credentials) *Client {
	return &Client{
		creds:   creds,
		client:  resty.New().SetTimeout(30 * time.Second),
		baseURL: defaultBaseURL,
	}
}

// Tweet is one timeline item returned by the list endpoint.
type Tweet struct {
	ID           string
	Text         string
	CreatedAt    time.Time
	LikeCount    int
	RetweetCount int
}

// CreateResult is the outcome of a successful publish call.
type CreateResult struct {
	TweetID  string
	TweetURL string
}

type createTweetResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

type userTweetsResponse struct {
	Data []struct {
		ID            string `json:"id"`
		Text          string `json:"text"`
		CreatedAt     string `json:"created_at"`
		PublicMetrics struct {
			LikeCount    int `json:"like_count"`
			RetweetCount int `json:"retweet_count"`
		} `json:"public_metrics"`
	} `json:"data"`
}

// CreateTweet publishes text as a new post and returns its platform ID.
func (c *Client) CreateTweet(ctx context.Context, text string) (*CreateResult, error) {
	endpoint := c.baseURL + "/2/tweets"
	header := BuildOAuthHeader("POST", endpoint, c.creds, nil)

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", header).
		SetHeader("Content-Type", "application/json").
		SetBody(map[string]string{"text": text}).
		Post(endpoint)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream("Twitter request failed", err.Error()), err)
	}

	if resp.IsError() {
		return nil, parseAPIError(resp.StatusCode(), resp.Body())
	}

	var parsed createTweetResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, apperr.Wrap(apperr.Upstream("Twitter returned an unreadable response", err.Error()), err)
	}
	if parsed.Data.ID == "" {
		return nil, apperr.Upstream("Twitter response is missing the tweet id", "")
	}

	return &CreateResult{
		TweetID:  parsed.Data.ID,
		TweetURL: fmt.Sprintf("https://twitter.com/i/status/%s", parsed.Data.ID),
	}, nil
}

// UserTweets lists a user's recent original posts, newest first. When
// sinceID is set, only posts newer than it are returned. The query
// parameters are included in the OAuth signature, which the platform
// requires for GET requests.
func (c *Client) UserTweets(ctx context.Context, twitterUserID, sinceID string) ([]Tweet, error) {
	endpoint := fmt.Sprintf("%s/2/users/%s/tweets", c.baseURL, twitterUserID)

	queryParams := map[string]string{
		"max_results":  "100",
		"tweet.fields": "created_at,public_metrics",
		"exclude":      "retweets,replies",
	}
	if sinceID != "" {
		queryParams["since_id"] = sinceID
	}

	header := BuildOAuthHeader("GET", endpoint, c.creds, queryParams)

	values := url.Values{}
	for k, v := range queryParams {
		values.Set(k, v)
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Authorization", header).
		SetQueryParamsFromValues(values).
		Get(endpoint)
	if err != nil {
		return nil, apperr.Wrap(apperr.Upstream("Twitter request failed", err.Error()), err)
	}

	if resp.IsError() {
		return nil, parseAPIError(resp.StatusCode(), resp.Body())
	}

	var parsed userTweetsResponse
	if err := json.Unmarshal(resp.Body(), &parsed); err != nil {
		return nil, apperr.Wrap(apperr.Upstream("Twitter returned an unreadable response", err.Error()), err)
	}

	tweets := make([]Tweet, 0, len(parsed.Data))
	for _, raw := range parsed.Data {
		tweetedAt, err := time.Parse(time.RFC3339, raw.CreatedAt)
		if err != nil {
			tweetedAt = time.Now()
		}
		tweets = append(tweets, Tweet{
			ID:           raw.ID,
			Text:         raw.Text,
			CreatedAt:    tweetedAt,
			LikeCount:    raw.PublicMetrics.LikeCount,
			RetweetCount: raw.PublicMetrics.RetweetCount,
		})
	}

	return tweets, nil
}
